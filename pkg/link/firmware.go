// Firmware update and fieldbus slave scan over the service link
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package link

import (
	"encoding/binary"

	"go.uber.org/zap"

	"axl-go/pkg/axt"
)

// Service commands.
const (
	cmdVersion  = 0x03
	cmdScan     = 0x04
	cmdConnect  = 0x05
	cmdFwBegin  = 0x10
	cmdFwData   = 0x11
	cmdFwVerify = 0x12
)

// fwChunk is the image payload per data frame: the 4-byte offset
// leaves this much room under PayloadMax.
const fwChunk = PayloadMax - 4

// SlaveInfo describes one fieldbus slave found by a scan.
type SlaveInfo struct {
	ID        int
	VendorID  uint16
	ProductID uint16
	Connected bool
}

// Version asks the device for its firmware version string.
func (l *Link) Version() (string, error) {
	body, err := l.Request(cmdVersion, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ScanSlaves enumerates the slaves on the device's fieldbus. The
// response carries 6-byte records: id, vendor, product, flags.
func (l *Link) ScanSlaves() ([]SlaveInfo, error) {
	const op = "link.ScanSlaves"
	body, err := l.Request(cmdScan, nil)
	if err != nil {
		return nil, err
	}
	if len(body)%6 != 0 {
		return nil, axt.Errorf(axt.NetworkError, op, "scan record length %d", len(body))
	}
	slaves := make([]SlaveInfo, 0, len(body)/6)
	for i := 0; i+6 <= len(body); i += 6 {
		slaves = append(slaves, SlaveInfo{
			ID:        int(body[i]),
			VendorID:  binary.LittleEndian.Uint16(body[i+1 : i+3]),
			ProductID: binary.LittleEndian.Uint16(body[i+3 : i+5]),
			Connected: body[i+5]&1 != 0,
		})
	}
	return slaves, nil
}

// Connect brings one scanned slave onto the bus.
func (l *Link) Connect(slaveID int) error {
	if slaveID < 0 || slaveID > 0xff {
		return axt.Errorf(axt.BadParameter, "link.Connect", "slave %d", slaveID)
	}
	_, err := l.Request(cmdConnect, []byte{byte(slaveID)})
	return err
}

// Download streams a firmware image to the device: a begin frame with
// the total size, fixed-size data chunks each acknowledged before the
// next is sent, and a final verify frame carrying the image CRC. The
// progress callback, when non-nil, is invoked after every acknowledged
// chunk with bytes sent so far.
func (l *Link) Download(image []byte, progress func(sent, total int)) error {
	const op = "link.Download"
	if len(image) == 0 {
		return axt.Errorf(axt.BadParameter, op, "empty image")
	}

	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(image)))
	if _, err := l.Request(cmdFwBegin, size[:]); err != nil {
		return err
	}

	buf := make([]byte, 0, PayloadMax)
	for off := 0; off < len(image); off += fwChunk {
		end := off + fwChunk
		if end > len(image) {
			end = len(image)
		}
		buf = buf[:0]
		var o [4]byte
		binary.LittleEndian.PutUint32(o[:], uint32(off))
		buf = append(buf, o[:]...)
		buf = append(buf, image[off:end]...)
		if _, err := l.Request(cmdFwData, buf); err != nil {
			return err
		}
		if progress != nil {
			progress(end, len(image))
		}
	}

	hi, lo := crc16(image)
	if _, err := l.Request(cmdFwVerify, []byte{hi, lo}); err != nil {
		return err
	}
	l.log.Info("firmware download complete", zap.Int("bytes", len(image)))
	return nil
}
