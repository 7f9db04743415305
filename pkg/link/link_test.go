// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package link

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"axl-go/pkg/axt"
)

// testDevice emulates the service side of the link over a net.Pipe:
// it answers version, scan, connect, and the firmware sequence, and
// can be told to stay silent or corrupt its next response.
type testDevice struct {
	conn net.Conn

	image    []byte
	expected int
	verified bool

	silent  bool
	corrupt bool
}

func startDevice(t *testing.T) (*Link, *testDevice) {
	t.Helper()
	host, dev := net.Pipe()
	d := &testDevice{conn: dev}
	go d.serve()
	l := New(nil, host, 200*time.Millisecond)
	t.Cleanup(func() {
		l.Close()
		dev.Close()
	})
	return l, d
}

func (d *testDevice) serve() {
	for {
		frame, ok := d.readFrame()
		if !ok {
			return
		}
		seq, cmd, payload := frame[1]&seqMask, frame[2], frame[3:len(frame)-3]
		if d.silent {
			continue
		}
		var body []byte
		switch cmd {
		case cmdVersion:
			body = append([]byte{statusOK}, "1.4.2"...)
		case cmdScan:
			body = []byte{statusOK,
				1, 0x34, 0x12, 0x01, 0x00, 1,
				2, 0x34, 0x12, 0x02, 0x00, 0,
			}
		case cmdConnect:
			if payload[0] < 8 {
				body = []byte{statusOK}
			} else {
				body = []byte{0x05} // no such slave
			}
		case cmdFwBegin:
			d.expected = int(binary.LittleEndian.Uint32(payload))
			d.image = nil
			d.verified = false
			body = []byte{statusOK}
		case cmdFwData:
			off := int(binary.LittleEndian.Uint32(payload[:4]))
			if off != len(d.image) {
				body = []byte{0x02} // out of order
				break
			}
			d.image = append(d.image, payload[4:]...)
			body = []byte{statusOK}
		case cmdFwVerify:
			hi, lo := crc16(d.image)
			if len(d.image) == d.expected && hi == payload[0] && lo == payload[1] {
				d.verified = true
				body = []byte{statusOK}
			} else {
				body = []byte{0x03}
			}
		default:
			body = []byte{0x7f}
		}
		resp := encodeFrame(int(seq), cmd|respFlag, body).Bytes()
		if d.corrupt {
			bad := append([]byte(nil), resp...)
			bad[len(bad)-2] ^= 0xff // break the CRC once
			d.corrupt = false
			d.conn.Write(bad)
		}
		d.conn.Write(resp)
	}
}

// readFrame collects one well-formed request frame from the host.
func (d *testDevice) readFrame() ([]byte, bool) {
	head := make([]byte, 1)
	if _, err := io.ReadFull(d.conn, head); err != nil {
		return nil, false
	}
	rest := make([]byte, int(head[0])-1)
	if _, err := io.ReadFull(d.conn, rest); err != nil {
		return nil, false
	}
	return append(head, rest...), true
}

func TestVersionRoundTrip(t *testing.T) {
	l, _ := startDevice(t)
	v, err := l.Version()
	if err != nil || v != "1.4.2" {
		t.Fatalf("Version = %q, %v", v, err)
	}
}

func TestScanAndConnect(t *testing.T) {
	l, _ := startDevice(t)
	slaves, err := l.ScanSlaves()
	if err != nil {
		t.Fatalf("ScanSlaves: %v", err)
	}
	if len(slaves) != 2 {
		t.Fatalf("found %d slaves, want 2", len(slaves))
	}
	if slaves[0].ID != 1 || slaves[0].VendorID != 0x1234 || slaves[0].ProductID != 1 || !slaves[0].Connected {
		t.Fatalf("slave 0 = %+v", slaves[0])
	}
	if slaves[1].Connected {
		t.Fatal("slave 2 should be disconnected")
	}

	if err := l.Connect(1); err != nil {
		t.Fatalf("Connect(1): %v", err)
	}
	err = l.Connect(99)
	if !axt.IsCode(err, axt.NetworkError) {
		t.Fatalf("Connect(99): %v, want device status error", err)
	}
	if err := l.Connect(-1); !axt.IsCode(err, axt.BadParameter) {
		t.Fatalf("Connect(-1): %v", err)
	}
}

func TestDownloadChunksAndVerifies(t *testing.T) {
	l, d := startDevice(t)

	image := make([]byte, 3*fwChunk+17)
	for i := range image {
		image[i] = byte(i * 7)
	}
	var calls int
	var lastSent int
	err := l.Download(image, func(sent, total int) {
		calls++
		lastSent = sent
		if total != len(image) {
			t.Errorf("progress total = %d", total)
		}
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if calls != 4 || lastSent != len(image) {
		t.Fatalf("progress calls = %d, lastSent = %d", calls, lastSent)
	}
	if !d.verified {
		t.Fatal("device did not verify the image")
	}
	if len(d.image) != len(image) {
		t.Fatalf("device holds %d bytes, want %d", len(d.image), len(image))
	}
	for i := range image {
		if d.image[i] != image[i] {
			t.Fatalf("image byte %d differs", i)
		}
	}

	if err := l.Download(nil, nil); !axt.IsCode(err, axt.BadParameter) {
		t.Fatalf("empty image: %v", err)
	}
}

func TestCorruptResponseIsResynced(t *testing.T) {
	l, d := startDevice(t)
	d.corrupt = true
	v, err := l.Version()
	if err != nil || v != "1.4.2" {
		t.Fatalf("Version after corrupt frame = %q, %v", v, err)
	}
}

func TestSilentDeviceTimesOut(t *testing.T) {
	l, d := startDevice(t)
	d.silent = true
	_, err := l.Version()
	if !axt.IsCode(err, axt.QueueRspWaitTimeout) {
		t.Fatalf("silent device: %v, want timeout code", err)
	}
}

func TestOversizePayloadRejected(t *testing.T) {
	l, _ := startDevice(t)
	_, err := l.Request(cmdVersion, make([]byte, PayloadMax+1))
	if !axt.IsCode(err, axt.BadParameter) {
		t.Fatalf("oversize payload: %v", err)
	}
}
