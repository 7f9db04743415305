// Framed service link codec
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package link carries the service channel to a fieldbus master or
// bootloader: a framed request/response codec over any byte stream,
// a serial port in the field or a pipe in tests. Frames carry a length,
// a sequence number, a command byte, the payload, a CRC-16, and a
// trailing sync byte; responses echo the request sequence.
package link

import (
	"bufio"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"axl-go/pkg/axt"
	"axl-go/pkg/pool"
)

// Frame layout constants.
const (
	frameSync  = 0x7e
	frameMin   = 6  // len + seq + cmd + crc16 + sync
	frameMax   = 96 // keeps bootloader buffers small
	PayloadMax = frameMax - frameMin
	seqMask    = 0x0f
	statusOK   = 0x00
	respFlag   = 0x80 // set on the command byte of a response
)

// crc16 is the CCITT variant used across the service protocol.
func crc16(buf []byte) (hi, lo byte) {
	var crc uint16 = 0xffff
	for _, b := range buf {
		data := uint16(b)
		data ^= crc & 0xff
		data ^= (data & 0x0f) << 4
		crc = (crc >> 8) ^ (data << 8) ^ (data << 3) ^ (data >> 4)
	}
	return byte(crc >> 8), byte(crc & 0xff)
}

// encodeFrame wraps one command and payload into a wire frame, written
// into a pooled buffer the caller returns when the frame is on the wire.
func encodeFrame(seq int, cmd byte, payload []byte) *pool.ByteBuffer {
	b := pool.GetByteBuffer()
	b.Write([]byte{byte(frameMin + len(payload)), byte(seq & seqMask), cmd})
	b.Write(payload)
	hi, lo := crc16(b.Bytes())
	b.Write([]byte{hi, lo, frameSync})
	return b
}

// Link is a synchronous request/response channel. One request is in
// flight at a time; concurrent callers serialize on the link.
type Link struct {
	log *zap.Logger

	mu      sync.Mutex
	rw      io.ReadWriteCloser
	br      *bufio.Reader
	seq     int
	timeout time.Duration
	closed  bool
}

// New wraps a byte stream in the frame codec. The timeout bounds each
// whole request/response exchange; zero means 2 seconds.
func New(log *zap.Logger, rw io.ReadWriteCloser, timeout time.Duration) *Link {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Link{
		log:     log,
		rw:      rw,
		br:      bufio.NewReader(rw),
		timeout: timeout,
	}
}

// Close shuts the underlying stream.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.rw.Close()
}

// Request sends one command and returns the matching response payload.
// The first response byte is the device status; a nonzero status is
// surfaced as code 1152 with the status in the detail.
func (l *Link) Request(cmd byte, payload []byte) ([]byte, error) {
	const op = "link.Request"
	if len(payload) > PayloadMax {
		return nil, axt.Errorf(axt.BadParameter, op, "payload %d exceeds %d", len(payload), PayloadMax)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, axt.Errorf(axt.NotOpen, op, "link is closed")
	}

	l.seq = (l.seq + 1) & seqMask
	frame := encodeFrame(l.seq, cmd, payload)
	_, err := l.rw.Write(frame.Bytes())
	pool.PutByteBuffer(frame)
	if err != nil {
		return nil, axt.Wrap(axt.NetworkError, op, err)
	}

	deadline := time.Now().Add(l.timeout)
	for {
		if time.Now().After(deadline) {
			return nil, axt.Errorf(axt.QueueRspWaitTimeout, op, "no response to cmd %#02x", cmd)
		}
		rseq, rcmd, body, err := l.readFrame(deadline)
		if err != nil {
			return nil, err
		}
		if rseq != l.seq || rcmd != cmd|respFlag {
			// stale or unsolicited frame; keep scanning
			l.log.Debug("link frame skipped",
				zap.Int("seq", rseq), zap.Uint8("cmd", rcmd))
			continue
		}
		if len(body) < 1 {
			return nil, axt.Errorf(axt.NetworkError, op, "short response to cmd %#02x", cmd)
		}
		if body[0] != statusOK {
			return nil, axt.Errorf(axt.NetworkError, op,
				"device status %#02x for cmd %#02x", body[0], cmd)
		}
		return body[1:], nil
	}
}

// readFrame scans to the next valid frame. Bytes that do not form a
// frame with a good CRC are discarded, resynchronizing on the sync
// byte the same way the field devices do.
func (l *Link) readFrame(deadline time.Time) (seq int, cmd byte, payload []byte, err error) {
	const op = "link.Request"
	type deadliner interface{ SetReadDeadline(time.Time) error }
	if d, ok := l.rw.(deadliner); ok {
		d.SetReadDeadline(deadline)
	}

	for {
		length, err := l.br.ReadByte()
		if err != nil {
			if os.IsTimeout(err) {
				return 0, 0, nil, axt.Errorf(axt.QueueRspWaitTimeout, op, "response timed out")
			}
			return 0, 0, nil, axt.Wrap(axt.NetworkError, op, err)
		}
		if int(length) < frameMin || int(length) > frameMax {
			continue // not a frame start; resync
		}
		rest := make([]byte, int(length)-1)
		if _, err := io.ReadFull(l.br, rest); err != nil {
			return 0, 0, nil, axt.Wrap(axt.NetworkError, op, err)
		}
		if rest[len(rest)-1] != frameSync {
			continue
		}
		head := append([]byte{length}, rest[:len(rest)-3]...)
		hi, lo := crc16(head)
		if hi != rest[len(rest)-3] || lo != rest[len(rest)-2] {
			l.log.Debug("link crc mismatch", zap.Uint8("len", length))
			continue
		}
		return int(rest[0]) & seqMask, rest[1], rest[2 : len(rest)-3], nil
	}
}
