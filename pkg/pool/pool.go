// Object pools for reducing GC pressure in hot paths
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package pool provides reusable object pools for the types the tick
// and wire paths allocate most: axis position vectors (interpolation
// point evaluation) and byte buffers (frame encoding).
package pool

import (
	"slices"
	"sync"
)

// Position vector pools, bucketed on the interpolation group sizes the
// motion layer supports.
type floatsPool struct {
	pools [5]sync.Pool // sizes 2, 3, 4, 6, 8
}

var floats = &floatsPool{}

func init() {
	sizes := []int{2, 3, 4, 6, 8}
	for i, size := range sizes {
		s := size
		floats.pools[i].New = func() any {
			return make([]float64, s)
		}
	}
}

// floatsIndex returns the pool index for a given size, or -1 if no pool
func floatsIndex(size int) int {
	switch size {
	case 2:
		return 0
	case 3:
		return 1
	case 4:
		return 2
	case 6:
		return 3
	case 8:
		return 4
	default:
		return -1
	}
}

// GetFloats returns a zeroed float64 slice of the requested length.
// Unpooled sizes allocate fresh.
func GetFloats(size int) []float64 {
	idx := floatsIndex(size)
	if idx >= 0 {
		s := floats.pools[idx].Get().([]float64)
		for i := range s {
			s[i] = 0
		}
		return s
	}
	return make([]float64, size)
}

// PutFloats returns a position vector to the pool. The caller must not
// keep a reference to the slice afterwards.
func PutFloats(s []float64) {
	if s == nil {
		return
	}
	idx := floatsIndex(len(s))
	if idx >= 0 {
		floats.pools[idx].Put(s)
	}
	// Non-pooled sizes are just discarded
}

// ByteBuffer is an append-only scratch buffer for frame encoding. It
// implements the Write methods the codec needs without bytes.Buffer's
// read-side bookkeeping.
type ByteBuffer struct {
	b []byte
}

// Pooled buffers keep at most 4KB of capacity; the link protocol caps
// frames well below that, so anything larger was a one-off.
const maxPooledBuf = 4096

var bufPool = sync.Pool{
	New: func() any {
		return &ByteBuffer{b: make([]byte, 0, 64)}
	},
}

// GetByteBuffer returns an empty buffer from the pool.
func GetByteBuffer() *ByteBuffer {
	b := bufPool.Get().(*ByteBuffer)
	b.b = b.b[:0]
	return b
}

// PutByteBuffer hands the buffer back. The caller must not touch the
// buffer or any slice obtained from Bytes afterwards.
func PutByteBuffer(b *ByteBuffer) {
	if b == nil || cap(b.b) > maxPooledBuf {
		return
	}
	bufPool.Put(b)
}

// Bytes returns the accumulated contents. The slice aliases the buffer
// and is only valid until the next write or PutByteBuffer.
func (b *ByteBuffer) Bytes() []byte { return b.b }

// Len returns the number of bytes written.
func (b *ByteBuffer) Len() int { return len(b.b) }

// Cap returns the underlying capacity.
func (b *ByteBuffer) Cap() int { return cap(b.b) }

// Reset empties the buffer, keeping its capacity.
func (b *ByteBuffer) Reset() { b.b = b.b[:0] }

// Grow reserves room for at least n more bytes.
func (b *ByteBuffer) Grow(n int) {
	b.b = slices.Grow(b.b, n)
}

// Write appends p. The error is always nil; the signature satisfies
// io.Writer.
func (b *ByteBuffer) Write(p []byte) (int, error) {
	b.b = append(b.b, p...)
	return len(p), nil
}

// WriteByte appends a single byte.
func (b *ByteBuffer) WriteByte(c byte) error {
	b.b = append(b.b, c)
	return nil
}

// WriteString appends s without copying it to a []byte first.
func (b *ByteBuffer) WriteString(s string) (int, error) {
	b.b = append(b.b, s...)
	return len(s), nil
}
