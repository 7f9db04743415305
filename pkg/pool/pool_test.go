// Unit tests for object pools
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"bytes"
	"sync"
	"testing"
)

func TestFloatsPool(t *testing.T) {
	sizes := []int{2, 3, 4, 6, 8}

	for _, size := range sizes {
		s := GetFloats(size)
		if len(s) != size {
			t.Errorf("expected slice of size %d, got %d", size, len(s))
		}
		for i, v := range s {
			if v != 0 {
				t.Errorf("slice[%d] should be 0, got %f", i, v)
			}
		}

		s[0] = 100.5
		PutFloats(s)

		// The next slice of the same size must come back zeroed.
		s2 := GetFloats(size)
		for i, v := range s2 {
			if v != 0 {
				t.Errorf("reused slice[%d] should be 0, got %f", i, v)
			}
		}
		PutFloats(s2)
	}
}

func TestFloatsUnpooledSize(t *testing.T) {
	s := GetFloats(7)
	if len(s) != 7 {
		t.Errorf("expected slice of size 7, got %d", len(s))
	}
	PutFloats(s) // discarded, must not panic
	PutFloats(nil)
}

func TestByteBuffer(t *testing.T) {
	b := GetByteBuffer()
	if b.Len() != 0 {
		t.Errorf("fresh buffer length = %d", b.Len())
	}

	b.WriteString("frame")
	b.WriteByte(0x7e)
	b.Write([]byte{0x01, 0x02})
	if b.Len() != 8 {
		t.Errorf("Len = %d, want 8", b.Len())
	}
	if !bytes.Equal(b.Bytes()[:5], []byte("frame")) {
		t.Errorf("Bytes prefix = %q", b.Bytes()[:5])
	}

	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Len after Reset = %d", b.Len())
	}
	PutByteBuffer(b)

	b2 := GetByteBuffer()
	if b2.Len() != 0 {
		t.Errorf("pooled buffer not reset, Len = %d", b2.Len())
	}
	PutByteBuffer(b2)
	PutByteBuffer(nil)
}

func TestByteBufferGrow(t *testing.T) {
	b := GetByteBuffer()
	b.Grow(1024)
	if b.Cap() < 1024 {
		t.Errorf("Cap after Grow(1024) = %d", b.Cap())
	}
	if b.Len() != 0 {
		t.Errorf("Len after Grow = %d", b.Len())
	}
	// Oversized buffers are not returned to the pool.
	b.Grow(8192)
	PutByteBuffer(b)
}

func TestPoolsConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s := GetFloats(4)
				s[0] = float64(j)
				PutFloats(s)

				b := GetByteBuffer()
				b.WriteString("x")
				PutByteBuffer(b)
			}
		}()
	}
	wg.Wait()
}
