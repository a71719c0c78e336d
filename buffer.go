// Package sqlcli provides the data-marshalling core of a SQL call-level interface.
package sqlcli

import (
	"sync"
)

// bufferPool keeps released descriptor buffers in size tiers so repeated
// execute/fetch cycles reuse memory for the common column widths.
type bufferPool struct {
	small   sync.Pool // 256 bytes
	medium  sync.Pool // 4KB
	large   sync.Pool // 64KB
	general sync.Pool // up to 1MB
}

var globalBufferPool bufferPool

// get returns an empty slice with capacity of at least n.
func (p *bufferPool) get(n int) []byte {
	switch {
	case n <= 256:
		if buf, ok := p.small.Get().([]byte); ok && cap(buf) >= n {
			return buf[:0]
		}
		return make([]byte, 0, 256)
	case n <= 4*1024:
		if buf, ok := p.medium.Get().([]byte); ok && cap(buf) >= n {
			return buf[:0]
		}
		return make([]byte, 0, 4*1024)
	case n <= 64*1024:
		if buf, ok := p.large.Get().([]byte); ok && cap(buf) >= n {
			return buf[:0]
		}
		return make([]byte, 0, 64*1024)
	}

	if buf, ok := p.general.Get().([]byte); ok {
		if cap(buf) >= n {
			return buf[:0]
		}
		p.general.Put(buf[:0])
	}
	return make([]byte, 0, n)
}

func (p *bufferPool) put(buf []byte) {
	if buf == nil {
		return
	}

	switch c := cap(buf); {
	case c == 256:
		p.small.Put(buf[:0])
	case c == 4*1024:
		p.medium.Put(buf[:0])
	case c == 64*1024:
		p.large.Put(buf[:0])
	case c > 64*1024 && c <= 1024*1024:
		p.general.Put(buf[:0])
	}
	// Anything else is left for the garbage collector.
}

// Buffer is a growable byte buffer with an explicit content length and
// capacity. A Buffer either owns pooled memory or borrows memory supplied
// by the caller; borrowed memory is never returned to the pool.
//
// The zero Buffer is empty and ready to use.
type Buffer struct {
	data     []byte
	borrowed bool
	reallocs int
}

// Len returns the content length.
func (b *Buffer) Len() int { return len(b.data) }

// Cap returns the capacity.
func (b *Buffer) Cap() int { return cap(b.data) }

// Bytes returns the content. The slice aliases the buffer and is only
// valid until the next call that modifies or releases it.
func (b *Buffer) Bytes() []byte { return b.data }

// Released reports whether the buffer holds no memory.
func (b *Buffer) Released() bool { return b.data == nil }

// Alloc discards the current content and makes the buffer own an empty
// region of at least n bytes.
func (b *Buffer) Alloc(n int) {
	b.Release()
	b.data = globalBufferPool.get(n)
	b.reallocs = 0
}

// Grow raises the capacity to at least n bytes, preserving the content.
// Owned memory at least doubles so repeated growth stays linear.
func (b *Buffer) Grow(n int) {
	if cap(b.data) >= n && !b.borrowed {
		return
	}
	if !b.borrowed {
		n = max(n, 2*cap(b.data))
	}
	next := globalBufferPool.get(n)
	next = append(next, b.data...)
	b.Release()
	b.data = next
	b.reallocs++
}

// Spare returns the unused capacity after the content.
func (b *Buffer) Spare() []byte {
	return b.data[len(b.data):cap(b.data)]
}

// Extend adds n bytes written through Spare to the content.
func (b *Buffer) Extend(n int) {
	b.data = b.data[:len(b.data)+n]
}

// SetLen sets the content length, which must not exceed the capacity.
func (b *Buffer) SetLen(n int) {
	b.data = b.data[:n]
}

// Borrow releases the current content and aliases p without copying.
func (b *Buffer) Borrow(p []byte) {
	b.Release()
	if p == nil {
		p = []byte{}
	}
	b.data = p[:len(p):len(p)]
	b.borrowed = true
}

// Release returns owned memory to the pool. Releasing twice is a no-op.
func (b *Buffer) Release() {
	if b.data != nil && !b.borrowed {
		globalBufferPool.put(b.data)
	}
	b.data = nil
	b.borrowed = false
}
