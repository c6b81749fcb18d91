// Copyright 2026 The WOF-Alloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// In-block chunk layout and navigation.

package pool

import (
	"unsafe"
)

const (
	// All chunk sizes and data pointers are multiples of align. Must be a
	// power of two >= 8.
	align = 16

	// chunkHdr is the size of a chunk header rounded up to align. The
	// payload starts this many bytes past the chunk start.
	chunkHdr = 16

	// DefaultBlockSize is the size of the blocks requested from Sys when
	// Options.BlockSize is left zero.
	DefaultBlockSize = 8 << 20
)

var (
	// A free chunk must have at least this much payload to carry its free
	// list linkage. Smaller free chunks exist but are not tracked in any
	// list; they are reclaimed only by coalescing.
	freeLinkSize = int(unsafe.Sizeof(freeLink{}))

	// The block header is embedded at the start of every Sys allocation,
	// rounded up to align so the first chunk is properly placed.
	blockHdrSize = roundup(int(unsafe.Sizeof(block{})), align)
)

// if n%m != 0 { n += m-n%m }. m must be a power of 2.
func roundup(n, m int) int { return (n + m - 1) &^ (m - 1) }

const (
	flagUsed  = 1 << iota // chunk is allocated to a caller
	flagLast              // chunk is the final chunk of its block
	flagJumbo             // chunk is the sole chunk of a jumbo block
)

// A chunk is a header overlaid at some offset inside a block, immediately
// followed by its payload. Chunks within a block form an implicit doubly
// linked list: the next chunk starts size bytes after this one, the previous
// one prevLen bytes before it. prevLen == 0 marks the first chunk of a block,
// flagLast the final one. For jumbo chunks size and prevLen carry no meaning;
// the extent is implied by the Sys allocation.
type chunk struct {
	prevLen uint32
	size    uint32 // total bytes including the header
	flags   uint32
	_       uint32
}

// A freeLink is overlaid at payload offset 0 of a free chunk while the chunk
// is a member of the master stack or the recycler ring. The header of a chunk
// split off a list member may overlap this region, so the linkage must be
// read out before such a header is written.
type freeLink struct {
	prev, next *chunk
}

// A block is the header embedded at the start of every region obtained from
// Sys. Blocks owned by a Pool form a doubly linked list. The remainder of the
// region past the header is covered by chunks with no gaps.
type block struct {
	prev, next *block
	size       uintptr // bytes obtained from Sys
	_          uintptr
}

func (c *chunk) used() bool  { return c.flags&flagUsed != 0 }
func (c *chunk) last() bool  { return c.flags&flagLast != 0 }
func (c *chunk) jumbo() bool { return c.flags&flagJumbo != 0 }

func (c *chunk) setUsed(v bool) {
	if v {
		c.flags |= flagUsed
	} else {
		c.flags &^= flagUsed
	}
}

func (c *chunk) setLast(v bool) {
	if v {
		c.flags |= flagLast
	} else {
		c.flags &^= flagLast
	}
}

// next returns the right neighbour of c within its block, or nil if c is the
// final chunk.
func (c *chunk) next() *chunk {
	if c.last() {
		return nil
	}

	return (*chunk)(unsafe.Add(unsafe.Pointer(c), uintptr(c.size)))
}

// prev returns the left neighbour of c within its block, or nil if c is the
// first chunk.
func (c *chunk) prev() *chunk {
	if c.prevLen == 0 {
		return nil
	}

	return (*chunk)(unsafe.Add(unsafe.Pointer(c), -int(c.prevLen)))
}

// data returns the pointer handed out to callers.
func (c *chunk) data() unsafe.Pointer { return unsafe.Add(unsafe.Pointer(c), chunkHdr) }

// dataChunk recovers the owning chunk from a pointer returned by data.
func dataChunk(p unsafe.Pointer) *chunk { return (*chunk)(unsafe.Add(p, -chunkHdr)) }

// payload returns the usable bytes of c. Not meaningful for jumbo chunks.
func (c *chunk) payload() int { return int(c.size) - chunkHdr }

// free returns the list linkage overlay. Valid only while c is free and
// trackable.
func (c *chunk) free() *freeLink { return (*freeLink)(c.data()) }

// trackable reports whether c's payload can hold a freeLink, i.e. whether c
// may be a member of a free list.
func (c *chunk) trackable() bool { return c.payload() >= freeLinkSize }

// first returns the initial chunk of b.
func (b *block) first() *chunk {
	return (*chunk)(unsafe.Add(unsafe.Pointer(b), blockHdrSize))
}

// jumboBlock recovers the owning block of a jumbo chunk, which is always the
// block's sole chunk.
func jumboBlock(c *chunk) *block {
	return (*block)(unsafe.Add(unsafe.Pointer(c), -blockHdrSize))
}
