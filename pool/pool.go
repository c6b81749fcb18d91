// Copyright 2026 The WOF-Alloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The "wheel of fortune" pool allocator.

/*

Package pool implements a memory pool optimized for workloads that perform
many short-lived allocations and then release everything at once - the
"dissect one packet, free it all" pattern. General purpose Alloc, Realloc and
Free are provided, but the defining operation is FreeAll: it resets the whole
pool to a reusable state in time proportional to the number of OS-level
blocks, not to the number of live allocations.

Blocks

A Pool obtains large blocks from a Sys, by default 8 MiB each. A block begins
with an embedded header linking it into the pool's block list; the rest of the
block is covered by a gapless sequence of chunks:

	|<-block start                                  block end->|
	+--------++--------+-- ... --+--------+-- ... --+----------+
	| header || chunk0 |  data   | chunk1 |  data   | chunkN.. |
	+--------++--------+-- ... --+--------+-- ... --+----------+

Chunks

A chunk is a 16 byte header followed by its payload. The header records the
total chunk size, the byte distance back to the previous chunk's header (zero
for the first chunk of a block), and used/last/jumbo flags; chunks thus form
an implicit doubly linked list inside their block. The pointer returned to
callers is the chunk's payload start, and the owning chunk is recovered from
it by stepping one header back. All sizes are multiples of 16, so is the
alignment of every returned pointer.

Free lists

Free chunks with enough payload to hold two pointers carry their free list
linkage in the payload itself. Two lists cooperate:

The master stack is a LIFO of pristine chunks - the whole remainder of a
freshly initialized block, or the yet unused tail of such a chunk. Its head,
when present, can serve any non-jumbo request.

The recycler is a circular list of chunks produced by Free or evicted from
the master. After every successful allocation the ring is rotated one
position: if the head's clockwise neighbour is smaller than the head, the
head holds its place and the neighbour is tucked in behind it instead. A
strictly largest chunk therefore sticks at the head once it arrives, and
arrives within one revolution - a constant-time lottery ("wheel of fortune")
that stands in for an explicit best-fit scan.

Two adjacent chunks are never both free: Free and the shrinking half of
Realloc coalesce with both neighbours before the result enters a list.

Jumbo allocations

Requests larger than a block can hold are served by dedicated one-chunk
blocks sized to fit. They never participate in the free lists, splitting or
merging; freeing one returns its block to the Sys at once.

The Pool is single-owner: no operation is safe for concurrent use. Callers
needing concurrency should use one Pool per goroutine or external mutual
exclusion.

*/
package pool

import (
	"unsafe"

	"github.com/cznic/mathutil"
)

// Options amend the behavior of New. The zero value selects the defaults.
type Options struct {
	// BlockSize is the size of the backing blocks requested from Sys. It
	// must be a multiple of 16 and larger than the block header plus one
	// minimal trackable chunk. Zero means DefaultBlockSize. The largest
	// request served without a dedicated jumbo block is BlockSize minus
	// the block and chunk header overhead.
	BlockSize int

	// Sys supplies the backing blocks. Nil means a fresh GoSys.
	Sys Sys
}

// Pool is the allocator. Use New to obtain one.
type Pool struct {
	sys       Sys
	blockSize int
	maxAlloc  int

	blocks   *block // doubly linked list of all owned blocks
	master   *chunk // top of the master stack
	recycler *chunk // head of the recycler ring
}

// New returns a new Pool configured by opts, which may be nil for all
// defaults.
func New(opts *Options) (*Pool, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.BlockSize == 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.Sys == nil {
		o.Sys = NewGoSys()
	}

	if o.BlockSize%align != 0 || o.BlockSize <= blockHdrSize+chunkHdr+freeLinkSize || o.BlockSize > 1<<30 {
		return nil, &ErrINVAL{"pool.New: invalid block size", o.BlockSize}
	}

	return &Pool{
		sys:       o.Sys,
		blockSize: o.BlockSize,
		maxAlloc:  o.BlockSize - blockHdrSize - chunkHdr,
	}, nil
}

// MaxAlloc returns the largest request size served from a normal block.
// Anything bigger takes the jumbo path.
func (p *Pool) MaxAlloc() int { return p.maxAlloc }

// newBlock obtains a fresh block from Sys, links it into the block list and
// pushes its single pristine chunk onto the master stack.
func (p *Pool) newBlock() error {
	m, err := p.sys.Alloc(p.blockSize)
	if err != nil {
		return err
	}

	b := (*block)(m)
	b.size = uintptr(p.blockSize)
	b.prev = nil
	b.next = p.blocks
	if p.blocks != nil {
		p.blocks.prev = b
	}
	p.blocks = b
	p.initBlock(b)
	return nil
}

// initBlock (re)partitions b into a single free chunk spanning the whole
// payload and pushes it onto the master stack.
func (p *Pool) initBlock(b *block) {
	c := b.first()
	c.prevLen = 0
	c.size = uint32(int(b.size) - blockHdrSize)
	c.flags = flagLast
	p.masterPush(c)
}

func (p *Pool) unlinkBlock(b *block) {
	if b.prev != nil {
		b.prev.next = b.next
	} else {
		p.blocks = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	}
}

// splitFree carves an aligned request of size need out of the free chunk c,
// which is a member of the master stack or the recycler (or an untracked
// free chunk, on the realloc absorb path). On return c has exactly the
// requested size, or its whole old extent when the leftover would have been
// too small to track; the leftover, if any, replaces c in whatever list c
// inhabited. The caller marks c used.
func (p *Pool) splitFree(c *chunk, need int) {
	want := roundup(need, align) + chunkHdr

	if c.payload() < want+freeLinkSize {
		// The leftover could not carry a free link. Hand out the whole
		// chunk and take it off its list.
		switch {
		case c == p.master:
			p.masterPop()
		case c.trackable():
			p.recyclerRemove(c)
		}
		return
	}

	// The new header below may overlap c's free link (when want is just
	// the header size), so the linkage is read out first.
	l := *c.free()
	wasHead := p.recycler == c

	oldSize := c.size
	oldLast := c.last()
	c.size = uint32(want)
	c.setLast(false)

	extra := c.next()
	extra.prevLen = uint32(want)
	extra.size = oldSize - uint32(want)
	extra.flags = 0
	extra.setLast(oldLast)

	el := extra.free()
	switch {
	case c == p.master:
		el.prev = nil
		el.next = l.next
		if l.next != nil {
			l.next.free().prev = extra
		}
		p.master = extra
	case l.next == c:
		// c was a singleton ring.
		el.prev, el.next = extra, extra
		p.recycler = extra
	default:
		el.prev, el.next = l.prev, l.next
		l.prev.free().next = extra
		l.next.free().prev = extra
		if wasHead {
			p.recycler = extra
		}
	}

	if nx := extra.next(); nx != nil {
		nx.prevLen = extra.size
	}
}

// splitUsed shrinks the used chunk c to keep payload bytes and releases the
// tail. The tail is coalesced with the right neighbour where possible and
// enters the recycler if it ends up trackable.
func (p *Pool) splitUsed(c *chunk, keep int) {
	want := roundup(keep, align) + chunkHdr
	if int(c.size)-want < chunkHdr {
		return
	}

	oldSize := c.size
	oldLast := c.last()
	c.size = uint32(want)
	c.setLast(false)

	extra := c.next()
	extra.prevLen = uint32(want)
	extra.size = oldSize - uint32(want)
	extra.flags = 0
	extra.setLast(oldLast)
	p.mergeFree(extra)
}

// mergeFree coalesces the free chunk c, which is in no list, with its free
// neighbours and files the result in exactly one place: the master stack
// when the right neighbour was the master head, the left neighbour's
// existing recycler slot when the merge grew it in place, or a fresh
// recycler slot otherwise. Untrackable results stay off the lists until a
// later merge absorbs them.
func (p *Pool) mergeFree(c *chunk) {
	var (
		rTrack, lTrack, rMaster bool

		rNext *chunk
	)

	if r := c.next(); r != nil && !r.used() {
		rTrack = r.trackable()
		rMaster = r == p.master
		if rTrack {
			if rMaster {
				rNext = r.free().next
			} else {
				p.recyclerRemove(r)
			}
		}
		c.size += r.size
		c.setLast(r.last())
	}

	if l := c.prev(); l != nil && !l.used() {
		lTrack = l.trackable()
		l.size += c.size
		l.setLast(c.last())
		c = l
	}

	if nx := c.next(); nx != nil {
		nx.prevLen = c.size
	}

	switch {
	case rTrack && rMaster:
		// The master head gained a new identity; promote the merged
		// chunk, keeping the old head's outgoing link.
		if lTrack {
			p.recyclerRemove(c)
		}
		cl := c.free()
		cl.prev = nil
		cl.next = rNext
		if rNext != nil {
			rNext.free().prev = c
		}
		p.master = c
	case lTrack:
		// The left neighbour's recycler slot now covers the merged
		// chunk.
	default:
		if c.trackable() {
			p.recyclerAdd(c)
		}
	}
}

// Alloc returns a pointer to n bytes of uninitialized memory, aligned to 16.
// n = 0 yields a valid, zero-usable pointer. The pointer is owned by the
// caller until passed to Free or Realloc, or until FreeAll; the memory never
// moves underneath it.
func (p *Pool) Alloc(n int) (unsafe.Pointer, error) {
	if n < 0 {
		return nil, &ErrINVAL{"pool.Alloc: invalid size", n}
	}

	if n > p.maxAlloc {
		return p.jumboAlloc(n)
	}

	var c *chunk
	switch {
	case p.recycler != nil && p.recycler.payload() >= n:
		c = p.recycler
	default:
		if p.master != nil && p.master.payload() < n {
			// The master head cannot serve this request anymore;
			// demote it so its tail can still be reused.
			p.recyclerAdd(p.masterPop())
		}
		if p.master == nil {
			if err := p.newBlock(); err != nil {
				return nil, err
			}
		}
		c = p.master
	}

	p.splitFree(c, n)
	p.recyclerCycle()
	c.setUsed(true)
	return c.data(), nil
}

// Free releases the allocation q, which must have come from Alloc or Realloc
// of the same pool and not have been freed since. Jumbo-backed memory goes
// back to the Sys immediately; anything else is coalesced with free
// neighbours and kept for reuse.
func (p *Pool) Free(q unsafe.Pointer) error {
	c := dataChunk(q)
	if c.jumbo() {
		b := jumboBlock(c)
		p.unlinkBlock(b)
		return p.sys.Free(unsafe.Pointer(b))
	}

	c.setUsed(false)
	p.mergeFree(c)
	return nil
}

// Realloc resizes the allocation q to n bytes, preserving the first
// min(old, n) payload bytes. A nil q behaves like Alloc. The returned
// pointer may differ from q, in which case q is gone. Growing absorbs a free
// right neighbour in place when one is large enough; shrinking releases the
// tail in place; otherwise the data moves.
func (p *Pool) Realloc(q unsafe.Pointer, n int) (unsafe.Pointer, error) {
	if q == nil {
		return p.Alloc(n)
	}
	if n < 0 {
		return nil, &ErrINVAL{"pool.Realloc: invalid size", n}
	}

	c := dataChunk(q)
	if c.jumbo() {
		return p.jumboRealloc(c, n)
	}

	cur := c.payload()
	switch {
	case n > cur:
		r := c.next()
		if r != nil && !r.used() && cur+int(r.size) >= n {
			// Carve just enough off r, then absorb it. A grow
			// smaller than a chunk header floors the carve request
			// at zero, which carves one header's worth off r, or
			// all of r when its leftover would be too small to
			// track.
			need := n - cur - chunkHdr
			if need < 0 {
				need = 0
			}
			p.splitFree(r, need)
			c.size += r.size
			c.setLast(r.last())
			if nx := c.next(); nx != nil {
				nx.prevLen = c.size
			}
			return q, nil
		}

		r2, err := p.Alloc(n)
		if err != nil {
			return nil, err
		}
		copy(unsafe.Slice((*byte)(r2), cur), unsafe.Slice((*byte)(q), cur))
		if err = p.Free(q); err != nil {
			return nil, err
		}
		return r2, nil
	case n < cur:
		p.splitUsed(c, n)
	}
	return q, nil
}

// jumboAlloc serves a request too large for a normal block from a dedicated
// block holding a single chunk. The chunk records no size; the extent is
// implied by the Sys allocation.
func (p *Pool) jumboAlloc(n int) (unsafe.Pointer, error) {
	m, err := p.sys.Alloc(blockHdrSize + chunkHdr + n)
	if err != nil {
		return nil, err
	}

	b := (*block)(m)
	b.size = uintptr(blockHdrSize + chunkHdr + n)
	b.prev = nil
	b.next = p.blocks
	if p.blocks != nil {
		p.blocks.prev = b
	}
	p.blocks = b

	c := b.first()
	c.prevLen = 0
	c.size = 0
	c.flags = flagUsed | flagLast | flagJumbo
	return c.data(), nil
}

// jumboRealloc delegates to Sys.Realloc and fixes up the block list around
// the possibly moved block.
func (p *Pool) jumboRealloc(c *chunk, n int) (unsafe.Pointer, error) {
	b := jumboBlock(c)
	prev, next := b.prev, b.next
	m, err := p.sys.Realloc(unsafe.Pointer(b), blockHdrSize+chunkHdr+n)
	if err != nil {
		return nil, err
	}

	nb := (*block)(m)
	nb.size = uintptr(blockHdrSize + chunkHdr + n)
	nb.prev, nb.next = prev, next
	if prev != nil {
		prev.next = nb
	} else {
		p.blocks = nb
	}
	if next != nil {
		next.prev = nb
	}
	return nb.first().data(), nil
}

// FreeAll releases every live allocation at once. Jumbo blocks go back to
// the Sys; normal blocks are reinitialized to a single pristine chunk each
// and retained for reuse. No previously returned pointer is valid
// afterwards. The cost is linear in the number of blocks, not in the number
// of live allocations.
func (p *Pool) FreeAll() error {
	p.master = nil
	p.recycler = nil

	var err error
	b := p.blocks
	for b != nil {
		next := b.next
		if b.first().jumbo() {
			p.unlinkBlock(b)
			if e := p.sys.Free(unsafe.Pointer(b)); e != nil && err == nil {
				err = e
			}
		} else {
			p.initBlock(b)
		}
		b = next
	}
	return err
}

// GC returns wholly unused normal blocks to the Sys. Live allocations are
// not disturbed and their pointers remain valid.
func (p *Pool) GC() error {
	var err error
	b := p.blocks
	for b != nil {
		next := b.next
		c := b.first()
		if !c.jumbo() && !c.used() && c.last() {
			// The block's sole chunk is free, so the block can go.
			// Unlink the chunk from whichever list holds it; the
			// master uses nil terminators, the recycler is
			// circular, and the same splice covers both.
			l := c.free()
			if l.next != nil && l.next != c {
				l.next.free().prev = l.prev
			}
			if l.prev != nil && l.prev != c {
				l.prev.free().next = l.next
			}
			switch {
			case p.recycler == c:
				if l.next == c {
					p.recycler = nil
				} else {
					p.recycler = l.next
				}
			case p.master == c:
				p.master = l.next
			}

			p.unlinkBlock(b)
			if e := p.sys.Free(unsafe.Pointer(b)); e != nil && err == nil {
				err = e
			}
		}
		b = next
	}
	return err
}

// Close releases every block still owned by the pool, live allocations
// included, and leaves the pool empty. Call FreeAll first if the Sys memory
// should be given every chance to go back cleanly; Close itself never
// consults the free lists.
func (p *Pool) Close() error {
	var err error
	b := p.blocks
	for b != nil {
		next := b.next
		if e := p.sys.Free(unsafe.Pointer(b)); e != nil && err == nil {
			err = e
		}
		b = next
	}
	p.blocks, p.master, p.recycler = nil, nil, nil
	return err
}

// AllocBytes is Alloc with a []byte result. The slice has length n; its
// capacity is the full chunk payload, so appending within capacity stays
// inside the allocation. It is ok to reslice the result, but only the slice
// as returned (or a reslice sharing its start) identifies the allocation to
// FreeBytes and ReallocBytes.
func (p *Pool) AllocBytes(n int) ([]byte, error) {
	q, err := p.Alloc(mathutil.Max(n, 1))
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*byte)(q), p.usable(q, n))[:n], nil
}

// FreeBytes is Free for a slice obtained from AllocBytes or ReallocBytes.
func (p *Pool) FreeBytes(b []byte) error {
	if cap(b) == 0 {
		return &ErrINVAL{"pool.FreeBytes: not an allocated slice", cap(b)}
	}

	return p.Free(unsafe.Pointer(unsafe.SliceData(b[:1])))
}

// ReallocBytes is Realloc for a slice obtained from AllocBytes or
// ReallocBytes.
func (p *Pool) ReallocBytes(b []byte, n int) ([]byte, error) {
	if cap(b) == 0 {
		return p.AllocBytes(n)
	}

	q, err := p.Realloc(unsafe.Pointer(unsafe.SliceData(b[:1])), mathutil.Max(n, 1))
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*byte)(q), p.usable(q, n))[:n], nil
}

// usable returns the capacity to expose for the allocation at q: the chunk
// payload, or the requested size for jumbo chunks, whose extent the chunk
// header does not record.
func (p *Pool) usable(q unsafe.Pointer, n int) int {
	c := dataChunk(q)
	if c.jumbo() {
		return mathutil.Max(n, 1)
	}

	return c.payload()
}
