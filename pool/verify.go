// Copyright 2026 The WOF-Alloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Structural verification of a pool.

package pool

import (
	"unsafe"

	"github.com/cznic/mathutil"
)

// Stats records aggregate information about a Pool. It can be optionally
// filled by Verify, if successful.
type Stats struct {
	Blocks         int   // blocks owned, jumbo included
	JumboBlocks    int   // dedicated one-chunk blocks
	Chunks         int   // chunks across all blocks
	UsedChunks     int   // chunks allocated to callers
	FreeChunks     int   // chunks available or awaiting coalescing
	UsedBytes      int64 // payload bytes allocated to callers
	FreeBytes      int64 // payload bytes in free chunks
	MasterChunks   int   // members of the master stack
	RecyclerChunks int   // members of the recycler ring
	MaxFree        int   // largest free payload
}

var nolog = func(error) bool { return false }

// Verify attempts to find any structural errors in the pool: chunk chains
// that do not cover their blocks, mismatched back distances, adjacent free
// chunks, malformed jumbo blocks, free list members in the wrong state,
// broken master back links or recycler circularity, and trackable free
// chunks lost from both lists. The first problem found is reported to log
// and returned; passing a nil log works like providing a log function always
// returning false. Statistics are returned via stats if non nil; they are
// valid only if Verify returns nil.
//
// Verify walks every chunk of every block and both free lists. It is meant
// for tests and debugging, not for per-operation use in production.
func (p *Pool) Verify(log func(error) bool, stats *Stats) (err error) {
	if log == nil {
		log = nolog
	}

	fail := func(e error) error {
		log(e)
		return e
	}

	var st Stats
	free := map[*chunk]bool{} // trackable free chunks found in the block walk
	seen := map[*chunk]bool{} // chunks reached from a free list

	for b := p.blocks; b != nil; b = b.next {
		st.Blocks++
		c := b.first()

		if c.jumbo() {
			if !c.used() || !c.last() || c.prevLen != 0 {
				return fail(&ErrILSEQ{Type: ErrJumboShape})
			}
			st.JumboBlocks++
			st.Chunks++
			st.UsedChunks++
			st.UsedBytes += int64(b.size) - int64(blockHdrSize) - chunkHdr
			continue
		}

		span := int64(b.size) - int64(blockHdrSize)
		var off int64
		var prevSize uint32
		prevFree := false
		for n := 0; ; n++ {
			if n > int(b.size)/chunkHdr {
				return fail(&ErrILSEQ{Type: ErrChunkChain, Off: off})
			}

			if c.jumbo() {
				return fail(&ErrILSEQ{Type: ErrJumboShape, Off: off})
			}

			sz := int64(c.size)
			if sz < chunkHdr || sz%align != 0 || off+sz > span {
				return fail(&ErrILSEQ{Type: ErrChunkSize, Off: off, Arg: sz})
			}

			if c.prevLen != prevSize {
				return fail(&ErrILSEQ{Type: ErrPrevLen, Off: off, Arg: int64(c.prevLen), Arg2: int64(prevSize)})
			}

			st.Chunks++
			if c.used() {
				st.UsedChunks++
				st.UsedBytes += sz - chunkHdr
				prevFree = false
			} else {
				if prevFree {
					return fail(&ErrILSEQ{Type: ErrAdjacentFree, Off: off})
				}

				prevFree = true
				st.FreeChunks++
				st.FreeBytes += sz - chunkHdr
				if c.trackable() {
					free[c] = true
					st.MaxFree = mathutil.Max(st.MaxFree, c.payload())
				}
			}

			off += sz
			if c.last() {
				break
			}

			prevSize = c.size
			c = (*chunk)(unsafe.Add(unsafe.Pointer(c), uintptr(c.size)))
		}

		if off != span {
			return fail(&ErrILSEQ{Type: ErrBlockLen, Arg: off, Arg2: span})
		}
	}

	check := func(c *chunk) error {
		if c.used() || c.jumbo() {
			return fail(&ErrILSEQ{Type: ErrListFlags})
		}
		if !free[c] {
			return fail(&ErrILSEQ{Type: ErrListMember})
		}
		if seen[c] {
			return fail(&ErrILSEQ{Type: ErrDupList})
		}

		seen[c] = true
		return nil
	}

	var prev *chunk
	for c := p.master; c != nil; c = c.free().next {
		if err = check(c); err != nil {
			return
		}

		if c.free().prev != prev {
			return fail(&ErrILSEQ{Type: ErrListChain})
		}

		prev = c
		st.MasterChunks++
	}

	if h := p.recycler; h != nil {
		for c := h; ; {
			if err = check(c); err != nil {
				return
			}

			st.RecyclerChunks++
			nx := c.free().next
			if nx == nil || nx.free().prev != c {
				return fail(&ErrILSEQ{Type: ErrRingBroken})
			}

			if c = nx; c == h {
				break
			}
		}
	}

	for c := range free {
		if !seen[c] {
			return fail(&ErrILSEQ{Type: ErrLostFree})
		}
	}

	if stats != nil {
		*stats = st
	}
	return nil
}
