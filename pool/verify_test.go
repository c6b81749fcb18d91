// Copyright 2026 The WOF-Alloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pool

import (
	"testing"
	"unsafe"
)

// buildVerifyPool returns a pool with six live 48 byte allocations in one
// block, of which #1 and #3 have been freed again: the recycler holds two
// chunks, the master holds the block tail.
func buildVerifyPool(t *testing.T) (*Pool, []unsafe.Pointer) {
	p, err := New(&Options{BlockSize: 2048})
	if err != nil {
		t.Fatal(err)
	}

	qs := make([]unsafe.Pointer, 6)
	for i := range qs {
		if qs[i], err = p.Alloc(48); err != nil {
			t.Fatal(err)
		}
	}

	if err = p.Free(qs[1]); err != nil {
		t.Fatal(err)
	}

	if err = p.Free(qs[3]); err != nil {
		t.Fatal(err)
	}

	if err = p.Verify(nil, nil); err != nil {
		t.Fatal(err)
	}

	return p, qs
}

func TestVerify(t *testing.T) {
	tab := []struct {
		name   string
		mutate func(t *testing.T, p *Pool, qs []unsafe.Pointer)
		want   ErrType
	}{
		{
			"prevLen mismatch",
			func(t *testing.T, p *Pool, qs []unsafe.Pointer) {
				dataChunk(qs[0]).prevLen = 16
			},
			ErrPrevLen,
		},
		{
			"unaligned chunk size",
			func(t *testing.T, p *Pool, qs []unsafe.Pointer) {
				dataChunk(qs[0]).size = 24
			},
			ErrChunkSize,
		},
		{
			"adjacent free chunks",
			func(t *testing.T, p *Pool, qs []unsafe.Pointer) {
				dataChunk(qs[2]).setUsed(false)
			},
			ErrAdjacentFree,
		},
		{
			"short chunk chain",
			func(t *testing.T, p *Pool, qs []unsafe.Pointer) {
				p.master.size -= 16
			},
			ErrBlockLen,
		},
		{
			"jumbo chunk not used",
			func(t *testing.T, p *Pool, qs []unsafe.Pointer) {
				q, err := p.Alloc(p.MaxAlloc() + 1)
				if err != nil {
					t.Fatal(err)
				}
				dataChunk(q).setUsed(false)
			},
			ErrJumboShape,
		},
		{
			"used chunk in a free list",
			func(t *testing.T, p *Pool, qs []unsafe.Pointer) {
				p.master.setUsed(true)
			},
			ErrListFlags,
		},
		{
			"master back link broken",
			func(t *testing.T, p *Pool, qs []unsafe.Pointer) {
				p.master = p.recycler
			},
			ErrListChain,
		},
		{
			"chunk in two lists",
			func(t *testing.T, p *Pool, qs []unsafe.Pointer) {
				p.master = p.recycler
				p.recycler.free().prev = nil
			},
			ErrDupList,
		},
		{
			"recycler ring broken",
			func(t *testing.T, p *Pool, qs []unsafe.Pointer) {
				p.recycler.free().next.free().prev = p.master
			},
			ErrRingBroken,
		},
		{
			"free chunk lost from both lists",
			func(t *testing.T, p *Pool, qs []unsafe.Pointer) {
				p.recycler = nil
			},
			ErrLostFree,
		},
	}

	for _, test := range tab {
		t.Run(test.name, func(t *testing.T) {
			p, qs := buildVerifyPool(t)
			test.mutate(t, p, qs)

			var errs []error
			err := p.Verify(func(e error) bool {
				errs = append(errs, e)
				return true
			}, nil)
			if err == nil {
				t.Fatal("corruption not detected")
			}

			e, ok := err.(*ErrILSEQ)
			if !ok {
				t.Fatalf("unexpected error type %T: %v", err, err)
			}

			if e.Type != test.want {
				t.Fatalf("got type %d (%v), want %d", e.Type, e, test.want)
			}

			if len(errs) == 0 {
				t.Fatal("error not reported to log")
			}
		})
	}
}

func TestVerifyStats(t *testing.T) {
	p, _ := buildVerifyPool(t)

	var st Stats
	if err := p.Verify(nil, &st); err != nil {
		t.Fatal(err)
	}

	if st.Blocks != 1 || st.JumboBlocks != 0 {
		t.Fatal(st)
	}

	// Six allocations, two of them freed again, plus the block tail.
	if st.Chunks != 7 || st.UsedChunks != 4 || st.FreeChunks != 3 {
		t.Fatal(st)
	}

	if st.MasterChunks != 1 || st.RecyclerChunks != 2 {
		t.Fatal(st)
	}

	if g, e := st.UsedBytes+st.FreeBytes+int64(st.Chunks)*chunkHdr, int64(2048-blockHdrSize); g != e {
		t.Fatal(g, e)
	}
}
