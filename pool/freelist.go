// Copyright 2026 The WOF-Alloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The two cooperating free lists: the master stack of pristine chunks and
// the recycler ring of reusable ones.

package pool

// masterPush makes c the new top of the master stack. Only initBlock pushes
// here, with the single chunk of a fresh or reinitialized block, so every
// pushed member is large enough to serve any non-jumbo request. The
// master-head promotion in mergeFree replaces the head in place instead.
func (p *Pool) masterPush(c *chunk) {
	l := c.free()
	l.prev = nil
	l.next = p.master
	if p.master != nil {
		p.master.free().prev = c
	}
	p.master = c
}

// masterPop removes and returns the top of the master stack. The stack must
// not be empty.
func (p *Pool) masterPop() *chunk {
	c := p.master
	p.master = c.free().next
	if p.master != nil {
		p.master.free().prev = nil
	}
	return c
}

// recyclerAdd splices c immediately counter-clockwise of the ring head. If c
// is larger than the head, the head moves to c.
func (p *Pool) recyclerAdd(c *chunk) {
	l := c.free()
	head := p.recycler
	if head == nil {
		l.prev, l.next = c, c
		p.recycler = c
		return
	}

	hl := head.free()
	l.prev = hl.prev
	l.next = head
	hl.prev.free().next = c
	hl.prev = c
	if c.size > head.size {
		p.recycler = c
	}
}

// recyclerRemove unlinks c from the ring. If c was the head, the head
// advances clockwise, or clears when c was the only member.
func (p *Pool) recyclerRemove(c *chunk) {
	l := c.free()
	if l.next == c {
		p.recycler = nil
		return
	}

	l.prev.free().next = l.next
	l.next.free().prev = l.prev
	if p.recycler == c {
		p.recycler = l.next
	}
}

// recyclerCycle rotates the ring by one position. When the clockwise
// neighbour of the head is smaller than the head, the head holds its place
// and the neighbour is moved behind it instead; a strictly largest chunk
// therefore stays at the head once it arrives, and reaches it within one full
// revolution. One cycle runs after every successful allocation, amortizing
// the search for a large reusable chunk without ever scanning the ring.
func (p *Pool) recyclerCycle() {
	head := p.recycler
	if head == nil {
		return
	}

	n := head.free().next
	if n == head {
		return
	}

	if n.size < head.size {
		p.recyclerRemove(n)
		p.recyclerAdd(n)
		return
	}

	p.recycler = n
}
