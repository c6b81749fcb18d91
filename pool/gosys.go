// Copyright 2026 The WOF-Alloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// A Go-heap implementation of Sys.

package pool

import (
	"unsafe"
)

// GoSys is a Sys backed by the Go heap. Every region is carved out of a
// []byte kept in a registry map, which pins the memory for the garbage
// collector (pointers stored inside the regions are invisible to it) and
// lets Free reject pointers it never handed out. It is the Sys used when
// Options.Sys is left nil.
type GoSys struct {
	regs map[unsafe.Pointer][]byte
}

var _ Sys = &GoSys{} // Ensure GoSys is a Sys.

// NewGoSys returns a new, empty GoSys.
func NewGoSys() *GoSys {
	return &GoSys{regs: map[unsafe.Pointer][]byte{}}
}

// Alloc implements Sys. The slack needed to align the region start is hidden
// inside the backing slice.
func (s *GoSys) Alloc(n int) (unsafe.Pointer, error) {
	if n <= 0 {
		return nil, &ErrINVAL{"GoSys.Alloc: invalid size", n}
	}

	b := make([]byte, n+align)
	p := unsafe.Pointer(&b[0])
	p = unsafe.Add(p, (align-uintptr(p)%align)%align)
	s.regs[p] = b
	return p, nil
}

// Realloc implements Sys.
func (s *GoSys) Realloc(p unsafe.Pointer, n int) (unsafe.Pointer, error) {
	old, ok := s.regs[p]
	if !ok {
		return nil, &ErrINVAL{"GoSys.Realloc: unknown pointer", p}
	}

	r, err := s.Alloc(n)
	if err != nil {
		return nil, err
	}

	off := int(uintptr(p) - uintptr(unsafe.Pointer(&old[0])))
	copy(unsafe.Slice((*byte)(r), n), old[off:])
	delete(s.regs, p)
	return r, nil
}

// Free implements Sys.
func (s *GoSys) Free(p unsafe.Pointer) error {
	if _, ok := s.regs[p]; !ok {
		return &ErrINVAL{"GoSys.Free: unknown pointer", p}
	}

	delete(s.regs, p)
	return nil
}

// Bytes returns the number of bytes currently held from the Go heap.
func (s *GoSys) Bytes() int {
	n := 0
	for _, b := range s.regs {
		n += len(b)
	}
	return n
}

// Regions returns the number of live regions.
func (s *GoSys) Regions() int { return len(s.regs) }
