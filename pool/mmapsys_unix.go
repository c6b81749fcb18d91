// Copyright 2026 The WOF-Alloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// A mmap(2) backed implementation of Sys.

//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package pool

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MmapSys is a Sys backed by anonymous private memory mappings. The memory it
// returns is invisible to the Go garbage collector, so a pool on top of it
// adds no GC scanning or heap growth pressure; the cost is page granularity
// on every region. Realloc maps a fresh region and copies.
type MmapSys struct {
	regs map[unsafe.Pointer][]byte
}

var _ Sys = &MmapSys{} // Ensure MmapSys is a Sys.

// NewMmapSys returns a new, empty MmapSys.
func NewMmapSys() *MmapSys {
	return &MmapSys{regs: map[unsafe.Pointer][]byte{}}
}

// Alloc implements Sys. Mappings are page aligned, which satisfies any align.
func (s *MmapSys) Alloc(n int) (unsafe.Pointer, error) {
	if n <= 0 {
		return nil, &ErrINVAL{"MmapSys.Alloc: invalid size", n}
	}

	b, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrap(err, "MmapSys.Alloc: mmap")
	}

	p := unsafe.Pointer(&b[0])
	s.regs[p] = b
	return p, nil
}

// Realloc implements Sys.
func (s *MmapSys) Realloc(p unsafe.Pointer, n int) (unsafe.Pointer, error) {
	old, ok := s.regs[p]
	if !ok {
		return nil, &ErrINVAL{"MmapSys.Realloc: unknown pointer", p}
	}

	r, err := s.Alloc(n)
	if err != nil {
		return nil, err
	}

	copy(unsafe.Slice((*byte)(r), n), old)
	delete(s.regs, p)
	if err = unix.Munmap(old); err != nil {
		return nil, errors.Wrap(err, "MmapSys.Realloc: munmap")
	}

	return r, nil
}

// Free implements Sys.
func (s *MmapSys) Free(p unsafe.Pointer) error {
	b, ok := s.regs[p]
	if !ok {
		return &ErrINVAL{"MmapSys.Free: unknown pointer", p}
	}

	delete(s.regs, p)
	return errors.Wrap(unix.Munmap(b), "MmapSys.Free: munmap")
}

// Regions returns the number of live mappings.
func (s *MmapSys) Regions() int { return len(s.regs) }
