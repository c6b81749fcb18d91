// Copyright 2026 The WOF-Alloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// An abstraction of the OS-level allocator supplying the large backing
// blocks a Pool carves its chunks from.

package pool

import (
	"unsafe"
)

// A Sys supplies and releases the byte-granular backing regions a Pool
// partitions into chunks. A Pool calls into its Sys rarely: once per
// BlockSize worth of allocations on average, plus during GC and on the jumbo
// path. A Sys is not safe for concurrent access; it is designed for
// consumption by a single Pool, which is itself single-owner.
//
// Alloc returns a region of exactly n bytes whose address is aligned to at
// least align (16). Realloc may move the region; the first min(old, n) bytes
// are preserved. Free accepts only pointers previously returned by Alloc or
// Realloc of the same Sys and not yet freed.
type Sys interface {
	Alloc(n int) (unsafe.Pointer, error)
	Realloc(p unsafe.Pointer, n int) (unsafe.Pointer, error)
	Free(p unsafe.Pointer) error
}
