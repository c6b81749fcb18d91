// Copyright 2026 The WOF-Alloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Error types the pool can produce.

package pool

import (
	"fmt"
)

// ErrINVAL reports an invalid argument or a detected contract violation, like
// freeing a pointer the backing Sys has never handed out.
type ErrINVAL struct {
	Src string
	Val interface{}
}

// Error implements the built in error type.
func (e *ErrINVAL) Error() string { return fmt.Sprintf("%s: %v", e.Src, e.Val) }

// ErrType is the type of a structural problem found by Verify.
type ErrType int

// Verify error codes.
const (
	ErrOther        ErrType = iota // misc, see More
	ErrChunkSize                   // chunk size not a positive multiple of align, or past block end
	ErrChunkChain                  // chunk chain does not terminate
	ErrPrevLen                     // prevLen does not match the size of the left neighbour
	ErrBlockLen                    // chunk chain does not cover the block exactly
	ErrAdjacentFree                // two neighbouring chunks are both free
	ErrJumboShape                  // jumbo chunk with wrong flags or a sibling
	ErrListFlags                   // free list member is used or jumbo
	ErrListMember                  // free list member is not a live trackable free chunk
	ErrDupList                     // chunk reachable from a free list more than once
	ErrListChain                   // master stack back links are inconsistent
	ErrRingBroken                  // recycler ring is not circular
	ErrLostFree                    // trackable free chunk reachable from no list
)

// ErrILSEQ reports a corrupted pool structure, found by Verify. Off is the
// byte offset of the offending chunk from the first chunk of its block (that
// is, past the block header), where known.
type ErrILSEQ struct {
	Type ErrType
	Off  int64
	Arg  int64
	Arg2 int64
	More error
}

// Error implements the built in error type.
func (e *ErrILSEQ) Error() string {
	switch e.Type {
	case ErrChunkSize:
		return fmt.Sprintf("invalid chunk size %#x at offset %#x", e.Arg, e.Off)
	case ErrChunkChain:
		return fmt.Sprintf("chunk chain does not terminate, at offset %#x", e.Off)
	case ErrPrevLen:
		return fmt.Sprintf("chunk at offset %#x has prevLen %#x, left neighbour size is %#x", e.Off, e.Arg, e.Arg2)
	case ErrBlockLen:
		return fmt.Sprintf("chunk chain covers %#x bytes of a %#x byte block", e.Arg, e.Arg2)
	case ErrAdjacentFree:
		return fmt.Sprintf("two adjacent free chunks, second at offset %#x", e.Off)
	case ErrJumboShape:
		return fmt.Sprintf("malformed jumbo block, chunk at offset %#x", e.Off)
	case ErrListFlags:
		return fmt.Sprintf("free list member at offset %#x is used or jumbo", e.Off)
	case ErrListMember:
		return fmt.Sprintf("free list member at offset %#x is not a trackable free chunk", e.Off)
	case ErrDupList:
		return fmt.Sprintf("chunk at offset %#x reachable from a free list twice", e.Off)
	case ErrListChain:
		return fmt.Sprintf("master stack back link broken at offset %#x", e.Off)
	case ErrRingBroken:
		return fmt.Sprintf("recycler ring not circular at offset %#x", e.Off)
	case ErrLostFree:
		return fmt.Sprintf("free chunk at offset %#x is in no free list", e.Off)
	}

	more := ""
	if e.More != nil {
		more = ", " + e.More.Error()
	}
	return fmt.Sprintf("error at offset %#x%s", e.Off, more)
}
