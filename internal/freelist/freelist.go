// Package freelist implements the sorted, coalescing free-block allocator
// spec.md §3/§4.2 requires for both the pager's physical-page free list
// and the disk's swap-page free list. It is a single-owner, non-concurrent
// data structure: the spec is explicit that this is not shared across
// threads.
package freelist

import (
	"container/list"
	"errors"
)

var (
	ErrNotEnoughSpace = errors.New("freelist: not enough space")
	ErrInvalidRange   = errors.New("freelist: invalid range")
	ErrDoubleFree     = errors.New("freelist: double free")
)

// block is one free interval [Start, Start+Len).
type block struct {
	Start uint64
	Len   uint64
}

func (b block) end() uint64 { return b.Start + b.Len }

// List is a sorted, coalescing free-block list over the domain
// [begin, begin+len).
type List struct {
	begin uint64
	len   uint64
	elems *list.List // of block, sorted by Start ascending
}

// New creates a free list whose domain is [begin, begin+length) and which
// starts out entirely free.
func New(begin, length uint64) *List {
	fl := &List{begin: begin, len: length, elems: list.New()}
	fl.elems.PushBack(block{Start: begin, Len: length})
	return fl
}

// Allocate finds the first block able to hold n contiguous units and
// carves the allocation from its head, shrinking or removing the block.
func (fl *List) Allocate(n uint64) (uint64, error) {
	if n == 0 {
		return fl.begin, nil
	}

	for e := fl.elems.Front(); e != nil; e = e.Next() {
		b := e.Value.(block)
		if b.Len < n {
			continue
		}

		addr := b.Start
		if b.Len == n {
			fl.elems.Remove(e)
		} else {
			e.Value = block{Start: b.Start + n, Len: b.Len - n}
		}
		return addr, nil
	}

	return 0, ErrNotEnoughSpace
}

// Release returns [addr, addr+n) to the free list, inserting it in sorted
// position and coalescing with either neighbour if contiguous. It is an
// error for the range to fall outside the domain or overlap an existing
// free block (the latter indicates a double free).
func (fl *List) Release(addr, n uint64) error {
	if n == 0 {
		return nil
	}
	if addr < fl.begin || addr+n > fl.begin+fl.len || addr+n < addr {
		return ErrInvalidRange
	}

	newBlock := block{Start: addr, Len: n}

	var insertBefore *list.Element
	for e := fl.elems.Front(); e != nil; e = e.Next() {
		b := e.Value.(block)
		if overlaps(b, newBlock) {
			return ErrDoubleFree
		}
		if b.Start > newBlock.Start {
			insertBefore = e
			break
		}
	}

	var inserted *list.Element
	if insertBefore != nil {
		inserted = fl.elems.InsertBefore(newBlock, insertBefore)
	} else {
		inserted = fl.elems.PushBack(newBlock)
	}

	fl.coalesce(inserted)
	return nil
}

// ReleaseAll resets the list to a single block covering the entire domain.
func (fl *List) ReleaseAll() {
	fl.elems.Init()
	fl.elems.PushBack(block{Start: fl.begin, Len: fl.len})
}

// CanFit reports whether any single free block can satisfy an allocation
// of n units.
func (fl *List) CanFit(n uint64) bool {
	if n == 0 {
		return true
	}
	for e := fl.elems.Front(); e != nil; e = e.Next() {
		if e.Value.(block).Len >= n {
			return true
		}
	}
	return false
}

// Free returns the total number of free units across all blocks.
func (fl *List) Free() uint64 {
	var total uint64
	for e := fl.elems.Front(); e != nil; e = e.Next() {
		total += e.Value.(block).Len
	}
	return total
}

// IsFullyFree reports whether the list has coalesced down to exactly one
// block spanning the entire domain — the invariant spec.md §8.4 checks.
func (fl *List) IsFullyFree() bool {
	if fl.elems.Len() != 1 {
		return false
	}
	b := fl.elems.Front().Value.(block)
	return b.Start == fl.begin && b.Len == fl.len
}

func overlaps(a, b block) bool {
	return a.Start < b.end() && b.Start < a.end()
}

// coalesce merges e with its immediate predecessor/successor if they are
// adjacent, maintaining the "no two blocks satisfy a.start+a.len==b.start"
// invariant.
func (fl *List) coalesce(e *list.Element) {
	if prev := e.Prev(); prev != nil {
		pb := prev.Value.(block)
		eb := e.Value.(block)
		if pb.end() == eb.Start {
			e.Value = block{Start: pb.Start, Len: pb.Len + eb.Len}
			fl.elems.Remove(prev)
		}
	}
	if next := e.Next(); next != nil {
		nb := next.Value.(block)
		eb := e.Value.(block)
		if eb.end() == nb.Start {
			e.Value = block{Start: eb.Start, Len: eb.Len + nb.Len}
			fl.elems.Remove(next)
		}
	}
}
