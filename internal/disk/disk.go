// Package disk is the fixed-size paged swap-backing store spec.md §4.8
// describes: a byte-addressable block store divided into 4 KiB pages,
// with its own free-page list. Only internal/vmem ever calls into it
// (spec.md §5's resource-ownership rule), playing the same narrow,
// single-owner role the teacher gives each of its hardware devices
// (vm/devices.go).
package disk

import (
	"errors"
	"fmt"

	"github.com/Alientation/32-bit-Emulator-sub001/internal/freelist"
)

// PageSize is the fixed page size the whole paging subsystem shares
// (spec.md §4.8, §4.9).
const PageSize = 4096

var (
	ErrInvalidPage = errors.New("disk: invalid page number")
)

// Disk is a fixed-capacity swap store of numPages pages, each PageSize
// bytes, with a free-block list tracking unused page numbers.
type Disk struct {
	pages uint32
	data  []byte
	free  *freelist.List
}

// New creates a disk with numPages pages, all initially free.
func New(numPages uint32) *Disk {
	return &Disk{
		pages: numPages,
		data:  make([]byte, uint64(numPages)*PageSize),
		free:  freelist.New(0, uint64(numPages)),
	}
}

// GetFreePage allocates and returns the number of a free page.
func (d *Disk) GetFreePage() (uint32, error) {
	p, err := d.free.Allocate(1)
	if err != nil {
		return 0, fmt.Errorf("disk: %w", err)
	}
	return uint32(p), nil
}

// ReturnPage releases page p back to the free list.
func (d *Disk) ReturnPage(p uint32) error {
	if err := d.checkPage(p); err != nil {
		return err
	}
	if err := d.free.Release(uint64(p), 1); err != nil {
		return fmt.Errorf("disk: %w", err)
	}
	return nil
}

// ReadPage returns a copy of page p's contents.
func (d *Disk) ReadPage(p uint32) ([]byte, error) {
	if err := d.checkPage(p); err != nil {
		return nil, err
	}
	out := make([]byte, PageSize)
	copy(out, d.data[uint64(p)*PageSize:uint64(p+1)*PageSize])
	return out, nil
}

// WritePage overwrites page p's contents with the first PageSize bytes
// of buf (zero-padding if buf is shorter).
func (d *Disk) WritePage(p uint32, buf []byte) error {
	if err := d.checkPage(p); err != nil {
		return err
	}
	dst := d.data[uint64(p)*PageSize : uint64(p+1)*PageSize]
	n := copy(dst, buf)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return nil
}

// NumPages reports the disk's total page capacity.
func (d *Disk) NumPages() uint32 { return d.pages }

// Free reports how many pages are currently unallocated.
func (d *Disk) Free() uint64 { return d.free.Free() }

func (d *Disk) checkPage(p uint32) error {
	if p >= d.pages {
		return fmt.Errorf("%w: %d", ErrInvalidPage, p)
	}
	return nil
}
