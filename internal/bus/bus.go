package bus

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/Alientation/32-bit-Emulator-sub001/internal/emulog"
)

// translator is the subset of vmem.MMU the bus needs: turning a virtual
// address into a physical one. Declared locally so bus does not import
// vmem directly — the driver (cmd/emu32) wires the two together via
// BindMMU, keeping the
// dependency direction spec.md §5 draws (bus is a leaf; vmem and cpu sit
// above it).
type translator interface {
	MapAddress(va uint32) (uint32, error)
	MarkDirty(va uint32)
}

// region pairs a Device with whether accesses to it first pass through
// virtual-address translation.
type region struct {
	dev          Device
	memoryMapped bool
}

// Bus is the flat address space every device is installed into. Region
// spans must not overlap; construction fails fast with
// ErrConflictAddresses rather than let two devices silently alias.
type Bus struct {
	regions []region
	mmu     translator
	log     *emulog.Logger
}

// New creates an empty bus. Call Mount for each device before use.
func New(log *emulog.Logger) *Bus {
	if log == nil {
		log = emulog.Noop()
	}
	return &Bus{log: log}
}

// BindMMU installs the translator used for regions mounted with
// memoryMapped=true. Without one, a memory-mapped region's addresses
// are used unmodified (bare-metal passthrough, matching vmem.MMU's own
// default-unbound behaviour).
func (b *Bus) BindMMU(mmu translator) { b.mmu = mmu }

// Mount installs dev at its own Base()/Size() span. memoryMapped marks
// whether accesses to dev route through virtual-address translation
// first.
func (b *Bus) Mount(dev Device, memoryMapped bool) error {
	newLo, newHi := dev.Base(), uint64(dev.Base())+uint64(dev.Size())
	for _, r := range b.regions {
		lo, hi := r.dev.Base(), uint64(r.dev.Base())+uint64(r.dev.Size())
		if uint64(newLo) < hi && lo < uint32(newHi) {
			return fmt.Errorf("%w: %s[%#x,%#x) vs %s[%#x,%#x)",
				ErrConflictAddresses, dev.Name(), newLo, newHi, r.dev.Name(), lo, hi)
		}
	}
	b.regions = append(b.regions, region{dev: dev, memoryMapped: memoryMapped})
	sort.Slice(b.regions, func(i, j int) bool { return b.regions[i].dev.Base() < b.regions[j].dev.Base() })
	b.log.Debugw("bus: mounted device", "name", dev.Name(), "base", dev.Base(), "size", dev.Size(), "mm", memoryMapped)
	return nil
}

// translate resolves va through the region's MMU binding if it is
// memory-mapped, otherwise returns it unchanged.
func (b *Bus) translate(r region, va uint32) (uint32, error) {
	if !r.memoryMapped || b.mmu == nil {
		return va, nil
	}
	return b.mmu.MapAddress(va)
}

// find locates the region owning va and returns the region plus the
// address translated into that region's device-local offset space
// (still a bus address, prior to subtracting dev.Base()).
func (b *Bus) find(va uint32) (region, uint32, error) {
	for _, r := range b.regions {
		lo, hi := r.dev.Base(), uint64(r.dev.Base())+uint64(r.dev.Size())
		if uint64(va) >= lo && uint64(va) < hi {
			return r, va, nil
		}
	}
	return region{}, 0, fmt.Errorf("%w: %#x", ErrInvalidAddress, va)
}

// ReadByte reads a single byte at virtual/physical address va,
// resolving it through translation first if the owning region is
// memory-mapped.
func (b *Bus) ReadByte(va uint32) (byte, error) {
	r, _, err := b.find(va)
	if err != nil {
		return 0, err
	}
	pa, err := b.translate(r, va)
	if err != nil {
		return 0, err
	}
	r2, offset, err := b.findPhysical(r, pa)
	if err != nil {
		return 0, err
	}
	return r2.dev.ReadByte(offset), nil
}

// findPhysical re-resolves a translated physical address to its owning
// device, since translation may move it out of the region that first
// received the virtual address (the MMU's physical frames live in the
// RAM device, regardless of which memory-mapped region issued the
// virtual access).
func (b *Bus) findPhysical(fallback region, pa uint32) (region, uint32, error) {
	r, _, err := b.find(pa)
	if err != nil {
		if !fallback.memoryMapped {
			return fallback, pa - fallback.dev.Base(), nil
		}
		return region{}, 0, err
	}
	return r, pa - r.dev.Base(), nil
}

func (b *Bus) WriteByte(va uint32, v byte) error {
	r, _, err := b.find(va)
	if err != nil {
		return err
	}
	pa, err := b.translate(r, va)
	if err != nil {
		return err
	}
	r2, offset, err := b.findPhysical(r, pa)
	if err != nil {
		return err
	}
	if r2.dev.ReadOnly() {
		return fmt.Errorf("%w: %s", ErrAccessDenied, r2.dev.Name())
	}
	if err := r2.dev.WriteByte(offset, v); err != nil {
		return err
	}
	if r.memoryMapped && b.mmu != nil {
		b.mmu.MarkDirty(va)
	}
	return nil
}

// ReadHword/ReadWord/WriteHword/WriteWord compose ReadByte/WriteByte in
// little-endian order, matching the PackWord/PackHalf layout of
// internal/bitutil.
func (b *Bus) ReadHword(va uint32) (uint16, error) {
	var buf [2]byte
	for i := range buf {
		v, err := b.ReadByte(va + uint32(i))
		if err != nil {
			return 0, err
		}
		buf[i] = v
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (b *Bus) WriteHword(va uint32, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	for i, bb := range buf {
		if err := b.WriteByte(va+uint32(i), bb); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) ReadWord(va uint32) (uint32, error) {
	var buf [4]byte
	for i := range buf {
		v, err := b.ReadByte(va + uint32(i))
		if err != nil {
			return 0, err
		}
		buf[i] = v
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (b *Bus) WriteWord(va uint32, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	for i, bb := range buf {
		if err := b.WriteByte(va+uint32(i), bb); err != nil {
			return err
		}
	}
	return nil
}
