// Package vmem is the demand-paging MMU spec.md §4.9 describes: a
// per-process page table over 4 KiB pages, backed by internal/disk for
// swap, with a CLOCK-replacement physical-page free list shared across
// every process. Grounded on the original source's
// core/emulator32bit/include/emulator32bit/VirtualMemory.h /
// src/VirtualMemory.cpp, and on the teacher's memoryManagement device
// (vm/devices.go) for the "bounds define what a process may touch"
// idiom — its min/max heap addresses became per-process [lo,hi)
// virtual ranges here.
//
// Design notes §9 warns that page tables and physical pages would form
// a reference cycle if each held a pointer to the other; this package
// breaks that cycle the way the spec suggests: PTEs live in a per-
// process map keyed by integer virtual page number, and the reverse
// direction (which process/page owns a resident physical frame, needed
// to find a victim's PTE during eviction) is a separate owner table
// keyed by physical page number, not a back-pointer.
package vmem

import (
	"errors"
	"fmt"

	"github.com/Alientation/32-bit-Emulator-sub001/internal/disk"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/emulog"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/freelist"
)

const PageSize = disk.PageSize

var (
	ErrInvalidAddress     = errors.New("vmem: invalid address")
	ErrNoFreePhysicalPage = errors.New("vmem: no free physical page (swap exhausted)")
	ErrUnknownProcess     = errors.New("vmem: unknown process")
)

// PTE is one page-table entry. Exactly one of {resident in RAM,
// ResidentOnDisk} holds at any moment (spec.md §3): when ResidentOnDisk
// is false, PPage names the backing physical frame; when true, DiskPage
// names the backing swap page and PPage is meaningless.
type PTE struct {
	VPage          uint32
	PPage          uint32
	Dirty          bool
	ResidentOnDisk bool
	DiskPage       uint32
}

type process struct {
	pid    uint32
	lo, hi uint32
	table  map[uint32]*PTE
}

// owner names which process/vpage a resident physical frame currently
// backs, the reverse-lookup table that lets eviction find and update
// the right PTE without a back-pointer from PTE to process.
type owner struct {
	pid   uint32
	vpage uint32
}

// MMU is the whole paging subsystem: every process's page table, the
// physical-page free list, the swap disk, and the CLOCK eviction ring.
type MMU struct {
	disk     *disk.Disk
	physFree *freelist.List

	processes map[uint32]*process
	current   *process

	owners map[uint32]owner // physical page -> owning (pid, vpage)

	clock []uint32 // resident physical pages in CLOCK ring order
	hand  int
	refd  map[uint32]bool // referenced bit, keyed by physical page

	frames frameStore

	log *emulog.Logger
}

// BindFrames installs the physical-memory backing store the MMU reads
// and writes during swap-in and eviction. The driver (cmd/emu32) calls
// this once at wiring time with the bus's RAM device; until then
// MapAddress still works,
// it just treats every swapped-in page as freshly zeroed.
func (m *MMU) BindFrames(f frameStore) { m.frames = f }

// NewRAMFrames allocates a flat physical-frame store sized for
// numPhysPages frames, for use with BindFrames in tests or standalone
// configurations that have no separate bus.
func NewRAMFrames(numPhysPages uint32) *ramFrames {
	return &ramFrames{data: make([]byte, uint64(numPhysPages)*PageSize)}
}

// New creates an MMU with numPhysPages physical frames and a swap disk
// of swapPages pages.
func New(numPhysPages, swapPages uint32, log *emulog.Logger) *MMU {
	if log == nil {
		log = emulog.Noop()
	}
	return &MMU{
		disk:      disk.New(swapPages),
		physFree:  freelist.New(0, uint64(numPhysPages)),
		processes: make(map[uint32]*process),
		owners:    make(map[uint32]owner),
		refd:      make(map[uint32]bool),
		log:       log,
	}
}

// BeginProcess creates a fresh, empty page table for pid covering
// virtual addresses [lo, hi). Pages are demand-allocated on first
// access (MapAddress), not eagerly reserved here.
func (m *MMU) BeginProcess(pid uint32, lo, hi uint32) {
	m.processes[pid] = &process{pid: pid, lo: lo, hi: hi, table: make(map[uint32]*PTE)}
}

// EndProcess tears pid's table down: every resident physical page is
// returned to the free list, every disk page it ever held is returned
// to swap, and the table itself is dropped. Writing dirty data back is
// pointless for a process that is going away, so eviction here skips
// the write-back step map_address's eviction path requires.
func (m *MMU) EndProcess(pid uint32) error {
	p, ok := m.processes[pid]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownProcess, pid)
	}
	for _, pte := range p.table {
		if !pte.ResidentOnDisk {
			m.freePhysical(pte.PPage)
		} else {
			_ = m.disk.ReturnPage(pte.DiskPage)
		}
	}
	delete(m.processes, pid)
	if m.current == p {
		m.current = nil
	}
	return nil
}

// SetProcess binds pid as the active translation context. pid==0 with
// no matching process unbinds (bare-metal mode).
func (m *MMU) SetProcess(pid uint32) error {
	p, ok := m.processes[pid]
	if !ok {
		if pid == 0 {
			m.current = nil
			return nil
		}
		return fmt.Errorf("%w: %d", ErrUnknownProcess, pid)
	}
	m.current = p
	return nil
}

// Unbind clears the active process, returning the MMU to bare-metal
// passthrough mode.
func (m *MMU) Unbind() { m.current = nil }

// MapAddress is the translation primitive spec.md §4.9 specifies: with
// no bound process it is the identity function; otherwise it demand-
// allocates a disk page for a never-seen virtual page, swaps a disk-
// resident page into RAM (evicting a victim if physical memory is
// full), and returns the physical byte address.
func (m *MMU) MapAddress(va uint32) (uint32, error) {
	if m.current == nil {
		return va, nil
	}
	p := m.current
	if va < p.lo || va >= p.hi {
		return 0, fmt.Errorf("%w: %#x outside process range [%#x,%#x)", ErrInvalidAddress, va, p.lo, p.hi)
	}

	vpage := va >> 12
	pte, ok := p.table[vpage]
	if !ok {
		diskPage, err := m.disk.GetFreePage()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrNoFreePhysicalPage, err)
		}
		if err := m.disk.WritePage(diskPage, nil); err != nil {
			return 0, err
		}
		pte = &PTE{VPage: vpage, ResidentOnDisk: true, DiskPage: diskPage}
		p.table[vpage] = pte
		m.log.Debugw("vmem: demand-zero page created", "pid", p.pid, "vpage", vpage, "diskPage", diskPage)
	}

	if pte.ResidentOnDisk {
		if err := m.swapIn(p, pte); err != nil {
			return 0, err
		}
	}

	m.markReferenced(pte.PPage)
	return pte.PPage*PageSize + (va & (PageSize - 1)), nil
}

// MarkDirty records that the page backing va has been written through,
// so eviction writes it back to swap before reusing its frame. The bus
// calls this on every write that goes through translation.
func (m *MMU) MarkDirty(va uint32) {
	if m.current == nil {
		return
	}
	pte, ok := m.current.table[va>>12]
	if ok && !pte.ResidentOnDisk {
		pte.Dirty = true
	}
}

// swapIn brings pte's page into a physical frame, evicting a CLOCK
// victim first if none is free, then frees the disk page it occupied:
// the PTE invariant allows only one of {RAM, disk} to hold the data.
func (m *MMU) swapIn(p *process, pte *PTE) error {
	ppage, err := m.allocPhysical()
	if err != nil {
		return err
	}

	body, err := m.disk.ReadPage(pte.DiskPage)
	if err != nil {
		return err
	}
	m.copyIntoFrame(ppage, body)

	diskPage := pte.DiskPage
	pte.PPage = ppage
	pte.ResidentOnDisk = false
	pte.Dirty = false
	pte.DiskPage = 0

	if err := m.disk.ReturnPage(diskPage); err != nil {
		return err
	}

	m.owners[ppage] = owner{pid: p.pid, vpage: pte.VPage}
	m.clock = append(m.clock, ppage)
	m.refd[ppage] = true
	return nil
}

// allocPhysical returns a free physical frame, evicting a CLOCK victim
// first if the free list is exhausted.
func (m *MMU) allocPhysical() (uint32, error) {
	if m.physFree.CanFit(1) {
		addr, err := m.physFree.Allocate(1)
		if err != nil {
			return 0, err
		}
		return uint32(addr), nil
	}
	return m.evictOne()
}

// evictOne runs one step of second-chance CLOCK over the resident
// frames: a referenced frame gets its bit cleared and is skipped; the
// first frame found with a clear bit is the victim. Re-entrant safe
// against a fault handler that already holds a page, because the
// caller always holds the only reference to the frame it is about to
// hand out — eviction never touches a frame mid-allocation.
func (m *MMU) evictOne() (uint32, error) {
	if len(m.clock) == 0 {
		return 0, ErrNoFreePhysicalPage
	}

	for i := 0; i < 2*len(m.clock); i++ {
		idx := m.hand % len(m.clock)
		victim := m.clock[idx]
		if m.refd[victim] {
			m.refd[victim] = false
			m.hand++
			continue
		}

		own := m.owners[victim]
		proc, ok := m.processes[own.pid]
		if !ok {
			return 0, fmt.Errorf("vmem: evict: %w: %d", ErrUnknownProcess, own.pid)
		}
		pte := proc.table[own.vpage]

		// swapIn gave the page's previous disk page back to swap, so the
		// frame is the only copy of its data, dirty or not.
		if err := m.writeBack(victim, pte); err != nil {
			return 0, err
		}
		pte.ResidentOnDisk = true
		pte.PPage = 0
		pte.Dirty = false

		m.clock = append(m.clock[:idx], m.clock[idx+1:]...)
		delete(m.owners, victim)
		delete(m.refd, victim)
		if m.hand > idx {
			m.hand--
		}
		m.log.Debugw("vmem: evicted page", "pid", own.pid, "vpage", own.vpage, "ppage", victim)
		return victim, nil
	}
	return 0, ErrNoFreePhysicalPage
}

// writeBack copies frame's contents to a fresh disk page and records it
// on pte before the frame is reused.
func (m *MMU) writeBack(ppage uint32, pte *PTE) error {
	diskPage, err := m.disk.GetFreePage()
	if err != nil {
		return err
	}
	if err := m.disk.WritePage(diskPage, m.frame(ppage)); err != nil {
		return err
	}
	pte.DiskPage = diskPage
	return nil
}

func (m *MMU) markReferenced(ppage uint32) { m.refd[ppage] = true }

func (m *MMU) freePhysical(ppage uint32) {
	_ = m.physFree.Release(uint64(ppage), 1)
	for i, p := range m.clock {
		if p == ppage {
			m.clock = append(m.clock[:i], m.clock[i+1:]...)
			if m.hand > i {
				m.hand--
			}
			break
		}
	}
	delete(m.owners, ppage)
	delete(m.refd, ppage)
}

// frameStore is installed via BindFrames so the MMU can read/write
// physical frame contents during swap-in/eviction without owning the
// RAM device itself — the bus still owns RAM exclusively, per spec.md
// §5; the MMU only ever touches it through this narrow hook.
type frameStore interface {
	ReadFrame(ppage uint32) []byte
	WriteFrame(ppage uint32, data []byte)
}

var _ frameStore = (*ramFrames)(nil)

// ramFrames is a standalone physical-frame store, a flat byte array
// sized to a physical-page count, for configurations without a bus RAM
// device (e.g. unit tests that exercise paging alone). It is installed
// only through BindFrames(NewRAMFrames(n)); a bus-wired MMU binds the
// bus's RAM device instead.
type ramFrames struct {
	data []byte
}

func (r *ramFrames) ReadFrame(ppage uint32) []byte {
	return r.data[uint64(ppage)*PageSize : uint64(ppage+1)*PageSize]
}

func (r *ramFrames) WriteFrame(ppage uint32, buf []byte) {
	copy(r.data[uint64(ppage)*PageSize:uint64(ppage+1)*PageSize], buf)
}

func (m *MMU) frame(ppage uint32) []byte {
	if m.frames == nil {
		return make([]byte, PageSize)
	}
	return m.frames.ReadFrame(ppage)
}

func (m *MMU) copyIntoFrame(ppage uint32, body []byte) {
	if m.frames == nil {
		return
	}
	m.frames.WriteFrame(ppage, body)
}
