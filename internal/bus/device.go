// Package bus is the system bus spec.md §4.10 describes: a set of
// non-overlapping memory-mapped devices addressed by a flat 32-bit
// address space, with byte/halfword/word accessors and an optional
// per-region virtual-address translation step. Grounded on the
// teacher's vm/devices.go HardwareDevice pattern (a DeviceBaseInfo
// naming each device's address span, dispatched on by the bus/VM), cut
// down to the spec's single-threaded, non-goroutine model: spec.md §5
// is explicit the bus is not concurrent.
package bus

import (
	"errors"
	"fmt"
)

var (
	ErrConflictAddresses = errors.New("bus: device address ranges overlap")
	ErrInvalidAddress    = errors.New("bus: address not mapped to any device")
	ErrAccessDenied      = errors.New("bus: write denied (read-only device)")
)

// Device is one addressable region on the bus.
type Device interface {
	Name() string
	Base() uint32
	Size() uint32
	ReadOnly() bool
	ReadByte(offset uint32) byte
	WriteByte(offset uint32, v byte) error
}

// RAM is a flat, writable byte-addressable device.
type RAM struct {
	name string
	base uint32
	data []byte
}

// NewRAM creates a RAM device of size bytes based at base.
func NewRAM(name string, base, size uint32) *RAM {
	return &RAM{name: name, base: base, data: make([]byte, size)}
}

func (r *RAM) Name() string   { return r.name }
func (r *RAM) Base() uint32   { return r.base }
func (r *RAM) Size() uint32   { return uint32(len(r.data)) }
func (r *RAM) ReadOnly() bool { return false }

func (r *RAM) ReadByte(offset uint32) byte { return r.data[offset] }
func (r *RAM) WriteByte(offset uint32, v byte) error {
	r.data[offset] = v
	return nil
}

// ReadFrame and WriteFrame let internal/vmem use a RAM device directly
// as its physical-frame backing store (vmem.frameStore), so the bus
// and the MMU share one underlying array instead of copying pages
// between two owners.
func (r *RAM) ReadFrame(ppage uint32) []byte {
	start := uint64(ppage) * frameSize
	return r.data[start : start+frameSize]
}

func (r *RAM) WriteFrame(ppage uint32, buf []byte) {
	start := uint64(ppage) * frameSize
	copy(r.data[start:start+frameSize], buf)
}

const frameSize = 4096

// ROM is a preloaded, read-only byte-addressable device.
type ROM struct {
	name string
	base uint32
	data []byte
}

// NewROM creates a ROM device preloaded with contents, based at base.
func NewROM(name string, base uint32, contents []byte) *ROM {
	data := make([]byte, len(contents))
	copy(data, contents)
	return &ROM{name: name, base: base, data: data}
}

func (r *ROM) Name() string   { return r.name }
func (r *ROM) Base() uint32   { return r.base }
func (r *ROM) Size() uint32   { return uint32(len(r.data)) }
func (r *ROM) ReadOnly() bool { return true }

func (r *ROM) ReadByte(offset uint32) byte { return r.data[offset] }
func (r *ROM) WriteByte(offset uint32, v byte) error {
	return fmt.Errorf("%w: %s[%#x]", ErrAccessDenied, r.name, offset)
}
