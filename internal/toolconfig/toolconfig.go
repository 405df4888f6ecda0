// Package toolconfig loads the TOML document that parameterises the
// toolchain: page size, swap device capacity, the bus memory map and
// the CPU's interrupt-check interval. Grounded on the BurntSushi/toml
// dependency already required by the lookbusy1344-arm_emulator and
// ethereum-go-ethereum manifests in the retrieved pack.
package toolconfig

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// MemRegion describes one span the system bus routes to a single
// device kind.
type MemRegion struct {
	Name         string `toml:"name"`
	Base         uint32 `toml:"base"`
	Size         uint32 `toml:"size"`
	ROM          bool   `toml:"rom"`
	MemoryMapped bool   `toml:"memory_mapped"`
}

// Config is the full toolchain configuration. Zero-value Config is not
// directly usable; callers should start from Default() and override.
type Config struct {
	PageSize               uint32      `toml:"page_size"`
	SwapPages              uint32      `toml:"swap_pages"`
	PhysicalPages          uint32      `toml:"physical_pages"`
	InterruptCheckInterval int         `toml:"interrupt_check_interval"`
	Memory                 []MemRegion `toml:"memory"`
}

// Default mirrors the reference configuration spec.md §4.9 describes:
// 4 KiB pages, 1024 physical frames, 4096 swap pages, a 16 MiB
// memory-mapped RAM region at 0 and a 1 MiB ROM region at 0xF0000000.
func Default() Config {
	const pageSize = 4096
	return Config{
		PageSize:               pageSize,
		SwapPages:              4096,
		PhysicalPages:          1024,
		InterruptCheckInterval: 64,
		Memory: []MemRegion{
			{Name: "ram", Base: 0x00000000, Size: 16 * 1024 * 1024, ROM: false, MemoryMapped: true},
			{Name: "rom", Base: 0xF0000000, Size: 1 * 1024 * 1024, ROM: true, MemoryMapped: false},
		},
	}
}

// Load reads and parses a TOML config file, starting from Default() so
// a partial document only needs to name the fields it overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("toolconfig: %w", err)
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("toolconfig: %w", err)
	}
	return cfg, nil
}
