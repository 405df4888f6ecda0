// Command emu32 is the toolchain's thin I/O-contract shim: assemble a
// source file to an object file, or link and run one. spec.md §1 places
// CLI drivers out of scope ("treat as external collaborators, specify
// only their I/O contract"), so this mirrors the teacher's own minimal
// main.go (flag.Bool, plain os.Args handling for the file list) instead
// of investing in a real command framework.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Alientation/32-bit-Emulator-sub001/internal/asm"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/bus"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/cpu"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/emulog"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/linker"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/objfile"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/toolconfig"
	"github.com/Alientation/32-bit-Emulator-sub001/internal/vmem"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "asm":
		err = runAsm(os.Args[2:])
	case "run":
		err = runRun(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "emu32:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: emu32 asm <in.s> <out.o>")
	fmt.Fprintln(os.Stderr, "       emu32 run [-config file.toml] [-start addr] <in.s>")
}

func runAsm(args []string) error {
	fs := flag.NewFlagSet("asm", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("asm: expected <in.s> <out.o>")
	}

	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	obj, err := asm.Assemble(string(src))
	if err != nil {
		return fmt.Errorf("assemble %s: %w", fs.Arg(0), err)
	}
	out, err := obj.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(fs.Arg(1), out, 0o644)
}

func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a toolchain TOML config (defaults to the built-in defaults)")
	start := fs.Uint("start", 0x1000, "base address to link TEXT/DATA/BSS at")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("run: expected <in.s|in.o>")
	}

	cfg := toolconfig.Default()
	if *configPath != "" {
		var err error
		cfg, err = toolconfig.Load(*configPath)
		if err != nil {
			return err
		}
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	obj, err := loadObject(fs.Arg(0), data)
	if err != nil {
		return err
	}

	log := emulog.Noop()
	b, mmu, err := buildMachine(cfg, log)
	if err != nil {
		return err
	}

	entry, err := linker.Link(obj, b, uint32(*start), log)
	if err != nil {
		return fmt.Errorf("link: %w", err)
	}

	c := cpu.New(b, cfg.InterruptCheckInterval, log)
	c.PC = entry
	_ = mmu // reserved for multi-process drivers layered on top of this shim

	if err := c.Run(0, 0); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

// loadObject accepts either raw EMU32 assembly (".s" and anything else)
// or an already-assembled object file, detected by trying to unmarshal
// it first. The object header has no magic number, so this relies on
// Unmarshal rejecting data whose header does not fit its length.
func loadObject(path string, data []byte) (*objfile.Object, error) {
	if obj, err := objfile.Unmarshal(data); err == nil {
		return obj, nil
	}
	obj, err := asm.Assemble(string(data))
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", path, err)
	}
	return obj, nil
}

// buildMachine wires a bus with one region per cfg.Memory entry and, when
// any region is memory_mapped, a vmem.MMU sharing RAM's backing frames
// through the frameStore duck-type (spec.md §9, §10).
func buildMachine(cfg toolconfig.Config, log *emulog.Logger) (*bus.Bus, *vmem.MMU, error) {
	b := bus.New(log)

	var mmu *vmem.MMU
	var needsMMU bool
	for _, region := range cfg.Memory {
		if region.MemoryMapped {
			needsMMU = true
		}
	}
	if needsMMU {
		mmu = vmem.New(cfg.PhysicalPages, cfg.SwapPages, log)
		b.BindMMU(mmu)
	}

	for _, region := range cfg.Memory {
		var dev bus.Device
		if region.ROM {
			dev = bus.NewROM(region.Name, region.Base, make([]byte, region.Size))
		} else {
			ram := bus.NewRAM(region.Name, region.Base, region.Size)
			if region.MemoryMapped && mmu != nil {
				mmu.BindFrames(ram)
			}
			dev = ram
		}
		if err := b.Mount(dev, region.MemoryMapped); err != nil {
			return nil, nil, fmt.Errorf("mount %s: %w", region.Name, err)
		}
	}
	return b, mmu, nil
}
