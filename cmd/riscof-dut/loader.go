package main

import (
	"debug/elf"
	"errors"
	"fmt"
)

// Loader errors.
var (
	ErrNotRV32Exec = errors.New("riscof-dut: not a 32-bit little-endian RISC-V executable")
	ErrNoSymbol    = errors.New("riscof-dut: missing symbol")
)

// loadedELF is the test binary flattened to loadable chunks plus the
// symbols the harness needs.
type loadedELF struct {
	chunks  []chunk
	entry   uint32
	symbols map[string]uint32
}

type chunk struct {
	base uint32
	data []byte
}

// loadELF reads a rv32 test executable: every PT_LOAD segment plus the
// symbol table.
func loadELF(path string) (*loadedELF, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("riscof-dut: opening executable: %w", err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 || f.Data != elf.ELFDATA2LSB ||
		f.Machine != elf.EM_RISCV || f.Type != elf.ET_EXEC {
		return nil, ErrNotRV32Exec
	}

	out := &loadedELF{
		entry:   uint32(f.Entry),
		symbols: make(map[string]uint32),
	}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if p.Vaddr != p.Paddr {
			return nil, fmt.Errorf("riscof-dut: segment at 0x%x assumes virtual memory", p.Vaddr)
		}
		data := make([]byte, p.Memsz)
		if _, err := p.ReadAt(data[:p.Filesz], 0); err != nil {
			return nil, fmt.Errorf("riscof-dut: reading segment at 0x%x: %w", p.Vaddr, err)
		}
		out.chunks = append(out.chunks, chunk{base: uint32(p.Vaddr), data: data})
	}

	syms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("riscof-dut: reading symbols: %w", err)
	}
	for _, s := range syms {
		out.symbols[s.Name] = uint32(s.Value)
	}
	return out, nil
}

func (l *loadedELF) symbol(name string) (uint32, error) {
	v, ok := l.symbols[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoSymbol, name)
	}
	return v, nil
}
