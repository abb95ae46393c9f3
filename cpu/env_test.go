package cpu

import (
	"encoding/binary"
	"testing"

	"github.com/rvbox/rvbox/softfloat"
)

// testEnv is a minimal in-package environment: word-map RAM, a
// reservation slot, configurable gates and a budget. It records traps and
// CSR traffic so tests can assert on the contract.
type testEnv struct {
	ram      map[uint32]uint32
	reserved *uint32
	disabled map[Extension]bool
	csrs     map[uint32]uint32
	csrLog   []CSRAccess
	roCSRs   map[uint32]bool
	sqrt     map[softfloat.Width]SqrtMode
	budget   int // negative = unlimited
	faultAt  uint32
	hasFault bool
	traps    []Exception
}

func newTestEnv() *testEnv {
	return &testEnv{
		ram:      make(map[uint32]uint32),
		disabled: make(map[Extension]bool),
		csrs:     make(map[uint32]uint32),
		roCSRs:   make(map[uint32]bool),
		sqrt:     make(map[softfloat.Width]SqrtMode),
		budget:   -1,
	}
}

func (e *testEnv) ReadWord(addr, mask uint32) (uint32, error) {
	if e.hasFault && addr == e.faultAt {
		return 0, ErrAccessFault
	}
	return e.ram[addr], nil
}

func (e *testEnv) WriteWord(addr, data, mask uint32) error {
	if e.hasFault && addr == e.faultAt {
		return ErrAccessFault
	}
	if e.reserved != nil && *e.reserved == addr {
		e.reserved = nil
	}
	e.ram[addr] = e.ram[addr]&^mask | data&mask
	return nil
}

func (e *testEnv) LoadReservedWord(addr uint32) (uint32, error) {
	v, err := e.ReadWord(addr, ^uint32(0))
	if err != nil {
		return 0, err
	}
	a := addr
	e.reserved = &a
	return v, nil
}

func (e *testEnv) StoreReservedWord(addr, data uint32) (bool, error) {
	if e.reserved == nil || *e.reserved != addr {
		e.reserved = nil
		return false, nil
	}
	e.reserved = nil
	return true, e.WriteWord(addr, data, ^uint32(0))
}

func (e *testEnv) ExtensionEnabled(ext Extension) bool { return !e.disabled[ext] }

func (e *testEnv) ReadCSR(csr uint32, access CSRAccess) (uint32, error) {
	e.csrLog = append(e.csrLog, access)
	v, ok := e.csrs[csr]
	if !ok {
		return 0, ErrAccessFault
	}
	return v, nil
}

func (e *testEnv) WriteCSR(csr, value uint32, access CSRAccess) error {
	if e.roCSRs[csr] {
		return ErrAccessFault
	}
	if _, ok := e.csrs[csr]; !ok {
		return ErrAccessFault
	}
	e.csrs[csr] = value
	return nil
}

func (e *testEnv) Charge(c Cost) error {
	if e.budget < 0 {
		return nil
	}
	if e.budget == 0 {
		return &Exception{Cause: CauseBudgetExhausted}
	}
	e.budget--
	return nil
}

func (e *testEnv) SqrtMode(w softfloat.Width) SqrtMode {
	if m, ok := e.sqrt[w]; ok {
		return m
	}
	if w == softfloat.W128 {
		return SqrtFast
	}
	return SqrtAccurate
}

func (e *testEnv) Trap(cause Cause, value uint32) {
	e.traps = append(e.traps, Exception{Cause: cause, Value: value})
}

// loadProgram writes instruction words at base.
func (e *testEnv) loadProgram(base uint32, words []uint32) {
	for i, w := range words {
		e.ram[base+uint32(i)*4] = w
	}
}

// loadHalves writes 16-bit parcels at base, packing them into words.
func (e *testEnv) loadHalves(base uint32, halves []uint16) {
	bytes := make([]byte, len(halves)*2)
	for i, h := range halves {
		binary.LittleEndian.PutUint16(bytes[i*2:], h)
	}
	for len(bytes)%4 != 0 {
		bytes = append(bytes, 0)
	}
	for i := 0; i+4 <= len(bytes); i += 4 {
		e.ram[base+uint32(i)] = binary.LittleEndian.Uint32(bytes[i:])
	}
}

// newCPU builds a CPU for tests, failing on config errors.
func newCPU(t *testing.T, width softfloat.Width) *CPU {
	t.Helper()
	c, err := New(width)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// stepN steps n times, failing the test on any trap.
func stepN(t *testing.T, c *CPU, env Environment, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if exc := c.Step(env); exc != nil {
			t.Fatalf("step %d trapped: %v", i, exc)
		}
	}
}
