// Package mem provides a reference implementation of the cpu.Environment
// contract: sparse page-based RAM with on-demand allocation, the LR/SC
// reservation slot, memory-mapped I/O words, per-step extension gating,
// square-root mode selection, a simple delegated CSR file and cost
// accounting against an optional execution budget.
//
// Embedders with richer device models can embed Space and override the
// methods they need.
package mem

import (
	"errors"
	"fmt"

	"github.com/rvbox/rvbox/cpu"
	"github.com/rvbox/rvbox/log"
	"github.com/rvbox/rvbox/metrics"
	"github.com/rvbox/rvbox/softfloat"
)

const (
	// PageSize is the allocation granule.
	PageSize = 4096
	pageShift = 12

	// DefaultMaxPages bounds on-demand allocation to 64 MiB.
	DefaultMaxPages = 16384
)

// Package errors. Memory faults wrap the cpu sentinels so the core maps
// them onto the right trap cause.
var (
	ErrPageLimit = fmt.Errorf("mem: page allocation limit exceeded: %w", cpu.ErrAccessFault)
	ErrNoDevice  = fmt.Errorf("mem: no device at address: %w", cpu.ErrAccessFault)
	ErrBudget    = errors.New("mem: execution budget exhausted")
)

// MMIOWord is a single memory-mapped 32-bit register. Either handler may
// be nil, making the corresponding direction fault.
type MMIOWord struct {
	Read  func() (uint32, error)
	Write func(value, mask uint32) error
}

// Space is sparse RAM plus the environment glue around it.
type Space struct {
	pages     map[uint32]*[PageSize]byte
	pageCount int
	maxPages  int
	base      uint32 // first RAM address
	limit     uint32 // RAM byte size; addresses outside fault unless MMIO

	reserved    uint32
	hasReserved bool

	mmio map[uint32]MMIOWord

	exts      map[cpu.Extension]bool
	sqrtModes map[softfloat.Width]cpu.SqrtMode
	csrs      map[uint32]uint32

	budget *Budget

	lastTrap      cpu.Cause
	lastTrapValue uint32
	trapCount     uint64
	onTrap        func(cause cpu.Cause, value uint32)

	logger *log.Logger
}

// NewSpace creates a Space with ramBytes of addressable RAM starting at
// address zero (rounded up to a page) and every extension enabled. Pages
// are allocated on first touch.
func NewSpace(ramBytes uint32) *Space {
	return NewSpaceAt(0, ramBytes)
}

// NewSpaceAt creates a Space whose RAM window starts at base, which must
// be page-aligned. Addresses outside [base, base+ramBytes) fault unless an
// MMIO word is mapped there.
func NewSpaceAt(base, ramBytes uint32) *Space {
	s := &Space{
		pages:    make(map[uint32]*[PageSize]byte),
		maxPages: DefaultMaxPages,
		base:     base &^ (PageSize - 1),
		limit:    (ramBytes + PageSize - 1) &^ (PageSize - 1),
		mmio:     make(map[uint32]MMIOWord),
		exts:     make(map[cpu.Extension]bool),
		sqrtModes: map[softfloat.Width]cpu.SqrtMode{
			softfloat.W32:  cpu.SqrtAccurate,
			softfloat.W64:  cpu.SqrtAccurate,
			softfloat.W128: cpu.SqrtFast,
		},
		csrs:   make(map[uint32]uint32),
		logger: log.Default().Module("mem"),
	}
	for e := cpu.Extension(0); e <= cpu.ExtZifencei; e++ {
		s.exts[e] = true
	}
	return s
}

// SetExtension gates an extension on or off for subsequent steps.
func (s *Space) SetExtension(e cpu.Extension, enabled bool) { s.exts[e] = enabled }

// SetSqrtMode selects the FSQRT implementation for one operand width.
func (s *Space) SetSqrtMode(w softfloat.Width, m cpu.SqrtMode) { s.sqrtModes[w] = m }

// SetMMIO maps a 32-bit register at the word-aligned address addr.
func (s *Space) SetMMIO(addr uint32, word MMIOWord) { s.mmio[addr&^3] = word }

// SetCSR seeds a delegated CSR with a value; unseeded CSRs reject access.
func (s *Space) SetCSR(csr, value uint32) { s.csrs[csr] = value }

// SetBudget attaches an execution budget. A nil budget only counts.
func (s *Space) SetBudget(b *Budget) { s.budget = b }

// OnTrap registers a hook observing every trap after it is recorded.
func (s *Space) OnTrap(fn func(cause cpu.Cause, value uint32)) { s.onTrap = fn }

// LastTrap returns the most recent trap and how many traps have occurred.
func (s *Space) LastTrap() (cpu.Cause, uint32, uint64) {
	return s.lastTrap, s.lastTrapValue, s.trapCount
}

func (s *Space) page(addr uint32) (*[PageSize]byte, error) {
	idx := addr >> pageShift
	if p, ok := s.pages[idx]; ok {
		return p, nil
	}
	if s.pageCount >= s.maxPages {
		return nil, ErrPageLimit
	}
	p := new([PageSize]byte)
	s.pages[idx] = p
	s.pageCount++
	return p, nil
}

// PageCount returns the number of allocated pages.
func (s *Space) PageCount() int { return s.pageCount }

// ReadWord implements cpu.Environment. addr must be word-aligned; the
// core only issues aligned word traffic.
func (s *Space) ReadWord(addr, mask uint32) (uint32, error) {
	if addr&3 != 0 {
		return 0, cpu.ErrMisaligned
	}
	if w, ok := s.mmio[addr]; ok {
		if w.Read == nil {
			return 0, ErrNoDevice
		}
		return w.Read()
	}
	if addr-s.base >= s.limit {
		return 0, ErrNoDevice
	}
	p, err := s.page(addr)
	if err != nil {
		return 0, err
	}
	off := addr & (PageSize - 1)
	return uint32(p[off]) | uint32(p[off+1])<<8 | uint32(p[off+2])<<16 | uint32(p[off+3])<<24, nil
}

// WriteWord implements cpu.Environment. Writes that overlap the reserved
// word invalidate the reservation before they land.
func (s *Space) WriteWord(addr, data, mask uint32) error {
	if addr&3 != 0 {
		return cpu.ErrMisaligned
	}
	if s.hasReserved && s.reserved == addr {
		s.hasReserved = false
	}
	if w, ok := s.mmio[addr]; ok {
		if w.Write == nil {
			return ErrNoDevice
		}
		return w.Write(data, mask)
	}
	if addr-s.base >= s.limit {
		return ErrNoDevice
	}
	p, err := s.page(addr)
	if err != nil {
		return err
	}
	off := addr & (PageSize - 1)
	for i := uint32(0); i < 4; i++ {
		lane := uint32(0xFF) << (i * 8)
		if mask&lane != 0 {
			p[off+i] = byte(data >> (i * 8))
		}
	}
	return nil
}

// LoadReservedWord implements cpu.Environment.
func (s *Space) LoadReservedWord(addr uint32) (uint32, error) {
	v, err := s.ReadWord(addr, ^uint32(0))
	if err != nil {
		return 0, err
	}
	s.reserved = addr
	s.hasReserved = true
	return v, nil
}

// StoreReservedWord implements cpu.Environment. Both outcomes clear the
// reservation.
func (s *Space) StoreReservedWord(addr, data uint32) (bool, error) {
	if !s.hasReserved || s.reserved != addr {
		s.hasReserved = false
		return false, nil
	}
	s.hasReserved = false
	if err := s.WriteWord(addr, data, ^uint32(0)); err != nil {
		return false, err
	}
	return true, nil
}

// Reserved reports the current reservation, if any.
func (s *Space) Reserved() (uint32, bool) { return s.reserved, s.hasReserved }

// ExtensionEnabled implements cpu.Environment.
func (s *Space) ExtensionEnabled(e cpu.Extension) bool { return s.exts[e] }

// ReadCSR implements cpu.Environment with a flat CSR file: seeded
// addresses read their stored value, everything else is illegal.
func (s *Space) ReadCSR(csr uint32, access cpu.CSRAccess) (uint32, error) {
	v, ok := s.csrs[csr]
	if !ok {
		return 0, fmt.Errorf("mem: csr 0x%03x not implemented", csr)
	}
	return v, nil
}

// WriteCSR implements cpu.Environment.
func (s *Space) WriteCSR(csr, value uint32, access cpu.CSRAccess) error {
	if _, ok := s.csrs[csr]; !ok {
		return fmt.Errorf("mem: csr 0x%03x not implemented", csr)
	}
	s.csrs[csr] = value
	return nil
}

// SqrtMode implements cpu.Environment.
func (s *Space) SqrtMode(w softfloat.Width) cpu.SqrtMode { return s.sqrtModes[w] }

// Charge implements cpu.Environment.
func (s *Space) Charge(c cpu.Cost) error {
	chargeCounter(c.Kind).Inc()
	if s.budget == nil {
		return nil
	}
	return s.budget.charge(c)
}

// Trap implements cpu.Environment: the trap is recorded, counted and
// handed to the OnTrap hook.
func (s *Space) Trap(cause cpu.Cause, value uint32) {
	s.lastTrap = cause
	s.lastTrapValue = value
	s.trapCount++
	trapCounter.Inc()
	s.logger.Debug("trap", "cause", cause.String(), log.Hex32("value", value))
	if s.onTrap != nil {
		s.onTrap(cause, value)
	}
}

// LoadImage copies raw bytes into RAM at base.
func (s *Space) LoadImage(base uint32, data []byte) error {
	for i, b := range data {
		addr := base + uint32(i)
		word := addr &^ 3
		shift := (addr & 3) * 8
		if err := s.WriteWord(word, uint32(b)<<shift, 0xFF<<shift); err != nil {
			return err
		}
	}
	return nil
}

// LoadWords copies 32-bit words into RAM starting at base.
func (s *Space) LoadWords(base uint32, words []uint32) error {
	for i, w := range words {
		if err := s.WriteWord(base+uint32(i)*4, w, ^uint32(0)); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Cost accounting
// ---------------------------------------------------------------------------

var (
	trapCounter  = metrics.NewCounter("cpu.traps")
	costCounters = [16]*metrics.Counter{}
)

func init() {
	names := map[cpu.CostKind]string{
		cpu.CostIFetch:       "cpu.cost.ifetch",
		cpu.CostGeneric:      "cpu.cost.generic",
		cpu.CostALU:          "cpu.cost.alu",
		cpu.CostMul:          "cpu.cost.mul",
		cpu.CostDiv:          "cpu.cost.div",
		cpu.CostLoad:         "cpu.cost.load",
		cpu.CostStore:        "cpu.cost.store",
		cpu.CostAMO:          "cpu.cost.amo",
		cpu.CostJump:         "cpu.cost.jump",
		cpu.CostBranch:       "cpu.cost.branch",
		cpu.CostCSR:          "cpu.cost.csr",
		cpu.CostFloatOp:      "cpu.cost.float_op",
		cpu.CostFloatDiv:     "cpu.cost.float_div",
		cpu.CostFloatFMA:     "cpu.cost.float_fma",
		cpu.CostFloatConvert: "cpu.cost.float_convert",
		cpu.CostFloatSqrt:    "cpu.cost.float_sqrt",
	}
	for kind, name := range names {
		costCounters[kind] = metrics.NewCounter(name)
	}
}

func chargeCounter(k cpu.CostKind) *metrics.Counter {
	if int(k) < len(costCounters) && costCounters[k] != nil {
		return costCounters[k]
	}
	return costCounters[cpu.CostGeneric]
}

// Budget is a decrementing execution budget. Every charge costs at least
// one unit; the per-kind table can make categories more expensive.
type Budget struct {
	Remaining uint64
	CostOf    map[cpu.CostKind]uint64
}

// NewBudget returns a budget of total units with unit costs.
func NewBudget(total uint64) *Budget {
	return &Budget{Remaining: total}
}

func (b *Budget) charge(c cpu.Cost) error {
	cost := uint64(1)
	if b.CostOf != nil {
		if v, ok := b.CostOf[c.Kind]; ok {
			cost = v
		}
	}
	if c.Words > 1 {
		cost *= uint64(c.Words)
	}
	if b.Remaining < cost {
		b.Remaining = 0
		return ErrBudget
	}
	b.Remaining -= cost
	return nil
}
