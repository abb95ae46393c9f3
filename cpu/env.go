package cpu

import (
	"errors"

	"github.com/rvbox/rvbox/softfloat"
)

// Memory contract errors. Environment memory operations report failures by
// returning an error that matches one of these sentinels (wrapping is
// fine); the core maps them onto the architecturally correct trap cause
// for the access that was in flight.
var (
	// ErrMisaligned reports an access the environment cannot perform at
	// the given alignment.
	ErrMisaligned = errors.New("cpu: misaligned memory access")
	// ErrAccessFault reports an address that maps to no device.
	ErrAccessFault = errors.New("cpu: memory access fault")
)

// Extension names an optional ISA extension the environment can gate per
// step.
type Extension uint8

const (
	ExtM Extension = iota
	ExtA
	ExtF
	ExtD
	ExtQ
	ExtC
	ExtZicsr
	ExtZifencei
	numExtensions
)

func (e Extension) String() string {
	switch e {
	case ExtM:
		return "M"
	case ExtA:
		return "A"
	case ExtF:
		return "F"
	case ExtD:
		return "D"
	case ExtQ:
		return "Q"
	case ExtC:
		return "C"
	case ExtZicsr:
		return "Zicsr"
	case ExtZifencei:
		return "Zifencei"
	default:
		return "?"
	}
}

// ExtSet is the set of extensions enabled for one step. The decoder treats
// encodings of absent extensions as illegal.
type ExtSet uint16

// Has reports whether e is in the set.
func (s ExtSet) Has(e Extension) bool { return s&(1<<e) != 0 }

// With returns the set with e added.
func (s ExtSet) With(e Extension) ExtSet { return s | 1<<e }

// CSRAccess tells the environment which directions a CSR instruction will
// exercise, so read-only and write-only registers can reject the variant
// that violates them before any side effect happens.
type CSRAccess uint8

const (
	// CSRAccessRead marks a pure read (CSRRS/CSRRC with rs1=x0 or a zero
	// immediate).
	CSRAccessRead CSRAccess = iota
	// CSRAccessWrite marks a pure write (CSRRW/CSRRWI with rd=x0).
	CSRAccessWrite
	// CSRAccessReadWrite marks a combined read-modify-write.
	CSRAccessReadWrite
)

// SqrtMode selects the square-root implementation for one FSQRT
// instruction.
type SqrtMode uint8

const (
	// SqrtFast is the quicker root, possibly off by up to two ULPs.
	SqrtFast SqrtMode = iota
	// SqrtAccurate is the correctly rounded root.
	SqrtAccurate
	// SqrtIllegal rejects the instruction as illegal. Accurate
	// quad-precision roots are always rejected.
	SqrtIllegal
)

// CostKind categorizes an instruction for cost accounting.
type CostKind uint8

const (
	CostIFetch CostKind = iota
	CostGeneric
	CostALU
	CostMul
	CostDiv
	CostLoad
	CostStore
	CostAMO
	CostJump
	CostBranch
	CostCSR
	CostFloatOp
	CostFloatDiv
	CostFloatFMA
	CostFloatConvert
	CostFloatSqrt
)

// Cost describes one charge against the embedder's execution budget.
// Words is the operand width in 32-bit words for memory and FP categories.
type Cost struct {
	Kind  CostKind
	Addr  uint32
	Words uint32
}

// Environment is the contract the embedder implements: memory, the
// reservation slot, non-FPU CSRs, extension gating, cost accounting and
// trap delivery. All memory traffic is expressed as aligned 4-byte word
// operations with byte-lane masks; the core synthesizes sub-word accesses
// and rejects accesses that cross a word boundary.
type Environment interface {
	// ReadWord reads the word at the 4-byte-aligned address addr. mask
	// indicates the active byte lanes; a full-word read passes all-ones.
	ReadWord(addr, mask uint32) (uint32, error)

	// WriteWord writes the byte lanes selected by mask at the aligned
	// address addr. It must invalidate any reservation whose address
	// overlaps the written word.
	WriteWord(addr, data, mask uint32) error

	// LoadReservedWord reads the word at addr and makes addr the current
	// reservation.
	LoadReservedWord(addr uint32) (uint32, error)

	// StoreReservedWord writes the word at addr only if addr is still
	// reserved and unperturbed, reporting whether it did. Either outcome
	// clears the reservation.
	StoreReservedWord(addr, data uint32) (bool, error)

	// ExtensionEnabled gates an extension for the current step.
	ExtensionEnabled(ext Extension) bool

	// ReadCSR reads a non-FPU CSR. Returning an error makes the
	// instruction illegal.
	ReadCSR(csr uint32, access CSRAccess) (uint32, error)

	// WriteCSR writes a non-FPU CSR. Returning an error makes the
	// instruction illegal.
	WriteCSR(csr, value uint32, access CSRAccess) error

	// Charge debits the execution budget. Returning an error aborts the
	// step with a budget-exhausted trap before anything is retired.
	Charge(c Cost) error

	// SqrtMode picks the square-root implementation for one FSQRT of the
	// given width.
	SqrtMode(w softfloat.Width) SqrtMode

	// Trap observes a trap the core detected. The step that trapped has
	// retired nothing; the environment decides how execution continues.
	Trap(cause Cause, value uint32)
}

// Identification values for embedders implementing the machine-mode
// identification CSRs on top of this core.
const (
	// VendorID is zero: an open, non-commercial implementation.
	VendorID uint32 = 0
	// ArchID is the registered architecture ID of this core.
	ArchID uint32 = 45
	// ImplementationID encodes flags, major, minor and patch versions in
	// its four bytes, most significant first.
	ImplementationID uint32 = 0x00<<24 | implMajor<<16 | implMinor<<8 | implPatch
)

const (
	implMajor = 1
	implMinor = 0
	implPatch = 0
)
