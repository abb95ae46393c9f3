// Package cpu implements the unprivileged core of a 32-bit RISC-V hart at
// the RV32GCQ_Zicsr_Zifencei level: instruction decoding (including the
// compressed extension), the integer and floating-point execution units,
// the LR/SC reservation protocol and the step driver. Memory, non-FPU
// CSRs, cost accounting and trap delivery are supplied by the embedder
// through the Environment interface.
package cpu

import "fmt"

// Cause identifies an architectural trap. Values match the machine-mode
// mcause encoding so an embedder can forward them directly.
type Cause int32

const (
	// CauseMisalignedFetch is raised when the PC is not aligned for the
	// next fetch (bit 0 set, or bit 1 set while C is disabled).
	CauseMisalignedFetch Cause = 0
	// CauseInstructionFault is raised when the environment faults an
	// instruction fetch.
	CauseInstructionFault Cause = 1
	// CauseIllegalInstruction is raised for unallocated encodings,
	// disabled extensions, reserved rounding modes and rejected CSRs.
	CauseIllegalInstruction Cause = 2
	// CauseBreakpoint is raised by EBREAK and C.EBREAK.
	CauseBreakpoint Cause = 3
	// CauseMisalignedLoad is raised for sub-word loads that cross a word
	// boundary and for misaligned atomic loads.
	CauseMisalignedLoad Cause = 4
	// CauseLoadFault is raised when the environment faults a data load.
	CauseLoadFault Cause = 5
	// CauseMisalignedStore is the store counterpart of CauseMisalignedLoad.
	CauseMisalignedStore Cause = 6
	// CauseStoreFault is raised when the environment faults a data store.
	CauseStoreFault Cause = 7
	// CauseEcallFromUmode .. CauseEcallFromMmode identify ECALL by the
	// privilege mode the embedder models. The core itself always raises
	// the M-mode variant; the others exist for embedders layering a
	// privileged implementation on top.
	CauseEcallFromUmode Cause = 8
	CauseEcallFromSmode Cause = 9
	CauseEcallFromMmode Cause = 11
	// CauseBudgetExhausted is raised when Charge reports that the
	// embedder's execution budget is spent. The value is in the platform
	// range of the mcause space.
	CauseBudgetExhausted Cause = 24
)

func (c Cause) String() string {
	switch c {
	case CauseMisalignedFetch:
		return "misaligned fetch"
	case CauseInstructionFault:
		return "instruction fault"
	case CauseIllegalInstruction:
		return "illegal instruction"
	case CauseBreakpoint:
		return "breakpoint"
	case CauseMisalignedLoad:
		return "misaligned load"
	case CauseLoadFault:
		return "load fault"
	case CauseMisalignedStore:
		return "misaligned store"
	case CauseStoreFault:
		return "store fault"
	case CauseEcallFromUmode:
		return "ecall from U-mode"
	case CauseEcallFromSmode:
		return "ecall from S-mode"
	case CauseEcallFromMmode:
		return "ecall from M-mode"
	case CauseBudgetExhausted:
		return "budget exhausted"
	default:
		return fmt.Sprintf("cause %d", int32(c))
	}
}

// Exception is an architectural trap in flight. Value carries the mtval
// payload: the faulting address for memory traps, the instruction word for
// illegal instructions, the PC for breakpoints and misaligned fetches.
type Exception struct {
	Cause Cause
	Value uint32
}

func (e *Exception) Error() string {
	return fmt.Sprintf("cpu: %s (value 0x%08x)", e.Cause, e.Value)
}

func excf(cause Cause, value uint32) *Exception {
	return &Exception{Cause: cause, Value: value}
}
