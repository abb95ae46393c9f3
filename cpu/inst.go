package cpu

import "github.com/rvbox/rvbox/softfloat"

// Op enumerates the closed set of decoded operations. Floating-point ops
// are width-generic; the operand format travels in Inst.FW (and Inst.FW2
// for format-to-format conversions).
type Op uint8

const (
	OpIllegal Op = iota

	// RV32I
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpFENCE
	OpECALL
	OpEBREAK

	// Zifencei
	OpFENCEI

	// Zicsr
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	// M
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU

	// A
	OpLR
	OpSC
	OpAMOSWAP
	OpAMOADD
	OpAMOXOR
	OpAMOAND
	OpAMOOR
	OpAMOMIN
	OpAMOMAX
	OpAMOMINU
	OpAMOMAXU

	// F/D/Q, width in Inst.FW
	OpFLoad
	OpFStore
	OpFADD
	OpFSUB
	OpFMUL
	OpFDIV
	OpFSQRT
	OpFSGNJ
	OpFSGNJN
	OpFSGNJX
	OpFMIN
	OpFMAX
	OpFMADD
	OpFMSUB
	OpFNMSUB
	OpFNMADD
	OpFCVTWF  // float -> int32
	OpFCVTWUF // float -> uint32
	OpFCVTFW  // int32 -> float
	OpFCVTFWU // uint32 -> float
	OpFCVTFF  // FW2 -> FW format conversion
	OpFMVXW
	OpFMVWX
	OpFCLASS
	OpFEQ
	OpFLT
	OpFLE
)

// Inst is one decoded instruction. Fields not used by the operation are
// zero. Raw keeps the fetched encoding for trap values; Len is 2 for
// expanded compressed instructions and 4 otherwise.
type Inst struct {
	Op   Op
	Rd   uint32
	Rs1  uint32 // also the zimm of CSRR*I
	Rs2  uint32
	Rs3  uint32
	Imm  int32
	CSR  uint32
	RM   uint8 // raw rm field of FP operations
	FW   softfloat.Width
	FW2  softfloat.Width
	Aq   bool
	Rl   bool
	Raw  uint32
	Len  uint32
}

// cost categorizes the instruction for the pre-execution budget charge.
func (i *Inst) cost() Cost {
	switch i.Op {
	case OpLB, OpLH, OpLW, OpLBU, OpLHU:
		return Cost{Kind: CostLoad, Words: 1}
	case OpSB, OpSH, OpSW:
		return Cost{Kind: CostStore, Words: 1}
	case OpJAL, OpJALR:
		return Cost{Kind: CostJump}
	case OpBEQ, OpBNE, OpBLT, OpBGE, OpBLTU, OpBGEU:
		return Cost{Kind: CostBranch}
	case OpMUL, OpMULH, OpMULHSU, OpMULHU:
		return Cost{Kind: CostMul}
	case OpDIV, OpDIVU, OpREM, OpREMU:
		return Cost{Kind: CostDiv}
	case OpLR, OpSC, OpAMOSWAP, OpAMOADD, OpAMOXOR, OpAMOAND, OpAMOOR,
		OpAMOMIN, OpAMOMAX, OpAMOMINU, OpAMOMAXU:
		return Cost{Kind: CostAMO, Words: 1}
	case OpCSRRW, OpCSRRS, OpCSRRC, OpCSRRWI, OpCSRRSI, OpCSRRCI:
		return Cost{Kind: CostCSR}
	case OpFLoad:
		return Cost{Kind: CostLoad, Words: uint32(i.FW) / 32}
	case OpFStore:
		return Cost{Kind: CostStore, Words: uint32(i.FW) / 32}
	case OpFDIV:
		return Cost{Kind: CostFloatDiv, Words: uint32(i.FW) / 32}
	case OpFSQRT:
		return Cost{Kind: CostFloatSqrt, Words: uint32(i.FW) / 32}
	case OpFMADD, OpFMSUB, OpFNMSUB, OpFNMADD:
		return Cost{Kind: CostFloatFMA, Words: uint32(i.FW) / 32}
	case OpFCVTWF, OpFCVTWUF, OpFCVTFW, OpFCVTFWU, OpFCVTFF:
		return Cost{Kind: CostFloatConvert, Words: uint32(i.FW) / 32}
	case OpFADD, OpFSUB, OpFMUL, OpFSGNJ, OpFSGNJN, OpFSGNJX,
		OpFMIN, OpFMAX, OpFMVXW, OpFMVWX, OpFCLASS, OpFEQ, OpFLT, OpFLE:
		return Cost{Kind: CostFloatOp, Words: uint32(i.FW) / 32}
	case OpADDI, OpSLTI, OpSLTIU, OpXORI, OpORI, OpANDI, OpSLLI, OpSRLI, OpSRAI,
		OpADD, OpSUB, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpSRA, OpOR, OpAND,
		OpAUIPC:
		return Cost{Kind: CostALU}
	default:
		return Cost{Kind: CostGeneric}
	}
}
