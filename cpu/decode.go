package cpu

import "github.com/rvbox/rvbox/softfloat"

// Field extraction helpers, grounded in the standard RV32 instruction
// formats.

func fieldRd(w uint32) uint32  { return (w >> 7) & 0x1F }
func fieldRs1(w uint32) uint32 { return (w >> 15) & 0x1F }
func fieldRs2(w uint32) uint32 { return (w >> 20) & 0x1F }
func fieldRs3(w uint32) uint32 { return (w >> 27) & 0x1F }
func funct3(w uint32) uint32   { return (w >> 12) & 0x7 }
func funct7(w uint32) uint32   { return (w >> 25) & 0x7F }

func immI(w uint32) int32 { return int32(w) >> 20 }

func immS(w uint32) int32 {
	return int32(w)>>20&^0x1F | int32((w>>7)&0x1F)
}

func immB(w uint32) int32 {
	imm := (w>>8&0xF)<<1 | (w>>25&0x3F)<<5 | (w>>7&0x1)<<11
	return int32(imm) | int32(w)>>31<<12
}

func immU(w uint32) int32 { return int32(w & 0xFFFFF000) }

func immJ(w uint32) int32 {
	imm := (w>>21&0x3FF)<<1 | (w>>20&0x1)<<11 | (w>>12&0xFF)<<12
	return int32(imm) | int32(w)>>31<<20
}

// fpWidth maps the two-bit fmt field of FP opcodes to an operand width.
// The 0b10 encoding (binary16) is not supported and returns 0.
func fpWidth(fmt uint32) softfloat.Width {
	switch fmt {
	case 0:
		return softfloat.W32
	case 1:
		return softfloat.W64
	case 3:
		return softfloat.W128
	default:
		return 0
	}
}

func fpExt(w softfloat.Width) Extension {
	switch w {
	case softfloat.W32:
		return ExtF
	case softfloat.W64:
		return ExtD
	default:
		return ExtQ
	}
}

// rmReserved reports whether an rm field value is one of the two reserved
// encodings. 0b111 is "dynamic" and is resolved against FCSR.frm at
// execution time.
func rmReserved(rm uint32) bool { return rm == 5 || rm == 6 }

// Decode maps a fetched 32-bit instruction word to its operation under the
// step's enabled extension set. Unallocated encodings, encodings of absent
// extensions and reserved rounding modes decode to OpIllegal. Decode is
// pure: it consults no CPU or environment state beyond ext.
func Decode(word uint32, ext ExtSet) Inst {
	in := Inst{Op: OpIllegal, Raw: word, Len: 4}
	if word&3 != 3 {
		return in
	}
	in.Rd = fieldRd(word)
	in.Rs1 = fieldRs1(word)
	in.Rs2 = fieldRs2(word)

	switch word & 0x7F {
	case 0x37: // LUI
		in.Op, in.Imm = OpLUI, immU(word)
	case 0x17: // AUIPC
		in.Op, in.Imm = OpAUIPC, immU(word)
	case 0x6F: // JAL
		in.Op, in.Imm = OpJAL, immJ(word)
	case 0x67: // JALR
		if funct3(word) == 0 {
			in.Op, in.Imm = OpJALR, immI(word)
		}
	case 0x63: // BRANCH
		ops := [8]Op{OpBEQ, OpBNE, OpIllegal, OpIllegal, OpBLT, OpBGE, OpBLTU, OpBGEU}
		in.Op, in.Imm = ops[funct3(word)], immB(word)
	case 0x03: // LOAD
		ops := [8]Op{OpLB, OpLH, OpLW, OpIllegal, OpLBU, OpLHU, OpIllegal, OpIllegal}
		in.Op, in.Imm = ops[funct3(word)], immI(word)
	case 0x23: // STORE
		ops := [8]Op{OpSB, OpSH, OpSW, OpIllegal, OpIllegal, OpIllegal, OpIllegal, OpIllegal}
		in.Op, in.Imm = ops[funct3(word)], immS(word)
	case 0x13: // OP-IMM
		in.Imm = immI(word)
		switch funct3(word) {
		case 0:
			in.Op = OpADDI
		case 1:
			if funct7(word) == 0 {
				in.Op, in.Imm = OpSLLI, int32(in.Rs2)
			}
		case 2:
			in.Op = OpSLTI
		case 3:
			in.Op = OpSLTIU
		case 4:
			in.Op = OpXORI
		case 5:
			switch funct7(word) {
			case 0x00:
				in.Op, in.Imm = OpSRLI, int32(in.Rs2)
			case 0x20:
				in.Op, in.Imm = OpSRAI, int32(in.Rs2)
			}
		case 6:
			in.Op = OpORI
		case 7:
			in.Op = OpANDI
		}
	case 0x33: // OP
		switch funct7(word) {
		case 0x00:
			ops := [8]Op{OpADD, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpOR, OpAND}
			in.Op = ops[funct3(word)]
		case 0x20:
			switch funct3(word) {
			case 0:
				in.Op = OpSUB
			case 5:
				in.Op = OpSRA
			}
		case 0x01:
			if ext.Has(ExtM) {
				ops := [8]Op{OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU}
				in.Op = ops[funct3(word)]
			}
		}
	case 0x0F: // MISC-MEM
		switch funct3(word) {
		case 0:
			in.Op = OpFENCE
		case 1:
			if ext.Has(ExtZifencei) {
				in.Op = OpFENCEI
			}
		}
	case 0x73: // SYSTEM
		switch funct3(word) {
		case 0:
			if in.Rd == 0 && in.Rs1 == 0 {
				switch word >> 20 {
				case 0:
					in.Op = OpECALL
				case 1:
					in.Op = OpEBREAK
				}
			}
		case 1, 2, 3, 5, 6, 7:
			if ext.Has(ExtZicsr) {
				ops := [8]Op{OpIllegal, OpCSRRW, OpCSRRS, OpCSRRC, OpIllegal, OpCSRRWI, OpCSRRSI, OpCSRRCI}
				in.Op = ops[funct3(word)]
				in.CSR = word >> 20
			}
		}
	case 0x2F: // AMO
		if !ext.Has(ExtA) || funct3(word) != 2 {
			return in
		}
		in.Aq = word>>26&1 != 0
		in.Rl = word>>25&1 != 0
		switch word >> 27 {
		case 0x02:
			if in.Rs2 == 0 {
				in.Op = OpLR
			}
		case 0x03:
			in.Op = OpSC
		case 0x01:
			in.Op = OpAMOSWAP
		case 0x00:
			in.Op = OpAMOADD
		case 0x04:
			in.Op = OpAMOXOR
		case 0x0C:
			in.Op = OpAMOAND
		case 0x08:
			in.Op = OpAMOOR
		case 0x10:
			in.Op = OpAMOMIN
		case 0x14:
			in.Op = OpAMOMAX
		case 0x18:
			in.Op = OpAMOMINU
		case 0x1C:
			in.Op = OpAMOMAXU
		}
	case 0x07: // LOAD-FP
		w := fpLoadStoreWidth(funct3(word))
		if w != 0 && ext.Has(fpExt(w)) {
			in.Op, in.FW, in.Imm = OpFLoad, w, immI(word)
		}
	case 0x27: // STORE-FP
		w := fpLoadStoreWidth(funct3(word))
		if w != 0 && ext.Has(fpExt(w)) {
			in.Op, in.FW, in.Imm = OpFStore, w, immS(word)
		}
	case 0x43, 0x47, 0x4B, 0x4F: // FMADD/FMSUB/FNMSUB/FNMADD
		w := fpWidth(word >> 25 & 3)
		if w == 0 || !ext.Has(fpExt(w)) || rmReserved(funct3(word)) {
			return in
		}
		ops := map[uint32]Op{0x43: OpFMADD, 0x47: OpFMSUB, 0x4B: OpFNMSUB, 0x4F: OpFNMADD}
		in.Op, in.FW, in.Rs3, in.RM = ops[word&0x7F], w, fieldRs3(word), uint8(funct3(word))
	case 0x53: // OP-FP
		decodeOpFP(&in, word, ext)
	}
	return in
}

func fpLoadStoreWidth(f3 uint32) softfloat.Width {
	switch f3 {
	case 2:
		return softfloat.W32
	case 3:
		return softfloat.W64
	case 4:
		return softfloat.W128
	default:
		return 0
	}
}

func decodeOpFP(in *Inst, word uint32, ext ExtSet) {
	w := fpWidth(word >> 25 & 3)
	if w == 0 || !ext.Has(fpExt(w)) {
		return
	}
	in.FW = w
	rm := funct3(word)
	in.RM = uint8(rm)
	needRM := func() bool { return !rmReserved(rm) }

	switch word >> 27 { // funct7 minus the fmt field
	case 0x00:
		if needRM() {
			in.Op = OpFADD
		}
	case 0x01:
		if needRM() {
			in.Op = OpFSUB
		}
	case 0x02:
		if needRM() {
			in.Op = OpFMUL
		}
	case 0x03:
		if needRM() {
			in.Op = OpFDIV
		}
	case 0x0B: // FSQRT
		if in.Rs2 == 0 && needRM() {
			in.Op = OpFSQRT
		}
	case 0x04: // FSGNJ/FSGNJN/FSGNJX
		switch rm {
		case 0:
			in.Op = OpFSGNJ
		case 1:
			in.Op = OpFSGNJN
		case 2:
			in.Op = OpFSGNJX
		}
	case 0x05: // FMIN/FMAX
		switch rm {
		case 0:
			in.Op = OpFMIN
		case 1:
			in.Op = OpFMAX
		}
	case 0x14: // FEQ/FLT/FLE
		switch rm {
		case 2:
			in.Op = OpFEQ
		case 1:
			in.Op = OpFLT
		case 0:
			in.Op = OpFLE
		}
	case 0x18: // FCVT.W/.WU from float
		if !needRM() {
			return
		}
		switch in.Rs2 {
		case 0:
			in.Op = OpFCVTWF
		case 1:
			in.Op = OpFCVTWUF
		}
	case 0x1A: // FCVT to float from W/WU
		if !needRM() {
			return
		}
		switch in.Rs2 {
		case 0:
			in.Op = OpFCVTFW
		case 1:
			in.Op = OpFCVTFWU
		}
	case 0x08: // FCVT between FP formats; rs2 encodes the source format
		src := fpWidth(in.Rs2 & 3)
		if src == 0 || src == w || in.Rs2 > 3 || !ext.Has(fpExt(src)) || !needRM() {
			return
		}
		in.Op, in.FW2 = OpFCVTFF, src
	case 0x1C: // FMV.X.W / FCLASS
		switch {
		case rm == 0 && in.Rs2 == 0 && w == softfloat.W32:
			in.Op = OpFMVXW
		case rm == 1 && in.Rs2 == 0:
			in.Op = OpFCLASS
		}
	case 0x1E: // FMV.W.X
		if rm == 0 && in.Rs2 == 0 && w == softfloat.W32 {
			in.Op = OpFMVWX
		}
	}
}
