package cpu

import (
	"testing"

	"github.com/rvbox/rvbox/softfloat"
)

func allExts() ExtSet {
	var s ExtSet
	for e := Extension(0); e < numExtensions; e++ {
		s = s.With(e)
	}
	return s
}

func TestDecode_Immediates(t *testing.T) {
	ext := allExts()
	luiImm := uint32(0xABCDE000)
	cases := []struct {
		name string
		word uint32
		op   Op
		imm  int32
	}{
		{"ADDI neg", EncodeI(0x13, 1, 0, 0, -1), OpADDI, -1},
		{"LW neg", EncodeI(0x03, 1, 2, 2, -2048), OpLW, -2048},
		{"SW", EncodeS(0x23, 2, 1, 2, 2047), OpSW, 2047},
		{"BEQ back", EncodeB(0x63, 0, 1, 2, -4096), OpBEQ, -4096},
		{"JAL fwd", EncodeJ(0x6F, 1, 0xFFFFE), OpJAL, 0xFFFFE},
		{"JAL back", EncodeJ(0x6F, 1, -1048576), OpJAL, -1048576},
		{"LUI", EncodeU(0x37, 1, luiImm), OpLUI, int32(luiImm)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := Decode(tc.word, ext)
			if in.Op != tc.op {
				t.Fatalf("op = %d, want %d", in.Op, tc.op)
			}
			if in.Imm != tc.imm {
				t.Errorf("imm = %d, want %d", in.Imm, tc.imm)
			}
		})
	}
}

func TestDecode_ShiftImmediates(t *testing.T) {
	ext := allExts()
	in := Decode(EncodeI(0x13, 1, 5, 2, 7|0x400), ext) // SRAI x1, x2, 7
	if in.Op != OpSRAI || in.Imm != 7 {
		t.Errorf("SRAI decode = op %d imm %d", in.Op, in.Imm)
	}
	// Shift with a stray funct7 bit is unallocated.
	if in := Decode(EncodeI(0x13, 1, 1, 2, 7|0x200), ext); in.Op != OpIllegal {
		t.Errorf("SLLI with reserved funct7 decoded to %d", in.Op)
	}
}

func TestDecode_ExtensionGating(t *testing.T) {
	full := allExts()
	cases := []struct {
		name string
		word uint32
		ext  Extension
	}{
		{"MUL", EncodeR(0x33, 1, 0, 2, 3, 1), ExtM},
		{"LR.W", EncodeR(0x2F, 1, 2, 2, 0, 0x02 << 2), ExtA},
		{"FADD.S", EncodeR(0x53, 1, 0, 2, 3, 0), ExtF},
		{"FADD.D", EncodeR(0x53, 1, 0, 2, 3, 1), ExtD},
		{"FADD.Q", EncodeR(0x53, 1, 0, 2, 3, 3), ExtQ},
		{"CSRRW", EncodeI(0x73, 1, 1, 2, 0x340), ExtZicsr},
		{"FENCE.I", EncodeI(0x0F, 0, 1, 0, 0), ExtZifencei},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if in := Decode(tc.word, full); in.Op == OpIllegal {
				t.Fatalf("decodes illegal with all extensions on")
			}
			without := full &^ (1 << tc.ext)
			if in := Decode(tc.word, without); in.Op != OpIllegal {
				t.Errorf("still decodes with %v disabled", tc.ext)
			}
		})
	}
}

func TestDecode_FPWidthAndRM(t *testing.T) {
	ext := allExts()
	in := Decode(EncodeR(0x53, 1, 7, 2, 3, 0x0C|1), ext) // FDIV.D rm=dyn
	if in.Op != OpFDIV || in.FW != softfloat.W64 || in.RM != 7 {
		t.Errorf("FDIV.D = op %d fw %d rm %d", in.Op, in.FW, in.RM)
	}

	// Reserved static rounding modes are illegal at decode.
	for _, rm := range []uint32{5, 6} {
		if in := Decode(EncodeR(0x53, 1, rm, 2, 3, 0), ext); in.Op != OpIllegal {
			t.Errorf("FADD.S with rm=%d decoded to %d", rm, in.Op)
		}
	}

	// The binary16 fmt encoding is unallocated here.
	if in := Decode(EncodeR(0x53, 1, 0, 2, 3, 2), ext); in.Op != OpIllegal {
		t.Errorf("fmt=10 decoded to %d", in.Op)
	}

	// FMV.X.D does not exist on RV32.
	if in := Decode(EncodeR(0x53, 1, 0, 2, 0, 0x70|1), ext); in.Op != OpIllegal {
		t.Errorf("FMV.X.D decoded to %d", in.Op)
	}

	// FCVT.D.D (same source and destination format) is unallocated.
	if in := Decode(EncodeR(0x53, 1, 0, 2, 1, 0x20|1), ext); in.Op != OpIllegal {
		t.Errorf("FCVT.D.D decoded to %d", in.Op)
	}

	// FCVT.S.D carries the source width.
	in = Decode(EncodeR(0x53, 1, 0, 2, 1, 0x20), ext)
	if in.Op != OpFCVTFF || in.FW != softfloat.W32 || in.FW2 != softfloat.W64 {
		t.Errorf("FCVT.S.D = op %d fw %d fw2 %d", in.Op, in.FW, in.FW2)
	}
}

func TestDecode_FMAddFamily(t *testing.T) {
	ext := allExts()
	in := Decode(EncodeR4(0x4F, 1, 0, 2, 3, 4, 1), ext) // FNMADD.D
	if in.Op != OpFNMADD || in.FW != softfloat.W64 || in.Rs3 != 4 {
		t.Errorf("FNMADD.D = op %d fw %d rs3 %d", in.Op, in.FW, in.Rs3)
	}
}

func TestDecode_SystemEdgeCases(t *testing.T) {
	ext := allExts()
	// ECALL with rd != 0 is unallocated.
	if in := Decode(EncodeI(0x73, 1, 0, 0, 0), ext); in.Op != OpIllegal {
		t.Errorf("ECALL with rd!=0 decoded to %d", in.Op)
	}
	// JALR with funct3 != 0 is unallocated.
	if in := Decode(EncodeI(0x67, 1, 3, 2, 0), ext); in.Op != OpIllegal {
		t.Errorf("JALR funct3=3 decoded to %d", in.Op)
	}
	// SC.W carries aq/rl through.
	in := Decode(EncodeR(0x2F, 1, 2, 2, 3, 0x03<<2|0x3), ext)
	if in.Op != OpSC || !in.Aq || !in.Rl {
		t.Errorf("SC.W aq/rl = %v/%v", in.Aq, in.Rl)
	}
}
