package cpu

import (
	"testing"

	"github.com/rvbox/rvbox/softfloat"
)

func TestStep_ADDIAddStore(t *testing.T) {
	// ADDI x1, x0, 42; ADD x2, x1, x1; SW x2, 0(x0)
	env := newTestEnv()
	env.loadProgram(0x1000, []uint32{
		EncodeI(0x13, 1, 0, 0, 42),
		EncodeR(0x33, 2, 0, 1, 1, 0),
		EncodeS(0x23, 2, 0, 2, 0),
	})
	c := newCPU(t, FloatNone)
	c.SetPC(0x1000)
	stepN(t, c, env, 3)

	if got := c.X(1); got != 42 {
		t.Errorf("x1 = %d, want 42", got)
	}
	if got := c.X(2); got != 84 {
		t.Errorf("x2 = %d, want 84", got)
	}
	if got := c.PC(); got != 0x100C {
		t.Errorf("pc = 0x%08x, want 0x100C", got)
	}
	if got := env.ram[0]; got != 84 {
		t.Errorf("mem[0] = %d, want 84", got)
	}
}

func TestStep_LUISRAISignExtension(t *testing.T) {
	// LUI x1, 0xFFFFF000; SRAI x1, x1, 12 -> all-ones
	env := newTestEnv()
	env.loadProgram(0, []uint32{
		EncodeU(0x37, 1, 0xFFFFF000),
		EncodeI(0x13, 1, 5, 1, 12|0x400),
	})
	c := newCPU(t, FloatNone)
	stepN(t, c, env, 2)
	if got := c.X(1); got != 0xFFFFFFFF {
		t.Errorf("x1 = 0x%08x, want 0xFFFFFFFF", got)
	}
}

func TestStep_X0WritesDropped(t *testing.T) {
	env := newTestEnv()
	env.loadProgram(0, []uint32{
		EncodeI(0x13, 0, 0, 0, 99), // ADDI x0, x0, 99
	})
	c := newCPU(t, FloatNone)
	stepN(t, c, env, 1)
	if got := c.X(0); got != 0 {
		t.Errorf("x0 = %d, want 0", got)
	}
}

func TestStep_BranchesAndJumps(t *testing.T) {
	env := newTestEnv()
	env.loadProgram(0, []uint32{
		EncodeI(0x13, 1, 0, 0, 5),     // ADDI x1, x0, 5
		EncodeB(0x63, 0, 1, 0, 8),     // BEQ x1, x0, +8 (not taken)
		EncodeB(0x63, 1, 1, 0, 8),     // BNE x1, x0, +8 (taken)
		0,                             // skipped
		EncodeJ(0x6F, 2, 8),           // JAL x2, +8
		0,                             // skipped
		EncodeI(0x67, 3, 0, 2, 5),     // JALR x3, 5(x2) -> target (0x14+5)&^1 = 0x18
	})
	c := newCPU(t, FloatNone)
	stepN(t, c, env, 5)
	if got := c.PC(); got != 0x18 {
		t.Fatalf("pc = 0x%08x, want 0x18", got)
	}
	if got := c.X(2); got != 0x14 {
		t.Errorf("x2 (link) = 0x%08x, want 0x14", got)
	}
	if got := c.X(3); got != 0x1C {
		t.Errorf("x3 (link) = 0x%08x, want 0x1C", got)
	}
}

func TestStep_BranchMisalignedTargetTrapsAtNextFetch(t *testing.T) {
	// Branch to a target with bit 1 set while C is disabled: the branch
	// itself retires, the following fetch traps.
	env := newTestEnv()
	env.disabled[ExtC] = true
	env.loadProgram(0, []uint32{
		EncodeB(0x63, 0, 0, 0, 6), // BEQ x0, x0, +6 (taken, target 0x6)
	})
	c := newCPU(t, FloatNone)
	if exc := c.Step(env); exc != nil {
		t.Fatalf("branch step trapped early: %v", exc)
	}
	if got := c.PC(); got != 6 {
		t.Fatalf("pc = 0x%08x, want 0x6", got)
	}
	exc := c.Step(env)
	if exc == nil || exc.Cause != CauseMisalignedFetch {
		t.Fatalf("exc = %v, want misaligned fetch", exc)
	}
	if exc.Value != 6 {
		t.Errorf("trap value = 0x%x, want 0x6", exc.Value)
	}
	if len(env.traps) != 1 {
		t.Errorf("trap not delivered to environment")
	}
}

func TestStep_SubWordLoadsAndStores(t *testing.T) {
	env := newTestEnv()
	env.ram[0x100] = 0x8899AABB
	env.loadProgram(0, []uint32{
		EncodeI(0x03, 1, 0, 0, 0x101), // LB x1, 0x101(x0) -> 0xAA sign-extended
		EncodeI(0x03, 2, 4, 0, 0x101), // LBU x2
		EncodeI(0x03, 3, 1, 0, 0x102), // LH x3, offset 2 -> 0x8899 sign-extended
		EncodeI(0x03, 4, 5, 0, 0x102), // LHU x4
		EncodeI(0x13, 5, 0, 0, -16),   // ADDI x5, x0, -16 (0xFFFFFFF0)
		EncodeS(0x23, 0, 0, 5, 0x103), // SB x5, 0x103(x0)
		EncodeS(0x23, 1, 0, 5, 0x100), // SH x5, 0x100(x0)
	})
	c := newCPU(t, FloatNone)
	stepN(t, c, env, 7)
	if got := c.X(1); got != 0xFFFFFFAA {
		t.Errorf("LB = 0x%08x, want 0xFFFFFFAA", got)
	}
	if got := c.X(2); got != 0xAA {
		t.Errorf("LBU = 0x%08x, want 0xAA", got)
	}
	if got := c.X(3); got != 0xFFFF8899 {
		t.Errorf("LH = 0x%08x, want 0xFFFF8899", got)
	}
	if got := c.X(4); got != 0x8899 {
		t.Errorf("LHU = 0x%08x, want 0x8899", got)
	}
	if got := env.ram[0x100]; got != 0xF099FFF0 {
		t.Errorf("mem[0x100] = 0x%08x, want 0xF099FFF0", got)
	}
}

func TestStep_MisalignedAccessesTrap(t *testing.T) {
	cases := []struct {
		name  string
		word  uint32
		cause Cause
	}{
		{"LH at 1", EncodeI(0x03, 1, 1, 0, 0x101), CauseMisalignedLoad},
		{"LW at 2", EncodeI(0x03, 1, 2, 0, 0x102), CauseMisalignedLoad},
		{"SH at 3", EncodeS(0x23, 1, 0, 1, 0x103), CauseMisalignedStore},
		{"SW at 1", EncodeS(0x23, 2, 0, 1, 0x101), CauseMisalignedStore},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			env.loadProgram(0, []uint32{tc.word})
			c := newCPU(t, FloatNone)
			exc := c.Step(env)
			if exc == nil || exc.Cause != tc.cause {
				t.Fatalf("exc = %v, want cause %v", exc, tc.cause)
			}
			if c.PC() != 0 {
				t.Errorf("pc advanced to 0x%x on trap", c.PC())
			}
		})
	}
}

func TestStep_LoadFaultPropagates(t *testing.T) {
	env := newTestEnv()
	env.hasFault = true
	env.faultAt = 0x2000
	env.loadProgram(0, []uint32{
		EncodeI(0x03, 1, 2, 2, 0), // LW x1, 0(x2)
	})
	c := newCPU(t, FloatNone)
	c.SetX(2, 0x2000)
	exc := c.Step(env)
	if exc == nil || exc.Cause != CauseLoadFault || exc.Value != 0x2000 {
		t.Fatalf("exc = %v, want load fault at 0x2000", exc)
	}
}

func TestStep_MulDiv(t *testing.T) {
	cases := []struct {
		name   string
		f3     uint32
		a, b   uint32
		want   uint32
	}{
		{"MUL", 0, 7, 6, 42},
		{"MULH", 1, 0x80000000, 2, 0xFFFFFFFF},
		{"MULHSU", 2, 0xFFFFFFFF, 0xFFFFFFFF, 0xFFFFFFFF},
		{"MULHU", 3, 0xFFFFFFFF, 0xFFFFFFFF, 0xFFFFFFFE},
		{"DIV", 4, 0xFFFFFFF9, 2, 0xFFFFFFFD}, // -7/2 = -3
		{"DIV by zero", 4, 7, 0, 0xFFFFFFFF},
		{"DIV overflow", 4, 0x80000000, 0xFFFFFFFF, 0x80000000},
		{"DIVU by zero", 5, 7, 0, 0xFFFFFFFF},
		{"REM", 6, 0xFFFFFFF9, 2, 0xFFFFFFFF}, // -7%2 = -1
		{"REM by zero", 6, 7, 0, 7},
		{"REM overflow", 6, 0x80000000, 0xFFFFFFFF, 0},
		{"REMU", 7, 7, 2, 1},
		{"REMU by zero", 7, 7, 0, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			env.loadProgram(0, []uint32{EncodeR(0x33, 3, tc.f3, 1, 2, 1)})
			c := newCPU(t, FloatNone)
			c.SetX(1, tc.a)
			c.SetX(2, tc.b)
			stepN(t, c, env, 1)
			if got := c.X(3); got != tc.want {
				t.Errorf("got 0x%08x, want 0x%08x", got, tc.want)
			}
		})
	}
}

func TestStep_DivRemIdentity(t *testing.T) {
	pairs := [][2]uint32{
		{100, 7}, {0xFFFFFF00, 3}, {5, 0xFFFFFFFB}, {0x7FFFFFFF, 0xFFFFFFFF},
	}
	for _, p := range pairs {
		a, b := p[0], p[1]
		q := mulDivOp(OpDIV, a, b)
		r := mulDivOp(OpREM, a, b)
		if got := q*b + r; got != a {
			t.Errorf("a=%#x b=%#x: q*b+r = %#x, want a", a, b, got)
		}
	}
}

func TestStep_LRSC(t *testing.T) {
	env := newTestEnv()
	env.ram[0x200] = 1234
	env.loadProgram(0, []uint32{
		EncodeR(0x2F, 1, 2, 2, 0, 0x02<<2),  // LR.W x1, (x2)
		EncodeR(0x2F, 3, 2, 2, 4, 0x03<<2),  // SC.W x3, x4, (x2)
		EncodeR(0x2F, 1, 2, 2, 0, 0x02<<2),  // LR.W again
		EncodeS(0x23, 2, 0, 5, 0x200),       // SW x5, 0x200(x0): kills reservation
		EncodeR(0x2F, 3, 2, 2, 4, 0x03<<2),  // SC.W x3, x4, (x2): fails
	})
	c := newCPU(t, FloatNone)
	c.SetX(2, 0x200)
	c.SetX(4, 5678)
	c.SetX(5, 9)

	stepN(t, c, env, 2)
	if got := c.X(1); got != 1234 {
		t.Errorf("LR.W = %d, want 1234", got)
	}
	if got := c.X(3); got != 0 {
		t.Errorf("SC.W rd = %d, want 0 (success)", got)
	}
	if got := env.ram[0x200]; got != 5678 {
		t.Errorf("mem = %d, want 5678", got)
	}
	if env.reserved != nil {
		t.Error("reservation not cleared by successful SC")
	}

	stepN(t, c, env, 3)
	if got := c.X(3); got != 1 {
		t.Errorf("SC.W after intervening store = %d, want 1 (failure)", got)
	}
	if got := env.ram[0x200]; got != 9 {
		t.Errorf("mem = %d, want 9 (SC must not land)", got)
	}
}

func TestStep_AMOs(t *testing.T) {
	cases := []struct {
		name    string
		funct5  uint32
		old, b  uint32
		wantMem uint32
	}{
		{"AMOSWAP", 0x01, 10, 3, 3},
		{"AMOADD", 0x00, 10, 3, 13},
		{"AMOXOR", 0x04, 0xFF, 0x0F, 0xF0},
		{"AMOAND", 0x0C, 0xFF, 0x0F, 0x0F},
		{"AMOOR", 0x08, 0xF0, 0x0F, 0xFF},
		{"AMOMIN", 0x10, 0xFFFFFFFF, 1, 0xFFFFFFFF}, // -1 < 1
		{"AMOMAX", 0x14, 0xFFFFFFFF, 1, 1},
		{"AMOMINU", 0x18, 0xFFFFFFFF, 1, 1},
		{"AMOMAXU", 0x1C, 0xFFFFFFFF, 1, 0xFFFFFFFF},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			env.ram[0x300] = tc.old
			env.loadProgram(0, []uint32{
				EncodeR(0x2F, 1, 2, 2, 3, tc.funct5<<2),
			})
			c := newCPU(t, FloatNone)
			c.SetX(2, 0x300)
			c.SetX(3, tc.b)
			stepN(t, c, env, 1)
			if got := c.X(1); got != tc.old {
				t.Errorf("rd = 0x%x, want old value 0x%x", got, tc.old)
			}
			if got := env.ram[0x300]; got != tc.wantMem {
				t.Errorf("mem = 0x%x, want 0x%x", got, tc.wantMem)
			}
		})
	}
}

func TestStep_AMOMisalignedTraps(t *testing.T) {
	env := newTestEnv()
	env.loadProgram(0, []uint32{
		EncodeR(0x2F, 1, 2, 2, 0, 0x02<<2), // LR.W x1, (x2)
	})
	c := newCPU(t, FloatNone)
	c.SetX(2, 0x201)
	exc := c.Step(env)
	if exc == nil || exc.Cause != CauseMisalignedLoad {
		t.Fatalf("exc = %v, want misaligned load", exc)
	}
}

func TestStep_EcallEbreak(t *testing.T) {
	env := newTestEnv()
	env.loadProgram(0, []uint32{
		EncodeI(0x73, 0, 0, 0, 0), // ECALL
	})
	c := newCPU(t, FloatNone)
	exc := c.Step(env)
	if exc == nil || exc.Cause != CauseEcallFromMmode {
		t.Fatalf("ECALL exc = %v", exc)
	}
	if c.PC() != 0 {
		t.Errorf("pc advanced across ECALL trap")
	}

	env = newTestEnv()
	env.loadProgram(0, []uint32{EncodeI(0x73, 0, 0, 0, 1)}) // EBREAK
	c = newCPU(t, FloatNone)
	exc = c.Step(env)
	if exc == nil || exc.Cause != CauseBreakpoint {
		t.Fatalf("EBREAK exc = %v", exc)
	}
}

func TestStep_FenceIsNoOp(t *testing.T) {
	env := newTestEnv()
	env.loadProgram(0, []uint32{
		EncodeI(0x0F, 0, 0, 0, 0x0FF), // FENCE iorw, iorw
		EncodeI(0x0F, 0, 1, 0, 0),     // FENCE.I
	})
	c := newCPU(t, FloatNone)
	stepN(t, c, env, 2)
	if got := c.PC(); got != 8 {
		t.Errorf("pc = 0x%x, want 8", got)
	}
}

func TestStep_BudgetExhaustion(t *testing.T) {
	env := newTestEnv()
	env.loadProgram(0, []uint32{
		EncodeI(0x13, 1, 0, 0, 1),
		EncodeI(0x13, 1, 0, 1, 1),
		EncodeI(0x13, 1, 0, 1, 1),
	})
	env.budget = 4 // two instructions (fetch + execute each)
	c := newCPU(t, FloatNone)
	stepN(t, c, env, 2)
	exc := c.Step(env)
	if exc == nil || exc.Cause != CauseBudgetExhausted {
		t.Fatalf("exc = %v, want budget exhausted", exc)
	}
	if got := c.X(1); got != 2 {
		t.Errorf("x1 = %d, want 2 (third ADDI must not retire)", got)
	}
	if got := c.PC(); got != 8 {
		t.Errorf("pc = 0x%x, want 8", got)
	}
}

func TestStep_IllegalInstruction(t *testing.T) {
	env := newTestEnv()
	env.loadProgram(0, []uint32{0xFFFFFFFF})
	c := newCPU(t, FloatNone)
	exc := c.Step(env)
	if exc == nil || exc.Cause != CauseIllegalInstruction {
		t.Fatalf("exc = %v, want illegal instruction", exc)
	}
	if exc.Value != 0xFFFFFFFF {
		t.Errorf("trap value = 0x%x, want the instruction word", exc.Value)
	}
}

func TestStep_DisabledMTrapsIllegal(t *testing.T) {
	env := newTestEnv()
	env.disabled[ExtM] = true
	env.loadProgram(0, []uint32{EncodeR(0x33, 3, 0, 1, 2, 1)}) // MUL
	c := newCPU(t, FloatNone)
	exc := c.Step(env)
	if exc == nil || exc.Cause != CauseIllegalInstruction {
		t.Fatalf("exc = %v, want illegal instruction", exc)
	}
}

func TestCSR_Variants(t *testing.T) {
	env := newTestEnv()
	env.csrs[0x340] = 0xF0 // mscratch
	env.loadProgram(0, []uint32{
		EncodeI(0x73, 1, 1, 2, 0x340),  // CSRRW x1, mscratch, x2
		EncodeI(0x73, 3, 2, 4, 0x340),  // CSRRS x3, mscratch, x4
		EncodeI(0x73, 5, 3, 6, 0x340),  // CSRRC x5, mscratch, x6
		EncodeI(0x73, 7, 2, 0, 0x340),  // CSRRS x7, mscratch, x0 (read-only)
		EncodeI(0x73, 8, 6, 0x0C, 0x340), // CSRRSI x8, mscratch, 12
	})
	c := newCPU(t, FloatNone)
	c.SetX(2, 0x0F)
	c.SetX(4, 0xF0)
	c.SetX(6, 0x03)
	stepN(t, c, env, 5)

	if got := c.X(1); got != 0xF0 {
		t.Errorf("CSRRW old = 0x%x, want 0xF0", got)
	}
	if got := c.X(3); got != 0x0F {
		t.Errorf("CSRRS old = 0x%x, want 0x0F", got)
	}
	if got := c.X(5); got != 0xFF {
		t.Errorf("CSRRC old = 0x%x, want 0xFF", got)
	}
	if got := c.X(7); got != 0xFC {
		t.Errorf("CSRRS x0 old = 0x%x, want 0xFC", got)
	}
	if got := c.X(8); got != 0xFC {
		t.Errorf("CSRRSI old = 0x%x, want 0xFC", got)
	}
	if got := env.csrs[0x340]; got != 0xFC {
		t.Errorf("final csr = 0x%x, want 0xFC", got)
	}

	// CSRRS with rs1=x0 and CSRRSI with zimm=0 must not write; the pure
	// read must be visible in the access hints.
	sawRead := false
	for _, a := range env.csrLog {
		if a == CSRAccessRead {
			sawRead = true
		}
	}
	if !sawRead {
		t.Error("no pure-read access hint recorded for CSRRS with rs1=x0")
	}
}

func TestCSR_ReadOnlyViolationIsIllegal(t *testing.T) {
	env := newTestEnv()
	env.csrs[0xF11] = VendorID
	env.roCSRs[0xF11] = true
	env.loadProgram(0, []uint32{
		EncodeI(0x73, 1, 1, 2, 0xF11), // CSRRW x1, mvendorid, x2
	})
	c := newCPU(t, FloatNone)
	exc := c.Step(env)
	if exc == nil || exc.Cause != CauseIllegalInstruction {
		t.Fatalf("exc = %v, want illegal instruction", exc)
	}
}

func TestCSR_UnknownCSRIsIllegal(t *testing.T) {
	env := newTestEnv()
	env.loadProgram(0, []uint32{
		EncodeI(0x73, 1, 2, 0, 0x7C0), // CSRRS x1, 0x7C0, x0
	})
	c := newCPU(t, FloatNone)
	exc := c.Step(env)
	if exc == nil || exc.Cause != CauseIllegalInstruction {
		t.Fatalf("exc = %v, want illegal instruction", exc)
	}
}

func TestStep_DisabledZicsrTrapsIllegal(t *testing.T) {
	env := newTestEnv()
	env.disabled[ExtZicsr] = true
	env.csrs[0x340] = 1
	env.loadProgram(0, []uint32{EncodeI(0x73, 1, 2, 0, 0x340)})
	c := newCPU(t, FloatNone)
	exc := c.Step(env)
	if exc == nil || exc.Cause != CauseIllegalInstruction {
		t.Fatalf("exc = %v, want illegal instruction", exc)
	}
}

func TestSnapshotRoundTrip_Integer(t *testing.T) {
	c := newCPU(t, FloatNone)
	for i := uint32(1); i < 32; i++ {
		c.SetX(i, i*0x01010101)
	}
	c.SetPC(0x8000_0042 &^ 1)
	img := c.Snapshot()

	d := newCPU(t, FloatNone)
	if err := d.Restore(img); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	for i := uint32(1); i < 32; i++ {
		if d.X(i) != c.X(i) {
			t.Fatalf("x%d = 0x%x, want 0x%x", i, d.X(i), c.X(i))
		}
	}
	if d.PC() != c.PC() {
		t.Errorf("pc = 0x%x, want 0x%x", d.PC(), c.PC())
	}
}

func TestSnapshot_DigestAndWidthChecks(t *testing.T) {
	c := newCPU(t, softfloat.W64)
	img := c.Snapshot()

	bad := append([]byte(nil), img...)
	bad[10] ^= 1
	if err := c.Restore(bad); err != ErrSnapshotDigest {
		t.Errorf("corrupted image: err = %v, want digest mismatch", err)
	}

	narrow := newCPU(t, softfloat.W32)
	if err := narrow.Restore(img); err == nil {
		t.Error("width mismatch not detected")
	}
}
