package cpu

import (
	"errors"

	"github.com/rvbox/rvbox/softfloat"
)

// Step executes exactly one retired instruction or one trap against env.
// On a trap the exception is delivered through env.Trap and returned; the
// PC does not advance and no architectural state mutated by the faulting
// instruction is committed.
func (c *CPU) Step(env Environment) *Exception {
	exc := c.step(env)
	if exc != nil {
		env.Trap(exc.Cause, exc.Value)
	}
	return exc
}

func (c *CPU) step(env Environment) *Exception {
	if err := env.Charge(Cost{Kind: CostIFetch, Addr: c.pc}); err != nil {
		return chargeException(err)
	}
	ext := c.extSet(env)

	pc := c.pc
	if pc&1 != 0 || (pc&2 != 0 && !ext.Has(ExtC)) {
		return excf(CauseMisalignedFetch, pc)
	}

	lo, exc := c.fetchHalf(env, pc)
	if exc != nil {
		return exc
	}

	var in Inst
	if lo&3 == 3 {
		hi, exc := c.fetchHalf(env, pc+2)
		if exc != nil {
			return exc
		}
		in = Decode(lo|hi<<16, ext)
	} else {
		if !ext.Has(ExtC) {
			return excf(CauseIllegalInstruction, lo)
		}
		word, ok := expandCompressed(lo, ext)
		if !ok {
			return excf(CauseIllegalInstruction, lo)
		}
		in = Decode(word, ext)
		in.Raw = lo
		in.Len = 2
	}
	if in.Op == OpIllegal {
		return excf(CauseIllegalInstruction, in.Raw)
	}

	if err := env.Charge(in.cost()); err != nil {
		return chargeException(err)
	}

	next, exc := c.execute(env, &in)
	if exc != nil {
		return exc
	}
	c.pc = next &^ 1
	return nil
}

func chargeException(err error) *Exception {
	var exc *Exception
	if errors.As(err, &exc) {
		return exc
	}
	return excf(CauseBudgetExhausted, 0)
}

// fetchHalf reads 16 bits at a 2-byte-aligned address through the aligned
// word protocol.
func (c *CPU) fetchHalf(env Environment, addr uint32) (uint32, *Exception) {
	shift := (addr & 2) * 8
	mask := uint32(0xFFFF) << shift
	word, err := env.ReadWord(addr&^3, mask)
	if err != nil {
		if errors.Is(err, ErrMisaligned) {
			return 0, excf(CauseMisalignedFetch, addr)
		}
		return 0, excf(CauseInstructionFault, addr)
	}
	return word >> shift & 0xFFFF, nil
}

// execute dispatches one decoded instruction and returns the next PC.
func (c *CPU) execute(env Environment, in *Inst) (uint32, *Exception) {
	pc := c.pc
	next := pc + in.Len

	switch in.Op {
	case OpLUI:
		c.SetX(in.Rd, uint32(in.Imm))
	case OpAUIPC:
		c.SetX(in.Rd, pc+uint32(in.Imm))
	case OpJAL:
		c.SetX(in.Rd, next)
		next = pc + uint32(in.Imm)
	case OpJALR:
		target := (c.X(in.Rs1) + uint32(in.Imm)) &^ 1
		c.SetX(in.Rd, next)
		next = target
	case OpBEQ, OpBNE, OpBLT, OpBGE, OpBLTU, OpBGEU:
		if branchTaken(in.Op, c.X(in.Rs1), c.X(in.Rs2)) {
			next = pc + uint32(in.Imm)
		}
	case OpLB, OpLH, OpLW, OpLBU, OpLHU:
		v, exc := c.load(env, in)
		if exc != nil {
			return 0, exc
		}
		c.SetX(in.Rd, v)
	case OpSB, OpSH, OpSW:
		if exc := c.store(env, in); exc != nil {
			return 0, exc
		}
	case OpADDI, OpSLTI, OpSLTIU, OpXORI, OpORI, OpANDI, OpSLLI, OpSRLI, OpSRAI:
		c.SetX(in.Rd, aluOp(in.Op, c.X(in.Rs1), uint32(in.Imm)))
	case OpADD, OpSUB, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpSRA, OpOR, OpAND:
		c.SetX(in.Rd, aluOp(in.Op, c.X(in.Rs1), c.X(in.Rs2)))
	case OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU:
		c.SetX(in.Rd, mulDivOp(in.Op, c.X(in.Rs1), c.X(in.Rs2)))
	case OpFENCE, OpFENCEI:
		// Memory-ordering fences are no-ops on a single hart.
	case OpECALL:
		return 0, excf(CauseEcallFromMmode, 0)
	case OpEBREAK:
		return 0, excf(CauseBreakpoint, pc)
	case OpCSRRW, OpCSRRS, OpCSRRC, OpCSRRWI, OpCSRRSI, OpCSRRCI:
		if exc := c.execCSR(env, in); exc != nil {
			return 0, exc
		}
	case OpLR, OpSC, OpAMOSWAP, OpAMOADD, OpAMOXOR, OpAMOAND, OpAMOOR,
		OpAMOMIN, OpAMOMAX, OpAMOMINU, OpAMOMAXU:
		if exc := c.execAtomic(env, in); exc != nil {
			return 0, exc
		}
	default:
		if exc := c.execFloat(env, in); exc != nil {
			return 0, exc
		}
	}
	return next, nil
}

func branchTaken(op Op, a, b uint32) bool {
	switch op {
	case OpBEQ:
		return a == b
	case OpBNE:
		return a != b
	case OpBLT:
		return int32(a) < int32(b)
	case OpBGE:
		return int32(a) >= int32(b)
	case OpBLTU:
		return a < b
	default: // OpBGEU
		return a >= b
	}
}

func aluOp(op Op, a, b uint32) uint32 {
	switch op {
	case OpADDI, OpADD:
		return a + b
	case OpSUB:
		return a - b
	case OpSLTI, OpSLT:
		if int32(a) < int32(b) {
			return 1
		}
		return 0
	case OpSLTIU, OpSLTU:
		if a < b {
			return 1
		}
		return 0
	case OpXORI, OpXOR:
		return a ^ b
	case OpORI, OpOR:
		return a | b
	case OpANDI, OpAND:
		return a & b
	case OpSLLI, OpSLL:
		return a << (b & 31)
	case OpSRLI, OpSRL:
		return a >> (b & 31)
	default: // OpSRAI, OpSRA
		return uint32(int32(a) >> (b & 31))
	}
}

// mulDivOp implements the M extension, with the architecturally defined
// results for division by zero and signed overflow (no traps).
func mulDivOp(op Op, a, b uint32) uint32 {
	switch op {
	case OpMUL:
		return a * b
	case OpMULH:
		return uint32(uint64(int64(int32(a))*int64(int32(b))) >> 32)
	case OpMULHSU:
		return uint32(uint64(int64(int32(a))*int64(b)) >> 32)
	case OpMULHU:
		return uint32(uint64(a) * uint64(b) >> 32)
	case OpDIV:
		switch {
		case b == 0:
			return 0xFFFFFFFF
		case int32(a) == -0x80000000 && int32(b) == -1:
			return a
		default:
			return uint32(int32(a) / int32(b))
		}
	case OpDIVU:
		if b == 0 {
			return 0xFFFFFFFF
		}
		return a / b
	case OpREM:
		switch {
		case b == 0:
			return a
		case int32(a) == -0x80000000 && int32(b) == -1:
			return 0
		default:
			return uint32(int32(a) % int32(b))
		}
	default: // OpREMU
		if b == 0 {
			return a
		}
		return a % b
	}
}

// load synthesizes a sub-word load from the aligned word protocol.
// Accesses crossing a word boundary are misaligned; the core does not
// assemble them from multiple words.
func (c *CPU) load(env Environment, in *Inst) (uint32, *Exception) {
	addr := c.X(in.Rs1) + uint32(in.Imm)
	switch in.Op {
	case OpLB, OpLBU:
		shift := (addr & 3) * 8
		word, exc := c.readWord(env, addr&^3, 0xFF<<shift)
		if exc != nil {
			return 0, exc
		}
		b := word >> shift & 0xFF
		if in.Op == OpLB {
			return uint32(int32(int8(b))), nil
		}
		return b, nil
	case OpLH, OpLHU:
		if addr&1 != 0 {
			return 0, excf(CauseMisalignedLoad, addr)
		}
		shift := (addr & 2) * 8
		word, exc := c.readWord(env, addr&^3, 0xFFFF<<shift)
		if exc != nil {
			return 0, exc
		}
		h := word >> shift & 0xFFFF
		if in.Op == OpLH {
			return uint32(int32(int16(h))), nil
		}
		return h, nil
	default: // OpLW
		if addr&3 != 0 {
			return 0, excf(CauseMisalignedLoad, addr)
		}
		return c.readWord(env, addr, ^uint32(0))
	}
}

func (c *CPU) store(env Environment, in *Inst) *Exception {
	addr := c.X(in.Rs1) + uint32(in.Imm)
	v := c.X(in.Rs2)
	switch in.Op {
	case OpSB:
		shift := (addr & 3) * 8
		splat := v&0xFF | v&0xFF<<8 | v&0xFF<<16 | v&0xFF<<24
		return c.writeWord(env, addr&^3, splat, 0xFF<<shift)
	case OpSH:
		if addr&1 != 0 {
			return excf(CauseMisalignedStore, addr)
		}
		shift := (addr & 2) * 8
		splat := v&0xFFFF | v<<16
		return c.writeWord(env, addr&^3, splat, 0xFFFF<<shift)
	default: // OpSW
		if addr&3 != 0 {
			return excf(CauseMisalignedStore, addr)
		}
		return c.writeWord(env, addr, v, ^uint32(0))
	}
}

func (c *CPU) readWord(env Environment, addr, mask uint32) (uint32, *Exception) {
	word, err := env.ReadWord(addr, mask)
	if err != nil {
		if errors.Is(err, ErrMisaligned) {
			return 0, excf(CauseMisalignedLoad, addr)
		}
		return 0, excf(CauseLoadFault, addr)
	}
	return word, nil
}

func (c *CPU) writeWord(env Environment, addr, data, mask uint32) *Exception {
	if err := env.WriteWord(addr, data, mask); err != nil {
		if errors.Is(err, ErrMisaligned) {
			return excf(CauseMisalignedStore, addr)
		}
		return excf(CauseStoreFault, addr)
	}
	return nil
}

// execAtomic implements LR.W, SC.W and the AMOs. The aq/rl bits are
// decoded but impose no extra ordering on a single hart; the operations
// themselves are atomic with respect to the reservation slot by the
// environment contract.
func (c *CPU) execAtomic(env Environment, in *Inst) *Exception {
	addr := c.X(in.Rs1)
	switch in.Op {
	case OpLR:
		if addr&3 != 0 {
			return excf(CauseMisalignedLoad, addr)
		}
		v, err := env.LoadReservedWord(addr)
		if err != nil {
			if errors.Is(err, ErrMisaligned) {
				return excf(CauseMisalignedLoad, addr)
			}
			return excf(CauseLoadFault, addr)
		}
		c.SetX(in.Rd, v)
		return nil
	case OpSC:
		if addr&3 != 0 {
			return excf(CauseMisalignedStore, addr)
		}
		ok, err := env.StoreReservedWord(addr, c.X(in.Rs2))
		if err != nil {
			if errors.Is(err, ErrMisaligned) {
				return excf(CauseMisalignedStore, addr)
			}
			return excf(CauseStoreFault, addr)
		}
		if ok {
			c.SetX(in.Rd, 0)
		} else {
			c.SetX(in.Rd, 1)
		}
		return nil
	}

	if addr&3 != 0 {
		return excf(CauseMisalignedLoad, addr)
	}
	old, exc := c.readWord(env, addr, ^uint32(0))
	if exc != nil {
		return exc
	}
	b := c.X(in.Rs2)
	var v uint32
	switch in.Op {
	case OpAMOSWAP:
		v = b
	case OpAMOADD:
		v = old + b
	case OpAMOXOR:
		v = old ^ b
	case OpAMOAND:
		v = old & b
	case OpAMOOR:
		v = old | b
	case OpAMOMIN:
		v = old
		if int32(b) < int32(old) {
			v = b
		}
	case OpAMOMAX:
		v = old
		if int32(b) > int32(old) {
			v = b
		}
	case OpAMOMINU:
		v = old
		if b < old {
			v = b
		}
	default: // OpAMOMAXU
		v = old
		if b > old {
			v = b
		}
	}
	if exc := c.writeWord(env, addr, v, ^uint32(0)); exc != nil {
		return exc
	}
	c.SetX(in.Rd, old)
	return nil
}

// loadWide reads an FP operand of 1, 2 or 4 words. Wider-than-word
// accesses only require 4-byte alignment; the words are read in
// ascending address order, least significant first.
func (c *CPU) loadWide(env Environment, addr uint32, w softfloat.Width) (softfloat.B128, *Exception) {
	if addr&3 != 0 {
		return softfloat.B128{}, excf(CauseMisalignedLoad, addr)
	}
	var words [4]uint32
	n := uint32(w) / 32
	for i := uint32(0); i < n; i++ {
		v, exc := c.readWord(env, addr+4*i, ^uint32(0))
		if exc != nil {
			return softfloat.B128{}, exc
		}
		words[i] = v
	}
	return softfloat.B128{
		Lo: uint64(words[0]) | uint64(words[1])<<32,
		Hi: uint64(words[2]) | uint64(words[3])<<32,
	}, nil
}

func (c *CPU) storeWide(env Environment, addr uint32, w softfloat.Width, v softfloat.B128) *Exception {
	if addr&3 != 0 {
		return excf(CauseMisalignedStore, addr)
	}
	words := [4]uint32{
		uint32(v.Lo), uint32(v.Lo >> 32),
		uint32(v.Hi), uint32(v.Hi >> 32),
	}
	n := uint32(w) / 32
	for i := uint32(0); i < n; i++ {
		if exc := c.writeWord(env, addr+4*i, words[i], ^uint32(0)); exc != nil {
			return exc
		}
	}
	return nil
}
