package cpu

import "github.com/rvbox/rvbox/softfloat"

// execFloat dispatches the floating-point execution unit. All arithmetic
// runs in the softfloat package; results are correctly rounded and the
// returned exception masks are OR-ed into the FCSR accrued flags. Flags
// are only committed once the instruction can no longer trap.
func (c *CPU) execFloat(env Environment, in *Inst) *Exception {
	w := in.FW

	switch in.Op {
	case OpFLoad:
		addr := c.X(in.Rs1) + uint32(in.Imm)
		v, exc := c.loadWide(env, addr, w)
		if exc != nil {
			return exc
		}
		c.writeFloat(in.Rd, w, v)
		return nil
	case OpFStore:
		addr := c.X(in.Rs1) + uint32(in.Imm)
		return c.storeWide(env, addr, w, c.rawFloat(in.Rs2, w))
	case OpFSGNJ, OpFSGNJN, OpFSGNJX:
		a := c.readFloat(in.Rs1, w)
		b := c.readFloat(in.Rs2, w)
		c.writeFloat(in.Rd, w, signInject(in.Op, w, a, b))
		return nil
	case OpFMVXW:
		c.SetX(in.Rd, uint32(c.readFloat(in.Rs1, softfloat.W32).Lo))
		return nil
	case OpFMVWX:
		c.writeFloat(in.Rd, softfloat.W32, softfloat.B128{Lo: uint64(c.X(in.Rs1))})
		return nil
	case OpFCLASS:
		c.SetX(in.Rd, softfloat.Classify(w, c.readFloat(in.Rs1, w)))
		return nil
	case OpFMIN:
		v, fl := softfloat.Min(w, c.readFloat(in.Rs1, w), c.readFloat(in.Rs2, w))
		c.writeFloat(in.Rd, w, v)
		c.accrue(fl)
		return nil
	case OpFMAX:
		v, fl := softfloat.Max(w, c.readFloat(in.Rs1, w), c.readFloat(in.Rs2, w))
		c.writeFloat(in.Rd, w, v)
		c.accrue(fl)
		return nil
	case OpFEQ, OpFLT, OpFLE:
		a := c.readFloat(in.Rs1, w)
		b := c.readFloat(in.Rs2, w)
		var res bool
		var fl softfloat.Flags
		switch in.Op {
		case OpFEQ:
			res, fl = softfloat.Eq(w, a, b)
		case OpFLT:
			res, fl = softfloat.Lt(w, a, b)
		default:
			res, fl = softfloat.Le(w, a, b)
		}
		if res {
			c.SetX(in.Rd, 1)
		} else {
			c.SetX(in.Rd, 0)
		}
		c.accrue(fl)
		return nil
	}

	// Everything below rounds, so the rm field must resolve first.
	rm, exc := c.resolveRM(in)
	if exc != nil {
		return exc
	}

	switch in.Op {
	case OpFADD:
		v, fl := softfloat.Add(w, c.readFloat(in.Rs1, w), c.readFloat(in.Rs2, w), rm)
		c.writeFloat(in.Rd, w, v)
		c.accrue(fl)
	case OpFSUB:
		v, fl := softfloat.Sub(w, c.readFloat(in.Rs1, w), c.readFloat(in.Rs2, w), rm)
		c.writeFloat(in.Rd, w, v)
		c.accrue(fl)
	case OpFMUL:
		v, fl := softfloat.Mul(w, c.readFloat(in.Rs1, w), c.readFloat(in.Rs2, w), rm)
		c.writeFloat(in.Rd, w, v)
		c.accrue(fl)
	case OpFDIV:
		v, fl := softfloat.Div(w, c.readFloat(in.Rs1, w), c.readFloat(in.Rs2, w), rm)
		c.writeFloat(in.Rd, w, v)
		c.accrue(fl)
	case OpFSQRT:
		var accurate bool
		switch env.SqrtMode(w) {
		case SqrtAccurate:
			if w == softfloat.W128 {
				// Accurate binary128 roots are always rejected; quad
				// width only gets the fast root.
				return excf(CauseIllegalInstruction, in.Raw)
			}
			accurate = true
		case SqrtFast:
			accurate = false
		default:
			return excf(CauseIllegalInstruction, in.Raw)
		}
		v, fl, _ := softfloat.Sqrt(w, c.readFloat(in.Rs1, w), rm, accurate)
		c.writeFloat(in.Rd, w, v)
		c.accrue(fl)
	case OpFMADD, OpFMSUB, OpFNMSUB, OpFNMADD:
		a := c.readFloat(in.Rs1, w)
		b := c.readFloat(in.Rs2, w)
		d := c.readFloat(in.Rs3, w)
		switch in.Op {
		case OpFMSUB:
			d = softfloat.Negate(w, d)
		case OpFNMSUB:
			a = softfloat.Negate(w, a)
		case OpFNMADD:
			a = softfloat.Negate(w, a)
			d = softfloat.Negate(w, d)
		}
		v, fl := softfloat.FMA(w, a, b, d, rm)
		c.writeFloat(in.Rd, w, v)
		c.accrue(fl)
	case OpFCVTWF:
		v, fl := softfloat.ToInt32(w, c.readFloat(in.Rs1, w), rm)
		c.SetX(in.Rd, v)
		c.accrue(fl)
	case OpFCVTWUF:
		v, fl := softfloat.ToUint32(w, c.readFloat(in.Rs1, w), rm)
		c.SetX(in.Rd, v)
		c.accrue(fl)
	case OpFCVTFW:
		v, fl := softfloat.FromInt32(w, c.X(in.Rs1), rm)
		c.writeFloat(in.Rd, w, v)
		c.accrue(fl)
	case OpFCVTFWU:
		v, fl := softfloat.FromUint32(w, c.X(in.Rs1), rm)
		c.writeFloat(in.Rd, w, v)
		c.accrue(fl)
	case OpFCVTFF:
		v, fl := softfloat.Convert(in.FW2, w, c.readFloat(in.Rs1, in.FW2), rm)
		c.writeFloat(in.Rd, w, v)
		c.accrue(fl)
	default:
		return excf(CauseIllegalInstruction, in.Raw)
	}
	return nil
}

// resolveRM turns the instruction rm field into a rounding mode. 0b111
// selects the dynamic mode from FCSR.frm; an invalid dynamic mode makes
// the instruction illegal. The two reserved static encodings were already
// rejected at decode.
func (c *CPU) resolveRM(in *Inst) (softfloat.RoundingMode, *Exception) {
	if in.RM == 7 {
		rm := c.RoundingMode()
		if !rm.Valid() {
			return 0, excf(CauseIllegalInstruction, in.Raw)
		}
		return rm, nil
	}
	return softfloat.RoundingMode(in.RM), nil
}

// signInject implements FSGNJ/FSGNJN/FSGNJX: the magnitude of a with a
// sign derived from b. Pure bit manipulation, no flags.
func signInject(op Op, w softfloat.Width, a, b softfloat.B128) softfloat.B128 {
	signA := floatSign(w, a)
	signB := floatSign(w, b)
	var sign bool
	switch op {
	case OpFSGNJ:
		sign = signB
	case OpFSGNJN:
		sign = !signB
	default: // OpFSGNJX
		sign = signA != signB
	}
	if sign != signA {
		return softfloat.Negate(w, a)
	}
	return a
}

func floatSign(w softfloat.Width, v softfloat.B128) bool {
	switch w {
	case softfloat.W32:
		return v.Lo>>31&1 != 0
	case softfloat.W64:
		return v.Lo>>63 != 0
	default:
		return v.Hi>>63 != 0
	}
}
