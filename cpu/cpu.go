package cpu

import (
	"fmt"

	"github.com/rvbox/rvbox/softfloat"
)

// FloatNone configures a CPU without a floating-point register file.
const FloatNone softfloat.Width = 0

// FCSR field layout: five accrued exception flags in the low bits, the
// rounding mode above them. The register is 8 bits wide; everything above
// reads as zero.
const (
	fcsrFlagsMask uint32 = 0x1F
	fcsrRMShift          = 5
	fcsrRMMask    uint32 = 0x7
)

// CPU is the architectural state of one hart: the integer register file,
// the program counter, and (when configured) the floating-point register
// file and FCSR. The reservation slot lives in the environment, not here.
//
// A CPU is not safe for concurrent use; distinct instances may be stepped
// concurrently against thread-safe environments.
type CPU struct {
	x    [32]uint32
	pc   uint32
	f    [32]softfloat.B128
	fcsr uint8

	width softfloat.Width // 0 when no FPU is configured
}

// New returns a CPU with the given floating-point width, which must be
// FloatNone, softfloat.W32, softfloat.W64 or softfloat.W128. All registers
// start at zero.
func New(width softfloat.Width) (*CPU, error) {
	switch width {
	case FloatNone, softfloat.W32, softfloat.W64, softfloat.W128:
		return &CPU{width: width}, nil
	default:
		return nil, fmt.Errorf("cpu: unsupported float width %d", width)
	}
}

// FloatWidth returns the configured FP register width, or FloatNone.
func (c *CPU) FloatWidth() softfloat.Width { return c.width }

// X reads integer register i. x0 always reads zero.
func (c *CPU) X(i uint32) uint32 {
	if i == 0 {
		return 0
	}
	return c.x[i&31]
}

// SetX writes integer register i. Writes to x0 are dropped.
func (c *CPU) SetX(i, v uint32) {
	if i == 0 {
		return
	}
	c.x[i&31] = v
}

// PC returns the program counter. Its low bit is always zero.
func (c *CPU) PC() uint32 { return c.pc }

// SetPC sets the program counter. The low bit is forced to zero; it can
// never be set under any circumstances. Bit 1 may be set: if C is disabled
// at the next step, that fetch raises a misaligned-fetch trap.
func (c *CPU) SetPC(pc uint32) { c.pc = pc &^ 1 }

// F reads the raw bit pattern of FP register i, without NaN-box checking.
func (c *CPU) F(i uint32) softfloat.B128 { return c.f[i&31] }

// SetF writes the raw bit pattern of FP register i. The value is masked to
// the configured width.
func (c *CPU) SetF(i uint32, v softfloat.B128) {
	c.f[i&31] = c.maskToWidth(v)
}

// FCSR returns the 8-bit FP control/status register.
func (c *CPU) FCSR() uint8 { return c.fcsr }

// SetFCSR writes the FP control/status register, dropping bits above 7.
func (c *CPU) SetFCSR(v uint32) { c.fcsr = uint8(v & 0xFF) }

// Fflags returns the five accrued exception flags.
func (c *CPU) Fflags() softfloat.Flags {
	return softfloat.Flags(uint32(c.fcsr) & fcsrFlagsMask)
}

// RoundingMode returns the dynamic rounding mode field of FCSR. The value
// may be invalid (>4); instructions selecting it then trap as illegal.
func (c *CPU) RoundingMode() softfloat.RoundingMode {
	return softfloat.RoundingMode((uint32(c.fcsr) >> fcsrRMShift) & fcsrRMMask)
}

func (c *CPU) accrue(fl softfloat.Flags) {
	c.fcsr |= uint8(fl) & uint8(fcsrFlagsMask)
}

func (c *CPU) maskToWidth(v softfloat.B128) softfloat.B128 {
	switch c.width {
	case softfloat.W32:
		return softfloat.B128{Lo: v.Lo & 0xFFFFFFFF}
	case softfloat.W64:
		return softfloat.B128{Lo: v.Lo}
	case softfloat.W128:
		return v
	default:
		return softfloat.B128{}
	}
}

// readFloat reads FP register i as a width-w value, applying the NaN-box
// check: if the register holds a wider value whose unused high bits are
// not all-ones, the canonical NaN of width w is returned instead.
func (c *CPU) readFloat(i uint32, w softfloat.Width) softfloat.B128 {
	v := c.f[i&31]
	if w >= c.width {
		return v
	}
	boxed := true
	switch {
	case c.width == softfloat.W64: // w == W32
		boxed = v.Lo>>32 == 0xFFFFFFFF
	case w == softfloat.W64: // width == W128
		boxed = v.Hi == ^uint64(0)
	default: // w == W32, width == W128
		boxed = v.Hi == ^uint64(0) && v.Lo>>32 == 0xFFFFFFFF
	}
	if !boxed {
		return softfloat.CanonicalNaN(w)
	}
	switch w {
	case softfloat.W32:
		return softfloat.B128{Lo: v.Lo & 0xFFFFFFFF}
	default: // W64
		return softfloat.B128{Lo: v.Lo}
	}
}

// rawFloat reads the low w bits of FP register i without the NaN-box
// check. FP stores transfer bits verbatim.
func (c *CPU) rawFloat(i uint32, w softfloat.Width) softfloat.B128 {
	v := c.f[i&31]
	switch w {
	case softfloat.W32:
		return softfloat.B128{Lo: v.Lo & 0xFFFFFFFF}
	case softfloat.W64:
		return softfloat.B128{Lo: v.Lo}
	default:
		return v
	}
}

// writeFloat writes a width-w value into FP register i, NaN-boxing it by
// setting the unused high bits of the register to all-ones.
func (c *CPU) writeFloat(i uint32, w softfloat.Width, v softfloat.B128) {
	if w >= c.width {
		c.f[i&31] = c.maskToWidth(v)
		return
	}
	switch {
	case c.width == softfloat.W64: // w == W32
		c.f[i&31] = softfloat.B128{Lo: v.Lo&0xFFFFFFFF | ^uint64(0xFFFFFFFF)}
	case w == softfloat.W64: // width == W128
		c.f[i&31] = softfloat.B128{Lo: v.Lo, Hi: ^uint64(0)}
	default: // w == W32, width == W128
		c.f[i&31] = softfloat.B128{Lo: v.Lo&0xFFFFFFFF | ^uint64(0xFFFFFFFF), Hi: ^uint64(0)}
	}
}

// extSet queries the environment's per-step extension gates, masked by
// what the configured FP width can support.
func (c *CPU) extSet(env Environment) ExtSet {
	var s ExtSet
	for e := Extension(0); e < numExtensions; e++ {
		if !env.ExtensionEnabled(e) {
			continue
		}
		switch e {
		case ExtF:
			if c.width < softfloat.W32 {
				continue
			}
		case ExtD:
			if c.width < softfloat.W64 {
				continue
			}
		case ExtQ:
			if c.width < softfloat.W128 {
				continue
			}
		}
		s = s.With(e)
	}
	return s
}
