// Package softfloat implements deterministic IEEE 754-2019 binary32,
// binary64 and binary128 arithmetic in software. No host floating point is
// involved anywhere, so results are bit-identical across platforms and Go
// versions; every operation returns the correctly rounded result together
// with the exception flags it raised.
//
// Values are carried as raw bit patterns in a 128-bit slab (B128); narrower
// formats occupy the low bits and ignore the rest. Internal arithmetic runs
// on 256-bit integers (holiman/uint256), which is wide enough for the
// binary128 product, quotient and fused-multiply-add intermediates.
package softfloat

import "github.com/holiman/uint256"

// B128 is a 128-bit value slab holding the raw bit pattern of a float.
// binary32 uses Lo[31:0], binary64 uses Lo, binary128 uses Lo and Hi.
type B128 struct {
	Lo uint64
	Hi uint64
}

// Width selects the operand format of an operation.
type Width uint8

// Supported formats, named by their bit width.
const (
	W32  Width = 32
	W64  Width = 64
	W128 Width = 128
)

// Bytes returns the byte width of the format.
func (w Width) Bytes() int { return int(w) / 8 }

// RoundingMode is an IEEE 754 rounding mode, numbered as in the RISC-V
// rm/frm encoding.
type RoundingMode uint8

const (
	// RNE rounds to nearest, ties to even.
	RNE RoundingMode = 0
	// RTZ rounds toward zero.
	RTZ RoundingMode = 1
	// RDN rounds toward negative infinity.
	RDN RoundingMode = 2
	// RUP rounds toward positive infinity.
	RUP RoundingMode = 3
	// RMM rounds to nearest, ties away from zero.
	RMM RoundingMode = 4
)

// Valid reports whether m is one of the five defined rounding modes.
func (m RoundingMode) Valid() bool { return m <= RMM }

// Flags is a set of accrued IEEE 754 exception flags, in the RISC-V fflags
// bit layout.
type Flags uint8

const (
	// FlagNX signals an inexact result.
	FlagNX Flags = 1 << 0
	// FlagUF signals underflow.
	FlagUF Flags = 1 << 1
	// FlagOF signals overflow.
	FlagOF Flags = 1 << 2
	// FlagDZ signals division by zero.
	FlagDZ Flags = 1 << 3
	// FlagNV signals an invalid operation.
	FlagNV Flags = 1 << 4
)

// spec captures the fixed parameters of a binary interchange format.
type spec struct {
	width Width
	prec  uint  // significand bits including the hidden bit
	bias  int32 // exponent bias
	emin  int32 // minimum normal exponent (unbiased, of the MSB)
	emax  int32 // maximum normal exponent (unbiased, of the MSB)
}

var (
	spec32  = spec{width: W32, prec: 24, bias: 127, emin: -126, emax: 127}
	spec64  = spec{width: W64, prec: 53, bias: 1023, emin: -1022, emax: 1023}
	spec128 = spec{width: W128, prec: 113, bias: 16383, emin: -16382, emax: 16383}
)

func specOf(w Width) *spec {
	switch w {
	case W32:
		return &spec32
	case W64:
		return &spec64
	default:
		return &spec128
	}
}

func (s *spec) expBits() uint {
	switch s.width {
	case W32:
		return 8
	case W64:
		return 11
	default:
		return 15
	}
}

// CanonicalNaN returns the canonical quiet NaN of the format: sign clear,
// exponent all-ones, quiet bit set, payload zero.
func CanonicalNaN(w Width) B128 {
	switch w {
	case W32:
		return B128{Lo: 0x7FC00000}
	case W64:
		return B128{Lo: 0x7FF8000000000000}
	default:
		return B128{Hi: 0x7FFF800000000000}
	}
}

// Infinity returns the bit pattern of a signed infinity.
func Infinity(w Width, negative bool) B128 {
	s := specOf(w)
	var b B128
	setField(&b, s, boolBit(negative), maxExpField(s), new(uint256.Int))
	return b
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func maxExpField(s *spec) uint32 { return (1 << s.expBits()) - 1 }

// Negate flips the sign bit of a. Sign manipulation is exact and raises no
// flags, even on NaN.
func Negate(w Width, a B128) B128 {
	switch w {
	case W32:
		a.Lo ^= 1 << 31
	case W64:
		a.Lo ^= 1 << 63
	default:
		a.Hi ^= 1 << 63
	}
	return a
}

// IsSignalingNaN reports whether a is a signaling NaN of format w.
func IsSignalingNaN(w Width, a B128) bool {
	s := specOf(w)
	u := unpack(s, a)
	return u.kind == kindNaN && u.snan
}

// kind classifies an unpacked operand.
type kind uint8

const (
	kindZero kind = iota
	kindFinite
	kindInf
	kindNaN
)

// unpacked is the working representation of an operand. For kindFinite the
// significand is normalized so that its bit length equals the format
// precision (hidden bit at position prec-1); exp is the unbiased exponent
// of that most significant bit.
type unpacked struct {
	sign bool
	kind kind
	snan bool
	exp  int32
	sig  uint256.Int
	bits B128 // original bit pattern, for exact pass-through results
}

func (u *unpacked) isNaN() bool { return u.kind == kindNaN }

// unpack decomposes a bit pattern. Subnormals are normalized on the way in.
func unpack(s *spec, b B128) unpacked {
	var raw uint256.Int
	switch s.width {
	case W32:
		raw.SetUint64(b.Lo & 0xFFFFFFFF)
	case W64:
		raw.SetUint64(b.Lo)
	default:
		raw[0] = b.Lo
		raw[1] = b.Hi
	}
	eb := s.expBits()
	fracBits := s.prec - 1
	totalBits := uint(s.width)

	u := unpacked{bits: b}
	u.sign = bitAt(&raw, totalBits-1)

	var expField uint32
	{
		var t uint256.Int
		t.Rsh(&raw, fracBits)
		expField = uint32(t.Uint64()) & uint32((1<<eb)-1)
	}
	var frac uint256.Int
	maskLow(&frac, &raw, fracBits)

	switch {
	case expField == 0 && frac.IsZero():
		u.kind = kindZero
	case expField == 0:
		// Subnormal: normalize to prec bits.
		u.kind = kindFinite
		shift := s.prec - uint(frac.BitLen())
		u.sig.Lsh(&frac, shift)
		u.exp = s.emin - int32(shift)
	case expField == maxExpField(s) && frac.IsZero():
		u.kind = kindInf
	case expField == maxExpField(s):
		u.kind = kindNaN
		u.snan = !bitAt(&frac, fracBits-1)
	default:
		u.kind = kindFinite
		u.sig.Set(&frac)
		setBit(&u.sig, fracBits)
		u.exp = int32(expField) - s.bias
	}
	return u
}

// setField assembles sign, exponent field and fraction into a bit pattern.
// frac must already fit in prec-1 bits.
func setField(b *B128, s *spec, sign uint64, expField uint32, frac *uint256.Int) {
	var raw uint256.Int
	raw.Set(frac)
	var e uint256.Int
	e.SetUint64(uint64(expField))
	e.Lsh(&e, s.prec-1)
	raw.Or(&raw, &e)
	if sign != 0 {
		setBit(&raw, uint(s.width)-1)
	}
	b.Lo = raw[0]
	b.Hi = raw[1]
	if s.width == W32 {
		b.Lo &= 0xFFFFFFFF
		b.Hi = 0
	}
	if s.width == W64 {
		b.Hi = 0
	}
}

func zeroBits(s *spec, negative bool) B128 {
	var b B128
	setField(&b, s, boolBit(negative), 0, new(uint256.Int))
	return b
}

func maxFinite(s *spec, negative bool) B128 {
	var frac uint256.Int
	frac.SetUint64(1)
	frac.Lsh(&frac, s.prec-1)
	frac.Sub(&frac, one())
	var b B128
	setField(&b, s, boolBit(negative), maxExpField(s)-1, &frac)
	return b
}

// ---------------------------------------------------------------------------
// uint256 bit helpers
// ---------------------------------------------------------------------------

func one() *uint256.Int { return uint256.NewInt(1) }

func bitAt(x *uint256.Int, i uint) bool {
	if i >= 256 {
		return false
	}
	return (x[i/64]>>(i%64))&1 != 0
}

func setBit(x *uint256.Int, i uint) {
	x[i/64] |= 1 << (i % 64)
}

// maskLow sets z to the low n bits of x.
func maskLow(z, x *uint256.Int, n uint) {
	var m uint256.Int
	m.Lsh(one(), n)
	m.Sub(&m, one())
	z.And(x, &m)
}

// anyBelow reports whether any bit of x below position n is set.
func anyBelow(x *uint256.Int, n uint) bool {
	if n == 0 {
		return false
	}
	if n >= 256 {
		return !x.IsZero()
	}
	var low uint256.Int
	maskLow(&low, x, n)
	return !low.IsZero()
}

// shiftRightJam shifts x right by n, OR-ing any shifted-out nonzero bits
// into the least significant bit of the result (the classic sticky jam).
func shiftRightJam(x *uint256.Int, n uint) {
	if n == 0 {
		return
	}
	if n >= 256 {
		if !x.IsZero() {
			x.SetUint64(1)
		}
		return
	}
	sticky := anyBelow(x, n)
	x.Rsh(x, n)
	if sticky {
		x[0] |= 1
	}
}

// ---------------------------------------------------------------------------
// Rounding
// ---------------------------------------------------------------------------

// roundIncrement reports whether a magnitude with the given LSB, round and
// sticky bits must be incremented under mode m.
func roundIncrement(m RoundingMode, sign, lsb, round, sticky bool) bool {
	switch m {
	case RNE:
		return round && (sticky || lsb)
	case RTZ:
		return false
	case RDN:
		return sign && (round || sticky)
	case RUP:
		return !sign && (round || sticky)
	default: // RMM
		return round
	}
}

// roundPack rounds the magnitude sig * 2^expLSB (sig nonzero, sticky holds
// bits already discarded below it) into format s under mode m and packs the
// result. It raises NX, OF and UF as appropriate. Tininess is detected
// after rounding, matching the RISC-V FPU behavior.
func roundPack(s *spec, m RoundingMode, sign bool, expLSB int32, sig *uint256.Int, sticky bool) (B128, Flags) {
	n := sig.BitLen()
	if n == 0 {
		// Nothing survived the caller's arithmetic; the result is a
		// signed zero (exact cancellations are handled by callers, so
		// arriving here means everything was discarded into sticky).
		var fl Flags
		if sticky {
			fl = FlagNX | FlagUF
		}
		return zeroBits(s, sign), fl
	}
	msbExp := expLSB + int32(n) - 1

	// Pick the exponent of the result LSB: prec bits below the MSB, but
	// never below the subnormal floor.
	minQ := s.emin - int32(s.prec-1)
	q := msbExp - int32(s.prec-1)
	if q < minQ {
		q = minQ
	}

	round := false
	if shift := q - expLSB; shift > 0 {
		sh := uint(shift)
		switch {
		case int(sh) > n:
			sticky = sticky || !sig.IsZero()
			sig.Clear()
		case int(sh) == n:
			round = true // the MSB itself; sig is normalized so it is set
			sticky = sticky || anyBelow(sig, sh-1)
			sig.Clear()
		default:
			round = bitAt(sig, sh-1)
			sticky = sticky || anyBelow(sig, sh-1)
			sig.Rsh(sig, sh)
		}
	} else if shift < 0 {
		sig.Lsh(sig, uint(-shift))
	}

	inexact := round || sticky
	if roundIncrement(m, sign, bitAt(sig, 0), round, sticky) {
		sig.Add(sig, one())
		if uint(sig.BitLen()) > s.prec {
			sig.Rsh(sig, 1)
			q++
		}
	}

	var fl Flags
	if inexact {
		fl |= FlagNX
	}

	if sig.IsZero() {
		if inexact {
			fl |= FlagUF
		}
		return zeroBits(s, sign), fl
	}

	resMSB := q + int32(sig.BitLen()) - 1
	if resMSB > s.emax {
		fl |= FlagOF | FlagNX
		switch m {
		case RTZ:
			return maxFinite(s, sign), fl
		case RDN:
			if sign {
				return Infinity(s.width, true), fl
			}
			return maxFinite(s, false), fl
		case RUP:
			if sign {
				return maxFinite(s, true), fl
			}
			return Infinity(s.width, false), fl
		default: // RNE, RMM
			return Infinity(s.width, sign), fl
		}
	}

	if uint(sig.BitLen()) < s.prec {
		// Subnormal after rounding.
		if inexact {
			fl |= FlagUF
		}
		var b B128
		setField(&b, s, boolBit(sign), 0, sig)
		return b, fl
	}

	var frac uint256.Int
	maskLow(&frac, sig, s.prec-1)
	var b B128
	setField(&b, s, boolBit(sign), uint32(resMSB+s.bias), &frac)
	return b, fl
}

// propagateNaN implements the RISC-V NaN policy: the result of any
// arithmetic operation with NaN inputs is the canonical quiet NaN of the
// format, with NV raised if any input was signaling.
func propagateNaN(s *spec, ops ...*unpacked) (B128, Flags) {
	var fl Flags
	for _, op := range ops {
		if op.kind == kindNaN && op.snan {
			fl |= FlagNV
		}
	}
	return CanonicalNaN(s.width), fl
}

// invalid returns the canonical NaN with NV raised, for invalid operations
// on non-NaN operands (inf-inf, 0*inf, 0/0, inf/inf, sqrt of negative).
func invalid(s *spec) (B128, Flags) {
	return CanonicalNaN(s.width), FlagNV
}
