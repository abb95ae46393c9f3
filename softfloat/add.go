package softfloat

import "github.com/holiman/uint256"

// Add returns a+b correctly rounded under m.
func Add(w Width, a, b B128, m RoundingMode) (B128, Flags) {
	s := specOf(w)
	ua := unpack(s, a)
	ub := unpack(s, b)
	return addUnpacked(s, m, &ua, &ub)
}

// Sub returns a-b correctly rounded under m.
func Sub(w Width, a, b B128, m RoundingMode) (B128, Flags) {
	s := specOf(w)
	ua := unpack(s, a)
	ub := unpack(s, b)
	ub.sign = !ub.sign
	return addUnpacked(s, m, &ua, &ub)
}

// magLess reports |a| < |b| for two finite normalized operands of the same
// format.
func magLess(a, b *unpacked) bool {
	if a.exp != b.exp {
		return a.exp < b.exp
	}
	return a.sig.Lt(&b.sig)
}

func addUnpacked(s *spec, m RoundingMode, a, b *unpacked) (B128, Flags) {
	if a.isNaN() || b.isNaN() {
		return propagateNaN(s, a, b)
	}
	if a.kind == kindInf || b.kind == kindInf {
		if a.kind == kindInf && b.kind == kindInf && a.sign != b.sign {
			return invalid(s)
		}
		if a.kind == kindInf {
			return Infinity(s.width, a.sign), 0
		}
		return Infinity(s.width, b.sign), 0
	}
	if a.kind == kindZero && b.kind == kindZero {
		if a.sign == b.sign {
			return zeroBits(s, a.sign), 0
		}
		return zeroBits(s, m == RDN), 0
	}
	if a.kind == kindZero {
		return packSigned(s, b), 0
	}
	if b.kind == kindZero {
		return packSigned(s, a), 0
	}

	effSub := a.sign != b.sign
	h, l := a, b
	if magLess(a, b) {
		h, l = b, a
	} else if effSub && a.exp == b.exp && a.sig.Eq(&b.sig) {
		// Exact cancellation.
		return zeroBits(s, m == RDN), 0
	}

	// Work with three guard bits below the LSB; the smaller operand is
	// aligned with a sticky jam so distant bits still influence rounding.
	var hs, ls uint256.Int
	hs.Lsh(&h.sig, 3)
	ls.Lsh(&l.sig, 3)
	shiftRightJam(&ls, uint(h.exp-l.exp))

	expLSB := h.exp - int32(s.prec-1) - 3
	var sum uint256.Int
	if effSub {
		sum.Sub(&hs, &ls)
	} else {
		sum.Add(&hs, &ls)
	}
	return roundPack(s, m, h.sign, expLSB, &sum, false)
}

// packSigned re-encodes an already-unpacked operand unchanged. Used for
// exact pass-through results like x+0.
func packSigned(s *spec, u *unpacked) B128 {
	b := u.bits
	if u.sign != bitAt(rawOf(s, b), uint(s.width)-1) {
		// Sign was flipped after unpacking (subtraction path).
		flipSign(s, &b)
	}
	return b
}

func rawOf(s *spec, b B128) *uint256.Int {
	var raw uint256.Int
	raw[0] = b.Lo
	raw[1] = b.Hi
	if s.width == W32 {
		raw[0] &= 0xFFFFFFFF
		raw[1] = 0
	}
	if s.width == W64 {
		raw[1] = 0
	}
	return &raw
}

func flipSign(s *spec, b *B128) {
	switch s.width {
	case W32:
		b.Lo ^= 1 << 31
	case W64:
		b.Lo ^= 1 << 63
	default:
		b.Hi ^= 1 << 63
	}
}
