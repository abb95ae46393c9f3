package softfloat

import "github.com/holiman/uint256"

// FMA returns a*b+c with a single rounding under m. The FMSUB/FNMADD/FNMSUB
// variants are obtained by flipping operand signs before the call; sign
// negation is exact and commutes with the fused operation.
//
// 0*inf (in either order) raises NV and yields the canonical NaN even when
// c is a quiet NaN, per IEEE 754-2019 §7.2.
func FMA(w Width, a, b, c B128, m RoundingMode) (B128, Flags) {
	s := specOf(w)
	ua := unpack(s, a)
	ub := unpack(s, b)
	uc := unpack(s, c)

	prodInvalid := (ua.kind == kindZero && ub.kind == kindInf) ||
		(ua.kind == kindInf && ub.kind == kindZero)
	if prodInvalid {
		_, fl := propagateNaN(s, &ua, &ub, &uc)
		return CanonicalNaN(w), fl | FlagNV
	}
	if ua.isNaN() || ub.isNaN() || uc.isNaN() {
		return propagateNaN(s, &ua, &ub, &uc)
	}

	prodSign := ua.sign != ub.sign
	if ua.kind == kindInf || ub.kind == kindInf {
		if uc.kind == kindInf && uc.sign != prodSign {
			return invalid(s)
		}
		return Infinity(w, prodSign), 0
	}
	if uc.kind == kindInf {
		return Infinity(w, uc.sign), 0
	}

	if ua.kind == kindZero || ub.kind == kindZero {
		// Exact zero product: the result is c, except that 0+0 follows
		// the addition sign rules.
		if uc.kind == kindZero {
			if uc.sign == prodSign {
				return zeroBits(s, prodSign), 0
			}
			return zeroBits(s, m == RDN), 0
		}
		return uc.bits, 0
	}

	var prod uint256.Int
	prod.Mul(&ua.sig, &ub.sig)
	prodLSB := ua.exp + ub.exp - 2*int32(s.prec-1)

	if uc.kind == kindZero {
		return roundPack(s, m, prodSign, prodLSB, &prod, false)
	}

	addendLSB := uc.exp - int32(s.prec-1)
	var addend uint256.Int
	addend.Set(&uc.sig)

	// Bring both terms to a common LSB exponent. The window is capped so
	// everything stays inside 256 bits; a term far below the window only
	// contributes a sticky jam, which is all rounding can see of it.
	prodMSB := prodLSB + int32(prod.BitLen()) - 1
	addMSB := uc.exp
	maxMSB := prodMSB
	if addMSB > maxMSB {
		maxMSB = addMSB
	}
	q := prodLSB
	if addendLSB < q {
		q = addendLSB
	}
	if floor := maxMSB - 250; q < floor {
		q = floor
	}
	alignTerm(&prod, prodLSB, q)
	alignTerm(&addend, addendLSB, q)

	effSub := prodSign != uc.sign
	var sum uint256.Int
	sign := prodSign
	if !effSub {
		sum.Add(&prod, &addend)
	} else {
		switch prod.Cmp(&addend) {
		case 0:
			return zeroBits(s, m == RDN), 0
		case 1:
			sum.Sub(&prod, &addend)
		default:
			sum.Sub(&addend, &prod)
			sign = uc.sign
		}
	}
	return roundPack(s, m, sign, q, &sum, false)
}

// alignTerm rescales x from LSB exponent from to LSB exponent to, jamming
// shifted-out bits when scaling down.
func alignTerm(x *uint256.Int, from, to int32) {
	switch {
	case from > to:
		x.Lsh(x, uint(from-to))
	case from < to:
		shiftRightJam(x, uint(to-from))
	}
}
