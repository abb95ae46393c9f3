package softfloat

import "github.com/holiman/uint256"

// Mul returns a*b correctly rounded under m.
func Mul(w Width, a, b B128, m RoundingMode) (B128, Flags) {
	s := specOf(w)
	ua := unpack(s, a)
	ub := unpack(s, b)

	if ua.isNaN() || ub.isNaN() {
		return propagateNaN(s, &ua, &ub)
	}
	sign := ua.sign != ub.sign
	if ua.kind == kindInf || ub.kind == kindInf {
		if ua.kind == kindZero || ub.kind == kindZero {
			return invalid(s)
		}
		return Infinity(w, sign), 0
	}
	if ua.kind == kindZero || ub.kind == kindZero {
		return zeroBits(s, sign), 0
	}

	var prod uint256.Int
	prod.Mul(&ua.sig, &ub.sig)
	expLSB := ua.exp + ub.exp - 2*int32(s.prec-1)
	return roundPack(s, m, sign, expLSB, &prod, false)
}
