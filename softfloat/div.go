package softfloat

import "github.com/holiman/uint256"

// Div returns a/b correctly rounded under m. Division of a finite nonzero
// value by zero returns a signed infinity and raises DZ; 0/0 and inf/inf
// raise NV.
func Div(w Width, a, b B128, m RoundingMode) (B128, Flags) {
	s := specOf(w)
	ua := unpack(s, a)
	ub := unpack(s, b)

	if ua.isNaN() || ub.isNaN() {
		return propagateNaN(s, &ua, &ub)
	}
	sign := ua.sign != ub.sign
	switch {
	case ua.kind == kindInf && ub.kind == kindInf:
		return invalid(s)
	case ua.kind == kindInf:
		return Infinity(w, sign), 0
	case ub.kind == kindInf:
		return zeroBits(s, sign), 0
	case ub.kind == kindZero && ua.kind == kindZero:
		return invalid(s)
	case ub.kind == kindZero:
		return Infinity(w, sign), FlagDZ
	case ua.kind == kindZero:
		return zeroBits(s, sign), 0
	}

	// Scale the dividend so the quotient keeps prec+3 significant bits,
	// then let the remainder feed the sticky bit.
	shift := s.prec + 3
	var dividend uint256.Int
	dividend.Lsh(&ua.sig, shift)
	var q, r uint256.Int
	q.Div(&dividend, &ub.sig)
	r.Mod(&dividend, &ub.sig)

	expLSB := ua.exp - ub.exp - int32(shift)
	return roundPack(s, m, sign, expLSB, &q, !r.IsZero())
}
