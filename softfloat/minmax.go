package softfloat

// Min returns the smaller of a and b per IEEE 754-2019 minimumNumber: a
// single NaN operand is ignored in favor of the other, two NaNs yield the
// canonical NaN, and -0 is smaller than +0. A signaling NaN input raises
// NV.
func Min(w Width, a, b B128) (B128, Flags) {
	return minmax(w, a, b, true)
}

// Max returns the larger of a and b per IEEE 754-2019 maximumNumber, with
// the same NaN and signed-zero handling as Min.
func Max(w Width, a, b B128) (B128, Flags) {
	return minmax(w, a, b, false)
}

func minmax(w Width, a, b B128, wantMin bool) (B128, Flags) {
	s := specOf(w)
	ua := unpack(s, a)
	ub := unpack(s, b)

	var fl Flags
	if ua.snan || ub.snan {
		fl = FlagNV
	}
	switch {
	case ua.isNaN() && ub.isNaN():
		return CanonicalNaN(w), fl
	case ua.isNaN():
		return b, fl
	case ub.isNaN():
		return a, fl
	}

	// Order signed zeros by sign so min(-0,+0) = -0 and max picks +0.
	var aLess bool
	if ua.kind == kindZero && ub.kind == kindZero {
		aLess = ua.sign && !ub.sign
	} else {
		aLess = compareOrdered(&ua, &ub) < 0
	}
	if aLess == wantMin {
		return a, fl
	}
	return b, fl
}
