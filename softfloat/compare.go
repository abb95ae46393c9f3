package softfloat

// Eq reports a == b. It is a quiet comparison: NaN operands make the
// result false and only a signaling NaN raises NV. -0 equals +0.
func Eq(w Width, a, b B128) (bool, Flags) {
	s := specOf(w)
	ua := unpack(s, a)
	ub := unpack(s, b)
	if ua.isNaN() || ub.isNaN() {
		var fl Flags
		if ua.snan || ub.snan {
			fl = FlagNV
		}
		return false, fl
	}
	return compareOrdered(&ua, &ub) == 0, 0
}

// Lt reports a < b. It is a signaling comparison: any NaN operand makes
// the result false and raises NV.
func Lt(w Width, a, b B128) (bool, Flags) {
	s := specOf(w)
	ua := unpack(s, a)
	ub := unpack(s, b)
	if ua.isNaN() || ub.isNaN() {
		return false, FlagNV
	}
	return compareOrdered(&ua, &ub) < 0, 0
}

// Le reports a <= b, signaling on NaN like Lt.
func Le(w Width, a, b B128) (bool, Flags) {
	s := specOf(w)
	ua := unpack(s, a)
	ub := unpack(s, b)
	if ua.isNaN() || ub.isNaN() {
		return false, FlagNV
	}
	return compareOrdered(&ua, &ub) <= 0, 0
}

// compareOrdered totally orders two non-NaN operands: -1, 0 or 1.
// Both zeros compare equal regardless of sign.
func compareOrdered(a, b *unpacked) int {
	if a.kind == kindZero && b.kind == kindZero {
		return 0
	}
	if a.kind == kindZero {
		if b.sign {
			return 1
		}
		return -1
	}
	if b.kind == kindZero {
		if a.sign {
			return -1
		}
		return 1
	}
	if a.sign != b.sign {
		if a.sign {
			return -1
		}
		return 1
	}
	mag := compareMagnitude(a, b)
	if a.sign {
		return -mag
	}
	return mag
}

func compareMagnitude(a, b *unpacked) int {
	// Infinity dominates every finite value.
	switch {
	case a.kind == kindInf && b.kind == kindInf:
		return 0
	case a.kind == kindInf:
		return 1
	case b.kind == kindInf:
		return -1
	}
	if a.exp != b.exp {
		if a.exp < b.exp {
			return -1
		}
		return 1
	}
	return a.sig.Cmp(&b.sig)
}
