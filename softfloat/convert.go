package softfloat

import "github.com/holiman/uint256"

// Convert rounds a value of format from into format to. Widening
// conversions are exact; narrowing conversions round under m and may raise
// OF, UF and NX. NaNs convert to the canonical NaN of the target, raising
// NV when signaling.
func Convert(from, to Width, a B128, m RoundingMode) (B128, Flags) {
	sf := specOf(from)
	st := specOf(to)
	ua := unpack(sf, a)

	switch ua.kind {
	case kindNaN:
		return propagateNaN(st, &ua)
	case kindInf:
		return Infinity(to, ua.sign), 0
	case kindZero:
		return zeroBits(st, ua.sign), 0
	}
	var sig uint256.Int
	sig.Set(&ua.sig)
	return roundPack(st, m, ua.sign, ua.exp-int32(sf.prec-1), &sig, false)
}

// ToInt32 converts a to a signed 32-bit integer under m. Out-of-range
// values, infinities and NaN saturate (NaN and +inf to MaxInt32, -inf to
// MinInt32) and raise NV; in-range inexact conversions raise NX.
func ToInt32(w Width, a B128, m RoundingMode) (uint32, Flags) {
	mag, sign, fl := toIntCommon(w, a, m, 31)
	if fl&FlagNV != 0 {
		if sign {
			return 0x80000000, FlagNV
		}
		return 0x7FFFFFFF, FlagNV
	}
	if sign {
		if mag > 1<<31 {
			return 0x80000000, FlagNV
		}
		return uint32(-int32(mag)), fl
	}
	if mag > 1<<31-1 {
		return 0x7FFFFFFF, FlagNV
	}
	return uint32(mag), fl
}

// ToUint32 converts a to an unsigned 32-bit integer under m. Negative
// values that do not round to zero, out-of-range values, +inf and NaN
// saturate (to 0 for negative, MaxUint32 otherwise) and raise NV.
func ToUint32(w Width, a B128, m RoundingMode) (uint32, Flags) {
	mag, sign, fl := toIntCommon(w, a, m, 32)
	if fl&FlagNV != 0 {
		if sign {
			return 0, FlagNV
		}
		return 0xFFFFFFFF, FlagNV
	}
	if sign {
		if mag != 0 {
			return 0, FlagNV
		}
		return 0, fl
	}
	if mag > 0xFFFFFFFF {
		return 0xFFFFFFFF, FlagNV
	}
	return uint32(mag), fl
}

// toIntCommon rounds |a| to an integer magnitude. A magnitude needing more
// than rangeBits+1 bits, an infinity or a NaN reports NV (with sign false
// for NaN so the caller saturates positive).
func toIntCommon(w Width, a B128, m RoundingMode, rangeBits uint) (uint64, bool, Flags) {
	s := specOf(w)
	ua := unpack(s, a)

	switch ua.kind {
	case kindNaN:
		return 0, false, FlagNV
	case kindInf:
		return 0, ua.sign, FlagNV
	case kindZero:
		return 0, false, 0
	}

	if ua.exp >= int32(rangeBits)+1 {
		// Far out of range either way; the +1 leaves room for the exact
		// boundary cases, which the callers check on the magnitude.
		return 0, ua.sign, FlagNV
	}
	if ua.exp < -1 {
		// |a| < 1/2: the integer part is zero and everything below is
		// sticky, so the result is 0 or 1 depending only on the mode.
		if roundIncrement(m, ua.sign, false, false, true) {
			return 1, ua.sign, FlagNX
		}
		return 0, ua.sign, FlagNX
	}

	var sig uint256.Int
	sig.Set(&ua.sig)
	intBits := ua.exp + 1
	shift := int32(s.prec) - intBits
	round, sticky := false, false
	if shift > 0 {
		sh := uint(shift)
		round = bitAt(&sig, sh-1)
		sticky = anyBelow(&sig, sh-1)
		sig.Rsh(&sig, sh)
	} else if shift < 0 {
		sig.Lsh(&sig, uint(-shift))
	}
	if roundIncrement(m, ua.sign, bitAt(&sig, 0), round, sticky) {
		sig.Add(&sig, one())
	}
	if uint(sig.BitLen()) > rangeBits+1 {
		return 0, ua.sign, FlagNV
	}
	var fl Flags
	if round || sticky {
		fl = FlagNX
	}
	return sig.Uint64(), ua.sign, fl
}

// FromInt32 converts a signed 32-bit integer (given as its bit pattern) to
// format w. Exact for binary64 and binary128; binary32 may round.
func FromInt32(w Width, v uint32, m RoundingMode) (B128, Flags) {
	s := specOf(w)
	sign := int32(v) < 0
	mag := uint64(v)
	if sign {
		mag = uint64(uint32(-int32(v)))
	}
	return fromMagnitude(s, m, sign, mag)
}

// FromUint32 converts an unsigned 32-bit integer to format w.
func FromUint32(w Width, v uint32, m RoundingMode) (B128, Flags) {
	return fromMagnitude(specOf(w), m, false, uint64(v))
}

func fromMagnitude(s *spec, m RoundingMode, sign bool, mag uint64) (B128, Flags) {
	if mag == 0 {
		return zeroBits(s, false), 0
	}
	var sig uint256.Int
	sig.SetUint64(mag)
	return roundPack(s, m, sign, 0, &sig, false)
}
