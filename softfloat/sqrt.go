package softfloat

import "github.com/holiman/uint256"

// Sqrt returns the square root of a. With accurate set the result is
// correctly rounded under m; otherwise a faster truncating root is
// produced, which may differ from the correctly rounded result by up to
// two units in the last place. The returned iteration count is the number
// of digit-generation steps taken, for cost accounting.
//
// sqrt(-0) is -0; the root of any other negative value, including -inf,
// raises NV.
func Sqrt(w Width, a B128, m RoundingMode, accurate bool) (B128, Flags, int) {
	s := specOf(w)
	ua := unpack(s, a)

	switch {
	case ua.isNaN():
		b, fl := propagateNaN(s, &ua)
		return b, fl, 0
	case ua.kind == kindZero:
		return ua.bits, 0, 0
	case ua.sign:
		b, fl := invalid(s)
		return b, fl, 0
	case ua.kind == kindInf:
		return Infinity(w, false), 0, 0
	}

	// Split the exponent into an even part (halved directly) and fold the
	// parity into the significand.
	t := ua.exp - int32(s.prec-1) // exponent of the significand LSB
	var rad uint256.Int
	rad.Set(&ua.sig)
	if t&1 != 0 {
		rad.Lsh(&rad, 1)
		t--
	}

	// Generate root bits two radicand bits at a time. Appending extra
	// zero bit-pairs to the radicand extends the root below the target
	// precision so the round and sticky bits are exact.
	extra := s.prec + 2
	root, rem, iters := digitSqrt(&rad, extra)
	expLSB := t/2 - int32(extra)

	if !accurate {
		// Truncating root: correctly rounded toward zero regardless of
		// the requested mode, within two ULPs of any mode's result.
		var fl Flags
		if !rem.IsZero() || anyBelow(root, 2) {
			fl = FlagNX
		}
		root.Rsh(root, 2)
		b, fl2 := roundPack(s, RTZ, false, expLSB+2, root, false)
		return b, fl | fl2, iters
	}

	b, fl := roundPack(s, m, false, expLSB, root, !rem.IsZero())
	return b, fl, iters
}

// digitSqrt computes the integer square root of rad<<(2*extra) by the
// restoring digit-by-digit method, returning the root, the final remainder
// and the number of iterations performed.
func digitSqrt(rad *uint256.Int, extra uint) (*uint256.Int, *uint256.Int, int) {
	n := uint(rad.BitLen())
	pairs := (n + 1) / 2
	total := pairs + extra

	root := new(uint256.Int)
	rem := new(uint256.Int)
	var cand uint256.Int
	iters := 0
	for i := int(total) - 1; i >= 0; i-- {
		// Bring down the next two radicand bits (zero beyond the end).
		rem.Lsh(rem, 2)
		if i >= int(extra) {
			k := uint(i-int(extra)) * 2
			var two uint256.Int
			two.Rsh(rad, k)
			maskLow(&two, &two, 2)
			rem.Or(rem, &two)
		}
		cand.Lsh(root, 2)
		cand.Or(&cand, one())
		root.Lsh(root, 1)
		if !rem.Lt(&cand) {
			rem.Sub(rem, &cand)
			root.Or(root, one())
		}
		iters++
	}
	return root, rem, iters
}
