package cpu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/rvbox/rvbox/softfloat"
)

// Snapshot format: a fixed-layout binary image of the architectural state,
// terminated by a Keccak-256 digest of everything before it. The
// reservation slot belongs to the environment and is deliberately not part
// of the image.
//
//	magic   [5]byte  "rvbx" + version
//	words   [32]u32  big-endian; word 0 is the PC, words 1..31 are x1..x31
//	fbytes  u8       FP register width in bytes (0, 4, 8 or 16)
//	fcsr    u8       present only when fbytes > 0
//	fregs   [32][fbytes]byte  big-endian, present only when fbytes > 0
//	digest  [32]byte Keccak-256 of all preceding bytes

var snapshotMagic = [5]byte{'r', 'v', 'b', 'x', 1}

// Snapshot errors.
var (
	ErrSnapshotTruncated = errors.New("cpu: snapshot truncated")
	ErrSnapshotMagic     = errors.New("cpu: snapshot has wrong magic or version")
	ErrSnapshotDigest    = errors.New("cpu: snapshot digest mismatch")
	ErrSnapshotWidth     = errors.New("cpu: snapshot float width does not match configuration")
)

// Snapshot serializes the CPU state losslessly.
func (c *CPU) Snapshot() []byte {
	fbytes := c.width.Bytes() // 0 for FloatNone
	if c.width == FloatNone {
		fbytes = 0
	}
	size := len(snapshotMagic) + 32*4 + 1
	if fbytes > 0 {
		size += 1 + 32*fbytes
	}
	buf := make([]byte, 0, size+32)
	buf = append(buf, snapshotMagic[:]...)

	var w [4]byte
	binary.BigEndian.PutUint32(w[:], c.pc)
	buf = append(buf, w[:]...)
	for i := 1; i < 32; i++ {
		binary.BigEndian.PutUint32(w[:], c.x[i])
		buf = append(buf, w[:]...)
	}
	buf = append(buf, byte(fbytes))
	if fbytes > 0 {
		buf = append(buf, c.fcsr)
		for i := 0; i < 32; i++ {
			buf = appendFloatBE(buf, c.f[i], c.width)
		}
	}
	digest := sha3.NewLegacyKeccak256()
	digest.Write(buf)
	return digest.Sum(buf)
}

// Restore replaces the CPU state with a snapshot previously produced by
// Snapshot on a CPU of the same floating-point width.
func (c *CPU) Restore(img []byte) error {
	if len(img) < 32 {
		return ErrSnapshotTruncated
	}
	body, sum := img[:len(img)-32], img[len(img)-32:]
	digest := sha3.NewLegacyKeccak256()
	digest.Write(body)
	if string(digest.Sum(nil)) != string(sum) {
		return ErrSnapshotDigest
	}
	if len(body) < len(snapshotMagic)+32*4+1 {
		return ErrSnapshotTruncated
	}
	if string(body[:len(snapshotMagic)]) != string(snapshotMagic[:]) {
		return ErrSnapshotMagic
	}
	p := body[len(snapshotMagic):]

	var x [32]uint32
	for i := 0; i < 32; i++ {
		x[i] = binary.BigEndian.Uint32(p[i*4:])
	}
	p = p[32*4:]

	fbytes := int(p[0])
	p = p[1:]
	want := 0
	if c.width != FloatNone {
		want = c.width.Bytes()
	}
	if fbytes != want {
		return fmt.Errorf("%w: image has %d-byte registers, cpu has %d",
			ErrSnapshotWidth, fbytes, want)
	}

	var fcsr uint8
	var f [32]softfloat.B128
	if fbytes > 0 {
		if len(p) != 1+32*fbytes {
			return ErrSnapshotTruncated
		}
		fcsr = p[0]
		p = p[1:]
		for i := 0; i < 32; i++ {
			f[i] = floatFromBE(p[i*fbytes:(i+1)*fbytes], c.width)
		}
	} else if len(p) != 0 {
		return ErrSnapshotTruncated
	}

	c.pc = x[0] &^ 1
	copy(c.x[1:], x[1:])
	c.x[0] = 0
	c.f = f
	c.fcsr = fcsr
	return nil
}

func appendFloatBE(buf []byte, v softfloat.B128, w softfloat.Width) []byte {
	switch w {
	case softfloat.W32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v.Lo))
		return append(buf, b[:]...)
	case softfloat.W64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v.Lo)
		return append(buf, b[:]...)
	default:
		var b [16]byte
		binary.BigEndian.PutUint64(b[:], v.Hi)
		binary.BigEndian.PutUint64(b[8:], v.Lo)
		return append(buf, b[:]...)
	}
}

func floatFromBE(p []byte, w softfloat.Width) softfloat.B128 {
	switch w {
	case softfloat.W32:
		return softfloat.B128{Lo: uint64(binary.BigEndian.Uint32(p))}
	case softfloat.W64:
		return softfloat.B128{Lo: binary.BigEndian.Uint64(p)}
	default:
		return softfloat.B128{
			Hi: binary.BigEndian.Uint64(p),
			Lo: binary.BigEndian.Uint64(p[8:]),
		}
	}
}
