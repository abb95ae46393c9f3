// Package ipl parses Logisim-evolution "v2.0 raw" memory images, the
// initial-program-load format the rvbox front ends consume. The format is
// a header line followed by whitespace-separated hexadecimal words, with
// an optional "count*value" run-length shorthand.
package ipl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parse errors.
var (
	ErrEmptyImage = errors.New("ipl: unexpected end of image")
	ErrBadHeader  = errors.New(`ipl: invalid Logisim memory image header (file must begin with "v2.0 raw")`)
)

// Parse reads a memory image and returns its words in address order.
func Parse(r io.Reader) ([]uint32, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, ErrEmptyImage
	}
	if strings.TrimSpace(sc.Text()) != "v2.0 raw" {
		return nil, ErrBadHeader
	}

	var words []uint32
	line := 1
	for sc.Scan() {
		line++
		for _, tok := range strings.Fields(sc.Text()) {
			count := uint64(1)
			value := tok
			if pre, post, found := strings.Cut(tok, "*"); found {
				n, err := strconv.ParseUint(pre, 10, 32)
				if err != nil {
					return nil, fmt.Errorf("ipl: line %d: unable to parse count %q: %w", line, pre, err)
				}
				count, value = n, post
			}
			v, err := strconv.ParseUint(value, 16, 32)
			if err != nil {
				return nil, fmt.Errorf("ipl: line %d: unable to parse value %q: %w", line, value, err)
			}
			for i := uint64(0); i < count; i++ {
				words = append(words, uint32(v))
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
