package rle

import (
	"errors"
	"fmt"
)

// PackBits byte coding per DICOM PS3.5 Annex G. Also used as the
// byte-compression stage for the jpeg2k and jpegls payloads.
//
// A control byte 0..127 introduces a literal packet of control+1
// bytes; 129..255 a replicate packet repeating the next byte
// 257-control times; 128 is a no-op.

// PackBits compresses src. Runs of three or more identical bytes
// become replicate packets; shorter runs fold into literal packets of
// up to 128 bytes, which avoids breaking a literal for a two-byte run
// that would save nothing.
func PackBits(src []byte) []byte {
	out := make([]byte, 0, len(src)/2+16)
	lit := make([]byte, 0, 128)

	flush := func() {
		if len(lit) == 0 {
			return
		}
		out = append(out, byte(len(lit)-1))
		out = append(out, lit...)
		lit = lit[:0]
	}

	pos := 0
	for pos < len(src) {
		b := src[pos]
		end := pos + 1
		for end < len(src) && end-pos < 128 && src[end] == b {
			end++
		}

		if n := end - pos; n >= 3 {
			flush()
			out = append(out, byte(257-n), b)
			pos = end
			continue
		}

		lit = append(lit, b)
		if len(lit) == 128 {
			flush()
		}
		pos++
	}
	flush()
	return out
}

// UnpackBits decodes a PackBits stream. When expectedLen > 0 decoding
// stops once that many bytes have been produced, which lets callers
// ignore trailing pad bytes.
func UnpackBits(src []byte, expectedLen int) ([]byte, error) {
	capHint := expectedLen
	if capHint <= 0 {
		capHint = len(src) * 2
	}
	out := make([]byte, 0, capHint)

	pos := 0
	for pos < len(src) {
		if expectedLen > 0 && len(out) >= expectedLen {
			break
		}

		ctrl := src[pos]
		pos++

		switch {
		case ctrl == 0x80:
			// no-op control byte

		case ctrl < 0x80:
			n := int(ctrl) + 1
			if pos+n > len(src) {
				return nil, fmt.Errorf("rle: literal packet of %d bytes overruns input at offset %d", n, pos)
			}
			out = append(out, src[pos:pos+n]...)
			pos += n

		default:
			n := 257 - int(ctrl)
			if pos >= len(src) {
				return nil, errors.New("rle: replicate packet missing its value byte")
			}
			v := src[pos]
			pos++
			for j := 0; j < n; j++ {
				out = append(out, v)
			}
		}
	}

	if expectedLen > 0 && len(out) > expectedLen {
		out = out[:expectedLen]
	}
	return out, nil
}
