package jpeg2k

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/openrad/dicompress/pkg/compress/rle"
)

// Frame is one uncompressed image plane set: little-endian samples in
// row-major order, components interleaved per pixel.
type Frame struct {
	Width         int
	Height        int
	BitsPerSample int
	Components    int
	Signed        bool
	Pixels        []byte
}

func (f *Frame) bytesPerSample() int {
	if f.BitsPerSample > 8 {
		return 2
	}
	return 1
}

func (f *Frame) sampleCount() int {
	return f.Width * f.Height * f.Components
}

func (f *Frame) validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("jpeg2k: invalid dimensions %dx%d", f.Width, f.Height)
	}
	if f.BitsPerSample < 1 || f.BitsPerSample > 16 {
		return fmt.Errorf("jpeg2k: unsupported precision %d", f.BitsPerSample)
	}
	if f.Components < 1 || f.Components > 4 {
		return fmt.Errorf("jpeg2k: unsupported component count %d", f.Components)
	}
	if want := f.sampleCount() * f.bytesPerSample(); len(f.Pixels) != want {
		return fmt.Errorf("jpeg2k: pixel buffer is %d bytes, want %d", len(f.Pixels), want)
	}
	return nil
}

// Options control the encode.
type Options struct {
	Lossless    bool
	TargetRatio float64 // lossy only; drives the quantizer shift
	Layers      int     // quality layers signalled in COD
}

// Encode writes a framed codestream for f.
func Encode(w io.Writer, f *Frame, opts *Options) error {
	if err := f.validate(); err != nil {
		return err
	}

	lossless := true
	ratio := 0.0
	layers := 1
	if opts != nil {
		lossless = opts.Lossless
		ratio = opts.TargetRatio
		if opts.Layers > 0 {
			layers = opts.Layers
		}
	}

	var buf bytes.Buffer
	writeMarker(&buf, MarkerSOC)
	writeSIZ(&buf, f)
	writeCOD(&buf, lossless, layers)
	writeQCD(&buf, lossless)

	payload := encodePayload(f, lossless, ratio)
	writeSOT(&buf, len(payload))
	writeMarker(&buf, MarkerSOD)
	buf.Write(payload)
	writeMarker(&buf, MarkerEOC)

	_, err := w.Write(buf.Bytes())
	return err
}

// Decode parses a framed codestream and reconstructs the frame. All
// geometry and precision comes from the SIZ segment; the COD transform
// byte selects the reversible or quantized payload path.
func Decode(data []byte) (*Frame, error) {
	if len(data) < 4 || binary.BigEndian.Uint16(data) != MarkerSOC {
		return nil, errors.New("jpeg2k: missing SOC marker")
	}

	var f Frame
	lossless := true
	payloadStart := -1

	i := 2
	for i+2 <= len(data) {
		marker := binary.BigEndian.Uint16(data[i:])
		if marker == MarkerSOD {
			payloadStart = i + 2
			break
		}
		if marker == MarkerEOC {
			break
		}
		if i+4 > len(data) {
			return nil, errors.New("jpeg2k: truncated marker segment")
		}
		segLen := int(binary.BigEndian.Uint16(data[i+2:]))
		if segLen < 2 || i+2+segLen > len(data) {
			return nil, fmt.Errorf("jpeg2k: marker %04X has invalid length %d", marker, segLen)
		}
		seg := data[i+4 : i+2+segLen]

		switch marker {
		case MarkerSIZ:
			if err := parseSIZ(seg, &f); err != nil {
				return nil, err
			}
		case MarkerCOD:
			if len(seg) < 10 {
				return nil, errors.New("jpeg2k: COD segment too short")
			}
			lossless = TransformType(seg[9]) == TransformReversible53
		}
		i += 2 + segLen
	}

	if payloadStart < 0 {
		return nil, errors.New("jpeg2k: missing SOD marker")
	}
	if f.Width == 0 {
		return nil, errors.New("jpeg2k: missing SIZ segment")
	}

	payloadEnd := len(data)
	if payloadEnd >= 2 && binary.BigEndian.Uint16(data[payloadEnd-2:]) == MarkerEOC {
		payloadEnd -= 2
	}
	payload := data[payloadStart:payloadEnd]

	var err error
	if lossless {
		f.Pixels, err = decodeReversible(payload, &f)
	} else {
		f.Pixels, err = decodeQuantized(payload, &f)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// --- marker segment emission (all fields big-endian) ---

func writeMarker(buf *bytes.Buffer, marker uint16) {
	buf.WriteByte(byte(marker >> 8))
	buf.WriteByte(byte(marker))
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeSIZ(buf *bytes.Buffer, f *Frame) {
	writeMarker(buf, MarkerSIZ)
	writeUint16(buf, uint16(38+3*f.Components)) // Lsiz
	writeUint16(buf, 0)                         // Rsiz: no restrictions
	writeUint32(buf, uint32(f.Width))
	writeUint32(buf, uint32(f.Height))
	writeUint32(buf, 0) // XOsiz
	writeUint32(buf, 0) // YOsiz
	writeUint32(buf, uint32(f.Width))  // one tile spanning the image
	writeUint32(buf, uint32(f.Height))
	writeUint32(buf, 0) // XTOsiz
	writeUint32(buf, 0) // YTOsiz
	writeUint16(buf, uint16(f.Components))
	for c := 0; c < f.Components; c++ {
		ssiz := byte((f.BitsPerSample - 1) & 0x7F)
		if f.Signed {
			ssiz |= 0x80
		}
		buf.WriteByte(ssiz)
		buf.WriteByte(1) // XRsiz
		buf.WriteByte(1) // YRsiz
	}
}

func writeCOD(buf *bytes.Buffer, lossless bool, layers int) {
	writeMarker(buf, MarkerCOD)
	writeUint16(buf, 12)                        // Lcod
	buf.WriteByte(0)                            // Scod
	buf.WriteByte(byte(ProgressionLRCP))        // progression order
	writeUint16(buf, uint16(layers))            // quality layers
	buf.WriteByte(0)                            // MCT
	buf.WriteByte(defaultDecompLevels)          // decomposition levels
	buf.WriteByte(defaultCodeBlockExpW)         // code-block width exponent
	buf.WriteByte(defaultCodeBlockExpH)         // code-block height exponent
	buf.WriteByte(0)                            // code-block style
	if lossless {
		buf.WriteByte(byte(TransformReversible53))
	} else {
		buf.WriteByte(byte(TransformIrreversible97))
	}
}

func writeQCD(buf *bytes.Buffer, lossless bool) {
	writeMarker(buf, MarkerQCD)
	if lossless {
		writeUint16(buf, 4)
		buf.WriteByte(qcdStyleReversible)
		buf.WriteByte(0x00)
	} else {
		writeUint16(buf, 5)
		buf.WriteByte(qcdStyleScalar)
		writeUint16(buf, qcdStepScalar)
	}
}

func writeSOT(buf *bytes.Buffer, payloadLen int) {
	writeMarker(buf, MarkerSOT)
	writeUint16(buf, 10) // Lsot
	writeUint16(buf, 0)  // Isot: tile 0
	// Psot spans SOT through the end of the tile-part data
	writeUint32(buf, uint32(12+2+payloadLen))
	buf.WriteByte(0) // TPsot
	buf.WriteByte(1) // TNsot
}

func parseSIZ(seg []byte, f *Frame) error {
	if len(seg) < 36 {
		return errors.New("jpeg2k: SIZ segment too short")
	}
	f.Width = int(binary.BigEndian.Uint32(seg[2:]))
	f.Height = int(binary.BigEndian.Uint32(seg[6:]))
	f.Components = int(binary.BigEndian.Uint16(seg[34:]))
	if f.Width <= 0 || f.Height <= 0 || f.Components < 1 || f.Components > 4 {
		return fmt.Errorf("jpeg2k: SIZ declares unsupported geometry %dx%dx%d", f.Width, f.Height, f.Components)
	}
	if len(seg) < 36+3*f.Components {
		return errors.New("jpeg2k: SIZ component table truncated")
	}
	ssiz := seg[36]
	f.Signed = ssiz&0x80 != 0
	f.BitsPerSample = int(ssiz&0x7F) + 1
	return nil
}

// --- payload ---

// quantizerShift derives the right-shift applied to each sample in
// lossy mode from the requested compression ratio.
func quantizerShift(ratio float64, bits int) int {
	if ratio <= 1 {
		return 0
	}
	q := int(math.Floor(math.Log2(ratio) * 0.5))
	if q < 0 {
		q = 0
	}
	if q > bits-1 {
		q = bits - 1
	}
	return q
}

// encodePayload produces the internal representation: a horizontal
// differential stream (reversible) or a shift-quantized stream with a
// leading shift byte (irreversible), both packed with PackBits.
func encodePayload(f *Frame, lossless bool, ratio float64) []byte {
	if lossless {
		return rle.PackBits(diffEncode(f))
	}

	q := quantizerShift(ratio, f.BitsPerSample)
	raw := make([]byte, 0, len(f.Pixels))
	if f.bytesPerSample() == 1 {
		for _, p := range f.Pixels {
			raw = append(raw, p>>q)
		}
	} else {
		var b [2]byte
		for i := 0; i+1 < len(f.Pixels); i += 2 {
			s := binary.LittleEndian.Uint16(f.Pixels[i:])
			binary.LittleEndian.PutUint16(b[:], s>>q)
			raw = append(raw, b[0], b[1])
		}
	}

	out := make([]byte, 0, len(raw)/2+1)
	out = append(out, byte(q))
	return append(out, rle.PackBits(raw)...)
}

func diffEncode(f *Frame) []byte {
	out := make([]byte, len(f.Pixels))
	if f.bytesPerSample() == 1 {
		var prev byte
		for i, p := range f.Pixels {
			out[i] = p - prev
			prev = p
		}
		return out
	}
	var prev uint16
	for i := 0; i+1 < len(f.Pixels); i += 2 {
		s := binary.LittleEndian.Uint16(f.Pixels[i:])
		binary.LittleEndian.PutUint16(out[i:], s-prev)
		prev = s
	}
	return out
}

func decodeReversible(payload []byte, f *Frame) ([]byte, error) {
	want := f.sampleCount() * f.bytesPerSample()
	diffs, err := rle.UnpackBits(payload, want)
	if err != nil {
		return nil, err
	}
	if len(diffs) != want {
		return nil, fmt.Errorf("jpeg2k: payload decoded to %d bytes, want %d", len(diffs), want)
	}

	out := make([]byte, want)
	if f.bytesPerSample() == 1 {
		var acc byte
		for i, d := range diffs {
			acc += d
			out[i] = acc
		}
		return out, nil
	}
	var acc uint16
	for i := 0; i+1 < want; i += 2 {
		acc += binary.LittleEndian.Uint16(diffs[i:])
		binary.LittleEndian.PutUint16(out[i:], acc)
	}
	return out, nil
}

func decodeQuantized(payload []byte, f *Frame) ([]byte, error) {
	if len(payload) < 1 {
		return nil, errors.New("jpeg2k: empty quantized payload")
	}
	q := int(payload[0])
	if q > f.BitsPerSample-1 {
		return nil, fmt.Errorf("jpeg2k: quantizer shift %d exceeds precision %d", q, f.BitsPerSample)
	}

	want := f.sampleCount() * f.bytesPerSample()
	raw, err := rle.UnpackBits(payload[1:], want)
	if err != nil {
		return nil, err
	}
	if len(raw) != want {
		return nil, fmt.Errorf("jpeg2k: payload decoded to %d bytes, want %d", len(raw), want)
	}

	out := make([]byte, want)
	if f.bytesPerSample() == 1 {
		for i, p := range raw {
			out[i] = p << q
		}
		return out, nil
	}
	for i := 0; i+1 < want; i += 2 {
		s := binary.LittleEndian.Uint16(raw[i:])
		binary.LittleEndian.PutUint16(out[i:], s<<q)
	}
	return out, nil
}
