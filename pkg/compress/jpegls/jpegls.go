package jpegls

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/openrad/dicompress/pkg/compress/rle"
)

// Frame is one uncompressed image: little-endian samples in row-major
// order, components interleaved per pixel.
type Frame struct {
	Width         int
	Height        int
	BitsPerSample int
	Components    int
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
		return fmt.Errorf("jpegls: invalid dimensions %dx%d", f.Width, f.Height)
	}
	if f.BitsPerSample < 2 || f.BitsPerSample > 16 {
		return fmt.Errorf("jpegls: unsupported precision %d", f.BitsPerSample)
	}
	if f.Components < 1 || f.Components > 4 {
		return fmt.Errorf("jpegls: unsupported component count %d", f.Components)
	}
	if want := f.sampleCount() * f.bytesPerSample(); len(f.Pixels) != want {
		return fmt.Errorf("jpegls: pixel buffer is %d bytes, want %d", len(f.Pixels), want)
	}
	return nil
}

// Options control the encode.
type Options struct {
	// Near is the NEAR parameter: 0 for lossless, 1..255 for a bounded
	// per-sample reconstruction error.
	Near int
}

// Encode writes a framed JPEG-LS bitstream for f.
func Encode(w io.Writer, f *Frame, opts *Options) error {
	if err := f.validate(); err != nil {
		return err
	}
	near := 0
	if opts != nil {
		near = opts.Near
	}
	if near < 0 || near > 255 {
		return fmt.Errorf("jpegls: NEAR %d out of range", near)
	}

	var buf bytes.Buffer
	writeMarker(&buf, MarkerSOI)
	writeSOF(&buf, f)
	if near > 0 {
		writeLSE(&buf)
	}
	writeSOS(&buf, f, near)
	buf.Write(rle.PackBits(encodeResiduals(f, near)))
	writeMarker(&buf, MarkerEOI)

	_, err := w.Write(buf.Bytes())
	return err
}

// Decode parses a framed JPEG-LS bitstream and reconstructs the frame.
// Geometry and precision come from SOF55; NEAR comes from SOS.
func Decode(data []byte) (*Frame, error) {
	if len(data) < 4 || binary.BigEndian.Uint16(data) != MarkerSOI {
		return nil, errors.New("jpegls: missing SOI marker")
	}

	var f Frame
	near := -1
	payloadStart := -1

	i := 2
	for i+2 <= len(data) {
		if data[i] != 0xFF {
			return nil, fmt.Errorf("jpegls: expected marker at offset %d", i)
		}
		m := data[i+1]
		if m == 0x00 {
			// stuffed byte, not a marker
			i += 2
			continue
		}
		if m == byte(MarkerEOI&0xFF) {
			break
		}
		if i+4 > len(data) {
			return nil, errors.New("jpegls: truncated marker segment")
		}
		segLen := int(binary.BigEndian.Uint16(data[i+2:]))
		if segLen < 2 || i+2+segLen > len(data) {
			return nil, fmt.Errorf("jpegls: marker FF%02X has invalid length %d", m, segLen)
		}
		seg := data[i+4 : i+2+segLen]

		switch 0xFF00 | uint16(m) {
		case MarkerSOF55:
			if err := parseSOF(seg, &f); err != nil {
				return nil, err
			}
		case MarkerSOS:
			if len(seg) < 1 {
				return nil, errors.New("jpegls: SOS segment too short")
			}
			ns := int(seg[0])
			if len(seg) < 1+2*ns+3 {
				return nil, errors.New("jpegls: SOS segment too short")
			}
			near = int(seg[1+2*ns])
			payloadStart = i + 2 + segLen
		}
		if payloadStart >= 0 {
			break
		}
		i += 2 + segLen
	}

	if payloadStart < 0 || near < 0 {
		return nil, errors.New("jpegls: missing SOS marker")
	}
	if f.Width == 0 {
		return nil, errors.New("jpegls: missing SOF55 marker")
	}

	payloadEnd := len(data)
	if payloadEnd >= 2 && binary.BigEndian.Uint16(data[payloadEnd-2:]) == MarkerEOI {
		payloadEnd -= 2
	}

	want := f.sampleCount() * f.bytesPerSample()
	residuals, err := rle.UnpackBits(data[payloadStart:payloadEnd], want)
	if err != nil {
		return nil, err
	}
	if len(residuals) != want {
		return nil, fmt.Errorf("jpegls: payload decoded to %d bytes, want %d", len(residuals), want)
	}

	f.Pixels = decodeResiduals(residuals, &f, near)
	return &f, nil
}

// --- marker segment emission ---

func writeMarker(buf *bytes.Buffer, marker uint16) {
	buf.WriteByte(byte(marker >> 8))
	buf.WriteByte(byte(marker))
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}

func writeSOF(buf *bytes.Buffer, f *Frame) {
	writeMarker(buf, MarkerSOF55)
	writeUint16(buf, uint16(8+3*f.Components)) // Lf
	buf.WriteByte(byte(f.BitsPerSample))       // P
	writeUint16(buf, uint16(f.Height))         // Y
	writeUint16(buf, uint16(f.Width))          // X
	buf.WriteByte(byte(f.Components))          // Nf
	for c := 0; c < f.Components; c++ {
		buf.WriteByte(byte(c + 1)) // Ci
		buf.WriteByte(0x11)        // Hi=1 Vi=1
		buf.WriteByte(0x00)        // Tqi
	}
}

func writeLSE(buf *bytes.Buffer) {
	writeMarker(buf, MarkerLSE)
	writeUint16(buf, 13)
	buf.WriteByte(lsePresetID)
	writeUint16(buf, lseMaxVal)
	writeUint16(buf, lseT1)
	writeUint16(buf, lseT2)
	writeUint16(buf, lseT3)
	writeUint16(buf, lseReset)
}

func writeSOS(buf *bytes.Buffer, f *Frame, near int) {
	writeMarker(buf, MarkerSOS)
	writeUint16(buf, uint16(6+2*f.Components)) // Ls
	buf.WriteByte(byte(f.Components))          // Ns
	for c := 0; c < f.Components; c++ {
		buf.WriteByte(byte(c + 1)) // Csj
		buf.WriteByte(0x00)        // Tdj/Taj
	}
	buf.WriteByte(byte(near)) // NEAR
	if f.Components > 1 {
		buf.WriteByte(2) // sample interleaved
	} else {
		buf.WriteByte(0)
	}
	buf.WriteByte(0x00) // point transform
}

func parseSOF(seg []byte, f *Frame) error {
	if len(seg) < 6 {
		return errors.New("jpegls: SOF55 segment too short")
	}
	f.BitsPerSample = int(seg[0])
	f.Height = int(binary.BigEndian.Uint16(seg[1:]))
	f.Width = int(binary.BigEndian.Uint16(seg[3:]))
	f.Components = int(seg[5])
	if f.Width <= 0 || f.Height <= 0 || f.Components < 1 || f.Components > 4 ||
		f.BitsPerSample < 2 || f.BitsPerSample > 16 {
		return fmt.Errorf("jpegls: SOF55 declares unsupported frame %dx%dx%d @%d bits",
			f.Width, f.Height, f.Components, f.BitsPerSample)
	}
	return nil
}

// --- residual coding ---

// nearScale returns the quantizer NEAR in sample units. For 16-bit
// samples the source representation scales NEAR by 256; preserved here
// for round-trip fidelity.
func nearScale(near, bits int) int {
	if bits > 8 {
		return near * 256
	}
	return near
}

// floorDiv is the mathematical floor of a/b, so the quantizer bound
// |error - q*(2N+1)| <= N holds for negative errors too.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// encodeResiduals runs the MED predictor over the frame and emits one
// residual per sample in the sample's storage width. Prediction uses
// the reconstructed plane so near-lossless errors do not accumulate.
func encodeResiduals(f *Frame, near int) []byte {
	w, h, comps := f.Width, f.Height, f.Components
	bps := f.bytesPerSample()
	maxVal := (1 << f.BitsPerSample) - 1
	seed := 1 << (f.BitsPerSample - 1)
	n := nearScale(near, f.BitsPerSample)
	denom := 2*n + 1

	recon := make([]int, w*h*comps)
	out := make([]byte, len(f.Pixels))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < comps; c++ {
				idx := (y*w+x)*comps + c
				sample := sampleAt(f.Pixels, idx, bps)
				pred := predictAt(recon, x, y, c, w, comps, seed, maxVal)

				// Residuals wrap in the sample width. Lossless
				// reconstruction wraps too (exact inverse); the
				// near-lossless quantizer clamps into range instead so
				// the +-NEAR bound survives at the range edges.
				if bps == 1 {
					e := int(int8(uint8(sample - pred)))
					if near == 0 {
						out[idx] = byte(int8(e))
						recon[idx] = int(uint8(pred + e))
					} else {
						q := floorDiv(e+n, denom)
						out[idx] = byte(int8(q))
						recon[idx] = clip(pred+q*denom, 0, maxVal)
					}
				} else {
					e := int(int16(uint16(sample - pred)))
					if near == 0 {
						binary.LittleEndian.PutUint16(out[idx*2:], uint16(int16(e)))
						recon[idx] = int(uint16(pred + e))
					} else {
						q := floorDiv(e+n, denom)
						binary.LittleEndian.PutUint16(out[idx*2:], uint16(int16(q)))
						recon[idx] = clip(pred+q*denom, 0, maxVal)
					}
				}
			}
		}
	}
	return out
}

// decodeResiduals rebuilds samples by adding the dequantized residual
// to the MED prediction over the partially reconstructed output.
func decodeResiduals(residuals []byte, f *Frame, near int) []byte {
	w, h, comps := f.Width, f.Height, f.Components
	bps := f.bytesPerSample()
	maxVal := (1 << f.BitsPerSample) - 1
	seed := 1 << (f.BitsPerSample - 1)
	n := nearScale(near, f.BitsPerSample)
	denom := 2*n + 1

	recon := make([]int, w*h*comps)
	out := make([]byte, len(residuals))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < comps; c++ {
				idx := (y*w+x)*comps + c
				pred := predictAt(recon, x, y, c, w, comps, seed, maxVal)

				// Mirrors the encoder: wrap for lossless, clamp for
				// near-lossless.
				if bps == 1 {
					q := int(int8(residuals[idx]))
					var val int
					if near == 0 {
						val = int(uint8(pred + q))
					} else {
						val = clip(pred+q*denom, 0, maxVal)
					}
					out[idx] = byte(val)
					recon[idx] = val
				} else {
					q := int(int16(binary.LittleEndian.Uint16(residuals[idx*2:])))
					var val int
					if near == 0 {
						val = int(uint16(pred + q))
					} else {
						val = clip(pred+q*denom, 0, maxVal)
					}
					binary.LittleEndian.PutUint16(out[idx*2:], uint16(val))
					recon[idx] = val
				}
			}
		}
	}
	return out
}

func sampleAt(pixels []byte, idx, bps int) int {
	if bps == 1 {
		return int(pixels[idx])
	}
	return int(binary.LittleEndian.Uint16(pixels[idx*2:]))
}

// predictAt gathers the causal neighbours for (x, y) in component c.
// The top-left sample predicts from the mid-range seed; edge samples
// copy their lone defined neighbour.
func predictAt(recon []int, x, y, c, w, comps, seed, maxVal int) int {
	at := func(px, py int) int {
		return recon[(py*w+px)*comps+c]
	}
	var a, b, d int
	switch {
	case x == 0 && y == 0:
		a, b, d = seed, seed, seed
	case y == 0:
		a = at(x-1, 0)
		b, d = a, a
	case x == 0:
		b = at(0, y-1)
		a, d = b, b
	default:
		a = at(x-1, y)
		b = at(x, y-1)
		d = at(x-1, y-1)
	}
	return PredictMED(a, b, d, maxVal)
}
