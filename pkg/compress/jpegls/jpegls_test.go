package jpegls

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gray8Frame(width, height int, fill func(x, y int) byte) *Frame {
	pixels := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pixels[y*width+x] = fill(x, y)
		}
	}
	return &Frame{Width: width, Height: height, BitsPerSample: 8, Components: 1, Pixels: pixels}
}

func gray16Frame(width, height int, fill func(x, y int) uint16) *Frame {
	pixels := make([]byte, width*height*2)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			binary.LittleEndian.PutUint16(pixels[(y*width+x)*2:], fill(x, y))
		}
	}
	return &Frame{Width: width, Height: height, BitsPerSample: 16, Components: 1, Pixels: pixels}
}

func TestEncode_Framing(t *testing.T) {
	f := gray8Frame(4, 4, func(x, y int) byte { return byte((y*4 + x) * 16) })

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, f, nil))
	out := buf.Bytes()

	// SOI then SOF55 open the stream, EOI closes it
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xF7}, out[:4])
	assert.Equal(t, []byte{0xFF, 0xD9}, out[len(out)-2:])

	// SOF55: Lf, P, Y, X, Nf
	assert.Equal(t, uint16(8+3), binary.BigEndian.Uint16(out[4:]))
	assert.Equal(t, byte(8), out[6])
	assert.Equal(t, uint16(4), binary.BigEndian.Uint16(out[7:]))
	assert.Equal(t, uint16(4), binary.BigEndian.Uint16(out[9:]))
	assert.Equal(t, byte(1), out[11])
}

func TestEncode_LSEOnlyWhenNear(t *testing.T) {
	f := gray8Frame(4, 4, func(x, y int) byte { return byte(x) })

	hasLSE := func(data []byte) bool {
		for i := 0; i+1 < len(data); i++ {
			if data[i] == 0xFF && data[i+1] == 0xF8 {
				return true
			}
		}
		return false
	}

	var lossless, near bytes.Buffer
	require.NoError(t, Encode(&lossless, f, nil))
	require.NoError(t, Encode(&near, f, &Options{Near: 2}))

	assert.False(t, hasLSE(lossless.Bytes()))
	assert.True(t, hasLSE(near.Bytes()))
}

func TestRoundTrip_Lossless8(t *testing.T) {
	f := gray8Frame(16, 12, func(x, y int) byte { return byte(x*31 + y*17) })

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, f, nil))

	decoded, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, f.Width, decoded.Width)
	assert.Equal(t, f.Height, decoded.Height)
	assert.Equal(t, f.Pixels, decoded.Pixels)
}

func TestRoundTrip_Lossless8_Extremes(t *testing.T) {
	// Alternating extremes force residual wrap-around
	f := gray8Frame(8, 8, func(x, y int) byte {
		if (x+y)%2 == 0 {
			return 0x00
		}
		return 0xFF
	})

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, f, nil))

	decoded, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, f.Pixels, decoded.Pixels)
}

func TestRoundTrip_Lossless16(t *testing.T) {
	f := gray16Frame(11, 9, func(x, y int) uint16 { return uint16(x*4099 + y*257) })

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, f, nil))

	decoded, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, f.Pixels, decoded.Pixels)
}

func TestRoundTrip_NearLossless8(t *testing.T) {
	near := 2
	f := gray8Frame(4, 4, func(x, y int) byte { return byte((y*4 + x) * 16) })

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, f, &Options{Near: near}))

	decoded, err := Decode(buf.Bytes())
	require.NoError(t, err)

	for i := range f.Pixels {
		d := int(f.Pixels[i]) - int(decoded.Pixels[i])
		if d < 0 {
			d = -d
		}
		assert.LessOrEqual(t, d, near, "pixel %d: %d vs %d", i, f.Pixels[i], decoded.Pixels[i])
	}
}

func TestRoundTrip_NearLossless8_Gradient(t *testing.T) {
	near := 3
	f := gray8Frame(32, 32, func(x, y int) byte { return byte(x*3 + y*5) })

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, f, &Options{Near: near}))

	decoded, err := Decode(buf.Bytes())
	require.NoError(t, err)

	for i := range f.Pixels {
		d := int(f.Pixels[i]) - int(decoded.Pixels[i])
		if d < 0 {
			d = -d
		}
		require.LessOrEqual(t, d, near, "pixel %d", i)
	}
}

func TestRoundTrip_NearLossless16(t *testing.T) {
	// The 16-bit quantizer scales NEAR by 256
	near := 1
	f := gray16Frame(8, 8, func(x, y int) uint16 { return uint16(x*512 + y*640) })

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, f, &Options{Near: near}))

	decoded, err := Decode(buf.Bytes())
	require.NoError(t, err)

	tol := near * 256
	for i := 0; i+1 < len(f.Pixels); i += 2 {
		a := int(binary.LittleEndian.Uint16(f.Pixels[i:]))
		b := int(binary.LittleEndian.Uint16(decoded.Pixels[i:]))
		d := a - b
		if d < 0 {
			d = -d
		}
		require.LessOrEqual(t, d, tol, "sample %d", i/2)
	}
}

func TestDecode_ReadsNearFromSOS(t *testing.T) {
	f := gray8Frame(4, 4, func(x, y int) byte { return byte(x * 60) })

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, f, &Options{Near: 5}))
	out := buf.Bytes()

	// Locate SOS and check the NEAR byte the decoder will read
	for i := 0; i+1 < len(out); i++ {
		if out[i] == 0xFF && out[i+1] == 0xDA {
			segLen := int(binary.BigEndian.Uint16(out[i+2:]))
			ns := int(out[i+4])
			assert.Equal(t, byte(5), out[i+5+2*ns], "NEAR byte")
			assert.Equal(t, 6+2*ns, segLen)
			return
		}
	}
	t.Fatal("SOS marker not found")
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte{0x12, 0x34})
	assert.Error(t, err, "missing SOI")

	_, err = Decode([]byte{0xFF, 0xD8, 0xFF, 0xD9})
	assert.Error(t, err, "no SOS")
}

func TestConstantImage_Compresses(t *testing.T) {
	f := gray8Frame(256, 256, func(x, y int) byte { return 0x55 })

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, f, nil))
	assert.Less(t, buf.Len(), len(f.Pixels)/10, "constant image should collapse")

	decoded, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, f.Pixels, decoded.Pixels)
}
