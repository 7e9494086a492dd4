package dicom

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrad/dicompress/pkg/dicom/transfer"
)

func compressRamp(t *testing.T, cfg CompressionConfig) (*CompressionResult, *Instance) {
	t.Helper()
	data := buildNativeDicom(defaultSpec(4, 4, ramp16()))
	res, err := Compress(data, cfg, "")
	require.NoError(t, err)
	inst, err := ParseDicom(res.Output)
	require.NoError(t, err)
	return res, inst
}

func TestCompress_JPEG2000Lossless_RoundTrip(t *testing.T) {
	cfg := DefaultConfig(CodecJPEG2000)
	cfg.VerifyRoundTrip = true

	res, inst := compressRamp(t, cfg)
	assert.Equal(t, "jpeg2000", res.CodecName)
	assert.Equal(t, transfer.JPEG2000Lossless, res.TransferSyntax)
	assert.True(t, res.IsLossless)

	frag := inst.FirstFragment()
	require.NotEmpty(t, frag)
	assert.Equal(t, []byte{0xFF, 0x4F, 0xFF, 0x51}, frag[:4], "codestream opens with SOC+SIZ")
	assert.Equal(t, []byte{0xFF, 0xD9}, frag[len(frag)-2:], "codestream ends with EOC")

	img, err := Decompress(frag, 4, 4, 8, 1)
	require.NoError(t, err)
	assert.Equal(t, ramp16(), img.Pixels)
}

func TestCompress_JPEGLSLossless_RoundTrip(t *testing.T) {
	cfg := DefaultConfig(CodecJPEGLS)
	cfg.VerifyRoundTrip = true

	res, inst := compressRamp(t, cfg)
	assert.Equal(t, transfer.JPEGLSLossless, res.TransferSyntax)

	frag := inst.FirstFragment()
	require.NotEmpty(t, frag)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xF7}, frag[:4], "SOI then SOF55")

	img, err := Decompress(frag, 4, 4, 8, 1)
	require.NoError(t, err)
	assert.Equal(t, ramp16(), img.Pixels)
}

func TestCompress_JPEGLSNearLossless_Tolerance(t *testing.T) {
	cfg := DefaultConfig(CodecJPEGLS)
	cfg.Mode = ModeNearLossless
	cfg.NearLosslessTolerance = 2
	cfg.VerifyRoundTrip = true

	res, inst := compressRamp(t, cfg)
	assert.Equal(t, transfer.JPEGLSNearLossless, res.TransferSyntax)
	assert.False(t, res.IsLossless)

	img, err := DecompressInstance(inst)
	require.NoError(t, err)

	orig := ramp16()
	for i := range orig {
		d := int(orig[i]) - int(img.Pixels[i])
		if d < 0 {
			d = -d
		}
		assert.LessOrEqual(t, d, 2, "pixel %d", i)
	}
}

func TestCompress_MGRequiresLossless(t *testing.T) {
	s := defaultSpec(4, 4, ramp16())
	s.Modality = "MG"
	data := buildNativeDicom(s)

	cfg := DefaultConfig(CodecJPEG2000)
	cfg.Mode = ModeLossy
	cfg.TargetRatio = 20

	_, err := Compress(data, cfg, "")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
	assert.Contains(t, err.Error(), "MG")
	assert.Contains(t, err.Error(), "lossless")
}

func TestCompress_MGOverrideSurfacesWarning(t *testing.T) {
	s := defaultSpec(4, 4, ramp16())
	s.Modality = "MG"
	data := buildNativeDicom(s)

	cfg := DefaultConfig(CodecJPEG2000)
	cfg.Mode = ModeLossy
	cfg.TargetRatio = 20
	cfg.OverrideSafety = true

	res, err := Compress(data, cfg, "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warning)
	assert.Contains(t, res.Warning, "MG")
}

func TestCompress_RatioArithmetic(t *testing.T) {
	cfg := DefaultConfig(CodecJPEG2000)
	res, _ := compressRamp(t, cfg)

	assert.Equal(t, int(res.Ratio()*float64(res.CompressedSize)+0.5), res.OriginalSize)
	assert.InDelta(t, (1-float64(res.CompressedSize)/float64(res.OriginalSize))*100, res.SavingsPercent(), 1e-9)

	empty := &CompressionResult{}
	assert.Zero(t, empty.Ratio())
	assert.Zero(t, empty.SavingsPercent())
}

func TestCompress_UnsupportedModeForCodec(t *testing.T) {
	data := buildNativeDicom(defaultSpec(4, 4, ramp16()))

	cfg := DefaultConfig(CodecUncompressed)
	cfg.Mode = ModeLossy
	cfg.TargetRatio = 10

	_, err := Compress(data, cfg, "")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindPipeline))
}

func TestCompress_SignedRejectedByJPEGLS(t *testing.T) {
	s := defaultSpec(4, 4, ramp16())
	s.Signed = true
	data := buildNativeDicom(s)

	cfg := DefaultConfig(CodecJPEGLS)
	_, err := Compress(data, cfg, "")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindPipeline))
}

func TestCompress_WritesFile(t *testing.T) {
	data := buildNativeDicom(defaultSpec(4, 4, ramp16()))
	out := filepath.Join(t.TempDir(), "out.dcm")

	cfg := DefaultConfig(CodecJPEG2000)
	res, err := Compress(data, cfg, out)
	require.NoError(t, err)
	assert.Equal(t, out, res.OutputPath)
	assert.Empty(t, res.Output)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, res.CompressedSize, len(written))

	inst, err := ParseDicom(written)
	require.NoError(t, err)
	assert.True(t, inst.Encapsulated)
}

func TestCompress_FreshUIDWhenNotPreserving(t *testing.T) {
	data := buildNativeDicom(defaultSpec(4, 4, ramp16()))

	cfg := DefaultConfig(CodecJPEG2000)
	cfg.PreserveMetadata = false

	res, err := Compress(data, cfg, "")
	require.NoError(t, err)
	inst, err := ParseDicom(res.Output)
	require.NoError(t, err)
	assert.NotEqual(t, "1.2.3.4.5.6.7.8.9", inst.SOPInstanceUID)
	assert.Contains(t, inst.SOPInstanceUID, "2.25.")
}

func TestCompress_16Bit_RoundTrip(t *testing.T) {
	pixels := make([]byte, 8*8*2)
	for i := 0; i < 64; i++ {
		pixels[i*2] = byte(i * 37)
		pixels[i*2+1] = byte(i)
	}
	s := defaultSpec(8, 8, pixels)
	s.Bits = 16

	data := buildNativeDicom(s)
	cfg := DefaultConfig(CodecJPEG2000)
	cfg.VerifyRoundTrip = true

	res, err := Compress(data, cfg, "")
	require.NoError(t, err)

	inst, err := ParseDicom(res.Output)
	require.NoError(t, err)
	img, err := DecompressInstance(inst)
	require.NoError(t, err)
	assert.Equal(t, pixels, img.Pixels)
}

func TestDecompress_DispatchesBySniffing(t *testing.T) {
	img := grayImage(4, 4, 8, ramp16())

	for _, kind := range []CodecKind{CodecJPEG2000, CodecJPEGLS, CodecRLE, CodecUncompressed} {
		c, _ := CodecFor(kind)
		cfg := DefaultConfig(kind)
		enc, err := c.Encode(img, &cfg)
		require.NoError(t, err, kind.String())

		dec, err := Decompress(enc, 4, 4, 8, 1)
		require.NoError(t, err, kind.String())
		assert.Equal(t, img.Pixels, dec.Pixels, kind.String())
	}
}

func TestRoundTripLaw_FragmentEqualsEncode(t *testing.T) {
	// parse(write(instance, encode(image, cfg), uid)) yields a fragment
	// equal to encode(image, cfg)
	data := buildNativeDicom(defaultSpec(4, 4, ramp16()))
	inst, err := ParseDicom(data)
	require.NoError(t, err)
	img, err := inst.GetImageData()
	require.NoError(t, err)

	c, _ := CodecFor(CodecJPEGLS)
	cfg := DefaultConfig(CodecJPEGLS)
	encoded, err := c.Encode(img, &cfg)
	require.NoError(t, err)

	out := WriteInstance(inst, encoded, transfer.JPEGLSLossless, "")
	reparsed, err := ParseDicom(out)
	require.NoError(t, err)
	require.True(t, reparsed.Encapsulated)
	require.Len(t, reparsed.Fragments, 1)
	assert.True(t, bytes.Equal(encoded, reparsed.Fragments[0]))
}

func TestVerifyRoundTrip_Passthrough(t *testing.T) {
	data := buildNativeDicom(defaultSpec(4, 4, ramp16()))
	cfg := DefaultConfig(CodecUncompressed)
	cfg.VerifyRoundTrip = true
	res, err := Compress(data, cfg, "")
	require.NoError(t, err)
	assert.Equal(t, transfer.ExplicitVRLittleEndian, res.TransferSyntax)
}
