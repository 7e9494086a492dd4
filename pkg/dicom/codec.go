package dicom

import (
	"bytes"
	"strings"

	"github.com/openrad/dicompress/pkg/compress/jpeg2k"
	"github.com/openrad/dicompress/pkg/compress/jpegls"
	"github.com/openrad/dicompress/pkg/compress/rle"
	"github.com/openrad/dicompress/pkg/dicom/transfer"
)

// CodecKind selects one of the pixel codecs.
type CodecKind int

const (
	CodecUncompressed CodecKind = iota
	CodecJPEG2000
	CodecJPEGLS
	CodecRLE
)

func (k CodecKind) String() string {
	switch k {
	case CodecJPEG2000:
		return "jpeg2000"
	case CodecJPEGLS:
		return "jpegls"
	case CodecRLE:
		return "rle"
	case CodecUncompressed:
		return "uncompressed"
	default:
		return "unknown"
	}
}

// CodecKindFromName resolves a codec name or alias.
func CodecKindFromName(name string) (CodecKind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "jpeg2000", "j2k":
		return CodecJPEG2000, true
	case "jpegls", "jls":
		return CodecJPEGLS, true
	case "rle":
		return CodecRLE, true
	case "uncompressed", "raw":
		return CodecUncompressed, true
	default:
		return 0, false
	}
}

// CodecInfo describes a codec implementation.
type CodecInfo struct {
	Name    string
	Version string
}

// CodecCapabilities declares what a codec can handle.
type CodecCapabilities struct {
	SupportsLossless    bool
	SupportsLossy       bool
	SupportsProgressive bool
	SupportsROI         bool

	LosslessSyntax transfer.Syntax
	LossySyntax    transfer.Syntax

	MaxBitsPerSample   int
	SupportsSigned     bool
	SupportsColor      bool
	SupportsMultiFrame bool
}

// DecodeHint carries the image attributes a decoder cannot recover
// from the bitstream itself.
type DecodeHint struct {
	Width           int
	Height          int
	BitsPerSample   int
	SamplesPerPixel int
	Signed          bool
}

// Codec is the capability set every pixel codec implements. Codecs
// hold only configuration and may be freely constructed per operation.
type Codec interface {
	Info() CodecInfo
	Capabilities() CodecCapabilities
	// CanEncode reports whether the image fits the codec's capability
	// envelope, returning a Pipeline error when it does not.
	CanEncode(img *ImageData) error
	Encode(img *ImageData, cfg *CompressionConfig) ([]byte, error)
	Decode(data []byte, hint DecodeHint) (*ImageData, error)
	// TransferSyntaxFor maps a mode to the codec's transfer syntax for
	// that mode, if it has one.
	TransferSyntaxFor(mode Mode) (transfer.Syntax, bool)
}

// CodecFor returns the codec implementation for a kind.
func CodecFor(kind CodecKind) (Codec, error) {
	switch kind {
	case CodecJPEG2000:
		return &jpeg2000Codec{}, nil
	case CodecJPEGLS:
		return &jpegLSCodec{}, nil
	case CodecRLE:
		return &rleCodec{}, nil
	case CodecUncompressed:
		return &uncompressedCodec{}, nil
	default:
		return nil, newError(KindConfiguration, "unknown codec kind %d", int(kind))
	}
}

// CodecByTransferSyntax returns the codec that produces or consumes
// the given transfer syntax.
func CodecByTransferSyntax(s transfer.Syntax) (Codec, error) {
	switch s {
	case transfer.JPEG2000Lossless, transfer.JPEG2000:
		return &jpeg2000Codec{}, nil
	case transfer.JPEGLSLossless, transfer.JPEGLSNearLossless:
		return &jpegLSCodec{}, nil
	case transfer.RLELossless:
		return &rleCodec{}, nil
	case transfer.ExplicitVRLittleEndian, transfer.ImplicitVRLittleEndian:
		return &uncompressedCodec{}, nil
	default:
		return nil, ErrUnsupportedTransferSyntax(string(s))
	}
}

// checkEnvelope applies the shared capability gates.
func checkEnvelope(name string, caps CodecCapabilities, img *ImageData) error {
	if img.BitsPerSample > caps.MaxBitsPerSample {
		return newError(KindPipeline, "%s: %d bits per sample exceeds codec maximum %d",
			name, img.BitsPerSample, caps.MaxBitsPerSample)
	}
	if err := img.Validate(); err != nil {
		return err
	}
	if !img.IsGrayscale() && !caps.SupportsColor {
		return newError(KindPipeline, "%s: codec handles grayscale only, image has %d samples per pixel",
			name, img.SamplesPerPixel)
	}
	if img.Signed && !caps.SupportsSigned {
		return newError(KindPipeline, "%s: codec does not handle signed samples", name)
	}
	return nil
}

// --- JPEG 2000 ---

type jpeg2000Codec struct{}

func (c *jpeg2000Codec) Info() CodecInfo {
	return CodecInfo{Name: "jpeg2000", Version: "1.0"}
}

func (c *jpeg2000Codec) Capabilities() CodecCapabilities {
	return CodecCapabilities{
		SupportsLossless:    true,
		SupportsLossy:       true,
		SupportsProgressive: true,
		LosslessSyntax:      transfer.JPEG2000Lossless,
		LossySyntax:         transfer.JPEG2000,
		MaxBitsPerSample:    16,
		SupportsSigned:      true,
		SupportsColor:       true,
	}
}

func (c *jpeg2000Codec) CanEncode(img *ImageData) error {
	return checkEnvelope("jpeg2000", c.Capabilities(), img)
}

func (c *jpeg2000Codec) Encode(img *ImageData, cfg *CompressionConfig) ([]byte, error) {
	var buf bytes.Buffer
	err := jpeg2k.Encode(&buf, &jpeg2k.Frame{
		Width:         img.Width,
		Height:        img.Height,
		BitsPerSample: img.BitsPerSample,
		Components:    img.SamplesPerPixel,
		Signed:        img.Signed,
		Pixels:        img.Pixels,
	}, &jpeg2k.Options{
		Lossless:    cfg.Mode == ModeLossless,
		TargetRatio: cfg.EffectiveTargetRatio(),
		Layers:      cfg.EffectiveQualityLayers(),
	})
	if err != nil {
		return nil, wrapError(KindCodecFailure, err, "jpeg2000 encode")
	}
	return buf.Bytes(), nil
}

func (c *jpeg2000Codec) Decode(data []byte, hint DecodeHint) (*ImageData, error) {
	f, err := jpeg2k.Decode(data)
	if err != nil {
		return nil, wrapError(KindCodecFailure, err, "jpeg2000 decode")
	}
	return &ImageData{
		Width:                     f.Width,
		Height:                    f.Height,
		BitsPerSample:             f.BitsPerSample,
		SamplesPerPixel:           f.Components,
		Signed:                    f.Signed,
		PhotometricInterpretation: photometricFor(f.Components),
		Pixels:                    f.Pixels,
	}, nil
}

func (c *jpeg2000Codec) TransferSyntaxFor(mode Mode) (transfer.Syntax, bool) {
	switch mode {
	case ModeLossless:
		return transfer.JPEG2000Lossless, true
	case ModeLossy:
		return transfer.JPEG2000, true
	default:
		return "", false
	}
}

// --- JPEG-LS ---

type jpegLSCodec struct{}

func (c *jpegLSCodec) Info() CodecInfo {
	return CodecInfo{Name: "jpegls", Version: "1.0"}
}

func (c *jpegLSCodec) Capabilities() CodecCapabilities {
	return CodecCapabilities{
		SupportsLossless: true,
		SupportsLossy:    true, // near-lossless
		LosslessSyntax:   transfer.JPEGLSLossless,
		LossySyntax:      transfer.JPEGLSNearLossless,
		MaxBitsPerSample: 16,
		SupportsColor:    true,
	}
}

func (c *jpegLSCodec) CanEncode(img *ImageData) error {
	return checkEnvelope("jpegls", c.Capabilities(), img)
}

func (c *jpegLSCodec) Encode(img *ImageData, cfg *CompressionConfig) ([]byte, error) {
	near := 0
	if cfg.Mode == ModeNearLossless {
		near = cfg.NearLosslessTolerance
	}
	var buf bytes.Buffer
	err := jpegls.Encode(&buf, &jpegls.Frame{
		Width:         img.Width,
		Height:        img.Height,
		BitsPerSample: img.BitsPerSample,
		Components:    img.SamplesPerPixel,
		Pixels:        img.Pixels,
	}, &jpegls.Options{Near: near})
	if err != nil {
		return nil, wrapError(KindCodecFailure, err, "jpegls encode")
	}
	return buf.Bytes(), nil
}

func (c *jpegLSCodec) Decode(data []byte, hint DecodeHint) (*ImageData, error) {
	f, err := jpegls.Decode(data)
	if err != nil {
		return nil, wrapError(KindCodecFailure, err, "jpegls decode")
	}
	return &ImageData{
		Width:                     f.Width,
		Height:                    f.Height,
		BitsPerSample:             f.BitsPerSample,
		SamplesPerPixel:           f.Components,
		Signed:                    hint.Signed,
		PhotometricInterpretation: photometricFor(f.Components),
		Pixels:                    f.Pixels,
	}, nil
}

func (c *jpegLSCodec) TransferSyntaxFor(mode Mode) (transfer.Syntax, bool) {
	switch mode {
	case ModeLossless:
		return transfer.JPEGLSLossless, true
	case ModeNearLossless:
		return transfer.JPEGLSNearLossless, true
	default:
		return "", false
	}
}

// --- RLE ---

type rleCodec struct{}

func (c *rleCodec) Info() CodecInfo {
	return CodecInfo{Name: "rle", Version: "1.0"}
}

func (c *rleCodec) Capabilities() CodecCapabilities {
	return CodecCapabilities{
		SupportsLossless: true,
		LosslessSyntax:   transfer.RLELossless,
		MaxBitsPerSample: 16,
		SupportsSigned:   true,
	}
}

func (c *rleCodec) CanEncode(img *ImageData) error {
	return checkEnvelope("rle", c.Capabilities(), img)
}

func (c *rleCodec) Encode(img *ImageData, cfg *CompressionConfig) ([]byte, error) {
	var buf bytes.Buffer
	if err := rle.Encode(&buf, img.Pixels, img.Width, img.Height, img.BytesPerSample()); err != nil {
		return nil, wrapError(KindCodecFailure, err, "rle encode")
	}
	return buf.Bytes(), nil
}

func (c *rleCodec) Decode(data []byte, hint DecodeHint) (*ImageData, error) {
	bps := 1
	if hint.BitsPerSample > 8 {
		bps = 2
	}
	pixels, err := rle.Decode(data, hint.Width, hint.Height, bps)
	if err != nil {
		return nil, wrapError(KindCodecFailure, err, "rle decode")
	}
	return &ImageData{
		Width:                     hint.Width,
		Height:                    hint.Height,
		BitsPerSample:             hint.BitsPerSample,
		SamplesPerPixel:           1,
		Signed:                    hint.Signed,
		PhotometricInterpretation: photometricFor(1),
		Pixels:                    pixels,
	}, nil
}

func (c *rleCodec) TransferSyntaxFor(mode Mode) (transfer.Syntax, bool) {
	if mode == ModeLossless {
		return transfer.RLELossless, true
	}
	return "", false
}

// --- passthrough ---

type uncompressedCodec struct{}

func (c *uncompressedCodec) Info() CodecInfo {
	return CodecInfo{Name: "uncompressed", Version: "1.0"}
}

func (c *uncompressedCodec) Capabilities() CodecCapabilities {
	return CodecCapabilities{
		SupportsLossless: true,
		LosslessSyntax:   transfer.ExplicitVRLittleEndian,
		MaxBitsPerSample: 16,
		SupportsSigned:   true,
		SupportsColor:    true,
	}
}

func (c *uncompressedCodec) CanEncode(img *ImageData) error {
	return checkEnvelope("uncompressed", c.Capabilities(), img)
}

func (c *uncompressedCodec) Encode(img *ImageData, cfg *CompressionConfig) ([]byte, error) {
	out := make([]byte, len(img.Pixels))
	copy(out, img.Pixels)
	return out, nil
}

func (c *uncompressedCodec) Decode(data []byte, hint DecodeHint) (*ImageData, error) {
	img := &ImageData{
		Width:                     hint.Width,
		Height:                    hint.Height,
		BitsPerSample:             hint.BitsPerSample,
		SamplesPerPixel:           hint.SamplesPerPixel,
		Signed:                    hint.Signed,
		PhotometricInterpretation: photometricFor(hint.SamplesPerPixel),
		Pixels:                    data,
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

func (c *uncompressedCodec) TransferSyntaxFor(mode Mode) (transfer.Syntax, bool) {
	if mode == ModeLossless {
		return transfer.ExplicitVRLittleEndian, true
	}
	return "", false
}

func photometricFor(components int) string {
	if components >= 3 {
		return "RGB"
	}
	return "MONOCHROME2"
}
