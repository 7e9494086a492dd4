package dicom

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"os"
	"time"

	"github.com/openrad/dicompress/pkg/dicom/transfer"
	"github.com/openrad/dicompress/pkg/util"
)

// CompressionResult reports one completed compression.
type CompressionResult struct {
	OriginalSize   int
	CompressedSize int
	CodecName      string
	TransferSyntax transfer.Syntax
	IsLossless     bool
	ElapsedMS      int64
	OutputPath     string // set when the caller supplied one
	Output         []byte // set when no output path was supplied
	Warning        string // set when a safety rule was overridden
}

// Ratio returns original/compressed.
func (r *CompressionResult) Ratio() float64 {
	if r.CompressedSize == 0 {
		return 0
	}
	return float64(r.OriginalSize) / float64(r.CompressedSize)
}

// SavingsPercent returns the space saved relative to the original.
func (r *CompressionResult) SavingsPercent() float64 {
	if r.OriginalSize == 0 {
		return 0
	}
	return (1 - float64(r.CompressedSize)/float64(r.OriginalSize)) * 100
}

// CompressFile reads a DICOM file from disk and compresses it. When
// outPath is non-empty the result is written there; otherwise the
// output bytes are returned in the result.
func CompressFile(inputPath string, cfg CompressionConfig, outPath string) (*CompressionResult, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, wrapError(KindPipeline, err, "reading %s", inputPath)
	}
	return Compress(data, cfg, outPath)
}

// Compress runs the full pipeline over an in-memory DICOM file:
// parse, validate the configuration against the instance's modality,
// encode with the selected codec, and emit a new Part-10 file under
// the codec's transfer syntax for the requested mode.
func Compress(data []byte, cfg CompressionConfig, outPath string) (*CompressionResult, error) {
	inst, err := ParseDicom(data)
	if err != nil {
		return nil, err
	}
	return CompressInstance(inst, cfg, outPath)
}

// CompressInstance compresses an already-parsed instance. The result's
// original size is the instance's source file size.
func CompressInstance(inst *Instance, cfg CompressionConfig, outPath string) (*CompressionResult, error) {
	start := time.Now()

	modality := inst.Modality()
	if err := cfg.ValidateForModality(modality); err != nil {
		return nil, err
	}
	warning := cfg.SafetyWarning(modality)
	if warning != "" {
		slog.Warn("modality safety override", "modality", modality.String(), "mode", cfg.Mode.String())
	}

	img, err := inst.GetImageData()
	if err != nil {
		return nil, err
	}

	codec, err := CodecFor(cfg.Codec)
	if err != nil {
		return nil, err
	}
	if err := codec.CanEncode(img); err != nil {
		return nil, err
	}

	syntax, ok := codec.TransferSyntaxFor(cfg.Mode)
	if !ok {
		return nil, newError(KindPipeline, "codec %s has no transfer syntax for %s mode", cfg.Codec, cfg.Mode)
	}

	encoded, err := codec.Encode(img, &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.VerifyRoundTrip {
		if err := verifyRoundTrip(codec, img, encoded, &cfg); err != nil {
			return nil, err
		}
	}

	sopInstanceUID := ""
	if !cfg.PreserveMetadata {
		sopInstanceUID = util.DeriveUID(inst.SOPInstanceUID, string(syntax))
	}
	out := WriteInstance(inst, encoded, syntax, sopInstanceUID)

	result := &CompressionResult{
		OriginalSize:   inst.SourceSize,
		CompressedSize: len(out),
		CodecName:      codec.Info().Name,
		TransferSyntax: syntax,
		IsLossless:     syntax.IsLossless(),
		ElapsedMS:      time.Since(start).Milliseconds(),
		Warning:        warning,
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, out, 0o644); err != nil {
			return nil, wrapError(KindPipeline, err, "writing %s", outPath)
		}
		result.OutputPath = outPath
	} else {
		result.Output = out
	}
	return result, nil
}

// verifyRoundTrip decodes the freshly encoded payload and checks it
// against the source image: bit-exact for lossless, within the NEAR
// tolerance for near-lossless, decodable for lossy.
func verifyRoundTrip(codec Codec, img *ImageData, encoded []byte, cfg *CompressionConfig) error {
	decoded, err := codec.Decode(encoded, DecodeHint{
		Width:           img.Width,
		Height:          img.Height,
		BitsPerSample:   img.BitsPerSample,
		SamplesPerPixel: img.SamplesPerPixel,
		Signed:          img.Signed,
	})
	if err != nil {
		return wrapError(KindCompressionConstraint, err, "round-trip decode failed")
	}

	switch cfg.Mode {
	case ModeLossless:
		if !bytes.Equal(decoded.Pixels, img.Pixels) {
			return newError(KindCompressionConstraint, "lossless round-trip is not bit-exact")
		}
	case ModeNearLossless:
		tol := cfg.NearLosslessTolerance
		if img.BitsPerSample > 8 {
			tol *= 256
		}
		if err := checkTolerance(img, decoded, tol); err != nil {
			return err
		}
	}
	return nil
}

func checkTolerance(a, b *ImageData, tol int) error {
	if len(a.Pixels) != len(b.Pixels) {
		return newError(KindCompressionConstraint, "round-trip size mismatch: %d vs %d", len(a.Pixels), len(b.Pixels))
	}
	if a.BytesPerSample() == 1 {
		for i := range a.Pixels {
			d := int(a.Pixels[i]) - int(b.Pixels[i])
			if d < -tol || d > tol {
				return newError(KindCompressionConstraint, "sample %d deviates by %d, tolerance %d", i, d, tol)
			}
		}
		return nil
	}
	for i := 0; i+1 < len(a.Pixels); i += 2 {
		d := int(binary.LittleEndian.Uint16(a.Pixels[i:])) - int(binary.LittleEndian.Uint16(b.Pixels[i:]))
		if d < -tol || d > tol {
			return newError(KindCompressionConstraint, "sample %d deviates by %d, tolerance %d", i/2, d, tol)
		}
	}
	return nil
}

// Decompress decodes one compressed pixel-data fragment back into an
// image. The codec is chosen by sniffing the bitstream: a JPEG 2000
// SOC marker, a JPEG SOI marker, an RLE segment header, or a raw run.
func Decompress(data []byte, width, height, bitsPerSample, samplesPerPixel int) (*ImageData, error) {
	hint := DecodeHint{
		Width:           width,
		Height:          height,
		BitsPerSample:   bitsPerSample,
		SamplesPerPixel: samplesPerPixel,
	}

	codec, err := sniffCodec(data)
	if err != nil {
		return nil, err
	}
	img, err := codec.Decode(data, hint)
	if err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// DecompressInstance extracts the first fragment of an encapsulated
// instance and decodes it using the instance's own attributes.
func DecompressInstance(inst *Instance) (*ImageData, error) {
	if !inst.Encapsulated {
		return inst.GetImageData()
	}
	frag := inst.FirstFragment()
	if len(frag) == 0 {
		return nil, newError(KindDicomParse, "no pixel data")
	}
	spp := inst.SamplesPerPixel
	if spp == 0 {
		spp = 1
	}
	return Decompress(frag, inst.Columns, inst.Rows, inst.EffectiveBits(), spp)
}

func sniffCodec(data []byte) (Codec, error) {
	if len(data) >= 2 {
		switch binary.BigEndian.Uint16(data) {
		case 0xFF4F:
			return &jpeg2000Codec{}, nil
		case 0xFFD8:
			return &jpegLSCodec{}, nil
		}
	}
	if looksLikeRLE(data) {
		return &rleCodec{}, nil
	}
	return &uncompressedCodec{}, nil
}

// looksLikeRLE matches the 64-byte RLE header: a small segment count
// and a first offset of exactly 64.
func looksLikeRLE(data []byte) bool {
	if len(data) < 64 {
		return false
	}
	numSegments := binary.LittleEndian.Uint32(data)
	firstOffset := binary.LittleEndian.Uint32(data[4:])
	return numSegments >= 1 && numSegments <= 15 && firstOffset == 64
}
