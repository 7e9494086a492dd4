package dicom

import (
	"bytes"

	"github.com/openrad/dicompress/pkg/dicom/transfer"
)

// CodecComparison contains compression metrics for one codec/mode pair.
type CodecComparison struct {
	Codec             CodecKind
	Mode              Mode
	TransferSyntax    transfer.Syntax
	OriginalSize      int
	CompressedSize    int
	Ratio             float64
	SpaceSavedPercent float64
	RoundTripExact    bool
	Err               error // set when this pair could not compress
}

// AnalyzeCodecs compresses the input with every codec in each of its
// supported modes and reports the resulting ratios. Pairs that fail
// keep their error in the entry instead of aborting the sweep; safety
// policy is bypassed since nothing is persisted.
func AnalyzeCodecs(data []byte) ([]CodecComparison, error) {
	inst, err := ParseDicom(data)
	if err != nil {
		return nil, err
	}
	img, err := inst.GetImageData()
	if err != nil {
		return nil, err
	}

	pairs := []struct {
		kind CodecKind
		mode Mode
	}{
		{CodecJPEG2000, ModeLossless},
		{CodecJPEG2000, ModeLossy},
		{CodecJPEGLS, ModeLossless},
		{CodecJPEGLS, ModeNearLossless},
		{CodecRLE, ModeLossless},
		{CodecUncompressed, ModeLossless},
	}

	results := make([]CodecComparison, 0, len(pairs))
	for _, p := range pairs {
		cfg := DefaultConfig(p.kind)
		cfg.Mode = p.mode
		cfg.OverrideSafety = true
		switch p.mode {
		case ModeLossy:
			cfg.Preset = PresetStandard
			cfg.TargetRatio = cfg.Preset.TargetRatio()
			cfg.QualityLayers = cfg.Preset.QualityLayers()
		case ModeNearLossless:
			cfg.NearLosslessTolerance = 2
		}

		entry := CodecComparison{Codec: p.kind, Mode: p.mode, OriginalSize: len(data)}
		res, err := Compress(data, cfg, "")
		if err != nil {
			entry.Err = err
			results = append(results, entry)
			continue
		}

		entry.TransferSyntax = res.TransferSyntax
		entry.CompressedSize = res.CompressedSize
		entry.Ratio = res.Ratio()
		entry.SpaceSavedPercent = res.SavingsPercent()
		if p.mode == ModeLossless {
			entry.RoundTripExact = roundTripsExactly(res.Output, img)
		}
		results = append(results, entry)
	}
	return results, nil
}

func roundTripsExactly(compressed []byte, img *ImageData) bool {
	inst, err := ParseDicom(compressed)
	if err != nil {
		return false
	}
	decoded, err := DecompressInstance(inst)
	if err != nil {
		return false
	}
	return bytes.Equal(decoded.Pixels, img.Pixels)
}
