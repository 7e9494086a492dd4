package dicom

import (
	"github.com/go-playground/validator/v10"
)

// Mode selects how much fidelity the encoder must preserve.
type Mode int

const (
	ModeLossless Mode = iota
	ModeLossy
	ModeNearLossless
)

func (m Mode) String() string {
	switch m {
	case ModeLossless:
		return "lossless"
	case ModeLossy:
		return "lossy"
	case ModeNearLossless:
		return "nearlossless"
	default:
		return "unknown"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// CompressionConfig is the parameter bundle handed to the pipeline.
// TileSize is reserved and must stay 0.
type CompressionConfig struct {
	Codec                 CodecKind
	Mode                  Mode
	Preset                QualityPreset
	TargetRatio           float64 `validate:"gte=0"`
	QualityLayers         int     `validate:"gte=0,lte=16"`
	TileSize              int     `validate:"eq=0"`
	NearLosslessTolerance int     `validate:"gte=0,lte=255"`
	PreserveMetadata      bool
	VerifyRoundTrip       bool
	OverrideSafety        bool
}

// DefaultConfig returns a lossless configuration for the given codec.
func DefaultConfig(kind CodecKind) CompressionConfig {
	return CompressionConfig{
		Codec:            kind,
		Mode:             ModeLossless,
		Preset:           PresetDiagnostic,
		QualityLayers:    PresetDiagnostic.QualityLayers(),
		PreserveMetadata: true,
	}
}

// ConfigForModality builds a configuration from the modality's policy
// defaults: recommended codec, default preset, and lossless mode when
// the preset (or the modality itself) demands it.
func ConfigForModality(m Modality) CompressionConfig {
	preset := m.DefaultPreset()
	cfg := CompressionConfig{
		Codec:            m.RecommendedCodec(),
		Preset:           preset,
		TargetRatio:      preset.TargetRatio(),
		QualityLayers:    preset.QualityLayers(),
		PreserveMetadata: true,
	}
	if m.RequiresLossless() || preset == PresetDiagnostic {
		cfg.Mode = ModeLossless
		cfg.TargetRatio = 0
	} else {
		cfg.Mode = ModeLossy
	}
	return cfg
}

// Validate checks the configuration's internal consistency.
func (c *CompressionConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return wrapError(KindConfiguration, err, "invalid compression config")
	}
	if c.Mode == ModeLossless && c.NearLosslessTolerance != 0 {
		return newError(KindConfiguration, "near-lossless tolerance must be 0 in lossless mode")
	}
	if c.Mode == ModeNearLossless {
		if c.Codec != CodecJPEGLS {
			return newError(KindConfiguration, "codec %s does not support near-lossless mode", c.Codec)
		}
		if c.NearLosslessTolerance == 0 {
			return newError(KindConfiguration, "near-lossless mode requires a tolerance > 0")
		}
	}
	return nil
}

// ValidateForModality applies modality policy on top of Validate.
// Mammography (MG) must be compressed losslessly; a lossy request is
// rejected unless OverrideSafety is set, in which case the caller is
// expected to surface the warning from SafetyWarning.
func (c *CompressionConfig) ValidateForModality(m Modality) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if m.RequiresLossless() && c.Mode != ModeLossless && !c.OverrideSafety {
		return newError(KindValidation,
			"modality %s requires lossless compression (requested %s); set override-safety to bypass", m, c.Mode)
	}
	return nil
}

// SafetyWarning returns a human-readable warning when the config
// bypasses a modality safety rule, and "" otherwise.
func (c *CompressionConfig) SafetyWarning(m Modality) string {
	if m.RequiresLossless() && c.Mode != ModeLossless && c.OverrideSafety {
		return "compressing " + m.String() + " with " + c.Mode.String() +
			" mode against lossless policy (override-safety set)"
	}
	return ""
}

// EffectiveTargetRatio resolves the ratio the encoder should aim for:
// the explicit TargetRatio when set, else the preset's.
func (c *CompressionConfig) EffectiveTargetRatio() float64 {
	if c.Mode != ModeLossy {
		return 0
	}
	if c.TargetRatio > 0 {
		return c.TargetRatio
	}
	return c.Preset.TargetRatio()
}

// EffectiveQualityLayers resolves the layer count, falling back to the preset.
func (c *CompressionConfig) EffectiveQualityLayers() int {
	if c.QualityLayers > 0 {
		return c.QualityLayers
	}
	return c.Preset.QualityLayers()
}
