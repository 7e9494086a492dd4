package dicom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig(CodecJPEG2000)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_LosslessForbidsTolerance(t *testing.T) {
	cfg := DefaultConfig(CodecJPEGLS)
	cfg.NearLosslessTolerance = 3
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration))
}

func TestConfig_NearLosslessOnlyJPEGLS(t *testing.T) {
	cfg := DefaultConfig(CodecJPEG2000)
	cfg.Mode = ModeNearLossless
	cfg.NearLosslessTolerance = 2
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration))

	cfg = DefaultConfig(CodecJPEGLS)
	cfg.Mode = ModeNearLossless
	cfg.NearLosslessTolerance = 2
	assert.NoError(t, cfg.Validate())
}

func TestConfig_NearLosslessNeedsTolerance(t *testing.T) {
	cfg := DefaultConfig(CodecJPEGLS)
	cfg.Mode = ModeNearLossless
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration))
}

func TestConfig_FieldRanges(t *testing.T) {
	cfg := DefaultConfig(CodecJPEGLS)
	cfg.Mode = ModeNearLossless
	cfg.NearLosslessTolerance = 300 // validator caps at 255
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration))

	cfg = DefaultConfig(CodecJPEG2000)
	cfg.TileSize = 128 // reserved, must stay 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration))

	cfg = DefaultConfig(CodecJPEG2000)
	cfg.TargetRatio = -1
	assert.Error(t, cfg.Validate())
}

func TestConfig_ValidateForModality_MG(t *testing.T) {
	lossy := DefaultConfig(CodecJPEG2000)
	lossy.Mode = ModeLossy
	lossy.TargetRatio = 20

	err := lossy.ValidateForModality(ModalityMG)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
	assert.Contains(t, err.Error(), "MG")
	assert.Contains(t, err.Error(), "lossless")

	// Lossless passes
	lossless := DefaultConfig(CodecJPEG2000)
	assert.NoError(t, lossless.ValidateForModality(ModalityMG))

	// Override bypasses the policy and produces a warning instead
	lossy.OverrideSafety = true
	assert.NoError(t, lossy.ValidateForModality(ModalityMG))
	assert.NotEmpty(t, lossy.SafetyWarning(ModalityMG))
	assert.Empty(t, lossy.SafetyWarning(ModalityCT))
}

func TestConfig_ValidateForModality_OthersUnrestricted(t *testing.T) {
	lossy := DefaultConfig(CodecJPEG2000)
	lossy.Mode = ModeLossy
	for _, m := range []Modality{ModalityCT, ModalityMR, ModalityUS, ModalityOther} {
		assert.NoError(t, lossy.ValidateForModality(m), m.String())
	}
}

func TestConfig_EffectiveTargetRatio(t *testing.T) {
	cfg := DefaultConfig(CodecJPEG2000)
	cfg.Mode = ModeLossy
	cfg.Preset = PresetStandard
	assert.Equal(t, 20.0, cfg.EffectiveTargetRatio(), "preset fallback")

	cfg.TargetRatio = 12.5
	assert.Equal(t, 12.5, cfg.EffectiveTargetRatio(), "explicit override")

	cfg.Mode = ModeLossless
	assert.Zero(t, cfg.EffectiveTargetRatio(), "ignored unless lossy")
}

func TestConfigForModality(t *testing.T) {
	mg := ConfigForModality(ModalityMG)
	assert.Equal(t, ModeLossless, mg.Mode)
	assert.Equal(t, CodecJPEGLS, mg.Codec)
	assert.NoError(t, mg.ValidateForModality(ModalityMG))

	ct := ConfigForModality(ModalityCT)
	assert.Equal(t, ModeLossy, ct.Mode)
	assert.Equal(t, CodecJPEG2000, ct.Codec)
	assert.Equal(t, 10.0, ct.TargetRatio)
}
