package dicom

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_KindMatching(t *testing.T) {
	err := newError(KindValidation, "MG requires lossless")
	assert.True(t, IsKind(err, KindValidation))
	assert.False(t, IsKind(err, KindPipeline))
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestError_WrappedCause(t *testing.T) {
	cause := errors.New("short read")
	err := wrapError(KindDicomParse, cause, "reading element (0028,0010)")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "short read")
	assert.Contains(t, err.Error(), "dicom-parse")
}

func TestError_KindSurvivesWrapping(t *testing.T) {
	inner := newError(KindCodecFailure, "jpegls decode")
	outer := fmt.Errorf("pipeline step 5: %w", inner)
	assert.True(t, IsKind(outer, KindCodecFailure))
	assert.Equal(t, KindCodecFailure, KindOf(outer))
}

func TestErrUnsupportedTransferSyntax(t *testing.T) {
	err := ErrUnsupportedTransferSyntax("1.2.840.10008.1.2.4.50")
	require.True(t, IsKind(err, KindUnsupportedTransferSyntax))
	assert.Contains(t, err.Error(), "1.2.840.10008.1.2.4.50")
}

func TestKind_Strings(t *testing.T) {
	kinds := []Kind{
		KindDicomParse, KindUnsupportedTransferSyntax, KindCodecFailure,
		KindInvalidFormat, KindImageData, KindConfiguration,
		KindValidation, KindCompressionConstraint, KindPipeline,
	}
	seen := map[string]bool{}
	for _, k := range kinds {
		s := k.String()
		assert.NotEqual(t, "unknown", s)
		assert.False(t, seen[s], "duplicate kind string %q", s)
		seen[s] = true
	}
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindPipeline))
}
