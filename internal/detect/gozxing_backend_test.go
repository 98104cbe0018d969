//go:build !qrscan_nonative

package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrscan-dev/qrscan/internal/testutil"
)

func TestBackendSupportedFormats(t *testing.T) {
	det, err := New()
	require.NoError(t, err)
	defer func() { _ = det.Close() }()

	formats, err := det.SupportedFormats()
	require.NoError(t, err)
	assert.Contains(t, formats, FormatQR)
}

func TestBackendDetect(t *testing.T) {
	det, err := New()
	require.NoError(t, err)
	defer func() { _ = det.Close() }()

	detections, err := det.Detect(testutil.EncodeQR(t, "native detect", 256))
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "native detect", detections[0].RawValue)
	assert.NotEmpty(t, detections[0].CornerPoints)
}

func TestBackendDetectNothing(t *testing.T) {
	det, err := New()
	require.NoError(t, err)
	defer func() { _ = det.Close() }()

	detections, err := det.Detect(testutil.BlankImage(64, 64))
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestBackendInversionMode(t *testing.T) {
	det, err := New()
	require.NoError(t, err)
	defer func() { _ = det.Close() }()

	inv, ok := det.(interface{ SetInversionMode(string) })
	require.True(t, ok)
	inv.SetInversionMode("both")

	detections, err := det.Detect(testutil.InvertedQR(t, "flipped", 256))
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "flipped", detections[0].RawValue)
}
