package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholds_FirstMatchingBandWins(t *testing.T) {
	thresholds := Thresholds{
		"frontKnee": {
			{Kind: Excellent, Lower: 150, Upper: 175, Message: "great"},
			{Kind: Good, Lower: 135, Upper: 150, Message: "ok"},
		},
	}

	fb := thresholds.Classify("frontKnee", 160)
	assert.Equal(t, Excellent, fb.Kind)
	assert.Equal(t, "great", fb.Message)
	assert.Equal(t, 160.0, fb.Value)

	// Lower bound inclusive, upper exclusive.
	assert.Equal(t, Excellent, thresholds.Classify("frontKnee", 150).Kind)
	assert.Equal(t, Good, thresholds.Classify("frontKnee", 149.9).Kind)
}

func TestThresholds_UnmatchedValueFallsBack(t *testing.T) {
	thresholds := Thresholds{
		"frontKnee": {{Kind: Excellent, Lower: 150, Upper: 175, Message: "great"}},
	}

	fb := thresholds.Classify("frontKnee", 20)
	assert.Equal(t, NeedsImprovement, fb.Kind)
	assert.NotEmpty(t, fb.Message)

	fb = thresholds.Classify("unknownMetric", 1)
	assert.Equal(t, NeedsImprovement, fb.Kind)
}

func TestLoadThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	doc := `metrics:
  frontKnee:
    - kind: excellent
      lower: 150
      upper: 175
      message: Front knee extension looks great
    - kind: bad
      lower: 0
      upper: 150
      message: Front knee angle is too closed
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	thresholds, err := LoadThresholds(path)
	require.NoError(t, err)
	require.Contains(t, thresholds, "frontKnee")
	require.Len(t, thresholds["frontKnee"], 2)
	assert.Equal(t, Excellent, thresholds.Classify("frontKnee", 160).Kind)
	assert.Equal(t, Bad, thresholds.Classify("frontKnee", 100).Kind)
}

func TestLoadThresholds_EmptyDocumentRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics: {}\n"), 0o644))

	_, err := LoadThresholds(path)
	assert.Error(t, err)
}

func TestDefaultThresholds_CoverHeadlineMetrics(t *testing.T) {
	thresholds := DefaultThresholds()
	for _, metric := range []string{"frontKnee", "kneeSymmetry", "elbowSymmetry", "headTilt", "spineCurvature"} {
		assert.Contains(t, thresholds, metric)
	}
}
