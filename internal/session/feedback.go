package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BandKind orders feedback quality from best to worst.
type BandKind string

const (
	Excellent        BandKind = "excellent"
	Good             BandKind = "good"
	NeedsImprovement BandKind = "needsImprovement"
	Bad              BandKind = "bad"
)

// Band is one threshold band: a value in [Lower, Upper) matches and carries
// the band's message.
type Band struct {
	Kind    BandKind `yaml:"kind"`
	Lower   float64  `yaml:"lower"`
	Upper   float64  `yaml:"upper"`
	Message string   `yaml:"message"`
}

// Thresholds maps a metric name to its ordered band list. Bands are checked
// in strict priority order; the first match wins.
type Thresholds map[string][]Band

// Feedback is the classification of one metric value.
type Feedback struct {
	Metric  string   `json:"metric"`
	Kind    BandKind `json:"kind"`
	Message string   `json:"message"`
	Value   float64  `json:"value"`
}

// Classify matches value against the metric's bands in order. When no band
// matches (or the metric is unknown) it falls back to needsImprovement with
// a generic message rather than dropping feedback.
func (t Thresholds) Classify(metric string, value float64) Feedback {
	for _, band := range t[metric] {
		if value >= band.Lower && value < band.Upper {
			return Feedback{Metric: metric, Kind: band.Kind, Message: band.Message, Value: value}
		}
	}
	return Feedback{
		Metric:  metric,
		Kind:    NeedsImprovement,
		Message: fmt.Sprintf("%s is outside the expected range; keep an eye on it", metric),
		Value:   value,
	}
}

// thresholdsFile is the YAML document shape.
type thresholdsFile struct {
	Metrics Thresholds `yaml:"metrics"`
}

// LoadThresholds reads per-metric band definitions from a YAML file.
func LoadThresholds(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thresholds config: %w", err)
	}
	var f thresholdsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse thresholds config: %w", err)
	}
	if len(f.Metrics) == 0 {
		return nil, fmt.Errorf("thresholds config %s defines no metrics", path)
	}
	return f.Metrics, nil
}

// DefaultThresholds returns the compiled-in bands used when no config file
// is given.
func DefaultThresholds() Thresholds {
	return Thresholds{
		"frontKnee": {
			{Kind: Excellent, Lower: 150, Upper: 175, Message: "Front knee extension looks great"},
			{Kind: Good, Lower: 135, Upper: 150, Message: "Front knee is slightly bent; aim for a fuller extension"},
			{Kind: NeedsImprovement, Lower: 110, Upper: 135, Message: "Front knee is collapsing; lengthen your stride"},
			{Kind: Bad, Lower: 0, Upper: 110, Message: "Front knee angle is far too closed"},
		},
		"kneeSymmetry": {
			{Kind: Excellent, Lower: 90, Upper: 101, Message: "Knee symmetry is excellent"},
			{Kind: Good, Lower: 80, Upper: 90, Message: "Knees are mostly balanced"},
			{Kind: NeedsImprovement, Lower: 60, Upper: 80, Message: "One knee works harder than the other"},
			{Kind: Bad, Lower: 0, Upper: 60, Message: "Strong knee asymmetry; consider slowing down"},
		},
		"elbowSymmetry": {
			{Kind: Excellent, Lower: 90, Upper: 101, Message: "Arm swing is well balanced"},
			{Kind: Good, Lower: 80, Upper: 90, Message: "Arm swing is mostly balanced"},
			{Kind: NeedsImprovement, Lower: 60, Upper: 80, Message: "Uneven arm swing; relax your shoulders"},
			{Kind: Bad, Lower: 0, Upper: 60, Message: "Arms are badly out of sync"},
		},
		"headTilt": {
			{Kind: Excellent, Lower: -5, Upper: 8, Message: "Head position is neutral"},
			{Kind: Good, Lower: 8, Upper: 15, Message: "Slight forward lean; keep your gaze up"},
			{Kind: NeedsImprovement, Lower: 15, Upper: 30, Message: "Head drops forward; lift your chin"},
			{Kind: Bad, Lower: 30, Upper: 90, Message: "Excessive forward head tilt"},
		},
		"spineCurvature": {
			{Kind: Excellent, Lower: 0, Upper: 10, Message: "Back posture is upright"},
			{Kind: Good, Lower: 10, Upper: 20, Message: "Mild spine curvature; engage your core"},
			{Kind: NeedsImprovement, Lower: 20, Upper: 35, Message: "Noticeable rounding of the back"},
			{Kind: Bad, Lower: 35, Upper: 180, Message: "Severe spine curvature; check your form"},
		},
	}
}
