// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package align merges independently-clocked device streams onto one uniform
// timeline. Streams are resampled at the source rate (100 Hz) over their
// common overlap window and then decimated to the target rate (30 Hz).
package align

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/kinematic_computer/internal/imu"
)

var (
	// ErrNoOverlap is returned when the device streams share no common
	// window, or the window is narrower than one source frame.
	ErrNoOverlap = errors.New("align: no overlap between device streams")

	// ErrInsufficientDeviceCoverage is returned when a required device has
	// no usable samples at all.
	ErrInsufficientDeviceCoverage = errors.New("align: required device has no coverage")
)

// Config fixes the resampling rates and the decimation stride. The stride is
// explicit configuration, not implicit rounding: output frame i is taken from
// source frame i*StrideNum/StrideDen (integer floor), which for 100 Hz to
// 30 Hz yields source indices 0, 3, 6, 10, 13, 16, 20, ...
type Config struct {
	SourceRateHz int
	TargetRateHz int
	StrideNum    int
	StrideDen    int

	// RequiredDevices must be present at every emitted frame; a frame
	// missing one of them is dropped and logged as a gap. Devices not
	// listed here are excluded from frames they cannot cover.
	RequiredDevices []string

	// MaxStallSteps bounds how many consecutive Aligner.Step calls may pass
	// without frontier progress before a lagging required device is excluded
	// and the blocked instants are dropped as gaps. Zero selects the default
	// (one second of steps at the target rate).
	MaxStallSteps int
}

// DefaultConfig returns the pipeline's standard 100 Hz -> 30 Hz setup.
func DefaultConfig() Config {
	return Config{
		SourceRateHz: 100,
		TargetRateHz: 30,
		StrideNum:    10,
		StrideDen:    3,
	}
}

// Measurement is one device's interpolated reading at an aligned instant.
type Measurement struct {
	Acceleration r3.Vec
	Orientation  quat.Number
}

// Frame is one aligned instant across all covered devices.
type Frame struct {
	// Index counts emitted frames from the start of the window, strictly
	// increasing.
	Index int
	// Seconds is the instant on the common absolute-seconds basis.
	Seconds float64
	// PerDevice holds every device with coverage at this instant.
	PerDevice map[string]Measurement
}

// Align resamples the given streams at the source rate across their common
// overlap window. Each stream must be sorted by timestamp (stream buffers
// guarantee this). The result is the full source-rate sequence; use
// Decimate for the target-rate view.
func Align(streams map[string][]imu.Sample, cfg Config) ([]Frame, error) {
	if cfg.SourceRateHz <= 0 {
		return nil, fmt.Errorf("align: invalid source rate %d", cfg.SourceRateHz)
	}

	required := make(map[string]bool, len(cfg.RequiredDevices))
	for _, id := range cfg.RequiredDevices {
		required[id] = true
	}

	// Overlap window: [max(first sample time), min(last sample time)] over
	// the streams that have samples. Empty required streams are fatal;
	// empty optional streams are ignored.
	start := math.Inf(-1)
	end := math.Inf(1)
	covered := 0
	for id, samples := range streams {
		if len(samples) == 0 {
			if required[id] {
				return nil, fmt.Errorf("%w: %s", ErrInsufficientDeviceCoverage, id)
			}
			continue
		}
		covered++
		if first := samples[0].Seconds(); first > start {
			start = first
		}
		if last := samples[len(samples)-1].Seconds(); last < end {
			end = last
		}
	}
	if covered == 0 {
		return nil, ErrNoOverlap
	}

	frameDur := 1.0 / float64(cfg.SourceRateHz)
	duration := end - start
	if duration < frameDur {
		return nil, ErrNoOverlap
	}

	// A window of duration d holds int(d*rate) uniform instants starting
	// at the window start: a 1.0 s overlap at 100 Hz yields exactly 100.
	n := int(duration * float64(cfg.SourceRateHz))

	frames := make([]Frame, 0, n)
	dropped := 0
	for k := 0; k < n; k++ {
		t := start + float64(k)*frameDur
		perDevice := make(map[string]Measurement, len(streams))
		drop := false
		for id, samples := range streams {
			m, ok := interpolateAt(t, samples)
			if !ok {
				if required[id] {
					drop = true
					break
				}
				continue
			}
			perDevice[id] = m
		}
		if drop || len(perDevice) == 0 {
			dropped++
			continue
		}
		frames = append(frames, Frame{Index: k, Seconds: t, PerDevice: perDevice})
	}
	if dropped > 0 {
		log.Printf("align: dropped %d/%d frames with missing required coverage", dropped, n)
	}
	return frames, nil
}

// Decimate picks the target-rate subsequence out of a source-rate frame
// sequence using the configured stride. Frame indices are renumbered to the
// output timeline.
func Decimate(frames []Frame, cfg Config) []Frame {
	if cfg.StrideDen <= 0 || cfg.StrideNum <= 0 {
		return frames
	}
	var out []Frame
	for i := 0; ; i++ {
		src := i * cfg.StrideNum / cfg.StrideDen
		if src >= len(frames) {
			break
		}
		f := frames[src]
		f.Index = i
		out = append(out, f)
	}
	return out
}

// interpolateAt produces the measurement of one stream at instant t, or
// ok=false when t is outside the stream's sampled range. Acceleration is
// linearly interpolated; orientation uses shortest-arc SLERP.
func interpolateAt(t float64, samples []imu.Sample) (Measurement, bool) {
	if len(samples) == 0 {
		return Measurement{}, false
	}
	// First sample with timestamp >= t.
	i := sort.Search(len(samples), func(i int) bool {
		return samples[i].Seconds() >= t
	})
	if i == len(samples) {
		return Measurement{}, false
	}
	if samples[i].Seconds() == t || i == 0 {
		if i == 0 && samples[0].Seconds() > t {
			return Measurement{}, false
		}
		s := samples[i]
		return Measurement{Acceleration: s.Acceleration, Orientation: s.Orientation}, true
	}
	lo, hi := samples[i-1], samples[i]
	span := hi.Seconds() - lo.Seconds()
	if span <= 0 {
		return Measurement{Acceleration: hi.Acceleration, Orientation: hi.Orientation}, true
	}
	f := (t - lo.Seconds()) / span
	return Measurement{
		Acceleration: lerp(lo.Acceleration, hi.Acceleration, f),
		Orientation:  Slerp(lo.Orientation, hi.Orientation, f),
	}, true
}

func lerp(a, b r3.Vec, f float64) r3.Vec {
	return r3.Add(a, r3.Scale(f, r3.Sub(b, a)))
}
