// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package imu holds the raw per-device sample model and the per-device
// stream buffers that feed the temporal alignment engine.
package imu

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sample is a single raw IMU measurement pushed by one device.
// It is immutable once appended to a StreamBuffer.
type Sample struct {
	DeviceID       string
	TimestampNanos int64
	Acceleration   r3.Vec
	Orientation    quat.Number
}

// Seconds returns the sample timestamp on the common absolute-seconds basis.
func (s Sample) Seconds() float64 {
	return float64(s.TimestampNanos) / 1e9
}

// wireSample is the JSON shape devices push:
//
//	{ "deviceId": "phone", "timestampNanos": 123, "acceleration": [x,y,z],
//	  "orientation": [qw,qx,qy,qz] }
type wireSample struct {
	DeviceID       string     `json:"deviceId"`
	TimestampNanos int64      `json:"timestampNanos"`
	Acceleration   [3]float64 `json:"acceleration"`
	Orientation    [4]float64 `json:"orientation"`
}

// UnmarshalJSON decodes the device wire format.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var w wireSample
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode raw sample: %w", err)
	}
	if w.DeviceID == "" {
		return fmt.Errorf("decode raw sample: missing deviceId")
	}
	s.DeviceID = w.DeviceID
	s.TimestampNanos = w.TimestampNanos
	s.Acceleration = r3.Vec{X: w.Acceleration[0], Y: w.Acceleration[1], Z: w.Acceleration[2]}
	s.Orientation = quat.Number{
		Real: w.Orientation[0],
		Imag: w.Orientation[1],
		Jmag: w.Orientation[2],
		Kmag: w.Orientation[3],
	}
	return nil
}

// MarshalJSON encodes the device wire format. Used by the mock device
// producer and in tests.
func (s Sample) MarshalJSON() ([]byte, error) {
	w := wireSample{
		DeviceID:       s.DeviceID,
		TimestampNanos: s.TimestampNanos,
		Acceleration:   [3]float64{s.Acceleration.X, s.Acceleration.Y, s.Acceleration.Z},
		Orientation:    [4]float64{s.Orientation.Real, s.Orientation.Imag, s.Orientation.Jmag, s.Orientation.Kmag},
	}
	return json.Marshal(w)
}
