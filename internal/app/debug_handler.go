// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// DeviceDebugInfo is one device's live ingestion state.
type DeviceDebugInfo struct {
	DeviceID      string  `json:"deviceId"`
	BufferedCount int     `json:"bufferedCount"`
	StaleCount    int     `json:"staleCount"`
	LastTimestamp float64 `json:"lastTimestamp,omitempty"` // seconds
}

// DebugStatus is the full introspection payload.
type DebugStatus struct {
	Timestamp        string            `json:"timestamp"`
	CalibrationStage string            `json:"calibrationStage"`
	SessionActive    bool              `json:"sessionActive"`
	SessionID        string            `json:"sessionId,omitempty"`
	AlignmentGaps    int               `json:"alignmentGaps"`
	Devices          []DeviceDebugInfo `json:"devices"`
}

// HandleDebugStatus serves live ingestion and pipeline state for diagnosing
// device connectivity and timeline gaps.
func (p *Pipeline) HandleDebugStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	status := DebugStatus{
		Timestamp:        time.Now().Format(time.RFC3339),
		CalibrationStage: p.Stage().String(),
	}

	for id, buf := range p.hub.Buffers() {
		info := DeviceDebugInfo{
			DeviceID:      id,
			BufferedCount: buf.Len(),
			StaleCount:    buf.StaleCount(),
		}
		if latest, ok := buf.Latest(); ok {
			info.LastTimestamp = latest.Seconds()
		}
		status.Devices = append(status.Devices, info)
	}

	p.mu.Lock()
	if p.sess != nil && !p.sess.Ended() {
		status.SessionActive = true
		status.SessionID = p.sess.ID.String()
	}
	if p.aligner != nil {
		status.AlignmentGaps = p.aligner.Gaps()
	}
	p.mu.Unlock()

	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("json encode error: %v", err)
	}
}
