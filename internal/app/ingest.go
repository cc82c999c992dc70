// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/kinematic_computer/internal/imu"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Hub owns the per-device stream buffers that device websocket connections
// feed and the alignment stage reads. Buffers are created lazily when a
// device first reports.
type Hub struct {
	mu         sync.RWMutex
	buffers    map[string]*imu.StreamBuffer
	chanBuffer int
}

// NewHub creates an empty hub. chanBuffer is the per-connection channel
// capacity between the websocket reader and the buffer writer.
func NewHub(chanBuffer int) *Hub {
	if chanBuffer <= 0 {
		chanBuffer = 256
	}
	return &Hub{buffers: make(map[string]*imu.StreamBuffer), chanBuffer: chanBuffer}
}

// Buffer returns the stream buffer for a device, creating it on first use.
func (h *Hub) Buffer(deviceID string) *imu.StreamBuffer {
	h.mu.RLock()
	buf, ok := h.buffers[deviceID]
	h.mu.RUnlock()
	if ok {
		return buf
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if buf, ok = h.buffers[deviceID]; ok {
		return buf
	}
	buf = imu.NewStreamBuffer(deviceID)
	h.buffers[deviceID] = buf
	log.Printf("ingest: registered device %s", deviceID)
	return buf
}

// Buffers returns a snapshot of the registered buffers keyed by device.
func (h *Hub) Buffers() map[string]*imu.StreamBuffer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]*imu.StreamBuffer, len(h.buffers))
	for id, buf := range h.buffers {
		out[id] = buf
	}
	return out
}

// Reset drops all buffered samples on every device, keeping the device
// registrations. Used between calibration captures and sessions.
func (h *Hub) Reset() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, buf := range h.buffers {
		buf.Reset()
	}
}

// HandleIMUWS handles one device websocket connection. The reader goroutine
// decodes samples and hands them to a bounded channel; a companion goroutine
// drains the channel into the stream buffers so a slow buffer lock never
// stalls the socket read. When the channel is full the newest sample is
// dropped and counted.
func (h *Hub) HandleIMUWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ingest: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()
	log.Printf("ingest: device connection from %s", r.RemoteAddr)

	samples := make(chan imu.Sample, h.chanBuffer)
	done := make(chan struct{})

	go func() {
		defer close(done)
		stale := 0
		for s := range samples {
			if !h.Buffer(s.DeviceID).Append(s) {
				stale++
				if stale%100 == 1 {
					log.Printf("ingest: device %s: %d stale samples discarded", s.DeviceID, stale)
				}
			}
		}
	}()

	overflow := 0
	malformed := 0
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ingest: websocket read error: %v", err)
			}
			break
		}
		var s imu.Sample
		if err := json.Unmarshal(payload, &s); err != nil {
			// A bad message is dropped; the connection survives.
			malformed++
			if malformed%100 == 1 {
				log.Printf("ingest: %d malformed samples from %s: %v", malformed, r.RemoteAddr, err)
			}
			continue
		}
		select {
		case samples <- s:
		default:
			overflow++
			if overflow%100 == 1 {
				log.Printf("ingest: channel full, %d samples dropped from %s", overflow, r.RemoteAddr)
			}
		}
	}

	close(samples)
	<-done
	log.Printf("ingest: device connection from %s closed", r.RemoteAddr)
}

// RunIngest serves the device websocket endpoint. Blocks until the listener
// fails.
func RunIngest(addr string, h *Hub) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/imu", h.HandleIMUWS)
	log.Printf("ingest: listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
