package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/relabs-tech/kinematic_computer/internal/align"
	"github.com/relabs-tech/kinematic_computer/internal/calib"
)

// RunWeb serves the session control API and the static display files.
// Capture endpoints block for the capture window; a failed capture leaves
// the calibration stage unchanged so the client can simply retry.
func RunWeb(port int, p *Pipeline) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/calibration/reference", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := p.CaptureReference(); err != nil {
			writeCaptureError(w, p, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"stage":  p.Stage().String(),
		})
	})

	mux.HandleFunc("/api/calibration/tpose", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := p.CaptureTPose(); err != nil {
			writeCaptureError(w, p, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"stage":  p.Stage().String(),
		})
	})

	mux.HandleFunc("/api/session/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sess, err := p.StartSession()
		if err != nil {
			status := http.StatusConflict
			if errors.Is(err, ErrNotCalibrated) {
				status = http.StatusPreconditionFailed
			}
			writeJSON(w, status, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"sessionId": sess.ID.String(),
			"startedAt": sess.StartedAt.Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/api/session/end", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		summary, err := p.EndSession()
		if err != nil {
			writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, summary)
	})

	mux.HandleFunc("/api/joint-angles", func(w http.ResponseWriter, r *http.Request) {
		frame, ok := p.JointAngles()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, frame)
	})

	mux.HandleFunc("/api/debug/status", p.HandleDebugStatus)

	// Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	mux.Handle("/", fs)

	addr := fmt.Sprintf(":%d", port)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

// writeCaptureError maps capture failures onto retryable responses. Capture
// errors never advance the state machine, so every failure is retryable.
func writeCaptureError(w http.ResponseWriter, p *Pipeline, err error) {
	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, ErrSessionRunning):
		status = http.StatusConflict
	case errors.Is(err, calib.ErrWrongStage):
		status = http.StatusConflict
	case errors.Is(err, align.ErrNoOverlap),
		errors.Is(err, align.ErrInsufficientDeviceCoverage),
		errors.Is(err, calib.ErrInsufficientSamples),
		errors.Is(err, calib.ErrDegenerateOrientation):
		status = http.StatusUnprocessableEntity
	}
	log.Printf("web: capture failed: %v", err)
	writeJSON(w, status, map[string]any{
		"error": err.Error(),
		"stage": p.Stage().String(),
		"retry": status == http.StatusUnprocessableEntity,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}
