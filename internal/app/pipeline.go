// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/kinematic_computer/internal/align"
	"github.com/relabs-tech/kinematic_computer/internal/calib"
	"github.com/relabs-tech/kinematic_computer/internal/config"
	"github.com/relabs-tech/kinematic_computer/internal/imu"
	"github.com/relabs-tech/kinematic_computer/internal/kinematics"
	"github.com/relabs-tech/kinematic_computer/internal/pose"
	"github.com/relabs-tech/kinematic_computer/internal/session"
)

var (
	// ErrNotCalibrated is returned when a session is started before both
	// calibration captures completed.
	ErrNotCalibrated = errors.New("pipeline: not calibrated")

	// ErrNoSession is returned when an operation needs an active session and
	// none exists.
	ErrNoSession = errors.New("pipeline: no active session")

	// ErrSessionRunning is returned when calibration is requested while a
	// session is still active.
	ErrSessionRunning = errors.New("pipeline: session still running")
)

// captureMargin pads the blocking capture wait so the aligned window safely
// contains the required number of frames despite transport jitter.
const captureMargin = 300 * time.Millisecond

// Pipeline drives the whole processing chain: aligned frames from the hub's
// stream buffers through calibration, the pose model and metric extraction
// into the active session, publishing each live frame over MQTT.
//
// One goroutine (Run) owns the frame path; the HTTP control handlers mutate
// the calibration/session state under the pipeline mutex.
type Pipeline struct {
	cfg       *config.Config
	hub       *Hub
	client    mqtt.Client
	estimator pose.Estimator

	mu         sync.Mutex
	calibrator *calib.Calibrator
	calibState *calib.State
	aligner    *align.Aligner
	extractor  *kinematics.Extractor
	sess       *session.Session
	thresholds session.Thresholds
}

// NewPipeline wires the pipeline to its collaborators. Thresholds come from
// the configured YAML file when set, otherwise the compiled-in defaults.
func NewPipeline(cfg *config.Config, hub *Hub, client mqtt.Client, estimator pose.Estimator) (*Pipeline, error) {
	thresholds := session.DefaultThresholds()
	if cfg.ThresholdsFile != "" {
		loaded, err := session.LoadThresholds(cfg.ThresholdsFile)
		if err != nil {
			return nil, err
		}
		thresholds = loaded
		log.Printf("pipeline: loaded thresholds from %s", cfg.ThresholdsFile)
	}
	return &Pipeline{
		cfg:        cfg,
		hub:        hub,
		client:     client,
		estimator:  estimator,
		calibrator: calib.NewCalibrator(calibConfig(cfg)),
		thresholds: thresholds,
	}, nil
}

func calibConfig(cfg *config.Config) calib.Config {
	return calib.Config{
		CaptureSeconds:  cfg.CalibrationCaptureSeconds,
		RateHz:          cfg.TargetRateHz,
		ReferenceDevice: cfg.ReferenceDevice,
	}
}

func (p *Pipeline) alignConfig() align.Config {
	return align.Config{
		SourceRateHz:    p.cfg.SourceRateHz,
		TargetRateHz:    p.cfg.TargetRateHz,
		StrideNum:       p.cfg.DecimationStrideNum,
		StrideDen:       p.cfg.DecimationStrideDen,
		RequiredDevices: p.cfg.RequiredDevices,
		// One second of ticks before a lagging device stops the live feed.
		MaxStallSteps: p.cfg.TargetRateHz,
	}
}

// Run drives the frame path at the target rate until the context is
// cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	interval := time.Second / time.Duration(p.cfg.TargetRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("pipeline: running at %d Hz", p.cfg.TargetRateHz)

	for {
		select {
		case <-ctx.Done():
			log.Println("pipeline: shutting down")
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick processes every newly computable aligned frame through the chain.
func (p *Pipeline) tick() {
	p.mu.Lock()
	sess, aligner, state, extractor := p.sess, p.aligner, p.calibState, p.extractor
	p.mu.Unlock()

	if sess == nil || sess.Ended() || aligner == nil || state == nil {
		return
	}

	for _, f := range aligner.Step() {
		calibrated := state.Apply(f)

		poseFrame, err := p.estimator.EstimatePose(calibrated)
		if err != nil {
			// The model produced nothing for this frame; the pipeline keeps
			// running on the next one.
			log.Printf("pipeline: pose estimation failed at frame %d: %v", f.Index, err)
			continue
		}

		joints, reorthonormalized := poseFrame.JointPositions()
		if reorthonormalized > 0 {
			log.Printf("pipeline: frame %d: re-orthonormalized %d joint rotations", f.Index, reorthonormalized)
		}

		metrics := extractor.Extract(joints, poseFrame.FrameIndex)
		out := sess.Observe(metrics)

		p.publishJSON(p.cfg.TopicFrame, out)
		p.publishJSON(p.cfg.TopicFeedback, sess.Classify(out))
	}
}

// captureWindow clears the buffers, blocks for the configured capture length
// and returns the aligned, decimated frames of the window.
func (p *Pipeline) captureWindow() ([]align.Frame, error) {
	p.hub.Reset()
	time.Sleep(time.Duration(p.cfg.CalibrationCaptureSeconds)*time.Second + captureMargin)

	streams := make(map[string][]imu.Sample)
	for id, buf := range p.hub.Buffers() {
		streams[id] = buf.Snapshot()
	}

	acfg := p.alignConfig()
	frames, err := align.Align(streams, acfg)
	if err != nil {
		return nil, err
	}
	return align.Decimate(frames, acfg), nil
}

// CaptureReference runs the blocking reference capture. Starting over after
// a completed calibration resets the state machine, unless a session is
// still running. On failure the stage is unchanged and the capture can be
// retried.
func (p *Pipeline) CaptureReference() error {
	p.mu.Lock()
	if p.sess != nil && !p.sess.Ended() {
		p.mu.Unlock()
		return ErrSessionRunning
	}
	if p.calibrator.Stage() == calib.Calibrated {
		log.Println("pipeline: restarting calibration")
		p.calibrator = calib.NewCalibrator(calibConfig(p.cfg))
		p.calibState = nil
	}
	calibrator := p.calibrator
	p.mu.Unlock()

	frames, err := p.captureWindow()
	if err != nil {
		return err
	}
	if err := calibrator.CaptureReference(frames); err != nil {
		return err
	}
	log.Println("pipeline: reference capture complete")
	return nil
}

// CaptureTPose runs the blocking T-pose capture and, on success, installs
// the finished calibration state.
func (p *Pipeline) CaptureTPose() error {
	p.mu.Lock()
	if p.sess != nil && !p.sess.Ended() {
		p.mu.Unlock()
		return ErrSessionRunning
	}
	calibrator := p.calibrator
	p.mu.Unlock()

	frames, err := p.captureWindow()
	if err != nil {
		return err
	}
	state, err := calibrator.CaptureTPose(frames)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.calibState = state
	p.mu.Unlock()
	log.Println("pipeline: t-pose capture complete, calibrated")
	return nil
}

// Stage reports the calibration state machine position.
func (p *Pipeline) Stage() calib.Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calibrator.Stage()
}

// StartSession begins a new monitored run on the current calibration. The
// stream buffers are cleared so the session timeline starts fresh.
func (p *Pipeline) StartSession() (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calibState == nil {
		return nil, ErrNotCalibrated
	}
	if p.sess != nil && !p.sess.Ended() {
		return nil, ErrSessionRunning
	}

	p.hub.Reset()
	p.sess = session.New(p.calibState, p.cfg.RollingBufferSize, p.thresholds)
	p.aligner = align.NewAligner(p.hub.Buffers(), p.alignConfig())
	p.extractor = kinematics.NewExtractor()
	log.Printf("pipeline: session %s started", p.sess.ID)
	return p.sess, nil
}

// EndSession finalizes the active session, publishes the summary and keeps
// it available for the averages view.
func (p *Pipeline) EndSession() (*session.Summary, error) {
	p.mu.Lock()
	sess, extractor := p.sess, p.extractor
	p.aligner = nil
	p.mu.Unlock()

	if sess == nil {
		return nil, ErrNoSession
	}
	summary := sess.End()
	if extractor != nil {
		log.Printf("pipeline: session %s ended: %d frames, %d clamp events, %d front-leg fallbacks",
			sess.ID, summary.TotalFrames, extractor.TotalClampEvents(), extractor.TotalFallbacks())
	}
	p.publishJSON(p.cfg.TopicSummary, summary)
	p.hub.Reset()
	return summary, nil
}

// JointAngles returns the display frame: the latest live frame while the
// session runs, the session averages after it ended.
func (p *Pipeline) JointAngles() (session.Frame, bool) {
	p.mu.Lock()
	sess := p.sess
	p.mu.Unlock()

	if sess == nil {
		return session.Frame{}, false
	}
	if sess.Ended() {
		return session.Average(*sess.End()).OutboundFrame(), true
	}
	return sess.Latest()
}

// Session returns the current session, if any.
func (p *Pipeline) Session() *session.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess
}
