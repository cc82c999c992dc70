package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/kinematic_computer/internal/calib"
	"github.com/relabs-tech/kinematic_computer/internal/kinematics"
)

// RollingBufferSize is the default bound on the live display buffer.
const RollingBufferSize = 300

// Session is one continuous monitored run: it owns the calibration state,
// the rolling live buffer and the running aggregator, and is passed
// explicitly through the pipeline. All mutable state is guarded by a single
// mutex; aggregation happens one frame at a time.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time

	mu          sync.Mutex
	calibration *calib.State
	ring        *Ring
	agg         *Aggregator
	thresholds  Thresholds
	summary     *Summary
}

// New starts a session around an immutable calibration state.
func New(calibration *calib.State, bufferSize int, thresholds Thresholds) *Session {
	if bufferSize <= 0 {
		bufferSize = RollingBufferSize
	}
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	return &Session{
		ID:          uuid.New(),
		StartedAt:   time.Now(),
		calibration: calibration,
		ring:        NewRing(bufferSize),
		agg:         NewAggregator(),
		thresholds:  thresholds,
	}
}

// Calibration returns the session's immutable calibration state. Safe to
// share across frame-processing work.
func (s *Session) Calibration() *calib.State { return s.calibration }

// Ended reports whether the session has been finalized.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary != nil
}

// Observe folds one frame of extracted metrics into the session and returns
// the outbound live frame. Frames observed after the session ended are
// converted but not aggregated.
func (s *Session) Observe(m kinematics.Metrics) Frame {
	frame := Live(m).OutboundFrame()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		s.agg.Add(m)
		s.ring.Push(frame)
	}
	return frame
}

// Latest returns the most recent live frame, if any.
func (s *Session) Latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.Latest()
}

// Recent returns the buffered live frames oldest-first.
func (s *Session) Recent() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.Snapshot()
}

// Classify runs the frame's headline metrics through the threshold bands
// and returns one feedback entry per metric.
func (s *Session) Classify(f Frame) []Feedback {
	s.mu.Lock()
	t := s.thresholds
	s.mu.Unlock()
	return []Feedback{
		t.Classify("frontKnee", f.FrontKnee.Angle),
		t.Classify("kneeSymmetry", float64(f.Knee.Symmetry)),
		t.Classify("elbowSymmetry", float64(f.Elbow.Symmetry)),
		t.Classify("headTilt", f.BackToHead.Angle),
		t.Classify("spineCurvature", f.BackToHead.SpineCurvature),
	}
}

// End finalizes the session and returns the immutable summary. Idempotent:
// ending twice returns the same summary. Whatever was aggregated so far is
// kept; per-frame state beyond the rolling buffer is already discarded.
func (s *Session) End() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		s.summary = s.agg.Finalize(time.Now())
	}
	return s.summary
}
