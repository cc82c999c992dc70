package align

import (
	"log"
	"math"

	"github.com/relabs-tech/kinematic_computer/internal/imu"
)

// defaultMaxStallSteps is the bounded wait for a lagging required device:
// after this many consecutive Step calls with no frontier progress the
// blocked instants are dropped as gaps instead of freezing the timeline. One
// second at the 30 Hz tick.
const defaultMaxStallSteps = 30

// Aligner is the incremental form of Align used on the live path. It is fed
// from the per-device stream buffers and emits target-rate frames strictly in
// increasing index order, as far as all required devices have coverage. A
// required device that stops reporting stalls the output only for a bounded
// number of steps; past that its blocked instants are dropped as gaps so the
// live feed keeps moving.
//
// The aligner holds no state across sessions: construct a fresh one per
// session.
type Aligner struct {
	cfg     Config
	buffers map[string]*imu.StreamBuffer

	started  bool
	start    float64 // window start: max first-sample time over required devices
	nextSrc  int     // next source-rate instant to compute
	nextOut  int     // next target-rate frame index to emit
	gaps     int
	required []string

	lastFrontier float64
	stall        int // consecutive Steps without frontier progress
}

// NewAligner wires the aligner to the session's stream buffers. Buffers for
// devices named in cfg.RequiredDevices must be present in the map.
func NewAligner(buffers map[string]*imu.StreamBuffer, cfg Config) *Aligner {
	required := cfg.RequiredDevices
	if len(required) == 0 {
		// With no explicit requirement every registered device is required,
		// so the output timeline is anchored to all of them.
		for id := range buffers {
			required = append(required, id)
		}
	}
	return &Aligner{cfg: cfg, buffers: buffers, required: required}
}

// Gaps returns how many source instants were dropped for missing required
// coverage so far.
func (a *Aligner) Gaps() int { return a.gaps }

// Step consumes whatever new samples have arrived and returns all newly
// computable target-rate frames, possibly none. It never blocks; the caller
// drives it from the pipeline tick.
func (a *Aligner) Step() []Frame {
	snapshots := make(map[string][]imu.Sample, len(a.buffers))
	for id, buf := range a.buffers {
		snapshots[id] = buf.Snapshot()
	}

	if !a.started {
		if !a.computeStart(snapshots) {
			return nil
		}
	}

	// The frontier is the newest instant every required device can still
	// bracket; instants beyond it must wait for more data.
	frontier := a.frontier(snapshots)
	if frontier > a.lastFrontier {
		a.lastFrontier = frontier
		a.stall = 0
	} else if a.stall++; a.stall >= a.maxStall() {
		// A required device stopped reporting. Rather than freeze the
		// timeline on it, process up to the newest data any device holds and
		// drop the uncovered instants as gaps.
		if forced := a.newestSample(snapshots); forced > frontier {
			frontier = forced
		}
	}

	frameDur := 1.0 / float64(a.cfg.SourceRateHz)
	var out []Frame
	for {
		srcWanted := a.nextOut * a.cfg.StrideNum / a.cfg.StrideDen
		// Skip over decimated-away instants without interpolating them.
		if srcWanted > a.nextSrc {
			a.nextSrc = srcWanted
		}
		t := a.start + float64(a.nextSrc)*frameDur
		if t > frontier {
			break
		}

		perDevice := make(map[string]Measurement, len(snapshots))
		missing := false
		for id, samples := range snapshots {
			m, ok := interpolateAt(t, samples)
			if !ok {
				if a.isRequired(id) {
					missing = true
					break
				}
				continue
			}
			perDevice[id] = m
		}

		if missing || len(perDevice) == 0 {
			a.gaps++
			if a.gaps%30 == 1 {
				log.Printf("align: gap at instant %d (t=%.3f), frame dropped (%d gaps total)", a.nextSrc, t, a.gaps)
			}
		} else {
			out = append(out, Frame{Index: a.nextOut, Seconds: t, PerDevice: perDevice})
		}
		a.nextSrc++
		a.nextOut++
	}

	// Bound buffer growth: everything older than the last consumed instant
	// can go, keeping one bracketing sample.
	if a.started && a.nextSrc > 0 {
		consumed := a.start + float64(a.nextSrc-1)*frameDur
		for _, buf := range a.buffers {
			buf.DiscardBefore(consumed)
		}
	}
	return out
}

func (a *Aligner) computeStart(snapshots map[string][]imu.Sample) bool {
	start := 0.0
	for _, id := range a.required {
		samples := snapshots[id]
		if len(samples) < 2 {
			return false
		}
		if first := samples[0].Seconds(); first > start {
			start = first
		}
	}
	a.start = start
	a.started = true
	return true
}

func (a *Aligner) frontier(snapshots map[string][]imu.Sample) float64 {
	frontier := 0.0
	for i, id := range a.required {
		samples := snapshots[id]
		if len(samples) == 0 {
			return a.start - 1 // nothing computable
		}
		last := samples[len(samples)-1].Seconds()
		if i == 0 || last < frontier {
			frontier = last
		}
	}
	return frontier
}

func (a *Aligner) maxStall() int {
	if a.cfg.MaxStallSteps > 0 {
		return a.cfg.MaxStallSteps
	}
	return defaultMaxStallSteps
}

// newestSample returns the newest timestamp over every device with coverage,
// required or not.
func (a *Aligner) newestSample(snapshots map[string][]imu.Sample) float64 {
	newest := math.Inf(-1)
	for _, samples := range snapshots {
		if len(samples) == 0 {
			continue
		}
		if last := samples[len(samples)-1].Seconds(); last > newest {
			newest = last
		}
	}
	return newest
}

func (a *Aligner) isRequired(id string) bool {
	for _, r := range a.required {
		if r == id {
			return true
		}
	}
	return false
}
