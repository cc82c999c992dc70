package imu

import (
	"sync"
)

// StreamBuffer is the ordered, append-only buffer of raw samples for one
// device. Ingestion goroutines append concurrently with alignment reads.
//
// Out-of-order samples are accepted only if newer than the last buffered
// timestamp; anything else is discarded as stale and counted.
type StreamBuffer struct {
	mu       sync.Mutex
	deviceID string
	samples  []Sample
	lastNano int64
	stale    int
}

// NewStreamBuffer creates an empty buffer for the given device.
func NewStreamBuffer(deviceID string) *StreamBuffer {
	return &StreamBuffer{deviceID: deviceID, lastNano: -1}
}

// DeviceID returns the device this buffer belongs to.
func (b *StreamBuffer) DeviceID() string { return b.deviceID }

// Append adds a sample to the buffer. It returns false if the sample is
// stale (timestamp not newer than the last buffered one) or belongs to a
// different device.
func (b *StreamBuffer) Append(s Sample) bool {
	if s.DeviceID != b.deviceID {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.TimestampNanos <= b.lastNano {
		b.stale++
		return false
	}
	b.samples = append(b.samples, s)
	b.lastNano = s.TimestampNanos
	return true
}

// Len returns the number of buffered samples.
func (b *StreamBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// StaleCount returns how many stale samples were discarded so far.
func (b *StreamBuffer) StaleCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stale
}

// Snapshot returns a copy of the buffered samples in timestamp order.
func (b *StreamBuffer) Snapshot() []Sample {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Sample, len(b.samples))
	copy(out, b.samples)
	return out
}

// Latest returns the newest buffered sample, if any.
func (b *StreamBuffer) Latest() (Sample, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.samples) == 0 {
		return Sample{}, false
	}
	return b.samples[len(b.samples)-1], true
}

// DiscardBefore drops all samples strictly older than the given timestamp
// in seconds, keeping one sample at or before it so interpolation across the
// boundary stays possible.
func (b *StreamBuffer) DiscardBefore(seconds float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cut := 0
	for i, s := range b.samples {
		if s.Seconds() <= seconds {
			cut = i
		} else {
			break
		}
	}
	if cut > 0 {
		b.samples = append(b.samples[:0], b.samples[cut:]...)
	}
}

// Reset drops all buffered samples and counters. Called when a session ends
// so no stale data leaks into the next one.
func (b *StreamBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = nil
	b.lastNano = -1
	b.stale = 0
}
