package session

// Ring is the bounded buffer of the most recent outbound frames, kept for
// live visualization only. Insertion drops the oldest entry on overflow in
// O(1); session statistics never read from it.
type Ring struct {
	frames []Frame
	head   int
	full   bool
}

// NewRing creates a ring holding at most capacity frames.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{frames: make([]Frame, capacity)}
}

// Push inserts a frame, evicting the oldest when full.
func (r *Ring) Push(f Frame) {
	r.frames[r.head] = f
	r.head++
	if r.head == len(r.frames) {
		r.head = 0
		r.full = true
	}
}

// Len returns the number of buffered frames.
func (r *Ring) Len() int {
	if r.full {
		return len(r.frames)
	}
	return r.head
}

// Latest returns the most recently pushed frame.
func (r *Ring) Latest() (Frame, bool) {
	if r.Len() == 0 {
		return Frame{}, false
	}
	i := r.head - 1
	if i < 0 {
		i = len(r.frames) - 1
	}
	return r.frames[i], true
}

// Snapshot returns the buffered frames oldest-first.
func (r *Ring) Snapshot() []Frame {
	n := r.Len()
	out := make([]Frame, 0, n)
	if r.full {
		out = append(out, r.frames[r.head:]...)
	}
	out = append(out, r.frames[:r.head]...)
	return out
}
