package offset

// DefaultWindowSize is the number of samples averaged when no size is configured.
const DefaultWindowSize = 64

// Window is a bounded FIFO of offset samples with a running sum.
// It is not safe for concurrent use; the slave owns it exclusively.
type Window struct {
	// samples is a ring buffer holding at most capacity offsets.
	samples []TimeOffset
	// head is the index of the oldest sample.
	head int
	// size is the number of samples currently stored.
	size int
	// sum is the sign-aware total of the stored samples.
	sum TimeOffset
}

// NewWindow creates an empty window. Capacities below one fall back to
// DefaultWindowSize.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = DefaultWindowSize
	}

	return &Window{
		samples: make([]TimeOffset, capacity),
	}
}

// Push appends a sample, evicting the oldest one when the window is full.
func (w *Window) Push(sample TimeOffset) {
	if w.size == len(w.samples) {
		w.sum = w.sum.Sub(w.samples[w.head])
		w.samples[w.head] = sample
		w.head = (w.head + 1) % len(w.samples)
	} else {
		w.samples[(w.head+w.size)%len(w.samples)] = sample
		w.size++
	}

	w.sum = w.sum.Add(sample)
}

// Len returns the number of stored samples.
func (w *Window) Len() int {
	return w.size
}

// Cap returns the maximum number of samples.
func (w *Window) Cap() int {
	return len(w.samples)
}

// Mean returns the arithmetic mean of the stored samples, or Zero when empty.
func (w *Window) Mean() TimeOffset {
	if w.size == 0 {
		return Zero
	}

	return w.sum.Div(w.size)
}
