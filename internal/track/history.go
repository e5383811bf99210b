// Package track keeps bounded per-entity sample histories.
package track

// DefaultCapacity bounds a history when no capacity is given.
const DefaultCapacity = 200

// History is a fixed-capacity ring of samples in time order. Once full,
// appending drops the oldest sample. It is not safe for concurrent use.
type History[T any] struct {
	buf   []T
	start int
	n     int
}

// NewHistory returns an empty history holding at most capacity samples.
func NewHistory[T any](capacity int) *History[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History[T]{buf: make([]T, capacity)}
}

// Append adds the newest sample.
func (h *History[T]) Append(v T) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = v
		h.n++
		return
	}
	h.buf[h.start] = v
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of samples held.
func (h *History[T]) Len() int {
	return h.n
}

// Cap returns the capacity.
func (h *History[T]) Cap() int {
	return len(h.buf)
}

// At returns the i-th sample, oldest first.
func (h *History[T]) At(i int) T {
	return h.buf[(h.start+i)%len(h.buf)]
}

// Last returns the newest sample and false when empty.
func (h *History[T]) Last() (T, bool) {
	if h.n == 0 {
		var zero T
		return zero, false
	}
	return h.At(h.n - 1), true
}

// Tail copies the newest n samples, oldest first. It returns fewer when
// the history is shorter.
func (h *History[T]) Tail(n int) []T {
	if n > h.n {
		n = h.n
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = h.At(h.n - n + i)
	}
	return out
}

// Clear drops every sample.
func (h *History[T]) Clear() {
	h.start = 0
	h.n = 0
}
