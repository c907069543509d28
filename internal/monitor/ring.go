package monitor

// ring is a bounded FIFO sample buffer; pushing past capacity drops the
// oldest sample first.
type ring[T any] struct {
	buf []T
	cap int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{cap: capacity}
}

func (r *ring[T]) push(v T) {
	r.buf = append(r.buf, v)
	if len(r.buf) > r.cap {
		r.buf = r.buf[len(r.buf)-r.cap:]
	}
}

func (r *ring[T]) len() int { return len(r.buf) }

// tail returns up to n most recent samples, oldest first.
func (r *ring[T]) tail(n int) []T {
	if n >= len(r.buf) {
		return r.buf
	}
	return r.buf[len(r.buf)-n:]
}
