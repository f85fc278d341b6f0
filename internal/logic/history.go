package logic

// history is an append-only series read most-recent-first.
type history[T any] struct {
	values []T
}

func (h *history[T]) push(v T) {
	h.values = append(h.values, v)
}

func (h *history[T]) len() int {
	return len(h.values)
}

// at returns the value recorded offset periods ago; offset 0 is the latest.
func (h *history[T]) at(offset int) (T, bool) {
	var zero T
	if offset < 0 || offset >= len(h.values) {
		return zero, false
	}
	return h.values[len(h.values)-1-offset], true
}

// latest returns the most recent value or the zero value when empty.
func (h *history[T]) latest() T {
	v, _ := h.at(0)
	return v
}

func (h *history[T]) all() []T {
	return h.values
}
