package tapestry

// Heartbeat groups deferred work into nested beats. Work deferred during a
// beat runs, in the order it was deferred, when that beat ends; this lets a
// Label point at a field that renders after it.
type Heartbeat struct {
	beats [][]func()
}

// Begin starts a nested beat.
func (h *Heartbeat) Begin() {
	h.beats = append(h.beats, nil)
}

// Defer queues fn until the current beat ends. With no beat active, fn runs
// immediately.
func (h *Heartbeat) Defer(fn func()) {
	n := len(h.beats)
	if n == 0 {
		fn()
		return
	}
	h.beats[n-1] = append(h.beats[n-1], fn)
}

// End finishes the current beat and runs its deferred work. Work deferred
// while the queue drains joins the same beat. End without Begin does
// nothing.
func (h *Heartbeat) End() {
	n := len(h.beats)
	if n == 0 {
		return
	}
	for i := 0; i < len(h.beats[n-1]); i++ {
		h.beats[n-1][i]()
	}
	h.beats = h.beats[:n-1]
}

// Active reports whether a beat is in progress.
func (h *Heartbeat) Active() bool {
	return len(h.beats) > 0
}
