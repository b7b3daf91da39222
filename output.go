package taski

import "sync"

// defaultOutputTailLimit bounds how many lines each task's ring buffer
// keeps; Read with limit <= 0 returns up to this many.
const defaultOutputTailLimit = 200

// OutputHub is the collaborator interface of spec.md §6.3: it routes
// captured output lines to a per-task ring buffer so a renderer (or a
// post-mortem failure report) can display the most recent lines for a
// task. taski itself never writes to it; Append is exposed for a task
// body (or a caller wrapping one) to record output explicitly, since the
// core has no opinion on *how* stdout/stderr gets intercepted — process
// -wide redirection is the out-of-scope renderer's job (spec.md §1).
type OutputHub struct {
	mu     sync.Mutex
	active bool
	limit  int
	lines  map[string][]string
}

func newOutputHub() *OutputHub {
	return &OutputHub{limit: defaultOutputTailLimit, lines: make(map[string][]string)}
}

// SetupCapture activates the hub. Safe to call more than once.
func (h *OutputHub) SetupCapture() {
	h.mu.Lock()
	h.active = true
	h.mu.Unlock()
}

// TeardownCapture deactivates the hub; buffered lines are retained for
// post-mortem reads but Append becomes a no-op.
func (h *OutputHub) TeardownCapture() {
	h.mu.Lock()
	h.active = false
	h.mu.Unlock()
}

// Active reports whether the hub is currently accepting output.
func (h *OutputHub) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Append records one output line for task. A no-op when capture is
// inactive.
func (h *OutputHub) Append(task, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.active {
		return
	}
	buf := append(h.lines[task], line)
	if len(buf) > h.limit {
		buf = buf[len(buf)-h.limit:]
	}
	h.lines[task] = buf
}

// Read returns the most recent lines captured for task, newest last.
// limit <= 0 means "use the hub's configured default".
func (h *OutputHub) Read(task string, limit int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf := h.lines[task]
	if limit <= 0 || limit >= len(buf) {
		out := make([]string, len(buf))
		copy(out, buf)
		return out
	}
	out := make([]string, limit)
	copy(out, buf[len(buf)-limit:])
	return out
}

// tail is a best-effort helper used when attaching output to a
// TaskFailure: it always returns a slice, empty when capture was never
// installed (spec.md §9: "always safe to attach an empty list").
func (h *OutputHub) tail(task string) []string {
	if h == nil || !h.Active() {
		return []string{}
	}
	lines := h.Read(task, 0)
	if lines == nil {
		return []string{}
	}
	return lines
}
