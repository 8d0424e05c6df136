// Package progress carries fire-and-forget progress notifications on a 0-100 scale.
package progress

import "sync"

// Sink receives progress reports. Report must not block.
type Sink interface {
	Report(percent int)
}

// Func adapts an ordinary function to a Sink.
type Func func(percent int)

// Report calls f(percent).
func (f Func) Report(percent int) {
	f(percent)
}

type discard struct{}

func (discard) Report(int) {}

// Discard drops every report.
var Discard Sink = discard{}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// Monotonic forwards a report only when it is larger than every previous one.
type Monotonic struct {
	mu   sync.Mutex
	next Sink
	last int
}

// NewMonotonic wraps next.
func NewMonotonic(next Sink) *Monotonic {
	return &Monotonic{next: OrDiscard(next), last: -1}
}

// Report implements Sink.
func (m *Monotonic) Report(percent int) {
	m.mu.Lock()
	if percent <= m.last {
		m.mu.Unlock()
		return
	}
	m.last = percent
	m.mu.Unlock()
	m.next.Report(percent)
}

// Value is the last forwarded percentage, or -1.
func (m *Monotonic) Value() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Scaled maps fractions in [0,1] onto the range [lo,hi] of the wrapped sink.
type Scaled struct {
	Sink   Sink
	Lo, Hi int
}

// Fraction reports f, clamped to [0,1].
func (s Scaled) Fraction(f float64) {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	OrDiscard(s.Sink).Report(s.Lo + int(f*float64(s.Hi-s.Lo)))
}
