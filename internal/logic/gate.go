package logic

import (
	"sync"
	"time"

	"github.com/sweeney/waypoint-monitor/internal/clock"
	"github.com/sweeney/waypoint-monitor/internal/gpio"
)

// noLine marks an empty suppression slot.
const noLine = -1

// Gate is the debounce gate: a single suppression slot shared by every input.
// At most one suppression window is active at a time; each Update overwrites
// the slot and restarts its expiry timer.
type Gate struct {
	enabled bool
	timeout time.Duration
	clock   clock.Clock

	mu      sync.Mutex
	line    int
	value   gpio.Value
	timer   clock.Timer
	gen     uint64
	observe func(line int, value gpio.Value, ok bool)
}

// NewGate creates a Gate. A disabled gate accepts everything and ignores updates.
func NewGate(enabled bool, timeout time.Duration, c clock.Clock) *Gate {
	return &Gate{
		enabled: enabled,
		timeout: timeout,
		clock:   c,
		line:    noLine,
		value:   gpio.Unknown,
	}
}

// Accept reports whether a transition on line counts as a new event.
// It does if the slot guards a different line, or if value is known and
// differs from the guarded value.
func (g *Gate) Accept(line int, value gpio.Value) bool {
	if !g.enabled {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return line != g.line || (value != g.value && value != gpio.Unknown)
}

// Update makes (line, value) the guarded pair and rearms the expiry timer.
func (g *Gate) Update(line int, value gpio.Value) {
	if !g.enabled {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.line = line
	g.value = value
	g.gen++
	gen := g.gen
	g.timer = g.clock.AfterFunc(g.timeout, func() { g.expire(gen) })
	g.notify()
}

// Observe registers f to be called, with the gate locked, whenever the slot
// is set or cleared. f must not call back into the gate.
func (g *Gate) Observe(f func(line int, value gpio.Value, ok bool)) {
	g.mu.Lock()
	g.observe = f
	g.mu.Unlock()
}

// Guard returns the guarded pair. ok is false when the slot is empty.
func (g *Gate) Guard() (line int, value gpio.Value, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.line, g.value, g.line != noLine
}

// Stop cancels the pending expiry timer. The slot keeps its contents.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.gen++
}

// expire clears the slot unless a later Update has replaced the timer.
func (g *Gate) expire(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen {
		return
	}
	g.line = noLine
	g.value = gpio.Unknown
	g.timer = nil
	g.notify()
}

func (g *Gate) notify() {
	if g.observe != nil {
		g.observe(g.line, g.value, g.line != noLine)
	}
}
