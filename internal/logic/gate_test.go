package logic

import (
	"testing"
	"time"

	"github.com/sweeney/waypoint-monitor/internal/clock"
	"github.com/sweeney/waypoint-monitor/internal/gpio"
)

func newTestGate(t *testing.T, enabled bool, timeout time.Duration) (*Gate, *clock.Fake) {
	t.Helper()
	c := clock.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	return NewGate(enabled, timeout, c), c
}

func TestGateEmptyAcceptsEverything(t *testing.T) {
	g, _ := newTestGate(t, true, 5*time.Second)

	for _, v := range []gpio.Value{gpio.High, gpio.Low, gpio.Unknown} {
		if !g.Accept(24, v) {
			t.Errorf("empty gate rejected (24, %s)", v)
		}
	}
	if _, _, ok := g.Guard(); ok {
		t.Error("new gate should have an empty slot")
	}
}

func TestGateAcceptRules(t *testing.T) {
	tests := []struct {
		name  string
		line  int
		value gpio.Value
		want  bool
	}{
		{"same line unknown value", 24, gpio.Unknown, false},
		{"same line same value", 24, gpio.High, false},
		{"same line different value", 24, gpio.Low, true},
		{"different line unknown value", 23, gpio.Unknown, true},
		{"different line same value", 23, gpio.High, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGate(t, true, 5*time.Second)
			g.Update(24, gpio.High)
			if got := g.Accept(tt.line, tt.value); got != tt.want {
				t.Errorf("Accept(%d, %s): got %v, want %v", tt.line, tt.value, got, tt.want)
			}
		})
	}
}

func TestGateExpiry(t *testing.T) {
	g, c := newTestGate(t, true, 5*time.Second)

	g.Update(24, gpio.High)
	c.Advance(4999 * time.Millisecond)
	if g.Accept(24, gpio.Unknown) {
		t.Error("slot should still guard line 24 before timeout")
	}

	c.Advance(time.Millisecond)
	if !g.Accept(24, gpio.Unknown) {
		t.Error("slot should be empty after timeout")
	}
	if _, _, ok := g.Guard(); ok {
		t.Error("Guard should report an empty slot after timeout")
	}
}

func TestGateUpdateRestartsWindow(t *testing.T) {
	g, c := newTestGate(t, true, 5*time.Second)

	g.Update(24, gpio.High)
	c.Advance(3 * time.Second)
	g.Update(24, gpio.Low)
	c.Advance(3 * time.Second)

	line, value, ok := g.Guard()
	if !ok || line != 24 || value != gpio.Low {
		t.Errorf("Guard: got (%d, %s, %v), want (24, LOW, true)", line, value, ok)
	}
	if c.Pending() != 1 {
		t.Errorf("pending timers: got %d, want 1", c.Pending())
	}

	c.Advance(2 * time.Second)
	if _, _, ok := g.Guard(); ok {
		t.Error("slot should expire 5s after the last update")
	}
}

func TestGateSingleSlotAcrossLines(t *testing.T) {
	g, _ := newTestGate(t, true, 5*time.Second)

	g.Update(24, gpio.High)
	g.Update(23, gpio.High)

	// Line 24 no longer owns the slot, so it passes again.
	if !g.Accept(24, gpio.Unknown) {
		t.Error("line 24 should pass once another line took the slot")
	}
	if g.Accept(23, gpio.Unknown) {
		t.Error("line 23 should be suppressed while it owns the slot")
	}
}

func TestGateDisabled(t *testing.T) {
	g, c := newTestGate(t, false, 5*time.Second)

	g.Update(24, gpio.High)
	if !g.Accept(24, gpio.Unknown) {
		t.Error("disabled gate should accept everything")
	}
	if _, _, ok := g.Guard(); ok {
		t.Error("disabled gate should never hold the slot")
	}
	if c.Pending() != 0 {
		t.Errorf("disabled gate scheduled %d timers", c.Pending())
	}
}

func TestGateStop(t *testing.T) {
	g, c := newTestGate(t, true, 5*time.Second)

	g.Update(24, gpio.High)
	g.Stop()
	if c.Pending() != 0 {
		t.Errorf("pending timers after Stop: got %d, want 0", c.Pending())
	}
	c.Advance(10 * time.Second)
	if _, _, ok := g.Guard(); !ok {
		t.Error("Stop should cancel expiry, not clear the slot")
	}
}

func TestGateObserve(t *testing.T) {
	g, c := newTestGate(t, true, 5*time.Second)

	type change struct {
		line  int
		value gpio.Value
		ok    bool
	}
	var got []change
	g.Observe(func(line int, value gpio.Value, ok bool) {
		got = append(got, change{line, value, ok})
	})

	g.Update(24, gpio.High)
	g.Update(23, gpio.Low)
	c.Advance(5 * time.Second)

	want := []change{{24, gpio.High, true}, {23, gpio.Low, true}, {-1, gpio.Unknown, false}}
	if len(got) != len(want) {
		t.Fatalf("expected %d changes, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("change %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}
