// Package shutdown powers the system off after a long press of the shutdown button.
package shutdown

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/waypoint-monitor/internal/clock"
	"github.com/sweeney/waypoint-monitor/internal/gpio"
)

// DefaultHoldTime is how long the button must be held to power off.
const DefaultHoldTime = 5 * time.Second

// Halter performs the power-off. Halt must not block on the outcome.
type Halter interface {
	Halt()
}

// HalterFunc adapts a function to Halter.
type HalterFunc func()

// Halt calls f.
func (f HalterFunc) Halt() { f() }

// Watcher measures how long the shutdown button is held and halts the
// system when a press of at least the hold time is released.
//
// The press start is the zero time until the first assertion is seen, so
// a release without an observed press always counts as a long hold.
type Watcher struct {
	threshold time.Duration
	halter    Halter
	clock     clock.Clock
	log       logrus.FieldLogger

	mu        sync.Mutex
	pressedAt time.Time
}

// NewWatcher creates a Watcher.
func NewWatcher(threshold time.Duration, halter Halter, c clock.Clock, log logrus.FieldLogger) *Watcher {
	return &Watcher{
		threshold: threshold,
		halter:    halter,
		clock:     c,
		log:       log,
	}
}

// Start watches line on chip. Read faults are passed to fault.
func (w *Watcher) Start(chip gpio.Chip, line int, fault func(error)) error {
	return chip.Watch(line, func(e gpio.Edge, err error) {
		if err != nil {
			fault(err)
			return
		}
		w.Handle(e.Value)
	})
}

// Handle processes one edge of the shutdown button.
func (w *Watcher) Handle(v gpio.Value) {
	w.mu.Lock()
	now := w.clock.Now()
	if v == gpio.High {
		w.pressedAt = now
		w.mu.Unlock()
		return
	}
	held := now.Sub(w.pressedAt)
	w.mu.Unlock()

	if held < w.threshold {
		w.log.WithField("held", held).Debug("shutdown button released early")
		return
	}
	w.log.WithField("held", held).Infof("shutdown button pressed for at least %v - initiating shutdown", w.threshold)
	w.halter.Halt()
}
