// Package monitor watches the configured waypoint inputs and turns qualifying
// transitions into tracking notifications.
package monitor

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/waypoint-monitor/internal/clock"
	"github.com/sweeney/waypoint-monitor/internal/gpio"
	"github.com/sweeney/waypoint-monitor/internal/logic"
	"github.com/sweeney/waypoint-monitor/internal/notify"
	"github.com/sweeney/waypoint-monitor/internal/status"
)

// Flasher gives visual feedback for an accepted event.
type Flasher interface {
	Flash()
}

// Enqueuer accepts events for remote notification. Enqueue must not block.
type Enqueuer interface {
	Enqueue(ev notify.Event)
}

// Monitor is the input monitor. Every edge is classified against its input's
// policy and checked against the debounce gate; accepted edges flash the
// activity LED and are handed to the dispatcher. The gate is refreshed with
// every edge, matching or not.
type Monitor struct {
	gate     *logic.Gate
	flasher  Flasher
	dispatch Enqueuer
	clock    clock.Clock
	log      logrus.FieldLogger
	tracker  *status.Tracker

	// mu makes each edge's classify, accept, flash, enqueue and update
	// one step with respect to edges on other lines.
	mu      sync.Mutex
	stopped bool
}

// New creates a Monitor.
func New(gate *logic.Gate, flasher Flasher, dispatch Enqueuer, c clock.Clock, log logrus.FieldLogger) *Monitor {
	return &Monitor{
		gate:     gate,
		flasher:  flasher,
		dispatch: dispatch,
		clock:    c,
		log:      log,
	}
}

// SetTracker records transitions and the gate slot in t. Must be called
// before Start.
func (m *Monitor) SetTracker(t *status.Tracker) {
	m.tracker = t
	m.gate.Observe(t.SetGuard)
}

// Start registers an edge watch for every input. Read faults are logged and
// passed to fault. If a watch cannot be registered Start returns the error;
// watches already registered stay active until the chip is closed.
func (m *Monitor) Start(chip gpio.Chip, inputs []logic.InputConfig, fault func(error)) error {
	for _, in := range inputs {
		err := chip.Watch(in.Line, func(e gpio.Edge, err error) {
			if err != nil {
				m.log.WithError(err).WithField("line", in.Line).Error("input read failed")
				fault(err)
				return
			}
			m.Handle(in, e.Value)
		})
		if err != nil {
			return err
		}
		m.log.WithFields(logrus.Fields{
			"line":    in.Line,
			"policy":  in.Policy,
			"payload": in.Payload,
		}).Debug("watching input")
	}
	if m.tracker != nil {
		m.tracker.SetReady(true)
	}
	return nil
}

// Stop detaches the monitor: edges delivered after Stop returns are
// dropped without touching the gate, the flasher or the dispatcher.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

// Handle processes one observed value on input.
func (m *Monitor) Handle(input logic.InputConfig, value gpio.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	now := m.clock.Now()
	triggered, gateValue := logic.Classify(input.Policy, value)

	kind := status.TransitionIgnored
	if triggered {
		kind = status.TransitionSuppressed
		if m.gate.Accept(input.Line, gateValue) {
			kind = status.TransitionAccepted
			ev := notify.NewEvent(input, value, now)
			m.log.WithFields(logrus.Fields{
				"line":     input.Line,
				"payload":  input.Payload,
				"event_id": ev.ID,
			}).Infof("GPIO %d changed to %s", input.Line, value)
			m.flasher.Flash()
			m.dispatch.Enqueue(ev)
		} else {
			m.log.WithFields(logrus.Fields{"line": input.Line, "value": value}).Debug("transition suppressed by debounce")
		}
	}
	m.gate.Update(input.Line, value)

	if m.tracker != nil {
		m.tracker.RecordTransition(input.Line, kind, now)
	}
}
