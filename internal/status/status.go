// Package status provides a thread-safe status tracker for the waypoint monitor.
// It is read by the HTTP handler and by MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/waypoint-monitor/internal/gpio"
	"github.com/sweeney/waypoint-monitor/internal/notify"
)

// Transition classifies what happened to an observed input edge.
type Transition int

const (
	// TransitionAccepted edges became notification events.
	TransitionAccepted Transition = iota
	// TransitionSuppressed edges matched the policy but were inside the debounce window.
	TransitionSuppressed
	// TransitionIgnored edges did not match the input's policy.
	TransitionIgnored
)

// NetworkInfo contains network state as published by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Inputs          int
	DebounceEnabled bool
	DebounceMs      int64
	RemoteBaseURL   string
	Broker          string
	HTTPAddr        string
}

// Counts tracks edges and notifications since startup.
type Counts struct {
	Accepted   int
	Suppressed int
	Ignored    int
	Dispatched int
	Failed     int
}

// Guard is the debounce slot as last observed.
type Guard struct {
	Line  int
	Value gpio.Value
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Ready         bool
	Counts        Counts
	LastEventLine int
	LastEventTime time.Time
	LastOrderID   string
	LastError     string
	Guard         *Guard
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetReady marks whether inputs are being watched.
func (t *Tracker) SetReady(ready bool) {
	t.mu.Lock()
	t.snap.Ready = ready
	t.mu.Unlock()
}

// RecordTransition counts one observed edge.
func (t *Tracker) RecordTransition(line int, kind Transition, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch kind {
	case TransitionAccepted:
		t.snap.Counts.Accepted++
		t.snap.LastEventLine = line
		t.snap.LastEventTime = at
	case TransitionSuppressed:
		t.snap.Counts.Suppressed++
	case TransitionIgnored:
		t.snap.Counts.Ignored++
	}
}

// SetGuard records the debounce slot. ok=false means the slot is empty.
func (t *Tracker) SetGuard(line int, value gpio.Value, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !ok {
		t.snap.Guard = nil
		return
	}
	t.snap.Guard = &Guard{Line: line, Value: value}
}

// RecordOutcome counts a settled notification.
func (t *Tracker) RecordOutcome(o notify.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if o.Err != nil {
		t.snap.Counts.Failed++
		t.snap.LastError = o.Err.Error()
		return
	}
	t.snap.Counts.Dispatched++
	t.snap.LastOrderID = o.OrderID
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Guard != nil {
		g := *s.Guard
		s.Guard = &g
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
