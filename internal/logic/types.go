// Package logic contains the event-coordination rules for waypoint inputs.
// This package has NO hardware or network dependencies.
// Time is always injectable via clock.Clock.
package logic

import "github.com/sweeney/waypoint-monitor/internal/gpio"

// Policy selects which transitions of an input count as events.
type Policy string

const (
	PolicyHigh Policy = "HIGH"
	PolicyLow  Policy = "LOW"
	PolicyAny  Policy = "ANY"
)

// ParsePolicy maps a configured notifyState to a Policy.
// Only the exact strings HIGH and LOW select a level; anything else,
// including empty or lower case, is ANY.
func ParsePolicy(s string) Policy {
	switch Policy(s) {
	case PolicyHigh:
		return PolicyHigh
	case PolicyLow:
		return PolicyLow
	default:
		return PolicyAny
	}
}

// InputConfig describes one watched waypoint input. Immutable after startup.
type InputConfig struct {
	Line    int
	Policy  Policy
	Payload map[string]any
}

// Classify decides whether value is an event under policy, and which value
// the debounce gate should be consulted with.
//
// HIGH and LOW consult the gate with Unknown, so only a change of line
// passes the gate while the slot is held. ANY passes the observed value,
// so a change of level on the same line also passes.
func Classify(policy Policy, value gpio.Value) (triggered bool, gateValue gpio.Value) {
	switch policy {
	case PolicyHigh:
		return value == gpio.High, gpio.Unknown
	case PolicyLow:
		return value == gpio.Low, gpio.Unknown
	default:
		return true, value
	}
}
