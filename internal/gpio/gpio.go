// Package gpio provides edge-triggered digital inputs and level outputs
// with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Value is the level of a digital line.
type Value int

const (
	// Unknown marks a level that was not observed or is not meaningful.
	Unknown Value = -1
	Low     Value = 0
	High    Value = 1
)

func (v Value) String() string {
	switch v {
	case Low:
		return "LOW"
	case High:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// Edge is a single observed transition on an input line.
type Edge struct {
	Line  int
	Value Value
	Time  time.Time
}

// Handler receives edges for a watched line. A non-nil err reports a
// hardware read fault; the edge is meaningless in that case.
type Handler func(edge Edge, err error)

// Output drives a single output line.
type Output interface {
	// Write sets the output level.
	Write(v Value) error

	// Close releases the line.
	Close() error
}

// Chip gives access to the lines of one GPIO controller.
type Chip interface {
	// Watch requests line as an input and calls handler on every rising
	// and falling edge until the chip is closed.
	Watch(line int, handler Handler) error

	// Read returns the current level of an input line.
	Read(line int) (Value, error)

	// Output requests line as an output, initially low.
	Output(line int) (Output, error)

	// Close releases every requested line and the chip itself.
	Close() error
}

// DefaultChip is the Raspberry Pi header GPIO controller.
const DefaultChip = "gpiochip0"
