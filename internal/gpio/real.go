//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// RealChip drives lines of an actual GPIO controller through the Linux GPIO character device.
type RealChip struct {
	mu      sync.Mutex
	chip    *gpiocdev.Chip
	inputs  map[int]*gpiocdev.Line
	outputs []*realOutput
}

// NewRealChip opens the named GPIO chip, e.g. "gpiochip0".
func NewRealChip(name string) (*RealChip, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open gpio chip %s", name)
	}
	return &RealChip{
		chip:   chip,
		inputs: make(map[int]*gpiocdev.Line),
	}, nil
}

// Watch requests line as a pulled-down input reporting both edges.
// Gaps in the kernel's per-line sequence numbers mean edges were lost,
// which is reported to handler as a read fault.
func (r *RealChip) Watch(line int, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.inputs[line]; ok {
		return errors.Errorf("line %d already watched", line)
	}

	var lastSeq uint32
	onEvent := func(evt gpiocdev.LineEvent) {
		if evt.LineSeqno != 0 && lastSeq != 0 && evt.LineSeqno != lastSeq+1 {
			err := errors.Errorf("line %d: lost %d edge events", evt.Offset, evt.LineSeqno-lastSeq-1)
			lastSeq = evt.LineSeqno
			handler(Edge{Line: evt.Offset, Value: Unknown}, err)
			return
		}
		lastSeq = evt.LineSeqno

		var v Value
		switch evt.Type {
		case gpiocdev.LineEventRisingEdge:
			v = High
		case gpiocdev.LineEventFallingEdge:
			v = Low
		default:
			handler(Edge{Line: evt.Offset, Value: Unknown}, errors.Errorf("line %d: unexpected event type %d", evt.Offset, evt.Type))
			return
		}
		handler(Edge{Line: evt.Offset, Value: v, Time: time.Now()}, nil)
	}

	l, err := r.chip.RequestLine(line,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(onEvent))
	if err != nil {
		return errors.Wrapf(err, "request input line %d", line)
	}
	r.inputs[line] = l
	return nil
}

// Read returns the current level of line. Lines not already watched are
// requested as inputs for the duration of the read.
func (r *RealChip) Read(line int) (Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.inputs[line]
	if !ok {
		tmp, err := r.chip.RequestLine(line, gpiocdev.AsInput, gpiocdev.WithPullDown)
		if err != nil {
			return Unknown, errors.Wrapf(err, "request line %d", line)
		}
		defer tmp.Close()
		l = tmp
	}

	raw, err := l.Value()
	if err != nil {
		return Unknown, errors.Wrapf(err, "read line %d", line)
	}
	if raw != 0 {
		return High, nil
	}
	return Low, nil
}

// Output requests line as an output driven low.
func (r *RealChip) Output(line int) (Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.chip.RequestLine(line, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, errors.Wrapf(err, "request output line %d", line)
	}
	out := &realOutput{line: l, offset: line}
	r.outputs = append(r.outputs, out)
	return out, nil
}

// Close releases GPIO resources.
// Input lines are reconfigured to input with pull-down (matching Pi boot
// defaults) before closing so external hardware sees a clean state on reboot.
func (r *RealChip) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for offset, l := range r.inputs {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, errors.Wrapf(err, "reconfigure line %d", offset))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "close line %d", offset))
		}
	}
	r.inputs = make(map[int]*gpiocdev.Line)

	for _, out := range r.outputs {
		if err := out.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.outputs = nil

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close chip"))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

type realOutput struct {
	mu     sync.Mutex
	line   *gpiocdev.Line
	offset int
}

func (o *realOutput) Write(v Value) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.line == nil {
		return errors.Errorf("write line %d: closed", o.offset)
	}
	raw := 0
	if v == High {
		raw = 1
	}
	if err := o.line.SetValue(raw); err != nil {
		return errors.Wrapf(err, "write line %d", o.offset)
	}
	return nil
}

func (o *realOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.line == nil {
		return nil
	}
	err := o.line.Close()
	o.line = nil
	if err != nil {
		return errors.Wrapf(err, "close line %d", o.offset)
	}
	return nil
}
