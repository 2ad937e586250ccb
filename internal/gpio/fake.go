package gpio

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// FakeChip is a test double that delivers scripted edges and records output writes.
type FakeChip struct {
	mu       sync.Mutex
	handlers map[int]Handler
	outputs  map[int]*FakeOutput

	// Levels holds the values returned by Read, keyed by line.
	Levels map[int]Value

	// Now stamps emitted edges and output writes. Defaults to time.Now.
	Now func() time.Time

	// WatchError, if set, will be returned by Watch.
	WatchError error

	// ReadError, if set, will be returned by Read.
	ReadError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeChip creates an empty FakeChip.
func NewFakeChip() *FakeChip {
	return &FakeChip{
		handlers: make(map[int]Handler),
		outputs:  make(map[int]*FakeOutput),
		Levels:   make(map[int]Value),
	}
}

// Watch registers handler for line.
func (f *FakeChip) Watch(line int, handler Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WatchError != nil {
		return f.WatchError
	}
	if _, ok := f.handlers[line]; ok {
		return fmt.Errorf("line %d already watched", line)
	}
	f.handlers[line] = handler
	return nil
}

// Emit synchronously delivers an edge on line and records the new level.
// Returns false if the line is not watched.
func (f *FakeChip) Emit(line int, v Value) bool {
	f.mu.Lock()
	h, ok := f.handlers[line]
	f.Levels[line] = v
	now := f.now()
	f.mu.Unlock()
	if !ok {
		return false
	}
	h(Edge{Line: line, Value: v, Time: now}, nil)
	return true
}

// Fail delivers a read fault on line.
// Returns false if the line is not watched.
func (f *FakeChip) Fail(line int, err error) bool {
	f.mu.Lock()
	h, ok := f.handlers[line]
	f.mu.Unlock()
	if !ok {
		return false
	}
	h(Edge{Line: line, Value: Unknown}, err)
	return true
}

// Watched returns the watched lines in ascending order.
func (f *FakeChip) Watched() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]int, 0, len(f.handlers))
	for line := range f.handlers {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

// Read returns the last emitted or configured level of line.
func (f *FakeChip) Read(line int) (Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return Unknown, f.ReadError
	}
	v, ok := f.Levels[line]
	if !ok {
		return Low, nil
	}
	return v, nil
}

// Output returns the FakeOutput for line, creating it on first use.
func (f *FakeChip) Output(line int) (Output, error) {
	return f.FakeOutput(line), nil
}

// FakeOutput returns the recorder behind an output line.
func (f *FakeChip) FakeOutput(line int) *FakeOutput {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.outputs[line]
	if !ok {
		out = &FakeOutput{Line: line, now: f.now}
		f.outputs[line] = out
	}
	return out
}

// Close marks the chip and all outputs as closed.
func (f *FakeChip) Close() error {
	f.mu.Lock()
	outputs := make([]*FakeOutput, 0, len(f.outputs))
	for _, out := range f.outputs {
		outputs = append(outputs, out)
	}
	f.Closed = true
	f.handlers = make(map[int]Handler)
	f.mu.Unlock()

	for _, out := range outputs {
		out.Close()
	}
	return nil
}

func (f *FakeChip) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// Write is one recorded output write.
type Write struct {
	Value Value
	Time  time.Time
}

// FakeOutput records the writes made to an output line.
type FakeOutput struct {
	Line int

	mu     sync.Mutex
	writes []Write
	closed bool
	now    func() time.Time

	// WriteError, if set, will be returned by Write.
	WriteError error
}

// Write records v.
func (o *FakeOutput) Write(v Value) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.WriteError != nil {
		return o.WriteError
	}
	o.writes = append(o.writes, Write{Value: v, Time: o.now()})
	return nil
}

// Writes returns a copy of every recorded write.
func (o *FakeOutput) Writes() []Write {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Write(nil), o.writes...)
}

// Value returns the last written level, or Unknown if never written.
func (o *FakeOutput) Value() Value {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.writes) == 0 {
		return Unknown
	}
	return o.writes[len(o.writes)-1].Value
}

// Close marks the output as closed.
func (o *FakeOutput) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (o *FakeOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
