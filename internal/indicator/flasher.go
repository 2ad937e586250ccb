// Package indicator drives the activity LED.
package indicator

import (
	"sync"
	"time"

	"github.com/sweeney/waypoint-monitor/internal/clock"
	"github.com/sweeney/waypoint-monitor/internal/gpio"
)

// DefaultFlashDuration is how long the LED stays on after an accepted event.
const DefaultFlashDuration = 50 * time.Millisecond

// Flasher pulses an output for a fixed duration. Overlapping flashes
// extend the active window instead of producing separate pulses.
type Flasher struct {
	out      gpio.Output
	duration time.Duration
	clock    clock.Clock
	fault    func(error)

	mu    sync.Mutex
	timer clock.Timer
	gen   uint64
}

// NewFlasher creates a Flasher on out. Write failures are passed to fault.
func NewFlasher(out gpio.Output, duration time.Duration, c clock.Clock, fault func(error)) *Flasher {
	return &Flasher{
		out:      out,
		duration: duration,
		clock:    c,
		fault:    fault,
	}
}

// Flash turns the output on and (re)arms the timer that turns it off.
func (f *Flasher) Flash() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.gen++
	if err := f.out.Write(gpio.High); err != nil {
		f.fault(err)
		return
	}
	gen := f.gen
	f.timer = f.clock.AfterFunc(f.duration, func() { f.off(gen) })
}

// Stop cancels a pending off timer. The output level is left as is.
func (f *Flasher) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.gen++
}

func (f *Flasher) off(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return
	}
	f.timer = nil
	if err := f.out.Write(gpio.Low); err != nil {
		f.fault(err)
	}
}
