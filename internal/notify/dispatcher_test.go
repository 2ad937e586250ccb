package notify

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sweeney/waypoint-monitor/internal/gpio"
	"github.com/sweeney/waypoint-monitor/internal/logic"
)

func seqEvent(seq int) Event {
	return NewEvent(logic.InputConfig{
		Line:    24,
		Policy:  logic.PolicyHigh,
		Payload: map[string]any{"seq": seq, "waypointtype": "Start"},
	}, gpio.High, time.Now())
}

// startDispatcher runs d in the background and returns a channel of outcomes.
func startDispatcher(t *testing.T, d *Dispatcher) <-chan Outcome {
	t.Helper()
	outcomes := make(chan Outcome, 100)
	d.OnSettle(func(o Outcome) { outcomes <- o })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return outcomes
}

func collect(t *testing.T, outcomes <-chan Outcome, n int) []Outcome {
	t.Helper()
	var got []Outcome
	for len(got) < n {
		select {
		case o := <-outcomes:
			got = append(got, o)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d of %d outcomes", len(got), n)
		}
	}
	return got
}

func TestDispatcherSerialFIFO(t *testing.T) {
	svc := NewFakeService("ORD-1")
	delays := []time.Duration{30, 5, 20, 0, 10, 1}
	for i, ms := range delays {
		svc.Delays[i] = ms * time.Millisecond
	}
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(svc, time.Second, logger)
	outcomes := startDispatcher(t, d)

	for i := range delays {
		d.Enqueue(seqEvent(i))
	}
	got := collect(t, outcomes, len(delays))

	for i, o := range got {
		if o.Err != nil {
			t.Errorf("outcome %d: unexpected error: %v", i, o.Err)
		}
		if seq := o.Event.Input.Payload["seq"]; seq != i {
			t.Errorf("outcome %d: settled event seq %v", i, seq)
		}
		if i > 0 && o.Started.Before(got[i-1].Finished) {
			t.Errorf("outcome %d started at %v before outcome %d finished at %v",
				i, o.Started, i-1, got[i-1].Finished)
		}
	}
	if svc.MaxInFlight() != 1 {
		t.Errorf("max in-flight calls: got %d, want 1", svc.MaxInFlight())
	}

	tracks := svc.Tracks()
	if len(tracks) != len(delays) {
		t.Fatalf("expected %d tracks, got %d", len(delays), len(tracks))
	}
	for i, q := range tracks {
		if q.Get("seq") != strconv.Itoa(i) {
			t.Errorf("track %d: seq=%q", i, q.Get("seq"))
		}
		if q.Get(OrderParam) != "ORD-1" {
			t.Errorf("track %d: orderid=%q", i, q.Get(OrderParam))
		}
		if q.Get("waypointtype") != "Start" {
			t.Errorf("track %d: waypointtype=%q", i, q.Get("waypointtype"))
		}
	}
}

func TestDispatcherFailureDoesNotBlockNext(t *testing.T) {
	svc := NewFakeService("ORD-1")
	svc.TrackErrors[0] = errors.New("simulated error")
	logger, hook := test.NewNullLogger()
	d := NewDispatcher(svc, time.Second, logger)
	outcomes := startDispatcher(t, d)

	d.Enqueue(seqEvent(0))
	d.Enqueue(seqEvent(1))
	got := collect(t, outcomes, 2)

	if got[0].Err == nil {
		t.Error("outcome 0: expected error")
	}
	if got[1].Err != nil {
		t.Errorf("outcome 1: unexpected error: %v", got[1].Err)
	}
	if tracks := svc.Tracks(); len(tracks) != 1 || tracks[0].Get("seq") != "1" {
		t.Errorf("expected only seq 1 to be reported, got %v", tracks)
	}

	dropped := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "tracking notification dropped" {
			dropped = true
		}
	}
	if !dropped {
		t.Error("expected a warning for the dropped notification")
	}
}

func TestDispatcherOrderFailureSkipsReport(t *testing.T) {
	svc := NewFakeService("ORD-1")
	svc.OrderErrors[0] = errors.New("connection refused")
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(svc, time.Second, logger)
	outcomes := startDispatcher(t, d)

	d.Enqueue(seqEvent(0))
	got := collect(t, outcomes, 1)

	if got[0].Err == nil {
		t.Fatal("expected error")
	}
	if len(svc.Tracks()) != 0 {
		t.Error("no track should be reported when the order lookup fails")
	}
}

func TestDispatcherTimeoutBoundsStuckCall(t *testing.T) {
	svc := NewFakeService("ORD-1")
	svc.Delays[0] = time.Hour
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(svc, 50*time.Millisecond, logger)
	outcomes := startDispatcher(t, d)

	d.Enqueue(seqEvent(0))
	d.Enqueue(seqEvent(1))
	got := collect(t, outcomes, 2)

	if !errors.Is(got[0].Err, context.DeadlineExceeded) {
		t.Errorf("outcome 0: expected deadline exceeded, got %v", got[0].Err)
	}
	if got[1].Err != nil {
		t.Errorf("outcome 1: unexpected error: %v", got[1].Err)
	}
	if wait := got[1].Finished.Sub(got[0].Started); wait > 2*time.Second {
		t.Errorf("event 1 settled %v after event 0 started", wait)
	}
}

func TestDispatcherEmptyOrderContinues(t *testing.T) {
	svc := NewFakeService("")
	logger, hook := test.NewNullLogger()
	d := NewDispatcher(svc, time.Second, logger)
	outcomes := startDispatcher(t, d)

	d.Enqueue(seqEvent(0))
	got := collect(t, outcomes, 1)

	if got[0].Err != nil {
		t.Fatalf("unexpected error: %v", got[0].Err)
	}
	tracks := svc.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}
	if v, ok := tracks[0][OrderParam]; !ok || len(v) != 1 || v[0] != "" {
		t.Errorf("expected empty orderid parameter, got %v", tracks[0])
	}

	warned := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a warning about the missing order")
	}
}

type panicService struct{ *FakeService }

func (p panicService) CurrentOrder(ctx context.Context) (string, error) {
	panic("boom")
}

func TestDispatcherSettlesOnPanic(t *testing.T) {
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(panicService{NewFakeService("")}, time.Second, logger)
	outcomes := startDispatcher(t, d)

	d.Enqueue(seqEvent(0))
	d.Enqueue(seqEvent(1))
	got := collect(t, outcomes, 2)

	for i, o := range got {
		if o.Err == nil {
			t.Errorf("outcome %d: expected error from panic", i)
		}
	}
}

func TestDispatcherRunStopsOnCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(NewFakeService(""), time.Second, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDispatcherPending(t *testing.T) {
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(NewFakeService(""), time.Second, logger)

	for i := 0; i < 20; i++ {
		d.Enqueue(seqEvent(i))
	}
	if d.Pending() != 20 {
		t.Errorf("pending: got %d, want 20", d.Pending())
	}
}

func TestEventQuery(t *testing.T) {
	ev := NewEvent(logic.InputConfig{
		Line:    23,
		Payload: map[string]any{"bid": 2, "waypointtype": "In Transit", OrderParam: "stale"},
	}, gpio.High, time.Now())

	q := ev.Query("ORD-9")
	if q.Get("bid") != "2" {
		t.Errorf("bid: got %q", q.Get("bid"))
	}
	if q.Get("waypointtype") != "In Transit" {
		t.Errorf("waypointtype: got %q", q.Get("waypointtype"))
	}
	if q.Get(OrderParam) != "ORD-9" {
		t.Errorf("orderid: got %q, want ORD-9", q.Get(OrderParam))
	}
	if len(ev.Input.Payload) != 3 || ev.Input.Payload[OrderParam] != "stale" {
		t.Error("Query must not modify the input payload")
	}
}
