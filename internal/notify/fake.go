package notify

import (
	"context"
	"net/url"
	"sync"
	"time"
)

// FakeService is a test double that records calls and injects latency and failures.
type FakeService struct {
	// OrderID is returned by CurrentOrder.
	OrderID string

	// OrderErrors and TrackErrors are returned by the call with the given
	// 0-based index.
	OrderErrors map[int]error
	TrackErrors map[int]error

	// Delays holds the latency of the CurrentOrder call with the given index.
	// A delayed call returns early with ctx.Err() when ctx is done.
	Delays map[int]time.Duration

	mu          sync.Mutex
	orderCalls  int
	trackCalls  int
	inFlight    int
	maxInFlight int
	tracks      []url.Values
}

// NewFakeService creates a FakeService returning orderID.
func NewFakeService(orderID string) *FakeService {
	return &FakeService{
		OrderID:     orderID,
		OrderErrors: make(map[int]error),
		TrackErrors: make(map[int]error),
		Delays:      make(map[int]time.Duration),
	}
}

// CurrentOrder returns OrderID after the configured delay.
func (f *FakeService) CurrentOrder(ctx context.Context) (string, error) {
	f.mu.Lock()
	idx := f.orderCalls
	f.orderCalls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	delay := f.Delays[idx]
	err := f.OrderErrors[idx]
	orderID := f.OrderID
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return orderID, nil
}

// ReportTrack records query.
func (f *FakeService) ReportTrack(ctx context.Context, query url.Values) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.trackCalls
	f.trackCalls++
	if err := f.TrackErrors[idx]; err != nil {
		return err
	}
	f.tracks = append(f.tracks, query)
	return nil
}

// Tracks returns the successfully reported queries in call order.
func (f *FakeService) Tracks() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.tracks...)
}

// MaxInFlight returns the highest number of concurrent CurrentOrder calls seen.
func (f *FakeService) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}
