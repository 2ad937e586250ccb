// Package notify reports accepted waypoint events to the remote tracking
// service, one request chain at a time and in arrival order.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/waypoint-monitor/internal/gpio"
	"github.com/sweeney/waypoint-monitor/internal/logic"
)

// OrderParam is the query parameter carrying the fetched order identifier.
const OrderParam = "orderid"

// DefaultTimeout bounds each remote call.
const DefaultTimeout = 5 * time.Second

// Service is the remote tracking service.
type Service interface {
	// CurrentOrder returns the active order identifier, possibly empty.
	CurrentOrder(ctx context.Context) (string, error)

	// ReportTrack records a waypoint passage described by query.
	ReportTrack(ctx context.Context, query url.Values) error
}

// Event is an accepted transition waiting to be reported.
type Event struct {
	ID    uuid.UUID
	Input logic.InputConfig
	Value gpio.Value
	Time  time.Time
}

// NewEvent creates an Event with a fresh identifier.
func NewEvent(input logic.InputConfig, value gpio.Value, at time.Time) Event {
	return Event{
		ID:    uuid.New(),
		Input: input,
		Value: value,
		Time:  at,
	}
}

// Query merges the input payload with the order identifier.
// The order identifier wins over a payload key of the same name.
func (e Event) Query(orderID string) url.Values {
	q := make(url.Values, len(e.Input.Payload)+1)
	for k, v := range e.Input.Payload {
		q.Set(k, fmt.Sprint(v))
	}
	q.Set(OrderParam, orderID)
	return q
}

// Outcome describes how one event settled.
type Outcome struct {
	Event    Event
	OrderID  string
	Err      error
	Started  time.Time
	Finished time.Time
}
