package notify

import (
	"testing"

	"github.com/sweeney/waypoint-monitor/internal/logic"
)

func testEvent(line int) Event {
	return Event{Input: logic.InputConfig{Line: line}}
}

func TestQueueEmptyPop(t *testing.T) {
	q := newQueue(4)
	if _, ok := q.pop(); ok {
		t.Error("expected pop on empty queue to fail")
	}
}

func TestQueueFIFO(t *testing.T) {
	q := newQueue(4)
	for i := 0; i < 3; i++ {
		q.push(testEvent(i))
	}
	for i := 0; i < 3; i++ {
		ev, ok := q.pop()
		if !ok {
			t.Fatalf("pop %d: queue empty", i)
		}
		if ev.Input.Line != i {
			t.Errorf("pop %d: got line %d", i, ev.Input.Line)
		}
	}
	if q.len() != 0 {
		t.Errorf("expected empty queue, got %d", q.len())
	}
}

func TestQueueGrowPreservesOrderAcrossWrap(t *testing.T) {
	q := newQueue(4)

	// Move head so that the contents wrap around the end of the ring.
	q.push(testEvent(-1))
	q.push(testEvent(-2))
	q.pop()
	q.pop()

	for i := 0; i < 10; i++ {
		q.push(testEvent(i))
	}
	if q.len() != 10 {
		t.Fatalf("len: got %d, want 10", q.len())
	}
	if q.capacity() < 10 {
		t.Errorf("capacity: got %d, want >= 10", q.capacity())
	}

	for i := 0; i < 10; i++ {
		ev, _ := q.pop()
		if ev.Input.Line != i {
			t.Fatalf("pop %d: got line %d", i, ev.Input.Line)
		}
	}
}

func TestQueuePushReportsGrowth(t *testing.T) {
	q := newQueue(2)
	if q.push(testEvent(0)) {
		t.Error("first push should not grow")
	}
	q.push(testEvent(1))
	if !q.push(testEvent(2)) {
		t.Error("push into a full ring should grow")
	}
	if q.capacity() != 4 {
		t.Errorf("capacity: got %d, want 4", q.capacity())
	}
}
