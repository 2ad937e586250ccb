package notify

// queue is a growable FIFO ring of pending events.
// Not safe for concurrent use; the caller must synchronize.
type queue struct {
	buf   []Event
	head  int // next write position
	count int
}

func newQueue(capacity int) *queue {
	if capacity < 1 {
		capacity = 1
	}
	return &queue{buf: make([]Event, capacity)}
}

// push appends ev, doubling the ring when full. Reports whether it grew.
func (q *queue) push(ev Event) bool {
	grew := false
	if q.count == len(q.buf) {
		q.grow()
		grew = true
	}
	q.buf[q.head] = ev
	q.head = (q.head + 1) % len(q.buf)
	q.count++
	return grew
}

// pop removes and returns the oldest event.
func (q *queue) pop() (Event, bool) {
	if q.count == 0 {
		return Event{}, false
	}
	// Oldest item is at (head - count) mod capacity
	start := (q.head - q.count + len(q.buf)) % len(q.buf)
	ev := q.buf[start]
	q.buf[start] = Event{}
	q.count--
	return ev, true
}

func (q *queue) grow() {
	buf := make([]Event, len(q.buf)*2)
	start := (q.head - q.count + len(q.buf)) % len(q.buf)
	for i := 0; i < q.count; i++ {
		buf[i] = q.buf[(start+i)%len(q.buf)]
	}
	q.buf = buf
	q.head = q.count
}

func (q *queue) len() int {
	return q.count
}

func (q *queue) capacity() int {
	return len(q.buf)
}
