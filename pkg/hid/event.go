package hid

// EventKind is the direction of a key transition.
type EventKind uint8

const (
	EventDown EventKind = iota
	EventUp
	EventRepeat
)

// String returns a short name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventDown:
		return "down"
	case EventUp:
		return "up"
	case EventRepeat:
		return "repeat"
	default:
		return "unknown"
	}
}

// Event is a single key transition.
type Event struct {
	Kind EventKind
	Key  uint8
}

// Deliver passes e to the matching Sink method.
func (e Event) Deliver(sink Sink) {
	switch e.Kind {
	case EventDown:
		sink.KeyPressed(e.Key)
	case EventUp:
		sink.KeyReleased(e.Key)
	case EventRepeat:
		sink.KeyRepeated(e.Key)
	}
}

// EventQueue hands key events from other goroutines (USB host stack
// callbacks, the serial maintenance link) to the polling loop.
type EventQueue struct {
	ch chan Event
}

// NewEventQueue creates a queue holding up to size events.
func NewEventQueue(size int) *EventQueue {
	return &EventQueue{ch: make(chan Event, size)}
}

// Push enqueues e without blocking. It returns false when the queue is
// full.
func (q *EventQueue) Push(e Event) bool {
	select {
	case q.ch <- e:
		return true
	default:
		return false
	}
}

// Drain delivers every queued event to sink without blocking and returns
// how many were delivered.
func (q *EventQueue) Drain(sink Sink) int {
	n := 0
	for {
		select {
		case e := <-q.ch:
			e.Deliver(sink)
			n++
		default:
			return n
		}
	}
}

// KeyPressed queues a down event. Together with KeyReleased and KeyRepeated
// it lets a Tracker running outside the polling loop feed the queue.
// Events that do not fit are dropped.
func (q *EventQueue) KeyPressed(key uint8) { q.Push(Event{Kind: EventDown, Key: key}) }

func (q *EventQueue) KeyReleased(key uint8) { q.Push(Event{Kind: EventUp, Key: key}) }

func (q *EventQueue) KeyRepeated(key uint8) { q.Push(Event{Kind: EventRepeat, Key: key}) }
