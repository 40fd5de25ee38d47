package rfid

import "log/slog"

// Queue adapts reader callbacks onto a bounded event channel. It contains
// no playback logic: inserts and invalid reads are translated to Events,
// removals are logged and dropped (pulling the tag does not stop the
// video), and a full queue drops the oldest event so the newest decision
// always survives.
type Queue struct {
	events chan Event
}

// NewQueue creates a queue holding at most size pending events.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{events: make(chan Event, size)}
}

// Events is the consumer side; receive with a non-blocking select.
func (q *Queue) Events() <-chan Event {
	return q.events
}

// OnInsert implements Handler.
func (q *Queue) OnInsert(c Card) {
	q.push(Event{Kind: EventInserted, TagID: c.Value})
}

// OnRemove implements Handler. Removal never affects playback.
func (q *Queue) OnRemove(c Card) {
	slog.Debug("rfid: tag removal ignored for playback", "tag", c.Value)
}

// OnInvalid implements Handler.
func (q *Queue) OnInvalid(c Card) {
	q.push(Event{Kind: EventInvalid, TagID: c.Value})
}

// Tick implements Handler.
func (q *Queue) Tick() {}

func (q *Queue) push(ev Event) {
	for {
		select {
		case q.events <- ev:
			return
		default:
		}
		// queue full: evict the oldest pending event and retry
		select {
		case old := <-q.events:
			slog.Warn("rfid: event queue full, dropping oldest", "kind", old.Kind.String(), "tag", old.TagID)
		default:
		}
	}
}
