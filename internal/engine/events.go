package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"tidebot/internal/logger"
)

type EventKind string

const (
	EventSignal         EventKind = "signal"
	EventOrderSubmitted EventKind = "order_submitted"
	EventOrderFilled    EventKind = "order_filled"
	EventOrderFailed    EventKind = "order_failed"
)

// Event is one observable step of the trade lifecycle. Price and Quantity are
// filled where the step knows them; Err is set only on order_failed.
type Event struct {
	ID       string    `json:"id"`
	Kind     EventKind `json:"kind"`
	Symbol   string    `json:"symbol"`
	At       time.Time `json:"at"`
	Action   string    `json:"action,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Price    float64   `json:"price,omitempty"`
	Quantity float64   `json:"quantity,omitempty"`
	OrderID  string    `json:"order_id,omitempty"`
	Err      string    `json:"error,omitempty"`
}

func newEvent(kind EventKind, symbol string) Event {
	return Event{
		ID:     uuid.NewString(),
		Kind:   kind,
		Symbol: symbol,
		At:     time.Now().UTC(),
	}
}

// Bus fans events out to subscribers. Publish never blocks the trading path:
// a subscriber that falls behind loses events, it does not stall ticks.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a buffered event channel and a cancel function. Cancel
// closes the channel; subscribers must stop reading after calling it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			logger.Warnf("Bus: subscriber full, dropping %s event for %s", evt.Kind, evt.Symbol)
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
