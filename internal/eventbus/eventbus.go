// Package eventbus is an in-process, typed fan-out from the
// BookingStateMachine to subscribers. Events are published after the
// originating transaction commits; delivery is at-least-once within the
// process and subscribers must be idempotent.
package eventbus

import (
	"sync"

	"github.com/saloncore/booking-core/pkg/logger"
)

// EventType names one of the domain events the state machine emits.
type EventType string

const (
	BookingHeld        EventType = "BookingHeld"
	BookingConfirmed   EventType = "BookingConfirmed"
	BookingCancelled   EventType = "BookingCancelled"
	BookingRescheduled EventType = "BookingRescheduled"
	HoldExpired        EventType = "HoldExpired"
	InvoiceIssued      EventType = "InvoiceIssued"
	PaymentFailed      EventType = "PaymentFailed"
	ReminderDue        EventType = "ReminderDue"
	CatalogInvalidated EventType = "CatalogInvalidated"
)

// Event is the payload every subscriber receives. PricingSnapshot fields
// are copied by value so subscribers can't mutate the originating
// booking's state.
type Event struct {
	Type            EventType
	CorrelationID   string
	BookingID       string
	StaffID         string
	Status          string
	OriginalMinor   int64
	FinalMinor      int64
	DiscountMinor   int64
	Currency        string
	Reason          string
	InvoiceRef      string
	LeadMinutes     int
}

// Subscriber receives events published to the bus. Implementations must
// be idempotent: the same event may be delivered more than once.
type Subscriber interface {
	Handle(event Event)
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(event Event)

func (f SubscriberFunc) Handle(event Event) { f(event) }

// Bus is a synchronous, in-process typed fan-out. Publish is called after
// the originating transaction has committed, so a panicking or slow
// subscriber never blocks that transaction.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	logger      *logger.Logger
}

func New(log *logger.Logger) *Bus {
	return &Bus{logger: log}
}

// Subscribe registers a subscriber. It is guarded by the bus mutex, so it
// is safe to call concurrently with Publish; a Publish already in progress
// delivers to the subscribers registered when it started.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish fans the event out to every subscriber, isolating each
// subscriber's panic so one broken subscriber cannot affect others or the
// caller.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, sub := range subs {
		b.dispatch(sub, event)
	}
}

func (b *Bus) dispatch(sub Subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked", "event", event.Type, "bookingId", event.BookingID, "panic", r)
		}
	}()
	sub.Handle(event)
}
