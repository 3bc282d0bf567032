package subscribers

import (
	"github.com/saloncore/booking-core/internal/eventbus"
	"github.com/saloncore/booking-core/pkg/events"
	"github.com/saloncore/booking-core/pkg/logger"
)

// NatsForwarder is the eventbus.Subscriber that mirrors domain events
// with a NATS subject mapping onto NATS, so services outside this core
// (notifications, reporting, the business dashboard) can react without
// coupling to the state machine directly. Events without a mapping are not
// forwarded (see Handle).
type NatsForwarder struct {
	publisher *events.Publisher
	logger    *logger.Logger
}

func NewNatsForwarder(publisher *events.Publisher, log *logger.Logger) *NatsForwarder {
	return &NatsForwarder{publisher: publisher, logger: log}
}

var subjectByType = map[eventbus.EventType]string{
	eventbus.BookingHeld:       events.BookingHeldEvent,
	eventbus.BookingConfirmed:  events.BookingConfirmedEvent,
	eventbus.BookingCancelled:  events.BookingCancelledEvent,
	eventbus.HoldExpired:       events.HoldExpiredEvent,
	eventbus.CatalogInvalidated: events.CatalogInvalidatedEvent,
}

// Handle forwards events with a known NATS subject mapping. Events with no
// external audience (BookingRescheduled, InvoiceIssued, PaymentFailed,
// ReminderDue) stay in-process; ReminderDue is consumed directly by
// workers.ReminderNotifierBridge instead.
func (f *NatsForwarder) Handle(event eventbus.Event) {
	subject, ok := subjectByType[event.Type]
	if !ok {
		return
	}
	if err := f.publisher.Publish(subject, event); err != nil {
		f.logger.Warn("failed to forward event to nats", "type", event.Type, "bookingId", event.BookingID, "error", err)
	}
}
