// Package workers implements the three periodic lifecycle tasks:
// HoldExpirer, ReminderDispatcher, PaymentReconciler. Each is idempotent
// and safe to run from multiple replicas; per-row advisory locks inside
// the state machine's transactions ensure only one replica wins a given
// transition.
package workers

import (
	"context"
	"time"

	"github.com/saloncore/booking-core/internal/booking"
	"github.com/saloncore/booking-core/internal/eventbus"
	"github.com/saloncore/booking-core/internal/notifier"
	"github.com/saloncore/booking-core/internal/payments"
	"github.com/saloncore/booking-core/internal/policy"
	"github.com/saloncore/booking-core/internal/repository"
	"github.com/saloncore/booking-core/pkg/logger"
)

// HoldExpirer transitions bookings whose hold has elapsed to EXPIRED.
type HoldExpirer struct {
	bookingRepo *repository.BookingRepository
	sm          *booking.StateMachine
	batchSize   int
	logger      *logger.Logger
}

func NewHoldExpirer(bookingRepo *repository.BookingRepository, sm *booking.StateMachine, batchSize int, log *logger.Logger) *HoldExpirer {
	return &HoldExpirer{bookingRepo: bookingRepo, sm: sm, batchSize: batchSize, logger: log}
}

// Tick drives every expired hold through Cancel(reason=expired).
func (w *HoldExpirer) Tick(ctx context.Context) {
	expired, err := w.bookingRepo.ExpiredHolds(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("hold expirer: failed to list expired holds", "error", err)
		return
	}
	for _, b := range expired {
		if _, err := w.sm.Cancel(ctx, b.ID, policy.RoleAdmin, "expired"); err != nil {
			w.logger.Warn("hold expirer: failed to expire booking", "bookingId", b.ID, "error", err)
		}
	}
	if len(expired) > 0 {
		w.logger.Info("hold expirer: processed batch", "count", len(expired))
	}
}

// ReminderDispatcher emits ReminderDue for bookings approaching their
// start time, deduplicated in redis so a crash-and-restart doesn't
// double-send.
type ReminderDispatcher struct {
	bookingRepo *repository.BookingRepository
	cache       *repository.CacheRepository
	bus         *eventbus.Bus
	leadMinutes int
	batchSize   int
	logger      *logger.Logger
}

func NewReminderDispatcher(bookingRepo *repository.BookingRepository, cache *repository.CacheRepository, bus *eventbus.Bus, leadMinutes, batchSize int, log *logger.Logger) *ReminderDispatcher {
	return &ReminderDispatcher{bookingRepo: bookingRepo, cache: cache, bus: bus, leadMinutes: leadMinutes, batchSize: batchSize, logger: log}
}

// Tick finds bookings due for a reminder and publishes ReminderDue once
// per booking.
func (w *ReminderDispatcher) Tick(ctx context.Context) {
	if w.leadMinutes <= 0 {
		return
	}
	due, err := w.bookingRepo.DueReminders(ctx, w.leadMinutes, w.batchSize)
	if err != nil {
		w.logger.Error("reminder dispatcher: failed to list due bookings", "error", err)
		return
	}
	for _, b := range due {
		first, err := w.cache.MarkReminded(ctx, b.ID)
		if err != nil {
			w.logger.Warn("reminder dispatcher: dedupe check failed", "bookingId", b.ID, "error", err)
			continue
		}
		if !first {
			continue
		}
		w.bus.Publish(eventbus.Event{
			Type:        eventbus.ReminderDue,
			BookingID:   b.ID,
			StaffID:     b.StaffID,
			Status:      string(b.Status),
			LeadMinutes: w.leadMinutes,
		})
	}
	if len(due) > 0 {
		w.logger.Info("reminder dispatcher: processed batch", "count", len(due))
	}
}

// PaymentReconciler polls the Payments port for bookings stuck in
// PENDING_PAYMENT and drives the corresponding success/failure path.
type PaymentReconciler struct {
	bookingRepo *repository.BookingRepository
	policyRepo  *repository.PolicyRepository
	sm          *booking.StateMachine
	payments    payments.Payments
	batchSize   int
	logger      *logger.Logger
}

func NewPaymentReconciler(bookingRepo *repository.BookingRepository, policyRepo *repository.PolicyRepository, sm *booking.StateMachine, pay payments.Payments, batchSize int, log *logger.Logger) *PaymentReconciler {
	return &PaymentReconciler{bookingRepo: bookingRepo, policyRepo: policyRepo, sm: sm, payments: pay, batchSize: batchSize, logger: log}
}

// Tick verifies every pending-payment booking older than the configured
// grace period against the Payments port and advances it to PAID or
// CANCELLED accordingly. Bookings still inside the grace period are left
// alone since the provider may not have confirmed yet.
func (w *PaymentReconciler) Tick(ctx context.Context) {
	p, err := w.policyRepo.Get(ctx)
	if err != nil {
		w.logger.Error("payment reconciler: failed to load policy", "error", err)
		return
	}
	cutoff := time.Now().UTC().Add(-time.Duration(p.PaymentGraceMinutes) * time.Minute)
	pending, err := w.bookingRepo.PendingPaymentBookings(ctx, cutoff, w.batchSize)
	if err != nil {
		w.logger.Error("payment reconciler: failed to list pending bookings", "error", err)
		return
	}
	for _, b := range pending {
		if b.InvoiceRef == nil {
			continue
		}
		status, err := w.payments.VerifyPayment(ctx, *b.InvoiceRef)
		if err != nil {
			w.logger.Warn("payment reconciler: verification failed", "bookingId", b.ID, "error", err)
			continue
		}
		switch status {
		case payments.StatusPaid:
			if _, err := w.sm.ConfirmPayment(ctx, b.ID); err != nil {
				w.logger.Warn("payment reconciler: failed to confirm booking", "bookingId", b.ID, "error", err)
			}
		case payments.StatusFailed, payments.StatusCancelled:
			if _, err := w.sm.Cancel(ctx, b.ID, policy.RoleAdmin, "payment_failed"); err != nil {
				w.logger.Warn("payment reconciler: failed to cancel booking", "bookingId", b.ID, "error", err)
			}
		case payments.StatusPending:
			// still waiting, nothing to do this tick.
		}
	}
	if len(pending) > 0 {
		w.logger.Info("payment reconciler: processed batch", "count", len(pending))
	}
}

// ReminderNotifierBridge subscribes to ReminderDue and forwards it to the
// Notifier port, keeping delivery out of the worker itself.
type ReminderNotifierBridge struct {
	notifier notifier.Notifier
	logger   *logger.Logger
}

func NewReminderNotifierBridge(n notifier.Notifier, log *logger.Logger) *ReminderNotifierBridge {
	return &ReminderNotifierBridge{notifier: n, logger: log}
}

func (b *ReminderNotifierBridge) Handle(event eventbus.Event) {
	if event.Type != eventbus.ReminderDue {
		return
	}
	ctx := context.Background()
	idempotencyKey := event.BookingID + ":reminder"
	err := b.notifier.Send(ctx, "client", "booking_reminder", map[string]interface{}{
		"bookingId":   event.BookingID,
		"leadMinutes": event.LeadMinutes,
	}, idempotencyKey)
	if err != nil {
		b.logger.Warn("reminder notification dispatch failed", "bookingId", event.BookingID, "error", err)
	}
}
