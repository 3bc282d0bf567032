// Package booking owns the BookingStateMachine: the only component
// permitted to write a Booking row. Every operation runs inside a single
// database transaction, except online Finalize, which uses two (see
// Finalize). Each operation emits at most one domain event, always after
// commit.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/saloncore/booking-core/internal/availability"
	"github.com/saloncore/booking-core/internal/catalog"
	"github.com/saloncore/booking-core/internal/eventbus"
	"github.com/saloncore/booking-core/internal/models"
	"github.com/saloncore/booking-core/internal/payments"
	"github.com/saloncore/booking-core/internal/policy"
	"github.com/saloncore/booking-core/internal/pricing"
	"github.com/saloncore/booking-core/internal/repository"
	"github.com/saloncore/booking-core/pkg/logger"
	"gorm.io/gorm"
)

// StateMachine mediates every write to a Booking row.
type StateMachine struct {
	db          *gorm.DB
	bookingRepo *repository.BookingRepository
	policyRepo  *repository.PolicyRepository
	catalog     *catalog.Catalog
	availability *availability.Engine
	payments    payments.Payments
	bus         *eventbus.Bus
	logger      *logger.Logger
}

func New(
	db *gorm.DB,
	bookingRepo *repository.BookingRepository,
	policyRepo *repository.PolicyRepository,
	cat *catalog.Catalog,
	avail *availability.Engine,
	pay payments.Payments,
	bus *eventbus.Bus,
	log *logger.Logger,
) *StateMachine {
	return &StateMachine{
		db:           db,
		bookingRepo:  bookingRepo,
		policyRepo:   policyRepo,
		catalog:      cat,
		availability: avail,
		payments:     pay,
		bus:          bus,
		logger:       log,
	}
}

// HoldRequest is the input to Hold.
type HoldRequest struct {
	StaffID       string
	ServiceIDs    []string
	StartsAt      time.Time
	PaymentMethod models.PaymentMethod
	ClientID      string
}

// HoldResult is returned by a successful Hold.
type HoldResult struct {
	Booking  models.Booking
	Snapshot pricing.Snapshot
}

// Hold implements the core concurrency protocol: acquire the
// (staff_id, time_bucket) advisory lock, re-check overlap, validate
// policy, insert the RESERVED row, commit, then emit BookingHeld.
func (sm *StateMachine) Hold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	if len(req.ServiceIDs) == 0 {
		return nil, newErr(KindBadInput, "bundle must not be empty")
	}

	policyRow, err := sm.policyRepo.Get(ctx)
	if err != nil {
		return nil, wrapErr(KindStoreUnavailable, "failed to load policy", err)
	}

	services, err := sm.catalog.GetServices(ctx, req.ServiceIDs)
	if err != nil {
		return nil, wrapErr(KindStoreUnavailable, "failed to load services", err)
	}
	bundleViews := make([]catalog.ServiceView, 0, len(req.ServiceIDs))
	speeds := make(map[string]float64, len(req.ServiceIDs))
	for _, id := range req.ServiceIDs {
		svc, ok := services[id]
		if !ok {
			return nil, newErr(KindNoSkillMatch, fmt.Sprintf("unknown service %s", id))
		}
		has, staffSpeed, err := sm.catalog.StaffSkill(ctx, req.StaffID, id)
		if err != nil {
			return nil, wrapErr(KindStoreUnavailable, "failed to check staff skill", err)
		}
		if !has {
			return nil, newErr(KindNoSkillMatch, fmt.Sprintf("staff %s cannot perform %s", req.StaffID, id))
		}
		speeds[id] = staffSpeed
		bundleViews = append(bundleViews, svc)
	}

	snapshot, err := pricing.Quote(bundleViews, speeds, req.PaymentMethod, policyRow)
	if err != nil {
		return nil, newErr(KindMixedCurrency, "bundle mixes currencies")
	}

	endsAt := req.StartsAt.Add(time.Duration(snapshot.EffectiveDurationMinutes) * time.Minute)

	var result HoldResult
	err = sm.db.Transaction(func(tx *gorm.DB) error {
		if err := sm.bookingRepo.LockStaffTimeBucket(ctx, tx, req.StaffID, req.StartsAt); err != nil {
			return wrapErr(KindStoreUnavailable, "failed to acquire staff lock", err)
		}

		overlapping, err := sm.bookingRepo.FindOverlapping(ctx, tx, req.StaffID, req.StartsAt, endsAt, "")
		if err != nil {
			return wrapErr(KindStoreUnavailable, "failed to check overlap", err)
		}
		if len(overlapping) > 0 {
			return newErr(KindSlotUnavailable, "requested interval overlaps an existing booking")
		}

		now := time.Now().UTC()
		if err := policy.CanStart(now, req.StartsAt, policyRow); err != nil {
			return mapPolicyErr(err)
		}

		booking := models.Booking{
			StaffID:         req.StaffID,
			ClientID:        req.ClientID,
			StartsAt:        req.StartsAt,
			EndsAt:          endsAt,
			Status:          models.BookingStatusReserved,
			PaymentMethod:   req.PaymentMethod,
			OriginalMinor:   snapshot.OriginalMinor,
			FinalMinor:      snapshot.FinalMinor,
			DiscountMinor:   snapshot.DiscountMinor,
			DiscountPercent: snapshot.DiscountPercent,
			Currency:        snapshot.Currency,
		}
		holdExpiry := now.Add(time.Duration(policyRow.HoldTTLMinutes) * time.Minute)
		booking.HoldExpiresAt = &holdExpiry

		bundle := make([]models.BookingService, len(req.ServiceIDs))
		for i, id := range req.ServiceIDs {
			bundle[i] = models.BookingService{ServiceID: id, Position: i}
		}

		if err := sm.bookingRepo.CreateBooking(ctx, tx, &booking, bundle); err != nil {
			return wrapErr(KindStoreUnavailable, "failed to create booking", err)
		}

		if err := sm.appendEvent(ctx, tx, booking.ID, "", booking.Status); err != nil {
			return err
		}

		result = HoldResult{Booking: booking, Snapshot: snapshot}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sm.bus.Publish(eventbus.Event{
		Type:          eventbus.BookingHeld,
		CorrelationID: uuid.New().String(),
		BookingID:     result.Booking.ID,
		StaffID:       result.Booking.StaffID,
		Status:        string(result.Booking.Status),
		OriginalMinor: snapshot.OriginalMinor,
		FinalMinor:    snapshot.FinalMinor,
		DiscountMinor: snapshot.DiscountMinor,
		Currency:      snapshot.Currency,
	})
	return &result, nil
}

// FinalizeResult is returned by Finalize.
type FinalizeResult struct {
	Booking     models.Booking
	InvoiceURL  string
}

// Finalize moves a RESERVED booking to CONFIRMED (cash) or
// PENDING_PAYMENT (online, with an invoice opened against the Payments
// port). The online path is not a single transaction: the PENDING_PAYMENT
// transition commits first, CreateInvoice is called after that commit,
// and the invoice ref is stored in a second transaction.
func (sm *StateMachine) Finalize(ctx context.Context, bookingID string, paymentMethod models.PaymentMethod) (*FinalizeResult, error) {
	var result FinalizeResult
	var invoiceRef string
	var amountMinor int64
	var currency string

	err := sm.db.Transaction(func(tx *gorm.DB) error {
		if err := sm.bookingRepo.LockBooking(ctx, tx, bookingID); err != nil {
			return wrapErr(KindStoreUnavailable, "failed to acquire booking lock", err)
		}
		b, err := sm.bookingRepo.GetBookingForUpdate(ctx, tx, bookingID)
		if err != nil {
			return wrapErr(KindStoreUnavailable, "failed to load booking", err)
		}
		if b == nil {
			return newErr(KindNotFound, "booking not found")
		}
		if b.Status != models.BookingStatusReserved {
			return newErr(KindIllegalTransition, "booking is not in RESERVED")
		}

		if paymentMethod == models.PaymentMethodCash {
			from := b.Status
			b.Status = models.BookingStatusConfirmed
			b.HoldExpiresAt = nil
			now := time.Now().UTC()
			b.ConfirmedAt = &now
			if err := tx.WithContext(ctx).Save(b).Error; err != nil {
				return wrapErr(KindStoreUnavailable, "failed to update booking", err)
			}
			if err := sm.appendEvent(ctx, tx, b.ID, from, b.Status); err != nil {
				return err
			}
			result = FinalizeResult{Booking: *b}
			return nil
		}

		// Online: commit the PENDING_PAYMENT transition here, keeping the
		// hold expiry; the Payments call happens after this transaction
		// commits. If CreateInvoice then fails, the booking stays
		// PENDING_PAYMENT with no invoice_ref: the PaymentReconciler skips
		// it and the HoldExpirer expires it once its hold lapses.
		amountMinor = b.FinalMinor
		currency = b.Currency

		from := b.Status
		b.Status = models.BookingStatusPendingPayment
		if err := tx.WithContext(ctx).Save(b).Error; err != nil {
			return wrapErr(KindStoreUnavailable, "failed to update booking", err)
		}
		if err := sm.appendEvent(ctx, tx, b.ID, from, b.Status); err != nil {
			return err
		}
		result = FinalizeResult{Booking: *b}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if paymentMethod == models.PaymentMethodCash {
		sm.bus.Publish(eventbus.Event{
			Type:      eventbus.BookingConfirmed,
			BookingID: result.Booking.ID,
			StaffID:   result.Booking.StaffID,
			Status:    string(result.Booking.Status),
		})
		return &result, nil
	}

	invoice, err := sm.payments.CreateInvoice(ctx, result.Booking.ID, amountMinor, currency)
	if err != nil {
		return nil, wrapErr(KindPaymentInitFailed, "failed to create invoice", err)
	}
	invoiceRef = invoice.InvoiceRef

	if err := sm.db.Transaction(func(tx *gorm.DB) error {
		if err := sm.bookingRepo.LockBooking(ctx, tx, result.Booking.ID); err != nil {
			return wrapErr(KindStoreUnavailable, "failed to acquire booking lock", err)
		}
		b, err := sm.bookingRepo.GetBookingForUpdate(ctx, tx, result.Booking.ID)
		if err != nil || b == nil {
			return wrapErr(KindStoreUnavailable, "failed to reload booking", err)
		}
		b.InvoiceRef = &invoiceRef
		if err := tx.WithContext(ctx).Save(b).Error; err != nil {
			return wrapErr(KindStoreUnavailable, "failed to store invoice ref", err)
		}
		result.Booking = *b
		return nil
	}); err != nil {
		return nil, err
	}

	result.InvoiceURL = invoice.ExternalURL
	sm.bus.Publish(eventbus.Event{
		Type:       eventbus.InvoiceIssued,
		BookingID:  result.Booking.ID,
		StaffID:    result.Booking.StaffID,
		Status:     string(result.Booking.Status),
		InvoiceRef: invoiceRef,
	})
	return &result, nil
}

// ConfirmPayment moves a PENDING_PAYMENT booking to PAID, called from the
// PaymentReconciler or a payment provider webhook once VerifyPayment
// reports paid.
func (sm *StateMachine) ConfirmPayment(ctx context.Context, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	err := sm.db.Transaction(func(tx *gorm.DB) error {
		if err := sm.bookingRepo.LockBooking(ctx, tx, bookingID); err != nil {
			return wrapErr(KindStoreUnavailable, "failed to acquire booking lock", err)
		}
		b, err := sm.bookingRepo.GetBookingForUpdate(ctx, tx, bookingID)
		if err != nil {
			return wrapErr(KindStoreUnavailable, "failed to load booking", err)
		}
		if b == nil {
			return newErr(KindNotFound, "booking not found")
		}
		if b.Status != models.BookingStatusPendingPayment {
			return newErr(KindIllegalTransition, "booking is not in PENDING_PAYMENT")
		}
		from := b.Status
		b.Status = models.BookingStatusPaid
		b.HoldExpiresAt = nil
		now := time.Now().UTC()
		b.ConfirmedAt = &now
		if err := tx.WithContext(ctx).Save(b).Error; err != nil {
			return wrapErr(KindStoreUnavailable, "failed to update booking", err)
		}
		if err := sm.appendEvent(ctx, tx, b.ID, from, b.Status); err != nil {
			return err
		}
		booking = *b
		return nil
	})
	if err != nil {
		return nil, err
	}
	sm.bus.Publish(eventbus.Event{Type: eventbus.BookingConfirmed, BookingID: booking.ID, StaffID: booking.StaffID, Status: string(booking.Status)})
	return &booking, nil
}

// Reschedule moves a booking to a new start time, preserving status,
// pricing, and payment method; the reschedule counter increments.
func (sm *StateMachine) Reschedule(ctx context.Context, bookingID string, newStart time.Time) (*models.Booking, error) {
	policyRow, err := sm.policyRepo.Get(ctx)
	if err != nil {
		return nil, wrapErr(KindStoreUnavailable, "failed to load policy", err)
	}

	var booking models.Booking
	err = sm.db.Transaction(func(tx *gorm.DB) error {
		b, err := sm.bookingRepo.GetBookingForUpdate(ctx, tx, bookingID)
		if err != nil {
			return wrapErr(KindStoreUnavailable, "failed to load booking", err)
		}
		if b == nil {
			return newErr(KindNotFound, "booking not found")
		}
		if err := policy.CanReschedule(time.Now().UTC(), b, policyRow); err != nil {
			return mapPolicyErr(err)
		}

		duration := b.EndsAt.Sub(b.StartsAt)
		newEnd := newStart.Add(duration)

		if err := sm.bookingRepo.LockStaffTimeBucket(ctx, tx, b.StaffID, newStart); err != nil {
			return wrapErr(KindStoreUnavailable, "failed to acquire staff lock", err)
		}

		overlapping, err := sm.bookingRepo.FindOverlapping(ctx, tx, b.StaffID, newStart, newEnd, b.ID)
		if err != nil {
			return wrapErr(KindStoreUnavailable, "failed to check overlap", err)
		}
		if len(overlapping) > 0 {
			return newErr(KindSlotUnavailable, "new interval overlaps an existing booking")
		}

		if b.StartsAt.Equal(newStart) {
			booking = *b
			return nil
		}

		b.StartsAt = newStart
		b.EndsAt = newEnd
		b.RescheduleCount++
		if err := tx.WithContext(ctx).Save(b).Error; err != nil {
			return wrapErr(KindStoreUnavailable, "failed to update booking", err)
		}
		booking = *b
		return nil
	})
	if err != nil {
		return nil, err
	}
	sm.bus.Publish(eventbus.Event{Type: eventbus.BookingRescheduled, BookingID: booking.ID, StaffID: booking.StaffID, Status: string(booking.Status)})
	return &booking, nil
}

// Cancel transitions a booking to CANCELLED (or EXPIRED when reason is
// "expired"), clearing any hold. PolicyGate.CanCancel applies to every
// reason except the worker-driven "expired" and "payment_failed", which
// skip the lock window and only require a non-terminal booking.
func (sm *StateMachine) Cancel(ctx context.Context, bookingID string, by policy.Role, reason string) (*models.Booking, error) {
	policyRow, err := sm.policyRepo.Get(ctx)
	if err != nil {
		return nil, wrapErr(KindStoreUnavailable, "failed to load policy", err)
	}

	var booking models.Booking
	var fromStatus models.BookingStatus
	err = sm.db.Transaction(func(tx *gorm.DB) error {
		if err := sm.bookingRepo.LockBooking(ctx, tx, bookingID); err != nil {
			return wrapErr(KindStoreUnavailable, "failed to acquire booking lock", err)
		}
		b, err := sm.bookingRepo.GetBookingForUpdate(ctx, tx, bookingID)
		if err != nil {
			return wrapErr(KindStoreUnavailable, "failed to load booking", err)
		}
		if b == nil {
			return newErr(KindNotFound, "booking not found")
		}
		if reason != "expired" && reason != "payment_failed" {
			if err := policy.CanCancel(time.Now().UTC(), b, by, policyRow); err != nil {
				return mapPolicyErr(err)
			}
		} else if b.IsTerminal() {
			return newErr(KindIllegalTransition, "booking already terminal")
		}

		target := models.BookingStatusCancelled
		if reason == "expired" {
			target = models.BookingStatusExpired
		}
		if err := policy.CanTransition(b.Status, target); err != nil {
			return newErr(KindIllegalTransition, "cannot cancel from current status")
		}

		fromStatus = b.Status
		b.Status = target
		b.HoldExpiresAt = nil
		b.CancellationReason = reason
		now := time.Now().UTC()
		b.CancelledAt = &now
		if err := tx.WithContext(ctx).Save(b).Error; err != nil {
			return wrapErr(KindStoreUnavailable, "failed to update booking", err)
		}
		if err := sm.appendEvent(ctx, tx, b.ID, fromStatus, b.Status); err != nil {
			return err
		}
		booking = *b
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventType := eventbus.BookingCancelled
	if reason == "expired" {
		eventType = eventbus.HoldExpired
	}
	sm.bus.Publish(eventbus.Event{Type: eventType, BookingID: booking.ID, StaffID: booking.StaffID, Status: string(booking.Status), Reason: reason})
	return &booking, nil
}

// MarkDone transitions a CONFIRMED or PAID booking to DONE. It does not
// compare the booking's start or end time with the current time.
func (sm *StateMachine) MarkDone(ctx context.Context, bookingID string) (*models.Booking, error) {
	return sm.simpleTransition(ctx, bookingID, models.BookingStatusDone, func(b *models.Booking) {
		now := time.Now().UTC()
		b.DoneAt = &now
	})
}

// MarkNoShow transitions a CONFIRMED or PAID booking to NO_SHOW.
func (sm *StateMachine) MarkNoShow(ctx context.Context, bookingID string) (*models.Booking, error) {
	return sm.simpleTransition(ctx, bookingID, models.BookingStatusNoShow, nil)
}

func (sm *StateMachine) simpleTransition(ctx context.Context, bookingID string, target models.BookingStatus, mutate func(*models.Booking)) (*models.Booking, error) {
	var booking models.Booking
	var fromStatus models.BookingStatus
	err := sm.db.Transaction(func(tx *gorm.DB) error {
		if err := sm.bookingRepo.LockBooking(ctx, tx, bookingID); err != nil {
			return wrapErr(KindStoreUnavailable, "failed to acquire booking lock", err)
		}
		b, err := sm.bookingRepo.GetBookingForUpdate(ctx, tx, bookingID)
		if err != nil {
			return wrapErr(KindStoreUnavailable, "failed to load booking", err)
		}
		if b == nil {
			return newErr(KindNotFound, "booking not found")
		}
		if err := policy.CanTransition(b.Status, target); err != nil {
			return newErr(KindIllegalTransition, "illegal transition")
		}
		fromStatus = b.Status
		b.Status = target
		if mutate != nil {
			mutate(b)
		}
		if err := tx.WithContext(ctx).Save(b).Error; err != nil {
			return wrapErr(KindStoreUnavailable, "failed to update booking", err)
		}
		if err := sm.appendEvent(ctx, tx, b.ID, fromStatus, b.Status); err != nil {
			return err
		}
		booking = *b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// Rate sets a DONE booking's rating exactly once.
func (sm *StateMachine) Rate(ctx context.Context, bookingID string, rating int) (*models.Booking, error) {
	if rating < 1 || rating > 5 {
		return nil, newErr(KindBadInput, "rating must be between 1 and 5")
	}

	var booking models.Booking
	err := sm.db.Transaction(func(tx *gorm.DB) error {
		if err := sm.bookingRepo.LockBooking(ctx, tx, bookingID); err != nil {
			return wrapErr(KindStoreUnavailable, "failed to acquire booking lock", err)
		}
		b, err := sm.bookingRepo.GetBookingForUpdate(ctx, tx, bookingID)
		if err != nil {
			return wrapErr(KindStoreUnavailable, "failed to load booking", err)
		}
		if b == nil {
			return newErr(KindNotFound, "booking not found")
		}
		if b.Status != models.BookingStatusDone {
			return newErr(KindIllegalTransition, "only DONE bookings may be rated")
		}
		if b.Rating != nil {
			return newErr(KindAlreadyRated, "booking has already been rated")
		}
		b.Rating = &rating
		if err := tx.WithContext(ctx).Save(b).Error; err != nil {
			return wrapErr(KindStoreUnavailable, "failed to update booking", err)
		}
		booking = *b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (sm *StateMachine) appendEvent(ctx context.Context, tx *gorm.DB, bookingID string, from, to models.BookingStatus) error {
	event := models.BookingEvent{
		BookingID:     bookingID,
		FromStatus:    from,
		ToStatus:      to,
		CorrelationID: uuid.New().String(),
	}
	if err := sm.bookingRepo.AppendEvent(ctx, tx, &event); err != nil {
		return wrapErr(KindStoreUnavailable, "failed to append booking event", err)
	}
	return nil
}

func mapPolicyErr(err error) *Error {
	switch err {
	case policy.ErrTooSoon:
		return newErr(KindLeadTimeBlocked, err.Error())
	case policy.ErrTooFar:
		return newErr(KindBeyondHorizon, err.Error())
	case policy.ErrLockWindow:
		return newErr(KindLockWindow, err.Error())
	case policy.ErrTerminal:
		return newErr(KindIllegalTransition, err.Error())
	case policy.ErrTooManyReschedules:
		return newErr(KindTooManyReschedules, err.Error())
	default:
		return newErr(KindIllegalTransition, err.Error())
	}
}
