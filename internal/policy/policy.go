// Package policy implements the pure predicates that gate booking
// lifecycle transitions: lead time, future window, reschedule/cancel
// lock windows, and transition legality.
package policy

import (
	"errors"
	"time"

	"github.com/saloncore/booking-core/internal/models"
)

var (
	ErrTooSoon            = errors.New("LeadTimeBlocked")
	ErrTooFar             = errors.New("BeyondHorizon")
	ErrLockWindow         = errors.New("LockWindow")
	ErrTerminal           = errors.New("IllegalTransition")
	ErrTooManyReschedules = errors.New("TooManyReschedules")
	ErrIllegalTransition  = errors.New("IllegalTransition")
)

// MaxReschedules is the default cap on how many times a booking may be
// rescheduled before TooManyReschedules applies.
const MaxReschedules = 3

// Role distinguishes callers who may bypass reschedule/cancel lock
// windows from ordinary clients.
type Role string

const (
	RoleClient Role = "client"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

// CanStart validates that a proposed start time respects the policy's
// lead-time and future-window bounds.
func CanStart(now, startAt time.Time, p *models.Policy) error {
	if startAt.Before(now.Add(time.Duration(p.LeadTimeMinutes) * time.Minute)) {
		return ErrTooSoon
	}
	if startAt.After(now.Add(time.Duration(p.FutureWindowDays) * 24 * time.Hour)) {
		return ErrTooFar
	}
	return nil
}

// CanReschedule validates that a booking may be rescheduled at all: it
// must not be terminal, must respect the reschedule lock window, and
// must not have exceeded the reschedule cap.
func CanReschedule(now time.Time, booking *models.Booking, p *models.Policy) error {
	if booking.IsTerminal() {
		return ErrTerminal
	}
	if booking.RescheduleCount >= MaxReschedules {
		return ErrTooManyReschedules
	}
	lockBoundary := booking.StartsAt.Add(-time.Duration(p.RescheduleLockHours) * time.Hour)
	if now.After(lockBoundary) {
		return ErrLockWindow
	}
	return nil
}

// CanCancel validates that a booking may be cancelled. Admins and staff
// bypass the cancel lock window; ordinary clients do not.
func CanCancel(now time.Time, booking *models.Booking, by Role, p *models.Policy) error {
	if booking.IsTerminal() {
		return ErrTerminal
	}
	if by == RoleAdmin || by == RoleStaff {
		return nil
	}
	lockBoundary := booking.StartsAt.Add(-time.Duration(p.CancelLockHours) * time.Hour)
	if now.After(lockBoundary) {
		return ErrLockWindow
	}
	return nil
}

// legalTransitions enumerates every edge of the state graph in §4.5.
var legalTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingStatusReserved: {
		models.BookingStatusConfirmed,
		models.BookingStatusPendingPayment,
		models.BookingStatusCancelled,
		models.BookingStatusExpired,
	},
	models.BookingStatusPendingPayment: {
		models.BookingStatusPaid,
		models.BookingStatusCancelled,
		models.BookingStatusExpired,
	},
	models.BookingStatusConfirmed: {
		models.BookingStatusDone,
		models.BookingStatusCancelled,
		models.BookingStatusNoShow,
	},
	models.BookingStatusPaid: {
		models.BookingStatusDone,
		models.BookingStatusCancelled,
		models.BookingStatusNoShow,
	},
}

// CanTransition reports whether moving from one status to another is a
// legal edge of the state graph.
func CanTransition(from, to models.BookingStatus) error {
	for _, candidate := range legalTransitions[from] {
		if candidate == to {
			return nil
		}
	}
	return ErrIllegalTransition
}
