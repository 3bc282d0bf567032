package policy_test

import (
	"testing"
	"time"

	"github.com/saloncore/booking-core/internal/models"
	"github.com/saloncore/booking-core/internal/policy"
	"github.com/stretchr/testify/assert"
)

func basePolicy() *models.Policy {
	return &models.Policy{
		LeadTimeMinutes:     30,
		FutureWindowDays:    60,
		RescheduleLockHours: 3,
		CancelLockHours:     3,
	}
}

func TestCanStart_RejectsWithinLeadTime(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	err := policy.CanStart(now, now.Add(10*time.Minute), basePolicy())
	assert.ErrorIs(t, err, policy.ErrTooSoon)
}

func TestCanStart_RejectsBeyondHorizon(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	err := policy.CanStart(now, now.Add(90*24*time.Hour), basePolicy())
	assert.ErrorIs(t, err, policy.ErrTooFar)
}

func TestCanStart_AcceptsWithinWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	err := policy.CanStart(now, now.Add(2*time.Hour), basePolicy())
	assert.NoError(t, err)
}

func TestCanReschedule_RejectsTerminal(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &models.Booking{Status: models.BookingStatusCancelled, StartsAt: now.Add(48 * time.Hour)}
	err := policy.CanReschedule(now, b, basePolicy())
	assert.ErrorIs(t, err, policy.ErrTerminal)
}

func TestCanReschedule_RejectsInsideLockWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &models.Booking{Status: models.BookingStatusReserved, StartsAt: now.Add(1 * time.Hour)}
	err := policy.CanReschedule(now, b, basePolicy())
	assert.ErrorIs(t, err, policy.ErrLockWindow)
}

func TestCanReschedule_RejectsAfterMaxReschedules(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &models.Booking{
		Status:          models.BookingStatusReserved,
		StartsAt:        now.Add(48 * time.Hour),
		RescheduleCount: policy.MaxReschedules,
	}
	err := policy.CanReschedule(now, b, basePolicy())
	assert.ErrorIs(t, err, policy.ErrTooManyReschedules)
}

func TestCanReschedule_AllowsOutsideLockWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &models.Booking{Status: models.BookingStatusReserved, StartsAt: now.Add(48 * time.Hour)}
	err := policy.CanReschedule(now, b, basePolicy())
	assert.NoError(t, err)
}

func TestCanCancel_ClientBlockedInsideLockWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &models.Booking{Status: models.BookingStatusReserved, StartsAt: now.Add(1 * time.Hour)}
	err := policy.CanCancel(now, b, policy.RoleClient, basePolicy())
	assert.ErrorIs(t, err, policy.ErrLockWindow)
}

func TestCanCancel_StaffBypassesLockWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &models.Booking{Status: models.BookingStatusReserved, StartsAt: now.Add(1 * time.Hour)}
	err := policy.CanCancel(now, b, policy.RoleStaff, basePolicy())
	assert.NoError(t, err)
}

func TestCanCancel_AdminBypassesLockWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &models.Booking{Status: models.BookingStatusReserved, StartsAt: now.Add(1 * time.Hour)}
	err := policy.CanCancel(now, b, policy.RoleAdmin, basePolicy())
	assert.NoError(t, err)
}

func TestCanCancel_RejectsTerminal(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &models.Booking{Status: models.BookingStatusDone, StartsAt: now.Add(-1 * time.Hour)}
	err := policy.CanCancel(now, b, policy.RoleClient, basePolicy())
	assert.ErrorIs(t, err, policy.ErrTerminal)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.BookingStatus
		legal    bool
	}{
		{models.BookingStatusReserved, models.BookingStatusConfirmed, true},
		{models.BookingStatusReserved, models.BookingStatusPendingPayment, true},
		{models.BookingStatusReserved, models.BookingStatusDone, false},
		{models.BookingStatusPendingPayment, models.BookingStatusPaid, true},
		{models.BookingStatusConfirmed, models.BookingStatusNoShow, true},
		{models.BookingStatusDone, models.BookingStatusCancelled, false},
	}
	for _, c := range cases {
		err := policy.CanTransition(c.from, c.to)
		if c.legal {
			assert.NoError(t, err, "%s -> %s should be legal", c.from, c.to)
		} else {
			assert.ErrorIs(t, err, policy.ErrIllegalTransition, "%s -> %s should be illegal", c.from, c.to)
		}
	}
}
