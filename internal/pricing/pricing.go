// Package pricing computes immutable pricing snapshots for a service
// bundle, in integer minor units only.
package pricing

import (
	"errors"

	"github.com/saloncore/booking-core/internal/catalog"
	"github.com/saloncore/booking-core/internal/models"
)

// ErrMixedCurrency is returned when a bundle mixes services priced in
// different currencies.
var ErrMixedCurrency = errors.New("MixedCurrency")

// Snapshot is the immutable pricing record bound to a booking at hold
// time.
type Snapshot struct {
	OriginalMinor           int64
	FinalMinor              int64
	DiscountMinor           int64
	DiscountPercent         int
	Currency                string
	EffectiveDurationMinutes int
}

// Quote computes a Snapshot for services performed by a staff member, under
// the given payment method. speeds is keyed by service ID; a service with
// no entry (or a non-positive entry) defaults to speed 1.0.
func Quote(services []catalog.ServiceView, speeds map[string]float64, paymentMethod models.PaymentMethod, policy *models.Policy) (Snapshot, error) {
	if len(services) == 0 {
		return Snapshot{}, errors.New("BadInput")
	}

	currency := services[0].Currency
	var originalMinor int64
	var durationMinutes int
	for _, svc := range services {
		if svc.Currency != currency {
			return Snapshot{}, ErrMixedCurrency
		}
		originalMinor += svc.PriceMinor
		durationMinutes += effectiveServiceDuration(svc.DurationMinutes, speeds[svc.ID])
	}

	var discountMinor int64
	var discountPercent int
	if paymentMethod == models.PaymentMethodOnline && policy.OnlineEnabled && policy.OnlineDiscountPercent > 0 {
		discountPercent = policy.OnlineDiscountPercent
		discountMinor = originalMinor * int64(discountPercent) / 100
	}

	return Snapshot{
		OriginalMinor:            originalMinor,
		FinalMinor:               originalMinor - discountMinor,
		DiscountMinor:            discountMinor,
		DiscountPercent:          discountPercent,
		Currency:                 currency,
		EffectiveDurationMinutes: durationMinutes,
	}, nil
}

// effectiveServiceDuration rounds duration*speed to the nearest minute,
// half away from zero, matching round() semantics over positive inputs.
func effectiveServiceDuration(durationMinutes int, speed float64) int {
	if speed <= 0 {
		speed = 1.0
	}
	scaled := float64(durationMinutes) * speed
	return int(scaled + 0.5)
}
