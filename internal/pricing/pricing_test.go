package pricing_test

import (
	"testing"

	"github.com/saloncore/booking-core/internal/catalog"
	"github.com/saloncore/booking-core/internal/models"
	"github.com/saloncore/booking-core/internal/pricing"
	"github.com/stretchr/testify/assert"
)

func policyWithDiscount(percent int) *models.Policy {
	return &models.Policy{
		OnlineEnabled:         true,
		OnlineDiscountPercent: percent,
	}
}

// uniformSpeed builds a speeds map applying the same speed to every service
// in the bundle, for tests that don't care about per-service variation.
func uniformSpeed(services []catalog.ServiceView, speed float64) map[string]float64 {
	speeds := make(map[string]float64, len(services))
	for _, svc := range services {
		speeds[svc.ID] = speed
	}
	return speeds
}

func TestQuote_SingleServiceCash(t *testing.T) {
	services := []catalog.ServiceView{
		{ID: "svc1", DurationMinutes: 60, PriceMinor: 10000, Currency: "USD"},
	}
	snap, err := pricing.Quote(services, uniformSpeed(services, 1.0), models.PaymentMethodCash, policyWithDiscount(10))
	assert.NoError(t, err)
	assert.Equal(t, int64(10000), snap.OriginalMinor)
	assert.Equal(t, int64(10000), snap.FinalMinor)
	assert.Equal(t, 0, snap.DiscountPercent)
	assert.Equal(t, 60, snap.EffectiveDurationMinutes)
}

func TestQuote_OnlineDiscountApplies(t *testing.T) {
	services := []catalog.ServiceView{
		{ID: "svc1", DurationMinutes: 60, PriceMinor: 10000, Currency: "USD"},
	}
	snap, err := pricing.Quote(services, uniformSpeed(services, 1.0), models.PaymentMethodOnline, policyWithDiscount(10))
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), snap.DiscountMinor)
	assert.Equal(t, int64(9000), snap.FinalMinor)
	assert.Equal(t, 10, snap.DiscountPercent)
}

func TestQuote_OnlineDiscountDisabled(t *testing.T) {
	services := []catalog.ServiceView{
		{ID: "svc1", DurationMinutes: 60, PriceMinor: 10000, Currency: "USD"},
	}
	p := policyWithDiscount(10)
	p.OnlineEnabled = false
	snap, err := pricing.Quote(services, uniformSpeed(services, 1.0), models.PaymentMethodOnline, p)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), snap.DiscountMinor)
	assert.Equal(t, int64(10000), snap.FinalMinor)
}

func TestQuote_StaffSpeedScalesDuration(t *testing.T) {
	services := []catalog.ServiceView{
		{ID: "svc1", DurationMinutes: 60, PriceMinor: 10000, Currency: "USD"},
	}
	snap, err := pricing.Quote(services, uniformSpeed(services, 0.5), models.PaymentMethodCash, policyWithDiscount(0))
	assert.NoError(t, err)
	assert.Equal(t, 30, snap.EffectiveDurationMinutes)
}

func TestQuote_BundleSumsAcrossServices(t *testing.T) {
	services := []catalog.ServiceView{
		{ID: "svc1", DurationMinutes: 30, PriceMinor: 3000, Currency: "USD"},
		{ID: "svc2", DurationMinutes: 45, PriceMinor: 5000, Currency: "USD"},
	}
	snap, err := pricing.Quote(services, uniformSpeed(services, 1.0), models.PaymentMethodCash, policyWithDiscount(0))
	assert.NoError(t, err)
	assert.Equal(t, int64(8000), snap.OriginalMinor)
	assert.Equal(t, 75, snap.EffectiveDurationMinutes)
}

func TestQuote_BundleAppliesPerServiceSpeed(t *testing.T) {
	services := []catalog.ServiceView{
		{ID: "svc1", DurationMinutes: 30, PriceMinor: 3000, Currency: "USD"},
		{ID: "svc2", DurationMinutes: 40, PriceMinor: 5000, Currency: "USD"},
	}
	speeds := map[string]float64{"svc1": 2.0, "svc2": 0.5}
	snap, err := pricing.Quote(services, speeds, models.PaymentMethodCash, policyWithDiscount(0))
	assert.NoError(t, err)
	// svc1: 30*2.0=60, svc2: 40*0.5=20 -> 80, not 70 (uniform svc1 speed) or 35 (uniform svc2 speed)
	assert.Equal(t, 80, snap.EffectiveDurationMinutes)
}

func TestQuote_MissingSpeedEntryTreatedAsOne(t *testing.T) {
	services := []catalog.ServiceView{
		{ID: "svc1", DurationMinutes: 30, PriceMinor: 3000, Currency: "USD"},
		{ID: "svc2", DurationMinutes: 40, PriceMinor: 5000, Currency: "USD"},
	}
	speeds := map[string]float64{"svc1": 2.0}
	snap, err := pricing.Quote(services, speeds, models.PaymentMethodCash, policyWithDiscount(0))
	assert.NoError(t, err)
	// svc1: 30*2.0=60, svc2 has no entry -> speed 1.0 -> 40 -> 100
	assert.Equal(t, 100, snap.EffectiveDurationMinutes)
}

func TestQuote_MixedCurrencyRejected(t *testing.T) {
	services := []catalog.ServiceView{
		{ID: "svc1", DurationMinutes: 30, PriceMinor: 3000, Currency: "USD"},
		{ID: "svc2", DurationMinutes: 30, PriceMinor: 3000, Currency: "EUR"},
	}
	_, err := pricing.Quote(services, uniformSpeed(services, 1.0), models.PaymentMethodCash, policyWithDiscount(0))
	assert.ErrorIs(t, err, pricing.ErrMixedCurrency)
}

func TestQuote_EmptyBundleRejected(t *testing.T) {
	_, err := pricing.Quote(nil, map[string]float64{}, models.PaymentMethodCash, policyWithDiscount(0))
	assert.Error(t, err)
}

func TestQuote_ZeroOrNegativeSpeedTreatedAsOne(t *testing.T) {
	services := []catalog.ServiceView{
		{ID: "svc1", DurationMinutes: 60, PriceMinor: 10000, Currency: "USD"},
	}
	snap, err := pricing.Quote(services, uniformSpeed(services, 0), models.PaymentMethodCash, policyWithDiscount(0))
	assert.NoError(t, err)
	assert.Equal(t, 60, snap.EffectiveDurationMinutes)
}
