package payments

import (
	"context"
	"fmt"

	"github.com/saloncore/booking-core/pkg/logger"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
)

// StripePayments implements Payments using Stripe PaymentIntents. A
// booking's invoice_ref is the PaymentIntent id.
type StripePayments struct {
	logger *logger.Logger
}

func NewStripePayments(secretKey string, log *logger.Logger) *StripePayments {
	stripe.Key = secretKey
	return &StripePayments{logger: log}
}

// CreateInvoice opens a PaymentIntent for amountMinor in currency and
// returns its id plus the client-facing checkout URL.
func (p *StripePayments) CreateInvoice(ctx context.Context, bookingID string, amountMinor int64, currency string) (Invoice, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
		Metadata: map[string]string{
			"booking_id": bookingID,
		},
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		p.logger.Error("stripe payment intent creation failed", "bookingId", bookingID, "error", err)
		return Invoice{}, fmt.Errorf("PaymentInitFailed: %w", err)
	}

	return Invoice{
		InvoiceRef:  pi.ID,
		ExternalURL: fmt.Sprintf("https://dashboard.stripe.com/payments/%s", pi.ID),
	}, nil
}

// VerifyPayment maps a PaymentIntent's status onto the port's
// VerificationStatus.
func (p *StripePayments) VerifyPayment(ctx context.Context, invoiceRef string) (VerificationStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(invoiceRef, params)
	if err != nil {
		return "", fmt.Errorf("PaymentVerificationFailed: %w", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusPaid, nil
	case stripe.PaymentIntentStatusCanceled:
		return StatusCancelled, nil
	case stripe.PaymentIntentStatusRequiresPaymentMethod, stripe.PaymentIntentStatusRequiresConfirmation, stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
		return StatusPending, nil
	default:
		return StatusFailed, nil
	}
}

// NullPayments is a no-op Payments adapter, used when no Stripe key is
// configured (dev environments where only cash bookings are exercised).
type NullPayments struct {
	logger *logger.Logger
}

func NewNullPayments(log *logger.Logger) *NullPayments {
	return &NullPayments{logger: log}
}

func (p *NullPayments) CreateInvoice(ctx context.Context, bookingID string, amountMinor int64, currency string) (Invoice, error) {
	p.logger.Debug("invoice creation skipped (no payment provider configured)", "bookingId", bookingID)
	return Invoice{InvoiceRef: "null-" + bookingID, ExternalURL: ""}, nil
}

func (p *NullPayments) VerifyPayment(ctx context.Context, invoiceRef string) (VerificationStatus, error) {
	return StatusPending, nil
}
