// Package payments defines the external payment provider port consumed
// by the booking core, plus a Stripe-backed adapter.
package payments

import "context"

// VerificationStatus is the provider-reported state of an invoice.
type VerificationStatus string

const (
	StatusPaid      VerificationStatus = "paid"
	StatusPending   VerificationStatus = "pending"
	StatusFailed    VerificationStatus = "failed"
	StatusCancelled VerificationStatus = "cancelled"
)

// Invoice is what CreateInvoice hands back to the caller.
type Invoice struct {
	InvoiceRef  string
	ExternalURL string
}

// Payments is the minimal port the booking core consumes; it never sees
// provider-specific types.
type Payments interface {
	CreateInvoice(ctx context.Context, bookingID string, amountMinor int64, currency string) (Invoice, error)
	VerifyPayment(ctx context.Context, invoiceRef string) (VerificationStatus, error)
}
