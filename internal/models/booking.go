package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusReserved       BookingStatus = "RESERVED"
	BookingStatusPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingStatusConfirmed      BookingStatus = "CONFIRMED"
	BookingStatusPaid           BookingStatus = "PAID"
	BookingStatusDone           BookingStatus = "DONE"
	BookingStatusCancelled      BookingStatus = "CANCELLED"
	BookingStatusExpired        BookingStatus = "EXPIRED"
	BookingStatusNoShow         BookingStatus = "NO_SHOW"
)

// TerminalStatuses enumerates states with no further transitions except Rate.
var TerminalStatuses = map[BookingStatus]bool{
	BookingStatusCancelled: true,
	BookingStatusExpired:   true,
	BookingStatusDone:      true,
	BookingStatusNoShow:    true,
}

// NonTerminalForOverlap is the set of statuses that count as occupying the
// staff member's calendar for the no-overlap invariant.
var NonTerminalForOverlap = []BookingStatus{
	BookingStatusReserved,
	BookingStatusPendingPayment,
	BookingStatusConfirmed,
	BookingStatusPaid,
	BookingStatusDone,
}

// PaymentMethod is how the client intends to settle the booking.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodOnline PaymentMethod = "online"
)

// Booking is a client's reservation of a staff member's time for a bundle
// of services. PricingSnapshot fields are set by Hold and are not changed
// by any later operation.
type Booking struct {
	ID         string        `gorm:"type:uuid;primaryKey" json:"id"`
	StaffID    string        `gorm:"index:idx_booking_staff_time,priority:1;type:uuid;not null" json:"staffId"`
	ClientID   string        `gorm:"index;type:varchar(255);not null" json:"clientId"`
	StartsAt   time.Time     `gorm:"index:idx_booking_staff_time,priority:2;not null" json:"startsAt"`
	EndsAt     time.Time     `gorm:"not null" json:"endsAt"`
	Status     BookingStatus `gorm:"type:varchar(30);index;not null" json:"status"`

	PaymentMethod PaymentMethod `gorm:"type:varchar(20);not null" json:"paymentMethod"`
	InvoiceRef    *string       `gorm:"type:varchar(255);index" json:"invoiceRef,omitempty"`

	OriginalMinor   int64  `gorm:"not null" json:"originalMinor"`
	FinalMinor      int64  `gorm:"not null" json:"finalMinor"`
	DiscountMinor   int64  `gorm:"not null;default:0" json:"discountMinor"`
	DiscountPercent int    `gorm:"not null;default:0" json:"discountPercent"`
	Currency        string `gorm:"type:varchar(10);not null" json:"currency"`

	HoldExpiresAt       *time.Time `json:"holdExpiresAt,omitempty"`
	RescheduleCount     int        `gorm:"not null;default:0" json:"rescheduleCount"`
	Rating              *int       `json:"rating,omitempty"`
	ConfirmedAt         *time.Time `json:"confirmedAt,omitempty"`
	CancelledAt         *time.Time `json:"cancelledAt,omitempty"`
	DoneAt              *time.Time `json:"doneAt,omitempty"`
	CancellationReason  string     `gorm:"type:varchar(30)" json:"cancellationReason,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Booking) TableName() string { return "bookings" }

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

// IsTerminal reports whether the booking has reached a state with no
// further transitions (other than Rate on DONE).
func (b *Booking) IsTerminal() bool {
	return TerminalStatuses[b.Status]
}

// BookingService is one row of a booking's ordered service bundle.
type BookingService struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID string `gorm:"index;type:uuid;not null" json:"bookingId"`
	ServiceID string `gorm:"type:uuid;not null" json:"serviceId"`
	Position  int    `gorm:"not null" json:"position"`
}

func (BookingService) TableName() string { return "booking_services" }

// BookingEvent is an append-only audit row written in the same transaction
// as each state transition, independent of whether the in-process event
// bus or NATS publisher successfully delivered the corresponding domain
// event.
type BookingEvent struct {
	ID            uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID     string        `gorm:"index;type:uuid;not null" json:"bookingId"`
	FromStatus    BookingStatus `gorm:"type:varchar(30)" json:"fromStatus"`
	ToStatus      BookingStatus `gorm:"type:varchar(30);not null" json:"toStatus"`
	CorrelationID string        `gorm:"type:uuid;not null" json:"correlationId"`
	CreatedAt     time.Time     `json:"createdAt"`
}

func (BookingEvent) TableName() string { return "booking_events" }
