// Package testing provides test data factories for the booking core.
package testing

import (
	"time"

	"github.com/google/uuid"
	"github.com/saloncore/booking-core/internal/models"
)

// NewUUID generates a new UUID string for testing.
func NewUUID() string {
	return uuid.New().String()
}

// ServiceFactory builds a models.Service with sensible defaults.
type ServiceFactory struct {
	service models.Service
}

func NewServiceFactory() *ServiceFactory {
	return &ServiceFactory{service: models.Service{
		ID:              NewUUID(),
		Name:            "Haircut",
		DurationMinutes: 45,
		PriceMinor:      5000,
		Currency:        "USD",
		RequiredSkill:   "haircut",
		IsVisible:       true,
	}}
}

func (f *ServiceFactory) WithID(id string) *ServiceFactory {
	f.service.ID = id
	return f
}

func (f *ServiceFactory) WithName(name string) *ServiceFactory {
	f.service.Name = name
	return f
}

func (f *ServiceFactory) WithDuration(minutes int) *ServiceFactory {
	f.service.DurationMinutes = minutes
	return f
}

func (f *ServiceFactory) WithPrice(minor int64) *ServiceFactory {
	f.service.PriceMinor = minor
	return f
}

func (f *ServiceFactory) WithSkill(skill string) *ServiceFactory {
	f.service.RequiredSkill = skill
	return f
}

func (f *ServiceFactory) Hidden() *ServiceFactory {
	f.service.IsVisible = false
	return f
}

func (f *ServiceFactory) Build() models.Service {
	return f.service
}

// StaffFactory builds a models.Staff with sensible defaults.
type StaffFactory struct {
	staff models.Staff
}

func NewStaffFactory() *StaffFactory {
	return &StaffFactory{staff: models.Staff{
		ID:          NewUUID(),
		DisplayName: "Test Stylist",
		IsActive:    true,
	}}
}

func (f *StaffFactory) WithID(id string) *StaffFactory {
	f.staff.ID = id
	return f
}

func (f *StaffFactory) WithName(name string) *StaffFactory {
	f.staff.DisplayName = name
	return f
}

func (f *StaffFactory) Inactive() *StaffFactory {
	f.staff.IsActive = false
	return f
}

func (f *StaffFactory) Build() models.Staff {
	return f.staff
}

// WorkingWindowFactory builds a models.WorkingWindow for a staff member.
type WorkingWindowFactory struct {
	window models.WorkingWindow
}

func NewWorkingWindowFactory(staffID string) *WorkingWindowFactory {
	return &WorkingWindowFactory{window: models.WorkingWindow{
		StaffID:   staffID,
		Weekday:   models.Monday,
		OpenTime:  "09:00",
		CloseTime: "18:00",
	}}
}

func (f *WorkingWindowFactory) OnDay(day models.Weekday) *WorkingWindowFactory {
	f.window.Weekday = day
	return f
}

func (f *WorkingWindowFactory) Between(open, close string) *WorkingWindowFactory {
	f.window.OpenTime = open
	f.window.CloseTime = close
	return f
}

func (f *WorkingWindowFactory) Build() models.WorkingWindow {
	return f.window
}

// BookingFactory builds a models.Booking with sensible defaults: a reserved
// booking starting tomorrow for 45 minutes, paid in cash.
type BookingFactory struct {
	booking models.Booking
}

func NewBookingFactory() *BookingFactory {
	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
	return &BookingFactory{booking: models.Booking{
		ID:            NewUUID(),
		StaffID:       NewUUID(),
		ClientID:      NewUUID(),
		StartsAt:      start,
		EndsAt:        start.Add(45 * time.Minute),
		Status:        models.BookingStatusReserved,
		PaymentMethod: models.PaymentMethodCash,
		OriginalMinor: 5000,
		FinalMinor:    5000,
		Currency:      "USD",
	}}
}

func (f *BookingFactory) WithID(id string) *BookingFactory {
	f.booking.ID = id
	return f
}

func (f *BookingFactory) WithStaffID(staffID string) *BookingFactory {
	f.booking.StaffID = staffID
	return f
}

func (f *BookingFactory) WithClientID(clientID string) *BookingFactory {
	f.booking.ClientID = clientID
	return f
}

func (f *BookingFactory) WithTimeSlot(start, end time.Time) *BookingFactory {
	f.booking.StartsAt = start
	f.booking.EndsAt = end
	return f
}

func (f *BookingFactory) WithStatus(status models.BookingStatus) *BookingFactory {
	f.booking.Status = status
	return f
}

func (f *BookingFactory) WithPaymentMethod(method models.PaymentMethod) *BookingFactory {
	f.booking.PaymentMethod = method
	return f
}

func (f *BookingFactory) WithPricing(originalMinor, finalMinor int64) *BookingFactory {
	f.booking.OriginalMinor = originalMinor
	f.booking.FinalMinor = finalMinor
	return f
}

func (f *BookingFactory) AsConfirmed() *BookingFactory {
	f.booking.Status = models.BookingStatusConfirmed
	return f
}

func (f *BookingFactory) AsCancelled() *BookingFactory {
	f.booking.Status = models.BookingStatusCancelled
	return f
}

func (f *BookingFactory) Build() models.Booking {
	return f.booking
}

// PolicyFactory builds a models.Policy with the platform's default settings.
type PolicyFactory struct {
	policy models.Policy
}

func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{policy: models.Policy{
		ID:                    models.SingletonPolicyID,
		LeadTimeMinutes:       0,
		FutureWindowDays:      60,
		RescheduleLockHours:   3,
		CancelLockHours:       3,
		HoldTTLMinutes:        15,
		PaymentGraceMinutes:   30,
		ReminderLeadMinutes:   0,
		SlotGridMinutes:       15,
		OnlineEnabled:         true,
		OnlineDiscountPercent: 0,
		Currency:              "USD",
		BusinessTZ:            "UTC",
	}}
}

func (f *PolicyFactory) WithHoldTTL(minutes int) *PolicyFactory {
	f.policy.HoldTTLMinutes = minutes
	return f
}

func (f *PolicyFactory) WithLockHours(reschedule, cancel int) *PolicyFactory {
	f.policy.RescheduleLockHours = reschedule
	f.policy.CancelLockHours = cancel
	return f
}

func (f *PolicyFactory) WithOnlineDiscount(percent int) *PolicyFactory {
	f.policy.OnlineDiscountPercent = percent
	return f
}

func (f *PolicyFactory) WithTimezone(tz string) *PolicyFactory {
	f.policy.BusinessTZ = tz
	return f
}

func (f *PolicyFactory) Build() models.Policy {
	return f.policy
}
