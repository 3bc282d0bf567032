package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/saloncore/booking-core/internal/models"
	"gorm.io/gorm"
)

// BookingRepository handles booking data operations, including the
// Postgres advisory locks that serialize concurrent writers against the
// same staff member or the same booking.
type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// LockStaffTimeBucket takes a transaction-scoped advisory lock keyed on the
// staff id and the UTC day the candidate booking falls on, serializing
// every writer contending for that staff member's calendar on that day.
// The lock is released automatically when tx commits or rolls back.
func (r *BookingRepository) LockStaffTimeBucket(ctx context.Context, tx *gorm.DB, staffID string, bucket time.Time) error {
	key := lockKey(staffID, bucket.UTC().Format("2006-01-02"))
	if err := tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", key).Error; err != nil {
		return fmt.Errorf("error acquiring staff time bucket lock: %w", err)
	}
	return nil
}

// LockBooking takes a transaction-scoped advisory lock keyed on the
// booking id, used by lifecycle workers to avoid two workers racing the
// same transition (e.g. HoldExpirer and a concurrent Finalize call). The
// lock is released automatically when tx commits or rolls back.
func (r *BookingRepository) LockBooking(ctx context.Context, tx *gorm.DB, bookingID string) error {
	key := lockKey("booking", bookingID)
	if err := tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", key).Error; err != nil {
		return fmt.Errorf("error acquiring booking lock: %w", err)
	}
	return nil
}

// lockKey hashes a namespaced string key down to the int64 that
// pg_advisory_xact_lock takes as its single-key form.
func lockKey(namespace, id string) int64 {
	h := fnv.New64a()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(id))
	return int64(h.Sum64())
}

// CreateBooking persists a new booking and its ordered service bundle in
// one call; callers are expected to already be inside a transaction that
// holds the staff time bucket lock.
func (r *BookingRepository) CreateBooking(ctx context.Context, tx *gorm.DB, booking *models.Booking, bundle []models.BookingService) error {
	if err := tx.WithContext(ctx).Create(booking).Error; err != nil {
		return fmt.Errorf("error creating booking: %w", err)
	}
	for i := range bundle {
		bundle[i].BookingID = booking.ID
	}
	if len(bundle) > 0 {
		if err := tx.WithContext(ctx).Create(&bundle).Error; err != nil {
			return fmt.Errorf("error creating booking services: %w", err)
		}
	}
	return nil
}

// GetBookingByID retrieves a booking by its id.
func (r *BookingRepository) GetBookingByID(ctx context.Context, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).First(&booking, "id = ?", bookingID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching booking %s: %w", bookingID, err)
	}
	return &booking, nil
}

// GetBookingForUpdate retrieves a booking inside tx, intended to be called
// after LockBooking so the row reflects the latest committed state.
func (r *BookingRepository) GetBookingForUpdate(ctx context.Context, tx *gorm.DB, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	if err := tx.WithContext(ctx).First(&booking, "id = ?", bookingID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching booking %s: %w", bookingID, err)
	}
	return &booking, nil
}

// GetBookingBundle returns the ordered service bundle for a booking.
func (r *BookingRepository) GetBookingBundle(ctx context.Context, bookingID string) ([]models.BookingService, error) {
	var rows []models.BookingService
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("position asc").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching booking bundle: %w", err)
	}
	return rows, nil
}

// ListByClient retrieves a client's bookings, filtered by mode and
// paginated. mode "upcoming" returns non-terminal bookings with a future
// start time; mode "history" returns terminal or past bookings.
func (r *BookingRepository) ListByClient(ctx context.Context, clientID, mode string, limit, offset int) ([]models.Booking, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Booking{}).Where("client_id = ?", clientID)
	query = applyListMode(query, mode)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting client bookings: %w", err)
	}

	var bookings []models.Booking
	order := "starts_at asc"
	if mode == "history" {
		order = "starts_at desc"
	}
	if err := query.Order(order).Limit(limit).Offset(offset).Find(&bookings).Error; err != nil {
		return nil, 0, fmt.Errorf("error fetching client bookings: %w", err)
	}
	return bookings, total, nil
}

// ListByStaff mirrors ListByClient, scoped to a staff member's calendar.
func (r *BookingRepository) ListByStaff(ctx context.Context, staffID, mode string, limit, offset int) ([]models.Booking, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Booking{}).Where("staff_id = ?", staffID)
	query = applyListMode(query, mode)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("error counting staff bookings: %w", err)
	}

	var bookings []models.Booking
	order := "starts_at asc"
	if mode == "history" {
		order = "starts_at desc"
	}
	if err := query.Order(order).Limit(limit).Offset(offset).Find(&bookings).Error; err != nil {
		return nil, 0, fmt.Errorf("error fetching staff bookings: %w", err)
	}
	return bookings, total, nil
}

func applyListMode(query *gorm.DB, mode string) *gorm.DB {
	switch mode {
	case "upcoming":
		return query.Where("status NOT IN (?) AND starts_at >= ?", terminalStatuses(), time.Now().UTC())
	case "history":
		return query.Where("status IN (?) OR starts_at < ?", terminalStatuses(), time.Now().UTC())
	default:
		return query
	}
}

func terminalStatuses() []models.BookingStatus {
	return []models.BookingStatus{
		models.BookingStatusCancelled,
		models.BookingStatusExpired,
		models.BookingStatusDone,
		models.BookingStatusNoShow,
	}
}

// FindOverlapping returns bookings occupying the staff member's calendar
// that overlap [startsAt, endsAt), excluding excludeBookingID (used by
// Reschedule to ignore the booking being moved). Only statuses in
// models.NonTerminalForOverlap count as occupying the calendar. Pass tx
// to run inside an existing transaction (e.g. holding the staff time
// bucket lock); pass nil to read against the repository's own handle.
func (r *BookingRepository) FindOverlapping(ctx context.Context, tx *gorm.DB, staffID string, startsAt, endsAt time.Time, excludeBookingID string) ([]models.Booking, error) {
	db := tx
	if db == nil {
		db = r.db
	}
	var overlapping []models.Booking
	query := db.WithContext(ctx).
		Where("staff_id = ?", staffID).
		Where("status IN (?)", models.NonTerminalForOverlap).
		Where("starts_at < ? AND ends_at > ?", endsAt, startsAt)
	if excludeBookingID != "" {
		query = query.Where("id <> ?", excludeBookingID)
	}
	if err := query.Find(&overlapping).Error; err != nil {
		return nil, fmt.Errorf("error finding overlapping bookings: %w", err)
	}
	return overlapping, nil
}

// AppendEvent writes an audit row for a status transition in the same
// transaction as the transition itself.
func (r *BookingRepository) AppendEvent(ctx context.Context, tx *gorm.DB, event *models.BookingEvent) error {
	if err := tx.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("error appending booking event: %w", err)
	}
	return nil
}

// ExpiredHolds returns up to limit bookings whose hold has lapsed and are
// still in a hold-bearing status, for the HoldExpirer worker.
func (r *BookingRepository) ExpiredHolds(ctx context.Context, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("status IN (?) AND hold_expires_at IS NOT NULL AND hold_expires_at < ?",
			[]models.BookingStatus{models.BookingStatusReserved, models.BookingStatusPendingPayment},
			time.Now().UTC()).
		Order("hold_expires_at asc").
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching expired holds: %w", err)
	}
	return bookings, nil
}

// DueReminders returns up to limit confirmed/paid bookings starting within
// leadMinutes, for the ReminderDispatcher worker. It does not filter out
// bookings already reminded; the worker deduplicates them through
// CacheRepository.MarkReminded (redis) rather than a DB column.
func (r *BookingRepository) DueReminders(ctx context.Context, leadMinutes, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	cutoff := time.Now().UTC().Add(time.Duration(leadMinutes) * time.Minute)
	err := r.db.WithContext(ctx).
		Where("status IN (?) AND starts_at <= ? AND starts_at > ?",
			[]models.BookingStatus{models.BookingStatusConfirmed, models.BookingStatusPaid},
			cutoff, time.Now().UTC()).
		Order("starts_at asc").
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching due reminders: %w", err)
	}
	return bookings, nil
}

// PendingPaymentBookings returns up to limit bookings that have sat in
// PENDING_PAYMENT since before olderThan, for the PaymentReconciler worker.
// Bookings younger than the grace period are skipped so a payment provider
// that hasn't confirmed yet isn't raced.
func (r *BookingRepository) PendingPaymentBookings(ctx context.Context, olderThan time.Time, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at <= ?", models.BookingStatusPendingPayment, olderThan).
		Order("updated_at asc").
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching pending payment bookings: %w", err)
	}
	return bookings, nil
}
