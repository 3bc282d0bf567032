package database

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/saloncore/booking-core/internal/config"
	"github.com/saloncore/booking-core/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect connects to the PostgreSQL database.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate runs database migrations and seeds the singleton policy row.
func Migrate(db *gorm.DB, defaults config.Policy) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create uuid extension: %w", err)
	}

	err := db.AutoMigrate(
		&models.Service{},
		&models.Staff{},
		&models.StaffService{},
		&models.WorkingWindow{},
		&models.Break{},
		&models.Policy{},
		&models.Booking{},
		&models.BookingService{},
		&models.BookingEvent{},
	)
	if err != nil {
		return fmt.Errorf("failed to run auto-migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	if err := seedPolicy(db, defaults); err != nil {
		return fmt.Errorf("failed to seed policy: %w", err)
	}

	return nil
}

// seedPolicy inserts the singleton policy row on first migration only; an
// existing row is left untouched so runtime-updated settings survive
// redeploys.
func seedPolicy(db *gorm.DB, d config.Policy) error {
	var count int64
	if err := db.Model(&models.Policy{}).Where("id = ?", models.SingletonPolicyID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	policy := models.Policy{
		ID:                    models.SingletonPolicyID,
		LeadTimeMinutes:       d.LeadTimeMinutes,
		FutureWindowDays:      d.FutureWindowDays,
		RescheduleLockHours:   d.RescheduleLockHours,
		CancelLockHours:       d.CancelLockHours,
		HoldTTLMinutes:        d.HoldTTLMinutes,
		PaymentGraceMinutes:   d.PaymentGraceMinutes,
		ReminderLeadMinutes:   d.ReminderLeadMinutes,
		SlotGridMinutes:       d.SlotGridMinutes,
		OnlineEnabled:         d.OnlineEnabled,
		OnlineDiscountPercent: d.OnlineDiscountPercent,
		Currency:              d.Currency,
		BusinessTZ:            d.BusinessTimezone,
	}
	return db.Create(&policy).Error
}

// createIndexes creates additional indexes beyond the struct-tag ones for
// the query patterns the availability and listing operations rely on.
func createIndexes(db *gorm.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_bookings_client_status ON bookings(client_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_bookings_status_starts_at ON bookings(status, starts_at)",
		"CREATE INDEX IF NOT EXISTS idx_bookings_hold_expires_at ON bookings(hold_expires_at) WHERE hold_expires_at IS NOT NULL",
		"CREATE INDEX IF NOT EXISTS idx_services_visible_skill ON services(is_visible, required_skill)",
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// ConnectRedis connects to Redis.
func ConnectRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	return client, nil
}
