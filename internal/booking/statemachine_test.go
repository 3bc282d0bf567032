package booking_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/saloncore/booking-core/internal/availability"
	"github.com/saloncore/booking-core/internal/booking"
	"github.com/saloncore/booking-core/internal/catalog"
	"github.com/saloncore/booking-core/internal/eventbus"
	"github.com/saloncore/booking-core/internal/models"
	"github.com/saloncore/booking-core/internal/payments"
	"github.com/saloncore/booking-core/internal/policy"
	"github.com/saloncore/booking-core/internal/repository"
	"github.com/saloncore/booking-core/pkg/logger"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// StateMachineTestSuite exercises the Hold/Finalize/Reschedule/Cancel
// protocol against a real Postgres database, since the staff-time-bucket
// lock is implemented with pg_advisory_xact_lock and has no sqlite
// equivalent.
type StateMachineTestSuite struct {
	suite.Suite
	db *gorm.DB
	sm *booking.StateMachine
}

func (s *StateMachineTestSuite) SetupSuite() {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=booking_core_test port=5432 sslmode=disable"
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		s.T().Skipf("postgres unavailable, skipping: %v", err)
	}
	s.Require().NoError(db.AutoMigrate(
		&models.Service{}, &models.Staff{}, &models.StaffService{},
		&models.WorkingWindow{}, &models.Break{},
		&models.Booking{}, &models.BookingService{}, &models.BookingEvent{},
		&models.Policy{},
	))
	s.db = db
}

func (s *StateMachineTestSuite) TearDownSuite() {
	if s.db != nil {
		sqlDB, _ := s.db.DB()
		sqlDB.Close()
	}
}

func (s *StateMachineTestSuite) SetupTest() {
	s.db.Exec("TRUNCATE booking_events, booking_services, bookings, staff_services, working_windows, breaks, services, staff, policies RESTART IDENTITY CASCADE")
	s.Require().NoError(s.db.Create(&models.Policy{
		ID: models.SingletonPolicyID, LeadTimeMinutes: 0, FutureWindowDays: 90,
		RescheduleLockHours: 3, CancelLockHours: 3, HoldTTLMinutes: 15,
		SlotGridMinutes: 15, Currency: "USD", BusinessTZ: "UTC",
	}).Error)

	log := logger.New("error")
	catalogRepo := repository.NewCatalogRepository(s.db)
	bookingRepo := repository.NewBookingRepository(s.db)
	policyRepo := repository.NewPolicyRepository(s.db)
	cache := repository.NewCacheRepository(nil)
	cat := catalog.New(catalogRepo, cache, 0, log)
	avail := availability.New(cat, bookingRepo)
	bus := eventbus.New(log)
	s.sm = booking.New(s.db, bookingRepo, policyRepo, cat, avail, payments.NewNullPayments(log), bus, log)
}

func (s *StateMachineTestSuite) seedStaffWithService(staffID, serviceID string) {
	s.Require().NoError(s.db.Create(&models.Staff{ID: staffID, DisplayName: "Stylist", IsActive: true}).Error)
	s.Require().NoError(s.db.Create(&models.Service{
		ID: serviceID, Name: "Cut", DurationMinutes: 30, PriceMinor: 5000,
		Currency: "USD", RequiredSkill: "cut", IsVisible: true,
	}).Error)
	s.Require().NoError(s.db.Create(&models.StaffService{StaffID: staffID, ServiceID: serviceID, Speed: 1.0}).Error)
}

func (s *StateMachineTestSuite) TestHold_CreatesReservedBooking() {
	s.seedStaffWithService("staff1", "svc1")
	start := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Minute)

	result, err := s.sm.Hold(context.Background(), booking.HoldRequest{
		StaffID:       "staff1",
		ServiceIDs:    []string{"svc1"},
		StartsAt:      start,
		PaymentMethod: models.PaymentMethodCash,
		ClientID:      "client1",
	})
	s.Require().NoError(err)
	s.Equal(models.BookingStatusReserved, result.Booking.Status)
	s.Equal(int64(5000), result.Snapshot.OriginalMinor)
	s.NotNil(result.Booking.HoldExpiresAt)
}

func (s *StateMachineTestSuite) TestHold_RejectsOverlap() {
	s.seedStaffWithService("staff1", "svc1")
	start := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Minute)

	_, err := s.sm.Hold(context.Background(), booking.HoldRequest{
		StaffID: "staff1", ServiceIDs: []string{"svc1"}, StartsAt: start,
		PaymentMethod: models.PaymentMethodCash, ClientID: "client1",
	})
	s.Require().NoError(err)

	_, err = s.sm.Hold(context.Background(), booking.HoldRequest{
		StaffID: "staff1", ServiceIDs: []string{"svc1"}, StartsAt: start.Add(10 * time.Minute),
		PaymentMethod: models.PaymentMethodCash, ClientID: "client2",
	})
	s.Require().Error(err)
	var bErr *booking.Error
	s.Require().ErrorAs(err, &bErr)
	s.Equal(booking.KindSlotUnavailable, bErr.Kind)
}

func (s *StateMachineTestSuite) TestHold_RejectsUnqualifiedStaff() {
	s.Require().NoError(s.db.Create(&models.Staff{ID: "staff1", DisplayName: "Stylist", IsActive: true}).Error)
	s.Require().NoError(s.db.Create(&models.Service{
		ID: "svc1", Name: "Cut", DurationMinutes: 30, PriceMinor: 5000,
		Currency: "USD", RequiredSkill: "cut", IsVisible: true,
	}).Error)

	_, err := s.sm.Hold(context.Background(), booking.HoldRequest{
		StaffID: "staff1", ServiceIDs: []string{"svc1"}, StartsAt: time.Now().UTC().Add(2 * time.Hour),
		PaymentMethod: models.PaymentMethodCash, ClientID: "client1",
	})
	s.Require().Error(err)
	var bErr *booking.Error
	s.Require().ErrorAs(err, &bErr)
	s.Equal(booking.KindNoSkillMatch, bErr.Kind)
}

func (s *StateMachineTestSuite) TestHold_ConcurrentRequestsForSameSlotOnlyOneSucceeds() {
	s.seedStaffWithService("staff1", "svc1")
	start := time.Now().UTC().Add(6 * time.Hour).Truncate(time.Minute)

	const attempts = 2
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := s.sm.Hold(context.Background(), booking.HoldRequest{
				StaffID: "staff1", ServiceIDs: []string{"svc1"}, StartsAt: start,
				PaymentMethod: models.PaymentMethodCash, ClientID: fmt.Sprintf("client%d", i),
			})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	successCount := 0
	for _, err := range errs {
		if err == nil {
			successCount++
			continue
		}
		var bErr *booking.Error
		s.Require().ErrorAs(err, &bErr)
		s.Equal(booking.KindSlotUnavailable, bErr.Kind)
	}
	s.Equal(1, successCount)
}

func (s *StateMachineTestSuite) TestFinalize_CashConfirmsImmediately() {
	s.seedStaffWithService("staff1", "svc1")
	start := time.Now().UTC().Add(2 * time.Hour)
	held, err := s.sm.Hold(context.Background(), booking.HoldRequest{
		StaffID: "staff1", ServiceIDs: []string{"svc1"}, StartsAt: start,
		PaymentMethod: models.PaymentMethodCash, ClientID: "client1",
	})
	s.Require().NoError(err)

	result, err := s.sm.Finalize(context.Background(), held.Booking.ID, models.PaymentMethodCash)
	s.Require().NoError(err)
	s.Equal(models.BookingStatusConfirmed, result.Booking.Status)
	s.Nil(result.Booking.HoldExpiresAt)
}

func (s *StateMachineTestSuite) TestCancel_ClientBlockedInsideLockWindow() {
	s.seedStaffWithService("staff1", "svc1")
	start := time.Now().UTC().Add(1 * time.Hour) // inside the 3h cancel lock window
	held, err := s.sm.Hold(context.Background(), booking.HoldRequest{
		StaffID: "staff1", ServiceIDs: []string{"svc1"}, StartsAt: start,
		PaymentMethod: models.PaymentMethodCash, ClientID: "client1",
	})
	s.Require().NoError(err)

	_, err = s.sm.Cancel(context.Background(), held.Booking.ID, policy.RoleClient, "client_requested")
	s.Require().Error(err)
	var bErr *booking.Error
	s.Require().ErrorAs(err, &bErr)
	s.Equal(booking.KindLockWindow, bErr.Kind)
}

func (s *StateMachineTestSuite) TestCancel_StaffBypassesLockWindow() {
	s.seedStaffWithService("staff1", "svc1")
	start := time.Now().UTC().Add(1 * time.Hour)
	held, err := s.sm.Hold(context.Background(), booking.HoldRequest{
		StaffID: "staff1", ServiceIDs: []string{"svc1"}, StartsAt: start,
		PaymentMethod: models.PaymentMethodCash, ClientID: "client1",
	})
	s.Require().NoError(err)

	updated, err := s.sm.Cancel(context.Background(), held.Booking.ID, policy.RoleStaff, "client_requested")
	s.Require().NoError(err)
	s.Equal(models.BookingStatusCancelled, updated.Status)
}

func (s *StateMachineTestSuite) TestReschedule_RejectsOverlapAtNewTime() {
	s.seedStaffWithService("staff1", "svc1")
	start1 := time.Now().UTC().Add(4 * time.Hour)
	start2 := time.Now().UTC().Add(8 * time.Hour)

	_, err := s.sm.Hold(context.Background(), booking.HoldRequest{
		StaffID: "staff1", ServiceIDs: []string{"svc1"}, StartsAt: start1,
		PaymentMethod: models.PaymentMethodCash, ClientID: "client1",
	})
	s.Require().NoError(err)

	held2, err := s.sm.Hold(context.Background(), booking.HoldRequest{
		StaffID: "staff1", ServiceIDs: []string{"svc1"}, StartsAt: start2,
		PaymentMethod: models.PaymentMethodCash, ClientID: "client2",
	})
	s.Require().NoError(err)

	_, err = s.sm.Reschedule(context.Background(), held2.Booking.ID, start1)
	s.Require().Error(err)
	var bErr *booking.Error
	s.Require().ErrorAs(err, &bErr)
	s.Equal(booking.KindSlotUnavailable, bErr.Kind)
}

func TestStateMachineTestSuite(t *testing.T) {
	suite.Run(t, new(StateMachineTestSuite))
}
