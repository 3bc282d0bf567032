package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saloncore/booking-core/internal/availability"
	"github.com/saloncore/booking-core/internal/catalog"
	"github.com/saloncore/booking-core/internal/handlers"
	"github.com/saloncore/booking-core/internal/models"
	"github.com/saloncore/booking-core/internal/repository"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type AvailabilityHandlerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
}

func (s *AvailabilityHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(
		&models.Service{}, &models.Staff{}, &models.StaffService{},
		&models.WorkingWindow{}, &models.Break{}, &models.Booking{}, &models.Policy{},
	))
	s.db = db
	s.Require().NoError(db.Create(&models.Policy{
		ID: models.SingletonPolicyID, LeadTimeMinutes: 0, FutureWindowDays: 90,
		SlotGridMinutes: 15, Currency: "USD", BusinessTZ: "UTC",
	}).Error)
	s.Require().NoError(db.Create(&models.Staff{ID: "staff1", DisplayName: "Stylist", IsActive: true}).Error)
	s.Require().NoError(db.Create(&models.Service{
		ID: "svc1", Name: "Cut", DurationMinutes: 30, PriceMinor: 5000,
		Currency: "USD", RequiredSkill: "cut", IsVisible: true,
	}).Error)
	s.Require().NoError(db.Create(&models.StaffService{StaffID: "staff1", ServiceID: "svc1", Speed: 1.0}).Error)
	s.Require().NoError(db.Create(&models.WorkingWindow{StaffID: "staff1", Weekday: models.Monday, OpenTime: "09:00", CloseTime: "12:00"}).Error)

	catalogRepo := repository.NewCatalogRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	cat := catalog.New(catalogRepo, nil, 0, nil)
	engine := availability.New(cat, bookingRepo)
	h := handlers.NewAvailabilityHandler(engine, cat, bookingRepo, policyRepo, nil)

	r := gin.New()
	r.GET("/availability/slots", h.Slots)
	r.GET("/quote", h.Quote)
	r.GET("/availability/check", h.CheckSlot)
	s.router = r
}

func (s *AvailabilityHandlerTestSuite) TestSlots_MissingServiceIDs_ReturnsBadInput() {
	req := httptest.NewRequest(http.MethodGet, "/availability/slots?staff_id=staff1&local_date=2026-08-03", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *AvailabilityHandlerTestSuite) TestSlots_ReturnsSlotsForWorkingWindow() {
	// The handler filters slots against the real clock, so query the next
	// Monday after today rather than a fixed calendar date.
	monday := time.Now().UTC().AddDate(0, 0, 1)
	for monday.Weekday() != time.Monday {
		monday = monday.AddDate(0, 0, 1)
	}
	req := httptest.NewRequest(http.MethodGet, "/availability/slots?staff_id=staff1&service_ids=svc1&local_date="+monday.Format("2006-01-02"), nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Slots []string `json:"slots"`
		} `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.True(body.Success)
	s.NotEmpty(body.Data.Slots)
}

func (s *AvailabilityHandlerTestSuite) TestQuote_UnknownServiceReturnsBadInput() {
	req := httptest.NewRequest(http.MethodGet, "/quote?service_ids=does-not-exist", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *AvailabilityHandlerTestSuite) TestQuote_KnownServiceReturnsSnapshot() {
	req := httptest.NewRequest(http.MethodGet, "/quote?service_ids=svc1", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			OriginalMinor int64 `json:"OriginalMinor"`
		} `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal(int64(5000), body.Data.OriginalMinor)
}

func (s *AvailabilityHandlerTestSuite) TestCheckSlot_UnqualifiedStaffReturnsNoSkillMatch() {
	s.Require().NoError(s.db.Create(&models.Staff{ID: "staff2", DisplayName: "Apprentice", IsActive: true}).Error)
	req := httptest.NewRequest(http.MethodGet, "/availability/check?staff_id=staff2&service_ids=svc1&start=2026-08-03T09:00:00Z", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *AvailabilityHandlerTestSuite) TestCheckSlot_FreeSlotReportsAvailable() {
	req := httptest.NewRequest(http.MethodGet, "/availability/check?staff_id=staff1&service_ids=svc1&start=2026-08-03T09:00:00Z", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Available bool `json:"available"`
		} `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.True(body.Data.Available)
}

func TestAvailabilityHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(AvailabilityHandlerTestSuite))
}
