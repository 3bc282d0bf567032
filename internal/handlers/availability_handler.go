package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saloncore/booking-core/internal/availability"
	"github.com/saloncore/booking-core/internal/catalog"
	"github.com/saloncore/booking-core/internal/models"
	"github.com/saloncore/booking-core/internal/pricing"
	"github.com/saloncore/booking-core/internal/repository"
	"github.com/saloncore/booking-core/pkg/logger"
)

// AvailabilityHandler serves AvailableDays, Slots, Quote, and CheckSlot.
type AvailabilityHandler struct {
	engine      *availability.Engine
	catalog     *catalog.Catalog
	bookingRepo *repository.BookingRepository
	policyRepo  *repository.PolicyRepository
	logger      *logger.Logger
}

func NewAvailabilityHandler(engine *availability.Engine, cat *catalog.Catalog, bookingRepo *repository.BookingRepository, policyRepo *repository.PolicyRepository, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{engine: engine, catalog: cat, bookingRepo: bookingRepo, policyRepo: policyRepo, logger: log}
}

func (h *AvailabilityHandler) loadPolicyAndLocation(c *gin.Context) (*models.Policy, *time.Location, bool) {
	p, err := h.policyRepo.Get(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return nil, nil, false
	}
	loc, err := time.LoadLocation(p.BusinessTZ)
	if err != nil {
		loc = time.UTC
	}
	return p, loc, true
}

// AvailableDays handles GET /api/v1/availability/days.
func (h *AvailabilityHandler) AvailableDays(c *gin.Context) {
	serviceIDs := splitCSV(c.Query("service_ids"))
	if len(serviceIDs) == 0 {
		fail(c, http.StatusBadRequest, "BadInput", "service_ids is required")
		return
	}
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		fail(c, http.StatusBadRequest, "BadInput", "year is required")
		return
	}
	monthInt, err := strconv.Atoi(c.Query("month"))
	if err != nil || monthInt < 1 || monthInt > 12 {
		fail(c, http.StatusBadRequest, "BadInput", "month must be 1..12")
		return
	}

	p, loc, okLoaded := h.loadPolicyAndLocation(c)
	if !okLoaded {
		return
	}
	now := time.Now().UTC()
	staffID := c.Query("staff_id")

	var days []int
	if staffID == "" {
		days, err = h.engine.AvailableDaysAny(c.Request.Context(), serviceIDs, year, time.Month(monthInt), loc, now, p)
	} else {
		days, err = h.engine.AvailableDays(c.Request.Context(), staffID, year, time.Month(monthInt), serviceIDs, loc, now, p)
	}
	if err != nil {
		respondAvailabilityErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"days": days, "timezone": p.BusinessTZ})
}

// Slots handles GET /api/v1/availability/slots.
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	serviceIDs := splitCSV(c.Query("service_ids"))
	if len(serviceIDs) == 0 {
		fail(c, http.StatusBadRequest, "BadInput", "service_ids is required")
		return
	}
	dateStr := c.Query("local_date")
	if dateStr == "" {
		fail(c, http.StatusBadRequest, "BadInput", "local_date is required (YYYY-MM-DD)")
		return
	}

	p, loc, okLoaded := h.loadPolicyAndLocation(c)
	if !okLoaded {
		return
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		fail(c, http.StatusBadRequest, "BadInput", "local_date must be YYYY-MM-DD")
		return
	}
	now := time.Now().UTC()
	staffID := c.Query("staff_id")

	if staffID == "" {
		slots, err := h.engine.SlotsAny(c.Request.Context(), serviceIDs, date, loc, now, p)
		if err != nil {
			respondAvailabilityErr(c, err)
			return
		}
		ok(c, http.StatusOK, gin.H{"slots": slots, "timezone": p.BusinessTZ})
		return
	}

	slots, err := h.engine.Slots(c.Request.Context(), staffID, date, serviceIDs, loc, now, p)
	if err != nil {
		respondAvailabilityErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"slots": slots, "timezone": p.BusinessTZ})
}

// Quote handles GET /api/v1/quote.
func (h *AvailabilityHandler) Quote(c *gin.Context) {
	ctx := c.Request.Context()
	serviceIDs := splitCSV(c.Query("service_ids"))
	if len(serviceIDs) == 0 {
		fail(c, http.StatusBadRequest, "BadInput", "service_ids is required")
		return
	}
	staffID := c.Query("staff_id")
	paymentMethod := models.PaymentMethod(c.DefaultQuery("payment_method", string(models.PaymentMethodCash)))

	p, _, okLoaded := h.loadPolicyAndLocation(c)
	if !okLoaded {
		return
	}

	services, err := h.catalog.GetServices(ctx, serviceIDs)
	if err != nil {
		respondErr(c, err)
		return
	}
	bundle := make([]catalog.ServiceView, 0, len(serviceIDs))
	speeds := make(map[string]float64, len(serviceIDs))
	for _, id := range serviceIDs {
		svc, exists := services[id]
		if !exists {
			fail(c, http.StatusBadRequest, "NoSkillMatch", "unknown service "+id)
			return
		}
		if staffID != "" {
			has, staffSpeed, err := h.catalog.StaffSkill(ctx, staffID, id)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !has {
				fail(c, http.StatusBadRequest, "NoSkillMatch", "staff cannot perform "+id)
				return
			}
			speeds[id] = staffSpeed
		}
		bundle = append(bundle, svc)
	}

	snapshot, err := pricing.Quote(bundle, speeds, paymentMethod, p)
	if err != nil {
		fail(c, http.StatusBadRequest, "MixedCurrency", err.Error())
		return
	}
	ok(c, http.StatusOK, snapshot)
}

// CheckSlot handles GET /api/v1/availability/check, a fast pre-flight that
// reports whether a candidate start is currently free without acquiring
// any lock; callers must still treat Hold as the source of truth.
func (h *AvailabilityHandler) CheckSlot(c *gin.Context) {
	ctx := c.Request.Context()
	staffID := c.Query("staff_id")
	if staffID == "" {
		fail(c, http.StatusBadRequest, "BadInput", "staff_id is required")
		return
	}
	startStr := c.Query("start")
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		fail(c, http.StatusBadRequest, "BadInput", "start must be RFC-3339")
		return
	}
	serviceIDs := splitCSV(c.Query("service_ids"))
	if len(serviceIDs) == 0 {
		fail(c, http.StatusBadRequest, "BadInput", "service_ids is required")
		return
	}

	services, err := h.catalog.GetServices(ctx, serviceIDs)
	if err != nil {
		respondErr(c, err)
		return
	}
	durationMinutes := 0
	for i, id := range serviceIDs {
		svc, exists := services[id]
		if !exists {
			fail(c, http.StatusBadRequest, "NoSkillMatch", "unknown service "+id)
			return
		}
		has, speed, err := h.catalog.StaffSkill(ctx, staffID, id)
		if err != nil {
			respondErr(c, err)
			return
		}
		if !has {
			fail(c, http.StatusBadRequest, "NoSkillMatch", "staff cannot perform "+id)
			return
		}
		if speed <= 0 {
			speed = 1.0
		}
		scaled := float64(svc.DurationMinutes) * speed
		durationMinutes += int(scaled + 0.5)
		_ = i
	}
	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	overlapping, err := h.bookingRepo.FindOverlapping(ctx, nil, staffID, start, end, "")
	if err != nil {
		respondErr(c, err)
		return
	}
	if len(overlapping) > 0 {
		ok(c, http.StatusOK, gin.H{"available": false, "conflict": overlapping[0].ID})
		return
	}
	ok(c, http.StatusOK, gin.H{"available": true})
}

// respondAvailabilityErr maps availability.Engine's plain "NoSkillMatch: ..."
// errors onto the response envelope; the engine predates booking.Error and
// communicates via a string-prefixed sentinel instead.
func respondAvailabilityErr(c *gin.Context, err error) {
	if strings.HasPrefix(err.Error(), "NoSkillMatch") {
		fail(c, http.StatusBadRequest, "NoSkillMatch", err.Error())
		return
	}
	fail(c, http.StatusInternalServerError, "Internal", err.Error())
}
