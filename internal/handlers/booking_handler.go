package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saloncore/booking-core/internal/booking"
	"github.com/saloncore/booking-core/internal/middleware"
	"github.com/saloncore/booking-core/internal/models"
	"github.com/saloncore/booking-core/internal/policy"
	"github.com/saloncore/booking-core/internal/repository"
	"github.com/saloncore/booking-core/pkg/logger"
)

// BookingHandler exposes the BookingStateMachine's write operations plus
// the read-side booking list, over HTTP.
type BookingHandler struct {
	sm          *booking.StateMachine
	bookingRepo *repository.BookingRepository
	logger      *logger.Logger
}

func NewBookingHandler(sm *booking.StateMachine, bookingRepo *repository.BookingRepository, log *logger.Logger) *BookingHandler {
	return &BookingHandler{sm: sm, bookingRepo: bookingRepo, logger: log}
}

type holdRequestDTO struct {
	StaffID       string               `json:"staffId" binding:"required"`
	ServiceIDs    []string             `json:"serviceIds" binding:"required"`
	StartsAt      time.Time            `json:"startsAt" binding:"required"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod" binding:"required"`
}

// Hold handles POST /api/v1/bookings/hold.
func (h *BookingHandler) Hold(c *gin.Context) {
	var req holdRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "BadInput", err.Error())
		return
	}
	clientID, _ := c.Get(middleware.ContextKeyClientID)
	clientIDStr, _ := clientID.(string)
	if clientIDStr == "" {
		fail(c, http.StatusUnauthorized, "BadInput", "X-Client-Id header required")
		return
	}

	result, err := h.sm.Hold(c.Request.Context(), booking.HoldRequest{
		StaffID:       req.StaffID,
		ServiceIDs:    req.ServiceIDs,
		StartsAt:      req.StartsAt.UTC(),
		PaymentMethod: req.PaymentMethod,
		ClientID:      clientIDStr,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{
		"bookingId": result.Booking.ID,
		"expiresAt": result.Booking.HoldExpiresAt,
		"snapshot":  result.Snapshot,
	})
}

type finalizeRequestDTO struct {
	PaymentMethod models.PaymentMethod `json:"paymentMethod" binding:"required"`
}

// Finalize handles POST /api/v1/bookings/:id/finalize.
func (h *BookingHandler) Finalize(c *gin.Context) {
	bookingID := c.Param("id")
	var req finalizeRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "BadInput", err.Error())
		return
	}

	result, err := h.sm.Finalize(c.Request.Context(), bookingID, req.PaymentMethod)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"status":     result.Booking.Status,
		"invoiceUrl": result.InvoiceURL,
	})
}

type rescheduleRequestDTO struct {
	NewStart time.Time `json:"newStart" binding:"required"`
}

// Reschedule handles POST /api/v1/bookings/:id/reschedule.
func (h *BookingHandler) Reschedule(c *gin.Context) {
	bookingID := c.Param("id")
	var req rescheduleRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "BadInput", err.Error())
		return
	}

	updated, err := h.sm.Reschedule(c.Request.Context(), bookingID, req.NewStart.UTC())
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, updated)
}

// Cancel handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c *gin.Context) {
	bookingID := c.Param("id")
	role := callerRole(c)

	updated, err := h.sm.Cancel(c.Request.Context(), bookingID, role, "client_requested")
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, updated)
}

type rateRequestDTO struct {
	Rating int `json:"rating" binding:"required"`
}

// Rate handles POST /api/v1/bookings/:id/rate.
func (h *BookingHandler) Rate(c *gin.Context) {
	bookingID := c.Param("id")
	var req rateRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "BadInput", err.Error())
		return
	}

	updated, err := h.sm.Rate(c.Request.Context(), bookingID, req.Rating)
	if err != nil {
		respondErr(c, err)
		return
	}
	ok(c, http.StatusOK, updated)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID := c.Param("id")
	b, err := h.bookingRepo.GetBookingByID(c.Request.Context(), bookingID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if b == nil {
		fail(c, http.StatusNotFound, "NotFound", "booking not found")
		return
	}
	ok(c, http.StatusOK, b)
}

// ListBookings handles GET /api/v1/bookings?mode=upcoming|history, scoped
// to the caller's own identity: a client sees their bookings, staff and
// admin see their calendar.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	mode := c.DefaultQuery("mode", "upcoming")
	if mode != "upcoming" && mode != "history" {
		fail(c, http.StatusBadRequest, "BadInput", "mode must be upcoming or history")
		return
	}
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	role := callerRole(c)
	ctx := c.Request.Context()

	var bookings []models.Booking
	var total int64
	var err error

	if role == policy.RoleStaff {
		staffID, _ := c.Get(middleware.ContextKeyStaffID)
		staffIDStr, _ := staffID.(string)
		bookings, total, err = h.bookingRepo.ListByStaff(ctx, staffIDStr, mode, limit, offset)
	} else {
		clientID, _ := c.Get(middleware.ContextKeyClientID)
		clientIDStr, _ := clientID.(string)
		bookings, total, err = h.bookingRepo.ListByClient(ctx, clientIDStr, mode, limit, offset)
	}
	if err != nil {
		respondErr(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"bookings": bookings,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

func callerRole(c *gin.Context) policy.Role {
	role, exists := c.Get(middleware.ContextKeyRole)
	if !exists {
		return policy.RoleClient
	}
	r, _ := role.(policy.Role)
	if r == "" {
		return policy.RoleClient
	}
	return r
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
