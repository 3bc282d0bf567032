package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/saloncore/booking-core/internal/booking"
)

var statusByKind = map[booking.Kind]int{
	booking.KindBadInput:                 http.StatusBadRequest,
	booking.KindNoSkillMatch:             http.StatusBadRequest,
	booking.KindMixedCurrency:            http.StatusBadRequest,
	booking.KindLeadTimeBlocked:          http.StatusConflict,
	booking.KindBeyondHorizon:            http.StatusConflict,
	booking.KindLockWindow:               http.StatusConflict,
	booking.KindTooManyReschedules:       http.StatusConflict,
	booking.KindSlotUnavailable:          http.StatusConflict,
	booking.KindIllegalTransition:        http.StatusConflict,
	booking.KindAlreadyRated:             http.StatusConflict,
	booking.KindPaymentInitFailed:        http.StatusBadGateway,
	booking.KindPaymentVerificationFailed: http.StatusBadGateway,
	booking.KindNotifierUnavailable:      http.StatusBadGateway,
	booking.KindTimeout:                  http.StatusGatewayTimeout,
	booking.KindStoreUnavailable:         http.StatusServiceUnavailable,
	booking.KindNotFound:                 http.StatusNotFound,
}

// respondErr maps any error from the booking core onto the HTTP envelope.
// A *booking.Error surfaces its Kind verbatim as the error code, per the
// propagation policy; anything else is an unclassified infrastructure fault.
func respondErr(c *gin.Context, err error) {
	var bErr *booking.Error
	if errors.As(err, &bErr) {
		status, ok := statusByKind[bErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		fail(c, status, string(bErr.Kind), bErr.Error())
		return
	}
	fail(c, http.StatusInternalServerError, "Internal", err.Error())
}
