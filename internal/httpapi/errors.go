package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/hostel/pkg/housing"
	"github.com/gin-gonic/gin"
)

const (
	codeUnauthorized   = "unauthorized"
	codeForbidden      = "forbidden"
	codeInvalidPayload = "invalid_payload"
	retryAfterHeader   = "Retry-After"
	retryAfterSeconds  = "1"
	internalMessage    = "internal error"
)

var errForbiddenStudent = errors.New("caller may not act for this student")

// statusForKind maps engine error kinds to HTTP statuses.
func statusForKind(kind housing.ErrorKind) int {
	switch kind {
	case housing.KindInvalidDateRange, housing.KindInvalidInput:
		return http.StatusBadRequest
	case housing.KindBedNotFound, housing.KindBookingNotFound, housing.KindStudentNotFound:
		return http.StatusNotFound
	case housing.KindBedUnavailable, housing.KindDuplicateActiveBooking, housing.KindPaymentAlreadyRecorded, housing.KindInvalidTransition:
		return http.StatusConflict
	case housing.KindTransactionConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
