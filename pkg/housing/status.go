package housing

import (
	"fmt"
	"strings"
)

// BookingStatus defines the booking lifecycle.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// bookingTransitions is the complete set of legal edges; anything absent is rejected.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusActive, BookingStatusCancelled},
	BookingStatusActive:    {BookingStatusCompleted},
	BookingStatusCompleted: {},
	BookingStatusCancelled: {},
}

// bedHoldingStatuses are the statuses that claim a bed.
var bedHoldingStatuses = []BookingStatus{BookingStatusPending, BookingStatusActive}

// ParseBookingStatus validates a raw status string.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	status := BookingStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, known := bookingTransitions[status]; !known {
		return "", fmt.Errorf("%w: %q", ErrInvalidBookingStatus, raw)
	}
	return status, nil
}

// String returns the stored representation.
func (status BookingStatus) String() string {
	return string(status)
}

// CanTransitionTo reports whether status -> target is a legal edge.
func (status BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, allowed := range bookingTransitions[status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist.
func (status BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[status]) == 0
}

// HoldsBed reports whether a booking in this status claims its bed.
func (status BookingStatus) HoldsBed() bool {
	return status == BookingStatusPending || status == BookingStatusActive
}

// BedStatus caches whether any bed-holding booking references the bed.
type BedStatus string

const (
	BedStatusAvailable BedStatus = "available"
	BedStatusOccupied  BedStatus = "occupied"
)

// ParseBedStatus validates a raw bed status.
func ParseBedStatus(raw string) (BedStatus, error) {
	switch status := BedStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case BedStatusAvailable, BedStatusOccupied:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBedStatus, raw)
	}
}

// String returns the stored representation.
func (status BedStatus) String() string {
	return string(status)
}

// PaymentStatus records the outcome of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// ParsePaymentStatus validates a raw payment status.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch status := PaymentStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case PaymentStatusSuccess, PaymentStatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, raw)
	}
}

// String returns the stored representation.
func (status PaymentStatus) String() string {
	return string(status)
}
