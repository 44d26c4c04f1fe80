package housing

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the housing engine.
var (
	ErrInvalidDateRange       = errors.New("invalid date range")
	ErrBedNotFound            = errors.New("bed not found")
	ErrBedUnavailable         = errors.New("bed unavailable")
	ErrDuplicateActiveBooking = errors.New("student already has an active or pending booking")
	ErrBookingNotFound        = errors.New("booking not found")
	ErrInvalidTransition      = errors.New("invalid booking transition")
	ErrPaymentAlreadyRecorded = errors.New("payment already recorded")
	ErrTransactionConflict    = errors.New("transaction conflict")
	ErrStudentNotFound        = errors.New("student not found")
	ErrInvalidBedID           = errors.New("invalid bed id")
	ErrInvalidStudentID       = errors.New("invalid student id")
	ErrInvalidBookingID       = errors.New("invalid booking id")
	ErrInvalidHostelID        = errors.New("invalid hostel id")
	ErrInvalidRoomID          = errors.New("invalid room id")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidPaymentMode     = errors.New("invalid payment mode")
	ErrInvalidTransactionID   = errors.New("invalid transaction id")
	ErrInvalidBookingStatus   = errors.New("invalid booking status")
	ErrInvalidBedStatus       = errors.New("invalid bed status")
	ErrInvalidPaymentStatus   = errors.New("invalid payment status")
	ErrInvalidDate            = errors.New("invalid date")
	ErrInvalidSemester        = errors.New("invalid semester")
	ErrInvalidYear            = errors.New("invalid year")
	ErrInvalidMetadataJSON    = errors.New("invalid metadata json")
	ErrInvalidServiceConfig   = errors.New("invalid service config")
)

// ErrorKind is the stable, caller-facing classification of a failure.
type ErrorKind string

const (
	KindInvalidDateRange       ErrorKind = "InvalidDateRange"
	KindBedNotFound            ErrorKind = "BedNotFound"
	KindBedUnavailable         ErrorKind = "BedUnavailable"
	KindDuplicateActiveBooking ErrorKind = "DuplicateActiveBooking"
	KindBookingNotFound        ErrorKind = "BookingNotFound"
	KindInvalidTransition      ErrorKind = "InvalidTransition"
	KindPaymentAlreadyRecorded ErrorKind = "PaymentAlreadyRecorded"
	KindTransactionConflict    ErrorKind = "TransactionConflict"
	KindStudentNotFound        ErrorKind = "StudentNotFound"
	KindInvalidInput           ErrorKind = "InvalidInput"
	KindInternal               ErrorKind = "Internal"
)

var errorKinds = []struct {
	target error
	kind   ErrorKind
}{
	{ErrTransactionConflict, KindTransactionConflict},
	{ErrInvalidDateRange, KindInvalidDateRange},
	{ErrBedNotFound, KindBedNotFound},
	{ErrBedUnavailable, KindBedUnavailable},
	{ErrDuplicateActiveBooking, KindDuplicateActiveBooking},
	{ErrBookingNotFound, KindBookingNotFound},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrPaymentAlreadyRecorded, KindPaymentAlreadyRecorded},
	{ErrStudentNotFound, KindStudentNotFound},
	{ErrInvalidBedID, KindInvalidInput},
	{ErrInvalidStudentID, KindInvalidInput},
	{ErrInvalidBookingID, KindInvalidInput},
	{ErrInvalidHostelID, KindInvalidInput},
	{ErrInvalidRoomID, KindInvalidInput},
	{ErrInvalidAmount, KindInvalidInput},
	{ErrInvalidPaymentMode, KindInvalidInput},
	{ErrInvalidTransactionID, KindInvalidInput},
	{ErrInvalidBookingStatus, KindInvalidInput},
	{ErrInvalidBedStatus, KindInvalidInput},
	{ErrInvalidPaymentStatus, KindInvalidInput},
	{ErrInvalidDate, KindInvalidInput},
	{ErrInvalidSemester, KindInvalidInput},
	{ErrInvalidYear, KindInvalidInput},
	{ErrInvalidMetadataJSON, KindInvalidInput},
}

// KindOf maps an error returned by the engine or a Store to its ErrorKind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, candidate := range errorKinds {
		if errors.Is(err, candidate.target) {
			return candidate.kind
		}
	}
	return KindInternal
}

// IsRetryable reports whether the caller may blindly retry the failed operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionConflict)
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
