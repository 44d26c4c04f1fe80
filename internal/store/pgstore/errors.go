package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/hostel/pkg/housing"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolationCode      = "23505"
	pgExclusionViolationCode   = "23P01"
	pgSerializationFailureCode = "40001"
	pgDeadlockDetectedCode     = "40P01"
	pgLockNotAvailableCode     = "55P03"
	pgQueryCanceledCode        = "57014"
)

func wrapStoreError(subject string, code string, err error) error {
	return housing.WrapError(errorOperationStore, subject, code, classifyError(err))
}

// classifyError maps lock waits, deadlocks, and serialization failures to
// housing.ErrTransactionConflict and constraint violations to their engine errors.
func classifyError(err error) error {
	if err == nil || errors.Is(err, housing.ErrTransactionConflict) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", housing.ErrTransactionConflict, err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgSerializationFailureCode, pgDeadlockDetectedCode, pgLockNotAvailableCode, pgQueryCanceledCode:
		return fmt.Errorf("%w: %v", housing.ErrTransactionConflict, err)
	case pgExclusionViolationCode:
		if pgErr.ConstraintName == constraintBookingsBedOverlap {
			return fmt.Errorf("%w: %v", housing.ErrBedUnavailable, err)
		}
	case pgUniqueViolationCode:
		switch pgErr.ConstraintName {
		case constraintBookingsStudentHolding:
			return fmt.Errorf("%w: %v", housing.ErrDuplicateActiveBooking, err)
		case constraintPaymentsBookingSuccess:
			return fmt.Errorf("%w: %v", housing.ErrPaymentAlreadyRecorded, err)
		}
	}
	return err
}
