package housing

import (
	"context"
	"errors"
	"fmt"
)

// Allocator claims and releases beds.
type Allocator struct {
	store     Store
	nowFn     func() int64
	lifecycle bookingStateMachine
	config    componentConfig
}

// NewAllocator wires an Allocator.
func NewAllocator(store Store, now func() int64, options ...Option) (*Allocator, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	return &Allocator{store: store, nowFn: now, config: newComponentConfig(options)}, nil
}

// Allocate creates a pending booking for studentID on bedID over period. The student
// and bed rows are locked before the duplicate and overlap checks run.
func (allocator *Allocator) Allocate(ctx context.Context, studentID StudentID, bedID BedID, period DateRange, metadata MetadataJSON) (Booking, error) {
	var booking Booking
	operationError := allocator.allocate(ctx, studentID, bedID, period, metadata, &booking)
	allocator.config.logOperation(ctx, OperationLog{
		Operation:     operationAllocate,
		StudentID:     studentID,
		BedID:         bedID,
		BookingID:     booking.ID,
		Period:        period,
		BookingStatus: booking.Status,
		Error:         operationError,
	})
	if operationError != nil {
		return Booking{}, operationError
	}
	return booking, nil
}

func (allocator *Allocator) allocate(ctx context.Context, studentID StudentID, bedID BedID, period DateRange, metadata MetadataJSON, result *Booking) error {
	if period.IsZero() {
		return fmt.Errorf("%w: missing dates", ErrInvalidDateRange)
	}
	return allocator.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := transactionStore.LockStudent(ctx, studentID); err != nil {
			return err
		}
		if _, err := transactionStore.LockBed(ctx, bedID); err != nil {
			return err
		}
		existing, err := transactionStore.ListStudentBookings(ctx, studentID, bedHoldingStatuses)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return fmt.Errorf("%w: student %s holds booking %s", ErrDuplicateActiveBooking, studentID, existing[0].ID)
		}
		holding, err := transactionStore.ListBedBookings(ctx, []BedID{bedID}, bedHoldingStatuses)
		if err != nil {
			return err
		}
		for _, other := range holding {
			if other.Period.Overlaps(period) {
				return fmt.Errorf("%w: bed %s is booked %s", ErrBedUnavailable, bedID, other.Period)
			}
		}
		booking, err := allocator.lifecycle.admit(ctx, transactionStore, BookingInput{
			StudentID:      studentID,
			BedID:          bedID,
			Period:         period,
			Metadata:       metadata,
			CreatedUnixUTC: allocator.nowFn(),
		})
		if err != nil {
			return err
		}
		*result = booking
		return nil
	})
}

// Cancel moves a pending booking to cancelled and releases its bed.
func (allocator *Allocator) Cancel(ctx context.Context, bookingID BookingID) (Booking, error) {
	return allocator.release(ctx, operationCancel, bookingID, BookingStatusCancelled)
}

// Complete moves an active booking to completed and releases its bed.
func (allocator *Allocator) Complete(ctx context.Context, bookingID BookingID) (Booking, error) {
	return allocator.release(ctx, operationComplete, bookingID, BookingStatusCompleted)
}

func (allocator *Allocator) release(ctx context.Context, operation string, bookingID BookingID, target BookingStatus) (Booking, error) {
	var booking Booking
	operationError := allocator.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		locked, err := transactionStore.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		updated, err := allocator.lifecycle.apply(ctx, transactionStore, locked, target)
		if err != nil {
			return err
		}
		booking = updated
		return nil
	})
	allocator.config.logOperation(ctx, OperationLog{
		Operation:     operation,
		StudentID:     booking.StudentID,
		BedID:         booking.BedID,
		BookingID:     bookingID,
		Period:        booking.Period,
		BookingStatus: target,
		Error:         operationError,
	})
	if operationError != nil {
		return Booking{}, operationError
	}
	return booking, nil
}

// CompleteEnded completes up to limit active bookings whose end date is before today.
// Each booking is completed in its own unit of work; bookings that changed state
// concurrently are skipped.
func (allocator *Allocator) CompleteEnded(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultSweepBatchSize
	}
	today := DateFromUnix(allocator.nowFn())
	ended, err := allocator.store.ListEndedBookings(ctx, BookingStatusActive, today, limit)
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, booking := range ended {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		if _, err := allocator.Complete(ctx, booking.ID); err != nil {
			if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrBookingNotFound) {
				continue
			}
			return completed, err
		}
		completed++
	}
	return completed, nil
}
