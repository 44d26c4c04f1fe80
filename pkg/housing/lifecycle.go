package housing

import (
	"context"
	"fmt"
)

// bookingStateMachine owns every booking status change and the bed reconciliation
// that must accompany it. It is only reachable through Allocator and PaymentReconciler.
type bookingStateMachine struct{}

// admit persists a new pending booking and marks its bed occupied.
func (machine bookingStateMachine) admit(ctx context.Context, transactionStore Store, input BookingInput) (Booking, error) {
	input.Status = BookingStatusPending
	booking, err := transactionStore.CreateBooking(ctx, input)
	if err != nil {
		return Booking{}, err
	}
	if err := machine.reconcileBedStatus(ctx, transactionStore, booking.BedID); err != nil {
		return Booking{}, err
	}
	return booking, nil
}

// apply moves a locked booking to target. Activation requires a success payment to be
// visible in the same unit of work.
func (machine bookingStateMachine) apply(ctx context.Context, transactionStore Store, booking Booking, target BookingStatus) (Booking, error) {
	if !booking.Status.CanTransitionTo(target) {
		return Booking{}, WrapError("lifecycle", "booking", "illegal_edge",
			fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, booking.Status, target))
	}
	if target == BookingStatusActive {
		_, found, err := transactionStore.FindSuccessfulPayment(ctx, booking.ID)
		if err != nil {
			return Booking{}, err
		}
		if !found {
			return Booking{}, WrapError("lifecycle", "booking", "payment_missing",
				fmt.Errorf("%w: booking %s has no successful payment", ErrInvalidTransition, booking.ID))
		}
	}
	if _, err := transactionStore.LockBed(ctx, booking.BedID); err != nil {
		return Booking{}, err
	}
	if err := transactionStore.UpdateBookingStatus(ctx, booking.ID, booking.Status, target); err != nil {
		return Booking{}, err
	}
	if err := machine.reconcileBedStatus(ctx, transactionStore, booking.BedID); err != nil {
		return Booking{}, err
	}
	booking.Status = target
	return booking, nil
}

// reconcileBedStatus recomputes the bed status cache from the bookings that hold it.
func (machine bookingStateMachine) reconcileBedStatus(ctx context.Context, transactionStore Store, bedID BedID) error {
	holding, err := transactionStore.ListBedBookings(ctx, []BedID{bedID}, bedHoldingStatuses)
	if err != nil {
		return err
	}
	status := BedStatusAvailable
	if len(holding) > 0 {
		status = BedStatusOccupied
	}
	return transactionStore.SetBedStatus(ctx, bedID, status)
}
