package housing

import (
	"context"
	"fmt"
)

// PaymentReconciler records payments and drives pending -> active.
type PaymentReconciler struct {
	store     Store
	nowFn     func() int64
	lifecycle bookingStateMachine
	config    componentConfig
}

// ManualActivation is the outcome of ActivateWithoutPayment.
type ManualActivation struct {
	Booking     Booking
	Payment     Payment
	Synthesized bool
}

// NewPaymentReconciler wires a PaymentReconciler.
func NewPaymentReconciler(store Store, now func() int64, options ...Option) (*PaymentReconciler, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	return &PaymentReconciler{store: store, nowFn: now, config: newComponentConfig(options)}, nil
}

// RecordPayment stores a success payment for bookingID and activates the booking.
func (reconciler *PaymentReconciler) RecordPayment(ctx context.Context, bookingID BookingID, amount AmountCents, mode PaymentMode) (Payment, error) {
	var (
		payment Payment
		booking Booking
	)
	operationError := reconciler.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		locked, err := transactionStore.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		booking = locked
		if err := ensureNoSuccessfulPayment(ctx, transactionStore, bookingID); err != nil {
			return err
		}
		if !locked.Status.CanTransitionTo(BookingStatusActive) {
			return fmt.Errorf("%w: booking %s is %s", ErrInvalidTransition, bookingID, locked.Status)
		}
		transactionID, err := NewTransactionID(reconciler.config.newToken())
		if err != nil {
			return err
		}
		inserted, err := transactionStore.InsertPayment(ctx, PaymentInput{
			BookingID:      bookingID,
			Amount:         amount,
			Mode:           mode,
			Status:         PaymentStatusSuccess,
			TransactionID:  transactionID,
			CreatedUnixUTC: reconciler.nowFn(),
		})
		if err != nil {
			return err
		}
		if _, err := reconciler.lifecycle.apply(ctx, transactionStore, locked, BookingStatusActive); err != nil {
			return err
		}
		payment = inserted
		return nil
	})
	reconciler.config.logOperation(ctx, OperationLog{
		Operation:     operationRecordPayment,
		StudentID:     booking.StudentID,
		BedID:         booking.BedID,
		BookingID:     bookingID,
		BookingStatus: BookingStatusActive,
		Amount:        amount,
		TransactionID: payment.TransactionID,
		Error:         operationError,
	})
	if operationError != nil {
		return Payment{}, operationError
	}
	return payment, nil
}

// ActivateWithoutPayment activates a pending booking on staff request. When no success
// payment exists yet one is synthesized from the room price.
func (reconciler *PaymentReconciler) ActivateWithoutPayment(ctx context.Context, bookingID BookingID) (ManualActivation, error) {
	var activation ManualActivation
	operationError := reconciler.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		locked, err := transactionStore.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		activation.Booking = locked
		if !locked.Status.CanTransitionTo(BookingStatusActive) {
			return fmt.Errorf("%w: booking %s is %s", ErrInvalidTransition, bookingID, locked.Status)
		}
		payment, found, err := transactionStore.FindSuccessfulPayment(ctx, bookingID)
		if err != nil {
			return err
		}
		if !found {
			payment, err = reconciler.synthesizePayment(ctx, transactionStore, bookingID)
			if err != nil {
				return err
			}
			activation.Synthesized = true
		}
		activated, err := reconciler.lifecycle.apply(ctx, transactionStore, locked, BookingStatusActive)
		if err != nil {
			return err
		}
		activation.Booking = activated
		activation.Payment = payment
		return nil
	})
	reconciler.config.logOperation(ctx, OperationLog{
		Operation:     operationManualActivate,
		StudentID:     activation.Booking.StudentID,
		BedID:         activation.Booking.BedID,
		BookingID:     bookingID,
		BookingStatus: BookingStatusActive,
		Amount:        activation.Payment.Amount,
		TransactionID: activation.Payment.TransactionID,
		Error:         operationError,
	})
	if operationError != nil {
		return ManualActivation{}, operationError
	}
	return activation, nil
}

func (reconciler *PaymentReconciler) synthesizePayment(ctx context.Context, transactionStore Store, bookingID BookingID) (Payment, error) {
	price, err := transactionStore.BookingPrice(ctx, bookingID)
	if err != nil {
		return Payment{}, err
	}
	amount, err := NewAmountCents(price.Int64())
	if err != nil {
		return Payment{}, WrapError("payments", "room_price", "invalid", err)
	}
	mode, err := NewPaymentMode(PaymentModeAdminManual)
	if err != nil {
		return Payment{}, err
	}
	transactionID, err := NewTransactionID(manualTransactionPrefix + reconciler.config.newToken())
	if err != nil {
		return Payment{}, err
	}
	return transactionStore.InsertPayment(ctx, PaymentInput{
		BookingID:      bookingID,
		Amount:         amount,
		Mode:           mode,
		Status:         PaymentStatusSuccess,
		TransactionID:  transactionID,
		CreatedUnixUTC: reconciler.nowFn(),
	})
}

func ensureNoSuccessfulPayment(ctx context.Context, transactionStore Store, bookingID BookingID) error {
	existing, found, err := transactionStore.FindSuccessfulPayment(ctx, bookingID)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: booking %s paid by %s", ErrPaymentAlreadyRecorded, bookingID, existing.TransactionID)
	}
	return nil
}
