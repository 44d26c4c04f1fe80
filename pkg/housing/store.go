package housing

import "context"

// Store is the persistence contract the engine runs against. Lock* methods take a row
// lock held until the surrounding WithTx unit of work ends; implementations without
// row locks must serialize writers some other way.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	LockStudent(ctx context.Context, studentID StudentID) error
	LockBed(ctx context.Context, bedID BedID) (Bed, error)
	GetBed(ctx context.Context, bedID BedID) (Bed, error)
	SetBedStatus(ctx context.Context, bedID BedID, status BedStatus) error

	LockBooking(ctx context.Context, bookingID BookingID) (Booking, error)
	CreateBooking(ctx context.Context, input BookingInput) (Booking, error)
	// UpdateBookingStatus applies from -> to and fails with ErrInvalidTransition when the
	// stored status is no longer from.
	UpdateBookingStatus(ctx context.Context, bookingID BookingID, from BookingStatus, to BookingStatus) error
	ListBedBookings(ctx context.Context, bedIDs []BedID, statuses []BookingStatus) ([]Booking, error)
	ListStudentBookings(ctx context.Context, studentID StudentID, statuses []BookingStatus) ([]Booking, error)
	ListEndedBookings(ctx context.Context, status BookingStatus, endedBefore Date, limit int) ([]Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]BookingDetail, error)

	FindSuccessfulPayment(ctx context.Context, bookingID BookingID) (Payment, bool, error)
	// InsertPayment fails with ErrPaymentAlreadyRecorded when a second success payment
	// would be stored for the same booking.
	InsertPayment(ctx context.Context, input PaymentInput) (Payment, error)
	BookingPrice(ctx context.Context, bookingID BookingID) (AmountCents, error)
	ListStudentPayments(ctx context.Context, studentID StudentID) ([]PaymentDetail, error)

	ListBeds(ctx context.Context, filter BedFilter) ([]BedListing, error)
	CountBeds(ctx context.Context, hostelID *HostelID) (BedCounts, error)
	SumRevenue(ctx context.Context, hostelID *HostelID) (RevenueTotals, error)
	CountSummary(ctx context.Context) (SummaryCounts, error)
	ListHostelCounts(ctx context.Context) ([]HostelCounts, error)
}
