package housing

import (
	"context"
	"encoding/json"
	"fmt"
)

// Service is the transport-agnostic façade over the engine components.
type Service struct {
	availability *AvailabilityQuery
	allocator    *Allocator
	payments     *PaymentReconciler
	reports      *OccupancyAggregator
	store        Store
	nowFn        func() int64
}

// BookingRequest asks for a bed over explicit dates or a named semester.
type BookingRequest struct {
	StudentID StudentID
	BedID     BedID
	Period    DateRange
	Semester  string
}

type bookingMetadata struct {
	Semester string `json:"semester,omitempty"`
}

// NewService wires a Service and all of its components over one store.
func NewService(store Store, now func() int64, options ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	availability, err := NewAvailabilityQuery(store)
	if err != nil {
		return nil, err
	}
	allocator, err := NewAllocator(store, now, options...)
	if err != nil {
		return nil, err
	}
	payments, err := NewPaymentReconciler(store, now, options...)
	if err != nil {
		return nil, err
	}
	reports, err := NewOccupancyAggregator(store)
	if err != nil {
		return nil, err
	}
	return &Service{
		availability: availability,
		allocator:    allocator,
		payments:     payments,
		reports:      reports,
		store:        store,
		nowFn:        now,
	}, nil
}

// GetAvailability reports whether bedID is free over period.
func (service *Service) GetAvailability(ctx context.Context, bedID BedID, period DateRange) (bool, error) {
	return service.availability.IsAvailable(ctx, bedID, period)
}

// ListAvailableBeds lists free beds matching filter.
func (service *Service) ListAvailableBeds(ctx context.Context, filter BedFilter) ([]BedListing, error) {
	return service.availability.ListAvailableBeds(ctx, filter)
}

// CreateBooking allocates a bed. A semester label is resolved to its dates and kept in
// the booking metadata.
func (service *Service) CreateBooking(ctx context.Context, request BookingRequest) (Booking, error) {
	period, metadata, err := resolveBookingPeriod(request)
	if err != nil {
		return Booking{}, err
	}
	return service.allocator.Allocate(ctx, request.StudentID, request.BedID, period, metadata)
}

// SetBookingStatus is the administrative status path. Activation goes through the
// manual payment path; cancellation and completion release the bed.
func (service *Service) SetBookingStatus(ctx context.Context, bookingID BookingID, target BookingStatus) (Booking, error) {
	switch target {
	case BookingStatusActive:
		activation, err := service.payments.ActivateWithoutPayment(ctx, bookingID)
		if err != nil {
			return Booking{}, err
		}
		return activation.Booking, nil
	case BookingStatusCancelled:
		return service.allocator.Cancel(ctx, bookingID)
	case BookingStatusCompleted:
		return service.allocator.Complete(ctx, bookingID)
	default:
		return Booking{}, fmt.Errorf("%w: cannot set status %q", ErrInvalidTransition, target)
	}
}

// RecordPayment records a success payment and activates the booking.
func (service *Service) RecordPayment(ctx context.Context, bookingID BookingID, amount AmountCents, mode PaymentMode) (Payment, error) {
	return service.payments.RecordPayment(ctx, bookingID, amount, mode)
}

// GetOccupancyReport reports occupancy, optionally for one hostel.
func (service *Service) GetOccupancyReport(ctx context.Context, hostelID *HostelID) (OccupancyReport, error) {
	return service.reports.Occupancy(ctx, hostelID)
}

// GetRevenueReport reports revenue, optionally for one hostel.
func (service *Service) GetRevenueReport(ctx context.Context, hostelID *HostelID) (RevenueReport, error) {
	return service.reports.Revenue(ctx, hostelID)
}

// Summary reports portal-wide counters.
func (service *Service) Summary(ctx context.Context) (Summary, error) {
	return service.reports.Summary(ctx)
}

// OccupancyByHostel reports occupancy per hostel.
func (service *Service) OccupancyByHostel(ctx context.Context) ([]HostelOccupancy, error) {
	return service.reports.OccupancyByHostel(ctx)
}

// ListBookings lists bookings with their student and bed details, newest first.
func (service *Service) ListBookings(ctx context.Context, filter BookingFilter) ([]BookingDetail, error) {
	return service.store.ListBookings(ctx, filter)
}

// CurrentBooking returns the student's pending or active booking, if any.
func (service *Service) CurrentBooking(ctx context.Context, studentID StudentID) (BookingDetail, bool, error) {
	details, err := service.store.ListBookings(ctx, BookingFilter{
		StudentID: &studentID,
		Statuses:  bedHoldingStatuses,
		Limit:     1,
	})
	if err != nil {
		return BookingDetail{}, false, err
	}
	if len(details) == 0 {
		return BookingDetail{}, false, nil
	}
	return details[0], true, nil
}

// StudentPayments returns the student's payment history, newest first.
func (service *Service) StudentPayments(ctx context.Context, studentID StudentID) ([]PaymentDetail, error) {
	return service.store.ListStudentPayments(ctx, studentID)
}

// CompleteEndedBookings completes active bookings that ended before today.
func (service *Service) CompleteEndedBookings(ctx context.Context, limit int) (int, error) {
	return service.allocator.CompleteEnded(ctx, limit)
}

// UpcomingSemesters lists bookable semester labels starting from today.
func (service *Service) UpcomingSemesters(count int) []string {
	return UpcomingSemesters(DateFromUnix(service.nowFn()), count)
}

func resolveBookingPeriod(request BookingRequest) (DateRange, MetadataJSON, error) {
	if request.Semester == "" {
		if request.Period.IsZero() {
			return DateRange{}, MetadataJSON{}, fmt.Errorf("%w: dates or semester required", ErrInvalidDateRange)
		}
		metadata, err := NewMetadataJSON("")
		return request.Period, metadata, err
	}
	if !request.Period.IsZero() {
		return DateRange{}, MetadataJSON{}, fmt.Errorf("%w: dates and semester are exclusive", ErrInvalidDateRange)
	}
	period, err := ParseSemester(request.Semester)
	if err != nil {
		return DateRange{}, MetadataJSON{}, err
	}
	encoded, err := json.Marshal(bookingMetadata{Semester: request.Semester})
	if err != nil {
		return DateRange{}, MetadataJSON{}, err
	}
	metadata, err := NewMetadataJSON(string(encoded))
	return period, metadata, err
}
