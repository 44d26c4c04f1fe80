package housing

import (
	"context"
	"errors"
	"testing"
)

func TestNewServiceRequiresDependencies(test *testing.T) {
	test.Parallel()
	if _, err := NewService(nil, func() int64 { return 0 }); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected invalid config for nil store, got %v", err)
	}
	if _, err := NewService(newMemoryStore(test), nil); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected invalid config for nil clock, got %v", err)
	}
	if _, err := NewAvailabilityQuery(nil); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected invalid config for availability, got %v", err)
	}
	if _, err := NewOccupancyAggregator(nil); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected invalid config for aggregator, got %v", err)
	}
	if _, err := NewPaymentReconciler(nil, func() int64 { return 0 }); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected invalid config for reconciler, got %v", err)
	}
}

func TestCreateBookingFromSemester(test *testing.T) {
	test.Parallel()
	world := newCampus(test)

	booking, err := world.service.CreateBooking(context.Background(), BookingRequest{
		StudentID: world.students[0],
		BedID:     world.beds[0],
		Semester:  "Fall 2025",
	})
	if err != nil {
		test.Fatalf("create booking: %v", err)
	}
	if booking.Period.String() != "2025-07-01..2025-12-20" {
		test.Fatalf("unexpected period %s", booking.Period)
	}
	if booking.Metadata.String() != `{"semester":"Fall 2025"}` {
		test.Fatalf("unexpected metadata %s", booking.Metadata)
	}

	_, err = world.service.CreateBooking(context.Background(), BookingRequest{
		StudentID: world.students[1],
		BedID:     world.beds[1],
		Semester:  "Winter 2025",
	})
	if !errors.Is(err, ErrInvalidSemester) {
		test.Fatalf("expected invalid semester, got %v", err)
	}
	_, err = world.service.CreateBooking(context.Background(), BookingRequest{
		StudentID: world.students[1],
		BedID:     world.beds[1],
		Semester:  "Fall 2025",
		Period:    mustRange(test, "2025-07-01", "2025-07-02"),
	})
	if !errors.Is(err, ErrInvalidDateRange) {
		test.Fatalf("expected exclusive dates and semester, got %v", err)
	}
}

func TestStudentViews(test *testing.T) {
	test.Parallel()
	world := newCampus(test)
	studentID := world.students[0]

	if _, found, err := world.service.CurrentBooking(context.Background(), studentID); err != nil || found {
		test.Fatalf("expected no current booking, got found=%v err=%v", found, err)
	}
	first := mustAllocate(test, world.service, studentID, world.beds[0], mustRange(test, "2025-01-10", "2025-06-30"))
	if _, err := world.service.SetBookingStatus(context.Background(), first.ID, BookingStatusCancelled); err != nil {
		test.Fatalf("cancel: %v", err)
	}
	second := mustAllocate(test, world.service, studentID, world.beds[1], mustRange(test, "2025-07-01", "2025-12-20"))
	mustPay(test, world.service, second.ID, 12000)

	current, found, err := world.service.CurrentBooking(context.Background(), studentID)
	if err != nil || !found {
		test.Fatalf("expected current booking, got found=%v err=%v", found, err)
	}
	if current.Booking.ID != second.ID || current.Booking.Status != BookingStatusActive || current.HostelName != "Aravali" {
		test.Fatalf("unexpected current booking: %+v", current)
	}

	payments, err := world.service.StudentPayments(context.Background(), studentID)
	if err != nil {
		test.Fatalf("payments: %v", err)
	}
	if len(payments) != 1 || payments[0].Payment.BookingID != second.ID || payments[0].HostelName != "Aravali" {
		test.Fatalf("unexpected payments: %+v", payments)
	}

	all, err := world.service.ListBookings(context.Background(), BookingFilter{})
	if err != nil {
		test.Fatalf("list bookings: %v", err)
	}
	if len(all) != 2 || all[0].Booking.ID != second.ID {
		test.Fatalf("expected newest booking first, got %+v", all)
	}
	cancelled, err := world.service.ListBookings(context.Background(), BookingFilter{Statuses: []BookingStatus{BookingStatusCancelled}})
	if err != nil {
		test.Fatalf("list cancelled: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0].Booking.ID != first.ID {
		test.Fatalf("unexpected cancelled bookings: %+v", cancelled)
	}
}

func TestServiceUpcomingSemesters(test *testing.T) {
	test.Parallel()
	world := newCampus(test)
	labels := world.service.UpcomingSemesters(2)
	if len(labels) != 2 || labels[0] != "Spring 2025" || labels[1] != "Fall 2025" {
		test.Fatalf("unexpected labels %v", labels)
	}
}
