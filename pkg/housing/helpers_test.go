package housing

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recorderLogger struct {
	mutex   sync.Mutex
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	logger.entries = append(logger.entries, entry)
}

func (logger *recorderLogger) snapshot() []OperationLog {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	return append([]OperationLog(nil), logger.entries...)
}

// campus is a small seeded world: one hostel, one room priced at 12000 cents, three
// beds, and four students.
type campus struct {
	store    *memoryStore
	service  *Service
	hostel   HostelID
	room     RoomID
	beds     []BedID
	students []StudentID
}

func newCampus(test *testing.T, options ...Option) campus {
	test.Helper()
	store := newMemoryStore(test)
	hostel := store.addHostel(test, 1, "Aravali", "Male")
	room := store.addRoom(test, 10, hostel, "A-101", "Double", 12000)
	beds := []BedID{
		store.addBed(test, 100, room, "1"),
		store.addBed(test, 101, room, "2"),
		store.addBed(test, 102, room, "3"),
	}
	students := []StudentID{
		store.addStudent(test, 1),
		store.addStudent(test, 2),
		store.addStudent(test, 3),
		store.addStudent(test, 4),
	}
	return campus{
		store:    store,
		service:  mustNewService(test, store, options...),
		hostel:   hostel,
		room:     room,
		beds:     beds,
		students: students,
	}
}

func fixedClock(moment time.Time) func() int64 {
	return func() int64 { return moment.Unix() }
}

var testNow = time.Date(2025, time.January, 5, 9, 30, 0, 0, time.UTC)

func mustNewService(test *testing.T, store Store, options ...Option) *Service {
	test.Helper()
	service, err := NewService(store, fixedClock(testNow), options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustHostelID(test *testing.T, raw int64) HostelID {
	test.Helper()
	id, err := NewHostelID(raw)
	if err != nil {
		test.Fatalf("hostel id: %v", err)
	}
	return id
}

func mustRoomID(test *testing.T, raw int64) RoomID {
	test.Helper()
	id, err := NewRoomID(raw)
	if err != nil {
		test.Fatalf("room id: %v", err)
	}
	return id
}

func mustBedID(test *testing.T, raw int64) BedID {
	test.Helper()
	id, err := NewBedID(raw)
	if err != nil {
		test.Fatalf("bed id: %v", err)
	}
	return id
}

func mustStudentID(test *testing.T, raw int64) StudentID {
	test.Helper()
	id, err := NewStudentID(raw)
	if err != nil {
		test.Fatalf("student id: %v", err)
	}
	return id
}

func mustAmount(test *testing.T, raw int64) AmountCents {
	test.Helper()
	amount, err := NewAmountCents(raw)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	return amount
}

func mustMode(test *testing.T, raw string) PaymentMode {
	test.Helper()
	mode, err := NewPaymentMode(raw)
	if err != nil {
		test.Fatalf("payment mode: %v", err)
	}
	return mode
}

func mustRange(test *testing.T, rawStart string, rawEnd string) DateRange {
	test.Helper()
	period, err := ParseDateRange(rawStart, rawEnd)
	if err != nil {
		test.Fatalf("date range: %v", err)
	}
	return period
}

func mustAllocate(test *testing.T, service *Service, studentID StudentID, bedID BedID, period DateRange) Booking {
	test.Helper()
	booking, err := service.CreateBooking(context.Background(), BookingRequest{StudentID: studentID, BedID: bedID, Period: period})
	if err != nil {
		test.Fatalf("allocate %s on %s: %v", studentID, bedID, err)
	}
	return booking
}

func mustPay(test *testing.T, service *Service, bookingID BookingID, amount int64) Payment {
	test.Helper()
	payment, err := service.RecordPayment(context.Background(), bookingID, mustAmount(test, amount), mustMode(test, ""))
	if err != nil {
		test.Fatalf("record payment for %s: %v", bookingID, err)
	}
	return payment
}
