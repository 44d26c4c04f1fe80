package housing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
)

type memoryStudent struct {
	id         int64
	name       string
	email      string
	department string
	year       int
}

type memoryHostel struct {
	id            int64
	name          string
	hostelType    string
	genderAllowed string
	allowedYear   int
}

type memoryRoom struct {
	id       int64
	hostelID int64
	number   string
	roomType string
	capacity int64
	price    AmountCents
}

type memoryState struct {
	students      map[int64]memoryStudent
	hostels       map[int64]memoryHostel
	rooms         map[int64]memoryRoom
	beds          map[int64]Bed
	bookings      map[int64]Booking
	payments      []Payment
	nextBookingID int64
	nextPaymentID int64
}

func newMemoryState() *memoryState {
	return &memoryState{
		students: map[int64]memoryStudent{},
		hostels:  map[int64]memoryHostel{},
		rooms:    map[int64]memoryRoom{},
		beds:     map[int64]Bed{},
		bookings: map[int64]Booking{},
	}
}

func (state *memoryState) clone() *memoryState {
	copied := newMemoryState()
	for id, student := range state.students {
		copied.students[id] = student
	}
	for id, hostel := range state.hostels {
		copied.hostels[id] = hostel
	}
	for id, room := range state.rooms {
		copied.rooms[id] = room
	}
	for id, bed := range state.beds {
		copied.beds[id] = bed
	}
	for id, booking := range state.bookings {
		copied.bookings[id] = booking
	}
	copied.payments = append([]Payment(nil), state.payments...)
	copied.nextBookingID = state.nextBookingID
	copied.nextPaymentID = state.nextPaymentID
	return copied
}

// memoryDatabase serializes whole units of work and commits a private copy on success.
type memoryDatabase struct {
	transactionMutex sync.Mutex
	stateMutex       sync.RWMutex
	committed        *memoryState
	faultMutex       sync.Mutex
	faults           map[string]error
	transactions     int
}

type memoryStore struct {
	database *memoryDatabase
	working  *memoryState
}

func newMemoryStore(test *testing.T) *memoryStore {
	test.Helper()
	return &memoryStore{database: &memoryDatabase{committed: newMemoryState(), faults: map[string]error{}}}
}

func (store *memoryStore) failOn(method string, err error) {
	store.database.faultMutex.Lock()
	defer store.database.faultMutex.Unlock()
	store.database.faults[method] = err
}

func (store *memoryStore) fault(method string) error {
	store.database.faultMutex.Lock()
	defer store.database.faultMutex.Unlock()
	return store.database.faults[method]
}

func (store *memoryStore) read(fn func(state *memoryState)) {
	if store.working != nil {
		fn(store.working)
		return
	}
	store.database.stateMutex.RLock()
	defer store.database.stateMutex.RUnlock()
	fn(store.database.committed)
}

func (store *memoryStore) write(fn func(state *memoryState) error) error {
	if store.working != nil {
		return fn(store.working)
	}
	return store.WithTx(context.Background(), func(ctx context.Context, txStore Store) error {
		return fn(txStore.(*memoryStore).working)
	})
}

func (store *memoryStore) snapshot() *memoryState {
	store.database.stateMutex.RLock()
	defer store.database.stateMutex.RUnlock()
	return store.database.committed.clone()
}

func (store *memoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	if store.working != nil {
		return fn(ctx, store)
	}
	if err := store.fault("WithTx"); err != nil {
		return err
	}
	store.database.transactionMutex.Lock()
	defer store.database.transactionMutex.Unlock()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionConflict, err)
	}
	store.database.stateMutex.RLock()
	working := store.database.committed.clone()
	store.database.stateMutex.RUnlock()
	if err := fn(ctx, &memoryStore{database: store.database, working: working}); err != nil {
		return err
	}
	store.database.stateMutex.Lock()
	store.database.committed = working
	store.database.transactions++
	store.database.stateMutex.Unlock()
	return nil
}

func (store *memoryStore) LockStudent(ctx context.Context, studentID StudentID) error {
	if err := store.fault("LockStudent"); err != nil {
		return err
	}
	var found bool
	store.read(func(state *memoryState) {
		_, found = state.students[studentID.Int64()]
	})
	if !found {
		return fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}
	return nil
}

func (store *memoryStore) LockBed(ctx context.Context, bedID BedID) (Bed, error) {
	if err := store.fault("LockBed"); err != nil {
		return Bed{}, err
	}
	return store.GetBed(ctx, bedID)
}

func (store *memoryStore) GetBed(ctx context.Context, bedID BedID) (Bed, error) {
	if err := store.fault("GetBed"); err != nil {
		return Bed{}, err
	}
	var (
		bed   Bed
		found bool
	)
	store.read(func(state *memoryState) {
		bed, found = state.beds[bedID.Int64()]
	})
	if !found {
		return Bed{}, fmt.Errorf("%w: %s", ErrBedNotFound, bedID)
	}
	return bed, nil
}

func (store *memoryStore) SetBedStatus(ctx context.Context, bedID BedID, status BedStatus) error {
	if err := store.fault("SetBedStatus"); err != nil {
		return err
	}
	return store.write(func(state *memoryState) error {
		bed, found := state.beds[bedID.Int64()]
		if !found {
			return ErrBedNotFound
		}
		bed.Status = status
		state.beds[bedID.Int64()] = bed
		return nil
	})
}

func (store *memoryStore) LockBooking(ctx context.Context, bookingID BookingID) (Booking, error) {
	if err := store.fault("LockBooking"); err != nil {
		return Booking{}, err
	}
	var (
		booking Booking
		found   bool
	)
	store.read(func(state *memoryState) {
		booking, found = state.bookings[bookingID.Int64()]
	})
	if !found {
		return Booking{}, fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
	}
	return booking, nil
}

func (store *memoryStore) CreateBooking(ctx context.Context, input BookingInput) (Booking, error) {
	if err := store.fault("CreateBooking"); err != nil {
		return Booking{}, err
	}
	var booking Booking
	err := store.write(func(state *memoryState) error {
		state.nextBookingID++
		bookingID, err := NewBookingID(state.nextBookingID)
		if err != nil {
			return err
		}
		booking = Booking{
			ID:             bookingID,
			StudentID:      input.StudentID,
			BedID:          input.BedID,
			Period:         input.Period,
			Status:         input.Status,
			Metadata:       input.Metadata,
			CreatedUnixUTC: input.CreatedUnixUTC,
		}
		state.bookings[bookingID.Int64()] = booking
		return nil
	})
	return booking, err
}

func (store *memoryStore) UpdateBookingStatus(ctx context.Context, bookingID BookingID, from BookingStatus, to BookingStatus) error {
	if err := store.fault("UpdateBookingStatus"); err != nil {
		return err
	}
	return store.write(func(state *memoryState) error {
		booking, found := state.bookings[bookingID.Int64()]
		if !found {
			return ErrBookingNotFound
		}
		if booking.Status != from {
			return ErrInvalidTransition
		}
		booking.Status = to
		state.bookings[bookingID.Int64()] = booking
		return nil
	})
}

func (store *memoryStore) ListBedBookings(ctx context.Context, bedIDs []BedID, statuses []BookingStatus) ([]Booking, error) {
	if err := store.fault("ListBedBookings"); err != nil {
		return nil, err
	}
	wanted := map[BedID]bool{}
	for _, bedID := range bedIDs {
		wanted[bedID] = true
	}
	return store.filterBookings(func(booking Booking) bool {
		return wanted[booking.BedID] && statusIn(booking.Status, statuses)
	}), nil
}

func (store *memoryStore) ListStudentBookings(ctx context.Context, studentID StudentID, statuses []BookingStatus) ([]Booking, error) {
	if err := store.fault("ListStudentBookings"); err != nil {
		return nil, err
	}
	return store.filterBookings(func(booking Booking) bool {
		return booking.StudentID == studentID && statusIn(booking.Status, statuses)
	}), nil
}

func (store *memoryStore) ListEndedBookings(ctx context.Context, status BookingStatus, endedBefore Date, limit int) ([]Booking, error) {
	if err := store.fault("ListEndedBookings"); err != nil {
		return nil, err
	}
	ended := store.filterBookings(func(booking Booking) bool {
		return booking.Status == status && booking.Period.End().Before(endedBefore)
	})
	if limit > 0 && len(ended) > limit {
		ended = ended[:limit]
	}
	return ended, nil
}

func (store *memoryStore) ListBookings(ctx context.Context, filter BookingFilter) ([]BookingDetail, error) {
	if err := store.fault("ListBookings"); err != nil {
		return nil, err
	}
	var details []BookingDetail
	store.read(func(state *memoryState) {
		for _, booking := range state.bookings {
			if filter.BookingID != nil && booking.ID != *filter.BookingID {
				continue
			}
			if filter.StudentID != nil && booking.StudentID != *filter.StudentID {
				continue
			}
			if len(filter.Statuses) > 0 && !statusIn(booking.Status, filter.Statuses) {
				continue
			}
			student := state.students[booking.StudentID.Int64()]
			bed := state.beds[booking.BedID.Int64()]
			room := state.rooms[bed.RoomID.Int64()]
			hostel := state.hostels[room.hostelID]
			hostelID, _ := NewHostelID(hostel.id)
			details = append(details, BookingDetail{
				Booking:       booking,
				StudentName:   student.name,
				StudentEmail:  student.email,
				Department:    student.department,
				Year:          student.year,
				HostelID:      hostelID,
				HostelName:    hostel.name,
				HostelType:    hostel.hostelType,
				RoomNumber:    room.number,
				RoomType:      room.roomType,
				PricePerMonth: room.price,
				BedNumber:     bed.BedNumber,
				BedStatus:     bed.Status,
			})
		}
	})
	sort.Slice(details, func(left, right int) bool {
		return details[left].Booking.ID.Int64() > details[right].Booking.ID.Int64()
	})
	if filter.Limit > 0 && len(details) > filter.Limit {
		details = details[:filter.Limit]
	}
	return details, nil
}

func (store *memoryStore) FindSuccessfulPayment(ctx context.Context, bookingID BookingID) (Payment, bool, error) {
	if err := store.fault("FindSuccessfulPayment"); err != nil {
		return Payment{}, false, err
	}
	var (
		payment Payment
		found   bool
	)
	store.read(func(state *memoryState) {
		for _, candidate := range state.payments {
			if candidate.BookingID == bookingID && candidate.Status == PaymentStatusSuccess {
				payment, found = candidate, true
				return
			}
		}
	})
	return payment, found, nil
}

func (store *memoryStore) InsertPayment(ctx context.Context, input PaymentInput) (Payment, error) {
	if err := store.fault("InsertPayment"); err != nil {
		return Payment{}, err
	}
	var payment Payment
	err := store.write(func(state *memoryState) error {
		for _, existing := range state.payments {
			if existing.TransactionID == input.TransactionID {
				return fmt.Errorf("duplicate transaction id %s", input.TransactionID)
			}
			if input.Status == PaymentStatusSuccess && existing.BookingID == input.BookingID && existing.Status == PaymentStatusSuccess {
				return ErrPaymentAlreadyRecorded
			}
		}
		state.nextPaymentID++
		payment = Payment{
			ID:             state.nextPaymentID,
			BookingID:      input.BookingID,
			Amount:         input.Amount,
			Mode:           input.Mode,
			Status:         input.Status,
			TransactionID:  input.TransactionID,
			CreatedUnixUTC: input.CreatedUnixUTC,
		}
		state.payments = append(state.payments, payment)
		return nil
	})
	return payment, err
}

func (store *memoryStore) BookingPrice(ctx context.Context, bookingID BookingID) (AmountCents, error) {
	if err := store.fault("BookingPrice"); err != nil {
		return 0, err
	}
	var (
		price AmountCents
		found bool
	)
	store.read(func(state *memoryState) {
		booking, exists := state.bookings[bookingID.Int64()]
		if !exists {
			return
		}
		bed := state.beds[booking.BedID.Int64()]
		price, found = state.rooms[bed.RoomID.Int64()].price, true
	})
	if !found {
		return 0, ErrBookingNotFound
	}
	return price, nil
}

func (store *memoryStore) ListStudentPayments(ctx context.Context, studentID StudentID) ([]PaymentDetail, error) {
	if err := store.fault("ListStudentPayments"); err != nil {
		return nil, err
	}
	var details []PaymentDetail
	store.read(func(state *memoryState) {
		for index := len(state.payments) - 1; index >= 0; index-- {
			payment := state.payments[index]
			booking := state.bookings[payment.BookingID.Int64()]
			if booking.StudentID != studentID {
				continue
			}
			bed := state.beds[booking.BedID.Int64()]
			hostel := state.hostels[state.rooms[bed.RoomID.Int64()].hostelID]
			details = append(details, PaymentDetail{Payment: payment, HostelName: hostel.name})
		}
	})
	return details, nil
}

func (store *memoryStore) ListBeds(ctx context.Context, filter BedFilter) ([]BedListing, error) {
	if err := store.fault("ListBeds"); err != nil {
		return nil, err
	}
	var listings []BedListing
	store.read(func(state *memoryState) {
		for _, bed := range state.beds {
			room := state.rooms[bed.RoomID.Int64()]
			hostel := state.hostels[room.hostelID]
			if filter.HostelID != nil && hostel.id != filter.HostelID.Int64() {
				continue
			}
			if filter.RoomType != "" && room.roomType != filter.RoomType {
				continue
			}
			if filter.MinPrice > 0 && room.price < filter.MinPrice {
				continue
			}
			if filter.MaxPrice > 0 && room.price > filter.MaxPrice {
				continue
			}
			if filter.GenderAllowed != "" && hostel.genderAllowed != filter.GenderAllowed {
				continue
			}
			if filter.AllowedYear > 0 && hostel.allowedYear != 0 && hostel.allowedYear != filter.AllowedYear {
				continue
			}
			hostelID, _ := NewHostelID(hostel.id)
			listings = append(listings, BedListing{
				Bed:           bed,
				RoomNumber:    room.number,
				RoomType:      room.roomType,
				PricePerMonth: room.price,
				HostelID:      hostelID,
				HostelName:    hostel.name,
				HostelType:    hostel.hostelType,
			})
		}
	})
	sort.Slice(listings, func(left, right int) bool {
		if listings[left].HostelName != listings[right].HostelName {
			return listings[left].HostelName < listings[right].HostelName
		}
		if listings[left].RoomNumber != listings[right].RoomNumber {
			return listings[left].RoomNumber < listings[right].RoomNumber
		}
		return listings[left].Bed.BedNumber < listings[right].Bed.BedNumber
	})
	return listings, nil
}

func (store *memoryStore) CountBeds(ctx context.Context, hostelID *HostelID) (BedCounts, error) {
	if err := store.fault("CountBeds"); err != nil {
		return BedCounts{}, err
	}
	var counts BedCounts
	store.read(func(state *memoryState) {
		counts = countBeds(state, hostelID)
	})
	return counts, nil
}

func (store *memoryStore) SumRevenue(ctx context.Context, hostelID *HostelID) (RevenueTotals, error) {
	if err := store.fault("SumRevenue"); err != nil {
		return RevenueTotals{}, err
	}
	var totals RevenueTotals
	store.read(func(state *memoryState) {
		totals = sumRevenue(state, hostelID)
	})
	return totals, nil
}

func (store *memoryStore) CountSummary(ctx context.Context) (SummaryCounts, error) {
	if err := store.fault("CountSummary"); err != nil {
		return SummaryCounts{}, err
	}
	var counts SummaryCounts
	store.read(func(state *memoryState) {
		counts.Students = int64(len(state.students))
		counts.Hostels = int64(len(state.hostels))
		counts.Rooms = int64(len(state.rooms))
		counts.Beds = countBeds(state, nil)
		counts.Revenue = sumRevenue(state, nil)
		for _, booking := range state.bookings {
			switch booking.Status {
			case BookingStatusPending:
				counts.PendingBookings++
			case BookingStatusActive:
				counts.ActiveBookings++
			case BookingStatusCompleted:
				counts.CompletedBookings++
			case BookingStatusCancelled:
				counts.CancelledBookings++
			}
		}
	})
	return counts, nil
}

func (store *memoryStore) ListHostelCounts(ctx context.Context) ([]HostelCounts, error) {
	if err := store.fault("ListHostelCounts"); err != nil {
		return nil, err
	}
	var rows []HostelCounts
	store.read(func(state *memoryState) {
		for _, hostel := range state.hostels {
			hostelID, _ := NewHostelID(hostel.id)
			row := HostelCounts{
				HostelID:   hostelID,
				HostelName: hostel.name,
				HostelType: hostel.hostelType,
				Beds:       countBeds(state, &hostelID),
			}
			for _, room := range state.rooms {
				if room.hostelID == hostel.id {
					row.Rooms++
					row.Capacity += room.capacity
				}
			}
			for _, booking := range state.bookings {
				if booking.Status == BookingStatusActive && hostelOfBed(state, booking.BedID) == hostel.id {
					row.ActiveBookings++
				}
			}
			rows = append(rows, row)
		}
	})
	sort.Slice(rows, func(left, right int) bool {
		return rows[left].HostelName < rows[right].HostelName
	})
	return rows, nil
}

func (store *memoryStore) filterBookings(keep func(booking Booking) bool) []Booking {
	var bookings []Booking
	store.read(func(state *memoryState) {
		for _, booking := range state.bookings {
			if keep(booking) {
				bookings = append(bookings, booking)
			}
		}
	})
	sort.Slice(bookings, func(left, right int) bool {
		return bookings[left].ID.Int64() < bookings[right].ID.Int64()
	})
	return bookings
}

func countBeds(state *memoryState, hostelID *HostelID) BedCounts {
	var counts BedCounts
	for _, bed := range state.beds {
		if hostelID != nil && hostelOfBed(state, bed.ID) != hostelID.Int64() {
			continue
		}
		counts.Total++
		if bed.Status == BedStatusOccupied {
			counts.Occupied++
		}
	}
	return counts
}

func sumRevenue(state *memoryState, hostelID *HostelID) RevenueTotals {
	var totals RevenueTotals
	paidBookings := map[BookingID]bool{}
	for _, payment := range state.payments {
		if payment.Status != PaymentStatusSuccess {
			continue
		}
		booking := state.bookings[payment.BookingID.Int64()]
		if hostelID != nil && hostelOfBed(state, booking.BedID) != hostelID.Int64() {
			continue
		}
		totals.Payments++
		totals.Revenue += payment.Amount
		paidBookings[payment.BookingID] = true
	}
	totals.Bookings = int64(len(paidBookings))
	return totals
}

func hostelOfBed(state *memoryState, bedID BedID) int64 {
	bed := state.beds[bedID.Int64()]
	return state.rooms[bed.RoomID.Int64()].hostelID
}

func statusIn(status BookingStatus, statuses []BookingStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

// fixture helpers

func (store *memoryStore) addHostel(test *testing.T, id int64, name string, genderAllowed string) HostelID {
	test.Helper()
	store.database.committed.hostels[id] = memoryHostel{id: id, name: name, hostelType: "Boys", genderAllowed: genderAllowed}
	return mustHostelID(test, id)
}

func (store *memoryStore) addRoom(test *testing.T, id int64, hostelID HostelID, number string, roomType string, price AmountCents) RoomID {
	test.Helper()
	store.database.committed.rooms[id] = memoryRoom{id: id, hostelID: hostelID.Int64(), number: number, roomType: roomType, capacity: 2, price: price}
	return mustRoomID(test, id)
}

func (store *memoryStore) addBed(test *testing.T, id int64, roomID RoomID, number string) BedID {
	test.Helper()
	bedID := mustBedID(test, id)
	store.database.committed.beds[id] = Bed{ID: bedID, RoomID: roomID, BedNumber: number, Status: BedStatusAvailable}
	return bedID
}

func (store *memoryStore) addStudent(test *testing.T, id int64) StudentID {
	test.Helper()
	store.database.committed.students[id] = memoryStudent{
		id:         id,
		name:       fmt.Sprintf("Student %d", id),
		email:      fmt.Sprintf("student%d@campus.test", id),
		department: "CSE",
		year:       2,
	}
	return mustStudentID(test, id)
}

func (store *memoryStore) bed(test *testing.T, bedID BedID) Bed {
	test.Helper()
	bed, found := store.snapshot().beds[bedID.Int64()]
	if !found {
		test.Fatalf("bed %s missing", bedID)
	}
	return bed
}

func (store *memoryStore) booking(test *testing.T, bookingID BookingID) Booking {
	test.Helper()
	booking, found := store.snapshot().bookings[bookingID.Int64()]
	if !found {
		test.Fatalf("booking %s missing", bookingID)
	}
	return booking
}

func (store *memoryStore) successfulPayments(bookingID BookingID) int {
	count := 0
	for _, payment := range store.snapshot().payments {
		if payment.BookingID == bookingID && payment.Status == PaymentStatusSuccess {
			count++
		}
	}
	return count
}

// assertInvariants checks the committed state: no overlapping bed-holding bookings per
// bed, one bed-holding booking per student, bed status matches holding bookings, and at
// most one success payment per booking.
func (store *memoryStore) assertInvariants(test *testing.T) {
	test.Helper()
	state := store.snapshot()
	holdingByBed := map[BedID][]Booking{}
	holdingByStudent := map[StudentID]int{}
	for _, booking := range state.bookings {
		if !booking.Status.HoldsBed() {
			continue
		}
		holdingByBed[booking.BedID] = append(holdingByBed[booking.BedID], booking)
		holdingByStudent[booking.StudentID]++
	}
	for bedID, bookings := range holdingByBed {
		for left := 0; left < len(bookings); left++ {
			for right := left + 1; right < len(bookings); right++ {
				if bookings[left].Period.Overlaps(bookings[right].Period) {
					test.Fatalf("bed %s has overlapping bookings %s and %s", bedID, bookings[left].Period, bookings[right].Period)
				}
			}
		}
	}
	for studentID, count := range holdingByStudent {
		if count > 1 {
			test.Fatalf("student %s holds %d bookings", studentID, count)
		}
	}
	for _, bed := range state.beds {
		expected := BedStatusAvailable
		if len(holdingByBed[bed.ID]) > 0 {
			expected = BedStatusOccupied
		}
		if bed.Status != expected {
			test.Fatalf("bed %s status %s, expected %s", bed.ID, bed.Status, expected)
		}
	}
	successes := map[BookingID]int{}
	for _, payment := range state.payments {
		if payment.Status == PaymentStatusSuccess {
			successes[payment.BookingID]++
		}
	}
	for bookingID, count := range successes {
		if count > 1 {
			test.Fatalf("booking %s has %d success payments", bookingID, count)
		}
	}
}
