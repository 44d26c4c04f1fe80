package housing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AmountCents is an integer currency amount in cents.
type AmountCents int64

// NewAmountCents validates an amount and ensures it is strictly positive.
func NewAmountCents(raw int64) (AmountCents, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return AmountCents(raw), nil
}

// Int64 returns the raw cent value.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// HostelID identifies a hostel.
type HostelID struct {
	value int64
}

// NewHostelID validates a hostel id.
func NewHostelID(raw int64) (HostelID, error) {
	if raw <= 0 {
		return HostelID{}, fmt.Errorf("%w: %d", ErrInvalidHostelID, raw)
	}
	return HostelID{value: raw}, nil
}

// Int64 returns the raw identifier.
func (id HostelID) Int64() int64 { return id.value }

// String returns the decimal identifier.
func (id HostelID) String() string { return strconv.FormatInt(id.value, 10) }

// RoomID identifies a room.
type RoomID struct {
	value int64
}

// NewRoomID validates a room id.
func NewRoomID(raw int64) (RoomID, error) {
	if raw <= 0 {
		return RoomID{}, fmt.Errorf("%w: %d", ErrInvalidRoomID, raw)
	}
	return RoomID{value: raw}, nil
}

// Int64 returns the raw identifier.
func (id RoomID) Int64() int64 { return id.value }

// BedID identifies a physical bed.
type BedID struct {
	value int64
}

// NewBedID validates a bed id.
func NewBedID(raw int64) (BedID, error) {
	if raw <= 0 {
		return BedID{}, fmt.Errorf("%w: %d", ErrInvalidBedID, raw)
	}
	return BedID{value: raw}, nil
}

// Int64 returns the raw identifier.
func (id BedID) Int64() int64 { return id.value }

// String returns the decimal identifier.
func (id BedID) String() string { return strconv.FormatInt(id.value, 10) }

// StudentID identifies an authenticated student.
type StudentID struct {
	value int64
}

// NewStudentID validates a student id.
func NewStudentID(raw int64) (StudentID, error) {
	if raw <= 0 {
		return StudentID{}, fmt.Errorf("%w: %d", ErrInvalidStudentID, raw)
	}
	return StudentID{value: raw}, nil
}

// ParseStudentID parses a decimal student id, as carried in session claims.
func ParseStudentID(raw string) (StudentID, error) {
	parsed, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return StudentID{}, fmt.Errorf("%w: %q", ErrInvalidStudentID, raw)
	}
	return NewStudentID(parsed)
}

// Int64 returns the raw identifier.
func (id StudentID) Int64() int64 { return id.value }

// String returns the decimal identifier.
func (id StudentID) String() string { return strconv.FormatInt(id.value, 10) }

// BookingID identifies a booking.
type BookingID struct {
	value int64
}

// NewBookingID validates a booking id.
func NewBookingID(raw int64) (BookingID, error) {
	if raw <= 0 {
		return BookingID{}, fmt.Errorf("%w: %d", ErrInvalidBookingID, raw)
	}
	return BookingID{value: raw}, nil
}

// Int64 returns the raw identifier.
func (id BookingID) Int64() int64 { return id.value }

// String returns the decimal identifier.
func (id BookingID) String() string { return strconv.FormatInt(id.value, 10) }

// TransactionID is the unique token recorded with a payment.
type TransactionID struct {
	value string
}

// NewTransactionID validates and normalizes a transaction id.
func NewTransactionID(raw string) (TransactionID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TransactionID{}, fmt.Errorf("%w: empty value", ErrInvalidTransactionID)
	}
	return TransactionID{value: trimmed}, nil
}

// String returns the normalized token.
func (id TransactionID) String() string { return id.value }

// PaymentMode names how a payment was made.
type PaymentMode struct {
	value string
}

// NewPaymentMode validates a payment mode, defaulting to Online for empty input.
func NewPaymentMode(raw string) (PaymentMode, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = PaymentModeOnline
	}
	if len(trimmed) > maxPaymentModeLength {
		return PaymentMode{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidPaymentMode, maxPaymentModeLength)
	}
	return PaymentMode{value: trimmed}, nil
}

// String returns the normalized mode.
func (mode PaymentMode) String() string { return mode.value }

// MetadataJSON stores arbitrary booking metadata.
type MetadataJSON struct {
	value string
}

// NewMetadataJSON validates metadata string (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	if metadata.value == "" {
		return "{}"
	}
	return metadata.value
}

// Bed is the smallest allocatable unit.
type Bed struct {
	ID        BedID
	RoomID    RoomID
	BedNumber string
	Status    BedStatus
}

// Booking claims a bed for a student over a date range.
type Booking struct {
	ID             BookingID
	StudentID      StudentID
	BedID          BedID
	Period         DateRange
	Status         BookingStatus
	Metadata       MetadataJSON
	CreatedUnixUTC int64
}

// BookingInput is what the engine asks a Store to persist for a new booking.
type BookingInput struct {
	StudentID      StudentID
	BedID          BedID
	Period         DateRange
	Status         BookingStatus
	Metadata       MetadataJSON
	CreatedUnixUTC int64
}

// Payment is a recorded payment attempt for a booking.
type Payment struct {
	ID             int64
	BookingID      BookingID
	Amount         AmountCents
	Mode           PaymentMode
	Status         PaymentStatus
	TransactionID  TransactionID
	CreatedUnixUTC int64
}

// PaymentInput is what the engine asks a Store to persist for a new payment.
type PaymentInput struct {
	BookingID      BookingID
	Amount         AmountCents
	Mode           PaymentMode
	Status         PaymentStatus
	TransactionID  TransactionID
	CreatedUnixUTC int64
}

// BedFilter narrows bed searches. Zero values mean "no constraint".
type BedFilter struct {
	HostelID      *HostelID
	RoomType      string
	MinPrice      AmountCents
	MaxPrice      AmountCents
	GenderAllowed string
	AllowedYear   int
	Period        *DateRange
}

// BedListing is a bed joined with its room and hostel.
type BedListing struct {
	Bed                 Bed
	RoomNumber          string
	RoomType            string
	PricePerMonth       AmountCents
	HasAC               bool
	HasAttachedWashroom bool
	HostelID            HostelID
	HostelName          string
	HostelType          string
}

// BookingFilter narrows booking listings. Zero values mean "no constraint".
type BookingFilter struct {
	BookingID *BookingID
	StudentID *StudentID
	Statuses  []BookingStatus
	Limit     int
}

// BookingDetail is a booking joined with student, bed, room, and hostel data.
type BookingDetail struct {
	Booking       Booking
	StudentName   string
	StudentEmail  string
	Department    string
	Year          int
	HostelID      HostelID
	HostelName    string
	HostelType    string
	RoomNumber    string
	RoomType      string
	PricePerMonth AmountCents
	BedNumber     string
	BedStatus     BedStatus
}

// PaymentDetail is a payment with the hostel it paid for.
type PaymentDetail struct {
	Payment    Payment
	HostelName string
}

// BedCounts are raw bed totals read from the bed status cache.
type BedCounts struct {
	Total    int64
	Occupied int64
}

// RevenueTotals aggregate successful payments.
type RevenueTotals struct {
	Bookings int64
	Revenue  AmountCents
	Payments int64
}

// HostelCounts are raw per-hostel counters.
type HostelCounts struct {
	HostelID       HostelID
	HostelName     string
	HostelType     string
	Rooms          int64
	Capacity       int64
	ActiveBookings int64
	Beds           BedCounts
}

// SummaryCounts are raw portal-wide counters.
type SummaryCounts struct {
	Students          int64
	Hostels           int64
	Rooms             int64
	Beds              BedCounts
	PendingBookings   int64
	ActiveBookings    int64
	CompletedBookings int64
	CancelledBookings int64
	Revenue           RevenueTotals
}
