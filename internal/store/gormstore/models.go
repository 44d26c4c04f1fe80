package gormstore

import (
	"time"

	"gorm.io/datatypes"
)

// Hostel mirrors the hostels table.
type Hostel struct {
	HostelID      int64  `gorm:"column:hostel_id;primaryKey;autoIncrement"`
	Name          string `gorm:"size:100;not null"`
	Type          string `gorm:"size:20;not null"`
	GenderAllowed string `gorm:"size:10;not null"`
	AllowedYear   *int
	Address       string `gorm:"size:255"`
	Rooms         []Room `gorm:"foreignKey:HostelID;constraint:OnDelete:CASCADE"`
}

func (Hostel) TableName() string { return "hostels" }

// Room mirrors the rooms table. Prices are stored in cents.
type Room struct {
	RoomID              int64  `gorm:"column:room_id;primaryKey;autoIncrement"`
	HostelID            int64  `gorm:"not null;index"`
	RoomNumber          string `gorm:"size:20;not null"`
	RoomType            string `gorm:"size:20;not null"`
	Capacity            int    `gorm:"not null"`
	PricePerMonthCents  int64  `gorm:"not null"`
	HasAC               bool   `gorm:"column:has_ac;not null;default:false"`
	HasAttachedWashroom bool   `gorm:"not null;default:false"`
	Beds                []Bed  `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}

func (Room) TableName() string { return "rooms" }

// Bed mirrors the beds table. Status caches whether a pending or active booking holds it.
type Bed struct {
	BedID     int64     `gorm:"column:bed_id;primaryKey;autoIncrement"`
	RoomID    int64     `gorm:"not null;index"`
	BedNumber string    `gorm:"size:10;not null"`
	Status    string    `gorm:"size:20;not null;default:available"`
	Bookings  []Booking `gorm:"foreignKey:BedID;constraint:OnDelete:RESTRICT"`
}

func (Bed) TableName() string { return "beds" }

// Student mirrors the students table.
type Student struct {
	StudentID    int64  `gorm:"column:student_id;primaryKey;autoIncrement"`
	Name         string `gorm:"size:100;not null"`
	Email        string `gorm:"size:191;not null;uniqueIndex"`
	Department   string `gorm:"size:100"`
	Year         int
	Gender       string    `gorm:"size:10"`
	PasswordHash string    `gorm:"size:255"`
	Bookings     []Booking `gorm:"foreignKey:StudentID;constraint:OnDelete:RESTRICT"`
}

func (Student) TableName() string { return "students" }

// Booking mirrors the bookings table.
type Booking struct {
	BookingID int64          `gorm:"column:booking_id;primaryKey;autoIncrement"`
	StudentID int64          `gorm:"not null;index"`
	BedID     int64          `gorm:"not null;index:idx_bookings_bed_status,priority:1"`
	StartDate time.Time      `gorm:"type:date;not null"`
	EndDate   time.Time      `gorm:"type:date;not null"`
	Status    string         `gorm:"size:20;not null;index:idx_bookings_bed_status,priority:2"`
	Metadata  datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
	Payments  []Payment      `gorm:"foreignKey:BookingID;constraint:OnDelete:RESTRICT"`
}

func (Booking) TableName() string { return "bookings" }

// Payment mirrors the payments table.
type Payment struct {
	PaymentID     int64     `gorm:"column:payment_id;primaryKey;autoIncrement"`
	BookingID     int64     `gorm:"not null;index"`
	AmountCents   int64     `gorm:"not null"`
	Mode          string    `gorm:"size:50;not null"`
	Status        string    `gorm:"size:20;not null"`
	TransactionID string    `gorm:"size:100;not null;uniqueIndex:uniq_payments_transaction_id"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }
