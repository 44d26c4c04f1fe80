package gormstore

import (
	"fmt"

	"gorm.io/gorm"
)

const (
	indexPaymentsBookingSuccess = "uniq_payments_booking_success"
	indexBookingsStudentHolding = "uniq_bookings_student_holding"
)

type partialIndex struct {
	model any
	name  string
	sql   map[string]string
}

// partialIndexes back the engine checks with database constraints: one success payment
// per booking and one pending or active booking per student. MySQL has no partial
// indexes, so it gets functional unique indexes that are NULL outside the predicate.
var partialIndexes = []partialIndex{
	{
		model: &Payment{},
		name:  indexPaymentsBookingSuccess,
		sql: map[string]string{
			dialectPostgres: "CREATE UNIQUE INDEX IF NOT EXISTS " + indexPaymentsBookingSuccess + " ON payments (booking_id) WHERE status = 'success'",
			dialectSQLite:   "CREATE UNIQUE INDEX IF NOT EXISTS " + indexPaymentsBookingSuccess + " ON payments (booking_id) WHERE status = 'success'",
			dialectMySQL:    "CREATE UNIQUE INDEX " + indexPaymentsBookingSuccess + " ON payments ((CASE WHEN status = 'success' THEN booking_id END))",
		},
	},
	{
		model: &Booking{},
		name:  indexBookingsStudentHolding,
		sql: map[string]string{
			dialectPostgres: "CREATE UNIQUE INDEX IF NOT EXISTS " + indexBookingsStudentHolding + " ON bookings (student_id) WHERE status IN ('pending', 'active')",
			dialectSQLite:   "CREATE UNIQUE INDEX IF NOT EXISTS " + indexBookingsStudentHolding + " ON bookings (student_id) WHERE status IN ('pending', 'active')",
			dialectMySQL:    "CREATE UNIQUE INDEX " + indexBookingsStudentHolding + " ON bookings ((CASE WHEN status IN ('pending', 'active') THEN student_id END))",
		},
	},
}

// Migrate creates or updates the housing tables and their partial unique indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Hostel{}, &Room{}, &Bed{}, &Student{}, &Booking{}, &Payment{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	dialect := db.Dialector.Name()
	for _, index := range partialIndexes {
		statement, supported := index.sql[dialect]
		if !supported {
			continue
		}
		if db.Migrator().HasIndex(index.model, index.name) {
			continue
		}
		if err := db.Exec(statement).Error; err != nil {
			return fmt.Errorf("create index %s: %w", index.name, err)
		}
	}
	return nil
}
