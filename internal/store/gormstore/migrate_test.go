package gormstore_test

import (
	"strings"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/hostel/internal/store/gormstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func tableSQL(t *testing.T, db *gorm.DB, table string) string {
	t.Helper()
	var statement string
	require.NoError(t, db.Raw("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&statement).Error)
	require.NotEmpty(t, statement, "table %s", table)
	return strings.NewReplacer("`", "", `"`, "").Replace(statement)
}

func TestMigrateForeignKeysPointAtParents(t *testing.T) {
	db := setupTestDB(t)

	bookings := tableSQL(t, db, "bookings")
	assert.Contains(t, bookings, "FOREIGN KEY (bed_id) REFERENCES beds(bed_id)")
	assert.Contains(t, bookings, "FOREIGN KEY (student_id) REFERENCES students(student_id)")
	assert.Contains(t, tableSQL(t, db, "payments"), "FOREIGN KEY (booking_id) REFERENCES bookings(booking_id)")
	assert.Contains(t, tableSQL(t, db, "beds"), "FOREIGN KEY (room_id) REFERENCES rooms(room_id)")

	for _, parent := range []string{"beds", "students"} {
		assert.NotContains(t, tableSQL(t, db, parent), "REFERENCES bookings", parent)
	}
	assert.NotContains(t, tableSQL(t, db, "bookings"), "REFERENCES payments")
}

func TestMigrateRejectsOrphanRows(t *testing.T) {
	f := newFixture(t, testNow)
	start := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)

	orphan := gormstore.Booking{StudentID: f.students[0].Int64(), BedID: 9999, StartDate: start, EndDate: start.AddDate(0, 6, 0), Status: "pending", Metadata: datatypes.JSON("{}"), CreatedAt: testNow}
	require.Error(t, f.db.Create(&orphan).Error)

	booking := gormstore.Booking{StudentID: f.students[0].Int64(), BedID: f.beds[0].Int64(), StartDate: start, EndDate: start.AddDate(0, 6, 0), Status: "pending", Metadata: datatypes.JSON("{}"), CreatedAt: testNow}
	require.NoError(t, f.db.Create(&booking).Error)

	payment := gormstore.Payment{BookingID: booking.BookingID + 100, AmountCents: 100, Mode: "Online", Status: "success", TransactionID: "txn-orphan", CreatedAt: testNow}
	require.Error(t, f.db.Create(&payment).Error)
	payment.BookingID = booking.BookingID
	require.NoError(t, f.db.Create(&payment).Error)
}
