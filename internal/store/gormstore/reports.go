package gormstore

import (
	"context"
	"time"

	"github.com/MarkoPoloResearchLab/hostel/pkg/housing"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	sqlHostelCounts = `
		SELECT
			h.hostel_id,
			h.name AS hostel_name,
			h.type AS hostel_type,
			(SELECT COUNT(*) FROM rooms r WHERE r.hostel_id = h.hostel_id) AS rooms,
			(SELECT COALESCE(SUM(r.capacity), 0) FROM rooms r WHERE r.hostel_id = h.hostel_id) AS capacity,
			(SELECT COUNT(*) FROM beds b JOIN rooms r ON r.room_id = b.room_id
				WHERE r.hostel_id = h.hostel_id) AS total_beds,
			(SELECT COUNT(*) FROM beds b JOIN rooms r ON r.room_id = b.room_id
				WHERE r.hostel_id = h.hostel_id AND b.status = 'occupied') AS occupied_beds,
			(SELECT COUNT(*) FROM bookings bk JOIN beds b ON b.bed_id = bk.bed_id JOIN rooms r ON r.room_id = b.room_id
				WHERE r.hostel_id = h.hostel_id AND bk.status = 'active') AS active_bookings
		FROM hostels h
		ORDER BY h.name, h.hostel_id
	`
)

type bookingDetailRow struct {
	BookingID          int64
	StudentID          int64
	BedID              int64
	StartDate          time.Time
	EndDate            time.Time
	Status             string
	Metadata           datatypes.JSON
	CreatedAt          time.Time
	StudentName        string
	StudentEmail       string
	Department         string
	Year               int
	HostelID           int64
	HostelName         string
	HostelType         string
	RoomNumber         string
	RoomType           string
	PricePerMonthCents int64
	BedNumber          string
	BedStatus          string
}

type paymentDetailRow struct {
	PaymentID     int64
	BookingID     int64
	AmountCents   int64
	Mode          string
	Status        string
	TransactionID string
	CreatedAt     time.Time
	HostelName    string
}

type bedListingRow struct {
	BedID               int64
	RoomID              int64
	BedNumber           string
	Status              string
	RoomNumber          string
	RoomType            string
	PricePerMonthCents  int64
	HasAC               bool `gorm:"column:has_ac"`
	HasAttachedWashroom bool
	HostelID            int64
	HostelName          string
	HostelType          string
}

type bedCountRow struct {
	Total    int64
	Occupied int64
}

type revenueRow struct {
	Bookings int64
	Revenue  int64
	Payments int64
}

type statusCountRow struct {
	Status string
	Total  int64
}

type hostelCountRow struct {
	HostelID       int64
	HostelName     string
	HostelType     string
	Rooms          int64
	Capacity       int64
	TotalBeds      int64
	OccupiedBeds   int64
	ActiveBookings int64
}

func (store *Store) ListBookings(ctx context.Context, filter housing.BookingFilter) ([]housing.BookingDetail, error) {
	query := store.db.WithContext(ctx).
		Table("bookings AS bk").
		Select(`bk.booking_id, bk.student_id, bk.bed_id, bk.start_date, bk.end_date, bk.status, bk.metadata, bk.created_at,
			s.name AS student_name, s.email AS student_email, s.department, s.year,
			h.hostel_id, h.name AS hostel_name, h.type AS hostel_type,
			r.room_number, r.room_type, r.price_per_month_cents,
			b.bed_number, b.status AS bed_status`).
		Joins("JOIN students AS s ON s.student_id = bk.student_id").
		Joins("JOIN beds AS b ON b.bed_id = bk.bed_id").
		Joins("JOIN rooms AS r ON r.room_id = b.room_id").
		Joins("JOIN hostels AS h ON h.hostel_id = r.hostel_id")
	if filter.BookingID != nil {
		query = query.Where("bk.booking_id = ?", filter.BookingID.Int64())
	}
	if filter.StudentID != nil {
		query = query.Where("bk.student_id = ?", filter.StudentID.Int64())
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("bk.status IN ?", statusStrings(filter.Statuses))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var rows []bookingDetailRow
	if err := query.Order("bk.created_at DESC, bk.booking_id DESC").Scan(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	details := make([]housing.BookingDetail, 0, len(rows))
	for _, row := range rows {
		detail, err := mapBookingDetail(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
		}
		details = append(details, detail)
	}
	return details, nil
}

func (store *Store) ListStudentPayments(ctx context.Context, studentID housing.StudentID) ([]housing.PaymentDetail, error) {
	var rows []paymentDetailRow
	err := store.db.WithContext(ctx).
		Table("payments AS p").
		Select("p.payment_id, p.booking_id, p.amount_cents, p.mode, p.status, p.transaction_id, p.created_at, h.name AS hostel_name").
		Joins("JOIN bookings AS bk ON bk.booking_id = p.booking_id").
		Joins("JOIN beds AS b ON b.bed_id = bk.bed_id").
		Joins("JOIN rooms AS r ON r.room_id = b.room_id").
		Joins("JOIN hostels AS h ON h.hostel_id = r.hostel_id").
		Where("bk.student_id = ?", studentID.Int64()).
		Order("p.created_at DESC, p.payment_id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectPayment, errorCodeList, err)
	}
	details := make([]housing.PaymentDetail, 0, len(rows))
	for _, row := range rows {
		payment, err := mapPayment(Payment{
			PaymentID:     row.PaymentID,
			BookingID:     row.BookingID,
			AmountCents:   row.AmountCents,
			Mode:          row.Mode,
			Status:        row.Status,
			TransactionID: row.TransactionID,
			CreatedAt:     row.CreatedAt,
		})
		if err != nil {
			return nil, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
		}
		details = append(details, housing.PaymentDetail{Payment: payment, HostelName: row.HostelName})
	}
	return details, nil
}

func (store *Store) ListBeds(ctx context.Context, filter housing.BedFilter) ([]housing.BedListing, error) {
	query := store.db.WithContext(ctx).
		Table("beds AS b").
		Select(`b.bed_id, b.room_id, b.bed_number, b.status,
			r.room_number, r.room_type, r.price_per_month_cents, r.has_ac, r.has_attached_washroom,
			h.hostel_id, h.name AS hostel_name, h.type AS hostel_type`).
		Joins("JOIN rooms AS r ON r.room_id = b.room_id").
		Joins("JOIN hostels AS h ON h.hostel_id = r.hostel_id")
	if filter.HostelID != nil {
		query = query.Where("h.hostel_id = ?", filter.HostelID.Int64())
	}
	if filter.RoomType != "" {
		query = query.Where("r.room_type = ?", filter.RoomType)
	}
	if filter.MinPrice > 0 {
		query = query.Where("r.price_per_month_cents >= ?", filter.MinPrice.Int64())
	}
	if filter.MaxPrice > 0 {
		query = query.Where("r.price_per_month_cents <= ?", filter.MaxPrice.Int64())
	}
	if filter.GenderAllowed != "" {
		query = query.Where("h.gender_allowed = ?", filter.GenderAllowed)
	}
	if filter.AllowedYear > 0 {
		query = query.Where("(h.allowed_year IS NULL OR h.allowed_year = ?)", filter.AllowedYear)
	}
	var rows []bedListingRow
	if err := query.Order("h.name, r.room_number, b.bed_number").Scan(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectBed, errorCodeList, err)
	}
	listings := make([]housing.BedListing, 0, len(rows))
	for _, row := range rows {
		listing, err := mapBedListing(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBed, errorCodeInvalid, err)
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

func (store *Store) CountBeds(ctx context.Context, hostelID *housing.HostelID) (housing.BedCounts, error) {
	counts, err := store.countBeds(store.db.WithContext(ctx), hostelID)
	if err != nil {
		return housing.BedCounts{}, wrapStoreError(errorSubjectReport, errorCodeCount, err)
	}
	return counts, nil
}

func (store *Store) countBeds(db *gorm.DB, hostelID *housing.HostelID) (housing.BedCounts, error) {
	query := db.Table("beds AS b").
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN b.status = 'occupied' THEN 1 ELSE 0 END), 0) AS occupied").
		Joins("JOIN rooms AS r ON r.room_id = b.room_id")
	if hostelID != nil {
		query = query.Where("r.hostel_id = ?", hostelID.Int64())
	}
	var row bedCountRow
	if err := query.Scan(&row).Error; err != nil {
		return housing.BedCounts{}, err
	}
	return housing.BedCounts{Total: row.Total, Occupied: row.Occupied}, nil
}

func (store *Store) SumRevenue(ctx context.Context, hostelID *housing.HostelID) (housing.RevenueTotals, error) {
	totals, err := store.sumRevenue(store.db.WithContext(ctx), hostelID)
	if err != nil {
		return housing.RevenueTotals{}, wrapStoreError(errorSubjectReport, errorCodeCount, err)
	}
	return totals, nil
}

func (store *Store) sumRevenue(db *gorm.DB, hostelID *housing.HostelID) (housing.RevenueTotals, error) {
	query := db.Table("payments AS p").
		Select("COUNT(DISTINCT p.booking_id) AS bookings, COALESCE(SUM(p.amount_cents), 0) AS revenue, COUNT(*) AS payments").
		Where("p.status = ?", housing.PaymentStatusSuccess.String())
	if hostelID != nil {
		query = query.
			Joins("JOIN bookings AS bk ON bk.booking_id = p.booking_id").
			Joins("JOIN beds AS b ON b.bed_id = bk.bed_id").
			Joins("JOIN rooms AS r ON r.room_id = b.room_id").
			Where("r.hostel_id = ?", hostelID.Int64())
	}
	var row revenueRow
	if err := query.Scan(&row).Error; err != nil {
		return housing.RevenueTotals{}, err
	}
	return housing.RevenueTotals{Bookings: row.Bookings, Revenue: housing.AmountCents(row.Revenue), Payments: row.Payments}, nil
}

func (store *Store) CountSummary(ctx context.Context) (housing.SummaryCounts, error) {
	db := store.db.WithContext(ctx)
	var counts housing.SummaryCounts
	for _, counter := range []struct {
		model  any
		target *int64
	}{
		{model: &Student{}, target: &counts.Students},
		{model: &Hostel{}, target: &counts.Hostels},
		{model: &Room{}, target: &counts.Rooms},
	} {
		if err := db.Model(counter.model).Count(counter.target).Error; err != nil {
			return housing.SummaryCounts{}, wrapStoreError(errorSubjectReport, errorCodeCount, err)
		}
	}
	var statusRows []statusCountRow
	if err := db.Model(&Booking{}).Select("status, COUNT(*) AS total").Group("status").Scan(&statusRows).Error; err != nil {
		return housing.SummaryCounts{}, wrapStoreError(errorSubjectReport, errorCodeCount, err)
	}
	for _, row := range statusRows {
		switch housing.BookingStatus(row.Status) {
		case housing.BookingStatusPending:
			counts.PendingBookings = row.Total
		case housing.BookingStatusActive:
			counts.ActiveBookings = row.Total
		case housing.BookingStatusCompleted:
			counts.CompletedBookings = row.Total
		case housing.BookingStatusCancelled:
			counts.CancelledBookings = row.Total
		}
	}
	beds, err := store.countBeds(db, nil)
	if err != nil {
		return housing.SummaryCounts{}, wrapStoreError(errorSubjectReport, errorCodeCount, err)
	}
	counts.Beds = beds
	revenue, err := store.sumRevenue(db, nil)
	if err != nil {
		return housing.SummaryCounts{}, wrapStoreError(errorSubjectReport, errorCodeCount, err)
	}
	counts.Revenue = revenue
	return counts, nil
}

func (store *Store) ListHostelCounts(ctx context.Context) ([]housing.HostelCounts, error) {
	var rows []hostelCountRow
	if err := store.db.WithContext(ctx).Raw(sqlHostelCounts).Scan(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectReport, errorCodeList, err)
	}
	counts := make([]housing.HostelCounts, 0, len(rows))
	for _, row := range rows {
		hostelID, err := housing.NewHostelID(row.HostelID)
		if err != nil {
			return nil, wrapStoreError(errorSubjectReport, errorCodeInvalid, err)
		}
		counts = append(counts, housing.HostelCounts{
			HostelID:       hostelID,
			HostelName:     row.HostelName,
			HostelType:     row.HostelType,
			Rooms:          row.Rooms,
			Capacity:       row.Capacity,
			ActiveBookings: row.ActiveBookings,
			Beds:           housing.BedCounts{Total: row.TotalBeds, Occupied: row.OccupiedBeds},
		})
	}
	return counts, nil
}

func mapBookingDetail(row bookingDetailRow) (housing.BookingDetail, error) {
	booking, err := mapBooking(Booking{
		BookingID: row.BookingID,
		StudentID: row.StudentID,
		BedID:     row.BedID,
		StartDate: row.StartDate,
		EndDate:   row.EndDate,
		Status:    row.Status,
		Metadata:  row.Metadata,
		CreatedAt: row.CreatedAt,
	})
	if err != nil {
		return housing.BookingDetail{}, err
	}
	hostelID, err := housing.NewHostelID(row.HostelID)
	if err != nil {
		return housing.BookingDetail{}, err
	}
	bedStatus, err := housing.ParseBedStatus(row.BedStatus)
	if err != nil {
		return housing.BookingDetail{}, err
	}
	return housing.BookingDetail{
		Booking:       booking,
		StudentName:   row.StudentName,
		StudentEmail:  row.StudentEmail,
		Department:    row.Department,
		Year:          row.Year,
		HostelID:      hostelID,
		HostelName:    row.HostelName,
		HostelType:    row.HostelType,
		RoomNumber:    row.RoomNumber,
		RoomType:      row.RoomType,
		PricePerMonth: housing.AmountCents(row.PricePerMonthCents),
		BedNumber:     row.BedNumber,
		BedStatus:     bedStatus,
	}, nil
}

func mapBedListing(row bedListingRow) (housing.BedListing, error) {
	bed, err := mapBed(Bed{BedID: row.BedID, RoomID: row.RoomID, BedNumber: row.BedNumber, Status: row.Status})
	if err != nil {
		return housing.BedListing{}, err
	}
	hostelID, err := housing.NewHostelID(row.HostelID)
	if err != nil {
		return housing.BedListing{}, err
	}
	return housing.BedListing{
		Bed:                 bed,
		RoomNumber:          row.RoomNumber,
		RoomType:            row.RoomType,
		PricePerMonth:       housing.AmountCents(row.PricePerMonthCents),
		HasAC:               row.HasAC,
		HasAttachedWashroom: row.HasAttachedWashroom,
		HostelID:            hostelID,
		HostelName:          row.HostelName,
		HostelType:          row.HostelType,
	}, nil
}
