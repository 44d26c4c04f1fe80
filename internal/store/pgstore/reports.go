package pgstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/hostel/pkg/housing"
)

const (
	sqlSelectBookingDetails = `
		select
			bk.booking_id, bk.student_id, bk.bed_id, bk.start_date, bk.end_date, bk.status::text,
			coalesce(bk.metadata::text, '{}'), extract(epoch from bk.created_at)::bigint,
			s.name, s.email, s.department, s.year,
			h.hostel_id, h.name, h.type, r.room_number, r.room_type, r.price_per_month_cents,
			b.bed_number, b.status::text
		from bookings bk
		join students s on s.student_id = bk.student_id
		join beds b on b.bed_id = bk.bed_id
		join rooms r on r.room_id = b.room_id
		join hostels h on h.hostel_id = r.hostel_id
	`

	sqlSelectStudentPayments = `
		select p.payment_id, p.booking_id, p.amount_cents, p.mode, p.status::text, p.transaction_id,
			extract(epoch from p.created_at)::bigint, h.name
		from payments p
		join bookings bk on bk.booking_id = p.booking_id
		join beds b on b.bed_id = bk.bed_id
		join rooms r on r.room_id = b.room_id
		join hostels h on h.hostel_id = r.hostel_id
		where bk.student_id = $1
		order by p.created_at desc, p.payment_id desc
	`

	sqlSelectBeds = `
		select b.bed_id, b.room_id, b.bed_number, b.status::text,
			r.room_number, r.room_type, r.price_per_month_cents, r.has_ac, r.has_attached_washroom,
			h.hostel_id, h.name, h.type
		from beds b
		join rooms r on r.room_id = b.room_id
		join hostels h on h.hostel_id = r.hostel_id
	`

	sqlCountBeds = `
		select count(*), count(*) filter (where b.status = 'occupied')
		from beds b
		join rooms r on r.room_id = b.room_id
		where ($1::bigint = 0 or r.hostel_id = $1)
	`

	sqlSumRevenue = `
		select count(distinct p.booking_id), coalesce(sum(p.amount_cents), 0)::bigint, count(*)
		from payments p
		join bookings bk on bk.booking_id = p.booking_id
		join beds b on b.bed_id = bk.bed_id
		join rooms r on r.room_id = b.room_id
		where p.status = 'success' and ($1::bigint = 0 or r.hostel_id = $1)
	`

	sqlCountSummary = `
		select
			(select count(*) from students),
			(select count(*) from hostels),
			(select count(*) from rooms),
			count(*) filter (where status = 'pending'),
			count(*) filter (where status = 'active'),
			count(*) filter (where status = 'completed'),
			count(*) filter (where status = 'cancelled')
		from bookings
	`

	sqlHostelCounts = `
		select
			h.hostel_id, h.name, h.type,
			(select count(*) from rooms r where r.hostel_id = h.hostel_id),
			(select coalesce(sum(r.capacity), 0)::bigint from rooms r where r.hostel_id = h.hostel_id),
			(select count(*) from beds b join rooms r on r.room_id = b.room_id
				where r.hostel_id = h.hostel_id),
			(select count(*) from beds b join rooms r on r.room_id = b.room_id
				where r.hostel_id = h.hostel_id and b.status = 'occupied'),
			(select count(*) from bookings bk join beds b on b.bed_id = bk.bed_id join rooms r on r.room_id = b.room_id
				where r.hostel_id = h.hostel_id and bk.status = 'active')
		from hostels h
		order by h.name, h.hostel_id
	`
)

// whereBuilder collects filter predicates with numbered placeholders.
type whereBuilder struct {
	predicates []string
	args       []any
}

func (builder *whereBuilder) add(predicate string, value any) {
	builder.args = append(builder.args, value)
	builder.predicates = append(builder.predicates, strings.ReplaceAll(predicate, "?", fmt.Sprintf("$%d", len(builder.args))))
}

func (builder *whereBuilder) placeholder(value any) string {
	builder.args = append(builder.args, value)
	return fmt.Sprintf("$%d", len(builder.args))
}

func (builder *whereBuilder) clause() string {
	if len(builder.predicates) == 0 {
		return ""
	}
	return " where " + strings.Join(builder.predicates, " and ")
}

func bookingFilterQuery(filter housing.BookingFilter) (string, []any) {
	builder := &whereBuilder{}
	if filter.BookingID != nil {
		builder.add("bk.booking_id = ?", filter.BookingID.Int64())
	}
	if filter.StudentID != nil {
		builder.add("bk.student_id = ?", filter.StudentID.Int64())
	}
	if len(filter.Statuses) > 0 {
		builder.add("bk.status = any(?)", statusStrings(filter.Statuses))
	}
	statement := sqlSelectBookingDetails + builder.clause() + " order by bk.created_at desc, bk.booking_id desc"
	if filter.Limit > 0 {
		statement += " limit " + builder.placeholder(int64(filter.Limit))
	}
	return statement, builder.args
}

func bedFilterQuery(filter housing.BedFilter) (string, []any) {
	builder := &whereBuilder{}
	if filter.HostelID != nil {
		builder.add("h.hostel_id = ?", filter.HostelID.Int64())
	}
	if filter.RoomType != "" {
		builder.add("r.room_type = ?", filter.RoomType)
	}
	if filter.MinPrice > 0 {
		builder.add("r.price_per_month_cents >= ?", filter.MinPrice.Int64())
	}
	if filter.MaxPrice > 0 {
		builder.add("r.price_per_month_cents <= ?", filter.MaxPrice.Int64())
	}
	if filter.GenderAllowed != "" {
		builder.add("h.gender_allowed = ?", filter.GenderAllowed)
	}
	if filter.AllowedYear > 0 {
		builder.add("(h.allowed_year is null or h.allowed_year = ?)", int64(filter.AllowedYear))
	}
	return sqlSelectBeds + builder.clause() + " order by h.name, r.room_number, b.bed_number", builder.args
}

func (store *Store) ListBookings(ctx context.Context, filter housing.BookingFilter) ([]housing.BookingDetail, error) {
	statement, args := bookingFilterQuery(filter)
	rows, err := store.db.Query(ctx, statement, args...)
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	defer rows.Close()
	details := make([]housing.BookingDetail, 0, 16)
	for rows.Next() {
		var (
			columns       bookingRow
			detail        housing.BookingDetail
			hostelValue   int64
			priceValue    int64
			bedStatusText string
		)
		targets := append(columns.targets(),
			&detail.StudentName, &detail.StudentEmail, &detail.Department, &detail.Year,
			&hostelValue, &detail.HostelName, &detail.HostelType, &detail.RoomNumber, &detail.RoomType, &priceValue,
			&detail.BedNumber, &bedStatusText,
		)
		if err := rows.Scan(targets...); err != nil {
			return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
		}
		booking, err := columns.booking()
		if err != nil {
			return nil, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
		}
		hostelID, err := housing.NewHostelID(hostelValue)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
		}
		bedStatus, err := housing.ParseBedStatus(bedStatusText)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
		}
		detail.Booking = booking
		detail.HostelID = hostelID
		detail.PricePerMonth = housing.AmountCents(priceValue)
		detail.BedStatus = bedStatus
		details = append(details, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	return details, nil
}

func (store *Store) ListStudentPayments(ctx context.Context, studentID housing.StudentID) ([]housing.PaymentDetail, error) {
	rows, err := store.db.Query(ctx, sqlSelectStudentPayments, studentID.Int64())
	if err != nil {
		return nil, wrapStoreError(errorSubjectPayment, errorCodeList, err)
	}
	defer rows.Close()
	details := make([]housing.PaymentDetail, 0, 8)
	for rows.Next() {
		var (
			paymentValue  int64
			bookingValue  int64
			amountValue   int64
			modeText      string
			statusText    string
			transactionID string
			createdUnix   int64
			hostelName    string
		)
		if err := rows.Scan(&paymentValue, &bookingValue, &amountValue, &modeText, &statusText, &transactionID, &createdUnix, &hostelName); err != nil {
			return nil, wrapStoreError(errorSubjectPayment, errorCodeList, err)
		}
		payment, err := newPayment(paymentValue, bookingValue, amountValue, modeText, statusText, transactionID, createdUnix)
		if err != nil {
			return nil, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
		}
		details = append(details, housing.PaymentDetail{Payment: payment, HostelName: hostelName})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectPayment, errorCodeList, err)
	}
	return details, nil
}

func (store *Store) ListBeds(ctx context.Context, filter housing.BedFilter) ([]housing.BedListing, error) {
	statement, args := bedFilterQuery(filter)
	rows, err := store.db.Query(ctx, statement, args...)
	if err != nil {
		return nil, wrapStoreError(errorSubjectBed, errorCodeList, err)
	}
	defer rows.Close()
	listings := make([]housing.BedListing, 0, 32)
	for rows.Next() {
		var (
			bedValue    int64
			roomValue   int64
			bedNumber   string
			statusText  string
			hostelValue int64
			priceValue  int64
			listing     housing.BedListing
		)
		if err := rows.Scan(
			&bedValue, &roomValue, &bedNumber, &statusText,
			&listing.RoomNumber, &listing.RoomType, &priceValue, &listing.HasAC, &listing.HasAttachedWashroom,
			&hostelValue, &listing.HostelName, &listing.HostelType,
		); err != nil {
			return nil, wrapStoreError(errorSubjectBed, errorCodeList, err)
		}
		bed, err := newBed(bedValue, roomValue, bedNumber, statusText)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBed, errorCodeInvalid, err)
		}
		hostelID, err := housing.NewHostelID(hostelValue)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBed, errorCodeInvalid, err)
		}
		listing.Bed = bed
		listing.HostelID = hostelID
		listing.PricePerMonth = housing.AmountCents(priceValue)
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectBed, errorCodeList, err)
	}
	return listings, nil
}

func (store *Store) CountBeds(ctx context.Context, hostelID *housing.HostelID) (housing.BedCounts, error) {
	var counts housing.BedCounts
	if err := store.db.QueryRow(ctx, sqlCountBeds, optionalHostel(hostelID)).Scan(&counts.Total, &counts.Occupied); err != nil {
		return housing.BedCounts{}, wrapStoreError(errorSubjectReport, errorCodeCount, err)
	}
	return counts, nil
}

func (store *Store) SumRevenue(ctx context.Context, hostelID *housing.HostelID) (housing.RevenueTotals, error) {
	var (
		totals  housing.RevenueTotals
		revenue int64
	)
	if err := store.db.QueryRow(ctx, sqlSumRevenue, optionalHostel(hostelID)).Scan(&totals.Bookings, &revenue, &totals.Payments); err != nil {
		return housing.RevenueTotals{}, wrapStoreError(errorSubjectReport, errorCodeCount, err)
	}
	totals.Revenue = housing.AmountCents(revenue)
	return totals, nil
}

func (store *Store) CountSummary(ctx context.Context) (housing.SummaryCounts, error) {
	var counts housing.SummaryCounts
	err := store.db.QueryRow(ctx, sqlCountSummary).Scan(
		&counts.Students,
		&counts.Hostels,
		&counts.Rooms,
		&counts.PendingBookings,
		&counts.ActiveBookings,
		&counts.CompletedBookings,
		&counts.CancelledBookings,
	)
	if err != nil {
		return housing.SummaryCounts{}, wrapStoreError(errorSubjectReport, errorCodeCount, err)
	}
	beds, err := store.CountBeds(ctx, nil)
	if err != nil {
		return housing.SummaryCounts{}, err
	}
	revenue, err := store.SumRevenue(ctx, nil)
	if err != nil {
		return housing.SummaryCounts{}, err
	}
	counts.Beds = beds
	counts.Revenue = revenue
	return counts, nil
}

func (store *Store) ListHostelCounts(ctx context.Context) ([]housing.HostelCounts, error) {
	rows, err := store.db.Query(ctx, sqlHostelCounts)
	if err != nil {
		return nil, wrapStoreError(errorSubjectReport, errorCodeList, err)
	}
	defer rows.Close()
	counts := make([]housing.HostelCounts, 0, 8)
	for rows.Next() {
		var (
			hostelValue int64
			row         housing.HostelCounts
		)
		if err := rows.Scan(
			&hostelValue, &row.HostelName, &row.HostelType,
			&row.Rooms, &row.Capacity, &row.Beds.Total, &row.Beds.Occupied, &row.ActiveBookings,
		); err != nil {
			return nil, wrapStoreError(errorSubjectReport, errorCodeList, err)
		}
		hostelID, err := housing.NewHostelID(hostelValue)
		if err != nil {
			return nil, wrapStoreError(errorSubjectReport, errorCodeInvalid, err)
		}
		row.HostelID = hostelID
		counts = append(counts, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectReport, errorCodeList, err)
	}
	return counts, nil
}

func optionalHostel(hostelID *housing.HostelID) int64 {
	if hostelID == nil {
		return 0
	}
	return hostelID.Int64()
}
