package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/hostel/pkg/housing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	queryStartDate     = "start_date"
	queryEndDate       = "end_date"
	queryHostelID      = "hostel_id"
	queryRoomType      = "room_type"
	queryMinPrice      = "min_price"
	queryMaxPrice      = "max_price"
	queryGender        = "gender"
	queryYear          = "year"
	queryStatus        = "status"
	queryStudentID     = "student_id"
	queryLimit         = "limit"
	reportOccupancy    = "occupancy"
	reportRevenue      = "revenue"
	reportSummary      = "summary"
	reportHostels      = "hostels"
	reportScopeAll     = "all"
	contentTypeJSONUTF = "application/json; charset=utf-8"
)

type httpHandler struct {
	engine Engine
	cache  *GuardedReportCache
	logger *zap.Logger
	cfg    Config
}

type createBookingRequest struct {
	StudentID *int64 `json:"student_id"`
	BedID     int64  `json:"bed_id" binding:"required"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Semester  string `json:"semester"`
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type recordPaymentRequest struct {
	BookingID int64  `json:"booking_id" binding:"required"`
	Amount    int64  `json:"amount" binding:"required"`
	Mode      string `json:"mode"`
}

type bookingPayload struct {
	BookingID int64           `json:"booking_id"`
	StudentID int64           `json:"student_id"`
	BedID     int64           `json:"bed_id"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Status    string          `json:"status"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt int64           `json:"created_unix_utc"`
}

type bookingDetailPayload struct {
	bookingPayload
	StudentName        string `json:"student_name"`
	StudentEmail       string `json:"student_email"`
	Department         string `json:"department"`
	Year               int    `json:"year"`
	HostelID           int64  `json:"hostel_id"`
	HostelName         string `json:"hostel_name"`
	HostelType         string `json:"hostel_type"`
	RoomNumber         string `json:"room_number"`
	RoomType           string `json:"room_type"`
	PricePerMonthCents int64  `json:"price_per_month_cents"`
	BedNumber          string `json:"bed_number"`
	BedStatus          string `json:"bed_status"`
}

type paymentPayload struct {
	PaymentID     int64  `json:"payment_id"`
	BookingID     int64  `json:"booking_id"`
	AmountCents   int64  `json:"amount_cents"`
	Mode          string `json:"mode"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	HostelName    string `json:"hostel_name,omitempty"`
	CreatedAt     int64  `json:"created_unix_utc"`
}

type bedPayload struct {
	BedID               int64  `json:"bed_id"`
	BedNumber           string `json:"bed_number"`
	RoomID              int64  `json:"room_id"`
	RoomNumber          string `json:"room_number"`
	RoomType            string `json:"room_type"`
	PricePerMonthCents  int64  `json:"price_per_month_cents"`
	HasAC               bool   `json:"has_ac"`
	HasAttachedWashroom bool   `json:"has_attached_washroom"`
	HostelID            int64  `json:"hostel_id"`
	HostelName          string `json:"hostel_name"`
	HostelType          string `json:"hostel_type"`
}

type occupancyPayload struct {
	TotalBeds     int64   `json:"total_beds"`
	OccupiedBeds  int64   `json:"occupied_beds"`
	AvailableBeds int64   `json:"available_beds"`
	OccupancyRate float64 `json:"occupancy_rate"`
}

type revenuePayload struct {
	TotalBookings       int64 `json:"total_bookings"`
	TotalRevenueCents   int64 `json:"total_revenue_cents"`
	SuccessfulPayments  int64 `json:"successful_payments"`
	AveragePaymentCents int64 `json:"average_payment_cents"`
}

type summaryPayload struct {
	TotalStudents     int64            `json:"total_students"`
	TotalHostels      int64            `json:"total_hostels"`
	TotalRooms        int64            `json:"total_rooms"`
	TotalBookings     int64            `json:"total_bookings"`
	PendingBookings   int64            `json:"pending_bookings"`
	ActiveBookings    int64            `json:"active_bookings"`
	CompletedBookings int64            `json:"completed_bookings"`
	CancelledBookings int64            `json:"cancelled_bookings"`
	Occupancy         occupancyPayload `json:"occupancy"`
	Revenue           revenuePayload   `json:"revenue"`
}

type hostelPayload struct {
	HostelID       int64            `json:"hostel_id"`
	HostelName     string           `json:"hostel_name"`
	HostelType     string           `json:"hostel_type"`
	TotalRooms     int64            `json:"total_rooms"`
	RoomCapacity   int64            `json:"room_capacity"`
	ActiveBookings int64            `json:"active_bookings"`
	Occupancy      occupancyPayload `json:"occupancy"`
}

func (handler *httpHandler) handleSemesters(ctx *gin.Context) {
	if _, ok := handler.callerIdentity(ctx); !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"semesters": handler.engine.UpcomingSemesters(semesterListCount)})
}

func (handler *httpHandler) handleAvailability(ctx *gin.Context) {
	if _, ok := handler.callerIdentity(ctx); !ok {
		return
	}
	bedID, err := parseBedID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	period, err := housing.ParseDateRange(ctx.Query(queryStartDate), ctx.Query(queryEndDate))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	available, err := handler.engine.GetAvailability(ctx.Request.Context(), bedID, period)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"bed_id": bedID.Int64(), "available": available})
}

func (handler *httpHandler) handleAvailableBeds(ctx *gin.Context) {
	if _, ok := handler.callerIdentity(ctx); !ok {
		return
	}
	filter, err := parseBedFilter(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	listings, err := handler.engine.ListAvailableBeds(ctx.Request.Context(), filter)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	beds := make([]bedPayload, 0, len(listings))
	for _, listing := range listings {
		beds = append(beds, newBedPayload(listing))
	}
	ctx.JSON(http.StatusOK, gin.H{"beds": beds})
}

func (handler *httpHandler) handleCreateBooking(ctx *gin.Context) {
	caller, ok := handler.callerIdentity(ctx)
	if !ok {
		return
	}
	var request createBookingRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeInvalidPayload, "expected JSON body with bed_id"))
		return
	}
	studentID, err := handler.bookingStudent(caller, request.StudentID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	bedID, err := housing.NewBedID(request.BedID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	bookingRequest := housing.BookingRequest{StudentID: studentID, BedID: bedID, Semester: strings.TrimSpace(request.Semester)}
	if request.StartDate != "" || request.EndDate != "" {
		period, err := housing.ParseDateRange(request.StartDate, request.EndDate)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		bookingRequest.Period = period
	}
	booking, err := handler.engine.CreateBooking(ctx.Request.Context(), bookingRequest)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"booking_id": booking.ID.Int64(), "status": booking.Status.String()})
}

func (handler *httpHandler) bookingStudent(caller identity, requested *int64) (housing.StudentID, error) {
	if caller.admin {
		if requested == nil {
			return housing.StudentID{}, fmt.Errorf("%w: student_id is required", housing.ErrInvalidStudentID)
		}
		return housing.NewStudentID(*requested)
	}
	if requested != nil && *requested != caller.studentID.Int64() {
		return housing.StudentID{}, errForbiddenStudent
	}
	return caller.studentID, nil
}

func (handler *httpHandler) handleListBookings(ctx *gin.Context) {
	filter := housing.BookingFilter{}
	if rawStatus := ctx.Query(queryStatus); rawStatus != "" {
		status, err := housing.ParseBookingStatus(rawStatus)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		filter.Statuses = []housing.BookingStatus{status}
	}
	if rawStudent := ctx.Query(queryStudentID); rawStudent != "" {
		studentID, err := housing.ParseStudentID(rawStudent)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		filter.StudentID = &studentID
	}
	if rawLimit := ctx.Query(queryLimit); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < 0 {
			ctx.JSON(http.StatusBadRequest, errorResponse(string(housing.KindInvalidInput), "limit must be a non-negative integer"))
			return
		}
		filter.Limit = limit
	}
	details, err := handler.engine.ListBookings(ctx.Request.Context(), filter)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	bookings := make([]bookingDetailPayload, 0, len(details))
	for _, detail := range details {
		bookings = append(bookings, newBookingDetailPayload(detail))
	}
	ctx.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func (handler *httpHandler) handleSetBookingStatus(ctx *gin.Context) {
	bookingID, err := parseBookingID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request setStatusRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeInvalidPayload, "expected JSON body with status"))
		return
	}
	target, err := housing.ParseBookingStatus(request.Status)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	booking, err := handler.engine.SetBookingStatus(ctx.Request.Context(), bookingID, target)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"booking_id": booking.ID.Int64(), "status": booking.Status.String()})
}

func (handler *httpHandler) handleRecordPayment(ctx *gin.Context) {
	caller, ok := handler.callerIdentity(ctx)
	if !ok {
		return
	}
	var request recordPaymentRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeInvalidPayload, "expected JSON body with booking_id and amount"))
		return
	}
	bookingID, err := housing.NewBookingID(request.BookingID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	amount, err := housing.NewAmountCents(request.Amount)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	mode, err := housing.NewPaymentMode(request.Mode)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if !caller.admin {
		if err := handler.ensureBookingOwner(ctx, caller, bookingID); err != nil {
			handler.respondError(ctx, err)
			return
		}
	}
	payment, err := handler.engine.RecordPayment(ctx.Request.Context(), bookingID, amount, mode)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"transaction_id": payment.TransactionID.String(), "status": payment.Status.String()})
}

func (handler *httpHandler) ensureBookingOwner(ctx *gin.Context, caller identity, bookingID housing.BookingID) error {
	details, err := handler.engine.ListBookings(ctx.Request.Context(), housing.BookingFilter{BookingID: &bookingID, Limit: 1})
	if err != nil {
		return err
	}
	if len(details) == 0 {
		return fmt.Errorf("%w: %s", housing.ErrBookingNotFound, bookingID)
	}
	if !caller.canActFor(details[0].Booking.StudentID) {
		return errForbiddenStudent
	}
	return nil
}

func (handler *httpHandler) handleCurrentBooking(ctx *gin.Context) {
	studentID, ok := handler.studentParam(ctx)
	if !ok {
		return
	}
	detail, found, err := handler.engine.CurrentBooking(ctx.Request.Context(), studentID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if !found {
		ctx.JSON(http.StatusOK, gin.H{"booking": nil})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"booking": newBookingDetailPayload(detail)})
}

func (handler *httpHandler) handleStudentPayments(ctx *gin.Context) {
	studentID, ok := handler.studentParam(ctx)
	if !ok {
		return
	}
	details, err := handler.engine.StudentPayments(ctx.Request.Context(), studentID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payments := make([]paymentPayload, 0, len(details))
	for _, detail := range details {
		payload := newPaymentPayload(detail.Payment)
		payload.HostelName = detail.HostelName
		payments = append(payments, payload)
	}
	ctx.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (handler *httpHandler) studentParam(ctx *gin.Context) (housing.StudentID, bool) {
	caller, ok := handler.callerIdentity(ctx)
	if !ok {
		return housing.StudentID{}, false
	}
	studentID, err := housing.ParseStudentID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return housing.StudentID{}, false
	}
	if !caller.canActFor(studentID) {
		handler.respondError(ctx, errForbiddenStudent)
		return housing.StudentID{}, false
	}
	return studentID, true
}

func (handler *httpHandler) handleOccupancyReport(ctx *gin.Context) {
	if _, ok := handler.callerIdentity(ctx); !ok {
		return
	}
	hostelID, err := parseOptionalHostel(ctx.Query(queryHostelID))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.serveReport(ctx, reportKey(reportOccupancy, hostelID), func() (any, error) {
		report, err := handler.engine.GetOccupancyReport(ctx.Request.Context(), hostelID)
		if err != nil {
			return nil, err
		}
		return newOccupancyPayload(report), nil
	})
}

func (handler *httpHandler) handleRevenueReport(ctx *gin.Context) {
	hostelID, err := parseOptionalHostel(ctx.Query(queryHostelID))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.serveReport(ctx, reportKey(reportRevenue, hostelID), func() (any, error) {
		report, err := handler.engine.GetRevenueReport(ctx.Request.Context(), hostelID)
		if err != nil {
			return nil, err
		}
		return newRevenuePayload(report), nil
	})
}

func (handler *httpHandler) handleSummaryReport(ctx *gin.Context) {
	handler.serveReport(ctx, reportKey(reportSummary, nil), func() (any, error) {
		summary, err := handler.engine.Summary(ctx.Request.Context())
		if err != nil {
			return nil, err
		}
		return summaryPayload{
			TotalStudents:     summary.TotalStudents,
			TotalHostels:      summary.TotalHostels,
			TotalRooms:        summary.TotalRooms,
			TotalBookings:     summary.TotalBookings,
			PendingBookings:   summary.PendingBookings,
			ActiveBookings:    summary.ActiveBookings,
			CompletedBookings: summary.CompletedBookings,
			CancelledBookings: summary.CancelledBookings,
			Occupancy:         newOccupancyPayload(summary.Occupancy),
			Revenue:           newRevenuePayload(summary.Revenue),
		}, nil
	})
}

func (handler *httpHandler) handleHostelReport(ctx *gin.Context) {
	handler.serveReport(ctx, reportKey(reportHostels, nil), func() (any, error) {
		rows, err := handler.engine.OccupancyByHostel(ctx.Request.Context())
		if err != nil {
			return nil, err
		}
		hostels := make([]hostelPayload, 0, len(rows))
		for _, row := range rows {
			hostels = append(hostels, hostelPayload{
				HostelID:       row.HostelID.Int64(),
				HostelName:     row.HostelName,
				HostelType:     row.HostelType,
				TotalRooms:     row.TotalRooms,
				RoomCapacity:   row.RoomCapacity,
				ActiveBookings: row.ActiveBookings,
				Occupancy:      newOccupancyPayload(row.Occupancy),
			})
		}
		return gin.H{"hostels": hostels}, nil
	})
}

// serveReport answers from the cache when it can and fills it after a miss. A body
// computed while a mutation invalidated the cache is served but not stored. Cache
// failures are logged and the report is computed directly.
func (handler *httpHandler) serveReport(ctx *gin.Context, key string, compute func() (any, error)) {
	requestCtx := ctx.Request.Context()
	generation := handler.cache.Generation()
	body, found, err := handler.cache.Get(requestCtx, key)
	if err != nil {
		handler.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		ctx.Data(http.StatusOK, contentTypeJSONUTF, body)
		return
	}
	payload, err := compute()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	body, err = json.Marshal(payload)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if _, err := handler.cache.SetIfCurrent(requestCtx, key, body, generation); err != nil {
		handler.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
	ctx.Data(http.StatusOK, contentTypeJSONUTF, body)
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	if errors.Is(err, errForbiddenStudent) {
		ctx.JSON(http.StatusForbidden, errorResponse(codeForbidden, err.Error()))
		return
	}
	kind := housing.KindOf(err)
	status := statusForKind(kind)
	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		handler.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		message = internalMessage
	case http.StatusServiceUnavailable:
		ctx.Header(retryAfterHeader, retryAfterSeconds)
	}
	ctx.JSON(status, errorResponse(string(kind), message))
}

func reportKey(report string, hostelID *housing.HostelID) string {
	if hostelID == nil {
		return report + ":" + reportScopeAll
	}
	return report + ":" + hostelID.String()
}

func parseBedFilter(ctx *gin.Context) (housing.BedFilter, error) {
	filter := housing.BedFilter{
		RoomType:      strings.TrimSpace(ctx.Query(queryRoomType)),
		GenderAllowed: strings.TrimSpace(ctx.Query(queryGender)),
	}
	hostelID, err := parseOptionalHostel(ctx.Query(queryHostelID))
	if err != nil {
		return housing.BedFilter{}, err
	}
	filter.HostelID = hostelID
	if filter.MinPrice, err = parseOptionalAmount(ctx.Query(queryMinPrice)); err != nil {
		return housing.BedFilter{}, err
	}
	if filter.MaxPrice, err = parseOptionalAmount(ctx.Query(queryMaxPrice)); err != nil {
		return housing.BedFilter{}, err
	}
	if rawYear := ctx.Query(queryYear); rawYear != "" {
		year, err := strconv.Atoi(rawYear)
		if err != nil || year <= 0 {
			return housing.BedFilter{}, fmt.Errorf("%w: year must be a positive integer", housing.ErrInvalidYear)
		}
		filter.AllowedYear = year
	}
	rawStart, rawEnd := ctx.Query(queryStartDate), ctx.Query(queryEndDate)
	if rawStart != "" || rawEnd != "" {
		period, err := housing.ParseDateRange(rawStart, rawEnd)
		if err != nil {
			return housing.BedFilter{}, err
		}
		filter.Period = &period
	}
	return filter, nil
}

func parseBedID(raw string) (housing.BedID, error) {
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return housing.BedID{}, fmt.Errorf("%w: %q", housing.ErrInvalidBedID, raw)
	}
	return housing.NewBedID(value)
}

func parseBookingID(raw string) (housing.BookingID, error) {
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return housing.BookingID{}, fmt.Errorf("%w: %q", housing.ErrInvalidBookingID, raw)
	}
	return housing.NewBookingID(value)
}

func parseOptionalHostel(raw string) (*housing.HostelID, error) {
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", housing.ErrInvalidHostelID, raw)
	}
	hostelID, err := housing.NewHostelID(value)
	if err != nil {
		return nil, err
	}
	return &hostelID, nil
}

func parseOptionalAmount(raw string) (housing.AmountCents, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", housing.ErrInvalidAmount, raw)
	}
	return housing.NewAmountCents(value)
}

func newBookingPayload(booking housing.Booking) bookingPayload {
	return bookingPayload{
		BookingID: booking.ID.Int64(),
		StudentID: booking.StudentID.Int64(),
		BedID:     booking.BedID.Int64(),
		StartDate: booking.Period.Start().String(),
		EndDate:   booking.Period.End().String(),
		Status:    booking.Status.String(),
		Metadata:  json.RawMessage(booking.Metadata.String()),
		CreatedAt: booking.CreatedUnixUTC,
	}
}

func newBookingDetailPayload(detail housing.BookingDetail) bookingDetailPayload {
	return bookingDetailPayload{
		bookingPayload:     newBookingPayload(detail.Booking),
		StudentName:        detail.StudentName,
		StudentEmail:       detail.StudentEmail,
		Department:         detail.Department,
		Year:               detail.Year,
		HostelID:           detail.HostelID.Int64(),
		HostelName:         detail.HostelName,
		HostelType:         detail.HostelType,
		RoomNumber:         detail.RoomNumber,
		RoomType:           detail.RoomType,
		PricePerMonthCents: detail.PricePerMonth.Int64(),
		BedNumber:          detail.BedNumber,
		BedStatus:          detail.BedStatus.String(),
	}
}

func newPaymentPayload(payment housing.Payment) paymentPayload {
	return paymentPayload{
		PaymentID:     payment.ID,
		BookingID:     payment.BookingID.Int64(),
		AmountCents:   payment.Amount.Int64(),
		Mode:          payment.Mode.String(),
		Status:        payment.Status.String(),
		TransactionID: payment.TransactionID.String(),
		CreatedAt:     payment.CreatedUnixUTC,
	}
}

func newBedPayload(listing housing.BedListing) bedPayload {
	return bedPayload{
		BedID:               listing.Bed.ID.Int64(),
		BedNumber:           listing.Bed.BedNumber,
		RoomID:              listing.Bed.RoomID.Int64(),
		RoomNumber:          listing.RoomNumber,
		RoomType:            listing.RoomType,
		PricePerMonthCents:  listing.PricePerMonth.Int64(),
		HasAC:               listing.HasAC,
		HasAttachedWashroom: listing.HasAttachedWashroom,
		HostelID:            listing.HostelID.Int64(),
		HostelName:          listing.HostelName,
		HostelType:          listing.HostelType,
	}
}

func newOccupancyPayload(report housing.OccupancyReport) occupancyPayload {
	return occupancyPayload{
		TotalBeds:     report.TotalBeds,
		OccupiedBeds:  report.OccupiedBeds,
		AvailableBeds: report.AvailableBeds,
		OccupancyRate: report.OccupancyRate,
	}
}

func newRevenuePayload(report housing.RevenueReport) revenuePayload {
	return revenuePayload{
		TotalBookings:       report.TotalBookings,
		TotalRevenueCents:   report.TotalRevenue.Int64(),
		SuccessfulPayments:  report.SuccessfulPayments,
		AveragePaymentCents: report.AveragePayment.Int64(),
	}
}
