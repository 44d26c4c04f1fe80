package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/hostel/pkg/housing"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	dialectPostgres         = "postgres"
	dialectMySQL            = "mysql"
	dialectSQLite           = "sqlite"
	defaultMetadataJSON     = "{}"
	errorOperationStore     = "store"
	errorSubjectBed         = "bed"
	errorSubjectBooking     = "booking"
	errorSubjectPayment     = "payment"
	errorSubjectReport      = "report"
	errorSubjectStudent     = "student"
	errorSubjectTransaction = "transaction"
	errorCodeCount          = "count"
	errorCodeCreate         = "create"
	errorCodeDuplicate      = "duplicate"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeLock           = "lock"
	errorCodeLockTimeout    = "lock_timeout"
	errorCodeUpdateStatus   = "update_status"
	errorCodeTransaction    = "run"
)

// Store implements housing.Store using GORM over PostgreSQL, MySQL, or SQLite.
type Store struct {
	db          *gorm.DB
	lockTimeout time.Duration
	inTx        bool
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long a unit of work waits for a row lock before failing
// with housing.ErrTransactionConflict. SQLite relies on its busy timeout instead.
func WithLockTimeout(timeout time.Duration) Option {
	return func(store *Store) {
		store.lockTimeout = timeout
	}
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB, options ...Option) *Store {
	store := &Store{db: db}
	for _, option := range options {
		if option != nil {
			option(store)
		}
	}
	return store
}

// WithTx executes fn within a transaction. Nested calls join the outer transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore housing.Store) error) error {
	if store.inTx {
		return fn(ctx, store)
	}
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		transactionStore := &Store{db: transaction, lockTimeout: store.lockTimeout, inTx: true}
		if err := transactionStore.applyLockTimeout(); err != nil {
			return err
		}
		return fn(ctx, transactionStore)
	})
	if err != nil && isConflict(err) && !errors.Is(err, housing.ErrTransactionConflict) {
		return wrapStoreError(errorSubjectTransaction, errorCodeTransaction, err)
	}
	return err
}

func (store *Store) applyLockTimeout() error {
	if store.lockTimeout <= 0 {
		return nil
	}
	var statement string
	switch store.dialect() {
	case dialectPostgres:
		statement = fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", store.lockTimeout.Milliseconds())
	case dialectMySQL:
		seconds := int64(store.lockTimeout.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		statement = fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", seconds)
	default:
		return nil
	}
	if err := store.db.Exec(statement).Error; err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeLockTimeout, err)
	}
	return nil
}

func (store *Store) dialect() string {
	return store.db.Dialector.Name()
}

// forUpdate adds a row lock where the dialect has one. SQLite serializes writers at
// the database level.
func (store *Store) forUpdate(ctx context.Context) *gorm.DB {
	query := store.db.WithContext(ctx)
	if store.dialect() == dialectSQLite {
		return query
	}
	return query.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (store *Store) LockStudent(ctx context.Context, studentID housing.StudentID) error {
	var model Student
	err := store.forUpdate(ctx).
		Select("student_id").
		Where("student_id = ?", studentID.Int64()).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return wrapStoreError(errorSubjectStudent, errorCodeLock, fmt.Errorf("%w: %s", housing.ErrStudentNotFound, studentID))
	}
	if err != nil {
		return wrapStoreError(errorSubjectStudent, errorCodeLock, err)
	}
	return nil
}

func (store *Store) LockBed(ctx context.Context, bedID housing.BedID) (housing.Bed, error) {
	return store.loadBed(store.forUpdate(ctx), bedID, errorCodeLock)
}

func (store *Store) GetBed(ctx context.Context, bedID housing.BedID) (housing.Bed, error) {
	return store.loadBed(store.db.WithContext(ctx), bedID, errorCodeGet)
}

func (store *Store) loadBed(query *gorm.DB, bedID housing.BedID, code string) (housing.Bed, error) {
	var model Bed
	err := query.Where("bed_id = ?", bedID.Int64()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return housing.Bed{}, wrapStoreError(errorSubjectBed, code, fmt.Errorf("%w: %s", housing.ErrBedNotFound, bedID))
	}
	if err != nil {
		return housing.Bed{}, wrapStoreError(errorSubjectBed, code, err)
	}
	bed, err := mapBed(model)
	if err != nil {
		return housing.Bed{}, wrapStoreError(errorSubjectBed, errorCodeInvalid, err)
	}
	return bed, nil
}

func (store *Store) SetBedStatus(ctx context.Context, bedID housing.BedID, status housing.BedStatus) error {
	err := store.db.WithContext(ctx).
		Model(&Bed{}).
		Where("bed_id = ?", bedID.Int64()).
		Update("status", status.String()).Error
	if err != nil {
		return wrapStoreError(errorSubjectBed, errorCodeUpdateStatus, err)
	}
	return nil
}

func (store *Store) LockBooking(ctx context.Context, bookingID housing.BookingID) (housing.Booking, error) {
	var model Booking
	err := store.forUpdate(ctx).Where("booking_id = ?", bookingID.Int64()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return housing.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeLock, fmt.Errorf("%w: %s", housing.ErrBookingNotFound, bookingID))
	}
	if err != nil {
		return housing.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeLock, err)
	}
	booking, err := mapBooking(model)
	if err != nil {
		return housing.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	return booking, nil
}

func (store *Store) CreateBooking(ctx context.Context, input housing.BookingInput) (housing.Booking, error) {
	model := Booking{
		StudentID: input.StudentID.Int64(),
		BedID:     input.BedID.Int64(),
		StartDate: input.Period.Start().Time(),
		EndDate:   input.Period.End().Time(),
		Status:    input.Status.String(),
		Metadata:  datatypesJSON(input.Metadata.String()),
		CreatedAt: unixOrNow(input.CreatedUnixUTC),
	}
	err := store.db.WithContext(ctx).Omit(clause.Associations).Create(&model).Error
	if isUniqueViolation(err) {
		return housing.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeDuplicate, fmt.Errorf("%w: student %s", housing.ErrDuplicateActiveBooking, input.StudentID))
	}
	if err != nil {
		return housing.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeCreate, err)
	}
	booking, err := mapBooking(model)
	if err != nil {
		return housing.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	return booking, nil
}

func (store *Store) UpdateBookingStatus(ctx context.Context, bookingID housing.BookingID, from housing.BookingStatus, to housing.BookingStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("booking_id = ? AND status = ?", bookingID.Int64(), from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdateStatus, fmt.Errorf("%w: booking %s is no longer %s", housing.ErrInvalidTransition, bookingID, from))
	}
	return nil
}

func (store *Store) ListBedBookings(ctx context.Context, bedIDs []housing.BedID, statuses []housing.BookingStatus) ([]housing.Booking, error) {
	if len(bedIDs) == 0 {
		return nil, nil
	}
	rawBedIDs := make([]int64, 0, len(bedIDs))
	for _, bedID := range bedIDs {
		rawBedIDs = append(rawBedIDs, bedID.Int64())
	}
	var rows []Booking
	err := store.db.WithContext(ctx).
		Where("bed_id IN ? AND status IN ?", rawBedIDs, statusStrings(statuses)).
		Order("booking_id").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	return mapBookings(rows)
}

func (store *Store) ListStudentBookings(ctx context.Context, studentID housing.StudentID, statuses []housing.BookingStatus) ([]housing.Booking, error) {
	var rows []Booking
	err := store.db.WithContext(ctx).
		Where("student_id = ? AND status IN ?", studentID.Int64(), statusStrings(statuses)).
		Order("booking_id").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	return mapBookings(rows)
}

func (store *Store) ListEndedBookings(ctx context.Context, status housing.BookingStatus, endedBefore housing.Date, limit int) ([]housing.Booking, error) {
	var rows []Booking
	err := store.db.WithContext(ctx).
		Where("status = ? AND end_date < ?", status.String(), endedBefore.Time()).
		Order("end_date, booking_id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	return mapBookings(rows)
}

func (store *Store) FindSuccessfulPayment(ctx context.Context, bookingID housing.BookingID) (housing.Payment, bool, error) {
	var rows []Payment
	err := store.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID.Int64(), housing.PaymentStatusSuccess.String()).
		Order("payment_id").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return housing.Payment{}, false, wrapStoreError(errorSubjectPayment, errorCodeGet, err)
	}
	if len(rows) == 0 {
		return housing.Payment{}, false, nil
	}
	payment, err := mapPayment(rows[0])
	if err != nil {
		return housing.Payment{}, false, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
	}
	return payment, true, nil
}

func (store *Store) InsertPayment(ctx context.Context, input housing.PaymentInput) (housing.Payment, error) {
	model := Payment{
		BookingID:     input.BookingID.Int64(),
		AmountCents:   input.Amount.Int64(),
		Mode:          input.Mode.String(),
		Status:        input.Status.String(),
		TransactionID: input.TransactionID.String(),
		CreatedAt:     unixOrNow(input.CreatedUnixUTC),
	}
	err := store.db.WithContext(ctx).Omit(clause.Associations).Create(&model).Error
	if isUniqueViolation(err) {
		if isTransactionIDConflict(err) {
			return housing.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeDuplicate, err)
		}
		return housing.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeDuplicate, fmt.Errorf("%w: booking %s", housing.ErrPaymentAlreadyRecorded, input.BookingID))
	}
	if err != nil {
		return housing.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeInsert, err)
	}
	payment, err := mapPayment(model)
	if err != nil {
		return housing.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
	}
	return payment, nil
}

func (store *Store) BookingPrice(ctx context.Context, bookingID housing.BookingID) (housing.AmountCents, error) {
	var rows []priceRow
	err := store.db.WithContext(ctx).
		Table("bookings AS bk").
		Select("r.price_per_month_cents AS price").
		Joins("JOIN beds AS b ON b.bed_id = bk.bed_id").
		Joins("JOIN rooms AS r ON r.room_id = b.room_id").
		Where("bk.booking_id = ?", bookingID.Int64()).
		Scan(&rows).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	if len(rows) == 0 {
		return 0, wrapStoreError(errorSubjectBooking, errorCodeGet, fmt.Errorf("%w: %s", housing.ErrBookingNotFound, bookingID))
	}
	return housing.AmountCents(rows[0].Price), nil
}

type priceRow struct {
	Price int64
}

func statusStrings(statuses []housing.BookingStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, status.String())
	}
	return values
}

func unixOrNow(unixUTC int64) time.Time {
	if unixUTC == 0 {
		return time.Now().UTC()
	}
	return time.Unix(unixUTC, 0).UTC()
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func mapBed(model Bed) (housing.Bed, error) {
	bedID, err := housing.NewBedID(model.BedID)
	if err != nil {
		return housing.Bed{}, err
	}
	roomID, err := housing.NewRoomID(model.RoomID)
	if err != nil {
		return housing.Bed{}, err
	}
	status, err := housing.ParseBedStatus(model.Status)
	if err != nil {
		return housing.Bed{}, err
	}
	return housing.Bed{ID: bedID, RoomID: roomID, BedNumber: model.BedNumber, Status: status}, nil
}

func mapBooking(model Booking) (housing.Booking, error) {
	bookingID, err := housing.NewBookingID(model.BookingID)
	if err != nil {
		return housing.Booking{}, err
	}
	studentID, err := housing.NewStudentID(model.StudentID)
	if err != nil {
		return housing.Booking{}, err
	}
	bedID, err := housing.NewBedID(model.BedID)
	if err != nil {
		return housing.Booking{}, err
	}
	period, err := housing.NewDateRange(housing.DateOf(model.StartDate), housing.DateOf(model.EndDate))
	if err != nil {
		return housing.Booking{}, err
	}
	status, err := housing.ParseBookingStatus(model.Status)
	if err != nil {
		return housing.Booking{}, err
	}
	metadata, err := housing.NewMetadataJSON(string(model.Metadata))
	if err != nil {
		return housing.Booking{}, err
	}
	return housing.Booking{
		ID:             bookingID,
		StudentID:      studentID,
		BedID:          bedID,
		Period:         period,
		Status:         status,
		Metadata:       metadata,
		CreatedUnixUTC: model.CreatedAt.Unix(),
	}, nil
}

func mapBookings(rows []Booking) ([]housing.Booking, error) {
	bookings := make([]housing.Booking, 0, len(rows))
	for _, row := range rows {
		booking, err := mapBooking(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, nil
}

func mapPayment(model Payment) (housing.Payment, error) {
	bookingID, err := housing.NewBookingID(model.BookingID)
	if err != nil {
		return housing.Payment{}, err
	}
	amount, err := housing.NewAmountCents(model.AmountCents)
	if err != nil {
		return housing.Payment{}, err
	}
	mode, err := housing.NewPaymentMode(model.Mode)
	if err != nil {
		return housing.Payment{}, err
	}
	status, err := housing.ParsePaymentStatus(model.Status)
	if err != nil {
		return housing.Payment{}, err
	}
	transactionID, err := housing.NewTransactionID(model.TransactionID)
	if err != nil {
		return housing.Payment{}, err
	}
	return housing.Payment{
		ID:             model.PaymentID,
		BookingID:      bookingID,
		Amount:         amount,
		Mode:           mode,
		Status:         status,
		TransactionID:  transactionID,
		CreatedUnixUTC: model.CreatedAt.Unix(),
	}, nil
}
