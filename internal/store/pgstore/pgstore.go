package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/hostel/pkg/housing"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	errorOperationStore     = "store"
	errorSubjectBed         = "bed"
	errorSubjectBooking     = "booking"
	errorSubjectPayment     = "payment"
	errorSubjectReport      = "report"
	errorSubjectSchema      = "schema"
	errorSubjectStudent     = "student"
	errorSubjectTransaction = "transaction"
	errorCodeApply          = "apply"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeCount          = "count"
	errorCodeCreate         = "create"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeLock           = "lock"
	errorCodeLockTimeout    = "lock_timeout"
	errorCodeUpdateStatus   = "update_status"

	bookingColumns = `booking_id, student_id, bed_id, start_date, end_date, status::text,
		coalesce(metadata::text, '{}'), extract(epoch from created_at)::bigint`

	paymentColumns = `payment_id, booking_id, amount_cents, mode, status::text, transaction_id,
		extract(epoch from created_at)::bigint`

	sqlSetLockTimeout = `select set_config('lock_timeout', $1, true)`

	sqlLockStudent = `select student_id from students where student_id = $1 for update`

	sqlSelectBed = `select bed_id, room_id, bed_number, status::text from beds where bed_id = $1`

	sqlUpdateBedStatus = `update beds set status = $2 where bed_id = $1`

	sqlSelectBookingForUpdate = `select ` + bookingColumns + ` from bookings where booking_id = $1 for update`

	sqlInsertBooking = `
		insert into bookings(student_id, bed_id, start_date, end_date, status, metadata, created_at)
		values(
			$1, $2, $3, $4, $5,
			coalesce(nullif($6, ''), '{}')::jsonb,
			coalesce(to_timestamp(nullif($7::bigint, 0)), now())
		)
		returning ` + bookingColumns

	sqlUpdateBookingStatus = `update bookings set status = $3 where booking_id = $1 and status = $2`

	sqlListBedBookings = `
		select ` + bookingColumns + ` from bookings
		where bed_id = any($1) and status = any($2)
		order by booking_id
	`

	sqlListStudentBookings = `
		select ` + bookingColumns + ` from bookings
		where student_id = $1 and status = any($2)
		order by booking_id
	`

	sqlListEndedBookings = `
		select ` + bookingColumns + ` from bookings
		where status = $1 and end_date < $2
		order by end_date, booking_id
		limit nullif($3::bigint, 0)
	`

	sqlSelectSuccessfulPayment = `
		select ` + paymentColumns + ` from payments
		where booking_id = $1 and status = 'success'
		order by payment_id
		limit 1
	`

	sqlInsertPayment = `
		insert into payments(booking_id, amount_cents, mode, status, transaction_id, created_at)
		values($1, $2, $3, $4, $5, coalesce(to_timestamp(nullif($6::bigint, 0)), now()))
		returning ` + paymentColumns

	sqlSelectBookingPrice = `
		select r.price_per_month_cents
		from bookings bk
		join beds b on b.bed_id = bk.bed_id
		join rooms r on r.room_id = b.room_id
		where bk.booking_id = $1
	`
)

// querier is the part of pgxpool.Pool and pgx.Tx the store runs statements through.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements housing.Store using a pgx connection pool. Outside WithTx each
// statement autocommits; inside it every statement runs on the open transaction.
type Store struct {
	pool        *pgxpool.Pool
	db          querier
	lockTimeout time.Duration
	inTx        bool
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout sets lock_timeout for every transaction so a blocked row lock fails
// with housing.ErrTransactionConflict instead of waiting indefinitely.
func WithLockTimeout(timeout time.Duration) Option {
	return func(store *Store) {
		store.lockTimeout = timeout
	}
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool, options ...Option) *Store {
	store := &Store{pool: pool, db: pool}
	for _, option := range options {
		if option != nil {
			option(store)
		}
	}
	return store
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore housing.Store) error) error {
	if store.inTx {
		return fn(ctx, store)
	}
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &Store{pool: store.pool, db: tx, lockTimeout: store.lockTimeout, inTx: true}
	if store.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, sqlSetLockTimeout, fmt.Sprintf("%dms", store.lockTimeout.Milliseconds())); err != nil {
			_ = tx.Rollback(ctx)
			return wrapStoreError(errorSubjectTransaction, errorCodeLockTimeout, err)
		}
	}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) LockStudent(ctx context.Context, studentID housing.StudentID) error {
	var value int64
	err := store.db.QueryRow(ctx, sqlLockStudent, studentID.Int64()).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return wrapStoreError(errorSubjectStudent, errorCodeLock, fmt.Errorf("%w: %s", housing.ErrStudentNotFound, studentID))
	}
	if err != nil {
		return wrapStoreError(errorSubjectStudent, errorCodeLock, err)
	}
	return nil
}

func (store *Store) LockBed(ctx context.Context, bedID housing.BedID) (housing.Bed, error) {
	return store.loadBed(ctx, sqlSelectBed+" for update", bedID, errorCodeLock)
}

func (store *Store) GetBed(ctx context.Context, bedID housing.BedID) (housing.Bed, error) {
	return store.loadBed(ctx, sqlSelectBed, bedID, errorCodeGet)
}

func (store *Store) loadBed(ctx context.Context, statement string, bedID housing.BedID, code string) (housing.Bed, error) {
	var (
		bedValue   int64
		roomValue  int64
		bedNumber  string
		statusText string
	)
	err := store.db.QueryRow(ctx, statement, bedID.Int64()).Scan(&bedValue, &roomValue, &bedNumber, &statusText)
	if errors.Is(err, pgx.ErrNoRows) {
		return housing.Bed{}, wrapStoreError(errorSubjectBed, code, fmt.Errorf("%w: %s", housing.ErrBedNotFound, bedID))
	}
	if err != nil {
		return housing.Bed{}, wrapStoreError(errorSubjectBed, code, err)
	}
	bed, err := newBed(bedValue, roomValue, bedNumber, statusText)
	if err != nil {
		return housing.Bed{}, wrapStoreError(errorSubjectBed, errorCodeInvalid, err)
	}
	return bed, nil
}

func (store *Store) SetBedStatus(ctx context.Context, bedID housing.BedID, status housing.BedStatus) error {
	tag, err := store.db.Exec(ctx, sqlUpdateBedStatus, bedID.Int64(), status.String())
	if err != nil {
		return wrapStoreError(errorSubjectBed, errorCodeUpdateStatus, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectBed, errorCodeUpdateStatus, fmt.Errorf("%w: %s", housing.ErrBedNotFound, bedID))
	}
	return nil
}

func (store *Store) LockBooking(ctx context.Context, bookingID housing.BookingID) (housing.Booking, error) {
	booking, err := scanBooking(store.db.QueryRow(ctx, sqlSelectBookingForUpdate, bookingID.Int64()))
	if errors.Is(err, pgx.ErrNoRows) {
		return housing.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeLock, fmt.Errorf("%w: %s", housing.ErrBookingNotFound, bookingID))
	}
	if err != nil {
		return housing.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeLock, err)
	}
	return booking, nil
}

func (store *Store) CreateBooking(ctx context.Context, input housing.BookingInput) (housing.Booking, error) {
	booking, err := scanBooking(store.db.QueryRow(ctx, sqlInsertBooking,
		input.StudentID.Int64(),
		input.BedID.Int64(),
		input.Period.Start().Time(),
		input.Period.End().Time(),
		input.Status.String(),
		input.Metadata.String(),
		input.CreatedUnixUTC,
	))
	if err != nil {
		return housing.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeCreate, err)
	}
	return booking, nil
}

func (store *Store) UpdateBookingStatus(ctx context.Context, bookingID housing.BookingID, from housing.BookingStatus, to housing.BookingStatus) error {
	tag, err := store.db.Exec(ctx, sqlUpdateBookingStatus, bookingID.Int64(), from.String(), to.String())
	if err != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdateStatus, err)
	}
	if tag.RowsAffected() == 0 {
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
	return store.listBookings(ctx, sqlListBedBookings, rawBedIDs, statusStrings(statuses))
}

func (store *Store) ListStudentBookings(ctx context.Context, studentID housing.StudentID, statuses []housing.BookingStatus) ([]housing.Booking, error) {
	return store.listBookings(ctx, sqlListStudentBookings, studentID.Int64(), statusStrings(statuses))
}

func (store *Store) ListEndedBookings(ctx context.Context, status housing.BookingStatus, endedBefore housing.Date, limit int) ([]housing.Booking, error) {
	return store.listBookings(ctx, sqlListEndedBookings, status.String(), endedBefore.Time(), int64(limit))
}

func (store *Store) listBookings(ctx context.Context, statement string, args ...any) ([]housing.Booking, error) {
	rows, err := store.db.Query(ctx, statement, args...)
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	defer rows.Close()
	bookings := make([]housing.Booking, 0, 8)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	return bookings, nil
}

func (store *Store) FindSuccessfulPayment(ctx context.Context, bookingID housing.BookingID) (housing.Payment, bool, error) {
	payment, err := scanPayment(store.db.QueryRow(ctx, sqlSelectSuccessfulPayment, bookingID.Int64()))
	if errors.Is(err, pgx.ErrNoRows) {
		return housing.Payment{}, false, nil
	}
	if err != nil {
		return housing.Payment{}, false, wrapStoreError(errorSubjectPayment, errorCodeGet, err)
	}
	return payment, true, nil
}

func (store *Store) InsertPayment(ctx context.Context, input housing.PaymentInput) (housing.Payment, error) {
	payment, err := scanPayment(store.db.QueryRow(ctx, sqlInsertPayment,
		input.BookingID.Int64(),
		input.Amount.Int64(),
		input.Mode.String(),
		input.Status.String(),
		input.TransactionID.String(),
		input.CreatedUnixUTC,
	))
	if err != nil {
		return housing.Payment{}, wrapStoreError(errorSubjectPayment, errorCodeInsert, err)
	}
	return payment, nil
}

func (store *Store) BookingPrice(ctx context.Context, bookingID housing.BookingID) (housing.AmountCents, error) {
	var price int64
	err := store.db.QueryRow(ctx, sqlSelectBookingPrice, bookingID.Int64()).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, wrapStoreError(errorSubjectBooking, errorCodeGet, fmt.Errorf("%w: %s", housing.ErrBookingNotFound, bookingID))
	}
	if err != nil {
		return 0, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	return housing.AmountCents(price), nil
}

// bookingRow holds the bookingColumns of one result row.
type bookingRow struct {
	bookingID   int64
	studentID   int64
	bedID       int64
	startDate   time.Time
	endDate     time.Time
	status      string
	metadata    string
	createdUnix int64
}

func (row *bookingRow) targets() []any {
	return []any{&row.bookingID, &row.studentID, &row.bedID, &row.startDate, &row.endDate, &row.status, &row.metadata, &row.createdUnix}
}

func (row bookingRow) booking() (housing.Booking, error) {
	bookingID, err := housing.NewBookingID(row.bookingID)
	if err != nil {
		return housing.Booking{}, err
	}
	studentID, err := housing.NewStudentID(row.studentID)
	if err != nil {
		return housing.Booking{}, err
	}
	bedID, err := housing.NewBedID(row.bedID)
	if err != nil {
		return housing.Booking{}, err
	}
	period, err := housing.NewDateRange(housing.DateOf(row.startDate), housing.DateOf(row.endDate))
	if err != nil {
		return housing.Booking{}, err
	}
	status, err := housing.ParseBookingStatus(row.status)
	if err != nil {
		return housing.Booking{}, err
	}
	metadata, err := housing.NewMetadataJSON(row.metadata)
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
		CreatedUnixUTC: row.createdUnix,
	}, nil
}

func scanBooking(row pgx.Row) (housing.Booking, error) {
	var columns bookingRow
	if err := row.Scan(columns.targets()...); err != nil {
		return housing.Booking{}, err
	}
	return columns.booking()
}

func scanPayment(row pgx.Row) (housing.Payment, error) {
	var (
		paymentValue  int64
		bookingValue  int64
		amountValue   int64
		modeText      string
		statusText    string
		transactionID string
		createdUnix   int64
	)
	if err := row.Scan(&paymentValue, &bookingValue, &amountValue, &modeText, &statusText, &transactionID, &createdUnix); err != nil {
		return housing.Payment{}, err
	}
	return newPayment(paymentValue, bookingValue, amountValue, modeText, statusText, transactionID, createdUnix)
}

func newPayment(paymentValue int64, bookingValue int64, amountValue int64, modeText string, statusText string, transactionText string, createdUnix int64) (housing.Payment, error) {
	bookingID, err := housing.NewBookingID(bookingValue)
	if err != nil {
		return housing.Payment{}, err
	}
	amount, err := housing.NewAmountCents(amountValue)
	if err != nil {
		return housing.Payment{}, err
	}
	mode, err := housing.NewPaymentMode(modeText)
	if err != nil {
		return housing.Payment{}, err
	}
	status, err := housing.ParsePaymentStatus(statusText)
	if err != nil {
		return housing.Payment{}, err
	}
	transactionID, err := housing.NewTransactionID(transactionText)
	if err != nil {
		return housing.Payment{}, err
	}
	return housing.Payment{
		ID:             paymentValue,
		BookingID:      bookingID,
		Amount:         amount,
		Mode:           mode,
		Status:         status,
		TransactionID:  transactionID,
		CreatedUnixUTC: createdUnix,
	}, nil
}

func newBed(bedValue int64, roomValue int64, bedNumber string, statusText string) (housing.Bed, error) {
	bedID, err := housing.NewBedID(bedValue)
	if err != nil {
		return housing.Bed{}, err
	}
	roomID, err := housing.NewRoomID(roomValue)
	if err != nil {
		return housing.Bed{}, err
	}
	status, err := housing.ParseBedStatus(statusText)
	if err != nil {
		return housing.Bed{}, err
	}
	return housing.Bed{ID: bedID, RoomID: roomID, BedNumber: bedNumber, Status: status}, nil
}

func statusStrings(statuses []housing.BookingStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, status.String())
	}
	return values
}
