package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	constraintBookingsBedOverlap     = "bookings_bed_no_overlap"
	constraintPaymentsBookingSuccess = "uniq_payments_booking_success"
	constraintBookingsStudentHolding = "uniq_bookings_student_holding"
	constraintPaymentsTransactionID  = "payments_transaction_id_key"
)

// Schema creates the housing tables. The exclusion constraint and the two partial unique
// indexes enforce bed exclusivity, one holding booking per student, and one success
// payment per booking even if a caller bypasses the engine.
const Schema = `
create extension if not exists btree_gist;

create table if not exists hostels (
	hostel_id bigserial primary key,
	name varchar(100) not null,
	type varchar(20) not null,
	gender_allowed varchar(10) not null,
	allowed_year integer,
	address varchar(255) not null default ''
);

create table if not exists rooms (
	room_id bigserial primary key,
	hostel_id bigint not null references hostels(hostel_id) on delete cascade,
	room_number varchar(20) not null,
	room_type varchar(20) not null,
	capacity integer not null check (capacity > 0),
	price_per_month_cents bigint not null check (price_per_month_cents > 0),
	has_ac boolean not null default false,
	has_attached_washroom boolean not null default false
);

create table if not exists beds (
	bed_id bigserial primary key,
	room_id bigint not null references rooms(room_id) on delete cascade,
	bed_number varchar(10) not null,
	status varchar(20) not null default 'available' check (status in ('available', 'occupied'))
);

create table if not exists students (
	student_id bigserial primary key,
	name varchar(100) not null,
	email varchar(191) not null unique,
	department varchar(100) not null default '',
	year integer not null default 0,
	gender varchar(10) not null default '',
	password_hash varchar(255) not null default ''
);

create table if not exists bookings (
	booking_id bigserial primary key,
	student_id bigint not null references students(student_id) on delete restrict,
	bed_id bigint not null references beds(bed_id) on delete restrict,
	start_date date not null,
	end_date date not null,
	status varchar(20) not null check (status in ('pending', 'active', 'completed', 'cancelled')),
	metadata jsonb not null default '{}'::jsonb,
	created_at timestamptz not null default now(),
	check (start_date < end_date),
	constraint bookings_bed_no_overlap exclude using gist (
		bed_id with =,
		daterange(start_date, end_date, '[]') with &&
	) where (status in ('pending', 'active'))
);

create index if not exists idx_bookings_bed_status on bookings (bed_id, status);

create unique index if not exists uniq_bookings_student_holding
	on bookings (student_id) where status in ('pending', 'active');

create table if not exists payments (
	payment_id bigserial primary key,
	booking_id bigint not null references bookings(booking_id) on delete restrict,
	amount_cents bigint not null check (amount_cents > 0),
	mode varchar(50) not null default 'Online',
	status varchar(20) not null check (status in ('success', 'failed')),
	transaction_id varchar(100) not null,
	created_at timestamptz not null default now(),
	constraint payments_transaction_id_key unique (transaction_id)
);

create unique index if not exists uniq_payments_booking_success
	on payments (booking_id) where status = 'success';
`

// EnsureSchema applies Schema. Every statement is idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeApply, err)
	}
	return nil
}
