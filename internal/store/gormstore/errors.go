package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/hostel/pkg/housing"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolationCode       = "23505"
	pgSerializationFailureCode  = "40001"
	pgDeadlockDetectedCode      = "40P01"
	pgLockNotAvailableCode      = "55P03"
	mysqlDuplicateEntryCode     = 1062
	mysqlLockWaitTimeoutCode    = 1205
	mysqlDeadlockCode           = 1213
	sqliteBusyCode              = 5
	sqliteLockedCode            = 6
	sqliteConstraintUniqueCode  = 2067
	sqliteConstraintPrimaryCode = 1555
	transactionIDColumn         = "transaction_id"
)

func wrapStoreError(subject string, code string, err error) error {
	return housing.WrapError(errorOperationStore, subject, code, classifyError(err))
}

// classifyError maps lock timeouts, deadlocks, serialization failures, and busy
// databases to housing.ErrTransactionConflict.
func classifyError(err error) error {
	if err == nil || errors.Is(err, housing.ErrTransactionConflict) {
		return err
	}
	if isConflict(err) {
		return fmt.Errorf("%w: %v", housing.ErrTransactionConflict, err)
	}
	return err
}

func isConflict(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailureCode, pgDeadlockDetectedCode, pgLockNotAvailableCode:
			return true
		}
		return false
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDeadlockCode || mysqlErr.Number == mysqlLockWaitTimeoutCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		primary := sqliteErr.Code() & 0xFF
		return primary == sqliteBusyCode || primary == sqliteLockedCode
	}
	return false
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntryCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqliteConstraintUniqueCode || sqliteErr.Code() == sqliteConstraintPrimaryCode
	}
	return false
}

// isTransactionIDConflict tells a duplicate payment token apart from a second success
// payment; every dialect names the column or its index in the message.
func isTransactionIDConflict(err error) bool {
	return strings.Contains(err.Error(), transactionIDColumn)
}
