package events

import (
	"context"

	"github.com/MarkoPoloResearchLab/hostel/pkg/housing"
	"go.uber.org/zap"
)

const logMessageOperation = "housing operation"

// ZapLogger writes every housing operation as a structured log entry.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger returns a ZapLogger; a nil logger discards entries.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger}
}

func (zapLogger *ZapLogger) LogOperation(_ context.Context, entry housing.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if entry.BookingID.Int64() != 0 {
		fields = append(fields, zap.Int64("booking_id", entry.BookingID.Int64()))
	}
	if entry.StudentID.Int64() != 0 {
		fields = append(fields, zap.Int64("student_id", entry.StudentID.Int64()))
	}
	if entry.BedID.Int64() != 0 {
		fields = append(fields, zap.Int64("bed_id", entry.BedID.Int64()))
	}
	if !entry.Period.IsZero() {
		fields = append(fields, zap.String("period", entry.Period.String()))
	}
	if entry.BookingStatus != "" {
		fields = append(fields, zap.String("booking_status", entry.BookingStatus.String()))
	}
	if entry.Amount > 0 {
		fields = append(fields, zap.Int64("amount_cents", entry.Amount.Int64()))
	}
	if entry.TransactionID.String() != "" {
		fields = append(fields, zap.String("transaction_id", entry.TransactionID.String()))
	}
	if entry.Error != nil {
		fields = append(fields, zap.String("error_kind", string(housing.KindOf(entry.Error))), zap.Error(entry.Error))
		zapLogger.logger.Warn(logMessageOperation, fields...)
		return
	}
	zapLogger.logger.Info(logMessageOperation, fields...)
}

// FanoutLogger forwards each entry to every logger in order.
type FanoutLogger []housing.OperationLogger

func (loggers FanoutLogger) LogOperation(ctx context.Context, entry housing.OperationLog) {
	for _, logger := range loggers {
		if logger != nil {
			logger.LogOperation(ctx, entry)
		}
	}
}
