package housing

import (
	"context"

	"github.com/google/uuid"
)

// Option configures engine components.
type Option func(*componentConfig)

// OperationLogger records domain-level events emitted by engine operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing housing operation.
type OperationLog struct {
	Operation     string
	StudentID     StudentID
	BedID         BedID
	BookingID     BookingID
	Period        DateRange
	BookingStatus BookingStatus
	Amount        AmountCents
	TransactionID TransactionID
	Status        string
	Error         error
}

type componentConfig struct {
	logger   OperationLogger
	newToken func() string
}

func newComponentConfig(options []Option) componentConfig {
	config := componentConfig{newToken: uuid.NewString}
	for _, option := range options {
		if option != nil {
			option(&config)
		}
	}
	return config
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) Option {
	return func(config *componentConfig) {
		config.logger = logger
	}
}

// WithTokenGenerator replaces the generator used for payment transaction ids.
func WithTokenGenerator(generate func() string) Option {
	return func(config *componentConfig) {
		if generate != nil {
			config.newToken = generate
		}
	}
}

func (config componentConfig) logOperation(ctx context.Context, entry OperationLog) {
	if config.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	config.logger.LogOperation(ctx, entry)
}
