package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/hostel/pkg/housing"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	contentTypeJSON         = "application/json"
	eventNamePrefix         = "booking."
	defaultQueueName        = "hostel.bookings"
	publishTimeout          = 3 * time.Second
	logFieldQueue           = "queue"
	logFieldEvent           = "event"
	logFieldBookingID       = "booking_id"
	logMessagePublishFailed = "booking event publish failed"
)

// BookingEvent is the message body published for each successful lifecycle change.
type BookingEvent struct {
	Event           string `json:"event"`
	BookingID       int64  `json:"booking_id,omitempty"`
	StudentID       int64  `json:"student_id,omitempty"`
	BedID           int64  `json:"bed_id,omitempty"`
	StartDate       string `json:"start_date,omitempty"`
	EndDate         string `json:"end_date,omitempty"`
	BookingStatus   string `json:"booking_status,omitempty"`
	AmountCents     int64  `json:"amount_cents,omitempty"`
	TransactionID   string `json:"transaction_id,omitempty"`
	OccurredUnixUTC int64  `json:"occurred_unix_utc"`
}

// channelPublisher is the subset of *amqp.Channel the publisher uses.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange string, key string, mandatory bool, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends booking lifecycle events to a durable RabbitMQ queue. It implements
// housing.OperationLogger; failed operations are not published and publish failures
// are logged, never returned to the engine.
type Publisher struct {
	channel    channelPublisher
	connection *amqp.Connection
	queue      string
	logger     *zap.Logger
	now        func() time.Time
}

// DialPublisher connects to the broker at url and declares queue as durable.
func DialPublisher(url string, queue string, logger *zap.Logger) (*Publisher, error) {
	connection, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	channel, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if queue == "" {
		queue = defaultQueueName
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = connection.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}
	publisher := NewPublisher(channel, queue, logger)
	publisher.connection = connection
	return publisher, nil
}

// NewPublisher wraps an already open channel.
func NewPublisher(channel channelPublisher, queue string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queue == "" {
		queue = defaultQueueName
	}
	return &Publisher{
		channel: channel,
		queue:   queue,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LogOperation publishes entry when the operation succeeded.
func (publisher *Publisher) LogOperation(ctx context.Context, entry housing.OperationLog) {
	if entry.Error != nil {
		return
	}
	event := newBookingEvent(entry, publisher.now())
	body, err := json.Marshal(event)
	if err != nil {
		publisher.logger.Warn(logMessagePublishFailed, zap.String(logFieldEvent, event.Event), zap.Error(err))
		return
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	err = publisher.channel.PublishWithContext(publishCtx, "", publisher.queue, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    publisher.now(),
		Type:         event.Event,
		Body:         body,
	})
	if err != nil {
		publisher.logger.Warn(logMessagePublishFailed,
			zap.String(logFieldQueue, publisher.queue),
			zap.String(logFieldEvent, event.Event),
			zap.Int64(logFieldBookingID, event.BookingID),
			zap.Error(err),
		)
	}
}

// Close releases the channel and, when the publisher dialed it, the connection.
func (publisher *Publisher) Close() error {
	channelErr := publisher.channel.Close()
	if publisher.connection != nil {
		if err := publisher.connection.Close(); err != nil {
			return err
		}
	}
	return channelErr
}

func newBookingEvent(entry housing.OperationLog, occurred time.Time) BookingEvent {
	event := BookingEvent{
		Event:           eventNamePrefix + entry.Operation,
		BookingID:       entry.BookingID.Int64(),
		StudentID:       entry.StudentID.Int64(),
		BedID:           entry.BedID.Int64(),
		BookingStatus:   entry.BookingStatus.String(),
		AmountCents:     entry.Amount.Int64(),
		TransactionID:   entry.TransactionID.String(),
		OccurredUnixUTC: occurred.Unix(),
	}
	if !entry.Period.IsZero() {
		event.StartDate = entry.Period.Start().String()
		event.EndDate = entry.Period.End().String()
	}
	return event
}
