package notifications

import (
	"context"
	"fmt"
	"time"

	"roomly/internal/domain"
	"roomly/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// KafkaSchedulerConfig contains configuration for the Kafka notification scheduler
type KafkaSchedulerConfig struct {
	Brokers           []string
	NotificationTopic string
	ScheduledTopic    string
	RetryMax          int
	Timeout           time.Duration
	RequiredAcks      sarama.RequiredAcks
	CompressionType   sarama.CompressionCodec
	IdempotentWrites  bool
	MaxMessageBytes   int
}

// DefaultKafkaSchedulerConfig returns a default producer configuration
func DefaultKafkaSchedulerConfig() *KafkaSchedulerConfig {
	return &KafkaSchedulerConfig{
		Brokers:           []string{"localhost:9092"},
		NotificationTopic: "reservation-notifications",
		ScheduledTopic:    "reservation-notifications-scheduled",
		RetryMax:          3,
		Timeout:           10 * time.Second,
		RequiredAcks:      sarama.WaitForAll,
		CompressionType:   sarama.CompressionSnappy,
		IdempotentWrites:  true,
		MaxMessageBytes:   1000000, // 1MB
	}
}

// KafkaScheduler publishes notifications to Kafka. Messages due now go to the
// notification topic; future ones go to the scheduled topic with a
// scheduled_for header for the delivery side to honor.
type KafkaScheduler struct {
	producer sarama.SyncProducer
	config   *KafkaSchedulerConfig
	clock    domain.Clock
	log      *logger.Logger
}

// NewKafkaScheduler creates a sync producer against config.Brokers
func NewKafkaScheduler(config *KafkaSchedulerConfig, clock domain.Clock, log *logger.Logger) (*KafkaScheduler, error) {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = config.Timeout
	saramaConfig.Producer.Idempotent = config.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = config.MaxMessageBytes

	if config.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// all events of one reservation land on one partition, in order
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return NewKafkaSchedulerWithProducer(producer, config, clock, log), nil
}

// NewKafkaSchedulerWithProducer wraps an existing producer
func NewKafkaSchedulerWithProducer(producer sarama.SyncProducer, config *KafkaSchedulerConfig, clock domain.Clock, log *logger.Logger) *KafkaScheduler {
	if clock == nil {
		clock = domain.SystemClock()
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &KafkaScheduler{
		producer: producer,
		config:   config,
		clock:    clock,
		log:      log,
	}
}

func (ks *KafkaScheduler) ScheduleNotification(ctx context.Context, event Event, reservationID uuid.UUID, firesAt time.Time) error {
	now := ks.clock.Now()
	msg := NewMessage(event, reservationID, firesAt, now)

	payload, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	topic := ks.config.NotificationTopic
	headers := ks.createHeaders(msg)
	if msg.FiresAt.After(now) {
		topic = ks.config.ScheduledTopic
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte("scheduled_for"),
			Value: []byte(msg.FiresAt.Format(time.RFC3339)),
		})
	}

	message := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(reservationID.String()),
		Value:     sarama.ByteEncoder(payload),
		Headers:   headers,
		Timestamp: msg.CreatedAt,
	}

	// SendMessage has no context; wait for it or for ctx, whichever ends first.
	// A send abandoned on ctx may still be published later.
	type result struct {
		partition int32
		offset    int64
		err       error
	}
	done := make(chan result, 1)
	go func() {
		partition, offset, err := ks.producer.SendMessage(message)
		done <- result{partition, offset, err}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("failed to send notification to Kafka: %w", r.err)
		}
		ks.log.DebugContext(ctx, "Notification published",
			"topic", topic,
			"partition", r.partition,
			"offset", r.offset,
			"event", string(event),
			"reservation_id", reservationID.String(),
		)
		return nil
	}
}

func (ks *KafkaScheduler) createHeaders(msg Message) []sarama.RecordHeader {
	return []sarama.RecordHeader{
		{Key: []byte("notification_id"), Value: []byte(msg.ID.String())},
		{Key: []byte("event"), Value: []byte(msg.Event)},
		{Key: []byte("reservation_id"), Value: []byte(msg.ReservationID.String())},
		{Key: []byte("version"), Value: []byte("1.0")},
		{Key: []byte("producer"), Value: []byte("roomly-reservations")},
		{Key: []byte("created_at"), Value: []byte(msg.CreatedAt.Format(time.RFC3339))},
	}
}

// Close closes the Kafka producer
func (ks *KafkaScheduler) Close() error {
	if ks.producer != nil {
		if err := ks.producer.Close(); err != nil {
			return fmt.Errorf("failed to close Kafka producer: %w", err)
		}
	}
	return nil
}
