// Package kafka publishes Singer messages to Kafka, one topic per stream.
package kafka

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/connector/core"
	"github.com/ajitpratap0/formtap/pkg/errors"
	"github.com/ajitpratap0/formtap/pkg/logger"
)

const defaultBatchSize = 500

// Config configures a Sink.
type Config struct {
	Brokers     []string
	TopicPrefix string
	// StateTopic receives STATE values; defaults to <prefix>state
	StateTopic   string
	ClientID     string
	Acks         string
	Compression  string
	BatchSize    int
	TLS          bool
	SASLUser     string
	SASLPassword string
}

// Sink buffers RECORD messages and publishes them with a synchronous
// producer. Records are keyed by their key properties; pending records are
// always published before a STATE message.
type Sink struct {
	producer sarama.SyncProducer
	cfg      Config
	logger   *zap.Logger

	mu      sync.Mutex
	keys    map[string][]string
	pending []*sarama.ProducerMessage
	sent    int64
	closed  bool
}

// NewSink wraps an existing producer.
func NewSink(producer sarama.SyncProducer, cfg Config, log *zap.Logger) *Sink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.StateTopic == "" {
		cfg.StateTopic = cfg.TopicPrefix + "state"
	}
	return &Sink{
		producer: producer,
		cfg:      cfg,
		logger:   log.With(zap.String("component", "kafka_sink")),
		keys:     make(map[string][]string),
	}
}

// NewProducer connects a synchronous producer for cfg.
func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "kafka sink requires brokers")
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, BuildSaramaConfig(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create kafka producer").
			WithDetail("brokers", strings.Join(cfg.Brokers, ","))
	}
	return producer, nil
}

// BuildSaramaConfig maps Config onto producer settings.
func BuildSaramaConfig(cfg Config) *sarama.Config {
	sc := sarama.NewConfig()
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}

	switch cfg.Acks {
	case "1":
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	case "0":
		sc.Producer.RequiredAcks = sarama.NoResponse
	default:
		sc.Producer.RequiredAcks = sarama.WaitForAll
	}

	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true

	switch cfg.Compression {
	case "gzip":
		sc.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		sc.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		sc.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		sc.Producer.Compression = sarama.CompressionZSTD
	default:
		sc.Producer.Compression = sarama.CompressionNone
	}

	if cfg.TLS {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		sc.Net.SASL.User = cfg.SASLUser
		sc.Net.SASL.Password = cfg.SASLPassword
	}
	return sc
}

// Topic returns the topic of a stream.
func (s *Sink) Topic(stream string) string {
	return s.cfg.TopicPrefix + stream
}

// WriteSchema records the key properties of the stream. Schemas are not
// published.
func (s *Sink) WriteSchema(_ context.Context, msg *core.SchemaMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[msg.Stream] = msg.KeyProperties
	return nil
}

// WriteRecord buffers a record, publishing the batch once it is full.
func (s *Sink) WriteRecord(ctx context.Context, msg *core.RecordMessage) error {
	value, err := core.Encode(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to encode record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrorTypeSink, "sink is closed")
	}

	s.pending = append(s.pending, &sarama.ProducerMessage{
		Topic: s.Topic(msg.Stream),
		Key:   sarama.StringEncoder(recordKey(s.keys[msg.Stream], msg.Record)),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("stream"), Value: []byte(msg.Stream)},
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
	})
	if len(s.pending) >= s.cfg.BatchSize {
		return s.flushLocked(ctx)
	}
	return nil
}

// WriteState publishes pending records and then the state value.
func (s *Sink) WriteState(ctx context.Context, msg *core.StateMessage) error {
	value, err := core.Encode(msg.Value)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to encode state")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flushLocked(ctx); err != nil {
		return err
	}
	if _, _, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.cfg.StateTopic,
		Value: sarama.ByteEncoder(value),
	}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to publish state").
			WithDetail("topic", s.cfg.StateTopic)
	}
	return nil
}

// Flush publishes pending records.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

// Close publishes pending records and closes the producer.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	flushErr := s.flushLocked(ctx)
	if err := s.producer.Close(); err != nil && flushErr == nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to close kafka producer")
	}
	s.logger.Info("kafka sink closed", zap.Int64("messages", s.sent))
	return flushErr
}

func (s *Sink) flushLocked(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending
	s.pending = nil

	if err := s.producer.SendMessages(batch); err != nil {
		var perrs sarama.ProducerErrors
		failed := len(batch)
		if errors.As(err, &perrs) {
			failed = len(perrs)
		}
		logger.FromContext(ctx, s.logger).Error("failed to publish records",
			zap.Int("batch", len(batch)),
			zap.Int("failed", failed),
			zap.Error(err))
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to publish records").
			WithDetail("failed", failed)
	}
	s.sent += int64(len(batch))
	return nil
}

// recordKey joins the key property values of a record with "|".
func recordKey(keys []string, record map[string]interface{}) string {
	if len(keys) == 0 {
		return ""
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		if v, ok := record[k]; ok && v != nil {
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, "|")
}
