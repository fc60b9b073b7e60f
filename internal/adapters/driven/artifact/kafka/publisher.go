// Package kafka publishes run artifacts to Kafka topics for downstream
// consumers such as the topic-modelling stage.
//
// Documents go to one topic, keyed by participant ID, so a consumer with
// log compaction sees the latest conversation per participant. Metrics rows
// go to a second topic with the same keying.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
)

// Ensure Publisher implements both writer interfaces.
var (
	_ driven.DocumentWriter = (*Publisher)(nil)
	_ driven.MetricsWriter  = (*Publisher)(nil)
)

// DefaultWriteTimeout bounds a single produce call.
const DefaultWriteTimeout = 10 * time.Second

// Header values attached to every message.
const (
	headerKind        = "convoharvest-kind"
	kindConversation  = "conversation"
	kindMetrics       = "metrics"
	headerContentType = "content-type"
	contentTypeJSON   = "application/json"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures the publisher.
type Config struct {
	// Brokers lists bootstrap brokers.
	Brokers []string
	// DocumentsTopic receives conversations. Empty disables document publishing.
	DocumentsTopic string
	// MetricsTopic receives metrics rows. Empty disables metrics publishing.
	MetricsTopic string
	// WriteTimeout bounds each produce call. Defaults to DefaultWriteTimeout.
	WriteTimeout time.Duration
}

// Publisher writes documents and metrics rows to Kafka.
type Publisher struct {
	documents    messageWriter
	metrics      messageWriter
	writeTimeout time.Duration
	now          func() time.Time
}

// New creates a publisher. No connection is made until the first write.
func New(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: kafka publisher requires brokers", domain.ErrInvalidInput)
	}
	if cfg.DocumentsTopic == "" && cfg.MetricsTopic == "" {
		return nil, fmt.Errorf("%w: kafka publisher requires at least one topic", domain.ErrInvalidInput)
	}

	p := &Publisher{writeTimeout: cfg.WriteTimeout, now: time.Now}
	if p.writeTimeout <= 0 {
		p.writeTimeout = DefaultWriteTimeout
	}
	if cfg.DocumentsTopic != "" {
		p.documents = newWriter(cfg.Brokers, cfg.DocumentsTopic)
	}
	if cfg.MetricsTopic != "" {
		p.metrics = newWriter(cfg.Brokers, cfg.MetricsTopic)
	}
	return p, nil
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
}

// WriteDocument publishes one conversation keyed by participant ID.
// The value is the same JSON array stored on disk.
func (p *Publisher) WriteDocument(ctx context.Context, participantID string, conv domain.Conversation) error {
	if p.documents == nil {
		return nil
	}
	if conv == nil {
		conv = domain.Conversation{}
	}
	value, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode document for %s: %w", participantID, err)
	}
	msg := p.message(participantID, kindConversation, value)
	if err := p.write(ctx, p.documents, msg); err != nil {
		return fmt.Errorf("publish document for %s: %w", participantID, err)
	}
	return nil
}

// WriteMetrics publishes every row of the table in one batch, in table order.
func (p *Publisher) WriteMetrics(ctx context.Context, table domain.MetricsTable) error {
	if p.metrics == nil || len(table) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(table))
	for _, r := range table {
		value, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode metrics for %s: %w", r.ParticipantID, err)
		}
		msgs = append(msgs, p.message(r.ParticipantID, kindMetrics, value))
	}
	if err := p.write(ctx, p.metrics, msgs...); err != nil {
		return fmt.Errorf("publish metrics: %w", err)
	}
	return nil
}

func (p *Publisher) message(key, kind string, value []byte) kafka.Message {
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerKind, Value: []byte(kind)},
			{Key: headerContentType, Value: []byte(contentTypeJSON)},
		},
		Time: p.now(),
	}
}

func (p *Publisher) write(ctx context.Context, w messageWriter, msgs ...kafka.Message) error {
	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	return w.WriteMessages(writeCtx, msgs...)
}

// Close flushes and closes the underlying writers.
func (p *Publisher) Close() error {
	var errs []error
	for _, w := range []messageWriter{p.documents, p.metrics} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
