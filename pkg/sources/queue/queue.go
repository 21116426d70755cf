// Package queue implements the message-queue variant of
// sources.ExternalDataSource as an in-process topic broker. Each topic
// holds a bounded FIFO of messages; producers publish, GetData consumes
// from the head, and Query inspects topics without consuming.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/conduit/pkg/cache"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/health"
	"mercator-hq/conduit/pkg/sources"
)

// Message is one queued record with broker-assigned identity.
type Message struct {
	// ID is a broker-assigned unique message identifier.
	ID string

	// Topic is the topic the message was published to.
	Topic string

	// Payload is the message body.
	Payload any

	// Timestamp is when the message was accepted.
	Timestamp time.Time
}

// topicBuffer is a bounded FIFO. When full, the oldest message is dropped
// to make room, matching at-most-once buffer semantics.
type topicBuffer struct {
	messages []Message
	dropped  int64
}

// Source is an in-process topic broker.
type Source struct {
	cfg        config.DataSourceConfig
	maxPending int

	mu     sync.Mutex
	topics map[string]*topicBuffer
	closed bool

	monitor *health.Monitor
	metrics sources.Metrics

	closeOnce sync.Once
	logger    *slog.Logger
}

// New constructs a queue source. Topics named in configuration are created
// eagerly; publishing to an unnamed topic creates it on first use.
func New(cfg config.DataSourceConfig) (*Source, error) {
	maxPending := cfg.Connection.MaxPending
	if maxPending <= 0 {
		maxPending = config.DefaultQueueMaxPending
	}

	s := &Source{
		cfg:        cfg,
		maxPending: maxPending,
		topics:     make(map[string]*topicBuffer),
		logger:     slog.Default().With("component", "sources.queue", "source", cfg.Name),
	}
	for _, topic := range cfg.Connection.Topics {
		s.topics[topic] = &topicBuffer{}
	}
	s.monitor = health.NewMonitor(cfg.Name, s.probe, cfg.HealthCheck)

	if cfg.Connection.BootstrapServers != "" {
		s.logger.Warn("bootstrap servers configured but the broker is in-process; ignoring",
			"bootstrap_servers", cfg.Connection.BootstrapServers,
		)
	}

	s.logger.Info("queue data source initialized",
		"topics", len(s.topics),
		"max_pending", maxPending,
	)
	return s, nil
}

// StartMonitoring launches the background health probe loop.
func (s *Source) StartMonitoring(ctx context.Context) {
	if s.cfg.HealthCheck.Enabled {
		s.monitor.Start(ctx)
	}
}

// probe fails only when the broker is shut down.
func (s *Source) probe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("queue broker is shut down")
	}
	return nil
}

// GetName returns the source's configured name.
func (s *Source) GetName() string { return s.cfg.Name }

// GetType returns TypeMessageQueue.
func (s *Source) GetType() sources.Type { return sources.TypeMessageQueue }

// IsHealthy reports the monitor's current state.
func (s *Source) IsHealthy() bool { return s.monitor.IsHealthy() }

// GetHealth returns a detailed health snapshot.
func (s *Source) GetHealth() health.Status { return s.monitor.Status() }

// Publish appends a message to a topic, creating the topic on first use.
// A full topic drops its oldest message to admit the new one.
func (s *Source) Publish(topic string, payload any) (Message, error) {
	msg := Message{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Message{}, &sources.DataSourceError{
			Source:  s.cfg.Name,
			Op:      "publish",
			Message: "queue broker is shut down",
		}
	}

	buf, ok := s.topics[topic]
	if !ok {
		buf = &topicBuffer{}
		s.topics[topic] = buf
	}

	if len(buf.messages) >= s.maxPending {
		buf.messages = buf.messages[1:]
		buf.dropped++
		s.logger.Warn("topic full, dropping oldest message",
			"topic", topic,
			"max_pending", s.maxPending,
		)
	}
	buf.messages = append(buf.messages, msg)
	return msg, nil
}

// GetData consumes the oldest message from the topic named by dataType and
// returns its payload. An empty or unknown topic yields nil.
func (s *Source) GetData(ctx context.Context, dataType string, params ...any) (any, error) {
	start := time.Now()

	s.mu.Lock()
	var msg *Message
	if buf, ok := s.topics[dataType]; ok && len(buf.messages) > 0 {
		m := buf.messages[0]
		buf.messages = buf.messages[1:]
		msg = &m
	}
	closed := s.closed
	s.mu.Unlock()

	if closed {
		s.metrics.RecordFailure(time.Since(start))
		return nil, nil
	}
	if msg == nil {
		s.metrics.RecordCacheMiss()
		s.metrics.RecordSuccess(time.Since(start))
		return nil, nil
	}

	s.metrics.RecordCacheHit()
	s.metrics.RecordRecords(1)
	s.metrics.RecordSuccess(time.Since(start))
	return msg.Payload, nil
}

// Query treats the query as a glob over topic names and returns the pending
// payloads of every matching topic, oldest first, without consuming them.
func (s *Source) Query(ctx context.Context, query string, params map[string]any) ([]any, error) {
	start := time.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.metrics.RecordFailure(time.Since(start))
		return nil, &sources.DataSourceError{
			Source:  s.cfg.Name,
			Op:      "query",
			Message: "queue broker is shut down",
		}
	}

	results := make([]any, 0)
	for topic, buf := range s.topics {
		if !cache.Match(query, topic) {
			continue
		}
		for _, msg := range buf.messages {
			results = append(results, msg.Payload)
		}
	}
	s.mu.Unlock()

	s.metrics.RecordRecords(len(results))
	s.metrics.RecordSuccess(time.Since(start))
	return results, nil
}

// Pending returns the number of messages waiting on a topic.
func (s *Source) Pending(topic string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if buf, ok := s.topics[topic]; ok {
		return len(buf.messages)
	}
	return 0
}

// Topics returns every known topic name.
func (s *Source) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.topics))
	for topic := range s.topics {
		names = append(names, topic)
	}
	return names
}

// Dropped returns how many messages a topic has discarded due to overflow.
func (s *Source) Dropped(topic string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if buf, ok := s.topics[topic]; ok {
		return buf.dropped
	}
	return 0
}

// GetMetrics returns a snapshot of the request counters.
func (s *Source) GetMetrics() sources.MetricsSnapshot { return s.metrics.Snapshot() }

// Close stops monitoring and discards all pending messages. It is
// idempotent.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.monitor.Stop()

		s.mu.Lock()
		s.closed = true
		pending := 0
		for _, buf := range s.topics {
			pending += len(buf.messages)
		}
		s.topics = make(map[string]*topicBuffer)
		s.mu.Unlock()

		s.logger.Info("queue data source closed", "discarded_messages", pending)
	})
	return nil
}
