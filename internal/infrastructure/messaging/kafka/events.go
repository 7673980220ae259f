package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/aptrec/internal/domain/similarity"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/aptrec/pkg/errors"
)

const (
	TopicSnapshotPublished        = "snapshot.published"
	TopicRecommendationServed     = "recommendation.served"
	EventTypeSnapshotPublished    = "SnapshotPublished"
	EventTypeRecommendationServed = "RecommendationServed"

	SchemaVersion = "v1"
)

// EventEnvelope wraps every event payload.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// SnapshotPublished announces a new snapshot under Prefix in object storage.
type SnapshotPublished struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Prefix      string    `json:"prefix"`
	Properties  int       `json:"properties"`
	PublishedAt time.Time `json:"published_at"`
}

// ServedResult is one ranked row in a RecommendationServed event.
type ServedResult struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// RecommendationServed records a successful recommendation.
type RecommendationServed struct {
	ID       string             `json:"id"`
	Query    string             `json:"query"`
	Weights  similarity.Weights `json:"weights"`
	TopN     int                `json:"top_n"`
	Results  []ServedResult     `json:"results"`
	ServedAt time.Time          `json:"served_at"`
}

// NewEventID returns a fresh event identifier.
func NewEventID() string { return uuid.New().String() }

func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       NewEventID(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Payload:       data,
	}, nil
}

func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeSerialization, "event has no payload").WithDetail(e.EventType)
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode payload").WithDetail(e.EventType)
	}
	return nil
}

// ToMessage renders the envelope as a record keyed by key.
func (e *EventEnvelope) ToMessage(topic, key string) (*ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	return &ProducerMessage{
		Topic: topic,
		Key:   []byte(key),
		Value: val,
		Headers: map[string]string{
			"event_type":     e.EventType,
			"source_service": e.Source,
			"schema_version": e.SchemaVersion,
		},
		Timestamp: e.Timestamp,
	}, nil
}

func MessageToEventEnvelope(msg *Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}

// Publisher is the subset of Producer the event helpers need.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// EventPublisher emits the recommender's domain events.
type EventPublisher struct {
	pub           Publisher
	source        string
	snapshotTopic string
	servedTopic   string
	metrics       *prometheus.AppMetrics
}

func NewEventPublisher(pub Publisher, source, snapshotTopic, servedTopic string, metrics *prometheus.AppMetrics) *EventPublisher {
	if snapshotTopic == "" {
		snapshotTopic = TopicSnapshotPublished
	}
	if servedTopic == "" {
		servedTopic = TopicRecommendationServed
	}
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	return &EventPublisher{pub: pub, source: source, snapshotTopic: snapshotTopic, servedTopic: servedTopic, metrics: metrics}
}

func (p *EventPublisher) SnapshotPublished(ctx context.Context, ev SnapshotPublished) error {
	if ev.ID == "" {
		ev.ID = NewEventID()
	}
	if ev.PublishedAt.IsZero() {
		ev.PublishedAt = time.Now().UTC()
	}
	return p.emit(ctx, p.snapshotTopic, EventTypeSnapshotPublished, ev.Prefix, ev)
}

func (p *EventPublisher) RecommendationServed(ctx context.Context, ev RecommendationServed) error {
	if ev.ID == "" {
		ev.ID = NewEventID()
	}
	if ev.ServedAt.IsZero() {
		ev.ServedAt = time.Now().UTC()
	}
	return p.emit(ctx, p.servedTopic, EventTypeRecommendationServed, ev.Query, ev)
}

func (p *EventPublisher) emit(ctx context.Context, topic, eventType, key string, payload interface{}) error {
	env, err := NewEventEnvelope(eventType, p.source, payload)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(topic, key)
	if err != nil {
		return err
	}
	err = p.pub.Publish(ctx, msg)
	p.metrics.RecordEventPublished(topic, err)
	return err
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates the recommender's topics.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMessageQueue, "failed to dial kafka")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TopicManager{conn: conn, logger: logger}, nil
}

func (m *TopicManager) TopicExists(name string) bool {
	partitions, err := m.conn.ReadPartitions(name)
	return err == nil && len(partitions) > 0
}

// EnsureTopics creates every topic that does not exist yet.
func (m *TopicManager) EnsureTopics(topics []TopicConfig) error {
	for _, t := range topics {
		if t.Name == "" || t.NumPartitions <= 0 || t.ReplicationFactor <= 0 {
			return errors.New(errors.ErrCodeValidation, "invalid topic config").WithDetail(t.Name)
		}
		if m.TopicExists(t.Name) {
			continue
		}
		kCfg := kafka.TopicConfig{
			Topic:             t.Name,
			NumPartitions:     t.NumPartitions,
			ReplicationFactor: t.ReplicationFactor,
		}
		if t.RetentionMs > 0 {
			kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(t.RetentionMs, 10)})
		}
		if t.CleanupPolicy != "" {
			kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "cleanup.policy", ConfigValue: t.CleanupPolicy})
		}
		if err := m.conn.CreateTopics(kCfg); err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
			return errors.Wrap(err, errors.CodeMessageQueue, "failed to create topic").WithDetail(t.Name)
		}
		m.logger.Info("topic created", logging.String("topic", t.Name))
	}
	return nil
}

func (m *TopicManager) Close() error { return m.conn.Close() }

// DefaultTopics returns the recommender's topics with the given names.
func DefaultTopics(snapshotTopic, servedTopic string) []TopicConfig {
	const day = int64(24 * 3600 * 1000)
	return []TopicConfig{
		{Name: snapshotTopic, NumPartitions: 1, ReplicationFactor: 1, RetentionMs: 7 * day},
		{Name: servedTopic, NumPartitions: 6, ReplicationFactor: 1, RetentionMs: 3 * day},
	}
}

//Personal.AI order the ending
