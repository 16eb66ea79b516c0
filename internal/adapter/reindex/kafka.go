package reindex

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/eslsoft/audiolink/internal/entity"
	"github.com/eslsoft/audiolink/internal/infrastructure/config"
)

// EventIDHeader carries the uuid v7 of a reindex event.
const EventIDHeader = "event_id"

// Event is the msgpack payload published for every reindex request. The
// consumer expands the sentence to its translations.
type Event struct {
	SentenceID       int64     `msgpack:"sentence_id"`
	WithTranslations bool      `msgpack:"with_translations"`
	RequestedAt      time.Time `msgpack:"requested_at"`
}

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaNotifier publishes reindex requests to a Kafka topic. Records are
// keyed by sentence id so requests for one sentence stay ordered.
type KafkaNotifier struct {
	producer producer
	topic    string
	clock    func() time.Time
}

// NewKafkaNotifier connects a franz-go producer to the configured brokers.
func NewKafkaNotifier(cfg config.KafkaConfig) (*KafkaNotifier, func(), error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka client: %w", err)
	}
	return newKafkaNotifier(client, cfg.Topic), client.Close, nil
}

func newKafkaNotifier(p producer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: p, topic: topic, clock: time.Now}
}

func (n *KafkaNotifier) FlagForReindex(ctx context.Context, sentenceID int64) error {
	value, err := msgpack.Marshal(Event{
		SentenceID:       sentenceID,
		WithTranslations: true,
		RequestedAt:      n.clock().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode reindex event: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate event id: %w", err)
	}

	rec := &kgo.Record{
		Topic:   n.topic,
		Key:     []byte(strconv.FormatInt(sentenceID, 10)),
		Value:   value,
		Headers: []kgo.RecordHeader{{Key: EventIDHeader, Value: []byte(id.String())}},
	}
	if err := n.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return entity.Dependency("publish reindex event", err)
	}
	return nil
}
