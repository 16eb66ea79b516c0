package reindex

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/eslsoft/audiolink/internal/entity"
	"github.com/eslsoft/audiolink/internal/infrastructure/config"
	"github.com/eslsoft/audiolink/internal/infrastructure/database"
)

func TestSQLNotifierFlagsSentenceAndTranslations(t *testing.T) {
	ctx := context.Background()
	drv, err := database.OpenSQLite(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer drv.Close()
	if err := database.Migrate(ctx, drv); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, stmt := range []string{
		`INSERT INTO sentences (id, lang) VALUES (3, 'fra'), (42, 'eng'), (99, 'deu'), (100, 'jpn')`,
		`INSERT INTO sentences_translations (sentence_id, translation_id) VALUES (42, 3), (3, 42), (99, 42), (100, 3)`,
	} {
		if _, err := drv.DB().ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	n := NewSQLNotifier(drv)
	for range 2 {
		if err := n.FlagForReindex(ctx, 42); err != nil {
			t.Fatalf("FlagForReindex returned error: %v", err)
		}
	}

	rows, err := drv.DB().QueryContext(ctx, `SELECT sentence_id FROM reindex_flags ORDER BY sentence_id`)
	if err != nil {
		t.Fatalf("query flags: %v", err)
	}
	defer rows.Close()
	var flagged []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan: %v", err)
		}
		flagged = append(flagged, id)
	}
	if !slices.Equal(flagged, []int64{3, 42, 99}) {
		t.Fatalf("expected sentence and direct translations flagged once, got %v", flagged)
	}

	// Sentences without translations are flagged on their own.
	if err := n.FlagForReindex(ctx, 100); err != nil {
		t.Fatalf("FlagForReindex returned error: %v", err)
	}
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.records = append(p.records, rs...)
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func TestKafkaNotifierPublishesEvent(t *testing.T) {
	p := &fakeProducer{}
	n := newKafkaNotifier(p, "sentence-reindex")
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	n.clock = func() time.Time { return at }

	if err := n.FlagForReindex(context.Background(), 42); err != nil {
		t.Fatalf("FlagForReindex returned error: %v", err)
	}
	if len(p.records) != 1 {
		t.Fatalf("expected one record, got %d", len(p.records))
	}
	rec := p.records[0]
	if rec.Topic != "sentence-reindex" || string(rec.Key) != "42" {
		t.Fatalf("unexpected record topic=%q key=%q", rec.Topic, rec.Key)
	}

	var ev Event
	if err := msgpack.Unmarshal(rec.Value, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.SentenceID != 42 || !ev.WithTranslations || !ev.RequestedAt.Equal(at) {
		t.Fatalf("unexpected event %+v", ev)
	}

	if len(rec.Headers) != 1 || rec.Headers[0].Key != EventIDHeader {
		t.Fatalf("unexpected headers %+v", rec.Headers)
	}
	id, err := uuid.Parse(string(rec.Headers[0].Value))
	if err != nil || id.Version() != 7 {
		t.Fatalf("expected uuid v7 event id, got %q (%v)", rec.Headers[0].Value, err)
	}
}

func TestKafkaNotifierReportsDependencyError(t *testing.T) {
	p := &fakeProducer{err: errors.New("broker unavailable")}
	n := newKafkaNotifier(p, "sentence-reindex")
	if err := n.FlagForReindex(context.Background(), 42); !errors.Is(err, entity.ErrDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNewNotifierSelection(t *testing.T) {
	logger, _ := test.NewNullLogger()

	n, cleanup, err := NewNotifier(&config.Config{}, nil, logger)
	if err != nil {
		t.Fatalf("NewNotifier returned error: %v", err)
	}
	defer cleanup()
	if _, ok := n.(NoopNotifier); !ok {
		t.Fatalf("expected noop notifier when search is disabled, got %T", n)
	}
	if err := n.FlagForReindex(context.Background(), 1); err != nil {
		t.Fatalf("noop notifier returned error: %v", err)
	}

	cfg := &config.Config{Search: config.SearchConfig{Enabled: true, Notifier: "carrier-pigeon"}}
	if _, _, err := NewNotifier(cfg, nil, logger); err == nil {
		t.Fatal("expected error for unknown notifier")
	}
}
