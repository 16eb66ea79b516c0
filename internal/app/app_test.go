package app

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"entgo.io/ent/dialect/sql"

	"github.com/eslsoft/audiolink/internal/entity"
	"github.com/eslsoft/audiolink/internal/infrastructure/config"
	"github.com/eslsoft/audiolink/internal/infrastructure/database"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver: config.DriverSQLite,
			DSN:    "file:" + filepath.Join(t.TempDir(), "app.db") + "?_fk=1",
		},
		Log:    config.LogConfig{Level: "error", Format: "text"},
		Search: config.SearchConfig{Enabled: true, Notifier: config.NotifierSQL},
		Relay:  config.RelayConfig{BatchSize: 10},
	}
}

func newTestContainer(t *testing.T, cfg *config.Config) *Container {
	t.Helper()
	c, cleanup, err := Initialize(cfg)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(cleanup)

	ctx := context.Background()
	if err := database.Migrate(ctx, c.Driver); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, stmt := range []string{
		`INSERT INTO sentences (id, lang) VALUES (42, 'eng'), (43, 'fra'), (50, NULL)`,
		`INSERT INTO sentences_translations (sentence_id, translation_id) VALUES (42, 43)`,
	} {
		if err := c.Driver.Exec(ctx, stmt, []any{}, nil); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return c
}

func TestContainerCreateFlagsAndInvalidates(t *testing.T) {
	c := newTestContainer(t, testConfig(t))
	ctx := context.Background()

	before, err := c.Stats.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(before) != 0 {
		t.Fatalf("expected no stats yet, got %+v", before)
	}

	licence := int64(1)
	audio, err := c.Audios.Create(ctx, entity.AudioDraft{
		SentenceID:  42,
		LicenceID:   &licence,
		Attribution: entity.AuthorAttribution("Bob"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	has, err := c.Search.HasAudio(ctx, 42)
	if err != nil || !has {
		t.Fatalf("expected has_audio for 42, got %v (%v)", has, err)
	}
	after, err := c.Stats.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(after) != 1 || after[0] != (entity.LanguageStat{Language: "eng", Total: 1}) {
		t.Fatalf("expected stale stats to be dropped, got %+v", after)
	}
	if got := flaggedSentences(t, c); !slices.Equal(got, []int64{42, 43}) {
		t.Fatalf("expected 42 and its translation flagged, got %v", got)
	}

	if _, err := c.Audios.AssignTo(ctx, 50, "carol"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	stats, err := c.Stats.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := []entity.LanguageStat{{Language: "eng", Total: 1}, {Language: entity.UnknownLanguage, Total: 1}}
	if !slices.Equal(stats, want) {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if err := c.Audios.Delete(ctx, audio.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if has, _ := c.Search.HasAudio(ctx, 42); has {
		t.Fatalf("expected has_audio false after delete")
	}

	res, err := c.Relay.Redeliver(ctx)
	if err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if res.Delivered != 0 || res.Failed != 0 {
		t.Fatalf("expected every trigger acked on write, got %+v", res)
	}
}

func TestContainerConflictAndUnknownSentence(t *testing.T) {
	c := newTestContainer(t, testConfig(t))
	ctx := context.Background()
	licence := int64(0)

	draft := entity.AudioDraft{SentenceID: 42, LicenceID: &licence, Attribution: entity.AuthorAttribution("Bob")}
	if _, err := c.Audios.Create(ctx, draft); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := c.Audios.Create(ctx, draft); !errors.Is(err, entity.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	draft.SentenceID = 777
	if _, err := c.Audios.Create(ctx, draft); !errors.Is(err, entity.ErrValidation) {
		t.Fatalf("expected validation error for unknown sentence, got %v", err)
	}
}

func TestInitializeRejectsBadLogFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Log.Format = "xml"
	if _, _, err := Initialize(cfg); err == nil {
		t.Fatalf("expected error for unsupported log format")
	}
}

func flaggedSentences(t *testing.T, c *Container) []int64 {
	t.Helper()
	rows := &sql.Rows{}
	if err := c.Driver.Query(context.Background(), "SELECT sentence_id FROM reindex_flags ORDER BY sentence_id", []any{}, rows); err != nil {
		t.Fatalf("query flags: %v", err)
	}
	defer rows.Close()
	var ids []int64
	if err := sql.ScanSlice(rows, &ids); err != nil {
		t.Fatalf("scan flags: %v", err)
	}
	return ids
}
