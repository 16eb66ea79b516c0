package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/eslsoft/audiolink/internal/infrastructure/config"
)

func TestMigrateCreatesTables(t *testing.T) {
	ctx := context.Background()
	drv, err := OpenSQLite(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name()))
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	defer drv.Close()

	if err := Migrate(ctx, drv); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}
	// A second run must be a no-op.
	if err := Migrate(ctx, drv); err != nil {
		t.Fatalf("second Migrate returned error: %v", err)
	}

	for _, table := range []string{SentencesTable, UsersTable, SentencesTranslationTable, AudiosTable, ReindexFlagsTable, PendingReindexTable} {
		var n int
		err := drv.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
		if err != nil || n != 1 {
			t.Fatalf("table %s missing: n=%d err=%v", table, n, err)
		}
	}
}

func TestDeletingUserWithAudioIsRejected(t *testing.T) {
	ctx := context.Background()
	drv, err := OpenSQLite(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name()))
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	defer drv.Close()
	if err := Migrate(ctx, drv); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	for _, stmt := range []string{
		`INSERT INTO sentences (id, lang) VALUES (1, 'eng')`,
		`INSERT INTO users (id, username, created_at) VALUES (7, 'alice', '2024-01-01 00:00:00+00:00')`,
		`INSERT INTO audios (id, sentence_id, user_id, author, licence_id, created_at, updated_at)
			VALUES (1, 1, 7, NULL, 0, '2024-01-01 00:00:00+00:00', '2024-01-01 00:00:00+00:00')`,
	} {
		if _, err := drv.DB().ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}

	if _, err := drv.DB().ExecContext(ctx, `DELETE FROM users WHERE id = 7`); err == nil {
		t.Fatal("expected foreign key error deleting a user who owns audio")
	}
	var userID *int64
	if err := drv.DB().QueryRowContext(ctx, `SELECT user_id FROM audios WHERE id = 1`).Scan(&userID); err != nil {
		t.Fatalf("read audio: %v", err)
	}
	if userID == nil || *userID != 7 {
		t.Fatalf("audio lost its owner: %v", userID)
	}
}

func TestNewDriverRejectsUnknownDriver(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: "mysql"}}
	if _, _, err := NewDriver(cfg, logger); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestTraceLogForwardsToLogrus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	tl := newTraceLog(logger)
	tl.Logger.Log(context.Background(), tracelog.LogLevelInfo, "Query", map[string]any{"sql": "SELECT 1"})

	entry := hook.LastEntry()
	if entry == nil || entry.Message != "Query" || entry.Data["sql"] != "SELECT 1" || entry.Data["component"] != "pgx" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}
