package config

import (
	"strings"
	"testing"
)

func TestDatabaseURL(t *testing.T) {
	cfg := Config{Database: DatabaseConfig{Driver: DriverSQLite}}
	if got := cfg.DatabaseURL(); got != defaultSQLiteDSN {
		t.Fatalf("expected default sqlite dsn, got %q", got)
	}

	cfg.Database.DSN = "file::memory:"
	if got := cfg.DatabaseURL(); got != "file::memory:" {
		t.Fatalf("explicit dsn must win, got %q", got)
	}

	cfg = Config{Database: DatabaseConfig{
		Driver: DriverPgx, Host: "db", Port: 5433, Name: "corpus",
		User: "app", Password: "p@ss", SSLMode: "disable",
	}}
	got := cfg.DatabaseURL()
	if !strings.HasPrefix(got, "postgres://app:p%40ss@db:5433/corpus") || !strings.HasSuffix(got, "sslmode=disable") {
		t.Fatalf("unexpected postgres url %q", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"sqlite sql notifier", Config{Database: DatabaseConfig{Driver: "SQLite3"}, Search: SearchConfig{Enabled: true, Notifier: NotifierSQL}}, true},
		{"search disabled", Config{Database: DatabaseConfig{Driver: DriverPgx}, Search: SearchConfig{Notifier: "bogus"}}, true},
		{"unknown driver", Config{Database: DatabaseConfig{Driver: "mysql"}}, false},
		{"kafka without topic", Config{Database: DatabaseConfig{Driver: DriverPostgres}, Search: SearchConfig{Enabled: true, Notifier: NotifierKafka}, Kafka: KafkaConfig{Brokers: []string{"k:9092"}}}, false},
		{"unknown notifier", Config{Database: DatabaseConfig{Driver: DriverSQLite}, Search: SearchConfig{Enabled: true, Notifier: "redis"}}, false},
	}
	for _, c := range cases {
		err := c.cfg.Validate()
		if c.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", c.name, err)
		}
		if !c.ok && err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
	}
}
