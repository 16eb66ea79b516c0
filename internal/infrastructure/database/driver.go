package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/tracelog"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/audiolink/internal/infrastructure/config"
)

const _pingTimeout = 5 * time.Second

// NewDriver opens the configured database and wraps it in an ent driver.
// pgx traces statements through logrus; the other drivers use ent's debug
// driver when database.log_sql is set.
func NewDriver(cfg *config.Config, logger logrus.FieldLogger) (dialect.Driver, func(), error) {
	dsn := cfg.DatabaseURL()

	var (
		drv dialect.Driver
		err error
	)
	switch cfg.DatabaseDriver() {
	case config.DriverSQLite:
		drv, err = OpenSQLite(context.Background(), dsn)
	case config.DriverPgx:
		drv, err = openPgx(dsn, cfg.Database.LogSQL, logger)
	case config.DriverPostgres:
		drv, err = openPostgres(dsn)
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	closer := drv
	if cfg.Database.LogSQL && cfg.DatabaseDriver() != config.DriverPgx {
		sqlLog := logger.WithField("component", "sql")
		drv = dialect.Debug(drv, sqlLog.Debug)
	}
	return drv, func() { _ = closer.Close() }, nil
}

// OpenSQLite opens a sqlite database limited to a single connection with
// foreign keys enforced.
func OpenSQLite(ctx context.Context, dsn string) (*entsql.Driver, error) {
	rawDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	rawDB.SetMaxOpenConns(1)
	rawDB.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, _pingTimeout)
	defer cancel()

	if err := rawDB.PingContext(ctx); err != nil {
		rawDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := rawDB.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		rawDB.Close()
		return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
	}
	return entsql.OpenDB(dialect.SQLite, rawDB), nil
}

func openPgx(dsn string, logSQL bool, logger logrus.FieldLogger) (*entsql.Driver, error) {
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	if logSQL {
		connCfg.Tracer = newTraceLog(logger)
	}
	rawDB := stdlib.OpenDB(*connCfg)
	rawDB.SetMaxOpenConns(10)
	if err := ping(rawDB); err != nil {
		rawDB.Close()
		return nil, err
	}
	return entsql.OpenDB(dialect.Postgres, rawDB), nil
}

func openPostgres(dsn string) (*entsql.Driver, error) {
	rawDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	if err := ping(rawDB); err != nil {
		rawDB.Close()
		return nil, err
	}
	return entsql.OpenDB(dialect.Postgres, rawDB), nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), _pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	return nil
}

// newTraceLog routes pgx query traces to logrus at debug level.
func newTraceLog(logger logrus.FieldLogger) *tracelog.TraceLog {
	sqlLog := logger.WithField("component", "pgx")
	return &tracelog.TraceLog{
		Logger: tracelog.LoggerFunc(func(_ context.Context, lvl tracelog.LogLevel, msg string, data map[string]any) {
			entry := sqlLog.WithFields(logrus.Fields(data))
			switch lvl {
			case tracelog.LogLevelError:
				entry.Error(msg)
			case tracelog.LogLevelWarn:
				entry.Warn(msg)
			default:
				entry.Debug(msg)
			}
		}),
		LogLevel: tracelog.LogLevelDebug,
	}
}
