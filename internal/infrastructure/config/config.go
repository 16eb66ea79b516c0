package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Search   SearchConfig   `mapstructure:"search"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Relay    RelayConfig    `mapstructure:"relay"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	LogSQL   bool   `mapstructure:"log_sql"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SearchConfig selects how sentences are flagged for reindexing.
type SearchConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Notifier string `mapstructure:"notifier"`
}

// KafkaConfig is used by the kafka reindex notifier.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// RelayConfig tunes the reindex outbox relay.
type RelayConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
	Grace     time.Duration `mapstructure:"grace"`
	Rate      float64       `mapstructure:"rate"`
}

const (
	DriverSQLite   = "sqlite3"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"

	defaultSQLiteDSN = "file:audiolink.db?_fk=1"

	NotifierSQL   = "sql"
	NotifierKafka = "kafka"
)

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	// Env values arrive as one comma separated string.
	if len(config.Kafka.Brokers) == 1 && strings.Contains(config.Kafka.Brokers[0], ",") {
		config.Kafka.Brokers = strings.Split(config.Kafka.Brokers[0], ",")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Database defaults
	viper.SetDefault("database.driver", DriverSQLite)
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "audiolink")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.log_sql", false)

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	// Search defaults
	viper.SetDefault("search.enabled", true)
	viper.SetDefault("search.notifier", NotifierSQL)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "sentence-reindex")

	// Relay defaults
	viper.SetDefault("relay.interval", time.Minute)
	viper.SetDefault("relay.batch_size", 500)
	viper.SetDefault("relay.grace", 30*time.Second)
	viper.SetDefault("relay.rate", 0)
}

// Validate rejects unsupported drivers and notifiers early.
func (c *Config) Validate() error {
	switch c.DatabaseDriver() {
	case DriverSQLite, DriverPgx, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if !c.Search.Enabled {
		return nil
	}
	switch c.Search.Notifier {
	case NotifierSQL:
	case NotifierKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return fmt.Errorf("kafka notifier requires kafka.brokers and kafka.topic")
		}
	default:
		return fmt.Errorf("unsupported search notifier %q", c.Search.Notifier)
	}
	return nil
}

// DatabaseDriver returns the normalized driver name.
func (c *Config) DatabaseDriver() string {
	return strings.ToLower(strings.TrimSpace(c.Database.Driver))
}

// DatabaseURL returns the connection string for the configured driver. An
// explicit dsn wins; postgres drivers otherwise build a URL from the parts.
func (c *Config) DatabaseURL() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	if c.DatabaseDriver() == DriverSQLite {
		return defaultSQLiteDSN
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}
