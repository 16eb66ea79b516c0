package reindex

import (
	"fmt"

	"entgo.io/ent/dialect"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/audiolink/internal/infrastructure/config"
	"github.com/eslsoft/audiolink/internal/repository"
)

// NewNotifier selects the reindex notifier from config.
func NewNotifier(cfg *config.Config, drv dialect.Driver, logger logrus.FieldLogger) (repository.ReindexNotifier, func(), error) {
	if !cfg.Search.Enabled {
		logger.Info("search disabled, reindex triggers are dropped")
		return NoopNotifier{}, func() {}, nil
	}
	switch cfg.Search.Notifier {
	case config.NotifierSQL:
		return NewSQLNotifier(drv), func() {}, nil
	case config.NotifierKafka:
		n, cleanup, err := NewKafkaNotifier(cfg.Kafka)
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("topic", cfg.Kafka.Topic).Info("publishing reindex events to kafka")
		return n, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unsupported search notifier %q", cfg.Search.Notifier)
	}
}
