package app

import (
	"entgo.io/ent/dialect"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/audiolink/internal/infrastructure/config"
	"github.com/eslsoft/audiolink/internal/usecase"
)

// Container aggregates the application dependencies produced by Wire.
type Container struct {
	Config *config.Config
	Logger *logrus.Logger
	Driver dialect.Driver
	Audios usecase.AudioUsecase
	Search usecase.SearchAttributeUsecase
	Stats  usecase.StatsUsecase
	Relay  *usecase.ReindexRelay
}

func provideRelayOptions(cfg *config.Config) usecase.RelayOptions {
	return usecase.RelayOptions{
		BatchSize: cfg.Relay.BatchSize,
		Grace:     cfg.Relay.Grace,
		Rate:      cfg.Relay.Rate,
	}
}
