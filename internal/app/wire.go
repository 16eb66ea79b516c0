//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/audiolink/internal/adapter/cache"
	"github.com/eslsoft/audiolink/internal/adapter/reindex"
	"github.com/eslsoft/audiolink/internal/adapter/repository"
	"github.com/eslsoft/audiolink/internal/infrastructure/config"
	"github.com/eslsoft/audiolink/internal/infrastructure/database"
	"github.com/eslsoft/audiolink/internal/infrastructure/logger"
	repo "github.com/eslsoft/audiolink/internal/repository"
	"github.com/eslsoft/audiolink/internal/usecase"
)

var infrastructureSet = wire.NewSet(
	logger.NewLogger,
	wire.Bind(new(logrus.FieldLogger), new(*logrus.Logger)),
	database.NewDriver,
)

var repositorySet = wire.NewSet(
	repository.NewDriverStores,
	repository.NewTransactor,
	wire.FieldsOf(new(repo.Stores), "Audios", "Outbox"),
	cache.NewMemoryStore,
	wire.Bind(new(repo.CacheStore), new(*cache.MemoryStore)),
	reindex.NewNotifier,
)

var usecaseSet = wire.NewSet(
	usecase.NewStatsUsecase,
	usecase.NewAudioUsecase,
	usecase.NewSearchAttributeUsecase,
	provideRelayOptions,
	usecase.NewReindexRelay,
)

// Initialize builds the application container using Wire.
func Initialize(cfg *config.Config) (*Container, func(), error) {
	wire.Build(
		infrastructureSet,
		repositorySet,
		usecaseSet,
		wire.Struct(new(Container), "*"),
	)
	return nil, nil, nil
}
