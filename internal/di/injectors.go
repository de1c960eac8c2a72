//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"mentiond/internal"
	"mentiond/internal/controllers"
	"mentiond/internal/feed"
	"mentiond/internal/providers"
	"mentiond/internal/services"
	"mentiond/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		feed.NewRestClient,
		feed.NewZstdCompressor,
		feed.NewFileManager,
		feed.NewStreamClient,
		feed.NewSyncEngine,
		services.NewFeedService,
		controllers.NewApiController,
		controllers.NewEventsController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
