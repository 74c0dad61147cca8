package fx

import (
	"arena-tracker/internal/config"
	"arena-tracker/internal/feed"
	"arena-tracker/internal/logger"
	"arena-tracker/internal/server"
	"arena-tracker/internal/service"

	"go.uber.org/fx"
)

func ProvideSource(fetcher *feed.Fetcher) feed.Source {
	return fetcher
}

func ProvideSnapshotProvider(coord *feed.Coordinator) service.SnapshotProvider {
	return coord
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	// feed
	fx.Provide(feed.NewClient),
	fx.Provide(feed.NewFetcher),
	fx.Provide(ProvideSource),
	fx.Provide(feed.NewCoordinator),
	fx.Provide(ProvideSnapshotProvider),
	// svc
	fx.Provide(service.NewUpcomingService),
	fx.Provide(service.NewMatchupService),
	fx.Provide(service.NewHistoryService),
	// server
	fx.Provide(server.New),
)
