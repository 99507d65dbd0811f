//go:build wireinject
// +build wireinject

package di

import (
	"FeedRelay/pkg/config"
	"FeedRelay/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Bus and routing
		ProvideBus,
		ProvidePublisher,
		ProvideFactorStore,

		// Use cases
		ProvideFactorThrottle,
		ProvideEventRouter,
		ProvideEventPipeline,
		ProvideMarketStream,
		ProvideFeedCollector,

		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
