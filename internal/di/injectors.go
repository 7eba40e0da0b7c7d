//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"
	"jamsync/internal"
	"jamsync/internal/authority"
	"jamsync/internal/controllers"
	"jamsync/internal/identity"
	"jamsync/internal/ledger"
	"jamsync/internal/modes"
	"jamsync/internal/providers"
	"jamsync/internal/session"
	"jamsync/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewClockProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		identity.NewVisitorID,
		provideSessionService,
		provideRateLimiter,
		authority.NewClient,
		modes.NewCoordinator,
		session.NewZstdCompressor,
		session.NewFileManager,
		session.NewScheduler,
		ledger.NewLedger,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
