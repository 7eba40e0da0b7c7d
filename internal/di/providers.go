package di

import (
	"jamsync/internal/identity"
	"jamsync/internal/ledger"
	"jamsync/internal/services"
	"jamsync/internal/structures"

	"github.com/jonboulle/clockwork"
)

func provideSessionService(conf *structures.Config, id identity.VisitorID, clock clockwork.Clock) services.SessionServiceInterface {
	return services.NewSessionService(conf, string(id), clock)
}

func provideRateLimiter(conf *structures.Config, clock clockwork.Clock) ledger.RateLimiterInterface {
	return ledger.NewRateLimiter(conf.Engine.Cooldown, clock)
}
