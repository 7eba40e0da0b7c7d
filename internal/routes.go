package internal

import (
	"jamsync/internal/controllers"
	"jamsync/internal/providers"
	"jamsync/internal/structures"
	"net/http"
)

func InitRoutes(apiController *controllers.ApiController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/queue", http.HandlerFunc(apiController.GetQueue))
	routers.Get("/session", http.HandlerFunc(apiController.GetSession))
	routers.Get("/modes", http.HandlerFunc(apiController.GetModes))
	routers.Get("/quota", http.HandlerFunc(apiController.GetQuota))
	routers.Get("/activity", http.HandlerFunc(apiController.GetActivity))
	routers.Post("/vote", http.HandlerFunc(apiController.Vote))
	routers.Post("/songs", http.HandlerFunc(apiController.AddSong))
	routers.Post("/purge", http.HandlerFunc(apiController.PurgeDelete))
	routers.Post("/battle/vote", http.HandlerFunc(apiController.BattleVote))
	routers.Post("/interaction", http.HandlerFunc(apiController.MarkInteraction))
	return routers
}
