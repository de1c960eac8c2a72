package internal

import (
	"net/http"

	"mentiond/internal/controllers"
	"mentiond/internal/providers"
	"mentiond/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, eventsController *controllers.EventsController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/feed", http.HandlerFunc(apiController.GetFeed))
	routers.Get("/mention", http.HandlerFunc(apiController.GetMention))
	routers.Patch("/lead", http.HandlerFunc(apiController.ToggleLead))
	routers.Get("/events", http.HandlerFunc(eventsController.Events))
	return routers
}
