package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Dosada05/chess-cup/handlers"
)

// SetupRoutes mounts the tournament API and the websocket endpoint on router.
func SetupRoutes(
	router chi.Router,
	allowedOrigins []string,
	tournamentHandler *handlers.TournamentHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/ws/tournament", webSocketHandler.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Get("/ws/tournament/viewers", webSocketHandler.ViewersHandler)

		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", tournamentHandler.ListHandler)
			r.Post("/", tournamentHandler.CreateHandler)
			r.Post("/{tournamentID}/load", tournamentHandler.LoadHandler)
			r.Delete("/{tournamentID}", tournamentHandler.DeleteHandler)
		})

		r.Route("/tournament", func(r chi.Router) {
			r.Get("/", tournamentHandler.GetHandler)
			r.Post("/reset", tournamentHandler.ResetHandler)
			r.Post("/save", tournamentHandler.SaveHandler)
			r.Put("/autosave", tournamentHandler.AutosaveHandler)
			r.Get("/export", tournamentHandler.ExportHandler)
			r.Post("/import", tournamentHandler.ImportHandler)

			r.Put("/groups/{group}/fixtures/{index}", tournamentHandler.RecordResultHandler)
			r.Delete("/groups/{group}/fixtures/{index}", tournamentHandler.ClearResultHandler)

			r.Put("/players/{playerID}/tiebreak", tournamentHandler.SetTiebreakHandler)
			r.Put("/players/{playerID}/name", tournamentHandler.RenamePlayerHandler)

			r.Put("/bracket/{stage}/{matchNumber}", tournamentHandler.RecordKnockoutResultHandler)
			r.Post("/bracket/{stage}/advance", tournamentHandler.AdvanceStageHandler)
		})
	})
}
