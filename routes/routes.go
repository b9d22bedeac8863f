package routes

import (
	"net/http"

	"github.com/Dosada05/chess-arena/handlers"
	"github.com/Dosada05/chess-arena/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
)

func SetupRoutes(
	router chi.Router,
	auth *middleware.Authenticator,
	allowedOrigins []string,
	matchHandler *handlers.MatchHandler,
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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/swagger/doc.json", handlers.OpenAPIHandler)
	router.Get("/swagger/*", handlers.SwaggerUIHandler())

	// Токен для WebSocket необязателен: без него можно только наблюдать.
	router.With(auth.Optional).Get("/ws", webSocketHandler.ServeWs)

	router.Route("/api", func(r chi.Router) {
		r.Route("/matches", func(r chi.Router) {
			// Публичные маршруты для просмотра матчей
			r.Get("/", matchHandler.ListHandler)
			r.Get("/{matchID}", matchHandler.GetByIDHandler)

			r.With(auth.Authenticate).Post("/{matchID}/moves", matchHandler.SubmitMoveHandler)
		})

		r.Get("/users/{userID}/matches", matchHandler.ListPlayerMatchesHandler)

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", tournamentHandler.ListHandler)
			r.Get("/{tournamentID}", tournamentHandler.GetByIDHandler)
			r.Get("/{tournamentID}/bracket", tournamentHandler.GetBracketHandler)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)
				r.Post("/{tournamentID}/register", tournamentHandler.RegisterHandler)
				r.Delete("/{tournamentID}/register", tournamentHandler.LeaveHandler)
			})
		})

		// Роль admin проверяют сервисы (services.RequireRoles).
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/matches", matchHandler.CreateHandler)
			r.Post("/matches/{matchID}/start", matchHandler.StartHandler)
			r.Post("/matches/{matchID}/abort", matchHandler.AbortHandler)
			r.Delete("/matches/{matchID}", matchHandler.DeleteHandler)

			r.Post("/tournaments", tournamentHandler.CreateHandler)
			r.Put("/tournaments/{tournamentID}", tournamentHandler.UpdateHandler)
			r.Delete("/tournaments/{tournamentID}", tournamentHandler.DeleteHandler)
			r.Post("/tournaments/{tournamentID}/start", tournamentHandler.StartHandler)
			r.Post("/tournaments/{tournamentID}/cancel", tournamentHandler.CancelHandler)
		})
	})
}
