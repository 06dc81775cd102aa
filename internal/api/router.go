package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", apiHandler.RegisterHandler)
		r.Post("/auth/token", apiHandler.LoginHandler)
		r.Post("/auth/refresh", apiHandler.RefreshHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Get("/auth/me", apiHandler.MeHandler)

			// Children routes
			r.Get("/children", apiHandler.ListChildrenHandler)
			r.Post("/children", apiHandler.CreateChildHandler)
			r.Delete("/children/{childID}", apiHandler.DeleteChildHandler)
			r.Get("/children/{childID}/complexity", apiHandler.ChildComplexityHandler)

			// Question and feedback routes
			r.Post("/questions", apiHandler.AskQuestionHandler)
			r.Get("/responses/child/{childID}", apiHandler.ChildResponsesHandler)
			r.Post("/responses/{responseID}/feedback", apiHandler.FeedbackHandler)

			// Monetization routes
			r.Get("/monetization/status", apiHandler.MonetizationStatusHandler)
			r.Post("/monetization/select-active-child", apiHandler.SelectActiveChildHandler)
			r.Post("/monetization/subscribe", apiHandler.SubscribeHandler)
		})
	})

	return r
}
