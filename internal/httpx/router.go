// Package httpx is the HTTP surface of the API service: auth endpoints,
// learning-path intake, progress read/stream, and record listing.
package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roadmapai/backend/internal/httpx/middlewares"
)

// NewRouter assembles the route tree. Progress endpoints are keyed by the
// unguessable trace ID and stay public; everything touching learning-path
// records requires a verified identity.
func NewRouter(authHandler *AuthHandler, pathHandler *PathHandler, verifier middlewares.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Get("/learning-paths/status/{traceId}", pathHandler.Status)
		r.Get("/learning-paths/status/{traceId}/stream", pathHandler.StreamStatus)

		r.Group(func(r chi.Router) {
			r.Use(middlewares.RequireAuth(verifier))
			r.Get("/me", authHandler.Me)
			r.Post("/learning-paths", pathHandler.Create)
			r.Get("/learning-paths", pathHandler.List)
			r.Get("/learning-paths/{id}", pathHandler.Get)
		})
	})

	return r
}
