package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

func NewAPIRouter(api *API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, NewStructuredLogger(), middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/claims/adjudicate", api.Adjudicate)
		r.Get("/decisions/{claimID}", api.GetDecision)
	})
	r.Get("/_health", api.HealthCheck)

	return r
}
