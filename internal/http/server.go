package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	applog "soldi/internal/log"
	"soldi/internal/storage"
)

// NewRouter wires all routes and the middleware stack.
func NewRouter(h *Handler, repo *storage.Repository, logger *applog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(applog.Middleware(logger.WithComponent(applog.ComponentHTTP)))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/recurring", func(r chi.Router) {
			// Instance routes first so "instances" is not matched as a rule id.
			r.Route("/instances", func(r chi.Router) {
				r.Get("/", requireUser(h.ListInstances))
				r.Get("/{id}", requireUser(h.GetInstance))
				r.Post("/{id}/complete", requireUser(h.CompleteInstance))
				r.Post("/{id}/transaction", requireUser(h.CreateTransactionFromInstance))
				r.Post("/{id}/skip", requireUser(h.SkipInstance))
			})

			r.Get("/", requireUser(h.ListRules))
			r.Post("/", requireUser(h.CreateRule))
			r.Get("/{id}", requireUser(h.GetRule))
			r.Put("/{id}", requireUser(h.UpdateRule))
			r.Delete("/{id}", requireUser(h.RemoveRule))
			r.Get("/{id}/history", requireUser(h.RuleHistory))
		})

		r.Get("/cards/{id}/projection", requireUser(h.CardProjection))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := repo.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
