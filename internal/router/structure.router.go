package router

import (
	"time"

	"structure-service/internal/handler"
	"structure-service/internal/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
)

func New(h *handler.StructureHandler, auth *middleware.AuthMiddleware, rdb *redis.Client) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Group(func(r chi.Router) {
		r.Use(auth.Require())
		r.Use(middleware.RateLimiter(rdb, 100, time.Minute, 10*time.Minute, "structure"))

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/projects/{projectID}", func(r chi.Router) {
				r.Post("/modules", h.CreateModule)
				r.Get("/structure", h.GetStructure)
			})

			r.Route("/modules/{moduleID}", func(r chi.Router) {
				r.Get("/", h.GetModule)
				r.Patch("/", h.UpdateModule)
				r.Delete("/", h.DeleteModule)
				r.Post("/features", h.CreateFeature)
				r.Post("/move", h.MoveModule)
				r.Post("/snapshot", h.SnapshotModule)
				r.Post("/rollback", h.RollbackModule)
				r.Post("/publish", h.PublishModule)
				r.Get("/versions", h.ListModuleVersions)
				r.Post("/restore", h.RestoreModule)
			})

			r.Route("/features/{featureID}", func(r chi.Router) {
				r.Get("/", h.GetFeature)
				r.Patch("/", h.UpdateFeature)
				r.Delete("/", h.DeleteFeature)
				r.Post("/move", h.MoveFeature)
				r.Post("/snapshot", h.SnapshotFeature)
				r.Post("/rollback", h.RollbackFeature)
				r.Post("/publish", h.PublishFeature)
				r.Get("/versions", h.ListFeatureVersions)
				r.Post("/restore", h.RestoreFeature)
			})
		})
	})

	return r
}
