package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/missing-persons/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	svc := s.services

	healthHandler := handlers.NewHealthHandler(svc.Store)
	personsHandler := handlers.NewPersonsHandler(svc.Store, svc.Embedder, svc.Photos, svc.Model)
	searchHandler := handlers.NewSearchHandler(svc.Store, svc.Engine, svc.Embedder, svc.Model)
	compareHandler := handlers.NewCompareHandler(svc.Engine, svc.Embedder)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Check)
		r.Handle("/metrics", promhttp.Handler())

		r.Get("/missing-persons", personsHandler.List)
		r.Post("/missing-persons", personsHandler.Add)
		r.Get("/missing-persons/{id}", personsHandler.Get)
		r.Get("/missing-persons/{id}/photo", personsHandler.Photo)

		r.Post("/search", searchHandler.Search)
		r.Post("/compare", compareHandler.Compare)
	})
}
