package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-sentry/internal/web/handlers"
)

func (s *Server) setupRoutes(api *handlers.API) {
	s.router.Get("/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", api.Status)

		r.Route("/persons", func(r chi.Router) {
			r.Get("/", api.ListPersons)
			r.Post("/", api.RegisterPerson)
			r.Delete("/{name}", api.DeletePerson)
		})

		r.Route("/detections", func(r chi.Router) {
			r.Get("/", api.RecentDetections)
			r.Get("/stats", api.DetectionStats)
		})

		r.Route("/attendance", func(r chi.Router) {
			r.Get("/", api.GetAttendance)
			r.Get("/export", api.AttendanceExport)
		})
	})
}
