package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.With(s.writeLimitMiddleware).Post("/reload", s.handleReload)
		r.Get("/ledger", s.handleLedger)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{device}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/zones", s.handleListZones)

				r.Route("/zones/{zone}", func(r chi.Router) {
					r.Get("/", s.handleGetZone)
					r.Get("/state", s.handleGetState)
					r.With(s.writeLimitMiddleware).Put("/state", s.handleSetState)
					r.With(s.writeLimitMiddleware).Patch("/state", s.handleMergeState)
				})
			})
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", s.handleListProfiles)

			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetProfile)
				r.Post("/", s.handleCaptureProfile)
				r.Delete("/", s.handleDeleteProfile)
				r.With(s.writeLimitMiddleware).Post("/apply", s.handleApplyProfile)
			})
		})

		r.Route("/actions", func(r chi.Router) {
			r.Get("/", s.handleListActions)
			r.With(s.writeLimitMiddleware).Post("/{name}", s.handleInvokeAction)
		})

		r.Get("/schedules", s.handleListSchedules)
	})

	return r
}
