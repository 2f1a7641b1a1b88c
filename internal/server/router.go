package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/soapify-health/soapify/internal/api"
	"github.com/soapify-health/soapify/internal/api/handlers"
	"github.com/soapify-health/soapify/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator     middleware.AuthValidator
	NoteHandler       *handlers.NoteHandler
	PatientHandler    *handlers.PatientHandler
	AttachmentHandler *handlers.AttachmentHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APITokenAuth(cfg.AuthValidator))

		r.Route("/notes", func(r chi.Router) {
			r.Post("/", cfg.NoteHandler.Submit)
			r.Get("/", cfg.NoteHandler.List)
			r.Get("/{id}", cfg.NoteHandler.Get)
			r.Put("/{id}", cfg.NoteHandler.Update)
			r.Get("/{id}/attachments", cfg.AttachmentHandler.ListByNote)
		})

		r.Route("/patients", func(r chi.Router) {
			r.Post("/", cfg.PatientHandler.Create)
			r.Get("/", cfg.PatientHandler.List)
			r.Get("/{id}/history", cfg.PatientHandler.History)
		})

		r.Route("/attachments", func(r chi.Router) {
			r.Post("/init", cfg.AttachmentHandler.InitUpload)
			r.Post("/complete", cfg.AttachmentHandler.CompleteUpload)
			r.Get("/{id}/download", cfg.AttachmentHandler.GetDownloadURL)
		})
	})

	return r
}
