package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dgallion1/docforge/internal/assembler"
	"github.com/dgallion1/docforge/internal/config"
	"github.com/dgallion1/docforge/internal/ooxml"
	"github.com/dgallion1/docforge/internal/pdfdoc"
	"github.com/dgallion1/docforge/internal/render"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for docforge.
type Server struct {
	router chi.Router
	svc    *render.Service
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(svc *render.Service, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		svc: svc,
		log: log,
		cfg: cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/render/docx", s.handleRenderDocx)
		r.Post("/api/render/docx/batch", s.handleRenderDocxBatch)
		r.Post("/api/render/pdf", s.handleRenderPDF)

		r.Post("/api/inspect", s.handleInspectUpload)
		r.Post("/api/inspect/docx", s.handleInspectDocx)
		r.Post("/api/inspect/pdf", s.handleInspectPDF)
		r.Post("/api/validate/docx", s.handleValidateDocx)

		r.Get("/api/stats/render", s.handleRenderStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// renderContext bounds one request by the configured render timeout.
func (s *Server) renderContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.RenderTimeout)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, render.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, render.ErrUnsupportedFormat),
		errors.Is(err, assembler.ErrEmptyTemplate),
		errors.Is(err, ooxml.ErrNotPackage),
		errors.Is(err, ooxml.ErrMissingMainPart),
		errors.Is(err, ooxml.ErrMalformedXML),
		errors.Is(err, pdfdoc.ErrMalformed),
		errors.Is(err, pdfdoc.ErrEncrypted):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
