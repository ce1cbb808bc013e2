package metering

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/meterkit/pkg/logger"
	"github.com/dmitrymomot/meterkit/pkg/requestid"
)

// Handler returns the API router.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/teams/{teamID}", func(r chi.Router) {
			r.Post("/validate", s.handleValidate)
			r.Get("/usage", s.handleOverview)
			r.Post("/usage/{metric}", s.handleIncrement)
		})
		r.Post("/rollover", s.handleRollover)
		r.Post("/billing/paddle/webhook", s.handlePaddleWebhook)
	})

	return r
}

func (s *Service) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "http request",
			logger.Component("metering"),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			logger.Duration(time.Since(start)))
	})
}
