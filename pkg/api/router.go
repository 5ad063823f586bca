// Package api exposes the HTTP credential administration API.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/luckygong/streambus/internal/logger"
	"github.com/luckygong/streambus/pkg/api/handlers"
	"github.com/luckygong/streambus/pkg/identity"
)

// NewRouter creates the chi router for the admin API.
//
// Routes:
//   - GET    /health                   - Liveness probe
//   - GET    /api/v1/users             - List usernames
//   - PUT    /api/v1/users/{username}  - Create or replace credentials
//   - GET    /api/v1/users/{username}  - Show one entry
//   - DELETE /api/v1/users/{username}  - Remove an entry
func NewRouter(store identity.Admin, scramIterations int) (http.Handler, error) {
	userHandler, err := handlers.NewUserHandler(store, scramIterations)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteJSONOK(w, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Get("/", userHandler.List)
		r.Route("/{username}", func(r chi.Router) {
			r.Put("/", userHandler.Upsert)
			r.Get("/", userHandler.Get)
			r.Delete("/", userHandler.Delete)
		})
	})

	return r, nil
}

// requestLogger logs requests using the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("admin API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("admin API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
