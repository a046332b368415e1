// Package server assembles the HTTP surface: routes, middleware chain, and
// graceful lifecycle.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reelvault/internal/api"
	"reelvault/internal/observability/metrics"
)

type Config struct {
	Addr            string
	TLS             TLSConfig
	Logger          *slog.Logger
	Metrics         *metrics.Recorder
	ShutdownTimeout time.Duration
}

type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	tls             TLSConfig
	shutdownTimeout time.Duration
}

func New(handler *api.Handler, cfg Config) *Server {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handler.Health)
	mux.Handle("/metrics", recorder.Handler())
	mux.HandleFunc("/api/auth/signup", handler.Signup)
	mux.HandleFunc("/api/auth/login", handler.Login)
	mux.HandleFunc("/api/auth/logout", handler.Logout)
	mux.HandleFunc("/api/auth/session", handler.Session)
	mux.HandleFunc("/api/videos/upload-url", handler.UploadURL)
	mux.HandleFunc("/api/videos/complete-upload", handler.CompleteUpload)
	mux.HandleFunc("/api/videos", handler.Videos)
	mux.HandleFunc("/api/videos/", handler.VideoByID)
	mux.HandleFunc("/api/share-groups", handler.ShareGroups)
	mux.HandleFunc("/api/share-groups/", handler.ShareGroupByID)
	mux.HandleFunc("/api/teams", handler.Teams)
	mux.HandleFunc("/api/teams/", handler.TeamByID)
	mux.HandleFunc("/api/settings/storage", handler.StorageSettings)
	mux.HandleFunc("/embed/", handler.Embed)

	handlerChain := http.Handler(mux)
	handlerChain = authMiddleware(handler, handlerChain)
	handlerChain = recorder.HTTPMiddleware(handlerChain)
	handlerChain = loggingMiddleware(cfg.Logger, handlerChain)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlerChain,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Streaming responses can outlive an ordinary API write window.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer:      httpServer,
		logger:          cfg.Logger,
		tls:             cfg.TLS,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Shutdown stops the server without waiting for ctx cancellation.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := metrics.NewResponseRecorder(w)
		start := time.Now()
		next.ServeHTTP(recorder, r)
		logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr)
	})
}

// authMiddleware resolves the session token into a user and stores it on the
// request context. Health, metrics, the auth endpoints, and the public embed
// tree pass through without a token.
func authMiddleware(handler *api.Handler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/healthz" || path == "/metrics" ||
			strings.HasPrefix(path, "/api/auth/") ||
			strings.HasPrefix(path, "/embed/") ||
			!strings.HasPrefix(path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		user, err := handler.AuthenticateRequest(r)
		if err != nil {
			api.WriteError(w, http.StatusUnauthorized, err)
			return
		}
		ctx := api.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
