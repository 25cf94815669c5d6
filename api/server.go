// Package api - HTTP-интерфейс сервиса чаевых.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/UkralStul/tipping-service/internal/dataloader"
	"github.com/UkralStul/tipping-service/internal/session"
	"github.com/UkralStul/tipping-service/internal/storage"
	"github.com/UkralStul/tipping-service/internal/tipping"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UserHeader - заголовок с id текущего пользователя.
const UserHeader = session.Header

// Handler содержит зависимости HTTP-обработчиков.
type Handler struct {
	Service  *tipping.Service
	Storage  storage.Storage
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer

	// GraphQL и Playground монтируются на /query и /playground, если заданы.
	GraphQL    http.Handler
	Playground http.Handler
}

// Routes собирает роутер со всеми маршрутами.
func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(h.requestLogger)
	router.Use(session.Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if h.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/users", func(r chi.Router) {
		r.Post("/", h.createUser)
		r.Get("/", h.listUsers)
		r.Get("/{userID}", h.getUser)
	})
	if h.Playground != nil {
		router.Handle("/playground", h.Playground)
	}

	router.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return dataloader.Middleware(h.Storage, next)
		})
		r.Route("/posts", func(r chi.Router) {
			r.Post("/", h.createPost)
			r.Get("/", h.listPosts)
			r.Get("/random", h.randomPosts)
			r.Get("/{postID}", h.getPost)
			r.Delete("/{postID}", h.deletePost)
			r.Post("/{postID}/comments", h.createComment)
			r.Post("/{postID}/tips", h.tipPost)
			r.Post("/{postID}/comments/{targetID}/tips", h.tipComment)
		})
		if h.GraphQL != nil {
			r.Handle("/query", h.GraphQL)
		}
	})

	return router
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger().DebugContext(r.Context(), "request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}

// Server - HTTP-сервер, останавливается при отмене контекста.
type Server struct {
	Addr    string
	Handler http.Handler
	Logger  *slog.Logger
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("starting HTTP server", "addr", s.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
