package internalhttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/solarmarket/creative-rotation/internal/app"
	"go.uber.org/zap"
)

type Server struct {
	app                *app.App
	rotationIntervalMS int
	httpSrv            *http.Server
}

// NewServer mounts the visitor and admin routes. rotationIntervalMS is
// advertised to carousel clients on slot responses.
func NewServer(a *app.App, host string, port string, rotationIntervalMS int) *Server {
	s := &Server{app: a, rotationIntervalMS: rotationIntervalMS}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(a.GetLogger()))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/creatives", s.handleSlotRequest)
		r.Post("/creatives/{id}/impression", s.handleImpression)
		r.Post("/creatives/{id}/click", s.handleClick)

		r.Route("/admin/creatives", func(r chi.Router) {
			r.Post("/", s.handleCreate)
			r.Put("/{id}", s.handleUpdate)
			r.Post("/{id}/pause", s.handlePause)
			r.Post("/{id}/resume", s.handleResume)
		})
	})

	s.httpSrv = &http.Server{
		Addr:              net.JoinHostPort(host, port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Start(ctx context.Context) error {
	s.app.GetLogger().Info("http server is listening", "addr", s.httpSrv.Addr)

	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("cannot start http server, %w", err)
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func loggingMiddleware(log app.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.GetInstance().Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Duration("latency", time.Since(start)),
			)
		})
	}
}
