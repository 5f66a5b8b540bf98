package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/oscied/orchestra/pkg/auth"
	"github.com/oscied/orchestra/pkg/config"
	"github.com/oscied/orchestra/pkg/core"
	"github.com/oscied/orchestra/pkg/log"
	"github.com/oscied/orchestra/pkg/metrics"
)

// Server is the REST control surface.
type Server struct {
	cfg    *config.Config
	core   *core.Core
	auth   *auth.Authenticator
	http   *http.Server
	logger zerolog.Logger
}

// NewServer builds the router and binds every route
func NewServer(cfg *config.Config, c *core.Core, a *auth.Authenticator) *Server {
	s := &Server{
		cfg:    cfg,
		core:   c,
		auth:   a,
		logger: log.WithComponent("api"),
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	r.Use(s.requestMetrics)

	r.Get("/", s.handleAbout)
	r.Get("/index", s.handleAbout)
	r.Post("/flush", s.handleFlush)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/user", func(r chi.Router) {
		r.Get("/login", s.handleLogin)
		r.Get("/count", s.handleUserCount)
		r.Get("/", s.handleUserList)
		r.Post("/", s.handleUserAdd)
		r.Route("/id/{id}", func(r chi.Router) {
			r.Get("/", s.handleUserGet)
			r.Patch("/", s.handleUserUpdate)
			r.Put("/", s.handleUserUpdate)
			r.Delete("/", s.handleUserDelete)
		})
	})

	r.Route("/media", func(r chi.Router) {
		r.Get("/count", s.handleMediaCount)
		r.Get("/HEAD", s.handleMediaHead)
		r.Get("/", s.handleMediaList)
		r.Post("/", s.handleMediaAdd)
		r.Route("/id/{id}", func(r chi.Router) {
			r.Get("/HEAD", s.handleMediaGetHead)
			r.Get("/", s.handleMediaGet)
			r.Patch("/", s.handleMediaUpdate)
			r.Put("/", s.handleMediaUpdate)
			r.Delete("/", s.handleMediaDelete)
		})
	})

	r.Route("/environment", func(r chi.Router) {
		r.Get("/", s.handleEnvironmentList)
		r.Post("/", s.handleEnvironmentAdd)
		r.Route("/name/{name}", func(r chi.Router) {
			r.Get("/", s.handleEnvironmentGet)
			r.Delete("/", s.handleEnvironmentDelete)
		})
	})

	r.Route("/transform", func(r chi.Router) {
		r.Route("/profile", func(r chi.Router) {
			r.Get("/encoder", s.handleEncoderList)
			r.Get("/count", s.handleProfileCount)
			r.Get("/", s.handleProfileList)
			r.Post("/", s.handleProfileAdd)
			r.Route("/id/{id}", func(r chi.Router) {
				r.Get("/", s.handleProfileGet)
				r.Delete("/", s.handleProfileDelete)
			})
		})
		r.Route("/unit/environment/{environment}", func(r chi.Router) {
			r.Get("/count", s.serviceUnitCount("transform"))
			r.Get("/", s.serviceUnitList("transform"))
			r.Post("/", s.serviceUnitEnsure("transform"))
			r.Delete("/", s.serviceUnitScaleDown("transform"))
			r.Route("/number/{number}", func(r chi.Router) {
				r.Get("/", s.serviceUnitGet("transform"))
				r.Delete("/", s.serviceUnitDestroy("transform"))
			})
		})
		r.Get("/queue", s.handleTransformQueues)
		r.Route("/task", func(r chi.Router) {
			r.Get("/count", s.handleTransformTaskCount)
			r.Get("/HEAD", s.handleTransformTaskHead)
			r.Get("/", s.handleTransformTaskList)
			r.Post("/", s.handleTransformTaskLaunch)
			r.Route("/id/{id}", func(r chi.Router) {
				r.Get("/HEAD", s.handleTransformTaskGetHead)
				r.Get("/", s.handleTransformTaskGet)
				r.Delete("/", s.handleTransformTaskRevoke)
			})
		})
		r.Post("/callback", s.handleTransformCallback)
	})

	r.Route("/publisher", func(r chi.Router) {
		r.Route("/unit/environment/{environment}", func(r chi.Router) {
			r.Get("/count", s.serviceUnitCount("publisher"))
			r.Get("/", s.serviceUnitList("publisher"))
			r.Post("/", s.serviceUnitEnsure("publisher"))
			r.Delete("/", s.serviceUnitScaleDown("publisher"))
			r.Route("/number/{number}", func(r chi.Router) {
				r.Get("/", s.serviceUnitGet("publisher"))
				r.Delete("/", s.serviceUnitDestroy("publisher"))
			})
		})
		r.Get("/queue", s.handlePublisherQueues)
		r.Route("/task", func(r chi.Router) {
			r.Get("/count", s.handlePublisherTaskCount)
			r.Get("/HEAD", s.handlePublisherTaskHead)
			r.Get("/", s.handlePublisherTaskList)
			r.Post("/", s.handlePublisherTaskLaunch)
			r.Route("/id/{id}", func(r chi.Router) {
				r.Get("/HEAD", s.handlePublisherTaskGetHead)
				r.Get("/", s.handlePublisherTaskGet)
				r.Delete("/", s.handlePublisherTaskRevoke)
			})
		})
		r.Post("/callback", s.handlePublisherCallback)
		r.Post("/revoke/callback", s.handlePublisherRevokeCallback)
	})

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.http.Addr).Msg("api server listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requestMetrics records request counts and latencies.
func (s *Server) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		metrics.APIRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		s.logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", ww.Status()).Msg("request handled")
	})
}
