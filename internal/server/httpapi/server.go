// Package httpapi exposes the account flows over HTTP with JSON envelopes
// and cookie-based token transport.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/viewtube/internal/logging"
	"github.com/dmitrijs2005/viewtube/internal/server/config"
	"github.com/dmitrijs2005/viewtube/internal/server/metrics"
	"github.com/dmitrijs2005/viewtube/internal/server/models"
	"github.com/dmitrijs2005/viewtube/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

// UserFlows is the service surface the HTTP boundary depends on.
type UserFlows interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.SanitizedUser, error)
	Login(ctx context.Context, userName, email, password string) (*models.SanitizedUser, *services.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	GetUser(ctx context.Context, userID string) (*models.SanitizedUser, error)
}

// Server is the HTTP front of the account service.
type Server struct {
	address      string
	cfg          *config.Config
	logger       logging.Logger
	users        UserFlows
	metrics      *metrics.Metrics
	accessSecret []byte
}

// NewServer builds a Server around the user flows.
func NewServer(cfg *config.Config, logger logging.Logger, users UserFlows, m *metrics.Metrics) *Server {
	return &Server{
		address:      cfg.EndpointAddrHTTP,
		cfg:          cfg,
		logger:       logger,
		users:        users,
		metrics:      m,
		accessSecret: []byte(cfg.AccessTokenSecret),
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh-token", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/logout", s.handleLogout)
			r.Get("/me", s.handleMe)
		})
	})

	return r
}

// Run starts the HTTP listener and blocks until ctx is cancelled, then shuts
// the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "starting http server", "addr", s.address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
