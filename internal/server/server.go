// Package server exposes the maintenance planner over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/handlers"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/zoobzio/clockz"
)

// Options holds the server dependencies and settings.
type Options struct {
	Auth  *auth.Service
	Users db.UserStore
	Fleet handlers.FleetService
	Log   logrus.FieldLogger
	Clock clockz.Clock

	Port            int
	ShutdownTimeout time.Duration
	// RateLimit is the number of requests per minute allowed per client.
	// Zero disables rate limiting.
	RateLimit int
}

// Handler builds the routed and wrapped HTTP handler.
func Handler(opts Options) (http.Handler, error) {
	if opts.Auth == nil || opts.Users == nil || opts.Fleet == nil {
		return nil, errors.New("server: auth, users and fleet are required")
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	mux := http.NewServeMux()
	authMW := middleware.NewAuthMiddleware(opts.Auth)
	registerRoutes(mux, authMW,
		handlers.NewAuthHandler(opts.Auth, opts.Users, opts.Log),
		handlers.NewMaintenanceHandler(opts.Fleet, opts.Log))

	var h http.Handler = authMW.Authenticate(mux)
	if opts.RateLimit > 0 {
		h = middleware.NewRateLimitMiddleware(opts.Clock).RateLimit(opts.RateLimit, time.Minute)(h)
	}
	return middleware.RequestLogger(opts.Log)(h), nil
}

// Start serves until ctx is cancelled, then shuts down gracefully within
// ShutdownTimeout.
func Start(ctx context.Context, opts Options) error {
	handler, err := Handler(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", opts.Port))
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return serve(ctx, ln, handler, opts)
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler, opts Options) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	opts.Log.WithField("addr", ln.Addr().String()).Info("HTTP server listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	opts.Log.Info("HTTP server stopped")
	return nil
}
