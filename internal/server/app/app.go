// Package app wires the API server: storage, session manager, HTTP routes
// and background token cleanup.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/DrakonKapysta/web-beat-api/internal/server/config"
	"github.com/DrakonKapysta/web-beat-api/internal/server/httpx"
	"github.com/DrakonKapysta/web-beat-api/internal/server/jwt"
	"github.com/DrakonKapysta/web-beat-api/internal/server/metrics"
	"github.com/DrakonKapysta/web-beat-api/internal/server/middleware"
	"github.com/DrakonKapysta/web-beat-api/internal/server/session"
	"github.com/DrakonKapysta/web-beat-api/internal/server/storage"
	"github.com/DrakonKapysta/web-beat-api/internal/server/storage/postgres"
	"github.com/DrakonKapysta/web-beat-api/internal/server/storage/sqlite"
	"github.com/DrakonKapysta/web-beat-api/internal/server/users"
)

// App владеет хранилищем, сервисами и HTTP обработчиком
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    storage.Storage
	metrics  *metrics.Metrics
	users    *users.Service
	sessions *session.Manager
	limiter  *middleware.RateLimiter
	handler  http.Handler
}

// New открывает хранилище, выбранное в cfg, и собирает App
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*App, error) {
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "storage opened", slog.String("driver", cfg.StorageDriver))

	return NewWithStorage(cfg, store, logger, version), nil
}

// NewWithStorage собирает App поверх готового хранилища. App закрывает store в Close
func NewWithStorage(cfg *config.Config, store storage.Storage, logger *slog.Logger, version string) *App {
	m := metrics.New()

	sessions := session.NewManager(store,
		jwt.NewSigner(cfg.AccessSecret, cfg.AccessTTL),
		jwt.NewSigner(cfg.RefreshSecret, cfg.RefreshTTL),
		logger,
		session.WithMetrics(m),
	)

	a := &App{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		metrics:  m,
		users:    users.NewService(store, logger, m),
		sessions: sessions,
	}

	if cfg.RateLimitAuth > 0 {
		a.limiter = middleware.NewRateLimiter(cfg.RateLimitAuth, time.Minute, logger).TrustProxyHeaders(cfg.TrustProxy)
	}

	a.handler = a.routes(version)

	return a
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		return s, nil
	case config.DriverSQLite:
		s, err := sqlite.New(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Handler returns the root HTTP handler with middleware applied
func (a *App) Handler() http.Handler {
	return a.handler
}

// Users returns the account service, used to seed accounts
func (a *App) Users() *users.Service {
	return a.users
}

func (a *App) cookieConfig() httpx.CookieConfig {
	return httpx.CookieConfig{
		Domain:   a.cfg.CookieDomain,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   a.cfg.CookieSecure,
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Address,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.runJanitor(janitorCtx)
	}()

	a.logger.InfoContext(ctx, "server starting", slog.String("addr", a.cfg.Address))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server failed", slog.Any("error", err))
		runErr = err
	}

	stopJanitor()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown failed", slog.Any("error", err))
		runErr = errors.Join(runErr, err)
	}

	if err := a.Close(); err != nil {
		a.logger.Error("failed to close storage", slog.Any("error", err))
		runErr = errors.Join(runErr, err)
	}

	a.logger.Info("server stopped")
	return runErr
}

// Close останавливает rate limiter и закрывает хранилище
func (a *App) Close() error {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	return a.store.Close()
}
