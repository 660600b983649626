package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gestorhq/portal-api/config"
	httpx "github.com/gestorhq/portal-api/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// RunHTTPServer starts the HTTP server and blocks until a shutdown signal
// arrives or the listener fails, then drains in-flight requests.
func RunHTTPServer(ctx context.Context, cfg *HTTPServerConfig) error {
	if cfg == nil || cfg.Services == nil {
		return errors.New("http server config and services are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := buildHTTPHandler(httpHandlerConfig{
		Logger:   logger,
		Services: cfg.Services,
		HTTP:     appCfg.HTTP,
		DevMode:  appCfg.IsDev,
	})

	addr := appCfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down HTTP server")

		shutdownTimeout := appCfg.HTTP.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("HTTP server stopped")
		return nil
	})

	return g.Wait()
}

type httpHandlerConfig struct {
	Logger   *slog.Logger
	Services *ServiceContainer
	HTTP     config.HTTPConfig
	DevMode  bool
}

// buildHTTPHandler assembles the router.
// Middleware order: Recover -> Logging -> Router.
func buildHTTPHandler(cfg httpHandlerConfig) http.Handler {
	router := httpx.NewRouter(httpx.RouterServices{
		Auth:         cfg.Services.Auth,
		Credentials:  cfg.Services.Credentials,
		Audit:        cfg.Services.Audit,
		CookieDomain: cfg.HTTP.CookieDomain,
		DevMode:      cfg.DevMode,
		Logger:       cfg.Logger,
	})

	h := router
	h = httpx.Logging(cfg.Logger)(h)
	h = httpx.Recover(cfg.Logger)(h)

	return h
}
