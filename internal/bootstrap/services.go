package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/gestorhq/portal-api/config"
	redisadapter "github.com/gestorhq/portal-api/internal/adapters/redis"
	"github.com/gestorhq/portal-api/internal/data"
	"github.com/gestorhq/portal-api/internal/observability/notify"
	"github.com/gestorhq/portal-api/internal/password"
	"github.com/gestorhq/portal-api/internal/ports"
	"github.com/gestorhq/portal-api/internal/service"
)

// ServiceDeps contains the shared infrastructure services are built on.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// ServiceContainer holds the constructed application services.
type ServiceContainer struct {
	Credentials *service.CredentialsService
	Lockout     *service.LockoutService
	Audit       *service.AuditService
	Auth        *service.AuthService
	Sessions    ports.SessionStore
}

// NewServices wires repositories, adapters, and services from configuration.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	principals := data.NewPrincipalRepo(deps.DB)
	events := data.NewSecurityEventRepo(deps.DB)

	sessions := redisadapter.NewSessionStore(redisadapter.SessionStoreOptions{
		Client: deps.RedisClient,
		TTL:    cfg.Security.SessionTTL,
	})

	hasherParams := password.DefaultParams()
	hasherParams.Memory = cfg.Security.Argon2MemoryKB
	hasherParams.Time = cfg.Security.Argon2Iterations
	hasherParams.Parallelism = cfg.Security.Argon2Parallelism
	hasher, err := password.NewHasher(hasherParams)
	if err != nil {
		return nil, fmt.Errorf("build password hasher: %w", err)
	}

	var alerts ports.AlertSink
	if cfg.Alerts.Enabled() {
		sink, sinkErr := notify.NewWebhookSink(notify.Config{
			WebhookURL: cfg.Alerts.WebhookURL,
			Username:   cfg.Alerts.Username,
			Timeout:    cfg.Alerts.Timeout,
			RetryLimit: cfg.Alerts.RetryLimit,
		})
		if sinkErr != nil {
			return nil, fmt.Errorf("build alert sink: %w", sinkErr)
		}
		alerts = sink
		logger.Info("security alerts enabled")
	}

	audit := service.NewAuditService(service.AuditServiceOptions{
		Events:                events,
		Alerts:                alerts,
		Logger:                logger,
		SuspiciousIPThreshold: cfg.Security.SuspiciousIPThreshold,
		AlertTimeout:          cfg.Alerts.Timeout,
	})
	lockout := service.NewLockoutService(service.LockoutServiceOptions{
		Events:            events,
		Audit:             audit,
		Sessions:          sessions,
		MaxFailedAttempts: cfg.Security.MaxFailedAttempts,
		FailureWindow:     cfg.Security.FailureWindow,
		Logger:            logger,
	})
	credentials, err := service.NewCredentialsService(service.CredentialsServiceOptions{
		Principals: principals,
		Hasher:     hasher,
	})
	if err != nil {
		return nil, fmt.Errorf("build credentials service: %w", err)
	}
	auth := service.NewAuthService(service.AuthServiceOptions{
		Credentials: credentials,
		Lockout:     lockout,
		Audit:       audit,
		Sessions:    sessions,
		SessionTTL:  cfg.Security.SessionTTL,
		Logger:      logger,
	})

	return &ServiceContainer{
		Credentials: credentials,
		Lockout:     lockout,
		Audit:       audit,
		Auth:        auth,
		Sessions:    sessions,
	}, nil
}
