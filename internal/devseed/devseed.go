// Package devseed provisions development accounts so a fresh environment is
// immediately usable. It is only invoked in dev mode and never in production.
package devseed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gestorhq/portal-api/internal/domain/model"
	apperrors "github.com/gestorhq/portal-api/internal/errors"
	"github.com/gestorhq/portal-api/internal/service"
)

func seedAccounts() []model.RegisterRequest {
	company := "Gestor Demo SA"
	taxID := "GDE010101AAA"
	return []model.RegisterRequest{
		{
			// Seeded first so it lands the administrator role.
			Name:     "Admin Local",
			Email:    "admin@portal.local",
			Password: "admin-dev-1",
			Address:  "Oficina Central 1",
			Phone:    "555-0001",
		},
		{
			Name:     "Cliente Demo",
			Email:    "cliente@portal.local",
			Password: "cliente-dev-1",
			Address:  "Av. Insurgentes 200",
			Phone:    "555-0002",
			Company:  &company,
			TaxID:    &taxID,
		},
	}
}

// Run seeds the development accounts. Seeding is idempotent: accounts that
// already exist are left untouched.
func Run(ctx context.Context, creds *service.CredentialsService, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for _, req := range seedAccounts() {
		_, err := creds.Register(ctx, req)
		switch {
		case err == nil:
			logger.InfoContext(ctx, "seeded dev account", "email", req.Email)
		case apperrors.IsConflict(err):
			logger.InfoContext(ctx, "dev account already exists", "email", req.Email)
		default:
			return fmt.Errorf("seed account %s: %w", req.Email, err)
		}
	}

	return nil
}
