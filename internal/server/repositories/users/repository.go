// Package users persists accounts.
package users

import (
	"context"

	"github.com/melcdl/melcdl-backend/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	// GetByLoginHash looks an account up by the deterministic login hash.
	GetByLoginHash(ctx context.Context, loginHash string) (*models.User, error)
}
