// Package files persists uploaded file metadata.
package files

import (
	"context"

	"github.com/melcdl/melcdl-backend/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	Get(ctx context.Context, id string) (*models.File, error)
}
