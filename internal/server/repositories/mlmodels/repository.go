// Package mlmodels persists classification model rows. Mutations happen
// only through the artifact synchronizer.
package mlmodels

import (
	"context"

	"github.com/melcdl/melcdl-backend/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, model *models.MLModel) (*models.MLModel, error)
	Get(ctx context.Context, id string) (*models.MLModel, error)
	// GetExisting returns the model only when its artifact was present in
	// object storage at the synchronizer's last run.
	GetExisting(ctx context.Context, id string) (*models.MLModel, error)
	GetByStoragePath(ctx context.Context, storagePath string) (*models.MLModel, error)
	List(ctx context.Context, offset, limit int) ([]*models.MLModel, error)
	Count(ctx context.Context) (int, error)
	SetExists(ctx context.Context, id string, exists bool) error
}
