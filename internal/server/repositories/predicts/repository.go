// Package predicts persists classification results. Rows are immutable
// once created.
package predicts

import (
	"context"

	"github.com/melcdl/melcdl-backend/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, predict *models.Predict) (*models.Predict, error)
	Get(ctx context.Context, id string) (*models.Predict, error)
}
