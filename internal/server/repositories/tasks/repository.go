// Package tasks persists the task state machine. Status only advances
// UPLOAD -> {SUCCESS | ERROR}; the Mark* methods enforce that at the SQL
// level by updating UPLOAD rows only.
package tasks

import (
	"context"

	"github.com/melcdl/melcdl-backend/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	Get(ctx context.Context, id string) (*models.Task, error)
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.Task, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*models.Task, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	// MarkSuccess moves an UPLOAD task to SUCCESS and links the predict.
	MarkSuccess(ctx context.Context, id, predictID string) error
	// MarkError moves an UPLOAD task to ERROR with a human-readable message.
	MarkError(ctx context.Context, id, message string) error
}
