package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/melcdl/melcdl-backend/internal/common"
	"github.com/melcdl/melcdl-backend/internal/dbx"
	"github.com/melcdl/melcdl-backend/internal/server/models"
)

const selectColumns = `id, file_id, user_id, predict_id, status, message, created_on, updated_on`

// PostgresRepository implements task storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	query := `
		INSERT INTO tasks (id, file_id, user_id, status, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_on, updated_on
	`
	err := r.db.QueryRowContext(ctx, query, task.ID, task.FileID, task.UserID, task.Status, task.Message).
		Scan(&task.CreatedOn, &task.UpdatedOn)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return task, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + selectColumns + ` FROM tasks WHERE id = $1 AND deleted_on IS NULL`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.Task, error) {
	query := `SELECT ` + selectColumns + ` FROM tasks WHERE id = $1 AND user_id = $2 AND deleted_on IS NULL`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id, userID))
}

// ListByUser returns the user's tasks, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*models.Task, error) {
	query := `SELECT ` + selectColumns + ` FROM tasks
		WHERE user_id = $1 AND deleted_on IS NULL
		ORDER BY created_on DESC OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Task
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE user_id = $1 AND deleted_on IS NULL`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// MarkSuccess only touches UPLOAD rows, so a redelivered message cannot
// overwrite a terminal state.
func (r *PostgresRepository) MarkSuccess(ctx context.Context, id, predictID string) error {
	query := `UPDATE tasks SET status = $2, predict_id = $3, updated_on = now()
		WHERE id = $1 AND status = $4`
	return r.transition(ctx, query, id, models.TaskStatusSuccess, predictID, models.TaskStatusUpload)
}

func (r *PostgresRepository) MarkError(ctx context.Context, id, message string) error {
	query := `UPDATE tasks SET status = $2, message = $3, updated_on = now()
		WHERE id = $1 AND status = $4`
	return r.transition(ctx, query, id, models.TaskStatusError, message, models.TaskStatusUpload)
}

func (r *PostgresRepository) transition(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		// already terminal, or the task is gone
		return common.ErrorConflict
	}
	return nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Task, error) {
	item := &models.Task{}
	err := row.Scan(&item.ID, &item.FileID, &item.UserID, &item.PredictID,
		&item.Status, &item.Message, &item.CreatedOn, &item.UpdatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

func scan(rows *sql.Rows) (*models.Task, error) {
	item := &models.Task{}
	err := rows.Scan(&item.ID, &item.FileID, &item.UserID, &item.PredictID,
		&item.Status, &item.Message, &item.CreatedOn, &item.UpdatedOn)
	if err != nil {
		return nil, err
	}
	return item, nil
}
