package mlmodels

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/melcdl/melcdl-backend/internal/common"
	"github.com/melcdl/melcdl-backend/internal/dbx"
	"github.com/melcdl/melcdl-backend/internal/server/models"
)

const selectColumns = `id, name, storage_path, is_exists, created_on, updated_on`

// PostgresRepository implements model storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, model *models.MLModel) (*models.MLModel, error) {
	query := `
		INSERT INTO models (id, name, storage_path, is_exists)
		VALUES ($1, $2, $3, $4)
		RETURNING created_on, updated_on
	`
	err := r.db.QueryRowContext(ctx, query, model.ID, model.Name, model.StoragePath, model.IsExists).
		Scan(&model.CreatedOn, &model.UpdatedOn)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return model, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.MLModel, error) {
	query := `SELECT ` + selectColumns + ` FROM models WHERE id = $1 AND deleted_on IS NULL`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetExisting(ctx context.Context, id string) (*models.MLModel, error) {
	query := `SELECT ` + selectColumns + ` FROM models WHERE id = $1 AND is_exists = TRUE AND deleted_on IS NULL`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByStoragePath(ctx context.Context, storagePath string) (*models.MLModel, error) {
	query := `SELECT ` + selectColumns + ` FROM models WHERE storage_path = $1 AND deleted_on IS NULL`
	return r.scanOne(r.db.QueryRowContext(ctx, query, storagePath))
}

// List pages through models in insertion order.
func (r *PostgresRepository) List(ctx context.Context, offset, limit int) ([]*models.MLModel, error) {
	query := `SELECT ` + selectColumns + ` FROM models WHERE deleted_on IS NULL ORDER BY created_on OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.MLModel
	for rows.Next() {
		item := &models.MLModel{}
		if err := rows.Scan(&item.ID, &item.Name, &item.StoragePath, &item.IsExists, &item.CreatedOn, &item.UpdatedOn); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM models WHERE deleted_on IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) SetExists(ctx context.Context, id string, exists bool) error {
	query := `UPDATE models SET is_exists = $2, updated_on = now() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, exists)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.MLModel, error) {
	item := &models.MLModel{}
	err := row.Scan(&item.ID, &item.Name, &item.StoragePath, &item.IsExists, &item.CreatedOn, &item.UpdatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}
