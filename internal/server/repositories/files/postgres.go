package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/melcdl/melcdl-backend/internal/common"
	"github.com/melcdl/melcdl-backend/internal/dbx"
	"github.com/melcdl/melcdl-backend/internal/server/models"
)

// PostgresRepository implements file storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the file row. Timestamps are assigned by the database and
// written back into the returned model.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	query := `
		INSERT INTO files (id, original_name, storage_path, content_type, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_on, updated_on
	`
	err := r.db.QueryRowContext(ctx, query,
		file.ID, file.OriginalName, file.StoragePath, file.ContentType, file.UserID).
		Scan(&file.CreatedOn, &file.UpdatedOn)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// Get returns the file by id, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.File, error) {
	query := `
		SELECT id, original_name, storage_path, content_type, user_id, created_on, updated_on
		FROM files WHERE id = $1 AND deleted_on IS NULL
	`
	item := &models.File{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&item.ID, &item.OriginalName, &item.StoragePath, &item.ContentType, &item.UserID, &item.CreatedOn, &item.UpdatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}
