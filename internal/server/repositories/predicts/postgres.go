package predicts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/melcdl/melcdl-backend/internal/common"
	"github.com/melcdl/melcdl-backend/internal/dbx"
	"github.com/melcdl/melcdl-backend/internal/server/models"
)

// PostgresRepository implements predict storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, predict *models.Predict) (*models.Predict, error) {
	query := `
		INSERT INTO predicts (id, file_id, model_id, result, probability)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		predict.ID, predict.FileID, predict.ModelID, int(predict.Result), predict.Probability)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return predict, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Predict, error) {
	query := `SELECT id, file_id, model_id, result, probability FROM predicts WHERE id = $1`
	item := &models.Predict{}
	var result int
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&item.ID, &item.FileID, &item.ModelID, &result, &item.Probability)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	item.Result = models.Label(result)
	return item, nil
}
