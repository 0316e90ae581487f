package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/melcdl/melcdl-backend/internal/common"
	"github.com/melcdl/melcdl-backend/internal/dbx"
	"github.com/melcdl/melcdl-backend/internal/server/models"
)

const selectColumns = `id, login, login_hash, password_hash, salt, is_confirm, created_on, updated_on`

// PostgresRepository implements user storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (id, login, login_hash, password_hash, salt, is_confirm)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_on, updated_on
	`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Login, user.LoginHash, user.PasswordHash, user.Salt, user.IsConfirm).
		Scan(&user.CreatedOn, &user.UpdatedOn)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + selectColumns + ` FROM users WHERE id = $1 AND deleted_on IS NULL`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByLoginHash(ctx context.Context, loginHash string) (*models.User, error) {
	query := `SELECT ` + selectColumns + ` FROM users WHERE login_hash = $1 AND deleted_on IS NULL`
	return r.scanOne(r.db.QueryRowContext(ctx, query, loginHash))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	item := &models.User{}
	err := row.Scan(&item.ID, &item.Login, &item.LoginHash, &item.PasswordHash,
		&item.Salt, &item.IsConfirm, &item.CreatedOn, &item.UpdatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}
