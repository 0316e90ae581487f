package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/melcdl/melcdl-backend/internal/dbx"
	"github.com/melcdl/melcdl-backend/internal/server/migrations"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/files"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/mlmodels"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/predicts"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/tasks"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/users"
)

type PostgresRepositoryManager struct{}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Files(db dbx.DBTX) files.Repository {
	return files.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Models(db dbx.DBTX) mlmodels.Repository {
	return mlmodels.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Tasks(db dbx.DBTX) tasks.Repository {
	return tasks.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Predicts(db dbx.DBTX) predicts.Repository {
	return predicts.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}
