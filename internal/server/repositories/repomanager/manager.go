// Package repomanager wires repositories to a shared database handle and
// owns schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/melcdl/melcdl-backend/internal/dbx"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/files"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/mlmodels"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/predicts"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/tasks"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/users"
)

// RepositoryManager builds repositories bound to the given DBTX, so the
// same accessors work on a plain connection and inside a transaction.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Files(db dbx.DBTX) files.Repository
	Models(db dbx.DBTX) mlmodels.Repository
	Tasks(db dbx.DBTX) tasks.Repository
	Predicts(db dbx.DBTX) predicts.Repository
	Users(db dbx.DBTX) users.Repository
}
