package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/melcdl/melcdl-backend/internal/common"
	"github.com/melcdl/melcdl-backend/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+files\s*\(id,\s*original_name,\s*storage_path,\s*content_type,\s*user_id\)`).
		WithArgs("f-1", "enc:lesion.jpg", "melcdl/files/f-1.jpg", "image/jpeg", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_on", "updated_on"}).AddRow(now, now))

	file := &models.File{
		ID: "f-1", OriginalName: "enc:lesion.jpg",
		StoragePath: "melcdl/files/f-1.jpg", ContentType: "image/jpeg", UserID: "u-1",
	}
	got, err := repo.Create(context.Background(), file)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.CreatedOn.IsZero() || got.UpdatedOn.IsZero() {
		t.Fatalf("timestamps not populated: %+v", got)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+files`).
		WillReturnError(fmt.Errorf("connection reset"))

	_, err := repo.Create(context.Background(), &models.File{ID: "f-1"})
	if err == nil || err.Error() != "db error: connection reset" {
		t.Fatalf("want wrapped db error, got %v", err)
	}
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)SELECT\s+.*FROM\s+files\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("f-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "original_name", "storage_path", "content_type", "user_id", "created_on", "updated_on"}).
			AddRow("f-1", "enc:lesion.jpg", "melcdl/files/f-1.jpg", "image/jpeg", "u-1", now, now))

	got, err := repo.Get(context.Background(), "f-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.StoragePath != "melcdl/files/f-1.jpg" {
		t.Fatalf("unexpected file: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+.*FROM\s+files\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}
