package users

import (
	"context"
	"database/sql"
	"errors"
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

func userRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(
		[]string{"id", "login", "login_hash", "password_hash", "salt", "is_confirm", "created_on", "updated_on"}).
		AddRow("u-1", "enc:doctor@clinic.io", "abcd1234", []byte("hash"), []byte("salt"), true, now, now)
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+users\s*\(id,\s*login,\s*login_hash,\s*password_hash,\s*salt,\s*is_confirm\)`).
		WithArgs("u-1", "enc:doctor@clinic.io", "abcd1234", []byte("hash"), []byte("salt"), true).
		WillReturnRows(sqlmock.NewRows([]string{"created_on", "updated_on"}).AddRow(now, now))

	user := &models.User{
		ID: "u-1", Login: "enc:doctor@clinic.io", LoginHash: "abcd1234",
		PasswordHash: []byte("hash"), Salt: []byte("salt"), IsConfirm: true,
	}
	got, err := repo.Create(context.Background(), user)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.CreatedOn.IsZero() {
		t.Fatalf("created_on not populated: %+v", got)
	}
}

func TestGetByLoginHash_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+.*FROM\s+users\s+WHERE\s+login_hash\s*=\s*\$1`).
		WithArgs("abcd1234").
		WillReturnRows(userRows())

	got, err := repo.GetByLoginHash(context.Background(), "abcd1234")
	if err != nil {
		t.Fatalf("GetByLoginHash error: %v", err)
	}
	if got.ID != "u-1" || !got.IsConfirm {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetByLoginHash_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+.*FROM\s+users\s+WHERE\s+login_hash\s*=\s*\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByLoginHash(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}
