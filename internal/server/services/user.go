package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/melcdl/melcdl-backend/internal/common"
	"github.com/melcdl/melcdl-backend/internal/cryptox"
	"github.com/melcdl/melcdl-backend/internal/logging"
	"github.com/melcdl/melcdl-backend/internal/server/auth"
	"github.com/melcdl/melcdl-backend/internal/server/models"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/repomanager"
)

const minPasswordLength = 8

// UserConfig carries the account service's crypto material and token
// lifetimes.
type UserConfig struct {
	// CryptoKey encrypts the login at rest.
	CryptoKey []byte
	// SecretKey signs JWTs.
	SecretKey       []byte
	AccessValidity  time.Duration
	RefreshValidity time.Duration
}

// UserService manages accounts and token pairs. Logins are stored encrypted;
// lookups go through a deterministic hash of the login.
type UserService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	cfg   UserConfig
	log   logging.Logger
}

func NewUserService(db *sql.DB, repos repomanager.RepositoryManager, cfg UserConfig, log logging.Logger) *UserService {
	return &UserService{db: db, repos: repos, cfg: cfg, log: log.With("service", "users")}
}

// UserView is the public projection of an account.
type UserView struct {
	ID        string    `json:"id"`
	Login     string    `json:"login"`
	IsConfirm bool      `json:"is_confirm"`
	CreatedOn time.Time `json:"created_on"`
}

// TokenPair is the response of login and refresh.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Register creates an account.
func (s *UserService) Register(ctx context.Context, login, password, passwordRepeated string) (*UserView, error) {
	if login == "" {
		return nil, fmt.Errorf("%w: EMPTY_LOGIN", common.ErrorBadRequest)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: PASSWORD_TOO_SHORT", common.ErrorBadRequest)
	}
	if password != passwordRepeated {
		return nil, fmt.Errorf("%w: PASSWORDS_DO_NOT_MATCH", common.ErrorBadRequest)
	}

	repo := s.repos.Users(s.db)
	loginHash := cryptox.LookupHash(login)

	_, err := repo.GetByLoginHash(ctx, loginHash)
	if err == nil {
		return nil, fmt.Errorf("%w: USER_EXISTS", common.ErrorConflict)
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	salt, err := cryptox.NewSalt()
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	encryptedLogin, err := cryptox.EncryptString(login, s.cfg.CryptoKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt login: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Login:        encryptedLogin,
		LoginHash:    loginHash,
		PasswordHash: cryptox.HashPassword([]byte(password), salt),
		Salt:         salt,
		IsConfirm:    true,
	}
	if _, err := repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return &UserView{ID: user.ID, Login: login, IsConfirm: user.IsConfirm, CreatedOn: user.CreatedOn}, nil
}

// Login verifies credentials and issues a token pair. Unknown login and
// wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, login, password string) (*TokenPair, error) {
	user, err := s.repos.Users(s.db).GetByLoginHash(ctx, cryptox.LookupHash(login))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: INVALID_CREDENTIALS", common.ErrorUnauthorized)
		}
		return nil, err
	}

	if !cryptox.VerifyPassword([]byte(password), user.Salt, user.PasswordHash) {
		return nil, fmt.Errorf("%w: INVALID_CREDENTIALS", common.ErrorUnauthorized)
	}

	return s.issuePair(user.ID)
}

// Refresh exchanges a valid refresh token for a fresh pair.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := auth.GetUserIDFromToken(refreshToken, auth.TokenKindRefresh, s.cfg.SecretKey)
	if err != nil {
		return nil, err
	}

	if _, err := s.repos.Users(s.db).Get(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}

	return s.issuePair(userID)
}

func (s *UserService) issuePair(userID string) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, auth.TokenKindAccess, s.cfg.SecretKey, s.cfg.AccessValidity)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := auth.GenerateToken(userID, auth.TokenKindRefresh, s.cfg.SecretKey, s.cfg.RefreshValidity)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}
