package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/melcdl/melcdl-backend/internal/common"
	"github.com/melcdl/melcdl-backend/internal/filex"
	"github.com/melcdl/melcdl-backend/internal/logging"
	"github.com/melcdl/melcdl-backend/internal/server/models"
	"github.com/melcdl/melcdl-backend/internal/server/objstore"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/repomanager"
)

// ArtifactConfig locates model weight artifacts in object storage and in the
// local cache directory.
type ArtifactConfig struct {
	Bucket string
	// ModelDir is the key prefix for artifacts inside the bucket.
	ModelDir string
	// LocalDir is scanned for default artifacts and doubles as the
	// download cache.
	LocalDir  string
	BatchSize int
}

// ArtifactService reconciles model weight artifacts between object storage,
// the local cache directory and the relational store. Both reconciliation
// operations run at startup and are safe to re-run.
type ArtifactService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	store ObjectStore
	cfg   ArtifactConfig
	log   logging.Logger
}

func NewArtifactService(db *sql.DB, repos repomanager.RepositoryManager, store ObjectStore,
	cfg ArtifactConfig, log logging.Logger) *ArtifactService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &ArtifactService{db: db, repos: repos, store: store, cfg: cfg, log: log.With("service", "artifacts")}
}

// PublishDefaults uploads the weight files found in the local directory and
// get-or-creates their Model rows. An artifact already present in object
// storage is not re-uploaded.
func (s *ArtifactService) PublishDefaults(ctx context.Context) error {
	if err := s.store.EnsureBucket(ctx, s.cfg.Bucket); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	paths, err := filex.ListFilesWithExt(s.cfg.LocalDir, ".json")
	if err != nil {
		return fmt.Errorf("scan local models: %w", err)
	}

	for _, localPath := range paths {
		name := filepath.Base(localPath)
		key := path.Join(s.cfg.ModelDir, name)
		storagePath := objstore.JoinPath(s.cfg.Bucket, key)

		err := s.store.Head(ctx, s.cfg.Bucket, key)
		switch {
		case err == nil:
			// already published, just make sure the row exists
		case errors.Is(err, common.ErrorNotFound):
			data, err := os.ReadFile(localPath)
			if err != nil {
				return fmt.Errorf("read local model %s: %w", name, err)
			}
			if err := s.store.Put(ctx, s.cfg.Bucket, key, data); err != nil {
				return fmt.Errorf("upload model %s: %w", name, err)
			}
			s.log.Info(ctx, "model artifact uploaded", "name", name, "path", storagePath)
		default:
			return fmt.Errorf("head model %s: %w", name, err)
		}

		if err := s.ensureRow(ctx, name, storagePath); err != nil {
			return err
		}
	}
	return nil
}

func (s *ArtifactService) ensureRow(ctx context.Context, name, storagePath string) error {
	repo := s.repos.Models(s.db)

	_, err := repo.GetByStoragePath(ctx, storagePath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("lookup model row %s: %w", name, err)
	}

	model := &models.MLModel{
		ID:          uuid.NewString(),
		Name:        name,
		StoragePath: storagePath,
		IsExists:    true,
	}
	if _, err := repo.Create(ctx, model); err != nil {
		return fmt.Errorf("create model row %s: %w", name, err)
	}
	s.log.Info(ctx, "model registered", "id", model.ID, "name", name)
	return nil
}

// ReconcileExistence pages through all Model rows and refreshes is_exists
// from object storage. Each row commits independently, so a failure partway
// through keeps prior progress.
func (s *ArtifactService) ReconcileExistence(ctx context.Context) error {
	if err := s.store.EnsureBucket(ctx, s.cfg.Bucket); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	repo := s.repos.Models(s.db)
	total, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count models: %w", err)
	}
	s.log.Info(ctx, "model reconciliation started", "models", total)

	for offset := 0; offset < total; offset += s.cfg.BatchSize {
		page, err := repo.List(ctx, offset, s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("list models: %w", err)
		}
		if len(page) == 0 {
			return nil
		}

		for _, model := range page {
			if err := s.reconcileOne(ctx, model); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *ArtifactService) reconcileOne(ctx context.Context, model *models.MLModel) error {
	bucket, key, err := objstore.SplitPath(model.StoragePath)
	if err != nil {
		return fmt.Errorf("model %s: %w", model.ID, err)
	}

	exists := true
	switch err := s.store.Head(ctx, bucket, key); {
	case err == nil:
		if err := s.ensureCached(ctx, bucket, key); err != nil {
			return fmt.Errorf("cache model %s: %w", model.ID, err)
		}
	case errors.Is(err, common.ErrorNotFound):
		exists = false
	default:
		return fmt.Errorf("head model %s: %w", model.ID, err)
	}

	if model.IsExists != exists {
		s.log.Info(ctx, "model existence changed", "id", model.ID, "is_exists", exists)
	}
	if err := s.repos.Models(s.db).SetExists(ctx, model.ID, exists); err != nil {
		return fmt.Errorf("update model %s: %w", model.ID, err)
	}
	return nil
}

// ResolveModel returns the local path of an existing model's artifact,
// downloading it into the cache directory when missing.
func (s *ArtifactService) ResolveModel(ctx context.Context, modelID string) (string, error) {
	model, err := s.repos.Models(s.db).GetExisting(ctx, modelID)
	if err != nil {
		return "", err
	}

	bucket, key, err := objstore.SplitPath(model.StoragePath)
	if err != nil {
		return "", fmt.Errorf("model %s: %w", model.ID, err)
	}
	if err := s.ensureCached(ctx, bucket, key); err != nil {
		return "", fmt.Errorf("cache model %s: %w", model.ID, err)
	}
	return filepath.Join(s.cfg.LocalDir, path.Base(key)), nil
}

func (s *ArtifactService) ensureCached(ctx context.Context, bucket, key string) error {
	local := filepath.Join(s.cfg.LocalDir, path.Base(key))
	if _, err := os.Stat(local); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	data, err := s.store.Get(ctx, bucket, key)
	if err != nil {
		return err
	}
	if _, err := filex.EnsureDir(s.cfg.LocalDir); err != nil {
		return err
	}
	return filex.WriteFileAtomic(local, data)
}
