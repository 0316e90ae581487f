package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/melcdl/melcdl-backend/internal/common"
	"github.com/melcdl/melcdl-backend/internal/cryptox"
	"github.com/melcdl/melcdl-backend/internal/dbx"
	"github.com/melcdl/melcdl-backend/internal/logging"
	"github.com/melcdl/melcdl-backend/internal/server/models"
	"github.com/melcdl/melcdl-backend/internal/server/objstore"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/repomanager"
)

// DefaultBatchSize is the page size for task listings.
const DefaultBatchSize = 100

// TaskConfig carries the upload side's storage and broker coordinates.
type TaskConfig struct {
	Bucket string
	// FileDir is the key prefix for uploaded images inside the bucket.
	FileDir string
	// Topic is the classification topic start messages are published to.
	Topic string
	// PublicURL prefixes storage paths in task projections.
	PublicURL string
}

// TaskService implements the upload side of the task pipeline and the task
// read model.
type TaskService struct {
	db           *sql.DB
	repos        repomanager.RepositoryManager
	store        ObjectStore
	newPublisher PublisherFactory
	cfg          TaskConfig
	cryptoKey    []byte
	log          logging.Logger
}

func NewTaskService(db *sql.DB, repos repomanager.RepositoryManager, store ObjectStore,
	newPublisher PublisherFactory, cfg TaskConfig, cryptoKey []byte, log logging.Logger) *TaskService {
	return &TaskService{
		db: db, repos: repos, store: store, newPublisher: newPublisher,
		cfg: cfg, cryptoKey: cryptoKey, log: log.With("service", "tasks"),
	}
}

// TaskItem is a row of the task listing.
type TaskItem struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// TaskPage is a page of the caller's tasks.
type TaskPage struct {
	Items       []TaskItem `json:"items"`
	TotalCount  int        `json:"total_count"`
	TotalPages  int        `json:"total_pages"`
	CurrentPage int        `json:"current_page"`
	BatchSize   int        `json:"batch_size"`
}

// FileView is the file part of a task projection. Name is the decrypted
// original filename.
type FileView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// PredictView is the predict part of a task projection.
type PredictView struct {
	ID          string  `json:"id"`
	Result      string  `json:"result"`
	Probability float64 `json:"probability"`
}

// TaskDetail is the single-task projection.
type TaskDetail struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	Message   string       `json:"message"`
	CreatedOn time.Time    `json:"created_on"`
	UpdatedOn time.Time    `json:"updated_on"`
	File      *FileView    `json:"file,omitempty"`
	Predict   *PredictView `json:"predict,omitempty"`
}

// Upload persists the image and its File+Task rows, then publishes the
// pipeline-start message. The message goes out only after the transaction
// committed, so a crash before commit never produces a dangling record.
func (s *TaskService) Upload(ctx context.Context, userID, contentType, fileName string,
	data []byte, modelID string) (*TaskItem, error) {

	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: INCORRECT_FILE_TYPE", common.ErrorBadRequest)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: EMPTY_FILE", common.ErrorBadRequest)
	}
	if _, err := s.repos.Models(s.db).Get(ctx, modelID); err != nil {
		return nil, err
	}

	if err := s.store.EnsureBucket(ctx, s.cfg.Bucket); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	fileID := uuid.NewString()
	key := path.Join(s.cfg.FileDir, fileID+"."+fileExt(fileName))
	if err := s.store.Put(ctx, s.cfg.Bucket, key, data); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	encryptedName, err := cryptox.EncryptString(fileName, s.cryptoKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt filename: %w", err)
	}

	task := &models.Task{
		ID:     uuid.NewString(),
		FileID: fileID,
		UserID: userID,
		Status: models.TaskStatusUpload,
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		file := &models.File{
			ID:           fileID,
			OriginalName: encryptedName,
			StoragePath:  objstore.JoinPath(s.cfg.Bucket, key),
			ContentType:  contentType,
			UserID:       userID,
		}
		if _, err := s.repos.Files(tx).Create(ctx, file); err != nil {
			return err
		}
		_, err := s.repos.Tasks(tx).Create(ctx, task)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.publishStart(ctx, task.ID, modelID); err != nil {
		// the task row survives as UPLOAD; a maintenance sweep may retry
		return nil, fmt.Errorf("publish start message: %w", err)
	}

	s.log.Info(ctx, "task created", "task_id", task.ID, "file_id", fileID, "model_id", modelID)
	return &TaskItem{
		ID:        task.ID,
		Status:    string(task.Status),
		CreatedOn: task.CreatedOn,
		UpdatedOn: task.UpdatedOn,
	}, nil
}

func (s *TaskService) publishStart(ctx context.Context, taskID, modelID string) error {
	body, err := json.Marshal(classifyMessage{TaskID: taskID, ModelID: modelID})
	if err != nil {
		return err
	}

	pub := s.newPublisher()
	if err := pub.Start(); err != nil {
		return err
	}
	defer func() {
		if err := pub.Stop(); err != nil {
			s.log.Warn(ctx, "producer close failed", "error", err)
		}
	}()

	return pub.Send(ctx, s.cfg.Topic, body)
}

// List returns one page of the caller's tasks, newest first. currentPage is
// 1-based.
func (s *TaskService) List(ctx context.Context, userID string, currentPage, batchSize int) (*TaskPage, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if currentPage <= 0 {
		currentPage = 1
	}

	repo := s.repos.Tasks(s.db)
	items, err := repo.ListByUser(ctx, userID, (currentPage-1)*batchSize, batchSize)
	if err != nil {
		return nil, err
	}
	total, err := repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	page := &TaskPage{
		Items:       make([]TaskItem, 0, len(items)),
		TotalCount:  total,
		TotalPages:  (total + batchSize - 1) / batchSize,
		CurrentPage: currentPage,
		BatchSize:   batchSize,
	}
	for _, t := range items {
		page.Items = append(page.Items, TaskItem{
			ID:        t.ID,
			Status:    string(t.Status),
			CreatedOn: t.CreatedOn,
			UpdatedOn: t.UpdatedOn,
		})
	}
	return page, nil
}

// Get returns the full projection of one of the caller's tasks.
func (s *TaskService) Get(ctx context.Context, userID, taskID string) (*TaskDetail, error) {
	task, err := s.repos.Tasks(s.db).GetByIDAndUser(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	detail := &TaskDetail{
		ID:        task.ID,
		Status:    string(task.Status),
		Message:   task.Message,
		CreatedOn: task.CreatedOn,
		UpdatedOn: task.UpdatedOn,
	}

	file, err := s.repos.Files(s.db).Get(ctx, task.FileID)
	switch {
	case err == nil:
		name, err := cryptox.DecryptString(file.OriginalName, s.cryptoKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt filename: %w", err)
		}
		detail.File = &FileView{
			ID:   file.ID,
			Name: name,
			URL:  strings.TrimSuffix(s.cfg.PublicURL, "/") + "/" + file.StoragePath,
		}
	case errors.Is(err, common.ErrorNotFound):
		// soft-deleted file, the task projection stays useful without it
	default:
		return nil, err
	}

	if task.PredictID != nil {
		predict, err := s.repos.Predicts(s.db).Get(ctx, *task.PredictID)
		if err != nil {
			return nil, err
		}
		detail.Predict = &PredictView{
			ID:          predict.ID,
			Result:      predict.Result.String(),
			Probability: predict.Probability,
		}
	}
	return detail, nil
}

// Models returns the id+name list of registered models.
func (s *TaskService) Models(ctx context.Context) ([]ModelItem, error) {
	repo := s.repos.Models(s.db)

	var result []ModelItem
	for offset := 0; ; offset += DefaultBatchSize {
		page, err := repo.List(ctx, offset, DefaultBatchSize)
		if err != nil {
			return nil, err
		}
		for _, m := range page {
			result = append(result, ModelItem{ID: m.ID, Name: m.Name, IsExists: m.IsExists})
		}
		if len(page) < DefaultBatchSize {
			return result, nil
		}
	}
}

// ModelItem is a row of the model listing.
type ModelItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsExists bool   `json:"is_exists"`
}

// fileExt extracts a lowercased extension from the uploaded filename,
// falling back to "bin".
func fileExt(fileName string) string {
	ext := strings.TrimPrefix(path.Ext(fileName), ".")
	if ext == "" {
		return "bin"
	}
	return strings.ToLower(ext)
}
