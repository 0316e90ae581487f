package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/melcdl/melcdl-backend/internal/common"
	"github.com/melcdl/melcdl-backend/internal/dbx"
	"github.com/melcdl/melcdl-backend/internal/kafkax"
	"github.com/melcdl/melcdl-backend/internal/logging"
	"github.com/melcdl/melcdl-backend/internal/server/classifier"
	"github.com/melcdl/melcdl-backend/internal/server/models"
	"github.com/melcdl/melcdl-backend/internal/server/objstore"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/repomanager"
)

// ModelResolver materializes a model artifact locally. Implemented by
// ArtifactService.
type ModelResolver interface {
	ResolveModel(ctx context.Context, modelID string) (string, error)
}

// classifyFunc scores an image against the weights artifact at weightsPath.
type classifyFunc func(weightsPath string, image io.Reader) (models.Label, float64, error)

// ClassifyService is the consumer-side half of the task pipeline. Its
// handler converts every failure into a committed ERROR task state and never
// propagates, so the broker always sees the record handled.
type ClassifyService struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	store     ObjectStore
	artifacts ModelResolver
	classify  classifyFunc
	log       logging.Logger
}

func NewClassifyService(db *sql.DB, repos repomanager.RepositoryManager, store ObjectStore,
	artifacts ModelResolver, log logging.Logger) *ClassifyService {
	return &ClassifyService{
		db: db, repos: repos, store: store, artifacts: artifacts,
		classify: loadAndClassify,
		log:      log.With("service", "classify"),
	}
}

func loadAndClassify(weightsPath string, image io.Reader) (models.Label, float64, error) {
	cls, err := classifier.Load(weightsPath)
	if err != nil {
		return 0, 0, err
	}
	return cls.Classify(image)
}

// Register binds the handler to the classification topic.
func (s *ClassifyService) Register(registry *kafkax.Registry, topic string) {
	registry.Register(topic, s.Handle)
}

// Handle processes one classification record. Delivery is at least once, so
// the handler is idempotent: a task that is missing or no longer in UPLOAD
// is treated as already handled.
func (s *ClassifyService) Handle(ctx context.Context, msg kafka.Message) error {
	var body classifyMessage
	if err := json.Unmarshal(msg.Value, &body); err != nil {
		s.log.Error(ctx, "malformed classify message", "topic", msg.Topic, "error", err)
		return nil
	}

	task, err := s.repos.Tasks(s.db).Get(ctx, body.TaskID)
	if err != nil {
		// nothing to update; stale message or store outage, either way
		// only log it
		s.log.Warn(ctx, "classify task not loadable", "task_id", body.TaskID, "error", err)
		return nil
	}
	if task.Status != models.TaskStatusUpload {
		s.log.Info(ctx, "task already handled", "task_id", task.ID, "status", task.Status)
		return nil
	}

	if err := s.process(ctx, task, body.ModelID); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			// another delivery won the terminal transition
			s.log.Info(ctx, "task finished concurrently", "task_id", task.ID)
			return nil
		}
		s.fail(ctx, task.ID, err)
	}
	return nil
}

func (s *ClassifyService) process(ctx context.Context, task *models.Task, modelID string) error {
	model, err := s.repos.Models(s.db).GetExisting(ctx, modelID)
	if err != nil {
		return fmt.Errorf("model %s: %w", modelID, err)
	}
	file, err := s.repos.Files(s.db).Get(ctx, task.FileID)
	if err != nil {
		return fmt.Errorf("file %s: %w", task.FileID, err)
	}

	weightsPath, err := s.artifacts.ResolveModel(ctx, model.ID)
	if err != nil {
		return fmt.Errorf("resolve model artifact: %w", err)
	}

	bucket, key, err := objstore.SplitPath(file.StoragePath)
	if err != nil {
		return err
	}
	data, err := s.store.Get(ctx, bucket, key)
	if err != nil {
		return fmt.Errorf("fetch image: %w", err)
	}

	label, probability, err := s.classify(weightsPath, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	predict := &models.Predict{
		ID:          uuid.NewString(),
		FileID:      file.ID,
		ModelID:     model.ID,
		Result:      label,
		Probability: probability,
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := s.repos.Predicts(tx).Create(ctx, predict)
		return err
	})
	if err != nil {
		return fmt.Errorf("persist predict: %w", err)
	}

	if err := s.repos.Tasks(s.db).MarkSuccess(ctx, task.ID, predict.ID); err != nil {
		return err
	}

	s.log.Info(ctx, "task classified", "task_id", task.ID,
		"result", label.String(), "probability", probability)
	return nil
}

// fail commits the ERROR state in a fresh transaction. Losing the conflict
// here means another delivery already finished the task.
func (s *ClassifyService) fail(ctx context.Context, taskID string, cause error) {
	s.log.Error(ctx, "classification failed", "task_id", taskID, "error", cause)

	if err := s.repos.Tasks(s.db).MarkError(ctx, taskID, cause.Error()); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			s.log.Info(ctx, "task finished concurrently", "task_id", taskID)
			return
		}
		s.log.Error(ctx, "could not mark task as failed", "task_id", taskID, "error", err)
	}
}
