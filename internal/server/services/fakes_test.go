package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/melcdl/melcdl-backend/internal/common"
	"github.com/melcdl/melcdl-backend/internal/dbx"
	"github.com/melcdl/melcdl-backend/internal/logging"
	"github.com/melcdl/melcdl-backend/internal/server/models"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/files"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/mlmodels"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/predicts"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/tasks"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/users"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

// fakeRepos is an in-memory repomanager.RepositoryManager. The DBTX argument
// is ignored; every accessor returns the same backing maps.
type fakeRepos struct {
	files    *fakeFileRepo
	models   *fakeModelRepo
	tasks    *fakeTaskRepo
	predicts *fakePredictRepo
	users    *fakeUserRepo
}

func newFakeRepos() *fakeRepos {
	return &fakeRepos{
		files:    &fakeFileRepo{byID: map[string]*models.File{}},
		models:   &fakeModelRepo{},
		tasks:    &fakeTaskRepo{byID: map[string]*models.Task{}},
		predicts: &fakePredictRepo{byID: map[string]*models.Predict{}},
		users:    &fakeUserRepo{byID: map[string]*models.User{}},
	}
}

func (f *fakeRepos) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (f *fakeRepos) Files(db dbx.DBTX) files.Repository                  { return f.files }
func (f *fakeRepos) Models(db dbx.DBTX) mlmodels.Repository              { return f.models }
func (f *fakeRepos) Tasks(db dbx.DBTX) tasks.Repository                  { return f.tasks }
func (f *fakeRepos) Predicts(db dbx.DBTX) predicts.Repository            { return f.predicts }
func (f *fakeRepos) Users(db dbx.DBTX) users.Repository                  { return f.users }

type fakeFileRepo struct {
	byID      map[string]*models.File
	createErr error
}

func (r *fakeFileRepo) Create(ctx context.Context, file *models.File) (*models.File, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.byID[file.ID] = file
	return file, nil
}

func (r *fakeFileRepo) Get(ctx context.Context, id string) (*models.File, error) {
	file, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return file, nil
}

type fakeModelRepo struct {
	items     []*models.MLModel
	createErr error
	setErr    error
	setCalls  []setExistsCall
	listCalls int
}

type setExistsCall struct {
	id     string
	exists bool
}

func (r *fakeModelRepo) find(id string) *models.MLModel {
	for _, m := range r.items {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (r *fakeModelRepo) Create(ctx context.Context, model *models.MLModel) (*models.MLModel, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.items = append(r.items, model)
	return model, nil
}

func (r *fakeModelRepo) Get(ctx context.Context, id string) (*models.MLModel, error) {
	if m := r.find(id); m != nil {
		return m, nil
	}
	return nil, common.ErrorNotFound
}

func (r *fakeModelRepo) GetExisting(ctx context.Context, id string) (*models.MLModel, error) {
	if m := r.find(id); m != nil && m.IsExists {
		return m, nil
	}
	return nil, common.ErrorNotFound
}

func (r *fakeModelRepo) GetByStoragePath(ctx context.Context, storagePath string) (*models.MLModel, error) {
	for _, m := range r.items {
		if m.StoragePath == storagePath {
			return m, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeModelRepo) List(ctx context.Context, offset, limit int) ([]*models.MLModel, error) {
	r.listCalls++
	if offset >= len(r.items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(r.items) {
		end = len(r.items)
	}
	return r.items[offset:end], nil
}

func (r *fakeModelRepo) Count(ctx context.Context) (int, error) { return len(r.items), nil }

func (r *fakeModelRepo) SetExists(ctx context.Context, id string, exists bool) error {
	if r.setErr != nil {
		return r.setErr
	}
	m := r.find(id)
	if m == nil {
		return common.ErrorNotFound
	}
	m.IsExists = exists
	r.setCalls = append(r.setCalls, setExistsCall{id: id, exists: exists})
	return nil
}

type fakeTaskRepo struct {
	byID       map[string]*models.Task
	createErr  error
	successErr error
	errorErr   error
}

func (r *fakeTaskRepo) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.byID[task.ID] = task
	return task, nil
}

func (r *fakeTaskRepo) Get(ctx context.Context, id string) (*models.Task, error) {
	task, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return task, nil
}

func (r *fakeTaskRepo) GetByIDAndUser(ctx context.Context, id, userID string) (*models.Task, error) {
	task, ok := r.byID[id]
	if !ok || task.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return task, nil
}

func (r *fakeTaskRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*models.Task, error) {
	var result []*models.Task
	for _, t := range r.byID {
		if t.UserID == userID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (r *fakeTaskRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	n := 0
	for _, t := range r.byID {
		if t.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeTaskRepo) MarkSuccess(ctx context.Context, id, predictID string) error {
	if r.successErr != nil {
		return r.successErr
	}
	task, ok := r.byID[id]
	if !ok || task.Status != models.TaskStatusUpload {
		return common.ErrorConflict
	}
	task.Status = models.TaskStatusSuccess
	task.PredictID = &predictID
	return nil
}

func (r *fakeTaskRepo) MarkError(ctx context.Context, id, message string) error {
	if r.errorErr != nil {
		return r.errorErr
	}
	task, ok := r.byID[id]
	if !ok || task.Status != models.TaskStatusUpload {
		return common.ErrorConflict
	}
	task.Status = models.TaskStatusError
	task.Message = message
	return nil
}

type fakePredictRepo struct {
	byID      map[string]*models.Predict
	createErr error
}

func (r *fakePredictRepo) Create(ctx context.Context, predict *models.Predict) (*models.Predict, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.byID[predict.ID] = predict
	return predict, nil
}

func (r *fakePredictRepo) Get(ctx context.Context, id string) (*models.Predict, error) {
	predict, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return predict, nil
}

type fakeUserRepo struct {
	byID      map[string]*models.User
	createErr error
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.byID[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Get(ctx context.Context, id string) (*models.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByLoginHash(ctx context.Context, loginHash string) (*models.User, error) {
	for _, u := range r.byID {
		if u.LoginHash == loginHash {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	objects      map[string][]byte
	ensureErr    error
	putErr       error
	getErr       error
	headErr      error
	ensureCalls  int
	putKeys      []string
	missingIsErr bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func objKey(bucket, key string) string { return bucket + "/" + key }

func (s *fakeStore) EnsureBucket(ctx context.Context, bucket string) error {
	s.ensureCalls++
	return s.ensureErr
}

func (s *fakeStore) Put(ctx context.Context, bucket, key string, body []byte) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[objKey(bucket, key)] = body
	s.putKeys = append(s.putKeys, objKey(bucket, key))
	return nil
}

func (s *fakeStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	data, ok := s.objects[objKey(bucket, key)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return data, nil
}

func (s *fakeStore) Head(ctx context.Context, bucket, key string) error {
	if s.headErr != nil {
		return s.headErr
	}
	if _, ok := s.objects[objKey(bucket, key)]; !ok {
		if s.missingIsErr {
			return fmt.Errorf("transport failure")
		}
		return common.ErrorNotFound
	}
	return nil
}

// fakePublisher records sends.
type fakePublisher struct {
	startErr error
	sendErr  error
	started  bool
	stopped  bool
	topics   []string
	payloads [][]byte
}

func (p *fakePublisher) Start() error {
	if p.startErr != nil {
		return p.startErr
	}
	p.started = true
	return nil
}

func (p *fakePublisher) Stop() error {
	p.stopped = true
	return nil
}

func (p *fakePublisher) Send(ctx context.Context, topic string, value []byte) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, value)
	return nil
}
