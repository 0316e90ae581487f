// Package server wires the application together: database, object storage,
// broker, services and the HTTP API, with graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/melcdl/melcdl-backend/internal/cryptox"
	"github.com/melcdl/melcdl-backend/internal/kafkax"
	"github.com/melcdl/melcdl-backend/internal/logging"
	"github.com/melcdl/melcdl-backend/internal/server/config"
	"github.com/melcdl/melcdl-backend/internal/server/httpapi"
	"github.com/melcdl/melcdl-backend/internal/server/objstore"
	"github.com/melcdl/melcdl-backend/internal/server/repositories/repomanager"
	"github.com/melcdl/melcdl-backend/internal/server/services"
)

// shutdownTimeout bounds how long draining the HTTP server and the consumer
// may take once a stop signal arrives.
const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger

	db       *sql.DB
	store    *objstore.Client
	consumer *kafkax.Consumer

	artifactService *services.ArtifactService
	taskService     *services.TaskService
	classifyService *services.ClassifyService
	userService     *services.UserService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	store, err := objstore.New(ctx, objstore.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	cryptoKey := cryptox.DeriveKey([]byte(cfg.CryptoSecret), []byte(cfg.CryptoSalt))

	newPublisher := func() services.Publisher {
		return kafkax.NewProducer(cfg.KafkaBrokers)
	}

	as := services.NewArtifactService(db, repos, store, services.ArtifactConfig{
		Bucket:    cfg.S3Bucket,
		ModelDir:  cfg.ModelDir,
		LocalDir:  cfg.LocalModelDir,
		BatchSize: cfg.ModelBatchSize,
	}, logger)

	ts := services.NewTaskService(db, repos, store, newPublisher, services.TaskConfig{
		Bucket:    cfg.S3Bucket,
		FileDir:   cfg.FileDir,
		Topic:     cfg.KafkaTopic,
		PublicURL: cfg.S3PublicURL,
	}, cryptoKey, logger)

	cs := services.NewClassifyService(db, repos, store, as, logger)

	us := services.NewUserService(db, repos, services.UserConfig{
		CryptoKey:       cryptoKey,
		SecretKey:       []byte(cfg.SecretKey),
		AccessValidity:  cfg.AccessTokenValidityDuration,
		RefreshValidity: cfg.RefreshTokenValidityDuration,
	}, logger)

	registry := kafkax.NewRegistry("")
	cs.Register(registry, cfg.KafkaTopic)

	consumer := kafkax.NewConsumer(kafkax.ConsumerConfig{
		Brokers:        cfg.KafkaBrokers,
		GroupID:        cfg.KafkaGroupID,
		CommitInterval: cfg.KafkaCommitInterval,
	}, registry, logger)

	return &App{
		config:          cfg,
		logger:          logger,
		db:              db,
		store:           store,
		consumer:        consumer,
		artifactService: as,
		taskService:     ts,
		classifyService: cs,
		userService:     us,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// syncArtifacts runs the startup reconciliation jobs. Both are repeatable,
// so a crash between publish and reconcile is repaired on the next start.
func (app *App) syncArtifacts(ctx context.Context) error {
	if err := app.artifactService.PublishDefaults(ctx); err != nil {
		return fmt.Errorf("publish default models: %w", err)
	}
	if err := app.artifactService.ReconcileExistence(ctx); err != nil {
		return fmt.Errorf("reconcile model artifacts: %w", err)
	}
	return nil
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	router := httpapi.NewRouter(app.taskService, app.userService,
		httpapi.Config{SecretKey: []byte(app.config.SecretKey)}, app.logger)

	server := &http.Server{Addr: app.config.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http server shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "http server started", "addr", app.config.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startConsumer(ctx context.Context, cancelFunc context.CancelFunc) {

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.consumer.Stop(stopCtx); err != nil {
			app.logger.Error(ctx, "consumer shutdown error", "error", err)
		}
	}()

	if err := app.consumer.Start(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.syncArtifacts(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startConsumer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
