package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"critique-backend/internal/chat"
	"critique-backend/internal/conversation"
	"critique-backend/internal/index"
	"critique-backend/internal/query"
	"critique-backend/internal/queue"
	"critique-backend/internal/records"
	"critique-backend/internal/services/health"
	"critique-backend/internal/shared/config"
	"critique-backend/internal/shared/server"
	"critique-backend/internal/shared/server/middleware"
	"critique-backend/internal/shared/storage/db"
	"critique-backend/internal/shared/storage/object"
	localstore "critique-backend/internal/shared/storage/object/local"
	miniostore "critique-backend/internal/shared/storage/object/minio"
	s3store "critique-backend/internal/shared/storage/object/s3"
	"critique-backend/internal/shared/telemetry"
	"critique-backend/internal/submissions"
	"critique-backend/internal/workerproc"
)

// App holds shared dependencies and both routers.
type App struct {
	Config      config.Config
	DB          *sql.DB
	Index       index.Index
	Store       object.ObjectStore
	Queue       queue.Client
	States      conversation.StateStore
	Engine      *conversation.Engine
	Pipeline    *submissions.Pipeline
	Dispatcher  *chat.Dispatcher
	Query       *query.Service
	Health      *health.Service
	Auditor     *workerproc.Auditor
	QueryRouter *gin.Engine
	BotRouter   *gin.Engine

	closers []io.Closer
}

// Build prepares dependencies and routers from cfg.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	app := &App{Config: cfg, Health: health.NewService()}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		if cfg.AutoMigrate {
			if err := db.RunMigrations(ctx, sqlDB); err != nil {
				_ = app.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		app.Index = index.NewPGIndex(sqlDB, records.Collections()...)
		app.Health.Register("database", sqlDB.PingContext)
	} else {
		app.Index = index.NewMemoryIndex(records.Collections()...)
	}

	if app.Store, err = buildStore(ctx, cfg); err != nil {
		_ = app.Close()
		return nil, err
	}
	if app.States, err = app.buildStateStore(cfg); err != nil {
		_ = app.Close()
		return nil, err
	}
	if app.Queue, err = app.buildQueue(ctx, cfg); err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Engine = conversation.NewEngine(app.States, conversation.Options{MaxAttempts: cfg.MaxStepAttempts})
	app.Pipeline = submissions.New(app.Store, app.Index, app.Queue, submissions.Options{
		ExcerptLength: cfg.ExcerptLength,
		EventPolicy:   submissions.EventPolicy(cfg.EventRegistrationPolicy),
	})
	app.Dispatcher = chat.NewDispatcher(app.Engine, app.Pipeline)
	app.Query = query.NewService(app.Index)
	app.Auditor = workerproc.NewAuditor(app.Index, app.Store)

	limiter := middleware.NewRateLimiter(nil)
	app.QueryRouter = server.NewQueryRouter(server.RouterDeps{
		Config:       cfg,
		Health:       app.Health,
		QueryHandler: query.NewHandler(app.Query),
		Limiter:      limiter,
	})
	app.BotRouter = server.NewBotRouter(server.RouterDeps{
		Config:      cfg,
		Health:      app.Health,
		ChatHandler: chat.NewHandler(app.Dispatcher),
		Limiter:     limiter,
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"index":        indexKind(app.DB),
		"object_store": cfg.ObjectStoreType,
		"state_store":  cfg.StateStoreType,
		"queue":        cfg.QueueType,
	})
	return app, nil
}

// Close releases connections opened by Build.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.DB != nil && !db.IsLambdaRuntime() {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
		a.DB = nil
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_missing", map[string]any{"fallback": "memory_index"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_connect_failed", map[string]any{
				"fallback": "memory_index",
				"error":    err.Error(),
			})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		if strings.TrimSpace(cfg.MinioEndpoint) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=minio requires MINIO_ENDPOINT")
		}
		return miniostore.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func (a *App) buildStateStore(cfg config.Config) (conversation.StateStore, error) {
	if cfg.StateStoreType != "redis" {
		return conversation.NewMemoryStateStore(cfg.StateTTL), nil
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, fmt.Errorf("STATE_STORE=redis requires REDIS_ADDR")
	}
	store, err := conversation.NewRedisStateStore(cfg.RedisAddr, cfg.RedisPassword, cfg.StateTTL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store)
	a.Health.Register("state_store", store.Ping)
	return store, nil
}

func (a *App) buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	switch cfg.QueueType {
	case "sqs":
		if strings.TrimSpace(cfg.SQSQueueURL) == "" {
			return nil, fmt.Errorf("QUEUE=sqs requires SQS_QUEUE_URL")
		}
		return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("QUEUE=redis requires REDIS_ADDR")
		}
		client, err := queue.NewRedisStreamClient(cfg.RedisAddr, cfg.RedisPassword, cfg.QueueStream)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		return client, nil
	case "rabbitmq":
		if strings.TrimSpace(cfg.RabbitMQURL) == "" {
			return nil, fmt.Errorf("QUEUE=rabbitmq requires RABBITMQ_URL")
		}
		client, err := queue.NewRabbitMQClient(cfg.RabbitMQURL, cfg.QueueStream)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		return client, nil
	default:
		return queue.NoopClient{}, nil
	}
}

func indexKind(sqlDB *sql.DB) string {
	if sqlDB != nil {
		return "postgres"
	}
	return "memory"
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
