package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/ai"
	"github.com/xxxsen/ragchat/internal/config"
	"github.com/xxxsen/ragchat/internal/embedcache"
	"github.com/xxxsen/ragchat/internal/handler"
	"github.com/xxxsen/ragchat/internal/job"
	"github.com/xxxsen/ragchat/internal/middleware"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
	"github.com/xxxsen/ragchat/internal/repo"
	"github.com/xxxsen/ragchat/internal/schedule"
	"github.com/xxxsen/ragchat/internal/service"
	"github.com/xxxsen/ragchat/internal/source"
)

const (
	appName         = "ragchat"
	shutdownTimeout = 10 * time.Second
)

type app struct {
	cfg       *config.Config
	db        *sql.DB
	cacheRepo embedcache.CacheRepo
	pipeline  *service.Pipeline
	doc       *model.Document
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          appName,
		Short:        "question answering over a single knowledge document",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (json, yaml or toml)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "index the document and serve the chat api",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return runServer(a)
		},
	}

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "build the index once and exit, warming the embedding cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer a.close()
			start := time.Now()
			if err := a.pipeline.Initialize(cmd.Context(), a.doc); err != nil {
				return fmt.Errorf("build index: %w", err)
			}
			logutil.GetLogger(cmd.Context()).Info("index built",
				zap.Int("chunks", a.pipeline.Len()),
				zap.Duration("cost", time.Since(start)),
			)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, indexCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger := logutil.GetLogger(context.Background())
		switch {
		case appErr.IsConfiguration(err):
			logger.Fatal("invalid configuration", zap.Error(err))
		case appErr.IsEmptyIndex(err):
			logger.Fatal("document produced no chunks", zap.Error(err))
		default:
			logger.Fatal("startup error", zap.Error(err))
		}
	}
}

func setup(ctx context.Context, configPath string) (*app, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(ctx).Info("config loaded", zap.String("config", configPath))

	a := &app{cfg: cfg}
	embedder, err := a.buildEmbedder()
	if err != nil {
		a.close()
		return nil, err
	}
	genProvider, err := ai.NewProvider(cfg.Generator.Provider, cfg.Generator.Data)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init generator provider: %w", err)
	}
	generator := ai.NewGenerator(genProvider, cfg.Generator.Model, time.Duration(cfg.Generator.Timeout)*time.Second)

	a.pipeline = service.NewPipeline(service.PipelineConfig{
		ChunkSize: cfg.Chunker.ChunkSize,
		Overlap:   cfg.Chunker.Overlap(),
		TopK:      cfg.Retrieval.TopK,
		MinScore:  cfg.Retrieval.MinScore,
		Subject:   cfg.Prompt.Subject,
		Fallback:  cfg.Prompt.Fallback,
	}, embedder, generator)

	a.doc, err = source.Load(ctx, cfg.Source)
	if err != nil {
		a.close()
		return nil, err
	}
	logutil.GetLogger(ctx).Info("pipeline configured",
		zap.String("embedder", embedder.ModelName()),
		zap.String("generator", generator.ModelName()),
		zap.Int("chunk_size", cfg.Chunker.ChunkSize),
		zap.Int("chunk_overlap", cfg.Chunker.Overlap()),
		zap.Int("top_k", cfg.Retrieval.TopK),
	)
	return a, nil
}

// buildEmbedder stacks the caches on top of the provider: lru, then the
// persistent cache, then the batched provider calls.
func (a *app) buildEmbedder() (ai.IEmbedder, error) {
	cfg := a.cfg
	provider, err := ai.NewEmbedProvider(cfg.Embedder.Provider, cfg.Embedder.Data)
	if err != nil {
		return nil, fmt.Errorf("init embedder provider: %w", err)
	}
	embedder := ai.NewEmbedder(provider, cfg.Embedder.Model, cfg.Embedder.BatchSize, time.Duration(cfg.Embedder.Timeout)*time.Second)
	if cfg.EmbeddingCache.Enabled() {
		driver := cfg.EmbeddingCache.Type
		db, err := repo.Open(driver, cfg.EmbeddingCache.DSN)
		if err != nil {
			return nil, fmt.Errorf("open embedding cache db: %w", err)
		}
		a.db = db
		if err := repo.ApplyMigrations(db, driver); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		if driver == repo.DriverPostgres {
			a.cacheRepo = repo.NewEmbeddingCacheRepo(db)
		} else {
			a.cacheRepo = repo.NewSqliteEmbeddingCacheRepo(db)
		}
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, a.cacheRepo)
	}
	ttl := time.Duration(cfg.Embedder.LruTTLSeconds) * time.Second
	return embedcache.WrapLruCacheToEmbedder(embedder, cfg.Embedder.LruSize, ttl), nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func runServer(a *app) error {
	cfg := a.cfg
	logger := logutil.GetLogger(context.Background())
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)

	if cfg.LogConfig.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(),
		middleware.CORS(cfg.HTTP.CORSAllowOrigins),
	)
	if cfg.HTTP.Gzip {
		engine.Use(gzip.Gzip(gzip.DefaultCompression))
	}
	handler.RegisterRoutes(engine, handler.RouterDeps{
		Chat:           handler.NewChatHandler(a.pipeline, cfg.HTTP.IncludeSources),
		Health:         handler.NewHealthHandler(a.pipeline, appName),
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var scheduler *schedule.CronScheduler
	if a.cacheRepo != nil {
		scheduler = schedule.NewCronScheduler()
		cleanup := job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.EmbeddingCache.MaxAgeDays)
		if err := scheduler.AddJob(cleanup, cfg.EmbeddingCache.CleanupSpec); err != nil {
			return fmt.Errorf("schedule cache cleanup: %w", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
		logger.Info("scheduler started", zap.Strings("jobs", scheduler.Jobs()))
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// requests are answered with 503 until indexing finishes
	initErr := make(chan error, 1)
	go func() {
		initErr <- a.pipeline.Initialize(ctx, a.doc)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	case err := <-initErr:
		if err != nil {
			runErr = fmt.Errorf("build index: %w", err)
			break
		}
		logger.Info("pipeline ready", zap.Int("chunks", a.pipeline.Len()))
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	return runErr
}
