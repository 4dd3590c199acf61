package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/recall/internal/ai"
	"github.com/xxxsen/recall/internal/config"
	"github.com/xxxsen/recall/internal/db"
	"github.com/xxxsen/recall/internal/embedcache"
	"github.com/xxxsen/recall/internal/enrich"
	"github.com/xxxsen/recall/internal/filestore"
	"github.com/xxxsen/recall/internal/handler"
	"github.com/xxxsen/recall/internal/job"
	"github.com/xxxsen/recall/internal/middleware"
	"github.com/xxxsen/recall/internal/model"
	"github.com/xxxsen/recall/internal/repo"
	"github.com/xxxsen/recall/internal/schedule"
	"github.com/xxxsen/recall/internal/service"
	"github.com/xxxsen/recall/internal/vectorindex"
)

const (
	embedCacheSize = 2048
	embedCacheTTL  = 24 * time.Hour
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "recall",
		Short: "recall memory capture server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run recall server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

// buildAIChain assembles the generator and embedder from the primary provider
// plus any configured fallbacks. With fallbacks present each call walks the
// chain until one provider succeeds.
func buildAIChain(cfg config.AIConfig) (ai.IGenerator, ai.IEmbedder, error) {
	providerArgs := cfg.Data
	if providerArgs == nil {
		providerArgs = cfg
	}
	primary, err := ai.NewProvider(cfg.Provider, providerArgs)
	if err != nil {
		return nil, nil, fmt.Errorf("init ai provider: %w", err)
	}
	generator := ai.NewGenerator(primary, cfg.Model)
	embedder := ai.NewEmbedder(primary, cfg.EmbedModel)
	if len(cfg.Fallback) == 0 {
		return generator, embedder, nil
	}

	genEntries := []ai.GeneratorEntry{{Name: cfg.Provider, Generator: generator}}
	embedEntries := []ai.EmbedderEntry{{Name: cfg.Provider, Embedder: embedder}}
	for i, fb := range cfg.Fallback {
		provider, err := ai.NewProvider(fb.Provider, fb.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("init ai fallback provider %d: %w", i, err)
		}
		model := fb.Model
		if model == "" {
			model = cfg.Model
		}
		embedModel := fb.EmbedModel
		if embedModel == "" {
			embedModel = cfg.EmbedModel
		}
		genEntries = append(genEntries, ai.GeneratorEntry{Name: fb.Provider, Generator: ai.NewGenerator(provider, model)})
		embedEntries = append(embedEntries, ai.EmbedderEntry{Name: fb.Provider, Embedder: ai.NewEmbedder(provider, embedModel)})
	}
	return ai.NewGroupGenerator(genEntries), ai.NewGroupEmbedder(embedEntries), nil
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_index", cfg.VectorIndex.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	generator, embedder, err := buildAIChain(cfg.AI)
	if err != nil {
		return err
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, embedCacheSize, embedCacheTTL)
	manager := ai.NewManager(
		generator,
		embedder,
		ai.ManagerConfig{Timeout: cfg.AI.Timeout, MaxInputChars: cfg.AI.MaxInputChars},
	)

	index, err := vectorindex.New(vectorindex.Config{
		Type:       cfg.VectorIndex.Type,
		Location:   cfg.VectorIndex.Location,
		APIKey:     cfg.VectorIndex.APIKey,
		Collection: cfg.VectorIndex.Collection,
		VectorSize: cfg.VectorIndex.VectorSize,
	})
	if err != nil {
		return fmt.Errorf("init vector index: %w", err)
	}

	var archive filestore.Store
	if cfg.Archive.Enabled {
		archive, err = filestore.New(cfg.Archive.Store)
		if err != nil {
			return fmt.Errorf("init archive store: %w", err)
		}
	}
	enricher := enrich.New(enrich.Options{
		TranscriptBaseURL: cfg.Enrich.TranscriptBaseURL,
		Timeout:           time.Duration(cfg.Enrich.TimeoutSeconds) * time.Second,
		UserAgent:         cfg.Enrich.UserAgent,
		Archive:           archive,
	})

	stores := service.Stores{
		model.TableMemories: repo.NewRecordRepo(database, model.TableMemories),
		model.TablePosts:    repo.NewRecordRepo(database, model.TablePosts),
	}

	captureService := service.NewCaptureService(manager, index, stores, enricher, cfg.Enrich.Async)
	searchService := service.NewSearchService(manager, index, stores, cfg.Search.MinScore)
	chatService := service.NewChatService(manager, searchService)
	adminService := service.NewAdminService(manager, index, stores)

	deps := handler.RouterDeps{
		Records:    handler.NewRecordHandler(captureService),
		Search:     handler.NewSearchHandler(searchService),
		Chat:       handler.NewChatHandler(chatService),
		Admin:      handler.NewAdminHandler(adminService),
		JWTSecret:  []byte(cfg.JWTSecret),
		SaveWindow: time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewEnrichJob(captureService, 0), cfg.Jobs.EnrichSpec); err != nil {
		return fmt.Errorf("schedule enrich job: %w", err)
	}
	if err := scheduler.AddJob(job.NewEmbeddingBackfillJob(adminService, 0), cfg.Jobs.BackfillSpec); err != nil {
		return fmt.Errorf("schedule backfill job: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	scheduler.Stop()
	captureService.Wait()
	return nil
}
