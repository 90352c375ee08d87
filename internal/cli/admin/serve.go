package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/maplepath-ai/maplepath/internal/api/handlers"
	"github.com/maplepath-ai/maplepath/internal/cohere"
	"github.com/maplepath-ai/maplepath/internal/config"
	"github.com/maplepath-ai/maplepath/internal/database"
	"github.com/maplepath-ai/maplepath/internal/domain"
	"github.com/maplepath-ai/maplepath/internal/jobs"
	"github.com/maplepath-ai/maplepath/internal/openai"
	"github.com/maplepath-ai/maplepath/internal/repository"
	"github.com/maplepath-ai/maplepath/internal/server"
	"github.com/maplepath-ai/maplepath/internal/service"
	"github.com/maplepath-ai/maplepath/internal/storage"
	"github.com/maplepath-ai/maplepath/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the maplepath retrieval API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	chunkRepo := repository.NewChunkRepository(pool)
	entityRepo := repository.NewEntityRepository(pool)
	relationshipRepo := repository.NewRelationshipRepository(pool)
	retrievalLogRepo := repository.NewRetrievalLogRepository(pool)
	embeddingJobRepo := repository.NewEmbeddingJobRepository(pool)

	var embeddingClient service.EmbeddingClientInterface
	var openaiClient *openai.Client
	if cfg.HasOpenAI() {
		openaiClient = openai.NewClient(cfg.OpenAIAPIKey)
		embeddingClient = openaiClient
	} else {
		log.Println("no OpenAI key configured: retrieval will report the vector channel unavailable")
		embeddingClient = &NoOpEmbeddingClient{}
	}

	var reranker service.RerankClientInterface
	if cfg.HasCohere() {
		rerankClient, err := cohere.NewClientWithConfig(cohere.Config{
			APIKey: cfg.CohereAPIKey,
			Model:  cfg.CohereRerankModel,
		})
		if err != nil {
			return fmt.Errorf("failed to create rerank client: %w", err)
		}
		reranker = rerankClient
		log.Printf("reranker configured (model: %s)", cfg.CohereRerankModel)
	}

	retrievalSvc := service.NewRetrievalService(chunkRepo, entityRepo, relationshipRepo, embeddingClient, reranker)

	var embeddingWorker *jobs.Worker
	if cfg.WorkerEnabled && openaiClient != nil {
		embeddingSvc := service.NewEmbeddingService(openaiClient, chunkRepo)
		processor := jobs.NewEmbeddingWorkerWithBatchSize(embeddingJobRepo, embeddingSvc, cfg.WorkerBatchSize)
		embeddingWorker = jobs.NewWorker(processor, time.Duration(cfg.WorkerPollSeconds)*time.Second)
		go embeddingWorker.Start(ctx)
		log.Println("embedding worker started")
	}

	var retrievalHandler *handlers.RetrievalHandler
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		log.Printf("source document storage ready (bucket: %s)", cfg.S3Bucket)
		retrievalHandler = handlers.NewRetrievalHandlerWithStorage(retrievalSvc, retrievalLogRepo, chunkRepo, s3Client)
	} else {
		retrievalHandler = handlers.NewRetrievalHandler(retrievalSvc, retrievalLogRepo)
	}

	router := server.NewRouter(server.RouterConfig{
		RetrievalHandler: retrievalHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if embeddingWorker != nil {
		embeddingWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// NoOpEmbeddingClient stands in when no embedding provider is configured.
// Every retrieval then fails loudly on the vector channel instead of
// silently returning nothing.
type NoOpEmbeddingClient struct{}

func (c *NoOpEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, domain.ErrEmbeddingUnavailable
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
