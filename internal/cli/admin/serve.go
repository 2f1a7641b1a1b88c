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
	"github.com/soapify-health/soapify/internal/api/handlers"
	"github.com/soapify-health/soapify/internal/config"
	"github.com/soapify-health/soapify/internal/database"
	"github.com/soapify-health/soapify/internal/domain"
	"github.com/soapify-health/soapify/internal/embedding"
	"github.com/soapify-health/soapify/internal/jobs"
	"github.com/soapify-health/soapify/internal/llm"
	"github.com/soapify-health/soapify/internal/repository"
	"github.com/soapify-health/soapify/internal/server"
	"github.com/soapify-health/soapify/internal/service"
	"github.com/soapify-health/soapify/internal/storage"
	"github.com/soapify-health/soapify/internal/telemetry"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the soapify API server and the note generation worker",
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

	if err := cfg.ValidateLLM(); err != nil {
		return err
	}
	if !cfg.HasEmbeddings() {
		return fmt.Errorf("SOAPIFY_EMBEDDING_API_KEY or SOAPIFY_OPENAI_API_KEY is required for retrieval")
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
			Debug:            cfg.Debug,
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

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
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

	noteRepo := repository.NewNoteRepository(pool)
	jobRepo := repository.NewGenerationJobRepository(pool)
	patientRepo := repository.NewPatientRepository(pool)
	doctorRepo := repository.NewDoctorRepository(pool)
	embeddingRepo := repository.NewNoteEmbeddingRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	uuidGen := &service.DefaultUUIDGenerator{}

	embeddingClient := embedding.NewClient(cfg.EmbeddingKey())
	retrievalSvc := service.NewRetrievalService(embeddingClient, embeddingRepo)

	backend, err := buildLLMBackend(cfg)
	if err != nil {
		return err
	}
	gateway := llm.NewGateway(backend, cfg.GenerationTimeout)

	generationSvc := service.NewGenerationService(
		noteRepo, embeddingRepo, retrievalSvc, gateway, embeddingClient,
		cfg.RetrievalLimit, cfg.RetrievalTimeout,
	)

	generationProcessor := jobs.NewGenerationWorker(jobRepo, generationSvc)
	generationWorker := jobs.NewWorker(generationProcessor, cfg.WorkerPoll)
	go generationWorker.Start(ctx)
	log.Println("generation worker started")

	noteSvc := service.NewNoteService(noteRepo, jobRepo, patientRepo, txRunner)
	authSvc := service.NewAuthService(doctorRepo, uuidGen)

	var attachmentHandler *handlers.AttachmentHandler
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
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

		attachmentSvc := service.NewAttachmentService(attachmentRepo, noteRepo, &S3StorageAdapter{client: s3Client})
		attachmentHandler = handlers.NewAttachmentHandler(attachmentSvc)
	} else {
		attachmentHandler = handlers.NewAttachmentHandler(&NoOpAttachmentService{})
	}

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:     authSvc,
		NoteHandler:       handlers.NewNoteHandler(noteSvc),
		PatientHandler:    handlers.NewPatientHandler(noteSvc),
		AttachmentHandler: attachmentHandler,
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

	generationWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func buildLLMBackend(cfg *config.Config) (llm.Generator, error) {
	switch cfg.LLMProvider {
	case config.ProviderGroq:
		return llm.NewGroqBackend(cfg.GroqAPIKey, cfg.GroqModel), nil
	case config.ProviderOpenAI:
		return llm.NewOpenAIChatBackend(cfg.OpenAIAPIKey, "", cfg.OpenAIChatModel), nil
	case config.ProviderOllama:
		return llm.NewOllamaBackend(cfg.OllamaBaseURL, cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

type S3StorageAdapter struct {
	client *storage.S3Client
}

func (a *S3StorageAdapter) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	return a.client.GenerateUploadURL(ctx, key, contentType)
}

func (a *S3StorageAdapter) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	return a.client.GenerateDownloadURL(ctx, key)
}

func (a *S3StorageAdapter) DeleteObject(ctx context.Context, key string) error {
	return a.client.DeleteObject(ctx, key)
}

func (a *S3StorageAdapter) HeadObject(ctx context.Context, key string) (*service.ObjectMetadata, error) {
	meta, err := a.client.HeadObject(ctx, key)
	if err != nil {
		return nil, err
	}
	return &service.ObjectMetadata{
		ContentLength: meta.ContentLength,
		ContentType:   meta.ContentType,
		ETag:          meta.ETag,
	}, nil
}

type NoOpAttachmentService struct{}

func (s *NoOpAttachmentService) InitUpload(ctx context.Context, input service.InitUploadInput) (*service.InitUploadResult, error) {
	return nil, fmt.Errorf("attachment service not configured: S3_ENDPOINT required")
}

func (s *NoOpAttachmentService) CompleteUpload(ctx context.Context, input service.CompleteUploadInput) (*domain.Attachment, error) {
	return nil, fmt.Errorf("attachment service not configured: S3_ENDPOINT required")
}

func (s *NoOpAttachmentService) GetDownloadURL(ctx context.Context, attachmentID, doctorID string) (string, error) {
	return "", fmt.Errorf("attachment service not configured: S3_ENDPOINT required")
}

func (s *NoOpAttachmentService) ListByNote(ctx context.Context, noteID, doctorID string) ([]*domain.Attachment, error) {
	return nil, fmt.Errorf("attachment service not configured: S3_ENDPOINT required")
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

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
