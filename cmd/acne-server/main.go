package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rakeshthakkuri/skin-disease-S/internal/config"
	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/diagnosis"
	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/identity"
	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/prescription"
	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/reminder"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/auth"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/blobstore"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/classifier"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/db"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/generator"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/metrics"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/middleware"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/realtime"
	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/translate"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "acne-server",
		Short: "Acne triage API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, schema)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator, err := db.NewMigrator(pool, os.DirFS(dir), schema)
			if err != nil {
				return err
			}
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, schema)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator, err := db.NewMigrator(pool, os.DirFS(dir), schema)
			if err != nil {
				return err
			}
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.Modified {
						status = "modified"
					}
					appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Write a new forward migration instead.")
			return nil
		},
	})

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account, typically a doctor",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			name, _ := cmd.Flags().GetString("name")
			role, _ := cmd.Flags().GetString("role")
			if email == "" || password == "" || name == "" {
				return fmt.Errorf("--email, --password and --name are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := identity.NewService(identity.NewRepo(pool), nil, nil)
			u, err := svc.Provision(ctx, identity.RegisterInput{
				Email:    email,
				Password: password,
				FullName: name,
			}, role)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s account %s (%s)\n", u.Role, u.Email, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("email", "", "Account email")
	createCmd.Flags().String("password", "", "Initial password")
	createCmd.Flags().String("name", "", "Full name")
	createCmd.Flags().String("role", auth.RoleDoctor, "Role: patient, doctor or admin")
	cmd.AddCommand(createCmd)

	return cmd
}

func newLogger(env, level string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

func buildStore(cfg *config.Config) (blobstore.Store, error) {
	switch cfg.StorageBackend {
	case "s3":
		return blobstore.NewS3Store(cfg.S3Region, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return blobstore.NewLocalStore(cfg.UploadDir)
	}
}

func buildClassifier(cfg *config.Config) classifier.Classifier {
	if cfg.ClassifierURL == "" {
		return classifier.Disabled{}
	}
	return classifier.NewHTTPClassifier(cfg.ClassifierURL, cfg.ClassifierTimeout)
}

func buildGenerator(cfg *config.Config) prescription.Generator {
	if cfg.GeneratorMode == "llm" {
		return generator.NewLLM(cfg.LLMURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.GenerationTimeout)
	}
	return generator.NewRules()
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger = newLogger(cfg.Env, cfg.LogLevel)

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store, err := buildStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open image storage")
	}
	logger.Info().Str("backend", cfg.StorageBackend).Msg("image storage ready")
	if cfg.ClassifierURL == "" {
		logger.Warn().Msg("CLASSIFIER_URL is not set; image analysis is unavailable")
	}

	tokens, err := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token issuer")
	}
	revocations := auth.NewTokenRevocationStore()
	defer revocations.Close()

	collector := metrics.NewCollector()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(collector.Middleware())
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(auth.JWTMiddleware(auth.JWTConfig{
		Issuer:      cfg.JWTIssuer,
		SigningKey:  []byte(cfg.JWTSecret),
		Skipper:     auth.AuthSkipper,
		Revocations: revocations,
	}))
	e.Use(middleware.Audit(logger))

	api := e.Group("/api")

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, logger))
	e.GET("/metrics", echo.WrapHandler(collector.Handler()))

	// Identity
	identitySvc := identity.NewService(identity.NewRepo(pool), tokens, revocations)
	identitySvc.SetMetrics(collector)
	identity.NewHandler(identitySvc, logger).RegisterRoutes(api)

	// Diagnoses
	diagnosisSvc := diagnosis.NewService(diagnosis.NewRepo(pool), buildClassifier(cfg), store, cfg.MaxUploadSize)
	diagnosisSvc.SetMetrics(collector)
	diagnosisSvc.SetLogger(logger)
	diagnosis.NewHandler(diagnosisSvc, logger).RegisterRoutes(api)

	// Realtime prescription events
	hub := realtime.NewHub(logger)
	realtime.NewHandler(hub, cfg.CORSOrigins, logger).RegisterRoutes(api)

	// Prescriptions
	prescriptionSvc := prescription.NewService(prescription.NewRepo(pool), diagnosisSvc, buildGenerator(cfg), translate.NewDictionary())
	prescriptionSvc.SetGenerationTimeout(cfg.GenerationTimeout)
	prescriptionSvc.SetMetrics(collector)
	prescriptionSvc.SetNotifier(hub)
	prescription.NewHandler(prescriptionSvc, logger).RegisterRoutes(api)
	logger.Info().Str("generator", cfg.GeneratorMode).Msg("prescription generation ready")

	// Reminders
	inTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
	reminderSvc := reminder.NewService(reminder.NewRepo(pool), prescriptionSvc, inTx)
	reminderSvc.SetMetrics(collector)
	reminder.NewHandler(reminderSvc, logger).RegisterRoutes(api)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
