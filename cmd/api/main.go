package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/cefr-placement-api/internal/config"
	"github.com/noah-isme/cefr-placement-api/internal/database"
	"github.com/noah-isme/cefr-placement-api/internal/events"
	"github.com/noah-isme/cefr-placement-api/internal/handler"
	"github.com/noah-isme/cefr-placement-api/internal/middleware"
	"github.com/noah-isme/cefr-placement-api/internal/observability"
	"github.com/noah-isme/cefr-placement-api/internal/prompts"
	"github.com/noah-isme/cefr-placement-api/internal/repository"
	"github.com/noah-isme/cefr-placement-api/internal/router"
	"github.com/noah-isme/cefr-placement-api/internal/service"
	"github.com/noah-isme/cefr-placement-api/pkg/llm"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cefr-api",
		Short:         "CEFR placement evaluation API",
		SilenceUsage:  true,
	}

	serve := serveCmd()
	root.AddCommand(serve, migrateCmd())
	root.RunE = serve.RunE

	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP evaluation server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return runServe(cmd.Context(), cfg, newLogger(cfg))
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and optionally seed first-round questions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			seed, _ := cmd.Flags().GetString("seed")
			return runMigrate(cmd.Context(), cfg, newLogger(cfg), seed)
		},
	}
	cmd.Flags().String("seed", "", "YAML file with questions to insert")
	return cmd
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()
}

func runMigrate(ctx context.Context, cfg config.Config, logger zerolog.Logger, seedPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	logger.Info().Msg("database migrated")

	if seedPath == "" {
		return nil
	}

	file, err := os.Open(seedPath)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer file.Close()

	questions, err := database.ParseQuestionSeed(file)
	if err != nil {
		return err
	}
	created, err := database.SeedQuestions(ctx, db, questions)
	if err != nil {
		return err
	}

	logger.Info().Str("seed", seedPath).Int("created", created).Int("total", len(questions)).Msg("questions seeded")
	return nil
}

func runServe(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable; evaluation events disabled")
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}
	publisher := events.NewNATSPublisher(natsConn, cfg.EventSubject, logger)

	gateway, err := llm.New(ctx, llm.Config{
		Provider:    cfg.LLMProvider,
		APIKey:      cfg.LLMAPIKey(),
		BaseURL:     cfg.LLMBaseURL(),
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.LLMTimeout,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create llm gateway: %w", err)
	}

	renderer, err := prompts.Load(cfg.PromptsDir)
	if err != nil {
		return err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	responses, err := service.NewResponseValidator(validate)
	if err != nil {
		return err
	}

	questionRepo := repository.NewQuestionRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	finalRepo := repository.NewFinalEvaluationRepository(db)
	contextRepo := repository.NewEvaluationContextRepository(redisClient, cfg.ContextTTL)

	initialService := service.NewInitialEvaluationService(service.InitialEvaluationDeps{
		Questions:   questionRepo,
		Evaluations: evaluationRepo,
		Contexts:    contextRepo,
		Gateway:     gateway,
		Responses:   responses,
		Prompts:     renderer,
		Events:      publisher,
		Validate:    validate,
		Logger:      logger,
	})
	finalService := service.NewFinalEvaluationService(service.FinalEvaluationDeps{
		Contexts:         contextRepo,
		FinalEvaluations: finalRepo,
		Gateway:          gateway,
		Prompts:          renderer,
		Events:           publisher,
		Validate:         validate,
		Logger:           logger,
	})
	historyService := service.NewEvaluationHistoryService(evaluationRepo, finalRepo, logger)
	questionService := service.NewQuestionService(questionRepo, redisClient, cfg.QuestionCacheTTL, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})

	var jwtMiddleware fiber.Handler
	if cfg.JWTSecret != "" {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}
	router.Register(app, cfg, router.Dependencies{
		EvaluationHandler: handler.NewEvaluationHandler(initialService, finalService, historyService, logger),
		QuestionHandler:   handler.NewQuestionHandler(questionService, logger),
		JWTMiddleware:     jwtMiddleware,
		RateLimiter:       middleware.RateLimit("evaluation", cfg.EvaluationRateLimit, time.Minute),
		MetricsHandler:    observability.MetricsHandler(),
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Str("llm_provider", cfg.LLMProvider).Msg("starting server")
		errCh <- app.Listen(cfg.HTTPAddress())
	}()

	return waitForShutdown(app, logger, errCh)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger, errCh <-chan error) error {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-shutdownCtx.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
	return nil
}
