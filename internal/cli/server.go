package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-scoring-service/internal/app"
	"quiz-scoring-service/internal/config"
	"quiz-scoring-service/internal/events"
	"quiz-scoring-service/internal/infra/memory"
	pgstore "quiz-scoring-service/internal/infra/postgres"
	redisstore "quiz-scoring-service/internal/infra/redis"
	"quiz-scoring-service/internal/logging"
	"quiz-scoring-service/internal/scoring"
	transport "quiz-scoring-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the scoring API and live leaderboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(logger)

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	similarity, err := scoring.ParseSimilarity(cfg.Scoring.TextSimilarity, cfg.Scoring.MaxEditDistance)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var source app.QuizSource = memory.NewStaticQuizSource(nil)
	var attempts app.AttemptRepository = memory.NewAttemptStore()
	if pool != nil {
		source = pgstore.NewQuizStore(pool)
		attempts = pgstore.NewAttemptStore(pool)
	}
	if cfg.Quiz.SeedFile != "" {
		if err := seedQuizzes(ctx, source, cfg.Quiz.SeedFile, logger); err != nil {
			return err
		}
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	var boards app.BoardRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, source, quizTTL, logger)
		boards = redisstore.NewBoardStore(redisClient, redisTTL)
	} else {
		quizRepo = memory.NewQuizRepository(source, quizTTL)
		boards = memory.NewBoardStore()
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Events.KafkaBrokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.Events.KafkaBrokers,
			Topic:   cfg.Events.Topic,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("kafka publisher: %w", err)
		}
		publisher = kafkaPublisher
	}
	defer publisher.Close()

	service := app.NewAttemptService(quizRepo, attempts, boards,
		app.WithScorer(scoring.New(scoring.WithTextSimilarity(similarity))),
		app.WithPublisher(publisher),
		app.WithLogger(logger),
	)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(service, logger, cfg.CORS.AllowedOrigins),
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz scoring service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedQuizzes stores every valid quiz from the seed file into the quiz source.
func seedQuizzes(ctx context.Context, source app.QuizSource, path string, logger *slog.Logger) error {
	quizzes, err := loadQuizzes(path)
	if err != nil {
		return fmt.Errorf("seed quizzes: %w", err)
	}
	seeded := 0
	for _, quiz := range quizzes {
		if errs := scoring.Validate(quiz); errs != nil {
			logger.Warn("skipping invalid seed quiz", "quiz_id", quiz.ID, "errors", errs.Messages())
			continue
		}
		if quiz.ID == "" {
			logger.Warn("skipping seed quiz without id", "title", quiz.Title)
			continue
		}
		if quiz.CreatedAt.IsZero() {
			quiz.CreatedAt = time.Now().UTC()
		}
		if err := source.StoreQuiz(ctx, quiz); err != nil {
			return fmt.Errorf("seed quiz %s: %w", quiz.ID, err)
		}
		seeded++
	}
	logger.Info("seeded quizzes", "file", path, "count", seeded)
	return nil
}
