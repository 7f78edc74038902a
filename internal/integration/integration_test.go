package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-scoring-service/internal/app"
	"quiz-scoring-service/internal/domain"
	pgstore "quiz-scoring-service/internal/infra/postgres"
	pgmigrations "quiz-scoring-service/internal/infra/postgres/migrations"
	infraredis "quiz-scoring-service/internal/infra/redis"
)

func TestAttemptLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	quizRepo := infraredis.NewQuizRepository(redisClient, pgstore.NewQuizStore(pool), 5*time.Minute, nil)
	boards := infraredis.NewBoardStore(redisClient, 5*time.Minute)
	service := app.NewAttemptService(quizRepo, pgstore.NewAttemptStore(pool), boards)

	quiz, err := service.CreateQuiz(ctx, sampleQuiz())
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}

	alice, err := service.StartAttempt(ctx, quiz.ID, "u1", "Alice")
	if err != nil {
		t.Fatalf("start alice: %v", err)
	}
	bob, err := service.StartAttempt(ctx, quiz.ID, "u2", "Bob")
	if err != nil {
		t.Fatalf("start bob: %v", err)
	}
	if live, err := boards.Live(ctx, quiz.ID); err != nil || !live {
		t.Fatalf("expected live board marker, live=%v err=%v", live, err)
	}

	if _, err := service.SubmitAttempt(ctx, alice.ID, domain.AnswerSheet{0: "0", 1: []any{"0"}}, 50); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	result, err := service.SubmitAttempt(ctx, bob.ID, domain.AnswerSheet{0: "1", 1: []any{"0", "2"}}, 40)
	if err != nil {
		t.Fatalf("submit bob: %v", err)
	}
	if result.Score != 3 || result.Percentage != 100 {
		t.Fatalf("expected bob at full marks, got score=%v pct=%d", result.Score, result.Percentage)
	}

	again, err := service.SubmitAttempt(ctx, bob.ID, domain.AnswerSheet{}, 1)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if again.Score != result.Score || again.ElapsedSeconds != 40 {
		t.Fatalf("expected stored result on resubmit, got %+v", again)
	}

	stored, err := service.GetAttempt(ctx, bob.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if stored.Status != domain.AttemptSubmitted || stored.Result == nil || stored.SubmittedAt == nil {
		t.Fatalf("expected submitted attempt with result, got %+v", stored)
	}

	lb, err := service.Leaderboard(ctx, quiz.ID, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].UserID != "u2" || lb.Entries[1].UserID != "u1" {
		t.Fatalf("expected bob leading alice, got %+v", lb.Entries)
	}

	stats, err := service.Analytics(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if stats.Attempts != 2 || stats.Participants != 2 || len(stats.Questions) != 2 {
		t.Fatalf("unexpected analytics %+v", stats)
	}

	if _, err := service.StartAttempt(ctx, quiz.ID, "u2", "Bob"); err != domain.ErrRetakeNotAllowed {
		t.Fatalf("expected retake refusal, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Title: "Integration",
		Questions: []domain.Question{
			&domain.MCQ{
				Prompt:  domain.Prompt{Text: "What is 2 + 2?", Points: 1},
				Options: []domain.Option{{Text: "3"}, {Text: "4"}, {Text: "5"}},
				Correct: 1,
			},
			&domain.Checkbox{
				Prompt:             domain.Prompt{Text: "Primary colours?", Points: 2},
				Options:            []domain.Option{{Text: "Red"}, {Text: "Green"}, {Text: "Blue"}},
				Correct:            []int{0, 2},
				AllowPartialCredit: true,
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
