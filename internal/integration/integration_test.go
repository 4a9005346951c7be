package integration

import (
	"context"
	"database/sql"
	"encoding/json"
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

	"quizplay-service/internal/app"
	"quizplay-service/internal/domain"
	pgloader "quizplay-service/internal/infra/postgres"
	pgmigrations "quizplay-service/internal/infra/postgres/migrations"
	infraredis "quizplay-service/internal/infra/redis"
)

func TestPlayThroughEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgloader.NewQuizLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	gateway := infraredis.NewGateway(redisClient, 5*time.Minute)
	service := app.NewPlayService(quizRepo, gateway)

	alice, err := service.Join(ctx, "quiz-1", "", "Alice")
	if err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if len(alice.Boosters) != 3 {
		t.Fatalf("expected 3 boosters for alice, got %d", len(alice.Boosters))
	}
	bob, err := service.Join(ctx, "quiz-1", "", "Bob")
	if err != nil {
		t.Fatalf("join bob: %v", err)
	}

	// Alice burns a booster on the first question and answers both
	// correctly. The draw is random, so expected points depend on whether
	// she got a multiplier.
	chosen := alice.Boosters[0]
	for _, b := range alice.Boosters {
		if b.Kind == domain.BoosterDoublePoints || b.Kind == domain.BoosterDoubleJeopardy {
			chosen = b
			break
		}
	}
	if _, err := service.UseBooster(alice.ParticipantID, chosen.ID); err != nil {
		t.Fatalf("use booster: %v", err)
	}
	q1Points := 1
	if chosen.Kind == domain.BoosterDoublePoints || chosen.Kind == domain.BoosterDoubleJeopardy {
		q1Points = 2
	}
	out, err := service.Submit(alice.ParticipantID, "4")
	if err != nil {
		t.Fatalf("alice q1: %v", err)
	}
	if !out.Record.Correct || out.Record.Points != q1Points || out.Score != q1Points {
		t.Fatalf("expected %d points on q1, got %+v", q1Points, out)
	}
	finalScore := q1Points + 2
	out, err = service.Submit(alice.ParticipantID, " PARIS ")
	if err != nil {
		t.Fatalf("alice q2: %v", err)
	}
	if !out.Completed || out.Score != finalScore {
		t.Fatalf("expected completion at %d points, got %+v", finalScore, out)
	}

	// Bob misses the first question and stops there.
	if _, err := service.Submit(bob.ParticipantID, "5"); err != nil {
		t.Fatalf("bob q1: %v", err)
	}

	lb, err := service.Leaderboard(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", lb.Entries)
	}
	if lb.Entries[0].ParticipantID != alice.ParticipantID || lb.Entries[0].Score != finalScore {
		t.Fatalf("expected alice leading with %d, got %+v", finalScore, lb.Entries)
	}
	if !lb.Entries[0].Completed || lb.Entries[1].Completed {
		t.Fatalf("completion flags wrong: %+v", lb.Entries)
	}

	// A rejoin must surface the partially used inventory, not a new draw.
	again, err := service.Join(ctx, "quiz-1", alice.ParticipantID, "Alice")
	if err != nil {
		t.Fatalf("rejoin alice: %v", err)
	}
	used := 0
	for _, b := range again.Boosters {
		if b.Used {
			used++
		}
	}
	if len(again.Boosters) != 3 || used != 1 {
		t.Fatalf("expected rehydrated inventory with one used booster, got %+v", again.Boosters)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
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

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
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

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Warmup",
		Questions: []domain.Question{
			{
				ID:            "q1",
				Kind:          domain.QuestionMultipleChoice,
				Prompt:        "What is 2 + 2?",
				Options:       []string{"3", "4", "5"},
				CorrectAnswer: "4",
				Difficulty:    domain.DifficultyEasy,
			},
			{
				ID:            "q2",
				Kind:          domain.QuestionOpenEnded,
				Prompt:        "Capital of France?",
				CorrectAnswer: "Paris",
				Difficulty:    domain.DifficultyMedium,
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
