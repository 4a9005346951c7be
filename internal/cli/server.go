package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizplay-service/internal/app"
	"quizplay-service/internal/config"
	"quizplay-service/internal/domain"
	"quizplay-service/internal/infra/memory"
	pgloader "quizplay-service/internal/infra/postgres"
	redisinfra "quizplay-service/internal/infra/redis"
	transport "quizplay-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz-play server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgloader.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var gateway app.PersistenceGateway
	if redisClient != nil {
		gateway = redisinfra.NewGateway(redisClient, redisTTL)
	} else {
		gateway = memory.NewGateway()
	}
	service := app.NewPlayService(quizRepo, gateway)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz-play service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides demo content when no Postgres source is
// configured; difficulty drives the point values.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up round",
			Questions: []domain.Question{
				{
					ID:            "q1",
					Kind:          domain.QuestionMultipleChoice,
					Prompt:        "What is 2 + 2?",
					Options:       []string{"3", "4", "5", "22"},
					CorrectAnswer: "4",
					Difficulty:    domain.DifficultyEasy,
					TimeLimitSec:  20,
				},
				{
					ID:            "q2",
					Kind:          domain.QuestionMultipleChoice,
					Prompt:        "Which planet is known as the Red Planet?",
					Options:       []string{"Venus", "Mars", "Jupiter", "Mercury"},
					CorrectAnswer: "Mars",
					Difficulty:    domain.DifficultyMedium,
					TimeLimitSec:  30,
				},
				{
					ID:            "q3",
					Kind:          domain.QuestionOpenEnded,
					Prompt:        "What is the capital of Australia?",
					CorrectAnswer: "Canberra",
					Difficulty:    domain.DifficultyHard,
					TimeLimitSec:  45,
				},
			},
		},
	}
}
