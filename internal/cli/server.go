package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"constitution-quest-service/internal/app"
	"constitution-quest-service/internal/config"
	"constitution-quest-service/internal/domain"
	"constitution-quest-service/internal/infra/memory"
	pgstore "constitution-quest-service/internal/infra/postgres"
	redisstore "constitution-quest-service/internal/infra/redis"
	"constitution-quest-service/internal/points"
	transport "constitution-quest-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the reward service",
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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.ContentLoader = memory.NewStaticContentLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewContentLoader(pool)
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	var content app.ContentRepository
	if redisClient != nil {
		content = redisstore.NewContentRepository(redisClient, loader, contentTTL)
	} else {
		content = memory.NewContentRepository(loader, contentTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	var profiles app.ProfileStore
	switch {
	case pool != nil:
		profiles = pgstore.NewProfileStore(pool)
	case redisClient != nil:
		profiles = redisstore.NewProfileStore(redisClient)
	default:
		profiles = memory.NewProfileStore()
	}

	service := app.NewService(sessions, content, profiles)
	service.SetDefaultDailyLimit(cfg.Gamification.DailyCoinLimit)

	scoring := points.DefaultConfig()
	if v := cfg.Gamification.Scoring.CoinsPerCorrect; v > 0 {
		scoring.QuizCoinsPerCorrect = v
	}
	if v := cfg.Gamification.Scoring.XPPerCorrect; v > 0 {
		scoring.QuizXPPerCorrect = v
	}
	if v := cfg.Gamification.Scoring.SpeedMsPerQuestion; v > 0 {
		scoring.SpeedMsPerQuestion = v
	}
	service.SetCalculator(points.NewCalculator(scoring))
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
		log.Printf("starting constitution quest service on :%s", finalPort)
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

// sampleQuizzes seeds a minimal quiz catalog for running without Postgres.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"preamble-basics": {
			ID: "preamble-basics",
			Questions: []domain.Question{
				{
					Prompt:  "The Preamble declares the nation to be a sovereign, socialist, secular, democratic ___.",
					Options: []string{"Union", "Republic", "Federation", "Commonwealth"},
					Answer:  1,
				},
				{
					Prompt:  "Who adopts the Constitution according to the Preamble?",
					Options: []string{"The Parliament", "The Supreme Court", "We, the People", "The President"},
					Answer:  2,
				},
				{
					Prompt:  "Which ideal is NOT named in the Preamble?",
					Options: []string{"Justice", "Liberty", "Prosperity", "Fraternity"},
					Answer:  2,
				},
			},
		},
	}
}
