package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kickin-server/internal/auth"
	"github.com/kickin-server/internal/challenge"
	"github.com/kickin-server/internal/chat"
	"github.com/kickin-server/internal/clock"
	"github.com/kickin-server/internal/config"
	"github.com/kickin-server/internal/domain"
	"github.com/kickin-server/internal/handler"
	"github.com/kickin-server/internal/lobby"
	"github.com/kickin-server/internal/postgres"
	"github.com/kickin-server/internal/redis"
	"github.com/kickin-server/internal/reward"
	"github.com/kickin-server/internal/settlement"
	"github.com/kickin-server/internal/worker"

	randomsrc "github.com/kickin-server/internal/random"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// All wire timestamps carry this zone's offset
	zone, err := clock.NewZone(cfg.Lobby.Timezone)
	if err != nil {
		logger.Error("failed to load timezone", "timezone", cfg.Lobby.Timezone, "error", err)
		os.Exit(1)
	}

	verifier, err := auth.NewJWTVerifier(cfg.Auth.JWTKey)
	if err != nil {
		logger.Error("failed to initialize token verifier", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	store, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations and seed the skill catalog
	if err := store.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	if err := store.SeedSkills(ctx, postgres.DefaultSkills()); err != nil {
		logger.Error("failed to seed skills", "error", err)
		os.Exit(1)
	}
	skills, err := store.ListSkills(ctx)
	if err != nil {
		logger.Error("failed to load skill catalog", "error", err)
		os.Exit(1)
	}
	catalog := domain.NewSkillCatalog(skills)
	logger.Info("skill catalog loaded", "skills", catalog.Len())

	// Initialize Redis point projection
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	boards, err := redis.NewLeaderboard(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer boards.Close()
	logger.Info("connected to Redis")

	// Reward dispatcher: Kafka when enabled, logging fallback otherwise
	var rewards reward.Dispatcher
	if cfg.Kafka.Enabled {
		kd, err := reward.NewKafkaDispatcher(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka dispatcher, rewards will only be logged", "error", err)
			rewards = reward.Nop{Logger: logger}
		} else {
			rewards = kd
			logger.Info("Kafka reward dispatcher started", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
		}
	} else {
		rewards = reward.Nop{Logger: logger}
	}
	defer rewards.Close()

	// Randomness policy
	selector := randomsrc.NewSelector(
		randomsrc.NewLocal(time.Now().UnixNano()),
		randomsrc.NewVerifiable(),
		cfg.Random.VerifiableForVIP,
		logger,
	)

	// Chat content filter
	var filter chat.Filter
	if cfg.Chat.FilterMode == "wordlist" {
		filter = chat.NewWordList(cfg.Chat.BlockWords, cfg.Chat.MaskWords)
	} else {
		filter = chat.Passthrough{}
	}

	// Realtime core
	room := lobby.NewLobby(cfg.Lobby, zone, store, boards, filter, logger)
	settler := settlement.NewService(store, boards, rewards, postgres.IsTransient, cfg.Postgres.CallTimeout, logger)
	engine := challenge.NewEngine(
		store,
		store,
		room.Registry(),
		challenge.NewResolver(catalog, selector),
		settler,
		room,
		zone,
		cfg.Lobby.ChallengeTimeout,
		logger,
	)
	room.SetEngine(engine)

	go room.Run(ctx)
	go engine.Run(ctx)
	logger.Info("waiting room initialized")

	// Points reconcile worker
	pointsWorker := worker.NewPointsWorker(boards, store, &cfg.Sync, logger)
	if cfg.Sync.Enabled {
		if err := pointsWorker.Start(ctx); err != nil {
			logger.Error("failed to start points worker", "error", err)
			os.Exit(1)
		}
	}

	// HTTP surface
	httpHandler := handler.NewHandler(room, store, boards, verifier, cfg.Lobby.LeaderboardSize, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws/waitingroom")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop background loops and close live sessions
	cancel()

	if cfg.Sync.Enabled {
		if err := pointsWorker.Stop(); err != nil {
			logger.Error("failed to stop points worker", "error", err)
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
