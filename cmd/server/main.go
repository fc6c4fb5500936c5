package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uassett/Epsydev/internal/api"
	"github.com/uassett/Epsydev/internal/config"
	"github.com/uassett/Epsydev/internal/directory"
	"github.com/uassett/Epsydev/internal/matchmaker"
	"github.com/uassett/Epsydev/internal/queue"
	"github.com/uassett/Epsydev/internal/repository"
	"github.com/uassett/Epsydev/internal/service"
	"github.com/uassett/Epsydev/internal/websocket"
	"github.com/uassett/Epsydev/pkg/database"
	"github.com/uassett/Epsydev/pkg/distributed"
	"github.com/uassett/Epsydev/pkg/logger"
	"github.com/uassett/Epsydev/pkg/ratelimit"
	"github.com/uassett/Epsydev/pkg/stats"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.LogLevel)
	defer logger.Sync()
	zlog := logger.Desugar()

	logger.Info("Starting matchmaking service",
		"port", cfg.Port,
		"env", cfg.Env,
	)

	// Database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	// Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("Invalid Redis URL", "error", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", "error", err)
	}
	logger.Info("Redis connection established")

	// Storage and infrastructure
	queueStore := queue.NewStore(redisClient, cfg.QueueEntryTTL)
	matchRepo := repository.NewMatchRepository(db)
	playerRepo := repository.NewPlayerRepository(db)
	serverPool := directory.New(cfg.GameServers)
	limiter := ratelimit.NewRedisRateLimiter(redisClient, "ratelimit:", cfg.QueueJoinLimit, cfg.QueueJoinWindow)

	coordinator := distributed.NewCoordinator(redisClient, zlog)
	lockManager := distributed.NewRedisLockManager(redisClient)
	bucketLocks := distributed.NewBucketLockManager(lockManager, coordinator.InstanceID(), 30*time.Second)

	statsClient := stats.NewClient(cfg.StatsServiceURL, zlog)
	statReporter := service.NewHTTPStatReporter(statsClient)

	// WebSocket hub
	hub := websocket.NewHub(zlog)
	go hub.Run()

	// Services
	matchService := service.NewMatchService(matchRepo, queueStore, serverPool, statReporter, zlog)
	matchmakingService := service.NewMatchmakingService(
		queueStore,
		matchRepo,
		playerRepo,
		serverPool,
		hub,
		bucketLocks,
		matchmaker.NewStatScorer(),
		matchService,
		cfg,
		zlog,
	)
	matchmakingService.SetPassTrigger(service.NewCoordinatorTrigger(coordinator))
	matchmakingService.Start()
	defer matchmakingService.Stop()

	// Cross-instance pass triggers
	go func() {
		handler := func(event distributed.BucketEvent) {
			matchmakingService.RunPass(context.Background(), event.Region, event.Mode)
		}
		if err := coordinator.Start(context.Background(), handler); err != nil {
			logger.Error("Coordinator stopped", "error", err)
		}
	}()
	defer coordinator.Stop()

	wsDeps := websocket.Deps{
		Queue:       matchmakingService,
		Disconnects: matchService,
		Limiter:     limiter,
		JoinLimit:   cfg.QueueJoinLimit,
		JoinWindow:  cfg.QueueJoinWindow,
		Logger:      zlog,
	}

	router := api.SetupRouter(api.Deps{
		Config:      cfg,
		Matchmaking: matchmakingService,
		Matches:     matchService,
		Servers:     serverPool,
		Hub:         hub,
		WSDeps:      wsDeps,
		Limiter:     limiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
