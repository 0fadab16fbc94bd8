package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/playshuffle/backend/internal/api"
	"github.com/playshuffle/backend/internal/config"
	"github.com/playshuffle/backend/internal/database"
	"github.com/playshuffle/backend/internal/game"
	"github.com/playshuffle/backend/internal/logging"
	"github.com/playshuffle/backend/internal/migrations"
	"github.com/playshuffle/backend/internal/redis"
	"github.com/playshuffle/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if err := logging.Init(cfg); err != nil {
		log.Fatalf("Failed to initialise logging: %v", err)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logging.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if os.Getenv("MIGRATE_ON_START") == "true" {
		logging.Log.Info("Running DB migrations on startup")
		if err := migrations.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			logging.Log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		logging.Log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	if err := game.InitializeManager(ctx, db, rdb, cfg); err != nil {
		logging.Log.Fatalf("Invalid game rules: %v", err)
	}

	ws.SetRedisClient(rdb, cfg)
	ws.Attach(game.Manager)
	ws.StartMatchEventSubscriber(ctx)

	// warning -> forfeit for players who stop acting on their turn
	game.StartIdleWorker(ctx, rdb, cfg)

	go game.StartMatchmakerWorker(ctx, db, cfg)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, db, rdb, cfg)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: router}

	go func() {
		logging.Log.Infof("Starting PlayShuffle server on port %s (physics=%s)", port, cfg.PhysicsMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logging.Log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Log.Errorf("Server shutdown: %v", err)
	}
	select {
	case <-game.Manager.Drained():
	case <-shutdownCtx.Done():
		logging.Log.Warn("Persistence queue did not drain before shutdown")
	}
}
