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

	"github.com/gin-gonic/gin"

	"github.com/taxipark/station-dispatch/internal/api/handlers"
	"github.com/taxipark/station-dispatch/internal/api/routes"
	"github.com/taxipark/station-dispatch/internal/config"
	"github.com/taxipark/station-dispatch/internal/domain/station"
	"github.com/taxipark/station-dispatch/internal/service/dispatch"
	"github.com/taxipark/station-dispatch/internal/service/lifecycle"
	"github.com/taxipark/station-dispatch/internal/service/liveview"
	"github.com/taxipark/station-dispatch/internal/service/pricing"
	"github.com/taxipark/station-dispatch/internal/storage"
	"github.com/taxipark/station-dispatch/pkg/cache"
	"github.com/taxipark/station-dispatch/pkg/database"
	"github.com/taxipark/station-dispatch/pkg/logger"
	"github.com/taxipark/station-dispatch/pkg/monitoring"
	"github.com/taxipark/station-dispatch/pkg/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting station dispatch service",
		logger.String("env", cfg.Server.Env),
		logger.String("port", cfg.Server.Port),
	)

	// Initialize New Relic
	nrApp, err := monitoring.New(monitoring.Config{
		LicenseKey: cfg.NewRelic.LicenseKey,
		AppName:    cfg.NewRelic.AppName,
		Enabled:    cfg.NewRelic.Enabled,
	})
	if err != nil {
		appLogger.Warn("Failed to initialize New Relic", logger.Err(err))
	} else if nrApp.IsEnabled() {
		appLogger.Info("New Relic APM initialized",
			logger.String("app_name", cfg.NewRelic.AppName))
	} else {
		appLogger.Info("New Relic APM disabled")
	}
	defer nrApp.Shutdown(10 * time.Second)

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(cache.Config{
		Host:        cfg.Redis.Host,
		Port:        cfg.Redis.Port,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		MaxRetries:  cfg.Redis.MaxRetries,
		PoolSize:    cfg.Redis.PoolSize,
		DialTimeout: cfg.Redis.DialTimeout,
		ReadTimeout: cfg.Redis.ReadTimeout,
	})
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", logger.Err(err))
	}
	defer cache.Close(redisClient)

	appLogger.Info("Connected to Redis")

	// Initialize PostgreSQL
	postgresDB, err := database.NewPostgresDB(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConnections,
		MaxIdle:  cfg.Database.MaxIdleConns,
	})
	if err != nil {
		appLogger.Fatal("Failed to connect to PostgreSQL", logger.Err(err))
	}
	defer postgresDB.Close()

	appLogger.Info("Connected to PostgreSQL")

	// Load the station list. A broken or missing file degrades to the
	// single default station so dispatch keeps working.
	stations, err := station.Load(cfg.Stations.FilePath)
	if err != nil {
		appLogger.Warn("Falling back to default station",
			logger.String("path", cfg.Stations.FilePath),
			logger.Err(err),
		)
	}
	appLogger.Info("Stations loaded", logger.Int("count", len(stations.All())))

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(appLogger)
	go wsHub.Run()

	// Wire the dispatch core
	drivers := storage.NewPostgresDriverRepository(postgresDB)
	trips := storage.NewMemoryTripStore()
	board := dispatch.NewRedisBoard(redisClient)
	tariff := pricing.Tariff{
		BaseFare:       cfg.Tariff.BaseFare,
		FreeDistanceKM: cfg.Tariff.FreeDistanceKM,
		PerKMRate:      cfg.Tariff.PerKMRate,
		PerMinuteRate:  cfg.Tariff.PerMinuteRate,
	}

	refresher := liveview.NewRefresher(trips, tariff, wsHub, cfg.Trip.RefreshInterval, appLogger)
	defer refresher.Close()

	engine := lifecycle.NewEngine(
		drivers,
		trips,
		stations,
		wsHub,
		refresher,
		tariff,
		lifecycle.Config{
			MinStepKM:    cfg.Trip.MinStepKM,
			MaxStepKM:    cfg.Trip.MaxStepKM,
			FinishPolicy: lifecycle.FinishPolicy(cfg.Trip.FinishPolicy),
		},
		appLogger,
	)
	matcher := dispatch.NewMatcher(drivers, stations, appLogger)

	// Initialize handlers with dependencies
	h := handlers.NewHandlers(engine, matcher, board, drivers, trips, stations, wsHub, nrApp, appLogger)

	// Initialize Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Setup all routes
	if nrApp.IsEnabled() {
		routes.SetupRoutes(router, h, nrApp.Application)
	} else {
		routes.SetupRoutes(router, h, nil)
	}

	appLogger.Info("Routes configured")

	// Create HTTP server
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Server starting", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", logger.Err(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.Err(err))
	}

	appLogger.Info("Server stopped gracefully")
}
