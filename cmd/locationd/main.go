package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/taxipark/station-dispatch/internal/config"
	"github.com/taxipark/station-dispatch/internal/domain/station"
	"github.com/taxipark/station-dispatch/internal/service/lifecycle"
	"github.com/taxipark/station-dispatch/internal/storage"
	"github.com/taxipark/station-dispatch/pkg/cache"
	"github.com/taxipark/station-dispatch/pkg/database"
	"github.com/taxipark/station-dispatch/pkg/logger"
)

// locationd consumes driver position events from Kafka and keeps the
// driver registry current: first reports register and queue the driver,
// later reports re-station queued drivers as they move. Every position is
// also mirrored into a Redis GEO set for ops tooling. On-trip distance
// accrual is not done here; that happens in the API process, which owns
// the active trip store.

var (
	msgsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "station_dispatch",
		Name:      "locationd_messages_consumed_total",
		Help:      "Total position messages consumed from Kafka",
	})
	msgsInvalid = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "station_dispatch",
		Name:      "locationd_messages_invalid_total",
		Help:      "Total position messages that failed to decode",
	})
	trackErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "station_dispatch",
		Name:      "locationd_track_errors_total",
		Help:      "Total position samples that failed to update the driver registry",
	})
	geoMirrorErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "station_dispatch",
		Name:      "locationd_geo_mirror_errors_total",
		Help:      "Total failed Redis GEO mirror writes",
	})
)

// positionEvent is the Kafka message payload.
type positionEvent struct {
	DriverID  int64   `json:"driver_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting location consumer",
		logger.String("topic", cfg.Kafka.PositionTopic),
		logger.Any("brokers", cfg.Kafka.Brokers),
	)

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

	stations, err := station.Load(cfg.Stations.FilePath)
	if err != nil {
		appLogger.Warn("Falling back to default station",
			logger.String("path", cfg.Stations.FilePath),
			logger.Err(err),
		)
	}

	drivers := storage.NewPostgresDriverRepository(postgresDB)
	tracker := lifecycle.NewTracker(drivers, stations, appLogger)

	// Metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
		})
		appLogger.Info("Metrics server listening", logger.String("address", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			appLogger.Warn("Metrics server stopped", logger.Err(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.PositionTopic,
		GroupID:  cfg.Kafka.GroupID,
		MinBytes: cfg.Kafka.MinBytes,
		MaxBytes: cfg.Kafka.MaxBytes,
	})
	defer reader.Close()

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				appLogger.Info("Shutting down location consumer")
				return
			}
			appLogger.Warn("Kafka read error",
				logger.Err(err),
				logger.String("backoff", backoff.String()),
			)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		msgsConsumed.Inc()

		var ev positionEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			msgsInvalid.Inc()
			appLogger.Warn("Invalid position message", logger.Err(err))
			continue
		}

		if err := tracker.Track(ctx, ev.DriverID, ev.Latitude, ev.Longitude); err != nil {
			trackErrors.Inc()
			appLogger.Warn("Position rejected",
				logger.Int64("driver_id", ev.DriverID),
				logger.Err(err),
			)
			continue
		}

		mirrorPosition(ctx, redisClient, ev)
	}
}

// mirrorPosition writes the driver's latest position into the Redis GEO
// set. Failures are counted but never block ingestion.
func mirrorPosition(ctx context.Context, rc *redis.Client, ev positionEvent) {
	err := rc.GeoAdd(ctx, "drivers_geo", &redis.GeoLocation{
		Name:      strconv.FormatInt(ev.DriverID, 10),
		Latitude:  ev.Latitude,
		Longitude: ev.Longitude,
	}).Err()
	if err == nil {
		err = rc.HSet(ctx, fmt.Sprintf("driver:%d:last_seen", ev.DriverID), map[string]interface{}{
			"latitude":  ev.Latitude,
			"longitude": ev.Longitude,
			"seen_at":   time.Now().Unix(),
		}).Err()
	}
	if err != nil {
		geoMirrorErrors.Inc()
	}
}
