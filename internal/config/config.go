package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	NewRelic  NewRelicConfig
	Tariff    TariffConfig
	Trip      TripConfig
	Stations  StationsConfig
	WebSocket WebSocketConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port string
	Env  string
	Host string
}

type DatabaseConfig struct {
	Host           string
	Port           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	MaxConnections int
	MaxIdleConns   int
	MaxLifetime    time.Duration
}

type RedisConfig struct {
	Host        string
	Port        string
	Password    string
	DB          int
	MaxRetries  int
	PoolSize    int
	MinIdleConn int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	PositionTopic string
	GroupID       string
	MinBytes      int
	MaxBytes      int
}

type NewRelicConfig struct {
	LicenseKey string
	AppName    string
	Enabled    bool
	LogLevel   string
}

// TariffConfig is the fare schedule. Amounts are in so'm.
type TariffConfig struct {
	BaseFare       float64
	FreeDistanceKM float64
	PerKMRate      float64
	PerMinuteRate  float64
}

// TripConfig tunes the trip lifecycle: the position noise filter bounds,
// what happens to the driver after settlement, and how often the live
// status messages are refreshed.
type TripConfig struct {
	MinStepKM       float64
	MaxStepKM       float64
	FinishPolicy    string
	RefreshInterval time.Duration
}

type StationsConfig struct {
	FilePath string
}

type WebSocketConfig struct {
	ReadBufferSize    int
	WriteBufferSize   int
	HeartbeatInterval time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

const (
	// FinishRequeue puts the driver back at the end of their station
	// queue after settlement.
	FinishRequeue = "requeue"
	// FinishOffline leaves the driver off shift after settlement.
	FinishOffline = "offline"
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			Name:           getEnv("DB_NAME", "station_dispatch"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConnections: getEnvAsInt("DB_MAX_CONNECTIONS", 100),
			MaxIdleConns:   getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 10),
			MaxLifetime:    time.Duration(getEnvAsInt("DB_MAX_LIFETIME_MINUTES", 30)) * time.Minute,
		},
		Redis: RedisConfig{
			Host:        getEnv("REDIS_HOST", "localhost"),
			Port:        getEnv("REDIS_PORT", "6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			MaxRetries:  getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 100),
			MinIdleConn: 10,
			DialTimeout: 5 * time.Second,
			ReadTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{getEnv("KAFKA_BROKER", "localhost:9092")},
			PositionTopic: getEnv("KAFKA_POSITION_TOPIC", "driver-positions"),
			GroupID:       getEnv("KAFKA_GROUP_ID", "station-dispatch"),
			MinBytes:      getEnvAsInt("KAFKA_MIN_BYTES", 1),
			MaxBytes:      getEnvAsInt("KAFKA_MAX_BYTES", 10e6),
		},
		NewRelic: NewRelicConfig{
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			AppName:    getEnv("NEW_RELIC_APP_NAME", "TaxiPark-StationDispatch"),
			Enabled:    getEnvAsBool("NEW_RELIC_ENABLED", false),
			LogLevel:   getEnv("NEW_RELIC_LOG_LEVEL", "info"),
		},
		Tariff: TariffConfig{
			BaseFare:       getEnvAsFloat64("TARIFF_BASE_FARE", 5000),
			FreeDistanceKM: getEnvAsFloat64("TARIFF_FREE_DISTANCE_KM", 1.0),
			PerKMRate:      getEnvAsFloat64("TARIFF_PER_KM_RATE", 1000),
			PerMinuteRate:  getEnvAsFloat64("TARIFF_PER_MINUTE_RATE", 500),
		},
		Trip: TripConfig{
			MinStepKM:       getEnvAsFloat64("TRIP_MIN_STEP_KM", 0.05),
			MaxStepKM:       getEnvAsFloat64("TRIP_MAX_STEP_KM", 2.0),
			FinishPolicy:    getEnv("TRIP_FINISH_POLICY", FinishRequeue),
			RefreshInterval: time.Duration(getEnvAsInt("TRIP_REFRESH_INTERVAL_SECONDS", 30)) * time.Second,
		},
		Stations: StationsConfig{
			FilePath: getEnv("STATIONS_FILE", "stations.json"),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:    getEnvAsInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize:   getEnvAsInt("WS_WRITE_BUFFER_SIZE", 1024),
			HeartbeatInterval: time.Duration(getEnvAsInt("WS_HEARTBEAT_INTERVAL_SECONDS", 30)) * time.Second,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.Trip.MinStepKM < 0 {
		return fmt.Errorf("TRIP_MIN_STEP_KM must not be negative")
	}
	if c.Trip.MaxStepKM <= c.Trip.MinStepKM {
		return fmt.Errorf("TRIP_MAX_STEP_KM must be greater than TRIP_MIN_STEP_KM")
	}
	if c.Trip.FinishPolicy != FinishRequeue && c.Trip.FinishPolicy != FinishOffline {
		return fmt.Errorf("TRIP_FINISH_POLICY must be %q or %q", FinishRequeue, FinishOffline)
	}
	if c.Tariff.BaseFare < 0 || c.Tariff.PerKMRate < 0 || c.Tariff.PerMinuteRate < 0 {
		return fmt.Errorf("tariff amounts must not be negative")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
