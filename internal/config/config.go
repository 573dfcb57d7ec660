package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store engines.
const (
	EngineMemory   = "memory"
	EnginePostgres = "postgres"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	NewRelic NewRelicConfig `yaml:"newrelic"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StoreConfig selects the Entity Store engine and bounds every access.
type StoreConfig struct {
	Engine  string        `yaml:"engine"`
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig holds event publishing configuration. Publishing is
// disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers              []string      `yaml:"brokers"`
	RideEventsTopic      string        `yaml:"rideEventsTopic"`
	DriverLocationsTopic string        `yaml:"driverLocationsTopic"`
	RideAssignmentsTopic string        `yaml:"rideAssignmentsTopic"`
	WriteTimeout         time.Duration `yaml:"writeTimeout"`
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string `yaml:"appName"`
	LicenseKey string `yaml:"licenseKey"`
	Enabled    bool   `yaml:"enabled"`
}

// DispatchConfig tunes the coordinator.
type DispatchConfig struct {
	LockTTL        time.Duration `yaml:"lockTTL"`
	NearbyRadiusKm float64       `yaml:"nearbyRadiusKm"`
	NearbyLimit    int           `yaml:"nearbyLimit"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			Engine:  EngineMemory,
			Timeout: 2 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			DBName:   "dispatch",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Kafka: KafkaConfig{
			RideEventsTopic:      "ride-events",
			DriverLocationsTopic: "driver-locations",
			RideAssignmentsTopic: "ride-assignments",
			WriteTimeout:         2 * time.Second,
		},
		NewRelic: NewRelicConfig{
			AppName: "dispatch-service",
		},
		Dispatch: DispatchConfig{
			LockTTL:        5 * time.Second,
			NearbyRadiusKm: 5,
			NearbyLimit:    20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Store.Engine = strings.ToLower(getEnv("STORE_ENGINE", cfg.Store.Engine))
	cfg.Store.Timeout = getDurationEnv("STORE_TIMEOUT", cfg.Store.Timeout)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Redis.Enabled = getBoolEnv("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getIntEnv("REDIS_DB", cfg.Redis.DB)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitAndTrim(brokers)
	}
	cfg.Kafka.RideEventsTopic = getEnv("KAFKA_TOPIC_RIDE_EVENTS", cfg.Kafka.RideEventsTopic)
	cfg.Kafka.DriverLocationsTopic = getEnv("KAFKA_TOPIC_DRIVER_LOCATIONS", cfg.Kafka.DriverLocationsTopic)
	cfg.Kafka.RideAssignmentsTopic = getEnv("KAFKA_TOPIC_RIDE_ASSIGNMENTS", cfg.Kafka.RideAssignmentsTopic)
	cfg.Kafka.WriteTimeout = getDurationEnv("KAFKA_WRITE_TIMEOUT", cfg.Kafka.WriteTimeout)

	cfg.NewRelic.AppName = getEnv("NEW_RELIC_APP_NAME", cfg.NewRelic.AppName)
	cfg.NewRelic.LicenseKey = getEnv("NEW_RELIC_LICENSE_KEY", cfg.NewRelic.LicenseKey)
	cfg.NewRelic.Enabled = getBoolEnv("NEW_RELIC_ENABLED", cfg.NewRelic.Enabled)

	cfg.Dispatch.LockTTL = getDurationEnv("DISPATCH_LOCK_TTL", cfg.Dispatch.LockTTL)
	cfg.Dispatch.NearbyRadiusKm = getFloatEnv("DISPATCH_NEARBY_RADIUS_KM", cfg.Dispatch.NearbyRadiusKm)
	cfg.Dispatch.NearbyLimit = getIntEnv("DISPATCH_NEARBY_LIMIT", cfg.Dispatch.NearbyLimit)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Store.Engine != EngineMemory && c.Store.Engine != EnginePostgres {
		errs = append(errs, fmt.Errorf("store.engine must be %q or %q, got %q", EngineMemory, EnginePostgres, c.Store.Engine))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, errors.New("store.timeout must be > 0"))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Dispatch.LockTTL <= 0 {
		errs = append(errs, errors.New("dispatch.lockTTL must be > 0"))
	}
	if c.Dispatch.NearbyRadiusKm <= 0 {
		errs = append(errs, errors.New("dispatch.nearbyRadiusKm must be > 0"))
	}
	if c.Dispatch.NearbyLimit <= 0 {
		errs = append(errs, errors.New("dispatch.nearbyLimit must be > 0"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.WriteTimeout <= 0 {
		errs = append(errs, errors.New("kafka.writeTimeout must be > 0"))
	}
	if c.NewRelic.Enabled && c.NewRelic.LicenseKey == "" {
		errs = append(errs, errors.New("newrelic.licenseKey is required when New Relic is enabled"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
