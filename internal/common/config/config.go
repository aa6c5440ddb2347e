// Package config loads taskboard configuration from defaults, a config file
// and TASKBOARD_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers accepted by database.driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds all configuration sections.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Events   EventsConfig   `mapstructure:"events"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Board    BoardConfig    `mapstructure:"board"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// DatabaseConfig selects and configures the board document store.
type DatabaseConfig struct {
	Driver        string `mapstructure:"driver"`
	Path          string `mapstructure:"path"` // sqlite file
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	DBName        string `mapstructure:"dbName"`
	SSLMode       string `mapstructure:"sslMode"`
	MaxConns      int    `mapstructure:"maxConns"`
	MinConns      int    `mapstructure:"minConns"`
	MongoURI      string `mapstructure:"mongoUri"`
	MongoDatabase string `mapstructure:"mongoDatabase"`
}

// CacheConfig configures the optional Redis read-through cache.
// An empty RedisAddr disables caching.
type CacheConfig struct {
	RedisAddr     string `mapstructure:"redisAddr"`
	RedisPassword string `mapstructure:"redisPassword"`
	RedisDB       int    `mapstructure:"redisDb"`
	TTL           int    `mapstructure:"ttl"` // in seconds
}

// EventsConfig configures the event bus. An empty NatsURL selects the
// in-memory bus.
type EventsConfig struct {
	NatsURL       string `mapstructure:"natsUrl"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
	Namespace     string `mapstructure:"namespace"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// TracingConfig configures span export. An empty Endpoint keeps tracing
// off. Endpoint is a full OTLP/HTTP URL such as http://collector:4318.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"serviceName"`
	SampleRatio float64 `mapstructure:"sampleRatio"`
}

// BoardConfig holds defaults applied to newly created boards.
type BoardConfig struct {
	DefaultName string     `mapstructure:"defaultName"`
	SeedUsers   []SeedUser `mapstructure:"seedUsers"`
}

// SeedUser is a user added to boards created without an explicit user set.
type SeedUser struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// Addr returns host:port.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TTLDuration returns the cache TTL as a time.Duration.
func (c *CacheConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("TASKBOARD_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "./taskboard.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "taskboard")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbName", "taskboard")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxConns", 25)
	v.SetDefault("database.minConns", 5)
	v.SetDefault("database.mongoUri", "mongodb://localhost:27017")
	v.SetDefault("database.mongoDatabase", "taskboard")

	v.SetDefault("cache.redisAddr", "")
	v.SetDefault("cache.redisPassword", "")
	v.SetDefault("cache.redisDb", 0)
	v.SetDefault("cache.ttl", 300)

	// Empty URL means in-memory event bus.
	v.SetDefault("events.natsUrl", "")
	v.SetDefault("events.clientId", "taskboard")
	v.SetDefault("events.maxReconnects", 10)
	v.SetDefault("events.namespace", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.serviceName", "taskboard")
	v.SetDefault("tracing.sampleRatio", 1.0)

	v.SetDefault("board.defaultName", "My Board")
	v.SetDefault("board.seedUsers", []map[string]string{
		{"id": "u1", "name": "Alice"},
		{"id": "u2", "name": "Bob"},
	})
}

// Load reads configuration from TASKBOARD_* environment variables, a
// config.yaml in the working directory or /etc/taskboard/, and defaults.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath is Load with an extra directory searched first for config.yaml.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// camelCase keys do not map onto SNAKE_CASE env names on their own.
	_ = v.BindEnv("database.mongoUri", "TASKBOARD_DATABASE_MONGO_URI")
	_ = v.BindEnv("cache.redisAddr", "TASKBOARD_CACHE_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("events.natsUrl", "TASKBOARD_EVENTS_NATS_URL", "NATS_URL")
	_ = v.BindEnv("tracing.endpoint", "TASKBOARD_TRACING_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("tracing.serviceName", "TASKBOARD_TRACING_SERVICE_NAME", "OTEL_SERVICE_NAME")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/taskboard/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	switch strings.ToLower(cfg.Database.Driver) {
	case DriverMemory:
	case DriverSQLite:
		if cfg.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errs = append(errs, "database.port must be between 1 and 65535")
		}
		if cfg.Database.User == "" {
			errs = append(errs, "database.user is required for the postgres driver")
		}
		if cfg.Database.DBName == "" {
			errs = append(errs, "database.dbName is required for the postgres driver")
		}
	case DriverMongo:
		if cfg.Database.MongoURI == "" {
			errs = append(errs, "database.mongoUri is required for the mongo driver")
		}
		if cfg.Database.MongoDatabase == "" {
			errs = append(errs, "database.mongoDatabase is required for the mongo driver")
		}
	default:
		errs = append(errs, "database.driver must be one of: memory, sqlite, postgres, mongo")
	}

	if cfg.Cache.RedisAddr != "" && cfg.Cache.TTL <= 0 {
		errs = append(errs, "cache.ttl must be positive when cache.redisAddr is set")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, "tracing.sampleRatio must be between 0 and 1")
	}
	if cfg.Tracing.Endpoint != "" && cfg.Tracing.ServiceName == "" {
		errs = append(errs, "tracing.serviceName is required when tracing.endpoint is set")
	}

	if strings.TrimSpace(cfg.Board.DefaultName) == "" {
		errs = append(errs, "board.defaultName must not be blank")
	}
	for i, u := range cfg.Board.SeedUsers {
		if u.ID == "" || u.Name == "" {
			errs = append(errs, fmt.Sprintf("board.seedUsers[%d] needs id and name", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
