package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mirage-protocol/mirage-indexer/internal/domain"
	"github.com/mirage-protocol/mirage-indexer/internal/store"
)

const serviceName = "mirage-processor"

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // e.g. "5m", "1h"
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // e.g. "10m", "30m"
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	ConsumerName   string        `mapstructure:"consumer_name"`
	Subject        string        `mapstructure:"subject"` // defaults to transactions.<processor.name>
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
	AckWait        time.Duration `mapstructure:"ack_wait"`
	MaxDeliver     int           `mapstructure:"max_deliver"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	WorkerPoolSize  int `mapstructure:"pool_size"`
	WorkerQueueSize int `mapstructure:"queue_size"`
}

// ProcessorSettings holds the projection settings
type ProcessorSettings struct {
	Name            string `mapstructure:"name"`
	DeployerAddress string `mapstructure:"deployer_address"`
	LifecycleMode   string `mapstructure:"lifecycle_mode"`
	StartingVersion int64  `mapstructure:"starting_version"`
	// TableChunkSizes caps the rows per statement, keyed by table name
	TableChunkSizes  map[string]int `mapstructure:"table_chunk_sizes"`
	WriteConcurrency int            `mapstructure:"write_concurrency"`
	// LabelOverrides renames the event_type of activity rows, keyed by event name
	LabelOverrides map[string]string `mapstructure:"label_overrides"`
}

// RetryConfig holds the backoff applied to failed storage writes
type RetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

// ProcessorConfig holds configuration for mirage-processor
type ProcessorConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig    `mapstructure:"database"`
	NATS       NATSConfig        `mapstructure:"nats"`
	Worker     WorkerConfig      `mapstructure:"worker"`
	Processor  ProcessorSettings `mapstructure:"processor"`
	Retry      RetryConfig       `mapstructure:"retry"`
}

// LoadProcessorConfig loads configuration for mirage-processor
func LoadProcessorConfig(configFile string, envPath string) (*ProcessorConfig, error) {
	v := configureViper(serviceName, configFile, envPath)

	// Set defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "TRANSACTIONS")
	v.SetDefault("nats.consumer_name", serviceName)
	v.SetDefault("nats.connection_name", serviceName)
	v.SetDefault("nats.ack_wait", "5m")
	v.SetDefault("nats.max_deliver", 10)
	v.SetDefault("worker.pool_size", 4)
	v.SetDefault("worker.queue_size", 64)
	v.SetDefault("processor.name", "mirage_processor")
	v.SetDefault("processor.lifecycle_mode", string(store.LifecycleFlag))
	v.SetDefault("processor.write_concurrency", store.DEFAULT_WRITE_CONCURRENCY)
	v.SetDefault("retry.initial_interval", "1s")
	v.SetDefault("retry.max_interval", "1m")
	v.SetDefault("retry.max_elapsed_time", "15m")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use environment variables
	}

	var cfg ProcessorConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "transactions." + cfg.Processor.Name
	}

	return &cfg, nil
}

// Validate checks the settings the processor cannot start without
func (c *ProcessorConfig) Validate() error {
	if c.Processor.Name == "" {
		return &domain.ConfigError{Key: "processor.name", Reason: "must not be empty"}
	}
	if _, err := domain.ParseAddress(c.Processor.DeployerAddress); err != nil {
		return &domain.ConfigError{Key: "processor.deployer_address", Reason: err.Error()}
	}
	if !store.LifecycleMode(c.Processor.LifecycleMode).Valid() {
		return &domain.ConfigError{
			Key:    "processor.lifecycle_mode",
			Reason: fmt.Sprintf("unknown mode %q, expected %q or %q", c.Processor.LifecycleMode, store.LifecycleFlag, store.LifecycleTablePair),
		}
	}
	if c.Processor.StartingVersion < 0 {
		return &domain.ConfigError{Key: "processor.starting_version", Reason: "must not be negative"}
	}

	known := make(map[string]bool)
	for _, name := range store.TableNames() {
		known[name] = true
	}
	for name, size := range c.Processor.TableChunkSizes {
		key := "processor.table_chunk_sizes." + name
		if !known[name] {
			return &domain.ConfigError{Key: key, Reason: "unknown table"}
		}
		if size <= 0 {
			return &domain.ConfigError{Key: key, Reason: "must be positive"}
		}
	}

	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath, service)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("MIRAGE_INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars binds every scalar key so env vars are picked up when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.consumer_name",
		"nats.subject",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		"nats.ack_wait",
		"nats.max_deliver",
		// Worker
		"worker.pool_size",
		"worker.queue_size",
		// Processor
		"processor.name",
		"processor.deployer_address",
		"processor.lifecycle_mode",
		"processor.starting_version",
		"processor.write_concurrency",
		// Retry
		"retry.initial_interval",
		"retry.max_interval",
		"retry.max_elapsed_time",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads .env, .env.local and .env.<service>.local from envPath, later files winning
func loadEnv(envPath string, service string) {
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		_ = godotenv.Overload(filepath.Join(envPath, envFile))
	}
}

// ChdirRepoRoot changes the working directory to the closest parent holding a config directory
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
