// Package config loads the CRM service configuration from a YAML file,
// an optional .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// PathEnv names the environment variable that overrides DefaultPath.
const PathEnv = "CRM_CONFIG"

// DefaultPath is where the service looks for its YAML config.
var DefaultPath = filepath.Join("internal", "crm", "config", "config.yaml")

// Config struct for YAML configuration
type Config struct {
	GRPCPort         int           `yaml:"GRPC_PORT"`
	HTTPPort         int           `yaml:"HTTP_PORT"`
	DBDriver         string        `yaml:"DB_DRIVER"`
	DBHost           string        `yaml:"DB_HOST"`
	DBPort           int           `yaml:"DB_PORT"`
	DBUser           string        `yaml:"DB_USER"`
	DBPassword       string        `yaml:"DB_PASSWORD"`
	DBName           string        `yaml:"DB_NAME"`
	DBSSLMode        string        `yaml:"DB_SSLMODE"`
	DBPath           string        `yaml:"DB_PATH"`
	DBConnectRetries uint64        `yaml:"DB_CONNECT_RETRIES"`
	KafkaBrokers     []string      `yaml:"KAFKA_BROKERS"`
	Topic            string        `yaml:"TOPIC"`
	KafkaAuditGroup  string        `yaml:"KAFKA_AUDIT_GROUP"`
	JWTSecret        string        `yaml:"JWT_SECRET"`
	LogLevel         string        `yaml:"LOG_LEVEL"`
	SeedDemoData     bool          `yaml:"SEED_DEMO_DATA"`
	SessionTTL       time.Duration `yaml:"SESSION_TTL"`
	SessionCapacity  int           `yaml:"SESSION_CAPACITY"`
}

// Defaults returns the configuration used for keys missing from every source.
func Defaults() Config {
	return Config{
		GRPCPort:         50051,
		HTTPPort:         8080,
		DBDriver:         "postgres",
		DBHost:           "localhost",
		DBPort:           5432,
		DBUser:           "postgres",
		DBName:           "crm",
		DBSSLMode:        "disable",
		DBPath:           "crm.db",
		DBConnectRetries: 5,
		Topic:            "crm.contacts",
		LogLevel:         "info",
		SessionTTL:       30 * time.Minute,
		SessionCapacity:  1024,
	}
}

// Load reads path (or DefaultPath when empty) on top of Defaults, then
// applies the environment. A missing .env file is not an error; a missing
// YAML file is.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		path = DefaultPath
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	num("GRPC_PORT", &c.GRPCPort)
	num("HTTP_PORT", &c.HTTPPort)
	str("DB_DRIVER", &c.DBDriver)
	str("DB_HOST", &c.DBHost)
	num("DB_PORT", &c.DBPort)
	str("DB_USER", &c.DBUser)
	str("DB_PASSWORD", &c.DBPassword)
	str("DB_NAME", &c.DBName)
	str("DB_SSLMODE", &c.DBSSLMode)
	str("DB_PATH", &c.DBPath)
	str("TOPIC", &c.Topic)
	str("KAFKA_AUDIT_GROUP", &c.KafkaAuditGroup)
	str("JWT_SECRET", &c.JWTSecret)
	str("LOG_LEVEL", &c.LogLevel)
	num("SESSION_CAPACITY", &c.SessionCapacity)

	if v, ok := lookup("DB_CONNECT_RETRIES"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("DB_CONNECT_RETRIES: %w", err))
		} else {
			c.DBConnectRetries = n
		}
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok {
		c.KafkaBrokers = splitList(v)
	}
	if v, ok := lookup("SEED_DEMO_DATA"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SEED_DEMO_DATA: %w", err))
		} else {
			c.SeedDemoData = b
		}
	}
	if v, ok := lookup("SESSION_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SESSION_TTL: %w", err))
		} else {
			c.SessionTTL = d
		}
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every setting the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.GRPCPort <= 0 || c.HTTPPort <= 0 {
		errs = append(errs, errors.New("GRPC_PORT and HTTP_PORT must be positive"))
	}
	switch c.DBDriver {
	case "postgres":
		if c.DBPort <= 0 {
			errs = append(errs, errors.New("DB_PORT must be positive"))
		}
	case "sqlite":
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.SessionTTL <= 0 || c.SessionCapacity <= 0 {
		errs = append(errs, errors.New("SESSION_TTL and SESSION_CAPACITY must be positive"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}

// NewLogger builds a production zap logger at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Fields returns the non-secret settings for startup logging.
func (c *Config) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("grpc_port", c.GRPCPort),
		zap.Int("http_port", c.HTTPPort),
		zap.String("db_driver", c.DBDriver),
		zap.String("db_host", c.DBHost),
		zap.String("db_name", c.DBName),
		zap.Strings("kafka_brokers", c.KafkaBrokers),
		zap.String("topic", c.Topic),
		zap.Bool("seed_demo_data", c.SeedDemoData),
		zap.Duration("session_ttl", c.SessionTTL),
	}
}
