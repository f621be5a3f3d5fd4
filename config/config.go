// Package config loads server settings from the environment, an optional
// .env file and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds application configuration
type Config struct {
	Port              int
	DBDriver          string // sqlite, postgres or memory
	DBDSN             string
	LogLevel          logrus.Level
	LogFormat         string // json or text
	JWTSecret         string
	DefaultCategoryID int64
	CORSOrigins       []string
}

var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

// Load reads .env (if present), then the environment, then args.
func Load(args []string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return parse(args)
}

func parse(args []string) (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	defaultCategory, err := strconv.ParseInt(getEnv("DEFAULT_CATEGORY_ID", "1"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_CATEGORY_ID: %w", err)
	}

	cfg := &Config{
		Port:              port,
		DBDriver:          getEnv("DB_DRIVER", "sqlite"),
		DBDSN:             getEnv("DB_DSN", "debts.db"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		DefaultCategoryID: defaultCategory,
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")),
	}
	level := getEnv("LOG_LEVEL", "info")

	// Flags
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBDriver, "driver", cfg.DBDriver, "database driver: sqlite, postgres or memory")
	fs.StringVar(&cfg.DBDSN, "db", cfg.DBDSN, "SQLite path or PostgreSQL DSN")
	fs.StringVar(&level, "log-level", level, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: json or text")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.LogLevel, err = logrus.ParseLevel(level); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	switch c.DBDriver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDriver != "memory" && c.DBDSN == "" {
		return errors.New("DB_DSN is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	if c.DefaultCategoryID <= 0 {
		return errors.New("DEFAULT_CATEGORY_ID must be positive")
	}
	return nil
}

// NewLogger builds the process logger.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
