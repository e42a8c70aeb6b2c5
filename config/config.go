package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerPort      int
	ListenBacklog   int
	ShutdownTimeout time.Duration

	// Database configuration; empty selects the in-memory bet store
	DatabaseURL string

	// Event transport configuration; empty selects the no-op publisher
	NATSURL string

	// Lottery configuration
	WinningNumber string

	// Environment
	Environment string // "development" or "production"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		// Server settings with defaults
		ServerPort:      12345,
		ListenBacklog:   5,
		ShutdownTimeout: 5 * time.Second,

		DatabaseURL: os.Getenv("DATABASE_URL"),
		NATSURL:     os.Getenv("NATS_URL"),

		// Lottery settings with defaults
		WinningNumber: "7574",

		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if port := os.Getenv("SERVER_PORT"); port != "" {
		parsedPort, err := strconv.Atoi(port)
		if err != nil || parsedPort < 0 || parsedPort > 65535 {
			return nil, fmt.Errorf("invalid SERVER_PORT %q", port)
		}
		config.ServerPort = parsedPort
	}
	if backlog := os.Getenv("LISTEN_BACKLOG"); backlog != "" {
		parsedBacklog, err := strconv.Atoi(backlog)
		if err != nil || parsedBacklog <= 0 {
			return nil, fmt.Errorf("invalid LISTEN_BACKLOG %q", backlog)
		}
		config.ListenBacklog = parsedBacklog
	}
	if timeout := os.Getenv("SHUTDOWN_TIMEOUT"); timeout != "" {
		parsedTimeout, err := strconv.Atoi(timeout)
		if err != nil || parsedTimeout <= 0 {
			return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q", timeout)
		}
		config.ShutdownTimeout = time.Duration(parsedTimeout) * time.Second
	}
	if number := os.Getenv("WINNING_NUMBER"); number != "" {
		config.WinningNumber = number
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	return config, nil
}
