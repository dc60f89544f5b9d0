package a2ahttp

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config for the A2A HTTP server. Defaults can be loaded via envdecode.
type Config struct {
	// Host the server binds to. ENV: A2A_HOST
	Host string `env:"A2A_HOST,default=0.0.0.0"`

	// Port the server listens on. ENV: A2A_PORT
	Port int `env:"A2A_PORT,default=8080"`

	// RedisAddr like "localhost:6379". Empty selects the in-memory
	// store. ENV: A2A_REDIS_ADDR
	RedisAddr string `env:"A2A_REDIS_ADDR,default="`

	// LogLevel is one of debug, info, warn, error. ENV: A2A_LOG_LEVEL
	LogLevel string `env:"A2A_LOG_LEVEL,default=info"`

	// ShutdownTimeout bounds graceful shutdown, including waiting for
	// in-flight notification handlers. ENV: A2A_SHUTDOWN_TIMEOUT
	ShutdownTimeout time.Duration `env:"A2A_SHUTDOWN_TIMEOUT,default=10s"`
}

// ConfigFromEnv populates a Config using envdecode; defaults are
// provided via struct tags.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode environment: %w", err)
	}
	return cfg, nil
}

// Addr returns the host:port the server should bind to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
