package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	// IdentityOrigin keys clients by the host part of their remote address.
	IdentityOrigin = "origin"
	// IdentitySession keys clients by a random per-connection UUID.
	IdentitySession = "session"
)

var validate = validator.New()

// RateLimitConfig defines per-connection inbound message throttling.
// A Burst of zero disables throttling.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the relay's runtime settings, read from the environment.
type Config struct {
	Host                    string        `env:"HOST,default=0.0.0.0" validate:"required"`
	Port                    int           `env:"PORT,default=8000" validate:"min=1,max=65535"`
	LogLevel                string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	AllowedOrigins          string        `env:"ALLOWED_ORIGINS,default=*"`
	MaxMessageSize          int           `env:"MAX_MESSAGE_SIZE,default=65536" validate:"gt=0"`
	SendBufferSize          int           `env:"SEND_BUFFER_SIZE,default=256" validate:"gt=0"`
	RateLimitBurst          int           `env:"RATE_LIMIT_BURST,default=0" validate:"min=0"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
	IdentityMode            string        `env:"IDENTITY_MODE,default=origin" validate:"oneof=origin session"`
	TrustForwardedFor       bool          `env:"TRUST_FORWARDED_FOR,default=false"`
	StaticDir               string        `env:"STATIC_DIR,default=static"`
	ShutdownTimeout         time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// DefaultConfig returns the settings used when no environment is provided.
func DefaultConfig() Config {
	return Config{
		Host:                    "0.0.0.0",
		Port:                    8000,
		LogLevel:                "INFO",
		AllowedOrigins:          "*",
		MaxMessageSize:          65536,
		SendBufferSize:          256,
		RateLimitRefillInterval: time.Second,
		IdentityMode:            IdentityOrigin,
		StaticDir:               "static",
		ShutdownTimeout:         10 * time.Second,
	}
}

// LoadConfig reads an optional .env file, then the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	cfg = sanitizeConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Address returns the host:port the HTTP server binds to.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	return parseOrigins(c.AllowedOrigins)
}

// RateLimit returns the inbound throttling settings.
func (c *Config) RateLimit() RateLimitConfig {
	return RateLimitConfig{
		Burst:          c.RateLimitBurst,
		RefillInterval: c.RateLimitRefillInterval,
	}
}

// sanitizeConfig replaces unusable zero values with defaults.
func sanitizeConfig(cfg Config) Config {
	def := DefaultConfig()

	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = def.SendBufferSize
	}
	if cfg.RateLimitRefillInterval <= 0 {
		cfg.RateLimitRefillInterval = def.RateLimitRefillInterval
	}
	if cfg.IdentityMode == "" {
		cfg.IdentityMode = def.IdentityMode
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	return cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
