package gateway

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/voicewire-ai/voicewire/internal/dotenv"
)

// Config holds the gateway server configuration.
type Config struct {
	// Addr is the listen address. Default: ":8090".
	Addr string

	// MaxSessions caps concurrent call sessions. Default: 100.
	MaxSessions int

	// SessionIdleTimeout drops a connection with no inbound traffic.
	// Default: 5 minutes.
	SessionIdleTimeout time.Duration

	// Logger receives structured gateway logs. Default: zap.NewNop().
	Logger *zap.Logger
}

// DefaultConfig returns the standard gateway configuration.
func DefaultConfig() Config {
	return Config{
		Addr:               ":8090",
		MaxSessions:        100,
		SessionIdleTimeout: 5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.MaxSessions == 0 {
		c.MaxSessions = d.MaxSessions
	}
	if c.SessionIdleTimeout == 0 {
		c.SessionIdleTimeout = d.SessionIdleTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// FromEnv builds a Config from VOICEWIRE_* environment variables, loading
// a local .env file first.
func FromEnv() (Config, error) {
	if err := dotenv.Load(".env"); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	if v := os.Getenv("VOICEWIRE_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("VOICEWIRE_MAX_SESSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, err
		}
		cfg.MaxSessions = n
	}
	if v := os.Getenv("VOICEWIRE_SESSION_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, err
		}
		cfg.SessionIdleTimeout = d
	}
	return cfg, nil
}
