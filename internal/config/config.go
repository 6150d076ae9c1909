package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime knob of the bot. Values come from the
// environment, optionally seeded from a .env file in the working directory.
type Config struct {
	BotToken string `env:"BOT_TOKEN,required"`

	// Voice bridge sidecar that owns the actual group-call connections.
	VoiceBridgeURL string `env:"VOICE_BRIDGE_URL" envDefault:"ws://127.0.0.1:8765/ws"`

	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`
	GeniusAccessToken   string `env:"GENIUS_ACCESS_TOKEN"`
	LastFMAPIKey        string `env:"LASTFM_API_KEY"`
	LastFMAPISecret     string `env:"LASTFM_API_SECRET"`
	LastFMSessionKey    string `env:"LASTFM_SESSION_KEY"`

	StoragePath      string        `env:"STORAGE_PATH" envDefault:"datastore.json"`
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"30s"`

	MaxQueueSize int `env:"MAX_QUEUE_SIZE" envDefault:"100"`
	MaxHistory   int `env:"MAX_HISTORY" envDefault:"50"`

	ResolveTimeout time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"30s"`
	VoiceTimeout   time.Duration `env:"VOICE_TIMEOUT" envDefault:"10s"`

	// IdleTTL > 0 enables eviction of idle chat contexts. Disabled by
	// default: chats keep their state for the process lifetime.
	IdleTTL time.Duration `env:"IDLE_TTL" envDefault:"0"`

	HealthAddr string `env:"HEALTH_ADDR" envDefault:":8080"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogPath  string `env:"LOG_PATH"`
}

// New loads configuration from .env (if present) and the environment.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.MaxQueueSize < 1 {
		return nil, fmt.Errorf("MAX_QUEUE_SIZE must be positive, got %d", cfg.MaxQueueSize)
	}
	if cfg.MaxHistory < 1 {
		return nil, fmt.Errorf("MAX_HISTORY must be positive, got %d", cfg.MaxHistory)
	}

	return cfg, nil
}

// SpotifyEnabled reports whether Spotify credentials are configured.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

// GeniusEnabled reports whether the Genius lyrics client is configured.
func (c *Config) GeniusEnabled() bool { return c.GeniusAccessToken != "" }

// LastFMEnabled reports whether Last.fm scrobbling is configured.
func (c *Config) LastFMEnabled() bool {
	return c.LastFMAPIKey != "" && c.LastFMAPISecret != "" && c.LastFMSessionKey != ""
}
