package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr          string
	AllowedOrigin string
	Store         StoreConfig
	Broadcast     BroadcastConfig
	Chat          ChatConfig
	Log           LogConfig
}

type StoreConfig struct {
	Backend     string // "memory", "valkey" or "postgres"
	ValkeyAddr  string
	DatabaseURL string
	Seed        bool
}

type BroadcastConfig struct {
	Backend   string // "local" or "valkey"
	Channel   string
	SocketURL string // Optional: real-time server, falls back to Backend when down
}

type ChatConfig struct {
	SimulateReply bool
	TypingTimeout time.Duration
	DeliveryDelay time.Duration
	ReplyDelay    time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, after loading .env if one
// exists in the working directory.
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{
		Addr:          getEnv("CHAT_ADDR", ":8080"),
		AllowedOrigin: getEnv("CHAT_ALLOWED_ORIGIN", "http://127.0.0.1:5173"),
		Store: StoreConfig{
			Backend:     getEnv("CHAT_STORE", "memory"),
			ValkeyAddr:  getEnv("VALKEY_ADDR", "127.0.0.1:6379"),
			DatabaseURL: getEnv("DATABASE_URL", ""),
		},
		Broadcast: BroadcastConfig{
			Backend:   getEnv("CHAT_BROADCAST", "local"),
			Channel:   getEnv("CHAT_BROADCAST_CHANNEL", "pe-chat"),
			SocketURL: getEnv("CHAT_SOCKET_URL", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	var err error
	if cfg.Store.Seed, err = getEnvBool("CHAT_SEED", true); err != nil {
		return Config{}, err
	}
	if cfg.Chat.SimulateReply, err = getEnvBool("CHAT_SIMULATE_REPLY", true); err != nil {
		return Config{}, err
	}
	if cfg.Chat.TypingTimeout, err = getEnvDuration("CHAT_TYPING_TIMEOUT", 1500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.Chat.DeliveryDelay, err = getEnvDuration("CHAT_DELIVERY_DELAY", 900*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.Chat.ReplyDelay, err = getEnvDuration("CHAT_REPLY_DELAY", 1400*time.Millisecond); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Backend {
	case "memory", "valkey":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when CHAT_STORE=postgres")
		}
	default:
		return fmt.Errorf("CHAT_STORE must be memory, valkey or postgres, got %q", c.Store.Backend)
	}

	switch c.Broadcast.Backend {
	case "local", "valkey":
	default:
		return fmt.Errorf("CHAT_BROADCAST must be local or valkey, got %q", c.Broadcast.Backend)
	}
	if c.Broadcast.Channel == "" {
		return fmt.Errorf("CHAT_BROADCAST_CHANNEL cannot be empty")
	}
	return nil
}

// UsesValkey reports whether any component needs a Valkey connection.
func (c Config) UsesValkey() bool {
	return c.Store.Backend == "valkey" || c.Broadcast.Backend == "valkey"
}

func (c BroadcastConfig) SocketEnabled() bool {
	return c.SocketURL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return d, nil
}
