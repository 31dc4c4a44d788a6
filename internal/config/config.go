// Package config loads server and historian settings from the environment
// (optionally seeded from a .env file) using Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. UNO_PORT.
const EnvPrefix = "UNO"

type Config struct {
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	ReconnectGrace time.Duration `mapstructure:"reconnect_grace"`
	AllowReconnect bool          `mapstructure:"allow_reconnect"`
	OutboxSize     int           `mapstructure:"outbox_size"`
	MinPlayers     int           `mapstructure:"min_players"`
	HandSize       int           `mapstructure:"hand_size"`

	// TokenTTL is the lifetime of seat tokens. Zero issues tokens that never expire.
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	RequireSeatToken bool          `mapstructure:"require_seat_token"`
	// SeatKeyFile and SeatPubFile hold a raw ed25519 key pair. When empty a
	// key is generated at startup and tokens do not survive restarts.
	SeatKeyFile string `mapstructure:"seat_key_file"`
	SeatPubFile string `mapstructure:"seat_pub_file"`

	RedisAddr   string `mapstructure:"redis_addr"`
	RedisQueue  string `mapstructure:"redis_queue"`
	PostgresDSN string `mapstructure:"postgres_dsn"`

	AllowedOrigins []string `mapstructure:"allowed_origins"`

	HistorianBatchSize  int           `mapstructure:"historian_batch_size"`
	HistorianFlushEvery time.Duration `mapstructure:"historian_flush_every"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8888)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	def := room.DefaultPolicy()
	v.SetDefault("reconnect_grace", def.ReconnectGrace)
	v.SetDefault("allow_reconnect", def.AllowReconnect)
	v.SetDefault("outbox_size", def.OutboxSize)
	v.SetDefault("min_players", def.MinPlayers)
	v.SetDefault("hand_size", game.DefaultHouseRules().HandSize)

	v.SetDefault("token_ttl", 12*time.Hour)
	v.SetDefault("require_seat_token", true)
	v.SetDefault("seat_key_file", "")
	v.SetDefault("seat_pub_file", "")

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_queue", "uno_actions")
	v.SetDefault("postgres_dsn", "")

	v.SetDefault("allowed_origins", []string{"*"})

	v.SetDefault("historian_batch_size", 20)
	v.SetDefault("historian_flush_every", 500*time.Millisecond)
}

// Load reads envFile (when non-empty, or ./.env when present) into the
// process environment, then builds a Config from UNO_* variables and
// defaults.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks all configuration invariants and reports every violation.
func (c Config) Validate() error {
	var errs []string
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port must be 1-65535, got %d", c.Port))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("log_level: %v", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("log_format must be one of [text, json], got %q", c.LogFormat))
	}
	if c.OutboxSize < 1 {
		errs = append(errs, fmt.Sprintf("outbox_size must be >= 1, got %d", c.OutboxSize))
	}
	if c.MinPlayers < game.MinPlayers || c.MinPlayers > game.MaxPlayers {
		errs = append(errs, fmt.Sprintf("min_players must be %d-%d, got %d", game.MinPlayers, game.MaxPlayers, c.MinPlayers))
	}
	if c.HandSize < 1 || c.HandSize > 15 {
		errs = append(errs, fmt.Sprintf("hand_size must be 1-15, got %d", c.HandSize))
	}
	if c.TokenTTL < 0 {
		errs = append(errs, "token_ttl must not be negative")
	}
	if (c.SeatKeyFile == "") != (c.SeatPubFile == "") {
		errs = append(errs, "seat_key_file and seat_pub_file must be set together")
	}
	if c.HistorianBatchSize < 1 {
		errs = append(errs, fmt.Sprintf("historian_batch_size must be >= 1, got %d", c.HistorianBatchSize))
	}
	if c.HistorianFlushEvery <= 0 {
		errs = append(errs, "historian_flush_every must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Policy is the room policy these settings describe.
func (c Config) Policy() room.Policy {
	return room.Policy{
		AllowReconnect: c.AllowReconnect,
		ReconnectGrace: c.ReconnectGrace,
		OutboxSize:     c.OutboxSize,
		MinPlayers:     c.MinPlayers,
	}
}

// HouseRules are the default rules for new rooms.
func (c Config) HouseRules() game.HouseRules {
	h := game.DefaultHouseRules()
	h.HandSize = c.HandSize
	return h
}

// Logger builds the process logger.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
