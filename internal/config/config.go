// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	NewsdataAPIKey   string `envconfig:"NEWSDATA_API_KEY"`
	TextGearsAPIKey  string `envconfig:"TEXTGEARS_API_KEY"`

	DatabasePath string `envconfig:"DATABASE_PATH" default:"./data/newsbot.db"`
	SourcesFile  string `envconfig:"SOURCES_FILE"`

	AllowedUsers IDList `envconfig:"ALLOWED_USERS"`
	AdminUsers   IDList `envconfig:"ADMIN_USERS"`

	Retention     time.Duration `envconfig:"RETENTION" default:"720h"`
	PurgeInterval time.Duration `envconfig:"PURGE_INTERVAL" default:"24h"`
	MisfireGrace  time.Duration `envconfig:"MISFIRE_GRACE" default:"1h"`
	CategoryPause time.Duration `envconfig:"CATEGORY_PAUSE" default:"2s"`
	ItemPacing    time.Duration `envconfig:"ITEM_PACING" default:"1s"`
	HTTPTimeout   time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`

	SendAttempts int     `envconfig:"SEND_ATTEMPTS" default:"3"`
	SendRate     float64 `envconfig:"SEND_RATE" default:"25"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"auto"`
}

// IDList is a comma-separated list of Telegram user IDs.
type IDList []int64

// Decode implements envconfig.Decoder.
func (l *IDList) Decode(value string) error {
	var ids IDList
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user ID %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	*l = ids
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.TelegramBotToken) == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.SendAttempts < 1 {
		return fmt.Errorf("SEND_ATTEMPTS must be at least 1, got %d", c.SendAttempts)
	}
	if c.SendRate <= 0 {
		return fmt.Errorf("SEND_RATE must be positive, got %v", c.SendRate)
	}
	if c.Retention <= 0 {
		return fmt.Errorf("RETENTION must be positive, got %v", c.Retention)
	}
	switch c.LogFormat {
	case "text", "json", "auto":
	default:
		return fmt.Errorf("LOG_FORMAT must be text, json or auto, got %q", c.LogFormat)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.AllowedUsers, userID)
}

// IsAdmin reports whether the user may run operator commands.
func (c *Config) IsAdmin(userID int64) bool {
	return slices.Contains(c.AdminUsers, userID)
}
