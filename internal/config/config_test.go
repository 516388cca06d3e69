package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	"TELEGRAM_BOT_TOKEN", "NEWSDATA_API_KEY", "TEXTGEARS_API_KEY", "DATABASE_PATH",
	"SOURCES_FILE", "ALLOWED_USERS", "ADMIN_USERS", "RETENTION", "PURGE_INTERVAL",
	"MISFIRE_GRACE", "CATEGORY_PAUSE", "ITEM_PACING", "HTTP_TIMEOUT", "SEND_ATTEMPTS",
	"SEND_RATE", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv unsets every variable Load reads. envconfig treats a variable
// set to "" as present, so t.Setenv(key, "") is not enough.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

func defaults() *Config {
	return &Config{
		TelegramBotToken: "test-token",
		DatabasePath:     "./data/newsbot.db",
		Retention:        720 * time.Hour,
		PurgeInterval:    24 * time.Hour,
		MisfireGrace:     time.Hour,
		CategoryPause:    2 * time.Second,
		ItemPacing:       time.Second,
		HTTPTimeout:      30 * time.Second,
		SendAttempts:     3,
		SendRate:         25,
		LogLevel:         "info",
		LogFormat:        "auto",
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    func() *Config
		wantErr bool
	}{
		{
			name:    "missing token",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:    "blank token",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "  "},
			wantErr: true,
		},
		{
			name: "token only, defaults applied",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "test-token"},
			want: defaults,
		},
		{
			name: "values set",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "test-token",
				"NEWSDATA_API_KEY":   "nd",
				"TEXTGEARS_API_KEY":  "tg",
				"DATABASE_PATH":      "/tmp/news.db",
				"SOURCES_FILE":       "/etc/newsbot/sources.yaml",
				"ALLOWED_USERS":      "111,222,333",
				"ADMIN_USERS":        "111",
				"MISFIRE_GRACE":      "30m",
				"ITEM_PACING":        "0s",
				"SEND_RATE":          "5.5",
				"LOG_LEVEL":          "debug",
				"LOG_FORMAT":         "json",
			},
			want: func() *Config {
				c := defaults()
				c.NewsdataAPIKey = "nd"
				c.TextGearsAPIKey = "tg"
				c.DatabasePath = "/tmp/news.db"
				c.SourcesFile = "/etc/newsbot/sources.yaml"
				c.AllowedUsers = IDList{111, 222, 333}
				c.AdminUsers = IDList{111}
				c.MisfireGrace = 30 * time.Minute
				c.ItemPacing = 0
				c.SendRate = 5.5
				c.LogLevel = "debug"
				c.LogFormat = "json"
				return c
			},
		},
		{
			name: "allowed users with spaces",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "test-token",
				"ALLOWED_USERS":      " 10 , 20 , ",
			},
			want: func() *Config {
				c := defaults()
				c.AllowedUsers = IDList{10, 20}
				return c
			},
		},
		{
			name:    "invalid user id",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "ALLOWED_USERS": "123,abc"},
			wantErr: true,
		},
		{
			name:    "invalid duration",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "RETENTION": "a month"},
			wantErr: true,
		},
		{
			name:    "zero send attempts",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "SEND_ATTEMPTS": "0"},
			wantErr: true,
		},
		{
			name:    "unknown log format",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "LOG_FORMAT": "xml"},
			wantErr: true,
		},
		{
			name:    "unknown log level",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "LOG_LEVEL": "loud"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want(), got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "warn"}
	got, err := cfg.SlogLevel()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != slog.LevelWarn {
		t.Errorf("SlogLevel() = %v, want %v", got, slog.LevelWarn)
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name         string
		allowedUsers IDList
		userID       int64
		want         bool
	}{
		{
			name:         "empty list allows everyone",
			allowedUsers: nil,
			userID:       42,
			want:         true,
		},
		{
			name:         "user in list",
			allowedUsers: IDList{10, 20, 30},
			userID:       20,
			want:         true,
		},
		{
			name:         "user not in list",
			allowedUsers: IDList{10, 20, 30},
			userID:       99,
			want:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AllowedUsers: tt.allowedUsers}
			got := cfg.IsUserAllowed(tt.userID)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("IsUserAllowed() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := &Config{AdminUsers: IDList{7}}
	if !cfg.IsAdmin(7) {
		t.Error("7 should be admin")
	}
	if cfg.IsAdmin(8) {
		t.Error("8 should not be admin")
	}
	if (&Config{}).IsAdmin(7) {
		t.Error("empty admin list must not grant access")
	}
}
