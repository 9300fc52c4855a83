package session

import (
	"log/slog"
	"time"
)

// Config controls the shared browser process.
type Config struct {
	// Remote is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome.
	Remote string `yaml:"remote"`

	// Headless hides the browser window. Interactive logins need a
	// visible window, so this defaults to false.
	Headless bool `yaml:"headless"`

	// NavTimeout bounds every navigation and page probe. Default: 30s.
	NavTimeout time.Duration `yaml:"nav_timeout"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) applyDefaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Options configures one platform session.
type Options struct {
	// Persistent restores saved cookies and storage into the fresh
	// context before first navigation.
	Persistent bool `yaml:"persistent"`

	// AutoSave starts a background loop that snapshots session state
	// every AutoSaveInterval. The loop only reads page state, so it never
	// races a foreground navigation over which URL is loaded.
	AutoSave         bool          `yaml:"auto_save"`
	AutoSaveInterval time.Duration `yaml:"auto_save_interval"`
}

func (o *Options) applyDefaults() {
	if o.AutoSaveInterval <= 0 {
		o.AutoSaveInterval = 30 * time.Second
	}
}
