package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/webseek/crawl"
	"github.com/hazyhaar/webseek/session"
)

// fileConfig is the top-level webseek configuration.
type fileConfig struct {
	// StateDB is the SQLite file holding saved browser states.
	StateDB string          `yaml:"state_db"`
	Browser session.Config  `yaml:"browser"`
	Session session.Options `yaml:"session"`
	Crawl   crawlConfig     `yaml:"crawl"`
}

type crawlConfig struct {
	MaxPages      int     `yaml:"max_pages"`
	MinRelevance  float64 `yaml:"min_relevance"`
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// loadConfig reads the YAML file at path, or returns defaults when path
// is empty. Environment variables override the file: WEBSEEK_STATE_DB,
// WEBSEEK_REMOTE, WEBSEEK_HEADLESS.
func loadConfig(path string) (*fileConfig, error) {
	// Headful by default: interactive logins need a visible window.
	cfg := &fileConfig{
		StateDB: "data/webseek.db",
		Session: session.Options{Persistent: true, AutoSave: true},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("WEBSEEK_STATE_DB"); v != "" {
		cfg.StateDB = v
	}
	if v := os.Getenv("WEBSEEK_REMOTE"); v != "" {
		cfg.Browser.Remote = v
	}
	if os.Getenv("WEBSEEK_HEADLESS") != "" {
		cfg.Browser.Headless = true
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *fileConfig) applyDefaults() {
	if c.Crawl.MaxPages <= 0 {
		c.Crawl.MaxPages = 3
	}
	if c.Crawl.MinRelevance <= 0 {
		c.Crawl.MinRelevance = 0.5
	}
	if c.Crawl.RatePerSecond <= 0 {
		c.Crawl.RatePerSecond = 1
	}
}

func (c *fileConfig) crawlOptions() crawl.Options {
	return crawl.Options{
		MaxPages:      c.Crawl.MaxPages,
		MinRelevance:  c.Crawl.MinRelevance,
		RatePerSecond: c.Crawl.RatePerSecond,
	}
}
