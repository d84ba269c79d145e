// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For the required Discord credential, use ValidateDiscordReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Discord
	DiscordToken string

	// Scoring server
	ScoringBaseURL string

	// Pipeline
	PollInterval   time.Duration
	MergeWindow    time.Duration
	MinStandings   int
	RecentLookback time.Duration

	// Storage
	StatePath string

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It doesn't fail
// if the Discord token is missing; use ValidateDiscordReady() before
// opening the gateway session. Invalid durations and numbers are errors
// rather than silently falling back, so a typo can't halve a merge window.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DiscordToken = os.Getenv("DISCORD_BOT_TOKEN")

	cfg.ScoringBaseURL = os.Getenv("SCORING_BASE_URL")
	if cfg.ScoringBaseURL == "" {
		cfg.ScoringBaseURL = "https://openhexagon.fun:8001"
	}

	var err error
	if cfg.PollInterval, err = durationEnv("POLL_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.MergeWindow, err = durationEnv("MERGE_WINDOW", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RecentLookback, err = durationEnv("RECENT_LOOKBACK", 24*time.Hour); err != nil {
		return nil, err
	}

	cfg.MinStandings = 3
	if s := os.Getenv("MIN_STANDINGS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid MIN_STANDINGS: %q", s)
		}
		cfg.MinStandings = n
	}

	cfg.StatePath = os.Getenv("STATE_PATH")
	if cfg.StatePath == "" {
		cfg.StatePath = "data/state.json"
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// ValidateDiscordReady checks required fields for opening the gateway session.
func (c *Config) ValidateDiscordReady() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("missing discord env: require DISCORD_BOT_TOKEN")
	}
	return nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s (duration): %q", name, s)
	}
	return d, nil
}
