// Package hexapi contains a minimal client for the Open Hexagon central
// scoring server: newest-score polling, leaderboard depth queries, the
// pack catalog, and replay video probing.
package hexapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// DefaultBaseURL is the public scoring server.
const DefaultBaseURL = "https://openhexagon.fun:8001"

// Client calls the scoring server REST endpoints.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

// LevelOptions is the structured options key carried by score events and
// leaderboard queries. Serialized form is part of the leaderboard URL.
type LevelOptions struct {
	DifficultyMult float64 `json:"difficulty_mult"`
}

// ScoreEvent is one row of the newest-scores feed.
type ScoreEvent struct {
	Pack         string       `json:"pack"`
	Level        string       `json:"level"`
	LevelOptions LevelOptions `json:"level_options"`
	UserName     string       `json:"user_name"`
	Value        float64      `json:"value"`
	Position     int          `json:"position"`
	ReplayHash   string       `json:"replay_hash"`
	Timestamp    int64        `json:"timestamp"`
}

// Standing is one recorded leaderboard result.
type Standing struct {
	UserName string  `json:"user_name"`
	Value    float64 `json:"value"`
	Position int     `json:"position"`
}

// Pack is one catalog entry with its levels.
type Pack struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Levels []Level `json:"levels"`
}

// Level is one level of a pack. Options.DifficultyMult lists every
// selectable difficulty; its length is the level's variant count.
type Level struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Options struct {
		DifficultyMult []float64 `json:"difficulty_mult"`
	} `json:"options"`
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scoring server returned %d for %s", resp.StatusCode, req.URL.Path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// NewestScores lists score events recorded during the past sinceSeconds.
func (c *Client) NewestScores(ctx context.Context, sinceSeconds int64) ([]ScoreEvent, error) {
	if sinceSeconds < 1 {
		sinceSeconds = 1
	}
	var events []ScoreEvent
	u := fmt.Sprintf("%s/get_newest_scores/%d", c.base(), sinceSeconds)
	if err := c.getJSON(ctx, u, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Leaderboard returns the recorded standings for one exact (pack, level,
// options) combination. The options key travels as an escaped JSON path
// segment, matching the server's routing.
func (c *Client) Leaderboard(ctx context.Context, pack, level string, opts LevelOptions) ([]Standing, error) {
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("marshal level options: %w", err)
	}
	u := fmt.Sprintf("%s/get_leaderboard/%s/%s/%s",
		c.base(), url.PathEscape(pack), url.PathEscape(level), url.PathEscape(string(optsJSON)))
	var standings []Standing
	if err := c.getJSON(ctx, u, &standings); err != nil {
		return nil, err
	}
	return standings, nil
}

// Packs fetches the full pack catalog.
func (c *Client) Packs(ctx context.Context) ([]Pack, error) {
	var packs []Pack
	u := fmt.Sprintf("%s/get_packs/1/1000", c.base())
	if err := c.getJSON(ctx, u, &packs); err != nil {
		return nil, err
	}
	return packs, nil
}
