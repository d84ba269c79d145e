package pipeline

import (
	"context"
	"log/slog"

	"github.com/onnwee/record-herald/hexapi"
)

// StandingsSource queries leaderboard depth (implemented by hexapi.Client).
type StandingsSource interface {
	Leaderboard(ctx context.Context, pack, level string, opts hexapi.LevelOptions) ([]hexapi.Standing, error)
}

// Announceable reports whether the event's leaderboard has at least min
// recorded standings. A #1 on a board nobody else has attempted is not
// worth announcing. On query failure the gate fails open: a dropped
// legitimate record costs more than an occasional trivial announcement.
func Announceable(ctx context.Context, src StandingsSource, ev hexapi.ScoreEvent, min int) bool {
	standings, err := src.Leaderboard(ctx, ev.Pack, ev.Level, ev.LevelOptions)
	if err != nil {
		slog.Warn("leaderboard depth check failed, announcing anyway",
			slog.String("pack", ev.Pack), slog.String("level", ev.Level), slog.Any("err", err))
		return true
	}
	return len(standings) >= min
}
