// Package pipeline turns the raw score-event stream into deduplicated,
// mergeable, eventually video-enriched channel announcements. One cycle:
// load state, pull new events, keep the records, gate on leaderboard
// depth, resolve metadata, merge-or-open announcements, fan out to
// channels, drain the video queue, persist state atomically. Cycles are
// serialized; the persisted snapshot is the only thing shared between them.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/onnwee/record-herald/catalog"
	"github.com/onnwee/record-herald/hexapi"
	"github.com/onnwee/record-herald/state"
	"github.com/onnwee/record-herald/telemetry"
)

// ScoringClient is the slice of the scoring server the pipeline needs.
type ScoringClient interface {
	NewestScores(ctx context.Context, sinceSeconds int64) ([]hexapi.ScoreEvent, error)
	StandingsSource
	VideoProber
}

// ChatPublisher mirrors announcement text across subscribed channels and
// lets the video queue rewrite what was posted.
type ChatPublisher interface {
	Broadcast(channels []state.SubscribedChannel, text string) []state.MessageRef
	MessageEditor
}

// Pipeline wires the cycle together. Interval also bounds the first poll
// window when no timestamp has ever been persisted.
type Pipeline struct {
	Scoring      ScoringClient
	Catalog      *catalog.Cache
	Chat         ChatPublisher
	Store        *state.Store
	Publisher    Publisher
	Interval     time.Duration
	MinStandings int
	Lookback     time.Duration

	// Now is a clock seam for tests; nil means time.Now.
	Now func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Start runs poll cycles at a fixed interval until ctx is done. Cycles
// never overlap: a slow cycle simply delays the next tick.
func (p *Pipeline) Start(ctx context.Context) {
	slog.Info("record poll job starting", slog.Duration("interval", p.Interval))
	if err := p.RunCycle(ctx); err != nil {
		slog.Warn("poll cycle", slog.Any("err", err))
	}
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("record poll job stopped")
			return
		case <-ticker.C:
			telemetry.TimeFunc(telemetry.CycleDuration, func() {
				if err := p.RunCycle(ctx); err != nil {
					slog.Warn("poll cycle", slog.Any("err", err))
				}
			})
		}
	}
}

// RunCycle executes one full pipeline cycle. State is loaded once at the
// start and written once at the end; a failure before the write leaves
// the previous snapshot authoritative, so the lost interval is re-polled
// next cycle (at-least-once delivery, deduplicated by the merge window).
func (p *Pipeline) RunCycle(ctx context.Context) error {
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "poll_cycle")
	defer span.End()
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "poll"))
	telemetry.PollCycles.Inc()

	now := p.now()
	st, err := p.Store.Load()
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	since := int64(p.Interval.Seconds())
	if st.LastPoll > 0 {
		since = now.Unix() - st.LastPoll
		if since < 1 {
			since = 1
		}
	} else {
		logger.Warn("no persisted poll timestamp, scores may be missed", slog.Int64("window_seconds", since))
	}

	events, err := p.Scoring.NewestScores(ctx, since)
	if err != nil {
		// Transient: state untouched, the same window is re-polled next cycle.
		logger.Warn("newest scores fetch failed", slog.Any("err", err))
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.ScoresSeen.Add(float64(len(events)))
	records := FilterRecords(events)
	logger.Info("scores fetched", slog.Int("events", len(events)), slog.Int("records", len(records)), slog.Int64("window_seconds", since))

	for _, ev := range records {
		p.announce(ctx, logger, st, ev)
	}

	DrainVideoQueue(ctx, st, p.Scoring, p.Chat)

	st.ExpireOpen(now.Unix(), p.Publisher.Window)
	st.Prune(now.Unix(), p.Lookback)
	st.LastPoll = now.Unix()
	telemetry.SetQueueDepth(len(st.VideoQueue))
	telemetry.SetSubscribedChannels(len(st.Subscriptions))

	if err := p.Store.Save(st); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetSpanSuccess(span)
	return nil
}

// announce runs one record event through gate, metadata, publisher, and
// fan-out. Failures drop or degrade this event only; the rest of the
// batch is unaffected.
func (p *Pipeline) announce(ctx context.Context, logger *slog.Logger, st *state.State, ev hexapi.ScoreEvent) {
	if !Announceable(ctx, p.Scoring, ev, p.MinStandings) {
		logger.Debug("record below standings threshold, skipping",
			slog.String("pack", ev.Pack), slog.String("level", ev.Level), slog.String("player", ev.UserName))
		return
	}
	meta, err := p.Catalog.Resolve(ctx, ev.Pack, ev.Level, ev.LevelOptions.DifficultyMult)
	if err != nil {
		telemetry.MetadataLookupsDropped.Inc()
		logger.Warn("dropping record, metadata unresolved",
			slog.String("pack", ev.Pack), slog.String("level", ev.Level), slog.Any("err", err))
		return
	}

	line := RenderLine(meta, ev)
	ann, opened := p.Publisher.Apply(st, ev, line)
	if opened {
		ann.Messages = p.Chat.Broadcast(st.Subscriptions, ann.Text)
		telemetry.RecordsAnnounced.Inc()
		logger.Info("record announced",
			slog.String("pack", ev.Pack), slog.String("level", ev.Level),
			slog.String("player", ev.UserName), slog.Int("channels", len(ann.Messages)))
	} else {
		for _, ref := range ann.Messages {
			if err := p.Chat.Edit(ref, ann.Text); err != nil {
				logger.Error("announcement merge edit failed",
					slog.String("channel_id", ref.ChannelID), slog.String("message_id", ref.MessageID), slog.Any("err", err))
			}
		}
		telemetry.AnnouncementsMerged.Inc()
		logger.Info("record merged into open announcement",
			slog.String("pack", ev.Pack), slog.String("level", ev.Level), slog.String("player", ev.UserName))
	}

	if ev.Position == 1 {
		st.VideoQueue = append(st.VideoQueue, state.VideoQueueEntry{
			Key:        groupKeyOf(ev),
			Player:     ev.UserName,
			Value:      ev.Value,
			Position:   ev.Position,
			ReplayHash: ev.ReplayHash,
			Timestamp:  ev.Timestamp,
			Messages:   ann.Messages,
		})
	}
}

// Recent returns the rendered text of the announcement holding the most
// recent record within the lookback window, optionally filtered by
// player. A merge moves an older announcement's LastEvent forward, so
// recency is judged by LastEvent, not by append order. The second
// return is false when nothing matches.
func (p *Pipeline) Recent(player string) (string, bool) {
	st, err := p.Store.Load()
	if err != nil {
		slog.Error("recent lookup: state load failed", slog.Any("err", err))
		return "", false
	}
	cutoff := p.now().Unix() - int64(p.Lookback.Seconds())
	best := -1
	for i := range st.RecentScores {
		a := st.RecentScores[i]
		if a.LastEvent < cutoff {
			continue
		}
		if player != "" && !strings.EqualFold(a.Player, player) {
			continue
		}
		if best < 0 || a.LastEvent >= st.RecentScores[best].LastEvent {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return st.RecentScores[best].Text, true
}
