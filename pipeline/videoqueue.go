package pipeline

import (
	"context"
	"log/slog"

	"github.com/onnwee/record-herald/state"
	"github.com/onnwee/record-herald/telemetry"
)

// VideoProber checks replay video readiness (implemented by hexapi.Client).
type VideoProber interface {
	VideoReady(ctx context.Context, replayHash string) (bool, error)
	VideoURL(replayHash string) string
}

// MessageEditor fetches and rewrites previously posted messages.
type MessageEditor interface {
	Fetch(ref state.MessageRef) (string, error)
	Edit(ref state.MessageRef, text string) error
}

// DrainVideoQueue processes the queue strictly from the head. Per entry:
// a later queued record for the same group key supersedes the head (it is
// dropped without any message edit); otherwise the replay video is
// probed. A probe transport error aborts draining for this cycle with the
// queue untouched, so the check is retried next cycle without reordering.
// A not-yet-ready head also stops draining: later entries are not probed,
// which keeps enrichment in arrival order and bounds probe traffic.
func DrainVideoQueue(ctx context.Context, st *state.State, prober VideoProber, chat MessageEditor) {
	for len(st.VideoQueue) > 0 {
		head := st.VideoQueue[0]
		if supersededByLater(st.VideoQueue) {
			telemetry.AnnouncementsSuperseded.Inc()
			slog.Info("queued record superseded before video, dropping",
				slog.String("pack", head.Key.Pack), slog.String("level", head.Key.Level),
				slog.String("player", head.Player), slog.String("component", "video_queue"))
			st.VideoQueue = st.VideoQueue[1:]
			continue
		}
		ready, err := prober.VideoReady(ctx, head.ReplayHash)
		if err != nil {
			telemetry.VideoProbeFailures.Inc()
			slog.Warn("video probe failed, deferring queue drain",
				slog.String("replay", head.ReplayHash), slog.Any("err", err), slog.String("component", "video_queue"))
			return
		}
		if !ready {
			return
		}
		attachVideo(head, prober.VideoURL(head.ReplayHash), chat)
		telemetry.VideosAttached.Inc()
		st.VideoQueue = st.VideoQueue[1:]
	}
}

// supersededByLater reports whether a later rank-1 entry shares the
// head's group key, making the head's enrichment pointless.
func supersededByLater(q []state.VideoQueueEntry) bool {
	head := q[0]
	if head.Position != 1 {
		return false
	}
	for _, e := range q[1:] {
		if e.Position == 1 && e.Key == head.Key {
			return true
		}
	}
	return false
}

// attachVideo rewrites every mirrored message of the entry, wrapping the
// value token in a link to the replay video. A channel whose message can
// no longer be fetched or edited is logged and skipped; the others still
// get their link.
func attachVideo(e state.VideoQueueEntry, url string, chat MessageEditor) {
	for _, ref := range e.Messages {
		text, err := chat.Fetch(ref)
		if err != nil {
			slog.Error("fetch message for video attach failed",
				slog.String("channel_id", ref.ChannelID), slog.String("message_id", ref.MessageID),
				slog.Any("err", err), slog.String("component", "video_queue"))
			continue
		}
		updated := EmbedVideoLink(text, e.Player, e.Value, url)
		if updated == text {
			continue
		}
		if err := chat.Edit(ref, updated); err != nil {
			slog.Error("edit message for video attach failed",
				slog.String("channel_id", ref.ChannelID), slog.String("message_id", ref.MessageID),
				slog.Any("err", err), slog.String("component", "video_queue"))
		}
	}
	slog.Info("replay video attached",
		slog.String("pack", e.Key.Pack), slog.String("level", e.Key.Level),
		slog.String("player", e.Player), slog.String("component", "video_queue"))
}
