package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/onnwee/record-herald/hexapi"
	"github.com/onnwee/record-herald/state"
)

// Publisher applies the merge-window policy: successive records for the
// same group key within Window grow one announcement instead of spawning
// new messages, except when a different player overtakes with a strictly
// greater value, in which case the overtaken announcement is closed
// untouched and a fresh one opened for the new holder.
type Publisher struct {
	Window time.Duration
}

// groupKeyOf converts a wire event's identity into the persisted key.
func groupKeyOf(ev hexapi.ScoreEvent) state.GroupKey {
	return state.GroupKey{
		Pack:    ev.Pack,
		Level:   ev.Level,
		Options: state.LevelOptions{DifficultyMult: ev.LevelOptions.DifficultyMult},
	}
}

// Apply routes one qualifying event into the open-announcement set of st.
// It returns the affected announcement and true when the event opened a
// new announcement (requiring a send) rather than merging into an
// existing one (requiring an edit). The returned pointer aliases into
// st.RecentScores; callers attach message handles through it.
func (p *Publisher) Apply(st *state.State, ev hexapi.ScoreEvent, line string) (*state.Announcement, bool) {
	st.ExpireOpen(ev.Timestamp, p.Window)

	key := groupKeyOf(ev)
	if open := st.OpenAnnouncement(key); open != nil {
		if open.Player != ev.UserName && ev.Value > open.Value {
			// A competing player overtook within the window. The credited
			// announcement is never rewritten under someone else's name;
			// close it and start a new one.
			open.Open = false
		} else {
			open.Text = AppendLine(open.Text, line)
			open.Player = ev.UserName
			open.Value = ev.Value
			open.LastEvent = ev.Timestamp
			return open, false
		}
	}

	st.RecentScores = append(st.RecentScores, state.Announcement{
		ID:        uuid.NewString(),
		Key:       key,
		Player:    ev.UserName,
		Value:     ev.Value,
		LastEvent: ev.Timestamp,
		Text:      line,
		Messages:  []state.MessageRef{},
		Open:      true,
	})
	return &st.RecentScores[len(st.RecentScores)-1], true
}
