// Package state defines the persisted pipeline record and a JSON file
// store with atomic-replace semantics. The record ties together the last
// poll timestamp, recent announcements, the video attachment queue, and
// channel subscriptions; the poll loop loads it at cycle start and writes
// it back once at cycle end.
package state

import (
	"time"
)

// LevelOptions is the structured level key sent by the scoring server.
// Two events belong to the same leaderboard only when their options match.
type LevelOptions struct {
	DifficultyMult float64 `json:"difficulty_mult"`
}

// GroupKey identifies one scoring configuration: a specific level of a
// specific pack played at specific options. Comparable, used as the
// merge/supersession identity throughout the pipeline.
type GroupKey struct {
	Pack    string       `json:"pack"`
	Level   string       `json:"level"`
	Options LevelOptions `json:"level_options"`
}

// MessageRef is one platform message handle of an announcement: the same
// logical announcement is mirrored into every subscribed channel.
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// Announcement is the logical record of one posted (possibly merged)
// message. Player and Value track the latest contributing event. Open
// announcements may still absorb merges; closed ones remain here only so
// the recent-record command can find them until they age out.
type Announcement struct {
	ID        string       `json:"id"`
	Key       GroupKey     `json:"key"`
	Player    string       `json:"player"`
	Value     float64      `json:"value"`
	LastEvent int64        `json:"last_event_ts"`
	Text      string       `json:"text"`
	Messages  []MessageRef `json:"messages"`
	Open      bool         `json:"open"`
}

// VideoQueueEntry is one announcement waiting for its replay video to be
// rendered. Entries drain strictly from the head; a later record for the
// same group key supersedes an earlier pending one.
type VideoQueueEntry struct {
	Key        GroupKey     `json:"key"`
	Player     string       `json:"player"`
	Value      float64      `json:"value"`
	Position   int          `json:"position"`
	ReplayHash string       `json:"replay_hash"`
	Timestamp  int64        `json:"timestamp"`
	Messages   []MessageRef `json:"messages"`
}

// SubscribedChannel is a channel that receives record announcements.
type SubscribedChannel struct {
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
}

// State is the single durable record. A missing or unreadable file loads
// as the zero state returned by Default.
type State struct {
	LastPoll      int64               `json:"last_poll_timestamp"`
	RecentScores  []Announcement      `json:"recent_scores"`
	VideoQueue    []VideoQueueEntry   `json:"video_queue"`
	Subscriptions []SubscribedChannel `json:"subscribed_channels"`
}

// Default returns an empty state with every collection allocated.
func Default() *State {
	return &State{
		RecentScores:  []Announcement{},
		VideoQueue:    []VideoQueueEntry{},
		Subscriptions: []SubscribedChannel{},
	}
}

// Subscribe adds a channel to the subscription set. It reports whether
// the set changed; subscribing an already-subscribed channel is a no-op.
func (s *State) Subscribe(channelID, guildID string) bool {
	for _, c := range s.Subscriptions {
		if c.ChannelID == channelID {
			return false
		}
	}
	s.Subscriptions = append(s.Subscriptions, SubscribedChannel{ChannelID: channelID, GuildID: guildID})
	return true
}

// Unsubscribe removes a channel from the subscription set. Removing a
// channel that is not subscribed is a no-op.
func (s *State) Unsubscribe(channelID string) bool {
	for i, c := range s.Subscriptions {
		if c.ChannelID == channelID {
			s.Subscriptions = append(s.Subscriptions[:i], s.Subscriptions[i+1:]...)
			return true
		}
	}
	return false
}

// OpenAnnouncement returns the open announcement for key, if any.
func (s *State) OpenAnnouncement(key GroupKey) *Announcement {
	for i := range s.RecentScores {
		a := &s.RecentScores[i]
		if a.Open && a.Key == key {
			return a
		}
	}
	return nil
}

// ExpireOpen closes every open announcement whose last activity is more
// than window before now. Closed announcements stay in RecentScores for
// the recent-record command until pruned.
func (s *State) ExpireOpen(now int64, window time.Duration) {
	w := int64(window.Seconds())
	for i := range s.RecentScores {
		a := &s.RecentScores[i]
		if a.Open && now-a.LastEvent > w {
			a.Open = false
		}
	}
}

// Prune drops announcements older than the lookback window. Video queue
// entries carry their own message handles, so pruning never interferes
// with pending enrichment.
func (s *State) Prune(now int64, lookback time.Duration) {
	w := int64(lookback.Seconds())
	kept := s.RecentScores[:0]
	for _, a := range s.RecentScores {
		if now-a.LastEvent <= w {
			kept = append(kept, a)
		}
	}
	s.RecentScores = kept
}
