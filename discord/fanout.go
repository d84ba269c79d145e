// Package discord binds the pipeline to the Discord chat platform: the
// announcement fan-out across subscribed channels and the slash-command
// surface for managing subscriptions.
package discord

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/onnwee/record-herald/state"
)

// Messenger is the slice of the discordgo session the fan-out needs.
// *discordgo.Session satisfies it; tests substitute a fake.
type Messenger interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Fanout mirrors one logical announcement across every subscribed
// channel and resolves message handles back to live text for edits.
type Fanout struct {
	Session Messenger
}

// Broadcast sends text to every subscribed channel and returns the
// handles of the messages that were actually posted. A channel that is
// gone or inaccessible is logged and skipped; the rest still receive the
// announcement.
func (f *Fanout) Broadcast(channels []state.SubscribedChannel, text string) []state.MessageRef {
	refs := make([]state.MessageRef, 0, len(channels))
	for _, ch := range channels {
		msg, err := f.Session.ChannelMessageSend(ch.ChannelID, text)
		if err != nil {
			slog.Error("channel send failed, skipping channel",
				slog.String("channel_id", ch.ChannelID), slog.String("guild_id", ch.GuildID), slog.Any("err", err))
			continue
		}
		refs = append(refs, state.MessageRef{ChannelID: ch.ChannelID, MessageID: msg.ID})
	}
	return refs
}

// Fetch returns the live content of a previously posted message.
func (f *Fanout) Fetch(ref state.MessageRef) (string, error) {
	msg, err := f.Session.ChannelMessage(ref.ChannelID, ref.MessageID)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// Edit overwrites the content of a previously posted message.
func (f *Fanout) Edit(ref state.MessageRef, text string) error {
	_, err := f.Session.ChannelMessageEdit(ref.ChannelID, ref.MessageID, text)
	return err
}
