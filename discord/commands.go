package discord

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/onnwee/record-herald/state"
)

const noRecentScores = "No recent scores."

// Commands implements the subscribe/unsubscribe/recent command surface.
// Subscription mutations persist immediately through their own
// load-modify-store; when a poll cycle is mid-flight the write that lands
// last wins, and a change can be observed one cycle late. That race is
// accepted rather than locked around.
type Commands struct {
	Store *state.Store

	// Recent looks up the latest qualifying record, optionally filtered
	// by player. Wired to pipeline.Recent.
	Recent func(player string) (string, bool)
}

var commandDefs = []*discordgo.ApplicationCommand{
	{
		Name:        "subscribe",
		Description: "Announce new world records in this channel",
	},
	{
		Name:        "unsubscribe",
		Description: "Stop announcing world records in this channel",
	},
	{
		Name:        "recent",
		Description: "Show the most recent world record",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "player",
				Description: "Only show records by this player",
				Required:    false,
			},
		},
	},
}

// Register installs the interaction handler and creates the global
// application commands. Call after the session is open.
func (c *Commands) Register(s *discordgo.Session) error {
	s.AddHandler(c.handleInteraction)
	for _, def := range commandDefs {
		if _, err := s.ApplicationCommandCreate(s.State.User.ID, "", def); err != nil {
			return fmt.Errorf("register command %s: %w", def.Name, err)
		}
	}
	slog.Info("commands registered", slog.Int("count", len(commandDefs)))
	return nil
}

func (c *Commands) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	var reply string
	switch data.Name {
	case "subscribe":
		reply = c.subscribe(i)
	case "unsubscribe":
		reply = c.unsubscribe(i)
	case "recent":
		player := ""
		for _, opt := range data.Options {
			if opt.Name == "player" {
				player = opt.StringValue()
			}
		}
		reply = c.recent(player)
	default:
		return
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: reply},
	}); err != nil {
		slog.Error("interaction respond failed", slog.String("command", data.Name), slog.Any("err", err))
	}
}

// canManageGuild gates subscription changes on the Manage Server permission.
func canManageGuild(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionManageServer != 0
}

func (c *Commands) subscribe(i *discordgo.InteractionCreate) string {
	if !canManageGuild(i) {
		return "You need the Manage Server permission to do that."
	}
	st, err := c.Store.Load()
	if err != nil {
		slog.Error("subscribe: state load failed", slog.Any("err", err))
		return "Subscription storage is unavailable right now."
	}
	changed := st.Subscribe(i.ChannelID, i.GuildID)
	if err := c.Store.Save(st); err != nil {
		slog.Error("subscribe: state save failed", slog.Any("err", err))
		return "Subscription storage is unavailable right now."
	}
	if !changed {
		return "This channel is already subscribed."
	}
	slog.Info("channel subscribed", slog.String("channel_id", i.ChannelID), slog.String("guild_id", i.GuildID))
	return "New world records will be announced in this channel."
}

func (c *Commands) unsubscribe(i *discordgo.InteractionCreate) string {
	if !canManageGuild(i) {
		return "You need the Manage Server permission to do that."
	}
	st, err := c.Store.Load()
	if err != nil {
		slog.Error("unsubscribe: state load failed", slog.Any("err", err))
		return "Subscription storage is unavailable right now."
	}
	changed := st.Unsubscribe(i.ChannelID)
	if err := c.Store.Save(st); err != nil {
		slog.Error("unsubscribe: state save failed", slog.Any("err", err))
		return "Subscription storage is unavailable right now."
	}
	if !changed {
		return "This channel was not subscribed."
	}
	slog.Info("channel unsubscribed", slog.String("channel_id", i.ChannelID))
	return "This channel will no longer receive record announcements."
}

func (c *Commands) recent(player string) string {
	if c.Recent == nil {
		return noRecentScores
	}
	text, ok := c.Recent(player)
	if !ok {
		return noRecentScores
	}
	return text
}
