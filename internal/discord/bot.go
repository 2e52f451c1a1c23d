package discord

import (
	"context"
	"fmt"
	"time"

	"TiltifyBot/api"
	"TiltifyBot/db"
	"TiltifyBot/tracker"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const embedColor = 0x1f9ee6

// Handler runs a parsed command.
type Handler interface {
	Dispatch(ctx context.Context, caller api.Caller, cmd api.Command) api.Response
}

// Bot is the gateway session. It is the notification sink and the status
// sink, and feeds interactions to a Handler once Serve is called.
type Bot struct {
	session *discordgo.Session
	appID   string
	log     *zap.Logger
}

// Open connects to the gateway.
func Open(token, appID string, log *zap.Logger) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	return &Bot{session: s, appID: appID, log: log.Named("discord")}, nil
}

// Serve registers the global commands and handles interactions until ctx is
// done, then closes the session.
func (b *Bot) Serve(ctx context.Context, h Handler) error {
	if _, err := b.session.ApplicationCommandBulkOverwrite(b.appID, "", Commands()); err != nil {
		if cerr := b.session.Close(); cerr != nil {
			b.log.Warn("failed to close session", zap.Error(cerr))
		}
		return fmt.Errorf("discord: register commands: %w", err)
	}
	b.log.Info("global command check complete, the bot is now online")

	remove := b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		b.handle(ctx, h, i.Interaction)
	})
	defer remove()

	<-ctx.Done()
	return b.session.Close()
}

func (b *Bot) handle(ctx context.Context, h Handler, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	log := b.log.With(zap.String("guild", i.GuildID), zap.String("command", data.Name))

	err := b.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		log.Error("failed to defer interaction", zap.Error(err))
		return
	}

	var resp api.Response
	cmd, err := ParseCommand(data)
	if err != nil {
		resp = api.Response{Content: api.ErrorMessage(err)}
	} else {
		resp = h.Dispatch(ctx, callerOf(i), cmd)
	}

	edit := &discordgo.WebhookEdit{}
	if resp.Content != "" {
		edit.Content = &resp.Content
	}
	if resp.Embed != nil {
		embeds := []*discordgo.MessageEmbed{toMessageEmbed(*resp.Embed)}
		edit.Embeds = &embeds
	}
	if _, err := b.session.InteractionResponseEdit(i, edit); err != nil {
		log.Error("failed to send command response", zap.Error(err))
	}
}

func callerOf(i *discordgo.Interaction) api.Caller {
	c := api.Caller{GuildID: i.GuildID, ChannelID: i.ChannelID}
	if i.Member != nil {
		c.CanManage = i.Member.Permissions&discordgo.PermissionManageChannels != 0
	}
	if ts, err := discordgo.SnowflakeTimestamp(i.ID); err == nil {
		c.InvokedAt = ts
	}
	return c
}

// Notify posts a donation embed.
func (b *Bot) Notify(_ context.Context, channelID string, embed tracker.Embed) error {
	if _, err := b.session.ChannelMessageSendEmbed(channelID, toMessageEmbed(embed)); err != nil {
		return fmt.Errorf("discord: send embed to %s: %w", channelID, err)
	}
	return nil
}

// PublishStatus sets the watching status to the active campaign count.
func (b *Bot) PublishStatus(_ context.Context, stats db.Stats) error {
	return b.session.UpdateWatchStatus(0, fmt.Sprintf("%d campaigns...", stats.ActiveCampaigns))
}

func toMessageEmbed(e tracker.Embed) *discordgo.MessageEmbed {
	m := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		URL:         e.URL,
		Color:       embedColor,
	}
	if e.ThumbnailURL != "" {
		m.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.ThumbnailURL}
	}
	for _, f := range e.Fields {
		m.Fields = append(m.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value})
	}
	if e.FooterText != "" {
		m.Footer = &discordgo.MessageEmbedFooter{Text: e.FooterText}
	}
	if !e.Timestamp.IsZero() {
		m.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	return m
}
