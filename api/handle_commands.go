package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"TiltifyBot/db"
	"TiltifyBot/tiltify"
	"TiltifyBot/tracker"
	"TiltifyBot/utils"

	"go.uber.org/zap"
)

// GuildStore is the persistence the dispatcher needs beyond the engine.
type GuildStore interface {
	CreateGuildConfig(ctx context.Context, guild *db.GuildConfig) error
	GetGuildConfig(ctx context.Context, guildID string) (*db.GuildConfig, error)
	DeleteGuildConfig(ctx context.Context, guildID string) error
}

// StatusRefresher republishes aggregate counts after campaign changes.
type StatusRefresher interface {
	RefreshStatus(ctx context.Context) error
}

type Dispatcher struct {
	store  GuildStore
	engine *tracker.Engine
	fetch  tiltify.Fetcher
	status StatusRefresher
	log    *zap.Logger
	now    func() time.Time
}

func NewDispatcher(store GuildStore, engine *tracker.Engine, fetch tiltify.Fetcher, status StatusRefresher, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		engine: engine,
		fetch:  fetch,
		status: status,
		log:    log.Named("commands"),
		now:    time.Now,
	}
}

// Dispatch runs one command and always produces exactly one response.
func (d *Dispatcher) Dispatch(ctx context.Context, caller Caller, cmd Command) Response {
	resp, err := d.dispatch(ctx, caller, cmd)
	if err != nil {
		d.log.Info("command rejected",
			zap.String("command", cmd.Name()),
			zap.String("guild", caller.GuildID),
			zap.Error(err))
		return Response{Content: ErrorMessage(err)}
	}
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, caller Caller, cmd Command) (Response, error) {
	if !caller.CanManage {
		return Response{}, ErrPermission
	}

	switch c := cmd.(type) {
	case Ping:
		return d.ping(caller), nil
	case Setup:
		return d.setup(ctx, caller, c)
	case Toggle:
		return d.toggle(ctx, caller, c)
	case Add:
		return d.add(ctx, caller, c)
	case Remove:
		return d.remove(ctx, caller, c)
	case List:
		return d.list(ctx, caller)
	case Channel:
		return d.channel(ctx, caller, c)
	case Refresh:
		return d.refresh(ctx, caller)
	case Delete:
		return d.delete(ctx, caller)
	case Find:
		return d.find(ctx, caller, c)
	case AllowInactive:
		return d.allowInactive(ctx, caller, c)
	default:
		return Response{}, fmt.Errorf("%w: command %s", ErrInvalidOption, cmd.Name())
	}
}

func (d *Dispatcher) ping(caller Caller) Response {
	elapsed := d.now().Sub(caller.InvokedAt)
	if caller.InvokedAt.IsZero() || elapsed < 0 {
		elapsed = 0
	}
	return Response{Content: fmt.Sprintf(pingFormat, elapsed.Milliseconds())}
}

func (d *Dispatcher) setup(ctx context.Context, caller Caller, c Setup) (Response, error) {
	if _, err := d.store.GetGuildConfig(ctx, caller.GuildID); err == nil {
		return Response{}, ErrAlreadySetUp
	} else if !errors.Is(err, db.ErrGuildNotFound) {
		return Response{}, err
	}

	guild := &db.GuildConfig{
		GuildID:               caller.GuildID,
		NotificationChannelID: caller.ChannelID,
		IsActive:              false,
		TrackingMode:          tracker.ModeForResource(c.Type),
	}

	var content string
	switch c.Type {
	case tiltify.Campaigns:
		campaign, err := tiltify.GetCampaign(ctx, d.fetch, c.ID)
		if err != nil {
			return Response{}, err
		}
		if campaign.Retired() {
			return Response{}, reject(ErrCampaignRetired, campaign.Name)
		}
		rec, _ := d.engine.Builder().Build(ctx, campaign)
		tracker.Plan{tracker.AddCampaign{Record: rec}}.Apply(guild)
		content = fmt.Sprintf(setupCampaignFormat, campaign.Name)

	case tiltify.Teams, tiltify.Causes, tiltify.FundraisingEvents:
		entity, err := tiltify.GetEntity(ctx, d.fetch, c.Type, c.ID)
		if err != nil {
			return Response{}, err
		}
		if entity.Disbanded {
			return Response{}, reject(ErrTeamDisbanded, entity.DisplayName())
		}
		guild.LinkedEntityID = c.ID
		plan, err := d.engine.Discover(ctx, c.Type, c.ID, guild)
		if err != nil {
			return Response{}, err
		}
		res := plan.Apply(guild)
		content = fmt.Sprintf(setupEntityFormat, guild.TrackingMode, entity.DisplayName(), res.Added)

	default:
		return Response{}, fmt.Errorf("%w: setup type %q", ErrInvalidOption, c.Type)
	}

	if err := d.store.CreateGuildConfig(ctx, guild); err != nil {
		if errors.Is(err, db.ErrGuildExists) {
			return Response{}, ErrAlreadySetUp
		}
		return Response{}, err
	}
	d.log.Info("guild set up",
		zap.String("guild", caller.GuildID),
		zap.String("mode", guild.TrackingMode),
		zap.Int("campaigns", len(guild.Campaigns)))
	d.refreshStatus(ctx)
	return Response{Content: content}, nil
}

func (d *Dispatcher) toggle(ctx context.Context, caller Caller, c Toggle) (Response, error) {
	_, err := d.update(ctx, caller.GuildID, func(g *db.GuildConfig) (bool, error) {
		changed := g.IsActive != c.Start
		g.IsActive = c.Start
		return changed, nil
	})
	if err != nil {
		return Response{}, err
	}
	if c.Start {
		return Response{Content: enabledMessage}, nil
	}
	return Response{Content: disabledMessage}, nil
}

func (d *Dispatcher) add(ctx context.Context, caller Caller, c Add) (Response, error) {
	current, err := d.guild(ctx, caller.GuildID)
	if err != nil {
		return Response{}, err
	}
	if current.Campaign(c.ID) != nil {
		return Response{}, reject(ErrCampaignTracked, current.Campaign(c.ID).DisplayName)
	}

	campaign, err := tiltify.GetCampaign(ctx, d.fetch, c.ID)
	if err != nil {
		return Response{}, err
	}
	rec, _ := d.engine.Builder().Build(ctx, campaign)

	_, err = d.update(ctx, caller.GuildID, func(g *db.GuildConfig) (bool, error) {
		if g.Campaign(rec.RemoteCampaignID) != nil {
			return false, reject(ErrCampaignTracked, campaign.Name)
		}
		if campaign.Retired() && !g.AllowInactiveCampaigns {
			return false, reject(ErrCampaignRetired, campaign.Name)
		}
		res := tracker.Plan{tracker.AddCampaign{Record: rec, Retired: campaign.Retired()}}.Apply(g)
		return res.Changed, nil
	})
	if err != nil {
		return Response{}, err
	}
	d.refreshStatus(ctx)
	return Response{Content: fmt.Sprintf(addedFormat, campaign.Name)}, nil
}

func (d *Dispatcher) remove(ctx context.Context, caller Caller, c Remove) (Response, error) {
	var name string
	_, err := d.update(ctx, caller.GuildID, func(g *db.GuildConfig) (bool, error) {
		if len(g.Campaigns) <= 1 {
			return false, ErrLastCampaign
		}
		for i, rec := range g.Campaigns {
			if rec.RemoteCampaignID == c.ID {
				name = rec.DisplayName
				g.Campaigns = append(g.Campaigns[:i], g.Campaigns[i+1:]...)
				return true, nil
			}
		}
		return false, reject(ErrCampaignNotTracked, c.ID)
	})
	if err != nil {
		return Response{}, err
	}
	d.refreshStatus(ctx)
	return Response{Content: fmt.Sprintf(removedFormat, name)}, nil
}

func (d *Dispatcher) list(ctx context.Context, caller Caller) (Response, error) {
	g, err := d.guild(ctx, caller.GuildID)
	if err != nil {
		return Response{}, err
	}
	if len(g.Campaigns) == 0 {
		return Response{Content: listEmptyMessage}, nil
	}

	state := "disabled"
	if g.IsActive {
		state = "enabled"
	}
	embed := &tracker.Embed{
		Title:       listTitle,
		Description: fmt.Sprintf("Donations are %s, posting to <#%s>.", state, g.NotificationChannelID),
		URL:         tiltifySiteURL,
		Timestamp:   d.now(),
	}
	for _, rec := range g.Campaigns {
		status := "Active"
		if !rec.IsActive {
			status = "Inactive"
		}
		var value strings.Builder
		fmt.Fprintf(&value, "ID: %s\nTeam: %s\n", rec.RemoteCampaignID, rec.TeamName)
		if rec.CauseName != "" {
			fmt.Fprintf(&value, "Cause: %s\n", rec.CauseName)
		}
		value.WriteString("Status: " + status)
		embed.Fields = append(embed.Fields, tracker.EmbedField{Name: rec.DisplayName, Value: value.String()})
	}
	return Response{Embed: embed}, nil
}

func (d *Dispatcher) channel(ctx context.Context, caller Caller, c Channel) (Response, error) {
	if c.ChannelID == "" {
		return Response{}, fmt.Errorf("%w: empty channel", ErrInvalidOption)
	}
	_, err := d.update(ctx, caller.GuildID, func(g *db.GuildConfig) (bool, error) {
		changed := g.NotificationChannelID != c.ChannelID
		g.NotificationChannelID = c.ChannelID
		return changed, nil
	})
	if err != nil {
		return Response{}, err
	}
	d.log.Info("notification channel changed", zap.String("guild", caller.GuildID), zap.String("channel", c.ChannelID))
	return Response{Content: fmt.Sprintf(channelFormat, c.ChannelID)}, nil
}

func (d *Dispatcher) refresh(ctx context.Context, caller Caller) (Response, error) {
	if _, err := d.engine.RefreshGuild(ctx, caller.GuildID); err != nil {
		return Response{}, notSetUp(err)
	}
	d.refreshStatus(ctx)
	return Response{Content: refreshedMessage}, nil
}

func (d *Dispatcher) delete(ctx context.Context, caller Caller) (Response, error) {
	if err := d.store.DeleteGuildConfig(ctx, caller.GuildID); err != nil {
		return Response{}, notSetUp(err)
	}
	d.log.Info("guild deleted", zap.String("guild", caller.GuildID))
	d.refreshStatus(ctx)
	return Response{Content: deletedMessage}, nil
}

func (d *Dispatcher) find(ctx context.Context, caller Caller, c Find) (Response, error) {
	if _, err := d.guild(ctx, caller.GuildID); err != nil {
		return Response{}, err
	}

	var label string
	switch c.Type {
	case tiltify.Users:
		label = "User ID: "
	case tiltify.Teams:
		label = "Team ID: "
	case tiltify.Causes:
		label = "Cause ID: "
	case tiltify.FundraisingEvents:
		label = "Event ID: "
	default:
		return Response{}, fmt.Errorf("%w: find type %q", ErrInvalidOption, c.Type)
	}

	notFound := Response{Content: fmt.Sprintf(queryNotFoundFormat, c.Query)}
	var statusErr *tiltify.StatusError

	entity, err := tiltify.GetEntity(ctx, d.fetch, c.Type, utils.ConvertToSlug(c.Query))
	if errors.As(err, &statusErr) {
		return notFound, nil
	} else if err != nil {
		return Response{}, err
	}
	campaigns, err := tiltify.EntityCampaigns(ctx, d.fetch, c.Type, string(entity.ID))
	if errors.As(err, &statusErr) {
		return notFound, nil
	} else if err != nil {
		return Response{}, err
	}

	embed := &tracker.Embed{
		Title:       utils.TitleCase(entity.DisplayName()) + "'s Active Campaigns",
		Description: label + string(entity.ID),
		URL:         tiltifySiteURL,
		Timestamp:   d.now(),
	}
	for _, campaign := range campaigns {
		if campaign.Retired() {
			continue
		}
		embed.Fields = append(embed.Fields, tracker.EmbedField{Name: campaign.Name, Value: "ID: " + string(campaign.ID)})
	}
	if len(embed.Fields) == 0 {
		return Response{Content: fmt.Sprintf(noActiveFormat, c.Query)}, nil
	}
	return Response{Embed: embed}, nil
}

func (d *Dispatcher) allowInactive(ctx context.Context, caller Caller, c AllowInactive) (Response, error) {
	_, err := d.update(ctx, caller.GuildID, func(g *db.GuildConfig) (bool, error) {
		changed := g.AllowInactiveCampaigns != c.Enabled
		g.AllowInactiveCampaigns = c.Enabled
		return changed, nil
	})
	if err != nil {
		return Response{}, err
	}
	if c.Enabled {
		return Response{Content: allowInactiveMessage}, nil
	}
	return Response{Content: denyInactiveMessage}, nil
}

func (d *Dispatcher) guild(ctx context.Context, guildID string) (*db.GuildConfig, error) {
	g, err := d.store.GetGuildConfig(ctx, guildID)
	return g, notSetUp(err)
}

func (d *Dispatcher) update(ctx context.Context, guildID string, fn func(g *db.GuildConfig) (bool, error)) (*db.GuildConfig, error) {
	g, err := d.engine.Update(ctx, guildID, fn)
	return g, notSetUp(err)
}

func (d *Dispatcher) refreshStatus(ctx context.Context) {
	if d.status == nil {
		return
	}
	if err := d.status.RefreshStatus(ctx); err != nil {
		d.log.Error("failed to refresh status", zap.Error(err))
	}
}

func notSetUp(err error) error {
	if errors.Is(err, db.ErrGuildNotFound) {
		return ErrNotSetUp
	}
	return err
}
