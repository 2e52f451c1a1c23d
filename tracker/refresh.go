package tracker

import (
	"context"
	"errors"
	"fmt"

	"TiltifyBot/db"
	"TiltifyBot/tiltify"

	"go.uber.org/zap"
)

// EntityResource maps a tracking mode to the remote resource that owns the
// linked entity. It returns "" for single-campaign guilds.
func EntityResource(mode string) string {
	switch mode {
	case db.ModeTeam:
		return tiltify.Teams
	case db.ModeCause:
		return tiltify.Causes
	case db.ModeEvent:
		return tiltify.FundraisingEvents
	default:
		return ""
	}
}

// ModeForResource is the inverse of EntityResource.
func ModeForResource(resource string) string {
	switch resource {
	case tiltify.Teams:
		return db.ModeTeam
	case tiltify.Causes:
		return db.ModeCause
	case tiltify.FundraisingEvents:
		return db.ModeEvent
	default:
		return db.ModeCampaign
	}
}

// RefreshAll runs a full refresh over every guild, active or not.
func (e *Engine) RefreshAll(ctx context.Context) error {
	guilds, err := e.store.ListGuildConfigs(ctx, false)
	if err != nil {
		return fmt.Errorf("refresh: list guilds: %w", err)
	}
	e.forEachGuild(ctx, guilds, "full refresh", func(ctx context.Context, g *db.GuildConfig) error {
		_, err := e.refresh(ctx, g)
		return err
	})
	return nil
}

// RefreshGuild runs a full refresh for one guild.
func (e *Engine) RefreshGuild(ctx context.Context, guildID string) (Result, error) {
	snapshot, err := e.store.GetGuildConfig(ctx, guildID)
	if err != nil {
		return Result{}, err
	}
	return e.refresh(ctx, snapshot)
}

func (e *Engine) refresh(ctx context.Context, snapshot *db.GuildConfig) (Result, error) {
	log := e.logger(ctx).With(zap.String("guild", snapshot.GuildID))

	var plan Plan
	for _, c := range snapshot.Campaigns {
		m, ok := e.syncCampaign(ctx, log, c.RemoteCampaignID)
		if ok {
			plan = append(plan, m)
		}
	}

	if resource := EntityResource(snapshot.TrackingMode); resource != "" && snapshot.LinkedEntityID != "" {
		adds, err := e.Discover(ctx, resource, snapshot.LinkedEntityID, snapshot)
		if err != nil {
			log.Warn("failed to read linked campaign list",
				zap.String("resource", resource),
				zap.String("entity", snapshot.LinkedEntityID),
				zap.Error(err))
		}
		plan = append(plan, adds...)
	}

	res, err := e.apply(ctx, snapshot.GuildID, plan)
	if err != nil {
		return res, err
	}
	if res.Changed {
		log.Info("guild refreshed",
			zap.Int("added", res.Added),
			zap.Int("deactivated", res.Deactivated),
			zap.Int("reactivated", res.Reactivated))
	}
	return res, nil
}

// syncCampaign re-fetches one campaign. A non-200 status counts as
// unreachable; a transport failure leaves the record untouched.
func (e *Engine) syncCampaign(ctx context.Context, log *zap.Logger, remoteID string) (Mutation, bool) {
	c, err := tiltify.GetCampaign(ctx, e.fetch, remoteID)
	var statusErr *tiltify.StatusError
	switch {
	case err == nil:
		return SyncCampaign{
			RemoteCampaignID: remoteID,
			Reachable:        true,
			Retired:          c.Retired(),
			Details:          detailsOf(c),
		}, true
	case errors.As(err, &statusErr):
		log.Warn("campaign unreachable",
			zap.String("campaign", remoteID),
			zap.Int("status", statusErr.Status))
		return SyncCampaign{RemoteCampaignID: remoteID}, true
	default:
		log.Warn("failed to re-fetch campaign", zap.String("campaign", remoteID), zap.Error(err))
		return nil, false
	}
}

// Discover plans an AddCampaign for every campaign of a linked entity that
// the guild does not track yet, in the order the API returned them.
func (e *Engine) Discover(ctx context.Context, resource, entityID string, snapshot *db.GuildConfig) (Plan, error) {
	campaigns, err := tiltify.EntityCampaigns(ctx, e.fetch, resource, entityID)
	if err != nil {
		return nil, err
	}
	if len(campaigns) == tiltify.EntityPageMax {
		e.logger(ctx).Warn("linked campaign list may be truncated",
			zap.String("resource", resource),
			zap.String("entity", entityID),
			zap.Int("count", len(campaigns)))
	}

	var plan Plan
	for i := range campaigns {
		c := &campaigns[i]
		if snapshot.Campaign(string(c.ID)) != nil {
			continue
		}
		if c.Retired() && !snapshot.AllowInactiveCampaigns {
			continue
		}
		rec, _ := e.builder.Build(ctx, c)
		plan = append(plan, AddCampaign{Record: rec, Retired: c.Retired()})
	}
	return plan, nil
}
