package tracker

import (
	"context"
	"fmt"

	"TiltifyBot/db"
	"TiltifyBot/internal/telemetry"
	"TiltifyBot/tiltify"

	"go.uber.org/zap"
)

// PollAll runs a donation poll over every active guild.
func (e *Engine) PollAll(ctx context.Context) error {
	guilds, err := e.store.ListGuildConfigs(ctx, true)
	if err != nil {
		return fmt.Errorf("poll: list active guilds: %w", err)
	}
	e.forEachGuild(ctx, guilds, "donation poll", func(ctx context.Context, g *db.GuildConfig) error {
		_, err := e.PollGuild(ctx, g)
		return err
	})
	return nil
}

// PollGuild fetches donations for the snapshot's active campaigns and
// applies any cursor advances. A failed fetch skips only that campaign.
func (e *Engine) PollGuild(ctx context.Context, snapshot *db.GuildConfig) (Result, error) {
	log := e.logger(ctx).With(zap.String("guild", snapshot.GuildID))

	var plan Plan
	for _, c := range snapshot.ActiveCampaigns() {
		donations, err := tiltify.Donations(ctx, e.fetch, c.RemoteCampaignID)
		if err != nil {
			log.Warn("failed to read donation data",
				zap.String("campaign", c.RemoteCampaignID),
				zap.Error(err))
			e.opts.Metrics.PollErrors.Add(ctx, 1, telemetry.GuildAttr(snapshot.GuildID))
			continue
		}
		if len(donations) == 0 {
			continue
		}
		plan = append(plan, AdvanceCursor{
			RemoteCampaignID: c.RemoteCampaignID,
			Donations:        donations,
			CatchUp:          e.opts.CatchUp,
		})
	}

	res, err := e.apply(ctx, snapshot.GuildID, plan)
	if err != nil {
		return res, err
	}
	if len(res.Notifications) > 0 {
		log.Info("new donations", zap.Int("count", len(res.Notifications)))
	}
	return res, nil
}
