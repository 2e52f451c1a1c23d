package tracker

import (
	"context"
	"fmt"
	"time"

	"TiltifyBot/db"
	"TiltifyBot/internal/telemetry"
	"TiltifyBot/tiltify"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence the engine reconciles against.
type Store interface {
	GetGuildConfig(ctx context.Context, guildID string) (*db.GuildConfig, error)
	ListGuildConfigs(ctx context.Context, activeOnly bool) ([]db.GuildConfig, error)
	SaveGuildConfig(ctx context.Context, guild *db.GuildConfig) error
}

type Options struct {
	// CatchUp notifies every donation newer than the cursor instead of
	// only the newest one.
	CatchUp bool
	// Concurrency bounds the guilds processed at once in a cycle.
	Concurrency int
	Metrics     *telemetry.Metrics
	Now         func() time.Time
}

// Engine polls donations and refreshes campaign membership for guilds.
type Engine struct {
	store    Store
	fetch    tiltify.Fetcher
	builder  *Builder
	notifier Notifier
	locks    *guildLocks
	opts     Options
	log      *zap.Logger
}

func New(store Store, fetch tiltify.Fetcher, builder *Builder, notifier Notifier, opts Options, log *zap.Logger) *Engine {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:    store,
		fetch:    fetch,
		builder:  builder,
		notifier: notifier,
		locks:    newGuildLocks(),
		opts:     opts,
		log:      log.Named("tracker"),
	}
}

func (e *Engine) Builder() *Builder { return e.builder }

type cycleKey struct{}

// WithCycle tags ctx with a cycle id that is attached to engine logs.
func WithCycle(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleKey{}, id)
}

func (e *Engine) logger(ctx context.Context) *zap.Logger {
	if id, ok := ctx.Value(cycleKey{}).(string); ok {
		return e.log.With(zap.String("cycle", id))
	}
	return e.log
}

// Update loads the guild under its lock, runs fn and saves the record when
// fn reports a change. Every writer of a GuildConfig goes through here.
func (e *Engine) Update(ctx context.Context, guildID string, fn func(g *db.GuildConfig) (bool, error)) (*db.GuildConfig, error) {
	unlock, err := e.locks.lock(ctx, guildID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	guild, err := e.store.GetGuildConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	changed, err := fn(guild)
	if err != nil {
		return guild, err
	}
	if changed {
		if err := e.store.SaveGuildConfig(ctx, guild); err != nil {
			return guild, err
		}
	}
	return guild, nil
}

// apply executes a plan against the current record and, once it has been
// persisted, dispatches the resulting notifications.
func (e *Engine) apply(ctx context.Context, guildID string, plan Plan) (Result, error) {
	var res Result
	if len(plan) == 0 {
		return res, nil
	}
	_, err := e.Update(ctx, guildID, func(g *db.GuildConfig) (bool, error) {
		res = plan.Apply(g)
		return res.Changed, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("apply plan for guild %s: %w", guildID, err)
	}

	attr := telemetry.GuildAttr(guildID)
	if res.Added > 0 {
		e.opts.Metrics.CampaignsDiscovered.Add(ctx, int64(res.Added), attr)
	}
	if res.Deactivated > 0 {
		e.opts.Metrics.CampaignsRetired.Add(ctx, int64(res.Deactivated), attr)
	}
	e.dispatch(ctx, res.Notifications)
	return res, nil
}

func (e *Engine) dispatch(ctx context.Context, notes []Notification) {
	log := e.logger(ctx)
	for _, n := range notes {
		if err := e.notifier.Notify(ctx, n.ChannelID, n.Embed(e.opts.Now())); err != nil {
			log.Error("failed to send donation notification",
				zap.String("guild", n.GuildID),
				zap.String("campaign", n.Campaign.RemoteCampaignID),
				zap.Int64("donation", n.Donation.ID),
				zap.Error(err))
			continue
		}
		e.opts.Metrics.DonationsNotified.Add(ctx, 1, telemetry.GuildAttr(n.GuildID))
	}
}

// forEachGuild runs fn for every guild with bounded concurrency. Failures
// are logged per guild and never stop the others.
func (e *Engine) forEachGuild(ctx context.Context, guilds []db.GuildConfig, op string, fn func(context.Context, *db.GuildConfig) error) {
	log := e.logger(ctx)
	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i := range guilds {
		guild := &guilds[i]
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Error(op+" panicked", zap.String("guild", guild.GuildID), zap.Any("recover", r))
				}
			}()
			if err := fn(ctx, guild); err != nil {
				log.Error(op+" failed", zap.String("guild", guild.GuildID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
