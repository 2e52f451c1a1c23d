package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TiltifyBot/db"
	"TiltifyBot/tiltify"
	"TiltifyBot/utils"

	"go.uber.org/zap"
)

// NoTeam is stored as the team name when it could not be resolved.
const NoTeam = "None"

const nameTTL = 12 * time.Hour

var (
	ErrEnrichmentFailed = errors.New("tracker: enrichment failed")
	ErrNoTeam           = errors.New("tracker: campaign has no team")
)

// Enrichment is the outcome of resolving one display name.
type Enrichment struct {
	Name string
	Err  error
}

func (e Enrichment) OK() bool { return e.Err == nil }

// BuildReport describes how each enriched field was resolved.
type BuildReport struct {
	Cause Enrichment
	Team  Enrichment
}

// Builder turns remote campaigns into CampaignRecords.
type Builder struct {
	fetch tiltify.Fetcher
	cache utils.NameCache
	log   *zap.Logger
}

func NewBuilder(fetch tiltify.Fetcher, cache utils.NameCache, log *zap.Logger) *Builder {
	if cache == nil {
		cache = utils.NewMemoryCache()
	}
	return &Builder{fetch: fetch, cache: cache, log: log.Named("builder")}
}

// Build never fails: enrichment failures are reported and fall back to an
// empty cause name and NoTeam. New records start active with no cursor.
func (b *Builder) Build(ctx context.Context, c *tiltify.Campaign) (db.CampaignRecord, BuildReport) {
	report := BuildReport{
		Cause: b.resolve(ctx, tiltify.Causes, string(c.CauseID)),
		Team:  Enrichment{Err: ErrNoTeam},
	}
	if c.Team != nil && c.Team.ID != "" {
		report.Team = b.resolve(ctx, tiltify.Teams, string(c.Team.ID))
	}

	rec := db.CampaignRecord{
		RemoteCampaignID:   string(c.ID),
		DisplayName:        c.Name,
		TeamName:           NoTeam,
		CurrencyCode:       c.Currency,
		AvatarURL:          c.Avatar.Src,
		CanonicalURL:       c.URL(),
		IsActive:           true,
		LastSeenDonationID: 0,
	}
	if report.Cause.OK() {
		rec.CauseName = report.Cause.Name
	}
	if report.Team.OK() {
		rec.TeamName = report.Team.Name
	}

	if !report.Cause.OK() || (!report.Team.OK() && !errors.Is(report.Team.Err, ErrNoTeam)) {
		b.log.Debug("campaign enrichment incomplete",
			zap.String("campaign", rec.RemoteCampaignID),
			zap.NamedError("cause", report.Cause.Err),
			zap.NamedError("team", report.Team.Err))
	}
	return rec, report
}

func (b *Builder) resolve(ctx context.Context, resource, id string) Enrichment {
	if id == "" || id == "0" {
		return Enrichment{Err: fmt.Errorf("%w: %s id missing", ErrEnrichmentFailed, resource)}
	}

	key := utils.NameKey(resource, id)
	if name, ok, err := b.cache.Get(ctx, key); err == nil && ok {
		return Enrichment{Name: name}
	} else if err != nil {
		b.log.Debug("name cache read failed", zap.String("key", key), zap.Error(err))
	}

	entity, err := tiltify.GetEntity(ctx, b.fetch, resource, id)
	if err != nil {
		return Enrichment{Err: fmt.Errorf("%w: %s/%s: %w", ErrEnrichmentFailed, resource, id, err)}
	}
	if entity.Name == "" {
		return Enrichment{Err: fmt.Errorf("%w: %s/%s has no name", ErrEnrichmentFailed, resource, id)}
	}

	if err := b.cache.Set(ctx, key, entity.Name, nameTTL); err != nil {
		b.log.Debug("name cache write failed", zap.String("key", key), zap.Error(err))
	}
	return Enrichment{Name: entity.Name}
}
