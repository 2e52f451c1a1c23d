package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"TiltifyBot/db"
	"TiltifyBot/tiltify"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errTransport = errors.New("connection reset by peer")

// fakeFetcher serves canned envelopes keyed by "resource/path".
type fakeFetcher struct {
	mu     sync.Mutex
	envs   map[string]*tiltify.Envelope
	errs   map[string]error
	hits   map[string]int
	before func(key string)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		envs: make(map[string]*tiltify.Envelope),
		errs: make(map[string]error),
		hits: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, resource, idOrPath string) (*tiltify.Envelope, error) {
	key := resource + "/" + idOrPath
	f.mu.Lock()
	f.hits[key]++
	env, err, hook := f.envs[key], f.errs[key], f.before
	f.mu.Unlock()

	if hook != nil {
		hook(key)
	}
	if err != nil {
		return nil, err
	}
	if env == nil {
		return &tiltify.Envelope{Meta: tiltify.Meta{Status: 404}}, nil
	}
	return env, nil
}

func (f *fakeFetcher) set(t *testing.T, key string, status int, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.errs, key)
	f.envs[key] = &tiltify.Envelope{Meta: tiltify.Meta{Status: status}, Data: raw}
}

func (f *fakeFetcher) fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[key] = err
}

func (f *fakeFetcher) hitCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[key]
}

func (f *fakeFetcher) donations(t *testing.T, campaignID string, ids ...int64) {
	t.Helper()
	ds := make([]tiltify.Donation, 0, len(ids))
	for _, id := range ids {
		ds = append(ds, tiltify.Donation{ID: id, Name: "donor", Amount: 5, Comment: "gg"})
	}
	f.set(t, "campaigns/"+campaignID+"/donations", 200, ds)
}

func (f *fakeFetcher) campaign(t *testing.T, c tiltify.Campaign) {
	t.Helper()
	f.set(t, "campaigns/"+string(c.ID), 200, c)
}

// fakeStore keeps deep copies so callers never share campaign slices.
type fakeStore struct {
	mu      sync.Mutex
	guilds  map[string]db.GuildConfig
	saves   int
	saveErr error
}

func newFakeStore(guilds ...db.GuildConfig) *fakeStore {
	s := &fakeStore{guilds: make(map[string]db.GuildConfig)}
	for _, g := range guilds {
		s.guilds[g.GuildID] = clone(g)
	}
	return s
}

func clone(g db.GuildConfig) db.GuildConfig {
	g.Campaigns = append([]db.CampaignRecord(nil), g.Campaigns...)
	return g
}

func (s *fakeStore) GetGuildConfig(_ context.Context, guildID string) (*db.GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[guildID]
	if !ok {
		return nil, db.ErrGuildNotFound
	}
	c := clone(g)
	return &c, nil
}

func (s *fakeStore) ListGuildConfigs(_ context.Context, activeOnly bool) ([]db.GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.GuildConfig
	for _, g := range s.guilds {
		if activeOnly && !g.IsActive {
			continue
		}
		out = append(out, clone(g))
	}
	return out, nil
}

func (s *fakeStore) SaveGuildConfig(_ context.Context, g *db.GuildConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if _, ok := s.guilds[g.GuildID]; !ok {
		return db.ErrGuildNotFound
	}
	s.guilds[g.GuildID] = clone(*g)
	s.saves++
	return nil
}

func (s *fakeStore) get(t *testing.T, guildID string) *db.GuildConfig {
	t.Helper()
	g, err := s.GetGuildConfig(context.Background(), guildID)
	require.NoError(t, err)
	return g
}

type sent struct {
	ChannelID string
	Embed     Embed
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, channelID string, embed Embed) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sent{ChannelID: channelID, Embed: embed})
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(store Store, fetch tiltify.Fetcher, notifier Notifier, catchUp bool) *Engine {
	log := zap.NewNop()
	return New(store, fetch, NewBuilder(fetch, nil, log), notifier, Options{
		CatchUp:     catchUp,
		Concurrency: 2,
		Now:         func() time.Time { return fixedNow },
	}, log)
}

func guild(id string, campaigns ...db.CampaignRecord) db.GuildConfig {
	return db.GuildConfig{
		GuildID:               id,
		NotificationChannelID: "chan-" + id,
		IsActive:              true,
		TrackingMode:          db.ModeCampaign,
		Campaigns:             campaigns,
	}
}

func record(remoteID string, cursor int64) db.CampaignRecord {
	return db.CampaignRecord{
		RemoteCampaignID:   remoteID,
		DisplayName:        "Campaign " + remoteID,
		CauseName:          "Cause",
		TeamName:           NoTeam,
		CurrencyCode:       "USD",
		IsActive:           true,
		LastSeenDonationID: cursor,
	}
}
