package tracker

import (
	"context"
	"errors"
	"testing"

	"TiltifyBot/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollNotifiesNewestDonation(t *testing.T) {
	store := newFakeStore(guild("g1", record("42", 1000)))
	fetch := newFakeFetcher()
	notifier := &fakeNotifier{}
	engine := newTestEngine(store, fetch, notifier, false)
	ctx := context.Background()

	fetch.donations(t, "42", 1001, 1000, 999)
	require.NoError(t, engine.PollAll(ctx))

	require.Equal(t, 1, notifier.count())
	assert.Equal(t, "chan-g1", notifier.sent[0].ChannelID)
	assert.Equal(t, "Campaign 42 received a donation!", notifier.sent[0].Embed.Title)
	assert.Equal(t, int64(1001), store.get(t, "g1").Campaigns[0].LastSeenDonationID)

	saves := store.saves
	require.NoError(t, engine.PollAll(ctx))
	assert.Equal(t, 1, notifier.count(), "repeat poll must not notify again")
	assert.Equal(t, saves, store.saves, "unchanged record must not be rewritten")
}

func TestPollCatchUpNotifiesInAscendingOrder(t *testing.T) {
	store := newFakeStore(guild("g1", record("42", 1000)))
	fetch := newFakeFetcher()
	notifier := &fakeNotifier{}
	engine := newTestEngine(store, fetch, notifier, true)

	fetch.donations(t, "42", 1003, 1001, 1002, 1000)
	res, err := engine.PollGuild(context.Background(), store.get(t, "g1"))
	require.NoError(t, err)

	var ids []int64
	for _, n := range res.Notifications {
		ids = append(ids, n.Donation.ID)
	}
	assert.Equal(t, []int64{1001, 1002, 1003}, ids)
	assert.Equal(t, 3, notifier.count())
	assert.Equal(t, int64(1003), store.get(t, "g1").Campaigns[0].LastSeenDonationID)
}

func TestPollSeedsCursorOnFirstObservation(t *testing.T) {
	store := newFakeStore(guild("g1", record("42", 0)))
	fetch := newFakeFetcher()
	notifier := &fakeNotifier{}
	engine := newTestEngine(store, fetch, notifier, true)

	fetch.donations(t, "42", 77, 76)
	require.NoError(t, engine.PollAll(context.Background()))

	assert.Zero(t, notifier.count())
	assert.Equal(t, int64(77), store.get(t, "g1").Campaigns[0].LastSeenDonationID)
}

func TestPollSkipsEmptyDonationList(t *testing.T) {
	store := newFakeStore(guild("g1", record("42", 10)))
	fetch := newFakeFetcher()
	notifier := &fakeNotifier{}
	engine := newTestEngine(store, fetch, notifier, true)

	fetch.donations(t, "42")
	require.NoError(t, engine.PollAll(context.Background()))

	assert.Zero(t, notifier.count())
	assert.Zero(t, store.saves)
}

func TestPollNeverRegressesCursor(t *testing.T) {
	store := newFakeStore(guild("g1", record("42", 500)))
	fetch := newFakeFetcher()
	notifier := &fakeNotifier{}
	engine := newTestEngine(store, fetch, notifier, true)
	ctx := context.Background()

	cursors := []int64{}
	for _, page := range [][]int64{{501, 500}, {499, 498}, {501}, {510, 501}, {3}} {
		fetch.donations(t, "42", page...)
		require.NoError(t, engine.PollAll(ctx))
		cursors = append(cursors, store.get(t, "g1").Campaigns[0].LastSeenDonationID)
	}

	assert.Equal(t, []int64{501, 501, 501, 510, 510}, cursors)
	assert.Equal(t, 2, notifier.count())
}

func TestPollIsolatesCampaignFailures(t *testing.T) {
	store := newFakeStore(
		guild("g1", record("A", 1), record("B", 1), record("C", 1)),
		guild("g2", record("D", 1)),
	)
	fetch := newFakeFetcher()
	notifier := &fakeNotifier{}
	engine := newTestEngine(store, fetch, notifier, false)

	fetch.fail("campaigns/A/donations", errTransport)
	fetch.donations(t, "B", 2)
	fetch.set(t, "campaigns/C/donations", 200, "not a list")
	fetch.donations(t, "D", 5)
	require.NoError(t, engine.PollAll(context.Background()))

	g1 := store.get(t, "g1")
	assert.Equal(t, int64(1), g1.Campaign("A").LastSeenDonationID)
	assert.Equal(t, int64(2), g1.Campaign("B").LastSeenDonationID)
	assert.Equal(t, int64(1), g1.Campaign("C").LastSeenDonationID)
	assert.Equal(t, int64(5), store.get(t, "g2").Campaign("D").LastSeenDonationID)
	assert.Equal(t, 2, notifier.count())
}

func TestPollSkipsInactiveCampaignsAndGuilds(t *testing.T) {
	idle := guild("g2", record("B", 1))
	idle.IsActive = false
	retired := record("A", 1)
	retired.IsActive = false
	store := newFakeStore(guild("g1", retired), idle)
	fetch := newFakeFetcher()
	engine := newTestEngine(store, fetch, &fakeNotifier{}, true)

	fetch.donations(t, "A", 2)
	fetch.donations(t, "B", 2)
	require.NoError(t, engine.PollAll(context.Background()))

	assert.Zero(t, fetch.hitCount("campaigns/A/donations"))
	assert.Zero(t, fetch.hitCount("campaigns/B/donations"))
}

func TestPollDoesNotNotifyWhenSaveFails(t *testing.T) {
	store := newFakeStore(guild("g1", record("42", 1000)))
	store.saveErr = errors.New("disk full")
	fetch := newFakeFetcher()
	notifier := &fakeNotifier{}
	engine := newTestEngine(store, fetch, notifier, true)

	fetch.donations(t, "42", 1001)
	_, err := engine.PollGuild(context.Background(), store.get(t, "g1"))

	require.Error(t, err)
	assert.Zero(t, notifier.count())
}

func TestPollKeepsCursorWhenNotifyFails(t *testing.T) {
	store := newFakeStore(guild("g1", record("42", 1000)))
	fetch := newFakeFetcher()
	notifier := &fakeNotifier{err: errors.New("missing access")}
	engine := newTestEngine(store, fetch, notifier, true)

	fetch.donations(t, "42", 1001)
	_, err := engine.PollGuild(context.Background(), store.get(t, "g1"))

	require.NoError(t, err)
	assert.Equal(t, int64(1001), store.get(t, "g1").Campaigns[0].LastSeenDonationID)
}

func TestPollDoesNotDropConcurrentUpdate(t *testing.T) {
	store := newFakeStore(guild("g1", record("42", 1000)))
	fetch := newFakeFetcher()
	engine := newTestEngine(store, fetch, &fakeNotifier{}, true)
	ctx := context.Background()

	fetch.donations(t, "42", 1001)
	snapshot := store.get(t, "g1")
	fetch.before = func(string) {
		_, err := engine.Update(ctx, "g1", func(g *db.GuildConfig) (bool, error) {
			g.NotificationChannelID = "moved"
			g.Campaigns = append(g.Campaigns, record("43", 0))
			return true, nil
		})
		require.NoError(t, err)
	}

	res, err := engine.PollGuild(ctx, snapshot)
	require.NoError(t, err)

	g := store.get(t, "g1")
	assert.Equal(t, "moved", g.NotificationChannelID)
	assert.NotNil(t, g.Campaign("43"))
	assert.Equal(t, int64(1001), g.Campaign("42").LastSeenDonationID)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, "moved", res.Notifications[0].ChannelID)
}

func TestPollSkipsGuildStoppedDuringFetch(t *testing.T) {
	store := newFakeStore(guild("g1", record("42", 1000)))
	fetch := newFakeFetcher()
	notifier := &fakeNotifier{}
	engine := newTestEngine(store, fetch, notifier, false)
	ctx := context.Background()

	fetch.donations(t, "42", 1001)
	snapshot := store.get(t, "g1")
	fetch.before = func(string) {
		_, err := engine.Update(ctx, "g1", func(g *db.GuildConfig) (bool, error) {
			g.IsActive = false
			return true, nil
		})
		require.NoError(t, err)
	}

	res, err := engine.PollGuild(ctx, snapshot)
	require.NoError(t, err)

	assert.Empty(t, res.Notifications)
	assert.Zero(t, notifier.count())
	g := store.get(t, "g1")
	assert.False(t, g.IsActive)
	assert.Equal(t, int64(1000), g.Campaign("42").LastSeenDonationID)
}
