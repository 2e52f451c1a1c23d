package tracker

import (
	"sort"

	"TiltifyBot/db"
	"TiltifyBot/tiltify"
)

// Mutation is one change planned against a snapshot of a GuildConfig. Apply
// re-validates it against the current record, so applying a mutation that
// is already reflected is a no-op.
type Mutation interface {
	Apply(g *db.GuildConfig, out *Result)
}

// Result accumulates the effect of applying a Plan.
type Result struct {
	Changed       bool
	Added         int
	Deactivated   int
	Reactivated   int
	Notifications []Notification
}

type Plan []Mutation

func (p Plan) Apply(g *db.GuildConfig) Result {
	var res Result
	for _, m := range p {
		m.Apply(g, &res)
	}
	return res
}

// AddCampaign appends a newly discovered campaign unless it is already
// tracked, or is retired and the guild does not allow inactive campaigns.
type AddCampaign struct {
	Record  db.CampaignRecord
	Retired bool
}

func (m AddCampaign) Apply(g *db.GuildConfig, out *Result) {
	if g.Campaign(m.Record.RemoteCampaignID) != nil {
		return
	}
	if m.Retired && !g.AllowInactiveCampaigns {
		return
	}
	rec := m.Record
	rec.ID = 0
	rec.GuildConfigID = g.ID
	rec.IsActive = true
	g.Campaigns = append(g.Campaigns, rec)
	out.Changed = true
	out.Added++
}

// Details are the display fields refreshed from a successful re-fetch.
type Details struct {
	DisplayName  string
	CurrencyCode string
	AvatarURL    string
	CanonicalURL string
}

func detailsOf(c *tiltify.Campaign) *Details {
	return &Details{
		DisplayName:  c.Name,
		CurrencyCode: c.Currency,
		AvatarURL:    c.Avatar.Src,
		CanonicalURL: c.URL(),
	}
}

// SyncCampaign reconciles a tracked campaign's active flag with what a
// re-fetch observed. An unreachable campaign counts as inactive.
type SyncCampaign struct {
	RemoteCampaignID string
	Reachable        bool
	Retired          bool
	Details          *Details
}

func (m SyncCampaign) Apply(g *db.GuildConfig, out *Result) {
	rec := g.Campaign(m.RemoteCampaignID)
	if rec == nil {
		return
	}

	active := g.AllowInactiveCampaigns || (m.Reachable && !m.Retired)
	if rec.IsActive != active {
		rec.IsActive = active
		out.Changed = true
		if active {
			out.Reactivated++
		} else {
			out.Deactivated++
		}
	}

	if m.Details != nil {
		set := func(dst *string, v string) {
			if v != "" && *dst != v {
				*dst = v
				out.Changed = true
			}
		}
		set(&rec.DisplayName, m.Details.DisplayName)
		set(&rec.CurrencyCode, m.Details.CurrencyCode)
		set(&rec.AvatarURL, m.Details.AvatarURL)
		set(&rec.CanonicalURL, m.Details.CanonicalURL)
	}
}

// AdvanceCursor moves a campaign's last-seen donation id forward from a
// fetched donation page. The first observation only seeds the cursor. With
// CatchUp every donation newer than the cursor is notified in ascending id
// order, otherwise only the newest one.
type AdvanceCursor struct {
	RemoteCampaignID string
	Donations        []tiltify.Donation
	CatchUp          bool
}

func (m AdvanceCursor) Apply(g *db.GuildConfig, out *Result) {
	if !g.IsActive {
		return
	}
	rec := g.Campaign(m.RemoteCampaignID)
	if rec == nil || !rec.IsActive || len(m.Donations) == 0 {
		return
	}

	var newest int64
	for _, d := range m.Donations {
		if d.ID > newest {
			newest = d.ID
		}
	}
	if newest <= rec.LastSeenDonationID {
		return
	}

	if rec.LastSeenDonationID == 0 {
		rec.LastSeenDonationID = newest
		out.Changed = true
		return
	}

	var fresh []tiltify.Donation
	for _, d := range m.Donations {
		if d.ID > rec.LastSeenDonationID {
			fresh = append(fresh, d)
		}
	}
	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].ID < fresh[j].ID })
	if !m.CatchUp {
		fresh = fresh[len(fresh)-1:]
	}

	rec.LastSeenDonationID = newest
	out.Changed = true
	for _, d := range fresh {
		out.Notifications = append(out.Notifications, Notification{
			GuildID:   g.GuildID,
			ChannelID: g.NotificationChannelID,
			Campaign:  *rec,
			Donation:  d,
		})
	}
}
