package tracker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"TiltifyBot/db"
	"TiltifyBot/tiltify"
)

// Notifier delivers a rendered donation notification to a channel.
type Notifier interface {
	Notify(ctx context.Context, channelID string, embed Embed) error
}

type EmbedField struct {
	Name  string
	Value string
}

type Embed struct {
	Title        string
	Description  string
	URL          string
	ThumbnailURL string
	Fields       []EmbedField
	FooterText   string
	Timestamp    time.Time
}

// Notification is the intent to announce one new donation.
type Notification struct {
	GuildID   string
	ChannelID string
	Campaign  db.CampaignRecord
	Donation  tiltify.Donation
}

func (n Notification) Embed(now time.Time) Embed {
	comment := n.Donation.Comment
	if comment == "" {
		comment = "No comment."
	}
	donor := n.Donation.Name
	if donor == "" {
		donor = "Anonymous"
	}
	footer := "Donated towards " + n.Campaign.CauseName
	if n.Campaign.CauseName == "" {
		footer = "Donated towards " + n.Campaign.DisplayName
	}

	return Embed{
		Title:        n.Campaign.DisplayName + " received a donation!",
		URL:          n.Campaign.CanonicalURL,
		ThumbnailURL: n.Campaign.AvatarURL,
		Fields: []EmbedField{{
			Name:  fmt.Sprintf("%s donates %s", donor, FormatAmount(n.Donation.Amount, n.Campaign.CurrencyCode)),
			Value: comment,
		}},
		FooterText: footer,
		Timestamp:  now,
	}
}

// FormatAmount renders an amount with its ISO currency code, e.g. "25.00 USD".
func FormatAmount(amount float64, currency string) string {
	s := strconv.FormatFloat(amount, 'f', 2, 64)
	if currency == "" {
		return s
	}
	return s + " " + currency
}
