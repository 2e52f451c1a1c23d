package db

import (
	"time"

	"gorm.io/gorm"
)

// Tracking modes of a GuildConfig.
const (
	ModeCampaign = "single-campaign"
	ModeTeam     = "team"
	ModeCause    = "cause"
	ModeEvent    = "event"
)

type GuildConfig struct {
	ID                     uint             `gorm:"primaryKey"`
	GuildID                string           `gorm:"uniqueIndex;not null"`
	NotificationChannelID  string           `gorm:"not null"`
	IsActive               bool             `gorm:"not null"`
	AllowInactiveCampaigns bool             `gorm:"not null"`
	TrackingMode           string           `gorm:"not null"`
	LinkedEntityID         string           `gorm:"index"`
	Campaigns              []CampaignRecord `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Campaign returns the tracked record for a remote id, or nil.
func (g *GuildConfig) Campaign(remoteID string) *CampaignRecord {
	for i := range g.Campaigns {
		if g.Campaigns[i].RemoteCampaignID == remoteID {
			return &g.Campaigns[i]
		}
	}
	return nil
}

func (g *GuildConfig) ActiveCampaigns() []CampaignRecord {
	var out []CampaignRecord
	for _, c := range g.Campaigns {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out
}

type CampaignRecord struct {
	ID                 uint   `gorm:"primaryKey"`
	GuildConfigID      uint   `gorm:"uniqueIndex:idx_guild_campaign;not null"`
	RemoteCampaignID   string `gorm:"uniqueIndex:idx_guild_campaign;not null"`
	DisplayName        string
	CauseName          string
	TeamName           string
	CurrencyCode       string
	AvatarURL          string
	CanonicalURL       string
	IsActive           bool  `gorm:"not null"`
	LastSeenDonationID int64 `gorm:"not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&GuildConfig{}, &CampaignRecord{})
}
