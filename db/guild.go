package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrGuildNotFound = errors.New("db: guild config not found")
	ErrGuildExists   = errors.New("db: guild config already exists")
)

// Store persists GuildConfig documents together with their campaigns.
// Every write replaces the full record.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

type Stats struct {
	Guilds          int64 `json:"guilds"`
	ActiveCampaigns int64 `json:"active_campaigns"`
}

func withCampaigns(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Campaigns", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	})
}

func (s *Store) CreateGuildConfig(ctx context.Context, guild *GuildConfig) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&GuildConfig{}).Where("guild_id = ?", guild.GuildID).Count(&count).Error; err != nil {
			return fmt.Errorf("CreateGuildConfig: lookup guild %s: %w", guild.GuildID, err)
		}
		if count > 0 {
			return ErrGuildExists
		}
		if err := tx.Create(guild).Error; err != nil {
			return fmt.Errorf("CreateGuildConfig: create guild %s: %w", guild.GuildID, err)
		}
		return nil
	})
}

func (s *Store) GetGuildConfig(ctx context.Context, guildID string) (*GuildConfig, error) {
	var guild GuildConfig
	err := withCampaigns(s.db.WithContext(ctx)).Where("guild_id = ?", guildID).First(&guild).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGuildNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetGuildConfig: guild %s: %w", guildID, err)
	}
	return &guild, nil
}

// ListGuildConfigs returns every guild, or only those with IsActive set.
func (s *Store) ListGuildConfigs(ctx context.Context, activeOnly bool) ([]GuildConfig, error) {
	var guilds []GuildConfig
	q := withCampaigns(s.db.WithContext(ctx)).Order("id ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&guilds).Error; err != nil {
		return nil, fmt.Errorf("ListGuildConfigs: %w", err)
	}
	return guilds, nil
}

// SaveGuildConfig writes the guild row and its campaign set in one
// transaction. Campaigns missing from guild.Campaigns are deleted.
func (s *Store) SaveGuildConfig(ctx context.Context, guild *GuildConfig) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&GuildConfig{}).
			Where("id = ? AND guild_id = ?", guild.ID, guild.GuildID).
			Updates(map[string]any{
				"notification_channel_id":  guild.NotificationChannelID,
				"is_active":                guild.IsActive,
				"allow_inactive_campaigns": guild.AllowInactiveCampaigns,
				"tracking_mode":            guild.TrackingMode,
				"linked_entity_id":         guild.LinkedEntityID,
				"updated_at":               now,
			})
		if res.Error != nil {
			return fmt.Errorf("SaveGuildConfig: update guild %s: %w", guild.GuildID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrGuildNotFound
		}
		guild.UpdatedAt = now

		keep := make([]uint, 0, len(guild.Campaigns))
		for _, c := range guild.Campaigns {
			if c.ID != 0 {
				keep = append(keep, c.ID)
			}
		}
		drop := tx.Where("guild_config_id = ?", guild.ID)
		if len(keep) > 0 {
			drop = drop.Where("id NOT IN ?", keep)
		}
		if err := drop.Delete(&CampaignRecord{}).Error; err != nil {
			return fmt.Errorf("SaveGuildConfig: prune campaigns for guild %s: %w", guild.GuildID, err)
		}

		for i := range guild.Campaigns {
			c := &guild.Campaigns[i]
			c.GuildConfigID = guild.ID
			if err := tx.Omit(clause.Associations).Save(c).Error; err != nil {
				return fmt.Errorf("SaveGuildConfig: save campaign %s for guild %s: %w", c.RemoteCampaignID, guild.GuildID, err)
			}
		}
		return nil
	})
}

func (s *Store) DeleteGuildConfig(ctx context.Context, guildID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var guild GuildConfig
		err := tx.Where("guild_id = ?", guildID).First(&guild).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGuildNotFound
		}
		if err != nil {
			return fmt.Errorf("DeleteGuildConfig: lookup guild %s: %w", guildID, err)
		}
		if err := tx.Where("guild_config_id = ?", guild.ID).Delete(&CampaignRecord{}).Error; err != nil {
			return fmt.Errorf("DeleteGuildConfig: delete campaigns of guild %s: %w", guildID, err)
		}
		if err := tx.Delete(&guild).Error; err != nil {
			return fmt.Errorf("DeleteGuildConfig: delete guild %s: %w", guildID, err)
		}
		return nil
	})
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.WithContext(ctx).Model(&GuildConfig{}).Count(&st.Guilds).Error; err != nil {
		return st, fmt.Errorf("Stats: count guilds: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&CampaignRecord{}).Where("is_active = ?", true).Count(&st.ActiveCampaigns).Error; err != nil {
		return st, fmt.Errorf("Stats: count campaigns: %w", err)
	}
	return st, nil
}
