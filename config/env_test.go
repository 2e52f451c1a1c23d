package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "bot-token")
	t.Setenv("DISCORD_APP_ID", "1234")
	t.Setenv("TILTIFY_ACCESS_TOKEN", "tiltify-token")
	t.Setenv("DATABASE_URL", "sqlite:test.db")
}

func TestFromViper_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := fromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.DonationRefresh)
	assert.Equal(t, "https://tiltify.com/api/v3", cfg.TiltifyBaseURL)
	assert.Equal(t, 3, cfg.TiltifyMaxRetries)
	assert.Equal(t, 10*time.Second, cfg.TiltifyTimeout)
	assert.Equal(t, 4, cfg.PollConcurrency)
	assert.False(t, cfg.DonationCatchUp)
	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.RedisURL)
}

func TestFromViper_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DONATION_REFRESH", "5000")
	t.Setenv("DONATION_CATCH_UP", "true")
	t.Setenv("TILTIFY_BASE_URL", "http://localhost:9000/api/v3/")
	t.Setenv("POLL_CONCURRENCY", "0")

	cfg, err := fromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.DonationRefresh)
	assert.True(t, cfg.DonationCatchUp)
	assert.Equal(t, "http://localhost:9000/api/v3", cfg.TiltifyBaseURL)
	assert.Equal(t, 1, cfg.PollConcurrency)
}

func TestFromViper_MissingRequired(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")
	t.Setenv("DISCORD_APP_ID", "")
	t.Setenv("TILTIFY_ACCESS_TOKEN", "")
	t.Setenv("DATABASE_URL", "")

	_, err := fromViper(newViper())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCORD_BOT_TOKEN")
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestFromViper_RejectsNonPositiveRefresh(t *testing.T) {
	setRequired(t)
	t.Setenv("DONATION_REFRESH", "0")

	_, err := fromViper(newViper())
	assert.Error(t, err)
}
