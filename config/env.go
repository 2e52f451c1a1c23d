package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process configuration read from the environment.
type Config struct {
	DiscordToken string
	DiscordAppID string

	TiltifyToken      string
	TiltifyBaseURL    string
	TiltifyRateLimit  float64
	TiltifyMaxRetries int
	TiltifyTimeout    time.Duration

	DonationRefresh time.Duration
	DonationCatchUp bool
	PollConcurrency int
	DatabaseURL     string
	RedisURL        string
	Port            string
	NgrokAuthToken  string
	OTLPEndpoint    string
	LogLevel        string
}

const FullRefreshInterval = 12 * time.Hour

func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not loaded")
		}
	}
}

// Load reads .env (outside Railway) and then the process environment.
func Load() (*Config, error) {
	LoadEnv()
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("tiltify_base_url", "https://tiltify.com/api/v3")
	v.SetDefault("tiltify_rate_limit", 5)
	v.SetDefault("tiltify_max_retries", 3)
	v.SetDefault("tiltify_timeout", "10s")
	v.SetDefault("donation_refresh", 30000)
	v.SetDefault("donation_catch_up", false)
	v.SetDefault("poll_concurrency", 4)
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	// Registered so AutomaticEnv picks them up through Get.
	for _, key := range []string{
		"discord_bot_token", "discord_app_id", "tiltify_access_token",
		"database_url", "redis_url", "ngrok_authtoken", "otel_exporter_otlp_endpoint",
	} {
		v.SetDefault(key, "")
	}
	return v
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DiscordToken:      v.GetString("discord_bot_token"),
		DiscordAppID:      v.GetString("discord_app_id"),
		TiltifyToken:      v.GetString("tiltify_access_token"),
		TiltifyBaseURL:    strings.TrimRight(v.GetString("tiltify_base_url"), "/"),
		TiltifyRateLimit:  v.GetFloat64("tiltify_rate_limit"),
		TiltifyMaxRetries: v.GetInt("tiltify_max_retries"),
		TiltifyTimeout:    v.GetDuration("tiltify_timeout"),
		DonationRefresh:   time.Duration(v.GetInt64("donation_refresh")) * time.Millisecond,
		DonationCatchUp:   v.GetBool("donation_catch_up"),
		PollConcurrency:   v.GetInt("poll_concurrency"),
		DatabaseURL:       v.GetString("database_url"),
		RedisURL:          v.GetString("redis_url"),
		Port:              v.GetString("port"),
		NgrokAuthToken:    v.GetString("ngrok_authtoken"),
		OTLPEndpoint:      v.GetString("otel_exporter_otlp_endpoint"),
		LogLevel:          v.GetString("log_level"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.DiscordToken == "" {
		missing = append(missing, "DISCORD_BOT_TOKEN")
	}
	if c.DiscordAppID == "" {
		missing = append(missing, "DISCORD_APP_ID")
	}
	if c.TiltifyToken == "" {
		missing = append(missing, "TILTIFY_ACCESS_TOKEN")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.DonationRefresh <= 0 {
		return errors.New("config: DONATION_REFRESH must be a positive number of milliseconds")
	}
	if c.PollConcurrency < 1 {
		c.PollConcurrency = 1
	}
	if c.TiltifyMaxRetries < 1 {
		c.TiltifyMaxRetries = 1
	}
	return nil
}
