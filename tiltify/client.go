package tiltify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Fetcher is the fetch capability: one GET of resource/idOrPath.
// A non-200 status is reported in the envelope, not as an error.
type Fetcher interface {
	Fetch(ctx context.Context, resource, idOrPath string) (*Envelope, error)
}

type Options struct {
	BaseURL    string
	Token      string
	RateLimit  float64
	MaxRetries int
	Timeout    time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

type Client struct {
	baseURL    string
	token      string
	maxRetries int
	minBackoff time.Duration
	maxBackoff time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(opts Options, log *zap.Logger) *Client {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		maxRetries: opts.MaxRetries,
		minBackoff: opts.MinBackoff,
		maxBackoff: opts.MaxBackoff,
		limiter:    rate.NewLimiter(limit, 1),
		httpClient: &http.Client{Timeout: opts.Timeout},
		log:        log.Named("tiltify"),
	}
}

// Fetch retries transport errors, 429 and 5xx with exponential backoff.
func (c *Client) Fetch(ctx context.Context, resource, idOrPath string) (*Envelope, error) {
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, resource, strings.TrimLeft(idOrPath, "/"))
	b := &backoff.Backoff{Min: c.minBackoff, Max: c.maxBackoff, Factor: 2, Jitter: true}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		env, err := c.do(ctx, url)
		switch {
		case err == nil && !retryableStatus(env.Meta.Status):
			return env, nil
		case err == nil:
			lastErr = &StatusError{Status: env.Meta.Status}
			if attempt == c.maxRetries {
				return env, nil
			}
		default:
			lastErr = err
		}

		if ctx.Err() != nil || attempt == c.maxRetries {
			break
		}
		wait := b.Duration()
		c.log.Warn("retrying request",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("%w: GET %s: %w", ErrUnavailable, url, lastErr)
}

func (c *Client) do(ctx context.Context, url string) (*Envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode == http.StatusOK {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		env = Envelope{}
	}
	if env.Meta.Status == 0 {
		env.Meta.Status = resp.StatusCode
	}
	return &env, nil
}

func GetCampaign(ctx context.Context, f Fetcher, id string) (*Campaign, error) {
	var c Campaign
	if err := fetchInto(ctx, f, Campaigns, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func GetTeam(ctx context.Context, f Fetcher, id string) (*Team, error) {
	var t Team
	if err := fetchInto(ctx, f, Teams, id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func GetCause(ctx context.Context, f Fetcher, id string) (*Cause, error) {
	var c Cause
	if err := fetchInto(ctx, f, Causes, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetEntity looks up a user, team, cause or event by id or slug.
func GetEntity(ctx context.Context, f Fetcher, resource, idOrSlug string) (*Entity, error) {
	var e Entity
	if err := fetchInto(ctx, f, resource, idOrSlug, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Donations returns the campaign's donations, most recent first.
func Donations(ctx context.Context, f Fetcher, campaignID string) ([]Donation, error) {
	var ds []Donation
	if err := fetchInto(ctx, f, Campaigns, campaignID+"/donations", &ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// EntityCampaigns returns the first page (EntityPageMax) of an entity's campaigns.
func EntityCampaigns(ctx context.Context, f Fetcher, resource, id string) ([]Campaign, error) {
	var cs []Campaign
	path := fmt.Sprintf("%s/campaigns?count=%d", id, EntityPageMax)
	if err := fetchInto(ctx, f, resource, path, &cs); err != nil {
		return nil, err
	}
	return cs, nil
}

func fetchInto(ctx context.Context, f Fetcher, resource, path string, v any) error {
	env, err := f.Fetch(ctx, resource, path)
	if err != nil {
		return err
	}
	return env.Decode(v)
}
