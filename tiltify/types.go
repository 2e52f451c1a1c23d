package tiltify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Resource types understood by the v3 API.
const (
	Campaigns         = "campaigns"
	Teams             = "teams"
	Causes            = "causes"
	Users             = "users"
	FundraisingEvents = "fundraising-events"
)

const (
	StatusRetired = "retired"
	publicSiteURL = "https://tiltify.com"
	EntityPageMax = 100
)

// Envelope is the wire shape of every response.
type Envelope struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

type Meta struct {
	Status int `json:"status"`
}

// Err returns a *StatusError for non-200 envelopes.
func (e *Envelope) Err() error {
	if e.Meta.Status == 200 {
		return nil
	}
	return &StatusError{Status: e.Meta.Status}
}

// Decode unmarshals Data into v after checking the status.
func (e *Envelope) Decode(v any) error {
	if err := e.Err(); err != nil {
		return err
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("tiltify: decode data: %w", err)
	}
	return nil
}

// ID holds a numeric or string id as a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*id = ID(s)
	return nil
}

type Campaign struct {
	ID       ID       `json:"id"`
	Name     string   `json:"name"`
	Slug     string   `json:"slug"`
	Status   string   `json:"status"`
	CauseID  ID       `json:"causeId"`
	Currency string   `json:"currency"`
	Avatar   Avatar   `json:"avatar"`
	User     Owner    `json:"user"`
	Team     *TeamRef `json:"team"`
}

func (c *Campaign) Retired() bool {
	return c.Status == StatusRetired
}

// URL is the public page of the campaign.
func (c *Campaign) URL() string {
	base := strings.TrimRight(c.User.URL, "/")
	if strings.HasPrefix(base, "/") {
		base = publicSiteURL + base
	}
	if base == "" {
		base = publicSiteURL
	}
	return base + "/" + c.Slug
}

type Avatar struct {
	Src string `json:"src"`
}

type Owner struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	Slug     string `json:"slug"`
	URL      string `json:"url"`
}

type TeamRef struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type Team struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	Disbanded bool   `json:"disbanded"`
}

type Cause struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Entity is the common shape of a user, team, cause or event lookup.
type Entity struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Disbanded bool   `json:"disbanded"`
}

// DisplayName prefers Username for users.
func (e *Entity) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Username
}

type Donation struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Comment string  `json:"comment"`
}
