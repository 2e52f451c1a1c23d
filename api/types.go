package api

import (
	"time"

	"TiltifyBot/tracker"
)

// Caller is the context a command was invoked from. CanManage is the
// channel-management capability checked by the chat platform.
type Caller struct {
	GuildID   string
	ChannelID string
	CanManage bool
	InvokedAt time.Time
}

// Response is the single terminal reply to a command.
type Response struct {
	Content string
	Embed   *tracker.Embed
}

// Command is one of the typed commands below.
type Command interface {
	Name() string
}

type Ping struct{}

// Setup links the guild to a campaign, team, cause or fundraising event.
type Setup struct {
	Type string
	ID   string
}

// Toggle starts or stops donation notifications.
type Toggle struct {
	Start bool
}

type Add struct {
	ID string
}

type Remove struct {
	ID string
}

type List struct{}

type Channel struct {
	ChannelID string
}

type Refresh struct{}

type Delete struct{}

// Find searches users, teams or causes for their active campaigns.
type Find struct {
	Type  string
	Query string
}

type AllowInactive struct {
	Enabled bool
}

func (Ping) Name() string          { return "ping" }
func (Setup) Name() string         { return "setup" }
func (Toggle) Name() string        { return "tiltify" }
func (Add) Name() string           { return "add" }
func (Remove) Name() string        { return "remove" }
func (List) Name() string          { return "list" }
func (Channel) Name() string       { return "channel" }
func (Refresh) Name() string       { return "refresh" }
func (Delete) Name() string        { return "delete" }
func (Find) Name() string          { return "find" }
func (AllowInactive) Name() string { return "allowinactive" }
