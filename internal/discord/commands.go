package discord

import (
	"fmt"
	"strconv"

	"TiltifyBot/api"
	"TiltifyBot/tiltify"

	"github.com/bwmarrin/discordgo"
)

var manageChannels int64 = discordgo.PermissionManageChannels

func choices(pairs ...string) []*discordgo.ApplicationCommandOptionChoice {
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: pairs[i], Value: pairs[i+1]})
	}
	return out
}

func idOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "id",
		Description: description,
		Required:    true,
	}
}

// Commands is the global slash command schema.
func Commands() []*discordgo.ApplicationCommand {
	cmds := []*discordgo.ApplicationCommand{
		{
			Name:        "allowinactive",
			Description: "Allow inactive/not-primary campaigns to be added/tracked.",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "enabled",
				Description: "Allow inactive/not-primary campaigns",
				Required:    true,
				Choices:     choices("yes", "true", "no", "false"),
			}},
		},
		{
			Name:        "find",
			Description: "Search for active campaigns by user, team, cause or event",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "type",
					Description: "Your type of search",
					Required:    true,
					Choices: choices("user", tiltify.Users, "team", tiltify.Teams,
						"cause", tiltify.Causes, "event", tiltify.FundraisingEvents),
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "Your user, team, cause or event name/id",
					Required:    true,
				},
			},
		},
		{
			Name:        "setup",
			Description: "Setup the bot with your Tiltify campaign information",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "type",
					Description: "Your type of campaign",
					Required:    true,
					Choices: choices("campaign", tiltify.Campaigns, "team", tiltify.Teams,
						"cause", tiltify.Causes, "event", tiltify.FundraisingEvents),
				},
				idOption("Your Tiltify campaign id"),
			},
		},
		{Name: "ping", Description: "Test response time to the server"},
		{
			Name:        "add",
			Description: "Add a campaign to the list of tracked campaigns",
			Options:     []*discordgo.ApplicationCommandOption{idOption("A valid Tiltify campaign id")},
		},
		{
			Name:        "remove",
			Description: "Remove a campaign from the list of tracked campaigns",
			Options:     []*discordgo.ApplicationCommandOption{idOption("A valid Tiltify campaign id")},
		},
		{Name: "refresh", Description: "Refresh all campaigns attached to a team, cause or event"},
		{Name: "list", Description: "List all tracked campaigns"},
		{
			Name:        "channel",
			Description: "Change the channel where donations are posted",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionChannel,
				Name:        "id",
				Description: "A valid channel in your server",
				Required:    true,
			}},
		},
		{
			Name:        "tiltify",
			Description: "Start or stop the showing of donations",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "action",
				Description: "Start or stop the showing of donations",
				Required:    true,
				Choices:     choices("start", "start", "stop", "stop"),
			}},
		},
		{Name: "delete", Description: "Deactivate the bot and delete all data"},
	}
	for _, c := range cmds {
		c.DefaultMemberPermissions = &manageChannels
	}
	return cmds
}

// ParseCommand converts interaction data into a typed command.
func ParseCommand(data discordgo.ApplicationCommandInteractionData) (api.Command, error) {
	opts := make(map[string]string, len(data.Options))
	for _, o := range data.Options {
		opts[o.Name] = optionValue(o)
	}

	switch data.Name {
	case "ping":
		return api.Ping{}, nil
	case "setup":
		return api.Setup{Type: opts["type"], ID: opts["id"]}, nil
	case "tiltify":
		return api.Toggle{Start: opts["action"] == "start"}, nil
	case "add":
		return api.Add{ID: opts["id"]}, nil
	case "remove":
		return api.Remove{ID: opts["id"]}, nil
	case "list":
		return api.List{}, nil
	case "channel":
		return api.Channel{ChannelID: opts["id"]}, nil
	case "refresh":
		return api.Refresh{}, nil
	case "delete":
		return api.Delete{}, nil
	case "find":
		return api.Find{Type: opts["type"], Query: opts["query"]}, nil
	case "allowinactive":
		enabled, err := strconv.ParseBool(opts["enabled"])
		if err != nil {
			return nil, fmt.Errorf("%w: enabled=%q", api.ErrInvalidOption, opts["enabled"])
		}
		return api.AllowInactive{Enabled: enabled}, nil
	default:
		return nil, fmt.Errorf("%w: command %q", api.ErrInvalidOption, data.Name)
	}
}

func optionValue(o *discordgo.ApplicationCommandInteractionDataOption) string {
	switch v := o.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
