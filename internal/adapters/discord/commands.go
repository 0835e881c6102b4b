package discord

import (
	"github.com/bwmarrin/discordgo"
)

const (
	cmdSetup  = "talk_setup"
	cmdList   = "talks"
	cmdJoin   = "talk_join"
	cmdInvite = "talk_invite"

	optTalk   = "talk"
	optMember = "member"
)

func commands() []*discordgo.ApplicationCommand {
	var admin int64 = discordgo.PermissionAdministrator
	noDM := false
	return []*discordgo.ApplicationCommand{
		{
			Name:                     cmdSetup,
			Description:              "Set up talk creation for this server",
			DefaultMemberPermissions: &admin,
			DMPermission:             &noDM,
		},
		{
			Name:         cmdList,
			Description:  "Show all talks",
			DMPermission: &noDM,
		},
		{
			Name:         cmdJoin,
			Description:  "Join a talk",
			DMPermission: &noDM,
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        optTalk,
				Description: "Name of the talk to join",
				Required:    true,
			}},
		},
		{
			Name:         cmdInvite,
			Description:  "Let a member into your talk without the password",
			DMPermission: &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optTalk,
					Description: "Name of your talk",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        optMember,
					Description: "Member to invite",
					Required:    true,
				},
			},
		},
	}
}

// optionMap indexes slash command options by name.
func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}
