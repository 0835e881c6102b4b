package discord

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/dkeye/TalkBot/internal/app"
	"github.com/dkeye/TalkBot/internal/app/orch"
	"github.com/dkeye/TalkBot/internal/core"
	"github.com/dkeye/TalkBot/internal/domain"
	"github.com/rs/zerolog/log"
)

func (b *Bot) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	i := ic.Interaction
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.onCommand(s, i)
	case discordgo.InteractionMessageComponent:
		b.onComponent(s, i)
	case discordgo.InteractionModalSubmit:
		b.onModal(s, i)
	}
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func memberID(i *discordgo.Interaction) domain.MemberID {
	if u := interactionUser(i); u != nil {
		return domain.MemberID(u.ID)
	}
	return ""
}

func (b *Bot) onCommand(s *discordgo.Session, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	log.Info().Str("module", "discord").Str("command", data.Name).Str("member", string(memberID(i))).Msg("command")
	switch data.Name {
	case cmdSetup:
		if i.Member == nil || i.Member.Permissions&discordgo.PermissionAdministrator == 0 {
			b.reply(s, i, "❌ You need administrator rights to use this command!")
			return
		}
		b.modal(s, i, setupModal())
	case cmdList:
		b.listTalks(s, i)
	case cmdJoin:
		opts := optionMap(data.Options)
		b.joinTalk(s, i, opts[optTalk].StringValue())
	case cmdInvite:
		opts := optionMap(data.Options)
		b.invite(s, i, opts[optTalk].StringValue(), opts[optMember].UserValue(nil))
	}
}

func (b *Bot) onComponent(s *discordgo.Session, i *discordgo.Interaction) {
	id := i.MessageComponentData().CustomID
	if id == idCreateTalk {
		b.modal(s, i, createModal())
		return
	}
	if token, ok := splitID(id, idPasswordPrefix); ok {
		ch, found := b.Orch.Challenges.Lookup(token)
		if !found || ch.MemberID != memberID(i) {
			b.reply(s, i, "❌ This password prompt is no longer valid.")
			return
		}
		b.modal(s, i, passwordModal(token, ch.DisplayName))
		return
	}
	if channel, ok := splitID(id, idJoinPrefix); ok {
		ctx, cancel := b.eventCtx()
		defer cancel()
		out, err := b.Orch.JoinByID(ctx, domain.ChannelID(channel), memberID(i))
		if err != nil {
			b.reply(s, i, "❌ That talk no longer exists.")
			return
		}
		b.replyJoin(s, i, out)
		return
	}
	log.Warn().Str("module", "discord").Str("custom_id", id).Msg("unknown component")
	b.reply(s, i, "❌ Invalid button. Please try again.")
}

func (b *Bot) onModal(s *discordgo.Session, i *discordgo.Interaction) {
	data := i.ModalSubmitData()
	values := modalValues(data)
	switch {
	case data.CustomID == idSetupModal:
		b.setup(s, i, values)
	case data.CustomID == idCreateModal:
		b.createTalk(s, i, values)
	case strings.HasPrefix(data.CustomID, idPwModalPrefix):
		token, _ := splitID(data.CustomID, idPwModalPrefix)
		b.submitPassword(s, i, token, values[fieldPassword])
	default:
		log.Warn().Str("module", "discord").Str("custom_id", data.CustomID).Msg("unknown modal")
	}
}

// setup resolves the named text channel and category, posts the create
// prompt and records the guild's setting.
func (b *Bot) setup(s *discordgo.Session, i *discordgo.Interaction, values map[string]string) {
	guild, err := s.State.Guild(i.GuildID)
	if err != nil {
		b.reply(s, i, "❌ Server not found.")
		return
	}
	var text, category *discordgo.Channel
	s.State.RLock()
	for _, ch := range guild.Channels {
		switch {
		case ch.Type == discordgo.ChannelTypeGuildText && ch.Name == values[fieldChannel]:
			text = ch
		case ch.Type == discordgo.ChannelTypeGuildCategory && ch.Name == values[fieldCategory]:
			category = ch
		}
	}
	s.State.RUnlock()
	if text == nil {
		b.reply(s, i, "❌ Channel not found!")
		return
	}
	if category == nil {
		b.reply(s, i, "❌ Category not found!")
		return
	}

	_, err = s.ChannelMessageSendComplex(text.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "📣 Create a talk",
			Description: values[fieldMessage],
			Color:       colorInfo,
		}},
		Components: createButtonRow(),
	})
	if err != nil {
		log.Error().Err(mapError("post create prompt", err)).Str("module", "discord").Str("channel", text.ID).Msg("setup failed")
		b.reply(s, i, "❌ Could not post in that channel.")
		return
	}
	b.Orch.Setup(domain.GuildID(i.GuildID), domain.ChannelID(category.ID), domain.ChannelID(text.ID))
	log.Info().Str("module", "discord").Str("guild", i.GuildID).Str("category", category.ID).Msg("talk system set up")
	b.reply(s, i, "✅ Talk creation prompt set up!")
}

func (b *Bot) createTalk(s *discordgo.Session, i *discordgo.Interaction, values map[string]string) {
	needPw := parseYes(values[fieldNeedPw])
	req := orch.CreateTalkRequest{
		GuildID:          domain.GuildID(i.GuildID),
		RequesterID:      memberID(i),
		Name:             values[fieldName],
		PasswordRequired: needPw,
	}
	if needPw {
		req.Password = values[fieldPassword]
	}
	ctx, cancel := b.eventCtx()
	defer cancel()
	talk, err := b.Orch.CreateTalk(ctx, req)
	if err != nil {
		b.reply(s, i, createErrorText(err))
		return
	}
	mode := "without password"
	if talk.Protected() {
		mode = "with password"
	}
	b.reply(s, i, fmt.Sprintf("✅ Your talk was created in <#%s> (%s)!", talk.ChannelID, mode))
}

func createErrorText(err error) string {
	switch {
	case errors.Is(err, core.ErrUnknownGuildSetting):
		return "❌ The talk system is not set up on this server!"
	case errors.Is(err, core.ErrPasswordMissing):
		return "❌ You said a password is required but did not enter one!"
	case errors.Is(err, core.ErrInvalidRequest):
		return fmt.Sprintf("❌ The talk name must be 1 to %d characters and the password at most %d.", domain.MaxTalkNameLen, domain.MaxPasswordLen)
	case errors.Is(err, core.ErrPlatformForbidden):
		return "❌ I am not allowed to create voice channels!"
	default:
		return "❌ Something went wrong while creating your talk."
	}
}

func (b *Bot) submitPassword(s *discordgo.Session, i *discordgo.Interaction, token, candidate string) {
	ctx, cancel := b.eventCtx()
	defer cancel()
	out, err := b.Orch.SubmitPassword(ctx, token, memberID(i), candidate)
	switch {
	case errors.Is(err, core.ErrIncorrectPassword):
		b.reply(s, i, "❌ Wrong password!")
	case err != nil:
		b.reply(s, i, "❌ Channel or member not found.")
	case out.Moved:
		b.reply(s, i, fmt.Sprintf("✅ Password correct! You were moved into the talk '%s'.", out.DisplayName))
	default:
		b.reply(s, i, fmt.Sprintf("✅ Password correct! Please join the talk '%s' yourself.", out.DisplayName))
	}
}

func (b *Bot) listTalks(s *discordgo.Session, i *discordgo.Interaction) {
	ctx, cancel := b.eventCtx()
	defer cancel()
	rows := b.Orch.ListTalks(ctx, domain.GuildID(i.GuildID), memberID(i))
	if len(rows) == 0 {
		b.reply(s, i, "There are no talks right now.")
		return
	}
	embed, buttons := talkListing(rows)
	b.respond(s, i, &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: buttons,
		Flags:      discordgo.MessageFlagsEphemeral,
	})
}

// talkListing renders the listing embed and join buttons for talks the
// member may enter, at most one row of them.
func talkListing(rows []orch.TalkSummary) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := &discordgo.MessageEmbed{
		Title:       "📣 Available talks",
		Description: "All talks on this server:",
		Color:       colorInfo,
	}
	var joins []discordgo.MessageComponent
	for _, r := range rows {
		status := "🔓 Open"
		if r.Protected {
			status = "🔒 Password protected"
		}
		access := "❌ Access denied"
		if r.MayEnter {
			access = "✅ Access allowed"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   r.Name,
			Value:  fmt.Sprintf("%s\n%s\nMembers: %d", status, access, r.Members),
			Inline: true,
		})
		if r.MayEnter && len(joins) < maxButtonsPerRow {
			joins = append(joins, discordgo.Button{
				Label:    truncate(r.Name, 80),
				Style:    discordgo.SuccessButton,
				CustomID: joinButtonID(r.ChannelID),
			})
		}
	}
	if len(joins) == 0 {
		return embed, nil
	}
	return embed, []discordgo.MessageComponent{discordgo.ActionsRow{Components: joins}}
}

func (b *Bot) joinTalk(s *discordgo.Session, i *discordgo.Interaction, query string) {
	ctx, cancel := b.eventCtx()
	defer cancel()
	out, err := b.Orch.JoinTalk(ctx, domain.GuildID(i.GuildID), memberID(i), query)
	if err != nil {
		b.reply(s, i, fmt.Sprintf("❌ No talk named '%s' found.", query))
		return
	}
	b.replyJoin(s, i, out)
}

func (b *Bot) replyJoin(s *discordgo.Session, i *discordgo.Interaction, out orch.JoinOutcome) {
	name := out.Talk.DisplayName
	switch out.Decision {
	case app.Allow:
		if out.Moved {
			b.reply(s, i, fmt.Sprintf("✅ You were moved into the talk '%s'.", name))
			return
		}
		b.reply(s, i, fmt.Sprintf("✅ You may enter! Please join the talk '%s' yourself, you are not in a voice channel.", name))
	case app.RequirePassword:
		b.respond(s, i, &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "🔒 Password-protected talk",
				Description: fmt.Sprintf("The talk '%s' is password protected. Enter the password before you can join.", name),
				Color:       colorWarning,
			}},
			Components: passwordButtonRow(out.Challenge.Token),
			Flags:      discordgo.MessageFlagsEphemeral,
		})
	default:
		b.reply(s, i, "❌ You are not authorized to join this talk.")
	}
}

func (b *Bot) invite(s *discordgo.Session, i *discordgo.Interaction, query string, user *discordgo.User) {
	if user == nil {
		b.reply(s, i, "❌ Member not found.")
		return
	}
	talk, ok := b.Orch.FindTalk(domain.GuildID(i.GuildID), query)
	if !ok {
		b.reply(s, i, fmt.Sprintf("❌ No talk named '%s' found.", query))
		return
	}
	added, err := b.Orch.Grant(talk.ChannelID, memberID(i), domain.MemberID(user.ID))
	switch {
	case errors.Is(err, core.ErrNotCreator):
		b.reply(s, i, "❌ Only the creator of a talk can invite members.")
	case err != nil:
		b.reply(s, i, "❌ That talk no longer exists.")
	case !added:
		b.reply(s, i, fmt.Sprintf("ℹ️ <@%s> may already enter '%s'.", user.ID, talk.DisplayName))
	default:
		b.reply(s, i, fmt.Sprintf("✅ <@%s> may now enter '%s'.", user.ID, talk.DisplayName))
	}
}

func (b *Bot) reply(s *discordgo.Session, i *discordgo.Interaction, content string) {
	b.respond(s, i, &discordgo.InteractionResponseData{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.Interaction, data *discordgo.InteractionResponseData) {
	err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "discord").Str("interaction", i.ID).Msg("respond")
	}
}

func (b *Bot) modal(s *discordgo.Session, i *discordgo.Interaction, data *discordgo.InteractionResponseData) {
	err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: data,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "discord").Str("modal", data.CustomID).Msg("open modal")
	}
}
