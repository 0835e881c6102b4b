package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/dkeye/TalkBot/internal/domain"
)

// Custom ids. Dynamic ids carry their argument after the colon.
const (
	idCreateTalk     = "create_talk"
	idSetupModal     = "talk_setup"
	idCreateModal    = "talk_create"
	idPasswordPrefix = "talk_pw:"
	idPwModalPrefix  = "talk_pw_modal:"
	idJoinPrefix     = "talk_join:"

	fieldChannel  = "channel"
	fieldMessage  = "message"
	fieldCategory = "category"
	fieldName     = "name"
	fieldNeedPw   = "password_required"
	fieldPassword = "password"

	maxButtonsPerRow = 5
)

func passwordButtonID(token string) string    { return idPasswordPrefix + token }
func passwordModalID(token string) string     { return idPwModalPrefix + token }
func joinButtonID(ch domain.ChannelID) string { return idJoinPrefix + string(ch) }

// splitID returns the argument of a dynamic custom id with the given prefix.
func splitID(customID, prefix string) (string, bool) {
	arg, ok := strings.CutPrefix(customID, prefix)
	if !ok || arg == "" {
		return "", false
	}
	return arg, true
}

// parseYes accepts the answers the creation form has always taken.
func parseYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ja", "yes", "j", "y":
		return true
	}
	return false
}

// modalValues flattens submitted text inputs into custom id -> value.
func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	out := make(map[string]string)
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rc := range row.Components {
			if in, ok := rc.(*discordgo.TextInput); ok {
				out[in.CustomID] = in.Value
			}
		}
	}
	return out
}

func textRow(in discordgo.TextInput) discordgo.ActionsRow {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{in}}
}

func setupModal() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: idSetupModal,
		Title:    "Set up talk creation",
		Components: []discordgo.MessageComponent{
			textRow(discordgo.TextInput{
				CustomID:    fieldChannel,
				Label:       "Channel name",
				Placeholder: "Text channel that gets the create button",
				Style:       discordgo.TextInputShort,
				Required:    true,
			}),
			textRow(discordgo.TextInput{
				CustomID:    fieldMessage,
				Label:       "Message",
				Placeholder: "Text shown above the button",
				Style:       discordgo.TextInputParagraph,
				Required:    true,
			}),
			textRow(discordgo.TextInput{
				CustomID:    fieldCategory,
				Label:       "Category name",
				Placeholder: "Category new talks are created in",
				Style:       discordgo.TextInputShort,
				Required:    true,
			}),
		},
	}
}

func createModal() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: idCreateModal,
		Title:    "Create your talk",
		Components: []discordgo.MessageComponent{
			textRow(discordgo.TextInput{
				CustomID:    fieldName,
				Label:       "Talk name",
				Placeholder: "Name of your talk",
				Style:       discordgo.TextInputShort,
				Required:    true,
				MaxLength:   domain.MaxTalkNameLen,
			}),
			textRow(discordgo.TextInput{
				CustomID:    fieldNeedPw,
				Label:       "Password required?",
				Placeholder: "Yes or No",
				Style:       discordgo.TextInputShort,
				Required:    true,
				MaxLength:   3,
			}),
			textRow(discordgo.TextInput{
				CustomID:    fieldPassword,
				Label:       "Password (if required)",
				Placeholder: "Leave empty for an open talk",
				Style:       discordgo.TextInputShort,
				Required:    false,
				MaxLength:   domain.MaxPasswordLen,
			}),
		},
	}
}

func passwordModal(token, displayName string) *discordgo.InteractionResponseData {
	title := "Enter password"
	if displayName != "" {
		title = truncate("Password for "+displayName, 45)
	}
	return &discordgo.InteractionResponseData{
		CustomID: passwordModalID(token),
		Title:    title,
		Components: []discordgo.MessageComponent{
			textRow(discordgo.TextInput{
				CustomID:    fieldPassword,
				Label:       "Password",
				Placeholder: "Password for this talk",
				Style:       discordgo.TextInputShort,
				Required:    true,
				MaxLength:   domain.MaxPasswordLen,
			}),
		},
	}
}

func createButtonRow() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "🎙️ Create talk", Style: discordgo.PrimaryButton, CustomID: idCreateTalk},
		}},
	}
}

func passwordButtonRow(token string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "🔑 Enter password", Style: discordgo.PrimaryButton, CustomID: passwordButtonID(token)},
		}},
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
