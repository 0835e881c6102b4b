package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/dkeye/TalkBot/internal/app/orch"
	"github.com/dkeye/TalkBot/internal/domain"
	"github.com/rs/zerolog/log"
)

// occupancyEvents turns one voice state update into the leave and join
// it stands for. Mute or deafen toggles inside one channel yield nothing.
func occupancyEvents(u *discordgo.VoiceStateUpdate) []orch.OccupancyEvent {
	if u.VoiceState == nil {
		return nil
	}
	before := ""
	if u.BeforeUpdate != nil {
		before = u.BeforeUpdate.ChannelID
	}
	after := u.ChannelID
	if before == after {
		return nil
	}
	guild := domain.GuildID(u.GuildID)
	member := domain.MemberID(u.UserID)

	var out []orch.OccupancyEvent
	if before != "" {
		out = append(out, orch.OccupancyEvent{GuildID: guild, ChannelID: domain.ChannelID(before), MemberID: member, Joined: false})
	}
	if after != "" {
		out = append(out, orch.OccupancyEvent{GuildID: guild, ChannelID: domain.ChannelID(after), MemberID: member, Joined: true})
	}
	return out
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, u *discordgo.VoiceStateUpdate) {
	if s.State.User != nil && u.UserID == s.State.User.ID {
		return
	}
	events := occupancyEvents(u)
	if len(events) == 0 {
		return
	}
	ctx, cancel := b.eventCtx()
	defer cancel()
	for _, ev := range events {
		log.Debug().Str("module", "discord").
			Str("channel", string(ev.ChannelID)).
			Str("member", string(ev.MemberID)).
			Bool("joined", ev.Joined).
			Msg("voice state")
		b.Orch.OnOccupancyChange(ctx, ev)
	}
}

func (b *Bot) onChannelDelete(_ *discordgo.Session, d *discordgo.ChannelDelete) {
	if d.Channel == nil {
		return
	}
	b.Orch.OnChannelDeleted(domain.ChannelID(d.ID))
}
