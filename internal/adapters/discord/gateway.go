// Package discord binds the talk orchestrator to Discord through discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/dkeye/TalkBot/internal/core"
	"github.com/dkeye/TalkBot/internal/domain"
)

const (
	colorInfo    = 0x3498db
	colorWarning = 0xe67e22
)

// Gateway implements core.Gateway on a discordgo session. Occupancy is
// read from the session state cache, which discordgo keeps current from
// voice state events.
type Gateway struct {
	s *discordgo.Session
}

var _ core.Gateway = (*Gateway)(nil)

func NewGateway(s *discordgo.Session) *Gateway {
	return &Gateway{s: s}
}

func (g *Gateway) CreateVoiceChannel(ctx context.Context, guild domain.GuildID, category domain.ChannelID, name string) (domain.ChannelID, error) {
	ch, err := g.s.GuildChannelCreateComplex(string(guild), discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildVoice,
		ParentID: string(category),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError("create voice channel", err)
	}
	return domain.ChannelID(ch.ID), nil
}

func (g *Gateway) DeleteChannel(ctx context.Context, channel domain.ChannelID) error {
	if _, err := g.s.ChannelDelete(string(channel), discordgo.WithContext(ctx)); err != nil {
		return mapError("delete channel", err)
	}
	return nil
}

func (g *Gateway) MoveMember(ctx context.Context, guild domain.GuildID, member domain.MemberID, target *domain.ChannelID) error {
	var to *string
	if target != nil {
		id := string(*target)
		to = &id
	}
	if err := g.s.GuildMemberMove(string(guild), string(member), to, discordgo.WithContext(ctx)); err != nil {
		return mapError("move member", err)
	}
	return nil
}

func (g *Gateway) SendPrivateMessage(ctx context.Context, member domain.MemberID, n core.Notice) error {
	dm, err := g.s.UserChannelCreate(string(member), discordgo.WithContext(ctx))
	if err != nil {
		return mapError("open dm", err)
	}
	if _, err := g.s.ChannelMessageSendComplex(dm.ID, noticeMessage(n), discordgo.WithContext(ctx)); err != nil {
		return mapError("send dm", err)
	}
	return nil
}

func (g *Gateway) ChannelMemberCount(_ context.Context, guild domain.GuildID, channel domain.ChannelID) (int, error) {
	if _, err := g.s.State.Channel(string(channel)); err != nil {
		return 0, mapError("member count", err)
	}
	gs, err := g.s.State.Guild(string(guild))
	if err != nil {
		return 0, mapError("member count", err)
	}
	g.s.State.RLock()
	defer g.s.State.RUnlock()
	return countVoice(gs.VoiceStates, string(channel)), nil
}

func (g *Gateway) MemberVoiceChannel(_ context.Context, guild domain.GuildID, member domain.MemberID) (domain.ChannelID, bool) {
	vs, err := g.s.State.VoiceState(string(guild), string(member))
	if err != nil || vs.ChannelID == "" {
		return "", false
	}
	return domain.ChannelID(vs.ChannelID), true
}

func countVoice(states []*discordgo.VoiceState, channel string) int {
	n := 0
	for _, vs := range states {
		if vs.ChannelID == channel {
			n++
		}
	}
	return n
}

// mapError folds Discord failures into the core platform errors so the
// orchestrator can tell "gone" from "not allowed".
func mapError(op string, err error) error {
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return fmt.Errorf("%s: %w: %v", op, core.ErrPlatformNotFound, err)
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%s: %w: %v", op, core.ErrPlatformForbidden, err)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: %v", op, core.ErrPlatformNotFound, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func noticeMessage(n core.Notice) *discordgo.MessageSend {
	msg := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       n.Title,
			Description: n.Body,
			Color:       colorWarning,
		}},
	}
	if n.Action != nil {
		msg.Components = []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    n.Action.Label,
					Style:    discordgo.PrimaryButton,
					CustomID: passwordButtonID(n.Action.ID),
				},
			}},
		}
	}
	return msg
}
