package orch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dkeye/TalkBot/internal/app"
	"github.com/dkeye/TalkBot/internal/core"
	"github.com/dkeye/TalkBot/internal/domain"
	"github.com/rs/zerolog/log"
)

// CreateTalkRequest is what a member submits in the creation form.
type CreateTalkRequest struct {
	GuildID          domain.GuildID  `validate:"required"`
	RequesterID      domain.MemberID `validate:"required"`
	Name             string          `validate:"required,max=32"`
	PasswordRequired bool
	Password         string `validate:"max=20"`
}

// CreateTalk creates the voice channel under the guild's category and
// starts tracking it. A new talk is empty, so its grace timer is armed
// right away; the first admitted join cancels it.
func (o *Orchestrator) CreateTalk(ctx context.Context, req CreateTalkRequest) (domain.Talk, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := o.validate.Struct(req); err != nil {
		return domain.Talk{}, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}
	var password *string
	if req.PasswordRequired {
		if req.Password == "" {
			return domain.Talk{}, core.ErrPasswordMissing
		}
		pw := req.Password
		password = &pw
	}
	setting, ok := o.Settings.Get(req.GuildID)
	if !ok {
		return domain.Talk{}, core.ErrUnknownGuildSetting
	}

	name := domain.ChannelName(req.Name, password != nil)
	channel, err := o.Gateway.CreateVoiceChannel(ctx, req.GuildID, setting.CategoryID, name)
	if err != nil {
		o.platformFailed("create_channel", domain.Talk{GuildID: req.GuildID}, req.RequesterID, err)
		return domain.Talk{}, fmt.Errorf("create voice channel: %w", err)
	}
	// Register only fails on an id that is already tracked, so there is
	// no untracked channel to clean up here.
	talk, err := o.Registry.Register(channel, req.GuildID, req.RequesterID, password, name)
	if err != nil {
		return domain.Talk{}, fmt.Errorf("register talk: %w", err)
	}

	o.Metrics.TalkCreated(talk.Protected())
	o.Metrics.SetActive(o.Registry.Len())
	o.publish(domain.EventTalkCreated, talk, req.RequesterID)
	log.Info().Str("module", "orch").
		Str("channel", string(channel)).
		Str("name", name).
		Str("creator", string(req.RequesterID)).
		Bool("protected", talk.Protected()).
		Msg("talk created")

	o.armDeletion(talk)
	return talk, nil
}

// TalkSummary is a listing row for one talk as seen by one member.
type TalkSummary struct {
	ChannelID domain.ChannelID `json:"channel_id"`
	Name      string           `json:"name"`
	Protected bool             `json:"protected"`
	MayEnter  bool             `json:"may_enter"`
	Members   int              `json:"members"`
}

// ListTalks lists the guild's talks sorted by name. Talks whose channel
// has vanished are reaped instead of listed.
func (o *Orchestrator) ListTalks(ctx context.Context, guild domain.GuildID, member domain.MemberID) []TalkSummary {
	talks := o.Registry.ByGuild(guild)
	out := make([]TalkSummary, 0, len(talks))
	for _, t := range talks {
		n, err := o.Gateway.ChannelMemberCount(ctx, t.GuildID, t.ChannelID)
		if errors.Is(err, core.ErrPlatformNotFound) {
			o.reap(t, reasonVanished)
			continue
		}
		if err != nil {
			o.platformFailed("member_count", t, member, err)
		}
		out = append(out, TalkSummary{
			ChannelID: t.ChannelID,
			Name:      t.DisplayName,
			Protected: t.Protected(),
			MayEnter:  o.Auth.MayEnter(t, member) == app.Allow,
			Members:   n,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// JoinOutcome reports what an explicit join request did. Challenge is
// set when the member must enter a password first.
type JoinOutcome struct {
	Talk      domain.Talk
	Decision  app.Decision
	Moved     bool
	Challenge *app.Challenge
}

// JoinTalk finds a talk whose name contains query (case-insensitive)
// and admits the member to it.
func (o *Orchestrator) JoinTalk(ctx context.Context, guild domain.GuildID, member domain.MemberID, query string) (JoinOutcome, error) {
	talk, ok := o.FindTalk(guild, query)
	if !ok {
		return JoinOutcome{}, fmt.Errorf("join %q: %w", query, core.ErrUnknownChannel)
	}
	return o.admit(ctx, talk, member), nil
}

// JoinByID admits the member to a known talk.
func (o *Orchestrator) JoinByID(ctx context.Context, channel domain.ChannelID, member domain.MemberID) (JoinOutcome, error) {
	talk, ok := o.Registry.Get(channel)
	if !ok {
		return JoinOutcome{}, fmt.Errorf("join %s: %w", channel, core.ErrUnknownChannel)
	}
	return o.admit(ctx, talk, member), nil
}

// FindTalk returns the first talk, by name, whose name contains query
// case-insensitively.
func (o *Orchestrator) FindTalk(guild domain.GuildID, query string) (domain.Talk, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return domain.Talk{}, false
	}
	talks := o.Registry.ByGuild(guild)
	sort.Slice(talks, func(i, j int) bool { return talks[i].DisplayName < talks[j].DisplayName })
	for _, t := range talks {
		if strings.Contains(strings.ToLower(t.DisplayName), q) {
			return t, true
		}
	}
	return domain.Talk{}, false
}

func (o *Orchestrator) admit(ctx context.Context, talk domain.Talk, member domain.MemberID) JoinOutcome {
	out := JoinOutcome{Talk: talk, Decision: o.Auth.MayEnter(talk, member)}
	switch out.Decision {
	case app.Allow:
		out.Moved = o.moveInto(ctx, talk, member)
	case app.RequirePassword:
		ch := o.Challenges.Issue(talk, member)
		out.Challenge = &ch
	case app.Deny:
		log.Info().Str("module", "orch").Str("channel", string(talk.ChannelID)).Str("member", string(member)).Msg("join denied")
	}
	return out
}

// moveInto moves a connected member into the talk. It reports false when
// the member has no voice connection or the move failed; either way
// they have to join by hand.
func (o *Orchestrator) moveInto(ctx context.Context, talk domain.Talk, member domain.MemberID) bool {
	cur, connected := o.Gateway.MemberVoiceChannel(ctx, talk.GuildID, member)
	if !connected {
		return false
	}
	if cur == talk.ChannelID {
		return true
	}
	target := talk.ChannelID
	if err := o.Gateway.MoveMember(ctx, talk.GuildID, member, &target); err != nil {
		o.platformFailed("move_member", talk, member, err)
		return false
	}
	log.Info().Str("module", "orch").Str("channel", string(talk.ChannelID)).Str("member", string(member)).Msg("member moved into talk")
	return true
}

// Grant lets the creator authorize a member directly.
func (o *Orchestrator) Grant(channel domain.ChannelID, actor, member domain.MemberID) (bool, error) {
	added, err := o.Auth.Grant(channel, actor, member)
	if err != nil {
		return false, err
	}
	if added {
		talk, _ := o.Registry.Get(channel)
		o.publish(domain.EventMemberAuthorized, talk, member)
	}
	return added, nil
}
