package orch

import (
	"context"
	"errors"

	"github.com/dkeye/TalkBot/internal/app"
	"github.com/dkeye/TalkBot/internal/core"
	"github.com/dkeye/TalkBot/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	reasonEmpty    = "empty"
	reasonVanished = "vanished"
)

// OccupancyEvent says a member is now in, or just left, a voice channel.
type OccupancyEvent struct {
	GuildID   domain.GuildID
	ChannelID domain.ChannelID
	MemberID  domain.MemberID
	Joined    bool
}

// OnOccupancyChange handles one voice state transition. Channels that
// are not talks are ignored.
func (o *Orchestrator) OnOccupancyChange(ctx context.Context, ev OccupancyEvent) {
	talk, ok := o.Registry.Get(ev.ChannelID)
	if !ok {
		return
	}
	if ev.Joined {
		o.onJoin(ctx, talk, ev.MemberID)
		return
	}
	o.onLeave(ctx, talk, ev.MemberID)
}

func (o *Orchestrator) onJoin(ctx context.Context, talk domain.Talk, member domain.MemberID) {
	decision := o.Auth.MayEnter(talk, member)
	switch decision {
	case app.Allow:
		if o.Reaper.Cancel(talk.ChannelID) {
			o.Metrics.SetPendingDeletions(o.Reaper.PendingCount())
		}
		if member == talk.CreatorID {
			log.Info().Str("module", "orch").Str("channel", string(talk.ChannelID)).Str("member", string(member)).Msg("creator entered talk")
		} else {
			log.Info().Str("module", "orch").Str("channel", string(talk.ChannelID)).Str("member", string(member)).Msg("authorized member entered talk")
		}
		return
	case app.RequirePassword:
		o.evict(ctx, talk, member)
		if n, ok := o.challengeNotice(talk, member); ok {
			o.deliver(talk, member, n)
		}
	case app.Deny:
		o.evict(ctx, talk, member)
		o.deliver(talk, member, core.Notice{
			Title: "⛔ Talk is invite only",
			Body:  "You are not authorized to join the talk '" + talk.DisplayName + "'. Ask its creator for an invite.",
		})
	}
	o.armIfIdle(ctx, talk)
}

func (o *Orchestrator) onLeave(ctx context.Context, talk domain.Talk, member domain.MemberID) {
	n, err := o.Gateway.ChannelMemberCount(ctx, talk.GuildID, talk.ChannelID)
	if err != nil {
		if errors.Is(err, core.ErrPlatformNotFound) {
			o.reap(talk, reasonVanished)
			return
		}
		o.platformFailed("member_count", talk, member, err)
		return
	}
	if n > 0 {
		if member == talk.CreatorID {
			log.Info().Str("module", "orch").Str("channel", string(talk.ChannelID)).Int("members", n).Msg("creator left, talk stays while others remain")
		}
		return
	}
	// A pending deletion means nobody admitted has been inside since it
	// was armed, e.g. this leave is our own eviction. Keep its deadline.
	if o.Reaper.Pending(talk.ChannelID) {
		log.Debug().Str("module", "orch").Str("channel", string(talk.ChannelID)).Str("member", string(member)).Msg("talk still empty, deletion already scheduled")
		return
	}
	o.armDeletion(talk)
}

// evict disconnects the member if they are still in the talk.
func (o *Orchestrator) evict(ctx context.Context, talk domain.Talk, member domain.MemberID) {
	cur, connected := o.Gateway.MemberVoiceChannel(ctx, talk.GuildID, member)
	if !connected || cur != talk.ChannelID {
		return
	}
	if err := o.Gateway.MoveMember(ctx, talk.GuildID, member, nil); err != nil {
		o.platformFailed("evict_member", talk, member, err)
		return
	}
	o.Metrics.Evicted()
	o.publish(domain.EventMemberEvicted, talk, member)
	log.Info().Str("module", "orch").Str("channel", string(talk.ChannelID)).Str("member", string(member)).Msg("unauthorized member removed from talk")
}

// challengeNotice issues the member's challenge. ok is false when the
// talk was reaped meanwhile; the token is dropped again in that case.
func (o *Orchestrator) challengeNotice(talk domain.Talk, member domain.MemberID) (n core.Notice, ok bool) {
	ch := o.Challenges.Issue(talk, member)
	if _, tracked := o.Registry.Get(talk.ChannelID); !tracked {
		o.Challenges.DropChannel(talk.ChannelID)
		return core.Notice{}, false
	}
	return core.Notice{
		Title:  "🔒 Password-protected talk",
		Body:   "The talk '" + ch.DisplayName + "' is password protected. Enter the password before you can join.",
		Action: &core.NoticeAction{ID: ch.Token, Label: "🔑 Enter password"},
	}, true
}

// deliver sends a private notice off the event path.
func (o *Orchestrator) deliver(talk domain.Talk, member domain.MemberID, n core.Notice) {
	o.goBackground(func() {
		ctx, cancel := o.platformCtx()
		defer cancel()
		if err := o.Gateway.SendPrivateMessage(ctx, member, n); err != nil {
			o.platformFailed("send_private_message", talk, member, err)
			return
		}
		if n.Action != nil {
			o.Metrics.ChallengeSent()
		}
		log.Info().Str("module", "orch").Str("channel", string(talk.ChannelID)).Str("member", string(member)).Msg("private notice sent")
	})
}

// armIfIdle arms deletion for an empty talk that has none pending.
func (o *Orchestrator) armIfIdle(ctx context.Context, talk domain.Talk) {
	if o.Reaper.Pending(talk.ChannelID) {
		return
	}
	n, err := o.Gateway.ChannelMemberCount(ctx, talk.GuildID, talk.ChannelID)
	if err != nil || n > 0 {
		return
	}
	o.armDeletion(talk)
}

// armDeletion starts the talk's single grace timer, replacing any
// pending one.
func (o *Orchestrator) armDeletion(talk domain.Talk) {
	channel := talk.ChannelID
	o.Reaper.Arm(channel, func() {
		if !o.beginExpire() {
			return
		}
		defer o.expiring.Done()
		o.expire(channel)
	})
	o.Metrics.SetPendingDeletions(o.Reaper.PendingCount())
	o.publish(domain.EventDeletionArmed, talk, "")
	log.Info().Str("module", "orch").Str("channel", string(channel)).Dur("grace", o.Reaper.Grace()).Msg("talk empty, deletion scheduled")
}

// expire runs when a grace period ends. Nothing captured at schedule
// time is trusted: the talk and its occupancy are read again.
func (o *Orchestrator) expire(channel domain.ChannelID) {
	o.Metrics.SetPendingDeletions(o.Reaper.PendingCount())
	talk, ok := o.Registry.Get(channel)
	if !ok {
		return
	}
	ctx, cancel := o.platformCtx()
	defer cancel()

	n, err := o.Gateway.ChannelMemberCount(ctx, talk.GuildID, channel)
	if err != nil {
		if errors.Is(err, core.ErrPlatformNotFound) {
			o.reap(talk, reasonVanished)
			return
		}
		o.platformFailed("member_count", talk, "", err)
		return
	}
	if n > 0 {
		log.Debug().Str("module", "orch").Str("channel", string(channel)).Int("members", n).Msg("talk occupied again, keeping")
		return
	}
	if err := o.Gateway.DeleteChannel(ctx, channel); err != nil {
		if errors.Is(err, core.ErrPlatformNotFound) {
			o.reap(talk, reasonVanished)
			return
		}
		// Entry stays; the next empty transition retries.
		o.platformFailed("delete_channel", talk, "", err)
		return
	}
	o.reap(talk, reasonEmpty)
}

// OnChannelDeleted reaps a talk whose channel was removed on the platform.
func (o *Orchestrator) OnChannelDeleted(channel domain.ChannelID) {
	talk, ok := o.Registry.Get(channel)
	if !ok {
		return
	}
	o.reap(talk, reasonVanished)
}

func (o *Orchestrator) reap(talk domain.Talk, reason string) {
	if !o.Registry.Remove(talk.ChannelID) {
		return
	}
	o.Reaper.Cancel(talk.ChannelID)
	dropped := o.Challenges.DropChannel(talk.ChannelID)
	o.Metrics.TalkDeleted(reason)
	o.Metrics.SetActive(o.Registry.Len())
	o.Metrics.SetPendingDeletions(o.Reaper.PendingCount())
	o.publish(domain.EventTalkDeleted, talk, "")
	log.Info().Str("module", "orch").
		Str("channel", string(talk.ChannelID)).
		Str("name", talk.DisplayName).
		Str("reason", reason).
		Int("challenges_dropped", dropped).
		Msg("talk removed")
}
