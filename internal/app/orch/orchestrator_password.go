package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/TalkBot/internal/app"
	"github.com/dkeye/TalkBot/internal/core"
	"github.com/dkeye/TalkBot/internal/domain"
	"github.com/rs/zerolog/log"
)

// PasswordOutcome reports a password submission. Moved is false after a
// correct password when the member must rejoin by hand.
type PasswordOutcome struct {
	Result      app.PasswordResult
	ChannelID   domain.ChannelID
	DisplayName string
	Moved       bool
}

// SubmitPassword answers a challenge. Only the challenged member may
// answer it.
func (o *Orchestrator) SubmitPassword(ctx context.Context, token string, member domain.MemberID, candidate string) (PasswordOutcome, error) {
	ch, ok := o.Challenges.Lookup(token)
	if !ok || ch.MemberID != member {
		return PasswordOutcome{Result: app.PasswordUnknownChannel}, core.ErrUnknownChallenge
	}
	return o.SubmitPasswordFor(ctx, ch.ChannelID, member, candidate)
}

// SubmitPasswordFor checks candidate for the talk. On success the member
// is authorized and, if connected to voice, moved into the talk.
func (o *Orchestrator) SubmitPasswordFor(ctx context.Context, channel domain.ChannelID, member domain.MemberID, candidate string) (PasswordOutcome, error) {
	out := PasswordOutcome{ChannelID: channel}
	talk, ok := o.Registry.Get(channel)
	if !ok {
		o.Challenges.DropChannel(channel)
		out.Result = app.PasswordUnknownChannel
		o.Metrics.PasswordSubmitted(out.Result.String())
		return out, fmt.Errorf("submit password: %w", core.ErrUnknownChannel)
	}
	out.DisplayName = talk.DisplayName

	res, err := o.Auth.SubmitPassword(channel, member, candidate)
	out.Result = res
	o.Metrics.PasswordSubmitted(res.String())
	if res == app.PasswordUnknownChannel {
		o.Challenges.DropChannel(channel)
	}
	if err != nil {
		return out, err
	}

	o.publish(domain.EventMemberAuthorized, talk, member)
	log.Info().Str("module", "orch").Str("channel", string(channel)).Str("member", string(member)).Msg("member authorized by password")
	out.Moved = o.moveInto(ctx, talk, member)
	return out, nil
}
