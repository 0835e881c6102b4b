package app

import (
	"fmt"

	"github.com/dkeye/TalkBot/internal/core"
	"github.com/dkeye/TalkBot/internal/domain"
	"github.com/rs/zerolog/log"
)

type Decision int

const (
	Allow Decision = iota
	RequirePassword
	Deny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RequirePassword:
		return "require_password"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

type PasswordResult int

const (
	PasswordCorrect PasswordResult = iota
	PasswordIncorrect
	PasswordUnknownChannel
)

func (r PasswordResult) String() string {
	switch r {
	case PasswordCorrect:
		return "correct"
	case PasswordIncorrect:
		return "incorrect"
	default:
		return "unknown_channel"
	}
}

// Authorizer decides who may occupy a talk and processes password
// submissions against the registry.
//
// GateOpenTalks switches the last rule: by default a talk without a
// password admits anyone; with GateOpenTalks it admits only authorized
// members and denies the rest.
type Authorizer struct {
	Registry      *core.Registry
	GateOpenTalks bool
}

func NewAuthorizer(reg *core.Registry, gateOpen bool) *Authorizer {
	return &Authorizer{Registry: reg, GateOpenTalks: gateOpen}
}

func (a *Authorizer) MayEnter(talk domain.Talk, member domain.MemberID) Decision {
	if member == talk.CreatorID {
		return Allow
	}
	for _, m := range talk.Authorized {
		if m == member {
			return Allow
		}
	}
	if talk.Protected() {
		return RequirePassword
	}
	if a.GateOpenTalks {
		return Deny
	}
	return Allow
}

// SubmitPassword checks candidate by exact comparison. A correct
// password authorizes the member; anything else leaves state untouched.
func (a *Authorizer) SubmitPassword(channel domain.ChannelID, member domain.MemberID, candidate string) (PasswordResult, error) {
	match, err := a.Registry.CheckPassword(channel, candidate)
	if err != nil {
		return PasswordUnknownChannel, fmt.Errorf("submit password: %w", err)
	}
	if !match {
		log.Info().Str("module", "app.policy").Str("channel", string(channel)).Str("member", string(member)).Msg("incorrect password")
		return PasswordIncorrect, core.ErrIncorrectPassword
	}
	if _, err := a.Registry.Authorize(channel, member); err != nil {
		// removed between check and authorize
		return PasswordUnknownChannel, fmt.Errorf("submit password: %w", err)
	}
	return PasswordCorrect, nil
}

// Grant lets the creator authorize a member without a password.
func (a *Authorizer) Grant(channel domain.ChannelID, actor, member domain.MemberID) (bool, error) {
	talk, ok := a.Registry.Get(channel)
	if !ok {
		return false, fmt.Errorf("grant: %w", core.ErrUnknownChannel)
	}
	if actor != talk.CreatorID {
		return false, fmt.Errorf("grant: %w", core.ErrNotCreator)
	}
	added, err := a.Registry.Authorize(channel, member)
	if err != nil {
		return false, fmt.Errorf("grant: %w", err)
	}
	return added, nil
}
