package core

import (
	"context"

	"github.com/dkeye/TalkBot/internal/domain"
)

// NoticeAction is an optional button attached to a private notice.
// ID is opaque to the adapter and routed back on click.
type NoticeAction struct {
	ID    string
	Label string
}

// Notice is a private message to a member.
type Notice struct {
	Title  string
	Body   string
	Action *NoticeAction
}

// Gateway abstracts the chat platform for the core.
// Owned by the adapter; every call may fail with ErrPlatformForbidden or
// ErrPlatformNotFound (wrapped).
type Gateway interface {
	CreateVoiceChannel(ctx context.Context, guild domain.GuildID, category domain.ChannelID, name string) (domain.ChannelID, error)
	DeleteChannel(ctx context.Context, channel domain.ChannelID) error
	// MoveMember moves a connected member to target, or disconnects them when target is nil.
	MoveMember(ctx context.Context, guild domain.GuildID, member domain.MemberID, target *domain.ChannelID) error
	SendPrivateMessage(ctx context.Context, member domain.MemberID, n Notice) error

	// ChannelMemberCount reads live occupancy; never cached by the core.
	ChannelMemberCount(ctx context.Context, guild domain.GuildID, channel domain.ChannelID) (int, error)
	MemberVoiceChannel(ctx context.Context, guild domain.GuildID, member domain.MemberID) (domain.ChannelID, bool)
}

// EventSink receives lifecycle events. Publish must not block.
type EventSink interface {
	Publish(ev domain.Event)
}
