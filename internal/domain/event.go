package domain

import "time"

type EventType string

const (
	EventTalkCreated      EventType = "talk_created"
	EventTalkDeleted      EventType = "talk_deleted"
	EventMemberAuthorized EventType = "member_authorized"
	EventMemberEvicted    EventType = "member_evicted"
	EventDeletionArmed    EventType = "deletion_armed"
)

// Event is a lifecycle notification for observers (feed, dashboards).
type Event struct {
	Type      EventType `json:"type"`
	GuildID   GuildID   `json:"guild_id"`
	ChannelID ChannelID `json:"channel_id"`
	MemberID  MemberID  `json:"member_id,omitempty"`
	Name      string    `json:"name,omitempty"`
	At        time.Time `json:"at"`
}
