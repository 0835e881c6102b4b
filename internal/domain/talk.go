package domain

const (
	MaxTalkNameLen = 32
	MaxPasswordLen = 20

	ProtectedPrefix = "🔒"
	OpenPrefix      = "🎙️"
)

// Talk is a read-only snapshot of a tracked voice channel.
// The registry owns the live record; callers never mutate a Talk.
type Talk struct {
	ChannelID   ChannelID  `json:"channel_id"`
	GuildID     GuildID    `json:"guild_id"`
	CreatorID   MemberID   `json:"creator_id"`
	Password    *string    `json:"-"`
	DisplayName string     `json:"display_name"`
	Authorized  []MemberID `json:"authorized"`
}

// Protected reports whether joining requires a password.
func (t Talk) Protected() bool { return t.Password != nil }

// ChannelName builds the platform channel name for a talk.
func ChannelName(name string, protected bool) string {
	if protected {
		return ProtectedPrefix + " " + name
	}
	return OpenPrefix + " " + name
}
