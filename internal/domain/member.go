// Package domain contains entity without logic, just meta-data
package domain

// Platform identifiers are opaque strings (Discord snowflakes in production).
type (
	MemberID  string
	ChannelID string
	GuildID   string
)
