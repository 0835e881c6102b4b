package domain

// GuildTalkSetting is where a guild's talks are created and announced.
type GuildTalkSetting struct {
	GuildID               GuildID   `json:"guild_id"`
	CategoryID            ChannelID `json:"category_id"`
	AnnouncementChannelID ChannelID `json:"announcement_channel_id"`
}
