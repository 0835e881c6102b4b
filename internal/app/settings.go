package app

import (
	"sync"

	"github.com/dkeye/TalkBot/internal/domain"
	"github.com/rs/zerolog/log"
)

// GuildSettings holds one GuildTalkSetting per guild that ran setup.
type GuildSettings struct {
	mu      sync.RWMutex
	byGuild map[domain.GuildID]domain.GuildTalkSetting
}

func NewGuildSettings() *GuildSettings {
	return &GuildSettings{byGuild: make(map[domain.GuildID]domain.GuildTalkSetting)}
}

// Put stores or overwrites the guild's setting.
func (s *GuildSettings) Put(setting domain.GuildTalkSetting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byGuild[setting.GuildID] = setting
	log.Info().Str("module", "app.settings").
		Str("guild", string(setting.GuildID)).
		Str("category", string(setting.CategoryID)).
		Str("announce", string(setting.AnnouncementChannelID)).
		Msg("guild talk setting stored")
}

func (s *GuildSettings) Get(guild domain.GuildID) (domain.GuildTalkSetting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byGuild[guild]
	return st, ok
}

func (s *GuildSettings) List() []domain.GuildTalkSetting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.GuildTalkSetting, 0, len(s.byGuild))
	for _, st := range s.byGuild {
		out = append(out, st)
	}
	return out
}
