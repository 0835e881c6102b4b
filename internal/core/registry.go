package core

import (
	"sync"

	"github.com/dkeye/TalkBot/internal/domain"
	"github.com/rs/zerolog/log"
)

type talkRecord struct {
	talk       domain.Talk
	authorized []domain.MemberID
	authSet    map[domain.MemberID]struct{}
}

func (r *talkRecord) snapshot() domain.Talk {
	t := r.talk
	t.Authorized = append([]domain.MemberID(nil), r.authorized...)
	if r.talk.Password != nil {
		pw := *r.talk.Password
		t.Password = &pw
	}
	return t
}

// Registry is a threadsafe in-memory index of talk channels.
// Every mutation is all-or-nothing: a record is added, changed or
// removed as a whole under the lock.
type Registry struct {
	mu    sync.RWMutex
	talks map[domain.ChannelID]*talkRecord
}

func NewRegistry() *Registry {
	return &Registry{talks: make(map[domain.ChannelID]*talkRecord)}
}

// Register starts tracking a talk with only its creator authorized.
func (r *Registry) Register(channel domain.ChannelID, guild domain.GuildID, creator domain.MemberID, password *string, displayName string) (domain.Talk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.talks[channel]; ok {
		log.Error().Str("module", "core.registry").Str("channel", string(channel)).Msg("double register")
		return domain.Talk{}, ErrAlreadyExists
	}
	var pw *string
	if password != nil {
		p := *password
		pw = &p
	}
	rec := &talkRecord{
		talk: domain.Talk{
			ChannelID:   channel,
			GuildID:     guild,
			CreatorID:   creator,
			Password:    pw,
			DisplayName: displayName,
		},
		authorized: []domain.MemberID{creator},
		authSet:    map[domain.MemberID]struct{}{creator: {}},
	}
	r.talks[channel] = rec
	log.Info().Str("module", "core.registry").Str("channel", string(channel)).Str("creator", string(creator)).Bool("protected", pw != nil).Msg("talk registered")
	return rec.snapshot(), nil
}

// Authorize adds member to the channel's authorized set.
// added is false when the member was already authorized.
func (r *Registry) Authorize(channel domain.ChannelID, member domain.MemberID) (added bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.talks[channel]
	if !ok {
		return false, ErrUnknownChannel
	}
	if _, ok := rec.authSet[member]; ok {
		return false, nil
	}
	rec.authSet[member] = struct{}{}
	rec.authorized = append(rec.authorized, member)
	log.Info().Str("module", "core.registry").Str("channel", string(channel)).Str("member", string(member)).Msg("member authorized")
	return true, nil
}

func (r *Registry) IsAuthorized(channel domain.ChannelID, member domain.MemberID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.talks[channel]
	if !ok {
		return false
	}
	if member == rec.talk.CreatorID {
		return true
	}
	_, ok = rec.authSet[member]
	return ok
}

// CheckPassword compares candidate against the stored password under the
// read lock. An open channel never matches.
func (r *Registry) CheckPassword(channel domain.ChannelID, candidate string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.talks[channel]
	if !ok {
		return false, ErrUnknownChannel
	}
	pw := rec.talk.Password
	return pw != nil && *pw == candidate, nil
}

func (r *Registry) Get(channel domain.ChannelID) (domain.Talk, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.talks[channel]
	if !ok {
		return domain.Talk{}, false
	}
	return rec.snapshot(), true
}

func (r *Registry) DisplayName(channel domain.ChannelID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.talks[channel]
	if !ok {
		return "", false
	}
	return rec.talk.DisplayName, true
}

// ByGuild returns snapshots of the guild's talks in no particular order.
func (r *Registry) ByGuild(guild domain.GuildID) []domain.Talk {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Talk, 0, len(r.talks))
	for _, rec := range r.talks {
		if rec.talk.GuildID == guild {
			out = append(out, rec.snapshot())
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.talks)
}

// Remove drops creator, password, name and authorized set together.
func (r *Registry) Remove(channel domain.ChannelID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.talks[channel]; !ok {
		return false
	}
	delete(r.talks, channel)
	log.Info().Str("module", "core.registry").Str("channel", string(channel)).Msg("talk removed")
	return true
}
