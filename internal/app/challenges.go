package app

import (
	"sync"

	"github.com/dkeye/TalkBot/internal/domain"
	"github.com/google/uuid"
)

// Challenge is a pending password prompt for one member and one talk.
// Token is what the adapter puts on the button.
type Challenge struct {
	Token       string
	ChannelID   domain.ChannelID
	GuildID     domain.GuildID
	MemberID    domain.MemberID
	DisplayName string
}

type challengeKey struct {
	channel domain.ChannelID
	member  domain.MemberID
}

// Challenges maps opaque tokens to challenges. A member gets one token
// per talk; it stays valid until the talk is removed.
type Challenges struct {
	mu      sync.Mutex
	byToken map[string]Challenge
	byKey   map[challengeKey]string
}

func NewChallenges() *Challenges {
	return &Challenges{
		byToken: make(map[string]Challenge),
		byKey:   make(map[challengeKey]string),
	}
}

func (c *Challenges) Issue(talk domain.Talk, member domain.MemberID) Challenge {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := challengeKey{talk.ChannelID, member}
	if tok, ok := c.byKey[key]; ok {
		return c.byToken[tok]
	}
	ch := Challenge{
		Token:       uuid.NewString(),
		ChannelID:   talk.ChannelID,
		GuildID:     talk.GuildID,
		MemberID:    member,
		DisplayName: talk.DisplayName,
	}
	c.byToken[ch.Token] = ch
	c.byKey[key] = ch.Token
	return ch
}

func (c *Challenges) Lookup(token string) (Challenge, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.byToken[token]
	return ch, ok
}

// DropChannel forgets every challenge for channel and returns how many.
func (c *Challenges) DropChannel(channel domain.ChannelID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, tok := range c.byKey {
		if key.channel != channel {
			continue
		}
		delete(c.byKey, key)
		delete(c.byToken, tok)
		n++
	}
	return n
}

func (c *Challenges) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byToken)
}
