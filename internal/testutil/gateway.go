package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/TalkBot/internal/core"
	"github.com/dkeye/TalkBot/internal/domain"
)

type Move struct {
	Guild  domain.GuildID
	Member domain.MemberID
	Target *domain.ChannelID
}

// VoiceChange is a voice transition caused by a move. Discord reports
// each one back as a voice state update.
type VoiceChange struct {
	Guild  domain.GuildID
	Member domain.MemberID
	From   domain.ChannelID
	To     domain.ChannelID
}

type SentNotice struct {
	Member domain.MemberID
	Notice core.Notice
}

// FakeGateway is an in-memory core.Gateway. It tracks voice state per
// member so occupancy reads reflect moves and joins.
type FakeGateway struct {
	mu sync.Mutex

	nextID   int
	channels map[domain.ChannelID]domain.GuildID
	names    map[domain.ChannelID]string
	voice    map[domain.MemberID]domain.ChannelID

	Deleted []domain.ChannelID
	Moves   []Move
	Sent    []SentNotice
	changes []VoiceChange

	CreateErr error
	DeleteErr error
	MoveErr   error
	SendErr   error

	// ReuseID, when set, is returned by the next CreateVoiceChannel.
	ReuseID domain.ChannelID
	// BeforeMove runs at the start of MoveMember, without the lock.
	BeforeMove func(domain.MemberID)
	// BeforeDelete runs at the start of DeleteChannel, without the lock.
	BeforeDelete func(domain.ChannelID)
}

var _ core.Gateway = (*FakeGateway)(nil)

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		channels: make(map[domain.ChannelID]domain.GuildID),
		names:    make(map[domain.ChannelID]string),
		voice:    make(map[domain.MemberID]domain.ChannelID),
	}
}

// Connect puts member into channel, as if they joined through the client.
func (g *FakeGateway) Connect(member domain.MemberID, channel domain.ChannelID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.voice[member] = channel
}

func (g *FakeGateway) Disconnect(member domain.MemberID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.voice, member)
}

// AddChannel registers a pre-existing platform channel.
func (g *FakeGateway) AddChannel(guild domain.GuildID, channel domain.ChannelID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[channel] = guild
}

// Vanish deletes a channel behind the bot's back, as a moderator would.
func (g *FakeGateway) Vanish(channel domain.ChannelID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.channels, channel)
	delete(g.names, channel)
	for m, ch := range g.voice {
		if ch == channel {
			delete(g.voice, m)
		}
	}
}

func (g *FakeGateway) Exists(channel domain.ChannelID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.channels[channel]
	return ok
}

func (g *FakeGateway) ChannelName(channel domain.ChannelID) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.names[channel]
}

func (g *FakeGateway) CreateVoiceChannel(_ context.Context, guild domain.GuildID, _ domain.ChannelID, name string) (domain.ChannelID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return "", g.CreateErr
	}
	id := g.ReuseID
	g.ReuseID = ""
	if id == "" {
		g.nextID++
		id = domain.ChannelID(fmt.Sprintf("vc-%d", g.nextID))
	}
	g.channels[id] = guild
	g.names[id] = name
	return id, nil
}

func (g *FakeGateway) DeleteChannel(_ context.Context, channel domain.ChannelID) error {
	if g.BeforeDelete != nil {
		g.BeforeDelete(channel)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Deleted = append(g.Deleted, channel)
	if g.DeleteErr != nil {
		return g.DeleteErr
	}
	if _, ok := g.channels[channel]; !ok {
		return fmt.Errorf("delete %s: %w", channel, core.ErrPlatformNotFound)
	}
	delete(g.channels, channel)
	delete(g.names, channel)
	return nil
}

func (g *FakeGateway) MoveMember(_ context.Context, guild domain.GuildID, member domain.MemberID, target *domain.ChannelID) error {
	if g.BeforeMove != nil {
		g.BeforeMove(member)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Moves = append(g.Moves, Move{Guild: guild, Member: member, Target: target})
	if g.MoveErr != nil {
		return g.MoveErr
	}
	from, ok := g.voice[member]
	if !ok {
		return fmt.Errorf("move %s: %w", member, core.ErrPlatformNotFound)
	}
	if target == nil {
		delete(g.voice, member)
		g.changes = append(g.changes, VoiceChange{Guild: guild, Member: member, From: from})
		return nil
	}
	g.voice[member] = *target
	if from != *target {
		g.changes = append(g.changes, VoiceChange{Guild: guild, Member: member, From: from, To: *target})
	}
	return nil
}

// TakeVoiceChanges returns and clears the transitions caused by moves.
func (g *FakeGateway) TakeVoiceChanges() []VoiceChange {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.changes
	g.changes = nil
	return out
}

func (g *FakeGateway) SendPrivateMessage(_ context.Context, member domain.MemberID, n core.Notice) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SendErr != nil {
		return g.SendErr
	}
	g.Sent = append(g.Sent, SentNotice{Member: member, Notice: n})
	return nil
}

func (g *FakeGateway) ChannelMemberCount(_ context.Context, _ domain.GuildID, channel domain.ChannelID) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.channels[channel]; !ok {
		return 0, fmt.Errorf("count %s: %w", channel, core.ErrPlatformNotFound)
	}
	n := 0
	for _, ch := range g.voice {
		if ch == channel {
			n++
		}
	}
	return n, nil
}

func (g *FakeGateway) MemberVoiceChannel(_ context.Context, _ domain.GuildID, member domain.MemberID) (domain.ChannelID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.voice[member]
	return ch, ok
}

// Snapshots for assertions; safe against concurrent deliveries.

func (g *FakeGateway) DeletedChannels() []domain.ChannelID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.ChannelID(nil), g.Deleted...)
}

func (g *FakeGateway) SentNotices() []SentNotice {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SentNotice(nil), g.Sent...)
}

func (g *FakeGateway) MoveLog() []Move {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Move(nil), g.Moves...)
}
