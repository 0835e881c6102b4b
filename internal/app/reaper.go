package app

import (
	"sync"
	"time"

	"github.com/dkeye/TalkBot/internal/domain"
	"github.com/rs/zerolog/log"
)

type pendingDeletion struct {
	gen   uint64
	timer Timer
}

// Reaper keeps at most one pending deletion per channel. Arming a channel
// that already has one replaces it; a superseded callback never runs.
type Reaper struct {
	clock Clock
	grace time.Duration

	mu      sync.Mutex
	gen     uint64
	pending map[domain.ChannelID]*pendingDeletion
}

func NewReaper(clock Clock, grace time.Duration) *Reaper {
	return &Reaper{
		clock:   clock,
		grace:   grace,
		pending: make(map[domain.ChannelID]*pendingDeletion),
	}
}

func (r *Reaper) Grace() time.Duration { return r.grace }

// Arm schedules fire after the grace period. fire must re-validate
// state itself: it runs on the clock's goroutine.
func (r *Reaper) Arm(channel domain.ChannelID, fire func()) {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	if old, ok := r.pending[channel]; ok && old.timer != nil {
		old.timer.Stop()
	}
	entry := &pendingDeletion{gen: gen}
	r.pending[channel] = entry
	r.mu.Unlock()

	t := r.clock.AfterFunc(r.grace, func() {
		if !r.take(channel, gen) {
			return
		}
		fire()
	})

	r.mu.Lock()
	if cur, ok := r.pending[channel]; ok && cur.gen == gen {
		cur.timer = t
	}
	r.mu.Unlock()
	log.Debug().Str("module", "app.reaper").Str("channel", string(channel)).Dur("grace", r.grace).Msg("deletion armed")
}

func (r *Reaper) take(channel domain.ChannelID, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.pending[channel]
	if !ok || cur.gen != gen {
		return false
	}
	delete(r.pending, channel)
	return true
}

// Cancel drops the channel's pending deletion, if any.
func (r *Reaper) Cancel(channel domain.ChannelID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.pending[channel]
	if !ok {
		return false
	}
	if cur.timer != nil {
		cur.timer.Stop()
	}
	delete(r.pending, channel)
	log.Debug().Str("module", "app.reaper").Str("channel", string(channel)).Msg("deletion cancelled")
	return true
}

func (r *Reaper) Pending(channel domain.ChannelID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[channel]
	return ok
}

func (r *Reaper) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Stop cancels everything. Used on shutdown.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch, p := range r.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(r.pending, ch)
	}
}
