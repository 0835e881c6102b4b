// Package feed streams lifecycle events to websocket observers.
package feed

import (
	"encoding/json"
	"sync"

	"github.com/dkeye/TalkBot/internal/domain"
	"github.com/rs/zerolog/log"
)

const sendBuffer = 32

// Hub fans events out to every subscriber. It implements core.EventSink:
// Publish never blocks, and a subscriber whose buffer is full is dropped.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

func (h *Hub) Publish(ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "feed").Msg("marshal event")
		return
	}

	var slow []*subscriber
	h.mu.RLock()
	for s := range h.subs {
		if s.guild != "" && s.guild != ev.GuildID {
			continue
		}
		if err := s.TrySend(data); err != nil {
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		log.Warn().Str("module", "feed").Str("guild", string(s.guild)).Msg("subscriber too slow, dropping")
		h.remove(s)
	}
}

// Len reports the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()
	for s := range subs {
		s.Close()
	}
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	log.Info().Str("module", "feed").Str("guild", string(s.guild)).Int("subscribers", n).Msg("subscriber joined")
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	h.mu.Unlock()
	if ok {
		s.Close()
	}
}
