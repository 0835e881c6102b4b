package feed

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/TalkBot/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	readLimit  = 512
)

var ErrBackpressure = errors.New("feed: subscriber buffer full")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type subscriber struct {
	conn  *websocket.Conn
	guild domain.GuildID
	send  chan []byte
	once  sync.Once
}

func (s *subscriber) TrySend(data []byte) error {
	select {
	case s.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (s *subscriber) Close() {
	s.once.Do(func() {
		close(s.send)
		_ = s.conn.Close()
	})
}

// Serve upgrades the request and streams events until the peer goes
// away or ctx ends. ?guild= narrows the stream to one guild.
func (h *Hub) Serve(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "feed").Msg("ws upgrade")
		return
	}
	s := &subscriber{
		conn:  ws,
		guild: domain.GuildID(c.Query("guild")),
		send:  make(chan []byte, sendBuffer),
	}
	h.add(s)

	ctx, cancel := context.WithCancel(ctx)
	go h.writePump(ctx, s)
	go h.readPump(cancel, s)
}

func (h *Hub) writePump(ctx context.Context, s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.remove(s)
			return
		case data, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				h.remove(s)
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "feed").Msg("writePump write error")
				h.remove(s)
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.remove(s)
				return
			}
		}
	}
}

// readPump only drains control frames; observers never send data.
func (h *Hub) readPump(cancel context.CancelFunc, s *subscriber) {
	defer func() {
		cancel()
		h.remove(s)
	}()
	s.conn.SetReadLimit(readLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "feed").Msg("readPump read error")
			}
			return
		}
	}
}
