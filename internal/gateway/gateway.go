// Package gateway accepts WebSocket subscribers and connects them to the
// event bus. A new connection first receives one project_state snapshot
// per tracked project, then every live event in publish order. The
// snapshot replay and the bus registration happen as one atomic step, so
// nothing published in between is missed.
package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/livetrack/internal/bus"
	"github.com/p-blackswan/livetrack/internal/models"
	"github.com/p-blackswan/livetrack/internal/registry"
)

const defaultSendTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway owns subscriber transports while they are connected.
type Gateway struct {
	registry    *registry.Registry
	bus         *bus.Bus
	sendTimeout time.Duration
	logger      zerolog.Logger
}

// New creates a gateway.
func New(reg *registry.Registry, b *bus.Bus, sendTimeout time.Duration, logger zerolog.Logger) *Gateway {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Gateway{
		registry:    reg,
		bus:         b,
		sendTimeout: sendTimeout,
		logger:      logger.With().Str("component", "gateway").Logger(),
	}
}

// Handler returns the HTTP handler for the live event stream endpoint.
func (g *Gateway) Handler() http.HandlerFunc {
	return g.handleLive
}

func (g *Gateway) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sender := &wsSender{conn: conn, timeout: g.sendTimeout}

	sub := g.bus.Subscribe(sender, func(emit func(models.LiveEvent)) {
		for _, p := range g.registry.List() {
			emit(models.NewProjectSnapshot(p))
		}
	})
	defer g.bus.Unsubscribe(sub)

	g.logger.Info().Str("remote", r.RemoteAddr).Msg("subscriber connected")

	// Read loop: the only client→server traffic is the transport
	// heartbeat. A read error means the peer is gone.
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if string(raw) == "ping" {
			if err := sender.Send([]byte("pong")); err != nil {
				break
			}
		}
	}

	g.logger.Info().Str("remote", r.RemoteAddr).Msg("subscriber disconnected")
}

// wsSender adapts a websocket connection to the bus.Sender contract.
// The mutex serializes the pump goroutine and heartbeat replies; gorilla
// connections allow only one concurrent writer.
type wsSender struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *wsSender) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}
