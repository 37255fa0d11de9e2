// Package ws streams orchestrator events to WebSocket subscribers:
// lifecycle transitions, launches, surface changes, sleep and lock
// edges. Slow consumers are dropped rather than allowed to stall the
// fan-out.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/luminos-ui/shellhost/internal/domain/orchestrator"
	"github.com/luminos-ui/shellhost/internal/infrastructure/monitoring"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBuffer = 64
)

// Stream fans orchestrator events out to connected subscribers.
type Stream struct {
	log     *zap.Logger
	metrics *monitoring.Metrics

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan orchestrator.Event
}

// NewStream creates an event stream hub.
func NewStream(log *zap.Logger, metrics *monitoring.Metrics) *Stream {
	return &Stream{
		log:     log,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Publish fans one event out. Full client buffers drop the client:
// a subscriber that cannot keep up re-syncs from the state dump.
func (s *Stream) Publish(ev orchestrator.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- ev:
		default:
			delete(s.clients, c)
			close(c.send)
		}
	}
}

// Handle upgrades the request and serves the subscription until the
// peer disconnects.
func (s *Stream) Handle(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan orchestrator.Event, sendBuffer)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[cl] = struct{}{}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IncStreamConnections()
	}

	go s.writeLoop(cl)
	s.readLoop(cl)
}

// readLoop discards inbound frames; it exists to process pongs and to
// notice the close.
func (s *Stream) readLoop(cl *client) {
	defer s.drop(cl)
	cl.conn.SetReadLimit(1024)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Stream) writeLoop(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteJSON(ev); err != nil {
				return
			}
			if s.metrics != nil {
				s.metrics.RecordStreamMessage("out", ev.Type)
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Stream) drop(cl *client) {
	s.mu.Lock()
	if _, ok := s.clients[cl]; ok {
		delete(s.clients, cl)
		close(cl.send)
	}
	s.mu.Unlock()
	cl.conn.Close()
	if s.metrics != nil {
		s.metrics.DecStreamConnections()
	}
}

// Close disconnects every subscriber.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
}
