package game

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"covid_slayer/internal/domain/game"
)

const clientSendBuffer = 16

// Event is what stream subscribers receive after every applied turn.
type Event struct {
	Type string       `json:"type"`
	Game game.Summary `json:"game"`
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	gameID string
}

// Hub fans turn results out to the websocket subscribers of each game.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	log     *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		log:     log,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.gameID] == nil {
		h.clients[c.gameID] = make(map[*client]struct{})
	}
	h.clients[c.gameID][c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	subs, ok := h.clients[c.gameID]
	if !ok {
		return
	}
	if _, ok = subs[c]; !ok {
		return
	}
	delete(subs, c)
	close(c.send)
	if len(subs) == 0 {
		delete(h.clients, c.gameID)
	}
}

// Subscribers reports how many streams are open for gameID.
func (h *Hub) Subscribers(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[gameID])
}

// Publish delivers event to every subscriber of gameID. Subscribers whose
// buffer is full are dropped.
func (h *Hub) Publish(gameID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Errorf("marshal %s event for game %s: %v", event.Type, gameID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[gameID] {
		select {
		case c.send <- data:
		default:
			h.log.Warnf("stream for game %s is not keeping up, closing", gameID)
			h.removeLocked(c)
		}
	}
}

func (c *client) writePump(log *zap.SugaredLogger) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debugf("stream write for game %s: %v", c.gameID, err)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump drains the connection until the peer goes away. Subscribers only
// listen, so inbound messages are ignored.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugf("stream read for game %s: %v", c.gameID, err)
			}
			return
		}
	}
}

func newUpgrader(origins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		allowed[origin] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}
