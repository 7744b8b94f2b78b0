// Package feed broadcasts quest lifecycle notifications to WebSocket clients.
// It only observes the quest graph.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/questgraph/internal/config"
	"github.com/lawnchairsociety/questgraph/internal/logger"
	"github.com/lawnchairsociety/questgraph/internal/quest"
)

// Message is the JSON document sent for every notification.
type Message struct {
	Type          string    `json:"type"`
	Quest         string    `json:"quest"`
	GUID          string    `json:"guid"`
	State         string    `json:"state"`
	FastForwarded bool      `json:"fast_forwarded"`
	Subquest      string    `json:"subquest,omitempty"`
	SubquestState string    `json:"subquest_state,omitempty"`
	Time          time.Time `json:"time"`
}

// NewMessage converts a quest notification into a feed message.
func NewMessage(e quest.Event) Message {
	m := Message{
		Type:          e.Type.String(),
		Quest:         e.Quest.ID,
		GUID:          e.Quest.GUID.String(),
		State:         e.Quest.State.String(),
		FastForwarded: e.FastForwarded,
		Time:          time.Now().UTC(),
	}
	if e.Type == quest.EventSubquestStateChanged && e.Subquest != nil {
		m.Subquest = e.Subquest.ID
		m.SubquestState = e.SubquestState.String()
	}
	return m
}

// Hub fans notifications out to every connected client.
type Hub struct {
	cfg      config.FeedConfig
	limiter  *ConnLimiter
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	subs    []*quest.Subscription
	closed  bool
}

// NewHub creates a hub with the given feed settings.
func NewHub(cfg config.FeedConfig) *Hub {
	h := &Hub{
		cfg:     cfg,
		limiter: NewConnLimiter(cfg.MaxPerIP, cfg.MaxClients),
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := h.cfg.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("Feed connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}
	return h
}

// Watch subscribes the hub to every quest of the graph.
func (h *Hub) Watch(g *quest.Graph) {
	subs := make([]*quest.Subscription, 0, g.Count())
	for _, q := range g.All() {
		subs = append(subs, q.Subscribe(h.observe))
	}

	h.mu.Lock()
	h.subs = append(h.subs, subs...)
	h.mu.Unlock()
}

func (h *Hub) observe(e quest.Event) {
	h.Broadcast(NewMessage(e))
}

// Broadcast queues m for every client. Clients whose queue is full are dropped.
func (h *Hub) Broadcast(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		logger.Error("Failed to encode feed message", "type", m.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			logger.Warning("Feed client too slow, dropping", "remote_addr", c.RemoteAddr())
			h.removeLocked(c)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a WebSocket feed connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := realIP(r)

	if !h.limiter.TryAcquire(ip) {
		logger.Warning("Feed connection rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", ip)
		http.Error(w, "Too many connections. Please try again later.", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Feed upgrade failed", "error", err)
		h.limiter.Release(ip)
		return
	}

	buffer := h.cfg.SendBuffer
	if buffer <= 0 {
		buffer = 1
	}
	c := newClient(conn, ip, buffer, h.cfg.WriteTimeout)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		h.limiter.Release(ip)
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	logger.Info("Feed client connected", "remote_addr", c.RemoteAddr())

	go c.writeLoop()
	go func() {
		c.readLoop(h.cfg.MaxMessageSize)
		h.remove(c)
		logger.Info("Feed client disconnected", "remote_addr", c.RemoteAddr())
	}()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.limiter.Release(c.ip)
}

// Close stops watching the graph and disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		sub.Cancel()
	}
	h.subs = nil
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.closed = true
}
