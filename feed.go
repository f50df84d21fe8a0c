package main

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"
	"github.com/rs/zerolog"
)

const eventPeerJoined = "peer_joined"

// FeedEvent is pushed to every connected client.
type FeedEvent struct {
	Type     string    `json:"type"` // "peer_joined" | "info"
	Username string    `json:"username,omitempty"`
	Data     any       `json:"data,omitempty"`
	Ts       time.Time `json:"ts"`
}

// Relay fans events out across server instances.
type Relay interface {
	Publish(ctx context.Context, evt FeedEvent) error
	// Run delivers every relayed event until ctx is done.
	Run(ctx context.Context, deliver func(FeedEvent)) error
}

// Client represents a WebSocket client connection
type Client struct {
	userID int64
	conn   *websocket.Conn
	send   chan FeedEvent
}

const feedBuffer = 16

// newFeedClient returns a client whose buffer already holds the "connected"
// event, so broadcasts after register can only queue behind it or be dropped.
func newFeedClient(userID int64, conn *websocket.Conn) *Client {
	c := &Client{userID: userID, conn: conn, send: make(chan FeedEvent, feedBuffer)}
	c.send <- FeedEvent{Type: "info", Data: "connected", Ts: time.Now().UTC()}
	return c
}

// Hub manages WebSocket client connections
type Hub struct {
	clientsByUser map[int64]map[*Client]bool
	mu            sync.RWMutex
	relay         Relay
	logger        zerolog.Logger
	metrics       *Metrics
}

func newHub(logger zerolog.Logger, metrics *Metrics) *Hub {
	return &Hub{
		clientsByUser: make(map[int64]map[*Client]bool),
		logger:        logger.With().Str("component", "feed").Logger(),
		metrics:       metrics,
	}
}

// useRelay routes Publish through relay. Call before serving.
func (h *Hub) useRelay(relay Relay) {
	h.relay = relay
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clientsByUser[c.userID] == nil {
		h.clientsByUser[c.userID] = make(map[*Client]bool)
	}
	h.clientsByUser[c.userID][c] = true
	h.metrics.FeedClientConnected()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peers, ok := h.clientsByUser[c.userID]; ok {
		if _, present := peers[c]; !present {
			return
		}
		delete(peers, c)
		if len(peers) == 0 {
			delete(h.clientsByUser, c.userID)
		}
		h.metrics.FeedClientDisconnected()
	}
}

// broadcast delivers evt to local clients, dropping it for clients whose buffer is full.
func (h *Hub) broadcast(evt FeedEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, peers := range h.clientsByUser {
		for c := range peers {
			select {
			case c.send <- evt:
			default:
			}
		}
	}
}

// Publish stamps evt and sends it through the relay, or locally without one.
func (h *Hub) Publish(ctx context.Context, evt FeedEvent) {
	if evt.Ts.IsZero() {
		evt.Ts = time.Now().UTC()
	}
	if h.relay == nil {
		h.broadcast(evt)
		return
	}
	if err := h.relay.Publish(ctx, evt); err != nil {
		h.logger.Warn().Err(err).Msg("relay publish failed, delivering locally")
		h.broadcast(evt)
	}
}

// Run consumes the relay until ctx is done. Without a relay it returns at once.
func (h *Hub) Run(ctx context.Context) error {
	if h.relay == nil {
		return nil
	}
	err := h.relay.Run(ctx, h.broadcast)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, peers := range h.clientsByUser {
		n += len(peers)
	}
	return n
}

func (s *server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(s.cfg.CORSAllowedOrigins, origin)
		},
	}
}

// GET /ws/feed streams peer_joined events.
func (s *server) wsFeedHandler() http.HandlerFunc {
	upgrader := s.upgrader()
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.getUserIDFromRequest(r, true)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if _, err := s.store.UserByID(r.Context(), userID); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Int64("user_id", userID).Msg("ws upgrade failed")
			return
		}

		client := newFeedClient(userID, conn)
		s.hub.register(client)

		go s.hub.clientWriter(client)
		s.hub.clientReader(client)
	}
}

// clientReader only services control frames; the feed is server-to-client.
func (h *Hub) clientReader(c *Client) {
	defer func() {
		h.unregister(c)
		close(c.send)
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) clientWriter(c *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			// ping to keep the connection alive
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
