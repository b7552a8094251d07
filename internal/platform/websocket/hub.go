// Package websocket relays video-call signaling between the peers of a
// conference room. Clients join a room and then exchange messages that are
// fanned out to everyone else in it.
package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Inbound and outbound event names.
const (
	EventJoinRoom         = "join-room"
	EventMessage          = "message"
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"
	EventCreateMessage    = "createMessage"
)

// DefaultAnnounceDelay gives a joining peer time to set up its media before
// the others call it.
const DefaultAnnounceDelay = time.Second

// Message is the JSON envelope used in both directions.
type Message struct {
	Event   string          `json:"event"`
	RoomID  string          `json:"roomId,omitempty"`
	PeerID  string          `json:"peerId,omitempty"`
	UserID  string          `json:"userId,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
}

// Client is one signaling connection. A client is in at most one room.
type Client struct {
	ID     string
	UserID string
	PeerID string
	Room   string
	Send   chan []byte
}

// NewClient returns a client with a buffered outbound queue.
func NewClient(id, userID string) *Client {
	return &Client{ID: id, UserID: userID, Send: make(chan []byte, 256)}
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithAnnounceDelay sets how long after join-room the other peers are told.
func WithAnnounceDelay(d time.Duration) HubOption {
	return func(h *Hub) {
		if d >= 0 {
			h.announceDelay = d
		}
	}
}

// Hub tracks connected clients and room membership. All operations are safe
// for concurrent use.
type Hub struct {
	mu            sync.RWMutex
	rooms         map[string]map[*Client]struct{}
	all           map[*Client]struct{}
	announceDelay time.Duration
	logger        zerolog.Logger

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewHub(logger zerolog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		rooms:         make(map[string]map[*Client]struct{}),
		all:           make(map[*Client]struct{}),
		announceDelay: DefaultAnnounceDelay,
		logger:        logger.With().Str("component", "signaling").Logger(),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a connected client that has not joined a room yet.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[c] = struct{}{}
}

// Unregister removes the client from its room, tells the remaining peers and
// closes the client's Send channel. Repeated calls are no-ops.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.all[c]; !ok {
		h.mu.Unlock()
		return
	}
	room, peerID := c.Room, c.PeerID
	h.leaveLocked(c)
	delete(h.all, c)
	close(c.Send)
	h.mu.Unlock()

	if room != "" && peerID != "" {
		h.broadcast(room, Message{Event: EventUserDisconnected, PeerID: peerID}, nil)
	}
}

// Join moves the client into roomID and, after the announce delay, tells the
// other peers in the room that peerID is available.
func (h *Hub) Join(c *Client, roomID, peerID string) {
	h.mu.Lock()
	if _, ok := h.all[c]; !ok || h.closed() {
		h.mu.Unlock()
		return
	}
	h.leaveLocked(c)
	c.Room, c.PeerID = roomID, peerID
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	h.logger.Debug().Str("room_id", roomID).Str("peer_id", peerID).Str("user_id", c.UserID).Msg("joined room")

	go func() {
		defer h.wg.Done()
		timer := time.NewTimer(h.announceDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-h.done:
			return
		}
		if !h.inRoom(c, roomID, peerID) {
			return
		}
		h.broadcast(roomID, Message{Event: EventUserConnected, PeerID: peerID}, c)
	}()
}

// Relay sends a chat message from c to everyone in its room, c included.
func (h *Hub) Relay(c *Client, message json.RawMessage) {
	h.mu.RLock()
	room := c.Room
	h.mu.RUnlock()
	if room == "" {
		return
	}
	h.broadcast(room, Message{Event: EventCreateMessage, Message: message, UserID: c.UserID}, nil)
}

// ProcessMessage dispatches one inbound message.
func (h *Hub) ProcessMessage(c *Client, msg Message) {
	switch msg.Event {
	case EventJoinRoom:
		if msg.RoomID == "" || msg.PeerID == "" {
			return
		}
		if c.UserID == "" && msg.UserID != "" {
			h.mu.Lock()
			c.UserID = msg.UserID
			h.mu.Unlock()
		}
		h.Join(c, msg.RoomID, msg.PeerID)
	case EventMessage:
		h.Relay(c, msg.Message)
	}
}

// RoomSize returns the number of clients in roomID.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// Close drops pending announcements and disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	h.stopOnce.Do(func() { close(h.done) })
	h.mu.Unlock()
	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.all {
		h.leaveLocked(c)
		delete(h.all, c)
		close(c.Send)
	}
}

func (h *Hub) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Hub) inRoom(c *Client, roomID, peerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][c]
	return ok && c.PeerID == peerID
}

func (h *Hub) leaveLocked(c *Client) {
	if c.Room == "" {
		return
	}
	if members, ok := h.rooms[c.Room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, c.Room)
		}
	}
	c.Room, c.PeerID = "", ""
}

// broadcast queues msg for every member of roomID except skip. Slow clients
// whose buffer is full miss the message.
func (h *Hub) broadcast(roomID string, msg Message, skip *Client) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("event", msg.Event).Msg("marshal signaling message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		if c == skip {
			continue
		}
		select {
		case c.Send <- data:
		default:
			h.logger.Warn().Str("client_id", c.ID).Str("event", msg.Event).Msg("client buffer full, dropping")
		}
	}
}
