package services

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// Client is one websocket connection belonging to an authenticated user.
// A user may hold several connections at once (tabs, devices); each gets
// its own id.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	ID     string
	UserID int64
}

// NewClient wraps an upgraded connection for the hub.
func NewClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		ID:     uuid.NewString(),
		UserID: userID,
	}
}

// BoardEvent notifies clients that a board changed. Data carries the
// affected entity for events that create or update one.
type BoardEvent struct {
	Type    string `json:"type"`
	BoardID int64  `json:"board_id"`
	Data    any    `json:"data,omitempty"`
}

type targetedMessage struct {
	payload []byte
	userIDs map[int64]bool
}

// ReadPump drains the connection so pong handling works; clients do not
// send application messages upstream.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Debug().Err(err).Str("client", c.ID).Msg("websocket read error")
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub maintains the set of active clients and pushes board events to the
// connections of users with access to the affected board.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan targetedMessage
	register   chan *Client
	unregister chan *Client
	log        zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan targetedMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastBoardEvent sends an event to every connection of the given
// users. The sender's own connections are included so that all of a
// user's tabs converge on the same state.
func (h *Hub) BroadcastBoardEvent(event BoardEvent, userIDs []int64) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal board event")
		return
	}

	targets := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		targets[id] = true
	}

	h.broadcast <- targetedMessage{payload: payload, userIDs: targets}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.Debug().Str("client", client.ID).Int64("user_id", client.UserID).Msg("websocket client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Debug().Str("client", client.ID).Int64("user_id", client.UserID).Msg("websocket client disconnected")
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				if !message.userIDs[client.UserID] {
					continue
				}
				select {
				case client.Send <- message.payload:
				default:
					// Send buffer full, assume the connection is gone
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}
