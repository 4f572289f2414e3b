// client.go - One websocket connection and its read/write pumps

package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go-nutri-backend/logger"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message
	pongWait       = 60 * time.Second    // Time allowed to read the next pong
	pingPeriod     = (pongWait * 9) / 10 // Must be less than pongWait
	maxMessageSize = 4096
	sendBuffer     = 64
)

// MembersFunc returns the other participants of a conversation the user
// belongs to, or an error when they do not belong to it.
type MembersFunc func(conversationID, userID uint) ([]uint, error)

type Client struct {
	id       string
	userID   uint
	userName string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	once     sync.Once
	members  MembersFunc
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint, name string, members MembersFunc) *Client {
	return &Client{
		id:       uuid.NewString(),
		userID:   userID,
		userName: name,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		members:  members,
	}
}

func (c *Client) closeSend() {
	c.once.Do(func() { close(c.send) })
}

// Upgrader builds a websocket upgrader accepting the given origins. An
// empty list accepts any origin.
func Upgrader(origins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowed) == 0 || origin == "" || allowed[origin]
		},
	}
}

// Serve upgrades the request and runs the connection until it closes.
func Serve(hub *Hub, up websocket.Upgrader, w http.ResponseWriter, r *http.Request, userID uint, name string, members MembersFunc) error {
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := newClient(hub, conn, userID, name, members)
	hub.Register(c)
	go c.writePump()
	c.readPump()
	return nil
}

// readPump handles inbound frames; only typing and ping are accepted.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.L().Infow("socket closed unexpectedly", "user_id", c.userID, "error", err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.L().Debugw("bad socket frame", "user_id", c.userID, "error", err)
		return
	}

	switch ev.Type {
	case EventPing:
		c.reply(NewEvent(EventPong, 0, c.userID, nil))
	case EventTyping:
		if c.members == nil || ev.ConversationID == 0 {
			return
		}
		var td TypingData
		_ = json.Unmarshal(ev.Data, &td)
		others, err := c.members(ev.ConversationID, c.userID)
		if err != nil {
			logger.L().Debugw("typing rejected", "user_id", c.userID, "conversation_id", ev.ConversationID, "error", err)
			return
		}
		c.hub.Typing(ev.ConversationID, c.userID, c.userName, td.IsTyping, others)
	default:
		// message and read events go through the HTTP API
	}
}

func (c *Client) reply(ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.hub.deliver(c, b)
}

// writePump drains the send buffer and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
