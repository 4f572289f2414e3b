// hub.go - Tracks open sockets per user and fans events out to them
//
// A user may be connected from several tabs or devices at once. Presence
// changes only when the first connection opens or the last one closes.

package realtime

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go-nutri-backend/logger"
)

const DefaultTypingTimeout = 3 * time.Second

// ContactsFunc returns the users that should see presence changes of userID.
type ContactsFunc func(userID uint) []uint

// Forwarder receives a copy of every event the hub delivers.
type Forwarder interface {
	Forward(ev Event)
}

type Options struct {
	TypingTimeout time.Duration
	Contacts      ContactsFunc
	Forwarder     Forwarder
}

type typingKey struct {
	conversationID uint
	userID         uint
}

type typingEntry struct {
	name       string
	since      time.Time
	recipients []uint
	timer      *time.Timer
	armed      int // bumped on every refresh, stale timers see a lower value
}

// TypingUser is one active typing indicator.
type TypingUser struct {
	UserID   uint      `json:"user_id"`
	UserName string    `json:"user_name"`
	Since    time.Time `json:"since"`
}

type Hub struct {
	mu      sync.Mutex
	clients map[uint]map[*Client]struct{}
	typing  map[typingKey]*typingEntry
	opts    Options
	closed  bool
}

func NewHub(opts Options) *Hub {
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = DefaultTypingTimeout
	}
	return &Hub{
		clients: make(map[uint]map[*Client]struct{}),
		typing:  make(map[typingKey]*typingEntry),
		opts:    opts,
	}
}

// Register adds c. The first connection of a user announces them online.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.closeSend()
		return
	}
	conns, ok := h.clients[c.userID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.clients[c.userID] = conns
	}
	conns[c] = struct{}{}
	first := len(conns) == 1
	h.mu.Unlock()

	logger.L().Debugw("socket registered", "user_id", c.userID, "client", c.id)
	if first {
		h.announce(c.userID, StatusOnline)
	}
}

// Unregister removes c and closes its send buffer. The last connection of a
// user going away announces them offline and clears their typing state.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	conns, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, present := conns[c]; !present {
		h.mu.Unlock()
		return
	}
	delete(conns, c)
	c.closeSend()
	last := len(conns) == 0
	stopped := make(map[typingKey]*typingEntry)
	if last {
		delete(h.clients, c.userID)
		for k, e := range h.typing {
			if k.userID == c.userID {
				e.timer.Stop()
				delete(h.typing, k)
				stopped[k] = e
			}
		}
	}
	h.mu.Unlock()

	logger.L().Debugw("socket unregistered", "user_id", c.userID, "client", c.id)
	if last {
		for k, e := range stopped { // recipients would otherwise keep the indicator on
			h.SendToUsers(e.recipients, NewEvent(EventTyping, k.conversationID, k.userID, TypingData{IsTyping: false, UserName: e.name}))
		}
		h.announce(c.userID, StatusOffline)
	}
}

func (h *Hub) announce(userID uint, status string) {
	if h.opts.Contacts == nil {
		return
	}
	contacts := h.opts.Contacts(userID)
	if len(contacts) == 0 {
		return
	}
	h.SendToUsers(contacts, NewEvent(EventUserStatus, 0, userID, StatusData{Status: status}))
}

// SendToUsers delivers ev to every connection of the given users. Clients
// whose buffer is full are dropped.
func (h *Hub) SendToUsers(users []uint, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.L().Errorw("encode event", "type", ev.Type, "error", err)
		return
	}

	var slow []*Client
	h.mu.Lock()
	seen := make(map[uint]bool, len(users))
	for _, u := range users {
		if seen[u] {
			continue
		}
		seen[u] = true
		for c := range h.clients[u] {
			select {
			case c.send <- payload:
			default:
				slow = append(slow, c)
			}
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		logger.L().Warnw("dropping slow socket", "user_id", c.userID, "client", c.id)
		h.Unregister(c)
	}
	if h.opts.Forwarder != nil {
		h.opts.Forwarder.Forward(ev)
	}
}

// deliver queues payload for one connection if it is still registered.
func (h *Hub) deliver(c *Client, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.userID][c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// Online reports whether userID has at least one open connection.
func (h *Hub) Online(userID uint) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID]) > 0
}

// Stats returns the number of online users and open connections.
func (h *Hub) Stats() (users, connections int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.clients {
		users++
		connections += len(conns)
	}
	return users, connections
}

// Typing starts, refreshes or stops the indicator of userID in a
// conversation and tells recipients. A started indicator stops by itself
// after the typing timeout unless refreshed.
func (h *Hub) Typing(conversationID, userID uint, name string, isTyping bool, recipients []uint) {
	key := typingKey{conversationID, userID}

	h.mu.Lock()
	entry, exists := h.typing[key]
	switch {
	case isTyping && exists:
		entry.timer.Stop()
		entry.recipients = recipients
		h.arm(key, entry)
	case isTyping:
		entry = &typingEntry{name: name, since: time.Now(), recipients: recipients}
		h.arm(key, entry)
		h.typing[key] = entry
	case exists:
		entry.timer.Stop()
		delete(h.typing, key)
	}
	h.mu.Unlock()

	h.SendToUsers(recipients, NewEvent(EventTyping, conversationID, userID, TypingData{IsTyping: isTyping, UserName: name}))
}

// arm starts a fresh expiry timer for entry. Callers hold h.mu.
func (h *Hub) arm(key typingKey, entry *typingEntry) {
	entry.armed++
	armed := entry.armed
	entry.timer = time.AfterFunc(h.opts.TypingTimeout, func() { h.expireTyping(key, entry, armed) })
}

func (h *Hub) expireTyping(key typingKey, entry *typingEntry, armed int) {
	h.mu.Lock()
	if h.typing[key] != entry || entry.armed != armed {
		h.mu.Unlock()
		return
	}
	delete(h.typing, key)
	recipients := entry.recipients
	h.mu.Unlock()

	h.SendToUsers(recipients, NewEvent(EventTyping, key.conversationID, key.userID, TypingData{IsTyping: false, UserName: entry.name}))
}

// TypingUsers lists active indicators in a conversation, oldest first.
func (h *Hub) TypingUsers(conversationID uint) []TypingUser {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []TypingUser
	for k, e := range h.typing {
		if k.conversationID == conversationID {
			out = append(out, TypingUser{UserID: k.userID, UserName: e.name, Since: e.since})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Since.Before(out[j].Since) })
	return out
}

// Close drops every connection and pending indicator.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, e := range h.typing {
		e.timer.Stop()
	}
	h.typing = make(map[typingKey]*typingEntry)
	for u, conns := range h.clients {
		for c := range conns {
			c.closeSend()
		}
		delete(h.clients, u)
	}
}
