package ticketrelay

import (
	"sync"

	"go.uber.org/zap"
)

const DefaultOutboxSize = 64

type HubOption func(h *Hub)

// WithMaxConnsPerUser caps live connections per identity. When a new
// connection exceeds the cap the oldest ones are evicted. 0 means no cap.
func WithMaxConnsPerUser(n int) HubOption {
	return func(h *Hub) {
		h.maxConnsPerUser = n
	}
}

func WithOutboxSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.outboxSize = n
		}
	}
}

func WithHubLogger(logger *zap.SugaredLogger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// withInlineDelivery makes every outbox deliver on the emitting goroutine.
func withInlineDelivery() HubOption {
	return func(h *Hub) {
		h.inline = true
	}
}

// Hub owns the ConnectionRegistry and the RoomMembership. One lock guards
// both, and every operation that touches both runs under it as a single
// step, so no reader ever sees a connection in a room but out of presence
// or the reverse.
type Hub struct {
	mu       sync.RWMutex
	registry *ConnectionRegistry
	rooms    *RoomMembership
	presence *PresenceBroadcaster
	seq      uint64
	closed   bool

	maxConnsPerUser int
	outboxSize      int
	inline          bool

	logger *zap.SugaredLogger
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		registry:   NewConnectionRegistry(),
		rooms:      NewRoomMembership(),
		outboxSize: DefaultOutboxSize,
	}

	for _, o := range opts {
		o(h)
	}

	if h.logger == nil {
		logger, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		h.logger = logger.Sugar()
	}
	h.presence = NewPresenceBroadcaster(h.logger)

	return h
}

// Connect moves an authenticated connection to Active. Events for it are
// written to sink from then on.
func (h *Hub) Connect(connID string, id Identity, sink Sink) (Caller, error) {
	h.mu.Lock()

	if h.closed {
		h.mu.Unlock()
		return Caller{}, ErrHubClosed
	}
	if _, ok := h.registry.Lookup(connID); ok {
		h.mu.Unlock()
		return Caller{}, ErrDuplicateConnection
	}

	h.seq++
	c := &Conn{
		ID:       connID,
		Identity: id,
		seq:      h.seq,
		rooms:    make(map[RoomKey]struct{}),
		out:      newOutbox(sink, h.outboxSize, h.inline, h.logger.With("Connection", connID)),
	}
	tr := h.registry.Register(c)
	evicted := h.evictLocked(c)
	h.presence.Observe(tr, id.ID, h.emitAllLocked)

	h.mu.Unlock()

	for _, old := range evicted {
		h.logger.Infof("Evicted %s of user %s", old.ID, old.Identity.ID)
		old.out.sink.Close()
	}
	h.logger.Infof("User connected: %s (%s) - %s", id.ID, id.Role, connID)

	return c.Caller(), nil
}

func (h *Hub) evictLocked(newest *Conn) []*Conn {
	if h.maxConnsPerUser <= 0 {
		return nil
	}

	conns := h.registry.connsOf(newest.Identity.ID)
	var evicted []*Conn
	for len(conns) > h.maxConnsPerUser {
		old := conns[0]
		conns = conns[1:]

		h.rooms.PurgeConnection(old)
		h.registry.Unregister(old.ID)
		old.out.stop()
		evicted = append(evicted, old)
	}
	return evicted
}

type DisconnectResult struct {
	Transition Transition
	Rooms      []RoomKey
}

// Disconnect removes the connection from presence and from every room it
// joined, in one step. Unknown ids are a no-op reported as NotFound.
func (h *Hub) Disconnect(connID string) DisconnectResult {
	h.mu.Lock()

	c, ok := h.registry.Lookup(connID)
	if !ok {
		h.mu.Unlock()
		h.logger.Debugf("Disconnect %s: already gone", connID)
		return DisconnectResult{Transition: NotFound}
	}

	rooms := h.rooms.PurgeConnection(c)
	_, tr := h.registry.Unregister(connID)
	c.out.stop()
	h.presence.Observe(tr, c.Identity.ID, h.emitAllLocked)

	h.mu.Unlock()

	h.logger.Infof("Socket disconnected: %s (User: %s, rooms: %v)", connID, c.Identity.ID, rooms)
	return DisconnectResult{Transition: tr, Rooms: rooms}
}

// Join reports whether the caller was added. Already a member or no longer
// connected both return false.
func (h *Hub) Join(caller Caller, key RoomKey) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.registry.Lookup(caller.ConnID)
	if !ok {
		return false
	}
	return h.rooms.Join(key, c)
}

func (h *Hub) Leave(caller Caller, key RoomKey) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.registry.Lookup(caller.ConnID)
	if !ok {
		return false
	}
	return h.rooms.Leave(key, c)
}

// EmitToRoomExcept queues ev for every member of key other than sender and
// returns how many outboxes took it.
func (h *Hub) EmitToRoomExcept(key RoomKey, sender string, ev Outbound) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return toRoomExcept(key, sender).emit(h, ev)
}

func (h *Hub) emitAllLocked(ev Outbound) int {
	return toAll().emit(h, ev)
}

// EmitToUser queues ev for every connection of userID and returns how many
// connections userID has.
func (h *Hub) EmitToUser(userID string, ev Outbound) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.registry.connsOf(userID)
	for _, c := range conns {
		c.out.push(ev)
	}
	return len(conns)
}

func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.registry.OnlineUserIDs()
}

func (h *Hub) ConnectionsFor(userID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.registry.ConnectionsFor(userID)
}

func (h *Hub) MembersOf(key RoomKey) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.rooms.MembersOf(key)
}

// IdentitiesWatching returns the distinct users with a connection in the
// ticket's room.
func (h *Hub) IdentitiesWatching(ticketID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.rooms.IdentitiesWatching(RoomFor(ticketID), h.registry.Lookup)
}

// RoomsOf returns nil for an unknown connection.
func (h *Hub) RoomsOf(connID string) []RoomKey {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.registry.Lookup(connID)
	if !ok {
		return nil
	}
	keys := make([]RoomKey, 0, len(c.rooms))
	for key := range c.rooms {
		keys = append(keys, key)
	}
	return keys
}

// Close drops every connection without presence events and closes their
// transports. Later Connect calls fail with ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true

	conns := h.registry.all()
	for _, c := range conns {
		h.rooms.PurgeConnection(c)
		h.registry.Unregister(c.ID)
		c.out.stop()
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.out.sink.Close()
	}
	h.logger.Infof("Hub closed, dropped %d connections", len(conns))
}
