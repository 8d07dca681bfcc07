package ticketrelay

import (
	"sort"

	"github.com/samber/lo"
)

type Transition int

const (
	NotFound Transition = iota
	BecameOnline
	AlreadyOnline
	BecameOffline
	StillOnline
)

func (t Transition) String() string {
	switch t {
	case BecameOnline:
		return "became online"
	case AlreadyOnline:
		return "already online"
	case BecameOffline:
		return "became offline"
	case StillOnline:
		return "still online"
	default:
		return "not found"
	}
}

// Conn is the record of one authenticated connection. rooms mirrors the
// RoomMembership entries that name this connection.
type Conn struct {
	ID       string
	Identity Identity

	seq   uint64
	rooms map[RoomKey]struct{}
	out   *outbox
}

func (c *Conn) Caller() Caller {
	return Caller{ConnID: c.ID, Identity: c.Identity}
}

// ConnectionRegistry maps identities to their live connections. An identity
// is present iff it has at least one connection. Not safe for concurrent
// use on its own; Hub serializes access.
type ConnectionRegistry struct {
	conns map[string]*Conn               // Map<ConnID, Conn>
	users map[string]map[string]struct{} // Map<UserID, Set<ConnID>>
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*Conn),
		users: make(map[string]map[string]struct{}),
	}
}

func (reg *ConnectionRegistry) Register(c *Conn) Transition {
	reg.conns[c.ID] = c

	set, ok := reg.users[c.Identity.ID]
	if !ok {
		set = make(map[string]struct{})
		reg.users[c.Identity.ID] = set
	}
	set[c.ID] = struct{}{}

	if len(set) == 1 {
		return BecameOnline
	}
	return AlreadyOnline
}

func (reg *ConnectionRegistry) Unregister(connID string) (*Conn, Transition) {
	c, ok := reg.conns[connID]
	if !ok {
		return nil, NotFound
	}
	delete(reg.conns, connID)

	set := reg.users[c.Identity.ID]
	delete(set, connID)
	if len(set) == 0 {
		delete(reg.users, c.Identity.ID)
		return c, BecameOffline
	}
	return c, StillOnline
}

func (reg *ConnectionRegistry) Lookup(connID string) (*Conn, bool) {
	c, ok := reg.conns[connID]
	return c, ok
}

// ConnectionsFor returns the connection ids of userID, oldest first.
func (reg *ConnectionRegistry) ConnectionsFor(userID string) []string {
	conns := reg.connsOf(userID)
	return lo.Map(conns, func(c *Conn, _ int) string { return c.ID })
}

func (reg *ConnectionRegistry) connsOf(userID string) []*Conn {
	conns := make([]*Conn, 0, len(reg.users[userID]))
	for id := range reg.users[userID] {
		conns = append(conns, reg.conns[id])
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].seq < conns[j].seq })
	return conns
}

func (reg *ConnectionRegistry) OnlineUserIDs() []string {
	ids := lo.Keys(reg.users)
	sort.Strings(ids)
	return ids
}

func (reg *ConnectionRegistry) all() []*Conn {
	return lo.Values(reg.conns)
}

func (reg *ConnectionRegistry) Len() int {
	return len(reg.conns)
}
