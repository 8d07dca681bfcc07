package ticketrelay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Outbound
	closed bool
}

func (s *recordingSink) Send(ev Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *recordingSink) Events() []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Outbound(nil), s.events...)
}

func (s *recordingSink) Named(name string) []Outbound {
	var out []Outbound
	for _, ev := range s.Events() {
		if ev.EventName() == name {
			out = append(out, ev)
		}
	}
	return out
}

func (s *recordingSink) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newTestHub(t *testing.T, opts ...HubOption) *Hub {
	t.Helper()
	base := []HubOption{
		WithHubLogger(zaptest.NewLogger(t).Sugar()),
		withInlineDelivery(),
	}
	return NewHub(append(base, opts...)...)
}

// requireConsistent checks both directions of the membership relation and
// that no empty room or identity entry survives.
func requireConsistent(t *testing.T, h *Hub) {
	t.Helper()
	h.mu.RLock()
	defer h.mu.RUnlock()

	for key, members := range h.rooms.rooms {
		require.NotEmpty(t, members, "room %s is empty", key)
		for connID := range members {
			c, ok := h.registry.Lookup(connID)
			require.True(t, ok, "room %s lists unknown connection %s", key, connID)
			require.Contains(t, c.rooms, key)
		}
	}

	for userID, set := range h.registry.users {
		require.NotEmpty(t, set, "user %s has no connections", userID)
		for connID := range set {
			c, ok := h.registry.Lookup(connID)
			require.True(t, ok)
			require.Equal(t, userID, c.Identity.ID)
		}
	}

	for connID, c := range h.registry.conns {
		require.Contains(t, h.registry.users[c.Identity.ID], connID)
		for key := range c.rooms {
			require.Contains(t, h.rooms.rooms[key], connID)
		}
	}
}
