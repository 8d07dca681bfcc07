package ticketrelay

// broadcast selects the recipients of one fanout. Either every registered
// connection or the members of room, minus except.
type broadcast struct {
	all    bool
	room   RoomKey
	except string
}

func toAll() broadcast {
	return broadcast{all: true}
}

func toRoomExcept(room RoomKey, sender string) broadcast {
	return broadcast{room: room, except: sender}
}

// targets must be called with the hub lock held.
func (b broadcast) targets(h *Hub) []*Conn {
	var conns []*Conn
	if b.all {
		conns = h.registry.all()
	} else {
		for _, id := range h.rooms.MembersOf(b.room) {
			if c, ok := h.registry.Lookup(id); ok {
				conns = append(conns, c)
			}
		}
	}

	if b.except == "" {
		return conns
	}
	out := conns[:0]
	for _, c := range conns {
		if c.ID != b.except {
			out = append(out, c)
		}
	}
	return out
}

// emit must be called with the hub lock held. It returns how many outboxes
// accepted the event.
func (b broadcast) emit(h *Hub, ev Outbound) int {
	var n int
	for _, c := range b.targets(h) {
		if c.out.push(ev) {
			n++
		}
	}
	return n
}
