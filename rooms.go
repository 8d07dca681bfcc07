package ticketrelay

import (
	"sort"

	"github.com/samber/lo"
)

type RoomKey string

func RoomFor(ticketID string) RoomKey {
	return RoomKey("ticket:" + ticketID)
}

// RoomMembership is the room side of the membership relation; each Conn
// keeps the other side in its rooms set. Both sides are written together
// here so they never disagree. Rooms exist only while they have members.
type RoomMembership struct {
	rooms map[RoomKey]map[string]struct{} // Map<Room, Set<ConnID>>
}

func NewRoomMembership() *RoomMembership {
	return &RoomMembership{
		rooms: make(map[RoomKey]map[string]struct{}),
	}
}

// Join reports whether c was not already a member.
func (rm *RoomMembership) Join(key RoomKey, c *Conn) bool {
	if _, ok := c.rooms[key]; ok {
		return false
	}

	members, ok := rm.rooms[key]
	if !ok {
		members = make(map[string]struct{})
		rm.rooms[key] = members
	}
	members[c.ID] = struct{}{}
	c.rooms[key] = struct{}{}
	return true
}

// Leave reports whether c was a member.
func (rm *RoomMembership) Leave(key RoomKey, c *Conn) bool {
	if _, ok := c.rooms[key]; !ok {
		return false
	}
	delete(c.rooms, key)
	rm.remove(key, c.ID)
	return true
}

// PurgeConnection removes c from every room it joined and returns those rooms.
func (rm *RoomMembership) PurgeConnection(c *Conn) []RoomKey {
	left := make([]RoomKey, 0, len(c.rooms))
	for key := range c.rooms {
		rm.remove(key, c.ID)
		left = append(left, key)
	}
	c.rooms = make(map[RoomKey]struct{})

	sort.Slice(left, func(i, j int) bool { return left[i] < left[j] })
	return left
}

func (rm *RoomMembership) remove(key RoomKey, connID string) {
	members, ok := rm.rooms[key]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(rm.rooms, key)
	}
}

func (rm *RoomMembership) MembersOf(key RoomKey) []string {
	members := lo.Keys(rm.rooms[key])
	sort.Strings(members)
	return members
}

// IdentitiesWatching maps the members of key to their identities, counting
// each identity once however many of its devices are in the room.
func (rm *RoomMembership) IdentitiesWatching(key RoomKey, lookup func(connID string) (*Conn, bool)) []string {
	seen := make(map[string]struct{})
	for connID := range rm.rooms[key] {
		if c, ok := lookup(connID); ok {
			seen[c.Identity.ID] = struct{}{}
		}
	}
	ids := lo.Keys(seen)
	sort.Strings(ids)
	return ids
}

func (rm *RoomMembership) Len() int {
	return len(rm.rooms)
}
