package ticketrelay

import "go.uber.org/zap"

// Router applies inbound events to the hub. It holds no state of its own.
type Router struct {
	hub    *Hub
	logger *zap.SugaredLogger
}

func NewRouter(hub *Hub, logger *zap.SugaredLogger) *Router {
	return &Router{
		hub:    hub,
		logger: logger.With("Component", "Router"),
	}
}

func (r *Router) Route(c Caller, ev Inbound) {
	switch e := ev.(type) {
	case JoinRoom:
		key := RoomFor(e.TicketID)
		if r.hub.Join(c, key) {
			r.logger.Debugf("User %s joined %s", c.Identity.ID, key)
		}

	case LeaveRoom:
		key := RoomFor(e.TicketID)
		if r.hub.Leave(c, key) {
			r.logger.Debugf("User %s left %s", c.Identity.ID, key)
		}

	case SendMessage:
		n := r.hub.EmitToRoomExcept(RoomFor(e.TicketID), c.ConnID, NewMessage{
			TicketID: e.TicketID,
			Message:  e.Message,
		})
		r.logger.Debugf("Message sent in ticket:%s to %d", e.TicketID, n)

	case Typing:
		r.hub.EmitToRoomExcept(RoomFor(e.TicketID), c.ConnID, UserTyping{
			TicketID: e.TicketID,
			UserID:   c.Identity.ID,
			IsTyping: e.IsTyping,
		})

	case StatusUpdate:
		r.hub.EmitToRoomExcept(RoomFor(e.TicketID), c.ConnID, TicketStatusChanged{
			TicketID: e.TicketID,
			Updates:  e.Updates,
		})

	default:
		r.logger.Warnf("Unhandled event %T from %s", ev, c.ConnID)
	}
}
