package ticketrelay

import "go.uber.org/zap"

// PresenceBroadcaster turns registry transitions into global presence
// events. It is called inside the transaction that produced the
// transition, so each transition yields exactly one event.
type PresenceBroadcaster struct {
	logger *zap.SugaredLogger
}

func NewPresenceBroadcaster(logger *zap.SugaredLogger) *PresenceBroadcaster {
	return &PresenceBroadcaster{logger: logger.With("Component", "Presence")}
}

// Observe emits user-online on BecameOnline and user-offline on
// BecameOffline. Other transitions emit nothing.
func (p *PresenceBroadcaster) Observe(tr Transition, userID string, emitAll func(Outbound) int) {
	switch tr {
	case BecameOnline:
		n := emitAll(UserOnline{UserID: userID})
		p.logger.Infof("User online: %s (notified %d)", userID, n)
	case BecameOffline:
		n := emitAll(UserOffline{UserID: userID})
		p.logger.Infof("User offline: %s (notified %d)", userID, n)
	}
}
