package ticketrelay

import (
	"encoding/json"

	"go.uber.org/zap"
)

type DeliveryResult struct {
	Delivered   bool
	TargetCount int
}

// NotificationDispatcher pushes a payload to every live connection of one
// identity. An offline identity is a result, not an error; any durable
// fallback belongs to the caller.
type NotificationDispatcher struct {
	hub    *Hub
	logger *zap.SugaredLogger
}

func NewNotificationDispatcher(hub *Hub, logger *zap.SugaredLogger) *NotificationDispatcher {
	return &NotificationDispatcher{
		hub:    hub,
		logger: logger.With("Component", "Notifications"),
	}
}

func (d *NotificationDispatcher) Dispatch(userID string, payload json.RawMessage) DeliveryResult {
	n := d.hub.EmitToUser(userID, NewNotification{Payload: payload})
	if n == 0 {
		d.logger.Infof("Notification for %s not delivered: not connected", userID)
		return DeliveryResult{}
	}

	d.logger.Infof("Notification sent to user %s on %d devices", userID, n)
	return DeliveryResult{Delivered: true, TargetCount: n}
}
