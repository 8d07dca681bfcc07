// Package bridge exposes the relay's presence queries and notification
// push to other backend services over plain HTTP.
package bridge

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/taogames/ticketrelay"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

type Bridge struct {
	hub        *ticketrelay.Hub
	dispatcher *ticketrelay.NotificationDispatcher

	logger *zap.SugaredLogger
}

func New(hub *ticketrelay.Hub, dispatcher *ticketrelay.NotificationDispatcher, logger *zap.SugaredLogger) *Bridge {
	return &Bridge{
		hub:        hub,
		dispatcher: dispatcher,
		logger:     logger.With("Component", "Bridge"),
	}
}

func (b *Bridge) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/active-users", b.activeUsers)
	mux.HandleFunc("GET /api/active-users/{ticketId}", b.ticketWatchers)
	mux.HandleFunc("POST /api/send-notification", b.sendNotification)
	mux.HandleFunc("GET /healthz", b.healthz)
}

// CORS allows the web app at origin to call the bridge and open sockets
// with credentials.
func CORS(origin string) func(http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{origin}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)
}

type usersResponse struct {
	Users []string `json:"users"`
}

func (b *Bridge) activeUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, usersResponse{Users: nonNil(b.hub.OnlineUserIDs())})
}

func (b *Bridge) ticketWatchers(w http.ResponseWriter, r *http.Request) {
	ticketID := r.PathValue("ticketId")
	writeJSON(w, http.StatusOK, usersResponse{Users: nonNil(b.hub.IdentitiesWatching(ticketID))})
}

type notificationRequest struct {
	RecipientID  string      `json:"recipientId" validate:"required"`
	Notification interface{} `json:"notification" validate:"required"`
}

type notificationResponse struct {
	Success   bool `json:"success"`
	Delivered bool `json:"delivered"`
	Devices   int  `json:"devices"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (b *Bridge) sendNotification(w http.ResponseWriter, r *http.Request) {
	logger := b.logger.With("Request", uuid.NewString())

	var req notificationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		logger.Warnf("decode body: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing recipientId or notification"})
		return
	}

	payload, err := json.Marshal(req.Notification)
	if err != nil {
		logger.Errorf("encode notification: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Invalid notification"})
		return
	}

	res := b.dispatcher.Dispatch(req.RecipientID, payload)
	logger.Debugf("Notification for %s: delivered=%v devices=%d", req.RecipientID, res.Delivered, res.TargetCount)

	writeJSON(w, http.StatusOK, notificationResponse{
		Success:   true,
		Delivered: res.Delivered,
		Devices:   res.TargetCount,
	})
}

func (b *Bridge) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
