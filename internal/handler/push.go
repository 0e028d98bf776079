package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/pantry/internal/auth"
	"github.com/dukerupert/pantry/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	publicKey string
	logger    *slog.Logger
}

// NewPushHandler serves subscription management. An empty publicKey means
// push is not configured.
func NewPushHandler(ps *store.PushStore, publicKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, publicKey: publicKey, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint" validate:"required,url,max=2048"`
	P256dh     string `json:"p256dh" validate:"required,max=256"`
	Auth       string `json:"auth" validate:"required,max=256"`
	DeviceName string `json:"device_name" validate:"max=100"`
}

func (h *PushHandler) disabled(w http.ResponseWriter) bool {
	if h.publicKey == "" {
		writeError(w, http.StatusServiceUnavailable, "configuration", "push notifications are not configured")
		return true
	}
	return false
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.disabled(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.publicKey})
}

// Subscribe handles POST /api/push/subscriptions
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h.disabled(w) {
		return
	}
	var req subscribeRequest
	if !decode(w, r, &req) {
		return
	}

	sub, err := h.pushStore.CreateSubscription(auth.UserID(r.Context()), req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		writeStoreError(w, h.logger, "failed to save subscription", err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "failed to list subscriptions", err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	ok, err := h.pushStore.DeleteSubscription(auth.UserID(r.Context()), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to delete subscription", err)
		return
	}
	if !ok {
		notFound(w, "subscription not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
