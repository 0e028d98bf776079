package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/pantry/internal/auth"
	"github.com/dukerupert/pantry/internal/model"
	"github.com/dukerupert/pantry/internal/store"
	"github.com/dukerupert/pantry/internal/websocket"
)

type ShoppingHandler struct {
	shoppingStore *store.ShoppingStore
	notifier      websocket.Notifier
	logger        *slog.Logger
}

func NewShoppingHandler(ss *store.ShoppingStore, notifier websocket.Notifier, logger *slog.Logger) *ShoppingHandler {
	return &ShoppingHandler{shoppingStore: ss, notifier: notifier, logger: logger}
}

func (h *ShoppingHandler) broadcast(userID int64, action string, id int64) {
	if h.notifier != nil {
		h.notifier.BroadcastToUser(userID, websocket.NewMessage("shopping", action, id, nil))
	}
}

func (h *ShoppingHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.shoppingStore.List(auth.UserID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "failed to list shopping list", err)
		return
	}
	if entries == nil {
		entries = []model.ShoppingListEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Add puts a grocery on the list or bumps its quantity by one.
func (h *ShoppingHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	groceryID, err := parsePathID(r, "grocery_id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	entry, err := h.shoppingStore.Add(userID, groceryID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to add to shopping list", err)
		return
	}
	if entry == nil {
		notFound(w, "grocery not found")
		return
	}

	h.broadcast(userID, "updated", entry.ID)
	writeJSON(w, http.StatusOK, entry)
}

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func (h *ShoppingHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	var req quantityRequest
	if !decode(w, r, &req) {
		return
	}

	entry, err := h.shoppingStore.SetQuantity(userID, id, req.Quantity)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update shopping list entry", err)
		return
	}
	if entry == nil {
		notFound(w, "shopping list entry not found")
		return
	}

	h.broadcast(userID, "updated", entry.ID)
	writeJSON(w, http.StatusOK, entry)
}

func (h *ShoppingHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	removed, err := h.shoppingStore.Remove(userID, id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to remove shopping list entry", err)
		return
	}
	if !removed {
		notFound(w, "shopping list entry not found")
		return
	}

	h.broadcast(userID, "removed", id)
	w.WriteHeader(http.StatusNoContent)
}
