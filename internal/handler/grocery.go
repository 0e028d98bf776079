package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/pantry/internal/auth"
	"github.com/dukerupert/pantry/internal/expiry"
	"github.com/dukerupert/pantry/internal/grocery"
	"github.com/dukerupert/pantry/internal/model"
	"github.com/dukerupert/pantry/internal/store"
	"github.com/dukerupert/pantry/internal/websocket"
)

type GroceryHandler struct {
	groceryStore  *store.GroceryStore
	categoryStore *store.CategoryStore
	notifier      websocket.Notifier
	horizonDays   int
	today         func() model.Date
	logger        *slog.Logger
}

func NewGroceryHandler(gs *store.GroceryStore, cs *store.CategoryStore, notifier websocket.Notifier, horizonDays int, logger *slog.Logger) *GroceryHandler {
	return &GroceryHandler{
		groceryStore:  gs,
		categoryStore: cs,
		notifier:      notifier,
		horizonDays:   horizonDays,
		today:         model.Today,
		logger:        logger,
	}
}

type groceryRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	ExpiryDate string `json:"expiry_date" validate:"required"`
	Quantity   int    `json:"quantity" validate:"omitempty,min=1"`
	CategoryID int64  `json:"category_id" validate:"omitempty,min=1"`
	Category   string `json:"category"`
}

// groceryView is a grocery annotated with its freshness as of today.
type groceryView struct {
	model.GroceryItem
	Freshness expiry.Freshness `json:"freshness"`
	DaysLeft  int              `json:"days_left"`
}

type groceryListResponse struct {
	Items    []groceryView     `json:"items"`
	Warnings expiry.WarningSet `json:"warnings"`
}

func (h *GroceryHandler) view(g model.GroceryItem, today model.Date) groceryView {
	return groceryView{
		GroceryItem: g,
		Freshness:   expiry.Status(g, today, h.horizonDays),
		DaysLeft:    today.DaysUntil(g.ExpiryDate),
	}
}

func (h *GroceryHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.categoryStore.List()
	if err != nil {
		writeStoreError(w, h.logger, "failed to list categories", err)
		return
	}
	if cats == nil {
		cats = []model.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

// List returns the user's groceries matching q/from/to. Warnings always cover
// every item the user owns so the banner does not change while searching.
func (h *GroceryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	filter, errMsg := parseGroceryFilter(r)
	if errMsg != "" {
		badRequest(w, errMsg)
		return
	}

	items, err := h.groceryStore.List(userID, filter)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list groceries", err)
		return
	}

	all := items
	if filter != (store.GroceryFilter{}) {
		all, err = h.groceryStore.List(userID, store.GroceryFilter{})
		if err != nil {
			writeStoreError(w, h.logger, "failed to list groceries", err)
			return
		}
	}

	today := h.today()
	views := make([]groceryView, 0, len(items))
	for _, g := range items {
		views = append(views, h.view(g, today))
	}
	writeJSON(w, http.StatusOK, groceryListResponse{
		Items:    views,
		Warnings: expiry.Classify(all, today, h.horizonDays),
	})
}

func parseGroceryFilter(r *http.Request) (store.GroceryFilter, string) {
	q := r.URL.Query()
	f := store.GroceryFilter{Query: strings.TrimSpace(q.Get("q"))}
	if s := q.Get("from"); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return f, "from must be a date in YYYY-MM-DD format"
		}
		f.ExpiresFrom = d
	}
	if s := q.Get("to"); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			return f, "to must be a date in YYYY-MM-DD format"
		}
		f.ExpiresTo = d
	}
	if !f.ExpiresFrom.IsZero() && !f.ExpiresTo.IsZero() && f.ExpiresTo.Before(f.ExpiresFrom) {
		return f, "to must not be before from"
	}
	return f, ""
}

func (h *GroceryHandler) Warnings(w http.ResponseWriter, r *http.Request) {
	ws, err := h.warnings(auth.UserID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "failed to compute warnings", err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (h *GroceryHandler) warnings(userID int64) (expiry.WarningSet, error) {
	items, err := h.groceryStore.List(userID, store.GroceryFilter{})
	if err != nil {
		return expiry.WarningSet{}, err
	}
	return expiry.Classify(items, h.today(), h.horizonDays), nil
}

func (h *GroceryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req groceryRequest
	if !decode(w, r, &req) {
		return
	}
	in, ok := h.normalize(w, &req, 0)
	if !ok {
		return
	}

	item, err := h.groceryStore.Create(userID, in.categoryID, req.Name, in.expiry, req.Quantity)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create grocery", err)
		return
	}

	h.notify(userID, "created", item.ID)
	writeJSON(w, http.StatusCreated, h.view(*item, h.today()))
}

func (h *GroceryHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.view(*item, h.today()))
}

// NewForm returns an empty add form.
func (h *GroceryHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	h.writeForm(w, nil)
}

// Form returns the edit form for an existing item, prefilled with its values.
func (h *GroceryHandler) Form(w http.ResponseWriter, r *http.Request) {
	item, ok := h.load(w, r)
	if !ok {
		return
	}
	h.writeForm(w, item)
}

func (h *GroceryHandler) writeForm(w http.ResponseWriter, item *model.GroceryItem) {
	cats, err := h.categoryStore.List()
	if err != nil {
		writeStoreError(w, h.logger, "failed to list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, model.NewGroceryForm(item, cats))
}

func (h *GroceryHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	var req groceryRequest
	if !decode(w, r, &req) {
		return
	}
	in, ok := h.normalize(w, &req, existing.CategoryID)
	if !ok {
		return
	}

	item, err := h.groceryStore.Update(userID, existing.ID, in.categoryID, req.Name, in.expiry, req.Quantity)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update grocery", err)
		return
	}
	if item == nil {
		notFound(w, "grocery not found")
		return
	}

	h.notify(userID, "updated", item.ID)
	writeJSON(w, http.StatusOK, h.view(*item, h.today()))
}

func (h *GroceryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	deleted, err := h.groceryStore.Delete(userID, id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to delete grocery", err)
		return
	}
	if !deleted {
		notFound(w, "grocery not found")
		return
	}

	h.notify(userID, "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *GroceryHandler) load(w http.ResponseWriter, r *http.Request) (*model.GroceryItem, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return nil, false
	}
	item, err := h.groceryStore.GetByID(auth.UserID(r.Context()), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get grocery", err)
		return nil, false
	}
	if item == nil {
		notFound(w, "grocery not found")
		return nil, false
	}
	return item, true
}

type groceryInput struct {
	categoryID int64
	expiry     model.Date
}

// normalize trims and defaults req and resolves its category: an explicit id
// wins, then a category name, then the current category (fallbackID), and
// finally a guess from the item name.
func (h *GroceryHandler) normalize(w http.ResponseWriter, req *groceryRequest, fallbackID int64) (groceryInput, bool) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		badRequest(w, "name is required")
		return groceryInput{}, false
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	exp, err := model.ParseDate(strings.TrimSpace(req.ExpiryDate))
	if err != nil {
		badRequest(w, "expiry_date must be a date in YYYY-MM-DD format")
		return groceryInput{}, false
	}

	var cat *model.Category
	switch {
	case req.CategoryID != 0:
		cat, err = h.categoryStore.GetByID(req.CategoryID)
	case strings.TrimSpace(req.Category) != "":
		cat, err = h.categoryStore.GetByName(strings.TrimSpace(req.Category))
	case fallbackID != 0:
		return groceryInput{categoryID: fallbackID, expiry: exp}, true
	default:
		cat, err = h.categoryStore.GetByName(grocery.Categorize(req.Name))
		if err == nil && cat == nil {
			cat, err = h.categoryStore.GetByName(grocery.Fallback)
		}
	}
	if err != nil {
		writeStoreError(w, h.logger, "failed to resolve category", err)
		return groceryInput{}, false
	}
	if cat == nil {
		badRequest(w, "unknown category")
		return groceryInput{}, false
	}
	return groceryInput{categoryID: cat.ID, expiry: exp}, true
}

// notify tells the user's other sessions about the change, along with the
// refreshed warning counts for the banner.
func (h *GroceryHandler) notify(userID int64, action string, id int64) {
	if h.notifier == nil {
		return
	}
	extra := map[string]any{}
	if ws, err := h.warnings(userID); err != nil {
		h.logger.Warn("warnings for notification", "error", err)
	} else {
		extra["expired_count"] = ws.ExpiredCount
		extra["expiring_soon_count"] = ws.ExpiringSoonCount
	}
	h.notifier.BroadcastToUser(userID, websocket.NewMessage("grocery", action, id, extra))
}
