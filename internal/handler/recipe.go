package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/pantry/internal/auth"
	"github.com/dukerupert/pantry/internal/expiry"
	"github.com/dukerupert/pantry/internal/model"
	"github.com/dukerupert/pantry/internal/recipeai"
	"github.com/dukerupert/pantry/internal/store"
	"github.com/dukerupert/pantry/internal/websocket"
)

// RecipeGenerator produces recipe text. *recipeai.Client implements it.
type RecipeGenerator interface {
	GenerateRecipes(ctx context.Context, ingredients []string, preferences string) recipeai.Result
	Refine(ctx context.Context, currentRecipe, preferences string) recipeai.Result
}

// RecipeCounter is notified of saved recipes.
type RecipeCounter interface {
	RecipeSaved()
}

type RecipeHandler struct {
	generator    RecipeGenerator
	recipeStore  *store.RecipeStore
	groceryStore *store.GroceryStore
	notifier     websocket.Notifier
	counter      RecipeCounter
	horizonDays  int
	today        func() model.Date
	logger       *slog.Logger
}

func NewRecipeHandler(
	gen RecipeGenerator,
	rs *store.RecipeStore,
	gs *store.GroceryStore,
	notifier websocket.Notifier,
	counter RecipeCounter,
	horizonDays int,
	logger *slog.Logger,
) *RecipeHandler {
	return &RecipeHandler{
		generator:    gen,
		recipeStore:  rs,
		groceryStore: gs,
		notifier:     notifier,
		counter:      counter,
		horizonDays:  horizonDays,
		today:        model.Today,
		logger:       logger,
	}
}

type suggestRequest struct {
	Preferences string   `json:"preferences" validate:"max=1000"`
	Ingredients []string `json:"ingredients" validate:"max=50,dive,max=100"`
}

type suggestionResponse struct {
	Text        string   `json:"text"`
	Ingredients []string `json:"ingredients,omitempty"`
}

// Suggest asks for recipes using the given ingredients, or the user's
// expiring-soon groceries when none are given.
func (h *RecipeHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !decode(w, r, &req) {
		return
	}

	names := recipeai.CleanNames(req.Ingredients)
	if len(names) == 0 {
		items, err := h.groceryStore.List(auth.UserID(r.Context()), store.GroceryFilter{})
		if err != nil {
			writeStoreError(w, h.logger, "failed to load groceries", err)
			return
		}
		names = expiry.Classify(items, h.today(), h.horizonDays).Names()
		if len(names) == 0 {
			writeError(w, http.StatusUnprocessableEntity, "nothing_expiring",
				"No groceries are expiring soon. Add ingredients to get suggestions.")
			return
		}
	}

	res := h.generator.GenerateRecipes(r.Context(), names, req.Preferences)
	if res.Kind != recipeai.KindOK {
		writeAIError(w, h.logger, "generate", res.Err)
		return
	}
	writeJSON(w, http.StatusOK, suggestionResponse{Text: res.Text, Ingredients: names})
}

type refineRequest struct {
	Recipe      string `json:"recipe" validate:"required,max=20000"`
	Preferences string `json:"preferences" validate:"required,max=1000"`
}

func (h *RecipeHandler) Refine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if !decode(w, r, &req) {
		return
	}

	res := h.generator.Refine(r.Context(), req.Recipe, req.Preferences)
	if res.Kind != recipeai.KindOK {
		writeAIError(w, h.logger, "refine", res.Err)
		return
	}
	writeJSON(w, http.StatusOK, suggestionResponse{Text: res.Text})
}

type saveRecipeRequest struct {
	Name         string   `json:"name" validate:"max=200"`
	Instructions string   `json:"instructions" validate:"required"`
	Ingredients  []string `json:"ingredients" validate:"max=50,dive,max=100"`
}

// Save stores a suggestion the user approved.
func (h *RecipeHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveRecipeRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Instructions) == "" {
		badRequest(w, "instructions is required")
		return
	}

	id, err := h.recipeStore.SaveSuggestion(req.Name, req.Instructions, req.Ingredients)
	if err != nil {
		writeStoreError(w, h.logger, "failed to save recipe", err)
		return
	}
	recipe, err := h.recipeStore.Get(id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to load saved recipe", err)
		return
	}

	if h.counter != nil {
		h.counter.RecipeSaved()
	}
	if h.notifier != nil {
		h.notifier.BroadcastToUser(auth.UserID(r.Context()), websocket.NewMessage("recipe", "saved", id, nil))
	}
	writeJSON(w, http.StatusCreated, recipe)
}

func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.recipeStore.List()
	if err != nil {
		writeStoreError(w, h.logger, "failed to list recipes", err)
		return
	}
	if recipes == nil {
		recipes = []model.Recipe{}
	}
	writeJSON(w, http.StatusOK, recipes)
}

func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	recipe, err := h.recipeStore.Get(id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get recipe", err)
		return
	}
	if recipe == nil {
		notFound(w, "recipe not found")
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}
