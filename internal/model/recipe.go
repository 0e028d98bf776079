package model

import "time"

// DefaultRecipeName is used when a recipe is saved without a name.
const DefaultRecipeName = "Unnamed Recipe"

// AsNeededUnit marks ingredient links saved from AI output, which carries no
// structured quantities.
const AsNeededUnit = "as needed"

type Recipe struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Ingredients []RecipeIngredient `json:"ingredients,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

type Ingredient struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	DefaultUnit *string `json:"default_unit"`
}

type RecipeIngredient struct {
	ID             int64   `json:"id"`
	RecipeID       int64   `json:"recipe_id"`
	IngredientID   int64   `json:"ingredient_id"`
	IngredientName string  `json:"ingredient"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
}
