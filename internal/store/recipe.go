package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/pantry/internal/model"
)

// RecipeStore persists approved recipe suggestions. Recipes and ingredients
// are shared across users.
type RecipeStore struct {
	db *sql.DB
}

func NewRecipeStore(db *sql.DB) *RecipeStore {
	return &RecipeStore{db: db}
}

const recipeCols = `id, name, description, created_at`

func scanRecipe(scanner interface{ Scan(...any) error }) (*model.Recipe, error) {
	var r model.Recipe
	err := scanner.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveSuggestion stores a recipe and links each named ingredient with an
// "as needed" quantity. Ingredients are matched by exact name and created on
// first use, so repeated saves share ingredient rows while every call creates
// a new recipe. The whole save runs in one transaction.
func (s *RecipeStore) SaveSuggestion(name, instructions string, ingredients []string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = model.DefaultRecipeName
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, persistErr("recipe", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`INSERT INTO recipes (name, description) VALUES (?, ?)`, name, instructions)
	if err != nil {
		return 0, persistErr("recipe", err)
	}
	recipeID, err := result.LastInsertId()
	if err != nil {
		return 0, persistErr("recipe", err)
	}

	for _, ing := range distinctNames(ingredients) {
		ingredientID, err := getOrCreateIngredient(tx, ing)
		if err != nil {
			return 0, persistErr("ingredient", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO recipe_ingredients (recipe_id, ingredient_id, quantity, unit) VALUES (?, ?, 0, ?)`,
			recipeID, ingredientID, model.AsNeededUnit,
		); err != nil {
			return 0, persistErr("recipe ingredient", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, persistErr("recipe", err)
	}
	return recipeID, nil
}

func getOrCreateIngredient(tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.Exec(`INSERT INTO ingredients (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return 0, fmt.Errorf("insert ingredient: %w", err)
	}
	var id int64
	if err := tx.QueryRow(`SELECT id FROM ingredients WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("select ingredient: %w", err)
	}
	return id, nil
}

func distinctNames(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, n := range in {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Get returns a recipe with its ingredient links, or nil if not found.
func (s *RecipeStore) Get(id int64) (*model.Recipe, error) {
	row := s.db.QueryRow(`SELECT `+recipeCols+` FROM recipes WHERE id = ?`, id)
	r, err := scanRecipe(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT ri.id, ri.recipe_id, ri.ingredient_id, i.name, ri.quantity, ri.unit
		 FROM recipe_ingredients ri JOIN ingredients i ON i.id = ri.ingredient_id
		 WHERE ri.recipe_id = ? ORDER BY ri.id ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("list recipe ingredients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ri model.RecipeIngredient
		if err := rows.Scan(&ri.ID, &ri.RecipeID, &ri.IngredientID, &ri.IngredientName, &ri.Quantity, &ri.Unit); err != nil {
			return nil, fmt.Errorf("scan recipe ingredient: %w", err)
		}
		r.Ingredients = append(r.Ingredients, ri)
	}
	return r, rows.Err()
}

// List returns saved recipes, newest first, without ingredient links.
func (s *RecipeStore) List() ([]model.Recipe, error) {
	rows, err := s.db.Query(`SELECT ` + recipeCols + ` FROM recipes ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []model.Recipe
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		recipes = append(recipes, *r)
	}
	return recipes, rows.Err()
}

func (s *RecipeStore) ListIngredients() ([]model.Ingredient, error) {
	rows, err := s.db.Query(`SELECT id, name, default_unit FROM ingredients ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	defer rows.Close()

	var ingredients []model.Ingredient
	for rows.Next() {
		var i model.Ingredient
		var unit sql.NullString
		if err := rows.Scan(&i.ID, &i.Name, &unit); err != nil {
			return nil, fmt.Errorf("scan ingredient: %w", err)
		}
		if unit.Valid {
			i.DefaultUnit = &unit.String
		}
		ingredients = append(ingredients, i)
	}
	return ingredients, rows.Err()
}
