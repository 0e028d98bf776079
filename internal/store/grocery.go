package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/pantry/internal/model"
)

// GroceryStore reads and writes grocery items. Every method is scoped to the
// owning user; items belonging to someone else behave as not found.
type GroceryStore struct {
	db *sql.DB
}

func NewGroceryStore(db *sql.DB) *GroceryStore {
	return &GroceryStore{db: db}
}

// GroceryFilter narrows List. Query matches name or category name as a
// case-insensitive substring; the date bounds are inclusive and optional.
type GroceryFilter struct {
	Query       string
	ExpiresFrom model.Date
	ExpiresTo   model.Date
}

func scanGrocery(scanner interface{ Scan(...any) error }) (*model.GroceryItem, error) {
	var g model.GroceryItem
	err := scanner.Scan(
		&g.ID, &g.UserID, &g.CategoryID, &g.CategoryName, &g.Name,
		&g.ExpiryDate, &g.Quantity, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

const groceryCols = `g.id, g.user_id, g.category_id, c.name, g.name, g.expiry_date, g.quantity, g.created_at, g.updated_at`

const groceryFrom = ` FROM grocery_items g JOIN categories c ON c.id = g.category_id`

func (s *GroceryStore) Create(userID, categoryID int64, name string, expiry model.Date, quantity int) (*model.GroceryItem, error) {
	result, err := s.db.Exec(
		`INSERT INTO grocery_items (user_id, category_id, name, expiry_date, quantity) VALUES (?, ?, ?, ?, ?)`,
		userID, categoryID, name, expiry, quantity,
	)
	if err != nil {
		return nil, persistErr("grocery item", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(userID, id)
}

func (s *GroceryStore) GetByID(userID, id int64) (*model.GroceryItem, error) {
	row := s.db.QueryRow(`SELECT `+groceryCols+groceryFrom+` WHERE g.id = ? AND g.user_id = ?`, id, userID)
	g, err := scanGrocery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get grocery item: %w", err)
	}
	return g, nil
}

// Update rewrites an item and returns it, or nil if the user owns no such item.
func (s *GroceryStore) Update(userID, id, categoryID int64, name string, expiry model.Date, quantity int) (*model.GroceryItem, error) {
	result, err := s.db.Exec(
		`UPDATE grocery_items SET category_id = ?, name = ?, expiry_date = ?, quantity = ? WHERE id = ? AND user_id = ?`,
		categoryID, name, expiry, quantity, id, userID,
	)
	if err != nil {
		return nil, persistErr("grocery item", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetByID(userID, id)
}

// Delete removes an item and reports whether it existed. Shopping list
// entries referencing it are removed by cascade.
func (s *GroceryStore) Delete(userID, id int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM grocery_items WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete grocery item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// List returns the user's items matching f, soonest expiry first.
func (s *GroceryStore) List(userID int64, f GroceryFilter) ([]model.GroceryItem, error) {
	query := `SELECT ` + groceryCols + groceryFrom + ` WHERE g.user_id = ?`
	args := []any{userID}

	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		query += ` AND (g.name LIKE ? ESCAPE '\' OR c.name LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern)
	}
	if !f.ExpiresFrom.IsZero() {
		query += ` AND g.expiry_date >= ?`
		args = append(args, f.ExpiresFrom)
	}
	if !f.ExpiresTo.IsZero() {
		query += ` AND g.expiry_date <= ?`
		args = append(args, f.ExpiresTo)
	}
	query += ` ORDER BY g.expiry_date ASC, g.name ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list grocery items: %w", err)
	}
	defer rows.Close()

	var items []model.GroceryItem
	for rows.Next() {
		g, err := scanGrocery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grocery item: %w", err)
		}
		items = append(items, *g)
	}
	return items, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
