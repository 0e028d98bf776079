package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/pantry/internal/model"
)

type ShoppingStore struct {
	db *sql.DB
}

func NewShoppingStore(db *sql.DB) *ShoppingStore {
	return &ShoppingStore{db: db}
}

func scanEntry(scanner interface{ Scan(...any) error }) (*model.ShoppingListEntry, error) {
	var e model.ShoppingListEntry
	err := scanner.Scan(&e.ID, &e.UserID, &e.GroceryID, &e.GroceryName, &e.ExpiryDate, &e.Quantity, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const entryCols = `e.id, e.user_id, e.grocery_id, g.name, g.expiry_date, e.quantity, e.created_at`

const entryFrom = ` FROM shopping_list_entries e JOIN grocery_items g ON g.id = e.grocery_id`

// Add puts the grocery on the user's shopping list with quantity 1, or bumps
// the quantity of the existing entry. The insert-or-increment is a single
// statement so concurrent adds cannot lose an update. It returns nil if the
// user does not own the grocery.
func (s *ShoppingStore) Add(userID, groceryID int64) (*model.ShoppingListEntry, error) {
	result, err := s.db.Exec(
		`INSERT INTO shopping_list_entries (user_id, grocery_id, quantity)
		 SELECT ?, id, 1 FROM grocery_items WHERE id = ? AND user_id = ?
		 ON CONFLICT (user_id, grocery_id) DO UPDATE SET quantity = shopping_list_entries.quantity + 1`,
		userID, groceryID, userID,
	)
	if err != nil {
		return nil, persistErr("shopping list entry", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	row := s.db.QueryRow(`SELECT `+entryCols+entryFrom+` WHERE e.user_id = ? AND e.grocery_id = ?`, userID, groceryID)
	return scanEntry(row)
}

func (s *ShoppingStore) GetByID(userID, id int64) (*model.ShoppingListEntry, error) {
	row := s.db.QueryRow(`SELECT `+entryCols+entryFrom+` WHERE e.id = ? AND e.user_id = ?`, id, userID)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shopping list entry: %w", err)
	}
	return e, nil
}

func (s *ShoppingStore) List(userID int64) ([]model.ShoppingListEntry, error) {
	rows, err := s.db.Query(`SELECT `+entryCols+entryFrom+` WHERE e.user_id = ? ORDER BY g.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list shopping list: %w", err)
	}
	defer rows.Close()

	var entries []model.ShoppingListEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shopping list entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// SetQuantity overwrites an entry's quantity; it returns nil if the user owns
// no such entry.
func (s *ShoppingStore) SetQuantity(userID, id int64, quantity int) (*model.ShoppingListEntry, error) {
	result, err := s.db.Exec(
		`UPDATE shopping_list_entries SET quantity = ? WHERE id = ? AND user_id = ?`,
		quantity, id, userID,
	)
	if err != nil {
		return nil, persistErr("shopping list entry", err)
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

func (s *ShoppingStore) Remove(userID, id int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM shopping_list_entries WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("remove shopping list entry: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
