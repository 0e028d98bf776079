package model

import "time"

type Category struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

type GroceryItem struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	CategoryID   int64     `json:"category_id"`
	CategoryName string    `json:"category"`
	Name         string    `json:"name"`
	ExpiryDate   Date      `json:"expiry_date"`
	Quantity     int       `json:"quantity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GroceryForm is the view model used to prefill the grocery edit form.
type GroceryForm struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	ExpiryDate string     `json:"expiry_date"`
	Quantity   int        `json:"quantity"`
	CategoryID int64      `json:"category_id"`
	Categories []Category `json:"categories"`
	IsEditing  bool       `json:"is_editing"`
}

// NewGroceryForm builds the edit form for item. A nil item yields an empty
// add form with quantity 1.
func NewGroceryForm(item *GroceryItem, categories []Category) GroceryForm {
	if categories == nil {
		categories = []Category{}
	}
	if item == nil {
		return GroceryForm{Quantity: 1, Categories: categories}
	}
	return GroceryForm{
		ID:         item.ID,
		Name:       item.Name,
		ExpiryDate: item.ExpiryDate.String(),
		Quantity:   item.Quantity,
		CategoryID: item.CategoryID,
		Categories: categories,
		IsEditing:  true,
	}
}
