package model

import "time"

type ShoppingListEntry struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	GroceryID   int64     `json:"grocery_id"`
	GroceryName string    `json:"grocery_name"`
	ExpiryDate  Date      `json:"expiry_date"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
}
