package schema

import "time"

// ShoppingListItem is one aggregated line of a shopping list. ID is a
// synthetic identifier assigned at generation time; it never leaves
// the device.
type ShoppingListItem struct {
	ID             string  `json:"id"`
	IngredientName string  `json:"ingredientName"`
	TotalQuantity  float64 `json:"totalQuantity"`
	Unit           string  `json:"unit"`
	Category       string  `json:"category"`
	Purchased      bool    `json:"purchased"`
}

// ShoppingList is the derived shopping list for one week. It is
// local-only state: regenerating from the week's meals replaces the
// item list wholesale, so it is never pushed to the remote store.
type ShoppingList struct {
	ID            int64              `json:"-"`
	WeekStartDate int64              `json:"weekStartDate"`
	Items         []ShoppingListItem `json:"items"`
	CreatedAt     time.Time          `json:"createdAt"`
}
