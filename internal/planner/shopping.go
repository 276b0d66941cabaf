package planner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mealog/mealog/internal/schema"
	"github.com/mealog/mealog/internal/store"
)

// ShoppingBuilder derives shopping lists from weekly plans. A list is
// a pure function of the week's scheduled meals: Generate replaces the
// stored list wholesale, keeping purchase marks only for lines that
// still exist.
type ShoppingBuilder struct {
	store *store.Store
}

// NewShoppingBuilder creates a shopping list builder.
func NewShoppingBuilder(st *store.Store) *ShoppingBuilder {
	return &ShoppingBuilder{store: st}
}

// aggregateKey identifies one shopping line. Lines merge only when
// category, ingredient name, and unit all match; the same ingredient
// in different units stays on separate lines.
type aggregateKey struct {
	category string
	name     string
	unit     string
}

// Generate builds the shopping list for the week of t from the plan's
// scheduled meals and persists it, replacing any previous list for
// that week. Purchased marks survive regeneration when the line still
// exists.
func (b *ShoppingBuilder) Generate(ctx context.Context, t time.Time, householdID string) (*schema.ShoppingList, error) {
	weekStart := schema.Millis(schema.WeekStart(t))

	previous, err := b.store.GetShoppingListByWeek(ctx, weekStart)
	if err != nil {
		return nil, err
	}
	purchased := make(map[aggregateKey]bool)
	if previous != nil {
		for _, item := range previous.Items {
			if item.Purchased {
				purchased[aggregateKey{item.Category, item.IngredientName, item.Unit}] = true
			}
		}
	}

	plan, err := b.store.GetPlanByWeekStart(ctx, weekStart, householdID)
	if err != nil {
		return nil, err
	}

	totals := make(map[aggregateKey]float64)
	if plan != nil {
		meals, err := b.weekMeals(ctx, plan)
		if err != nil {
			return nil, err
		}
		for _, m := range meals {
			for _, ing := range m.Ingredients {
				key := aggregateKey{ing.Category, ing.Name, ing.Unit}
				totals[key] += ing.Quantity
			}
		}
	}

	keys := make([]aggregateKey, 0, len(totals))
	for key := range totals {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].category != keys[j].category {
			return keys[i].category < keys[j].category
		}
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		return keys[i].unit < keys[j].unit
	})

	items := make([]schema.ShoppingListItem, 0, len(keys))
	for _, key := range keys {
		items = append(items, schema.ShoppingListItem{
			ID:             uuid.NewString(),
			IngredientName: key.name,
			TotalQuantity:  totals[key],
			Unit:           key.unit,
			Category:       key.category,
			Purchased:      purchased[key],
		})
	}

	list := &schema.ShoppingList{
		WeekStartDate: weekStart,
		Items:         items,
		CreatedAt:     time.Now(),
	}
	if err := b.store.ReplaceShoppingList(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListFor returns the stored shopping list for the week of t, or nil
// if none has been generated.
func (b *ShoppingBuilder) ListFor(ctx context.Context, t time.Time) (*schema.ShoppingList, error) {
	return b.store.GetShoppingListByWeek(ctx, schema.Millis(schema.WeekStart(t)))
}

// ToggleItem flips the purchased mark on one line of the week's list.
func (b *ShoppingBuilder) ToggleItem(ctx context.Context, t time.Time, itemID string) error {
	list, err := b.ListFor(ctx, t)
	if err != nil {
		return err
	}
	if list == nil {
		return fmt.Errorf("no shopping list for week of %s", schema.WeekStart(t).Format("2006-01-02"))
	}

	for i, item := range list.Items {
		if item.ID == itemID {
			list.Items[i].Purchased = !item.Purchased
			return b.store.UpdateShoppingListItems(ctx, list.ID, list.Items)
		}
	}
	return fmt.Errorf("shopping list item %s not found", itemID)
}

// ClearPurchased drops every purchased line from the week's list.
func (b *ShoppingBuilder) ClearPurchased(ctx context.Context, t time.Time) error {
	list, err := b.ListFor(ctx, t)
	if err != nil {
		return err
	}
	if list == nil {
		return nil
	}

	kept := list.Items[:0]
	for _, item := range list.Items {
		if !item.Purchased {
			kept = append(kept, item)
		}
	}
	return b.store.UpdateShoppingListItems(ctx, list.ID, kept)
}

// weekMeals resolves the distinct set of meals referenced across the
// plan's days. A meal planned twice contributes its ingredients once.
// Dangling references are skipped.
func (b *ShoppingBuilder) weekMeals(ctx context.Context, plan *schema.WeeklyPlan) ([]*schema.Meal, error) {
	seen := make(map[int64]bool)
	var ids []int64
	for _, day := range plan.Days {
		for _, sm := range day.Meals {
			if seen[sm.MealID] {
				continue
			}
			seen[sm.MealID] = true
			ids = append(ids, sm.MealID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	meals, err := b.store.GetMeals(ctx, ids)
	if err != nil {
		return nil, err
	}
	resolved := meals[:0]
	for _, m := range meals {
		if m != nil {
			resolved = append(resolved, m)
		}
	}
	return resolved, nil
}
