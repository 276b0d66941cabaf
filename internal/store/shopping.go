package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mealog/mealog/internal/schema"
)

// ReplaceShoppingList stores a freshly generated list for its week,
// removing any previous list for the same week-start in the same
// transaction. Regeneration is wholesale by design: the list is
// derived state, recomputable from meals and the week plan.
func (s *Store) ReplaceShoppingList(ctx context.Context, l *schema.ShoppingList) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}

	items, err := json.Marshal(l.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM shopping_lists WHERE week_start_date = ?", l.WeekStartDate); err != nil {
		return fmt.Errorf("failed to clear previous list: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
	INSERT INTO shopping_lists (week_start_date, items, created_at)
	VALUES (?, ?, ?)`,
		l.WeekStartDate, string(items), l.CreatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert shopping list: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted list id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	l.ID = id
	s.publish(Event{Collection: CollectionShoppingLists, Op: OpPut, ID: id})
	return nil
}

// GetShoppingListByWeek finds the list for a week-start key. A
// missing week returns (nil, nil).
func (s *Store) GetShoppingListByWeek(ctx context.Context, weekStart int64) (*schema.ShoppingList, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, week_start_date, items, created_at
	FROM shopping_lists WHERE week_start_date = ?
	ORDER BY created_at DESC LIMIT 1`, weekStart)

	l, err := scanShoppingList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shopping list for week %d: %w", weekStart, err)
	}
	return l, nil
}

// UpdateShoppingListItems persists an in-place mutation of the item
// array (purchase toggles, clearing completed items).
func (s *Store) UpdateShoppingListItems(ctx context.Context, id int64, items []schema.ShoppingListItem) error {
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}

	res, err := s.conn.ExecContext(ctx,
		"UPDATE shopping_lists SET items = ? WHERE id = ?", string(b), id)
	if err != nil {
		return fmt.Errorf("failed to update shopping list %d: %w", id, err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.publish(Event{Collection: CollectionShoppingLists, Op: OpPut, ID: id})
	}
	return nil
}

// DeleteShoppingList removes a list. Deleting a missing id is a
// no-op.
func (s *Store) DeleteShoppingList(ctx context.Context, id int64) error {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM shopping_lists WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete shopping list %d: %w", id, err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.publish(Event{Collection: CollectionShoppingLists, Op: OpDelete, ID: id})
	}
	return nil
}

func scanShoppingList(row rowScanner) (*schema.ShoppingList, error) {
	var l schema.ShoppingList
	var items, createdAt string

	if err := row.Scan(&l.ID, &l.WeekStartDate, &items, &createdAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(items), &l.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal items: %w", err)
	}
	if t, err := time.Parse(timeLayout, createdAt); err == nil {
		l.CreatedAt = t
	}
	return &l, nil
}
