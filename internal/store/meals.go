package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mealog/mealog/internal/schema"
)

const mealColumns = `id, name, description, image, recipe, ingredients, nutrition,
	meal_type, labels, servings, total_price, created_at, updated_at,
	household_id, dirty, last_updated`

// timeLayout is the storage format for wall-clock columns.
const timeLayout = time.RFC3339Nano

// InsertMeal adds a new catalog meal, assigning its local id.
//
// The meal is stamped with creation timestamps, defaulted to the
// "local" household when none is set, and marked dirty so the next
// up-sync pass pushes it.
func (s *Store) InsertMeal(ctx context.Context, m *schema.Meal) error {
	m.SetDefaults()
	m.Dirty = true
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid meal: %w", err)
	}

	image, recipe, ingredients, nutrition, labels, err := marshalMealColumns(m)
	if err != nil {
		return err
	}

	res, err := s.conn.ExecContext(ctx, `
	INSERT INTO meals (
		name, description, image, recipe, ingredients, nutrition,
		meal_type, labels, servings, total_price, created_at, updated_at,
		household_id, dirty, last_updated
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.Description, image, recipe, ingredients, nutrition,
		string(m.MealType), labels, m.Servings, nullFloat(m.TotalPrice),
		m.CreatedAt.Format(timeLayout), m.UpdatedAt.Format(timeLayout),
		m.HouseholdID, boolToInt(m.Dirty), m.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to insert meal: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted meal id: %w", err)
	}
	m.ID = id

	s.publish(Event{Collection: CollectionMeals, Op: OpPut, ID: id})
	return nil
}

// PutMeal inserts or replaces a meal at an explicit id. This is the
// down-sync apply path: a remote document arrives with a known id and
// overwrites whatever is stored locally.
func (s *Store) PutMeal(ctx context.Context, m *schema.Meal) error {
	if m.ID == 0 {
		return fmt.Errorf("cannot put meal without id")
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid meal: %w", err)
	}

	image, recipe, ingredients, nutrition, labels, err := marshalMealColumns(m)
	if err != nil {
		return err
	}

	_, err = s.conn.ExecContext(ctx, `
	INSERT INTO meals (
		id, name, description, image, recipe, ingredients, nutrition,
		meal_type, labels, servings, total_price, created_at, updated_at,
		household_id, dirty, last_updated
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		description = excluded.description,
		image = excluded.image,
		recipe = excluded.recipe,
		ingredients = excluded.ingredients,
		nutrition = excluded.nutrition,
		meal_type = excluded.meal_type,
		labels = excluded.labels,
		servings = excluded.servings,
		total_price = excluded.total_price,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		household_id = excluded.household_id,
		dirty = excluded.dirty,
		last_updated = excluded.last_updated`,
		m.ID, m.Name, m.Description, image, recipe, ingredients, nutrition,
		string(m.MealType), labels, m.Servings, nullFloat(m.TotalPrice),
		m.CreatedAt.Format(timeLayout), m.UpdatedAt.Format(timeLayout),
		m.HouseholdID, boolToInt(m.Dirty), m.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to put meal %d: %w", m.ID, err)
	}

	s.publish(Event{Collection: CollectionMeals, Op: OpPut, ID: m.ID})
	return nil
}

// GetMeal retrieves a meal by id. A missing id returns (nil, nil),
// not an error.
func (s *Store) GetMeal(ctx context.Context, id int64) (*schema.Meal, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+mealColumns+" FROM meals WHERE id = ?", id)

	m, err := scanMeal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meal %d: %w", id, err)
	}
	return m, nil
}

// GetMeals bulk-fetches meals by id. The result is aligned with ids:
// a missing id yields a nil entry at its position, never an error.
func (s *Store) GetMeals(ctx context.Context, ids []int64) ([]*schema.Meal, error) {
	result := make([]*schema.Meal, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.conn.QueryContext(ctx,
		"SELECT "+mealColumns+" FROM meals WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk-get meals: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*schema.Meal, len(ids))
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		byID[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meals: %w", err)
	}

	for i, id := range ids {
		result[i] = byID[id]
	}
	return result, nil
}

// UpdateMeal applies a typed partial update to a meal. Only the
// patch's non-nil fields change; the update runs as one statement so
// a failure never half-applies. The meal is re-stamped and marked
// dirty for up-sync.
func (s *Store) UpdateMeal(ctx context.Context, id int64, patch schema.MealPatch) error {
	if patch.IsZero() {
		return nil
	}

	var sets []string
	var args []interface{}

	set := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Image != nil {
		b, err := json.Marshal(patch.Image)
		if err != nil {
			return fmt.Errorf("failed to marshal image: %w", err)
		}
		set("image", string(b))
	}
	if patch.Recipe != nil {
		b, err := json.Marshal(patch.Recipe)
		if err != nil {
			return fmt.Errorf("failed to marshal recipe: %w", err)
		}
		set("recipe", string(b))
	}
	if patch.Ingredients != nil {
		b, err := json.Marshal(*patch.Ingredients)
		if err != nil {
			return fmt.Errorf("failed to marshal ingredients: %w", err)
		}
		set("ingredients", string(b))
	}
	if patch.Nutrition != nil {
		b, err := json.Marshal(patch.Nutrition)
		if err != nil {
			return fmt.Errorf("failed to marshal nutrition: %w", err)
		}
		set("nutrition", string(b))
	}
	if patch.MealType != nil {
		if !patch.MealType.Valid() {
			return fmt.Errorf("invalid meal type %q", *patch.MealType)
		}
		set("meal_type", string(*patch.MealType))
	}
	if patch.Labels != nil {
		b, err := json.Marshal(*patch.Labels)
		if err != nil {
			return fmt.Errorf("failed to marshal labels: %w", err)
		}
		set("labels", string(b))
	}
	if patch.Servings != nil {
		if *patch.Servings < 1 {
			return fmt.Errorf("servings must be at least 1 (got %d)", *patch.Servings)
		}
		set("servings", *patch.Servings)
	}
	if patch.TotalPrice != nil {
		set("total_price", *patch.TotalPrice)
	}

	now := time.Now()
	set("updated_at", now.Format(timeLayout))
	set("last_updated", schema.Millis(now))
	set("dirty", 1)
	args = append(args, id)

	res, err := s.conn.ExecContext(ctx,
		"UPDATE meals SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update meal %d: %w", id, err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.publish(Event{Collection: CollectionMeals, Op: OpPut, ID: id})
	}
	return nil
}

// MarkMealSynced clears the dirty flag and records the household the
// meal was pushed under. Called by up-sync after a confirmed write.
func (s *Store) MarkMealSynced(ctx context.Context, id int64, householdID string) error {
	_, err := s.conn.ExecContext(ctx,
		"UPDATE meals SET dirty = 0, household_id = ? WHERE id = ?", householdID, id)
	if err != nil {
		return fmt.Errorf("failed to mark meal %d synced: %w", id, err)
	}
	return nil
}

// DeleteMeal removes a meal. Deleting a missing id is a no-op.
func (s *Store) DeleteMeal(ctx context.Context, id int64) error {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM meals WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete meal %d: %w", id, err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.publish(Event{Collection: CollectionMeals, Op: OpDelete, ID: id})
	}
	return nil
}

// MealFilter configures ListMeals. Zero values mean "no constraint".
type MealFilter struct {
	// MealType filters by meal classification.
	MealType schema.MealType
	// Label matches meals carrying the label (multi-valued field).
	Label string
	// HouseholdID scopes to a household. Records still tagged with the
	// pre-login "local" household are always included.
	HouseholdID string
	// Dirty filters on the pending-up-sync flag.
	Dirty *bool
	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// ListMeals retrieves meals matching the filter, newest first.
func (s *Store) ListMeals(ctx context.Context, filter MealFilter) ([]*schema.Meal, error) {
	var conditions []string
	var args []interface{}

	if filter.MealType != "" {
		conditions = append(conditions, "m.meal_type = ?")
		args = append(args, string(filter.MealType))
	}
	if filter.HouseholdID != "" {
		conditions = append(conditions, "(m.household_id = ? OR m.household_id = ?)")
		args = append(args, filter.HouseholdID, schema.LocalHousehold)
	}
	if filter.Dirty != nil {
		conditions = append(conditions, "m.dirty = ?")
		args = append(args, boolToInt(*filter.Dirty))
	}

	selectClause := "SELECT"
	if filter.Label != "" {
		selectClause += " DISTINCT"
	}

	query := selectClause + " m.id, m.name, m.description, m.image, m.recipe, m.ingredients, m.nutrition, m.meal_type, m.labels, m.servings, m.total_price, m.created_at, m.updated_at, m.household_id, m.dirty, m.last_updated FROM meals m"

	if filter.Label != "" {
		query += ", json_each(m.labels)"
		conditions = append(conditions, "json_each.value = ?")
		args = append(args, filter.Label)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY m.created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	defer rows.Close()

	return scanMeals(rows)
}

// DirtyMeals returns all meals pending up-sync.
func (s *Store) DirtyMeals(ctx context.Context) ([]*schema.Meal, error) {
	dirty := true
	return s.ListMeals(ctx, MealFilter{Dirty: &dirty})
}

// SearchMeals finds meals whose name contains q (case-insensitive),
// scoped to a household plus pre-login "local" records.
func (s *Store) SearchMeals(ctx context.Context, q, householdID string) ([]*schema.Meal, error) {
	query := "SELECT " + mealColumns + " FROM meals WHERE name LIKE ? ESCAPE '\\'"
	args := []interface{}{"%" + escapeLike(q) + "%"}

	if householdID != "" {
		query += " AND (household_id = ? OR household_id = ?)"
		args = append(args, householdID, schema.LocalHousehold)
	}
	query += " ORDER BY name ASC"

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search meals: %w", err)
	}
	defer rows.Close()

	return scanMeals(rows)
}

// CountMeals returns total and dirty meal counts.
func (s *Store) CountMeals(ctx context.Context) (total, dirty int, err error) {
	err = s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(dirty), 0) FROM meals").Scan(&total, &dirty)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count meals: %w", err)
	}
	return total, dirty, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMeal(row rowScanner) (*schema.Meal, error) {
	var m schema.Meal
	var image, recipe, ingredients, nutrition, labels string
	var mealType, createdAt, updatedAt string
	var totalPrice sql.NullFloat64
	var dirty int

	err := row.Scan(
		&m.ID, &m.Name, &m.Description, &image, &recipe, &ingredients, &nutrition,
		&mealType, &labels, &m.Servings, &totalPrice, &createdAt, &updatedAt,
		&m.HouseholdID, &dirty, &m.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(image), &m.Image); err != nil {
		return nil, fmt.Errorf("failed to unmarshal image: %w", err)
	}
	if err := json.Unmarshal([]byte(recipe), &m.Recipe); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe: %w", err)
	}
	if err := json.Unmarshal([]byte(ingredients), &m.Ingredients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingredients: %w", err)
	}
	if err := json.Unmarshal([]byte(nutrition), &m.Nutrition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nutrition: %w", err)
	}
	if err := json.Unmarshal([]byte(labels), &m.Labels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
	}

	m.MealType = schema.MealType(mealType)
	if t, err := time.Parse(timeLayout, createdAt); err == nil {
		m.CreatedAt = t
	}
	if t, err := time.Parse(timeLayout, updatedAt); err == nil {
		m.UpdatedAt = t
	}
	if totalPrice.Valid {
		m.TotalPrice = &totalPrice.Float64
	}
	m.Dirty = dirty != 0

	return &m, nil
}

func scanMeals(rows *sql.Rows) ([]*schema.Meal, error) {
	var meals []*schema.Meal
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meals: %w", err)
	}
	return meals, nil
}

func marshalMealColumns(m *schema.Meal) (image, recipe, ingredients, nutrition, labels string, err error) {
	b, err := json.Marshal(m.Image)
	if err != nil {
		return "", "", "", "", "", fmt.Errorf("failed to marshal image: %w", err)
	}
	image = string(b)

	b, err = json.Marshal(m.Recipe)
	if err != nil {
		return "", "", "", "", "", fmt.Errorf("failed to marshal recipe: %w", err)
	}
	recipe = string(b)

	b, err = json.Marshal(m.Ingredients)
	if err != nil {
		return "", "", "", "", "", fmt.Errorf("failed to marshal ingredients: %w", err)
	}
	ingredients = string(b)

	b, err = json.Marshal(m.Nutrition)
	if err != nil {
		return "", "", "", "", "", fmt.Errorf("failed to marshal nutrition: %w", err)
	}
	nutrition = string(b)

	b, err = json.Marshal(m.Labels)
	if err != nil {
		return "", "", "", "", "", fmt.Errorf("failed to marshal labels: %w", err)
	}
	labels = string(b)

	return image, recipe, ingredients, nutrition, labels, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
