// Package schema provides the record types shared by the local store,
// the remote document store, and the sync layer.
package schema

import (
	"fmt"
	"time"
)

// MealType classifies a meal within the daily schedule.
type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"
)

// Valid reports whether mt is one of the known meal types.
func (mt MealType) Valid() bool {
	switch mt {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack:
		return true
	}
	return false
}

// MediaRef points at external or embedded content, such as a recipe
// image URL or free-form recipe text.
type MediaRef struct {
	Type    string `json:"type" bson:"type"` // "url" or "text"
	Content string `json:"content" bson:"content"`
}

// Ingredient is one line of a meal's ingredient list.
type Ingredient struct {
	Name      string   `json:"name" bson:"name"`
	Quantity  float64  `json:"quantity" bson:"quantity"`
	Unit      string   `json:"unit" bson:"unit"`
	Category  string   `json:"category" bson:"category"`
	UnitPrice *float64 `json:"unitPrice,omitempty" bson:"unitPrice,omitempty"`
}

// NutritionFacts holds per-serving nutrition values. Micros carries
// optional micronutrient percentages keyed by name (e.g. "iron").
type NutritionFacts struct {
	Calories float64            `json:"calories" bson:"calories"`
	Protein  float64            `json:"protein" bson:"protein"`
	Carbs    float64            `json:"carbs" bson:"carbs"`
	Fat      float64            `json:"fat" bson:"fat"`
	Micros   map[string]float64 `json:"micros,omitempty" bson:"micros,omitempty"`
}

// Meal is a catalog entry for a recipe.
//
// The record is flat and last-write-wins friendly: LastUpdated (epoch
// milliseconds) resolves conflicts between devices, and Dirty marks
// local changes that have not been confirmed written to the remote
// store yet.
//
// ID is the local store's primary key. It is deliberately excluded
// from document payloads: the remote document id is the stringified
// local id, and down-sync re-attaches it when folding a document back
// into the local store.
type Meal struct {
	ID int64 `json:"-" bson:"-"`

	Name        string       `json:"name" bson:"name"`
	Description string       `json:"description,omitempty" bson:"description,omitempty"`
	Image       MediaRef     `json:"image" bson:"image"`
	Recipe      MediaRef     `json:"recipe" bson:"recipe"`
	Ingredients []Ingredient `json:"ingredients" bson:"ingredients"`
	Nutrition   NutritionFacts `json:"nutrition" bson:"nutrition"`

	MealType   MealType `json:"mealType" bson:"mealType"`
	Labels     []string `json:"labels,omitempty" bson:"labels,omitempty"`
	Servings   int      `json:"servings" bson:"servings"`
	TotalPrice *float64 `json:"totalPrice,omitempty" bson:"totalPrice,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`

	// Sync fields.
	HouseholdID string `json:"householdId" bson:"householdId"`
	Dirty       bool   `json:"dirty" bson:"dirty"`
	LastUpdated int64  `json:"lastUpdated" bson:"lastUpdated"`
}

// Validate checks that the meal has valid field values.
func (m *Meal) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !m.MealType.Valid() {
		return fmt.Errorf("invalid meal type %q", m.MealType)
	}
	if m.Servings < 1 {
		return fmt.Errorf("servings must be at least 1 (got %d)", m.Servings)
	}
	for i, ing := range m.Ingredients {
		if ing.Name == "" {
			return fmt.Errorf("ingredient %d: name is required", i)
		}
		if ing.Quantity < 0 {
			return fmt.Errorf("ingredient %q: quantity must not be negative", ing.Name)
		}
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (m *Meal) SetDefaults() {
	if m.Labels == nil {
		m.Labels = []string{}
	}
	if m.Ingredients == nil {
		m.Ingredients = []Ingredient{}
	}
	if m.Servings == 0 {
		m.Servings = 1
	}
	if m.HouseholdID == "" {
		m.HouseholdID = LocalHousehold
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	if m.LastUpdated == 0 {
		m.LastUpdated = Millis(now)
	}
}

// Touch stamps the meal as modified now: UpdatedAt and the conflict
// timestamp move forward, and the record becomes eligible for up-sync.
func (m *Meal) Touch(now time.Time) {
	m.UpdatedAt = now
	m.LastUpdated = Millis(now)
	m.Dirty = true
}

// LocalHousehold tags records that predate sign-in. They remain
// visible in every household-scoped query and are adopted by the
// user's real household on first successful up-sync.
const LocalHousehold = "local"
