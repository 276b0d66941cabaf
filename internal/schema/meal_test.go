package schema

import (
	"testing"
	"time"
)

func validMeal() *Meal {
	return &Meal{
		Name:     "Avocado Toast",
		MealType: MealTypeBreakfast,
		Servings: 1,
		Ingredients: []Ingredient{
			{Name: "Bread", Quantity: 2, Unit: "pcs", Category: "grains"},
		},
	}
}

func TestMealValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Meal)
		wantErr bool
	}{
		{"valid", func(m *Meal) {}, false},
		{"missing name", func(m *Meal) { m.Name = "" }, true},
		{"bad meal type", func(m *Meal) { m.MealType = "brunch" }, true},
		{"zero servings", func(m *Meal) { m.Servings = 0 }, true},
		{"ingredient without name", func(m *Meal) { m.Ingredients[0].Name = "" }, true},
		{"negative quantity", func(m *Meal) { m.Ingredients[0].Quantity = -1 }, true},
		{"no ingredients", func(m *Meal) { m.Ingredients = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMeal()
			tt.mutate(m)
			err := m.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMealSetDefaults(t *testing.T) {
	m := &Meal{Name: "Soup", MealType: MealTypeDinner}
	m.SetDefaults()

	if m.Servings != 1 {
		t.Errorf("servings = %d, want 1", m.Servings)
	}
	if m.HouseholdID != LocalHousehold {
		t.Errorf("householdId = %q, want %q", m.HouseholdID, LocalHousehold)
	}
	if m.CreatedAt.IsZero() || m.UpdatedAt.IsZero() {
		t.Error("timestamps not defaulted")
	}
	if m.LastUpdated == 0 {
		t.Error("lastUpdated not defaulted")
	}
	if m.Labels == nil || m.Ingredients == nil {
		t.Error("slices not defaulted")
	}
}

func TestMealTouch(t *testing.T) {
	m := validMeal()
	m.SetDefaults()
	m.Dirty = false

	now := time.Now().Add(time.Minute)
	m.Touch(now)

	if !m.Dirty {
		t.Error("Touch did not mark meal dirty")
	}
	if m.LastUpdated != Millis(now) {
		t.Errorf("lastUpdated = %d, want %d", m.LastUpdated, Millis(now))
	}
	if !m.UpdatedAt.Equal(now) {
		t.Errorf("updatedAt = %v, want %v", m.UpdatedAt, now)
	}
}

func TestNewWeeklyPlan(t *testing.T) {
	monday := WeekStart(time.Now())
	plan := NewWeeklyPlan(monday, "hh-1")

	if err := plan.Validate(); err != nil {
		t.Fatalf("synthesized plan invalid: %v", err)
	}
	if plan.WeekStart != Millis(monday) {
		t.Errorf("weekStart = %d, want %d", plan.WeekStart, Millis(monday))
	}
	if !plan.Dirty {
		t.Error("new plan should be dirty")
	}
	for i, day := range plan.Days {
		want := Millis(monday.AddDate(0, 0, i))
		if day.Date != want {
			t.Errorf("day %d date = %d, want %d", i, day.Date, want)
		}
		if len(day.Meals) != 0 {
			t.Errorf("day %d has %d meals, want 0", i, len(day.Meals))
		}
	}
}

func TestHouseholdHasMember(t *testing.T) {
	h := &Household{Name: "Test Household", Members: []string{"u1", "u2"}}
	if !h.HasMember("u1") {
		t.Error("expected u1 to be a member")
	}
	if h.HasMember("u3") {
		t.Error("did not expect u3 to be a member")
	}
}
