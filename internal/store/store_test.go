package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mealog/mealog/internal/schema"
)

// setupStore creates a temporary database for testing.
func setupStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return st
}

func testMeal(name string, mealType schema.MealType) *schema.Meal {
	return &schema.Meal{
		Name:     name,
		MealType: mealType,
		Servings: 2,
		Labels:   []string{"quick"},
		Ingredients: []schema.Ingredient{
			{Name: "Eggs", Quantity: 2, Unit: "pcs", Category: "dairy"},
		},
		Nutrition: schema.NutritionFacts{Calories: 300, Protein: 20, Carbs: 10, Fat: 15},
	}
}

func TestInsertAndGetMeal(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	m := testMeal("Omelette", schema.MealTypeBreakfast)
	if err := st.InsertMeal(ctx, m); err != nil {
		t.Fatalf("InsertMeal failed: %v", err)
	}
	if m.ID == 0 {
		t.Fatal("InsertMeal did not assign an id")
	}
	if !m.Dirty {
		t.Error("new meal should be dirty")
	}
	if m.HouseholdID != schema.LocalHousehold {
		t.Errorf("householdId = %q, want %q", m.HouseholdID, schema.LocalHousehold)
	}

	got, err := st.GetMeal(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMeal failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetMeal returned nil for existing meal")
	}
	if got.Name != "Omelette" || got.MealType != schema.MealTypeBreakfast {
		t.Errorf("got %q/%q, want Omelette/breakfast", got.Name, got.MealType)
	}
	if len(got.Ingredients) != 1 || got.Ingredients[0].Name != "Eggs" {
		t.Errorf("ingredients not round-tripped: %+v", got.Ingredients)
	}
	if got.Nutrition.Calories != 300 {
		t.Errorf("nutrition calories = %v, want 300", got.Nutrition.Calories)
	}
}

func TestGetMealMissing(t *testing.T) {
	st := setupStore(t)

	got, err := st.GetMeal(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetMeal on missing id returned error: %v", err)
	}
	if got != nil {
		t.Errorf("GetMeal on missing id = %+v, want nil", got)
	}
}

func TestGetMealsBulkAlignment(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	m1 := testMeal("One", schema.MealTypeLunch)
	m2 := testMeal("Two", schema.MealTypeDinner)
	if err := st.InsertMeal(ctx, m1); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertMeal(ctx, m2); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetMeals(ctx, []int64{m2.ID, 12345, m1.ID})
	if err != nil {
		t.Fatalf("GetMeals failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0] == nil || got[0].Name != "Two" {
		t.Errorf("entry 0 = %+v, want Two", got[0])
	}
	if got[1] != nil {
		t.Errorf("entry 1 = %+v, want nil for missing id", got[1])
	}
	if got[2] == nil || got[2].Name != "One" {
		t.Errorf("entry 2 = %+v, want One", got[2])
	}
}

func TestUpdateMealPatch(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	m := testMeal("Pasta", schema.MealTypeDinner)
	if err := st.InsertMeal(ctx, m); err != nil {
		t.Fatal(err)
	}
	if err := st.MarkMealSynced(ctx, m.ID, "hh-1"); err != nil {
		t.Fatal(err)
	}

	name := "Pasta Carbonara"
	servings := 4
	if err := st.UpdateMeal(ctx, m.ID, schema.MealPatch{Name: &name, Servings: &servings}); err != nil {
		t.Fatalf("UpdateMeal failed: %v", err)
	}

	got, err := st.GetMeal(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != name || got.Servings != servings {
		t.Errorf("patch not applied: %q/%d", got.Name, got.Servings)
	}
	// Untouched fields survive.
	if got.MealType != schema.MealTypeDinner || len(got.Ingredients) != 1 {
		t.Error("patch touched unrelated fields")
	}
	// Editing re-marks dirty.
	if !got.Dirty {
		t.Error("updated meal should be dirty again")
	}
	if got.LastUpdated < m.LastUpdated {
		t.Error("lastUpdated did not move forward")
	}
}

func TestUpdateMealRejectsInvalidPatch(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	m := testMeal("Salad", schema.MealTypeLunch)
	if err := st.InsertMeal(ctx, m); err != nil {
		t.Fatal(err)
	}

	bad := 0
	if err := st.UpdateMeal(ctx, m.ID, schema.MealPatch{Servings: &bad}); err == nil {
		t.Fatal("expected error for zero servings")
	}

	// The rejected patch must not have half-applied.
	got, _ := st.GetMeal(ctx, m.ID)
	if got.Servings != 2 {
		t.Errorf("servings = %d after rejected patch, want 2", got.Servings)
	}
}

func TestDeleteMeal(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	m := testMeal("Gone", schema.MealTypeSnack)
	if err := st.InsertMeal(ctx, m); err != nil {
		t.Fatal(err)
	}
	if err := st.DeleteMeal(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMeal failed: %v", err)
	}
	if got, _ := st.GetMeal(ctx, m.ID); got != nil {
		t.Error("meal still present after delete")
	}
	// Idempotent.
	if err := st.DeleteMeal(ctx, m.ID); err != nil {
		t.Errorf("second delete errored: %v", err)
	}
}

func TestListMealsFilters(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	breakfast := testMeal("Oats", schema.MealTypeBreakfast)
	breakfast.Labels = []string{"quick", "vegetarian"}
	dinner := testMeal("Steak", schema.MealTypeDinner)
	dinner.Labels = []string{"high-protein"}

	for _, m := range []*schema.Meal{breakfast, dinner} {
		if err := st.InsertMeal(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.MarkMealSynced(ctx, dinner.ID, "hh-a"); err != nil {
		t.Fatal(err)
	}

	t.Run("by type", func(t *testing.T) {
		got, err := st.ListMeals(ctx, MealFilter{MealType: schema.MealTypeBreakfast})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Name != "Oats" {
			t.Errorf("got %d meals, want just Oats", len(got))
		}
	})

	t.Run("by label", func(t *testing.T) {
		got, err := st.ListMeals(ctx, MealFilter{Label: "vegetarian"})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Name != "Oats" {
			t.Errorf("label filter returned %d meals", len(got))
		}
	})

	t.Run("by dirty", func(t *testing.T) {
		dirty := true
		got, err := st.ListMeals(ctx, MealFilter{Dirty: &dirty})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Name != "Oats" {
			t.Errorf("dirty filter returned %d meals", len(got))
		}
	})

	t.Run("household includes local records", func(t *testing.T) {
		got, err := st.ListMeals(ctx, MealFilter{HouseholdID: "hh-a"})
		if err != nil {
			t.Fatal(err)
		}
		// Steak belongs to hh-a; Oats is still "local" and stays visible.
		if len(got) != 2 {
			t.Errorf("household filter returned %d meals, want 2", len(got))
		}
	})

	t.Run("other household excludes synced records", func(t *testing.T) {
		got, err := st.ListMeals(ctx, MealFilter{HouseholdID: "hh-b"})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Name != "Oats" {
			t.Errorf("got %d meals for hh-b, want only the local one", len(got))
		}
	})
}

func TestSearchMeals(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	for _, name := range []string{"Chicken Curry", "Chicken Soup", "Beef Stew"} {
		if err := st.InsertMeal(ctx, testMeal(name, schema.MealTypeDinner)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := st.SearchMeals(ctx, "chicken", "")
	if err != nil {
		t.Fatalf("SearchMeals failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("search returned %d meals, want 2", len(got))
	}
}

func TestMigrationBackfillsSyncFields(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	// Open at schema version 2: catalog tables, no sync fields.
	legacy, err := open(dbPath, 2)
	if err != nil {
		t.Fatalf("failed to open legacy store: %v", err)
	}

	ctx := context.Background()
	now := time.Now().Format(timeLayout)
	if _, err := legacy.conn.ExecContext(ctx, `
	INSERT INTO meals (name, meal_type, created_at, updated_at)
	VALUES ('Legacy Meal', 'dinner', ?, ?)`, now, now); err != nil {
		t.Fatalf("failed to insert legacy row: %v", err)
	}
	if _, err := legacy.conn.ExecContext(ctx, `
	INSERT INTO weekly_plans (week_start, days, created_at, updated_at)
	VALUES (1700000000000, '[]', ?, ?)`, now, now); err != nil {
		t.Fatalf("failed to insert legacy plan: %v", err)
	}
	if err := legacy.Close(); err != nil {
		t.Fatal(err)
	}

	before := schema.Millis(time.Now())

	// Reopening runs the sync-fields migration.
	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer st.Close()

	meals, err := st.DirtyMeals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(meals) != 1 {
		t.Fatalf("expected 1 backfilled dirty meal, got %d", len(meals))
	}

	m := meals[0]
	if m.HouseholdID != schema.LocalHousehold {
		t.Errorf("backfilled householdId = %q, want %q", m.HouseholdID, schema.LocalHousehold)
	}
	if !m.Dirty {
		t.Error("backfilled meal should be dirty")
	}
	if m.LastUpdated < before {
		t.Errorf("backfilled lastUpdated = %d, want >= %d", m.LastUpdated, before)
	}

	plans, err := st.DirtyPlans(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(plans) != 1 || !plans[0].Dirty || plans[0].HouseholdID != schema.LocalHousehold {
		t.Errorf("plan backfill wrong: %+v", plans)
	}
}

func TestPlanWeekStartLookup(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	monday := schema.WeekStart(time.Now())
	plan := schema.NewWeeklyPlan(monday, "hh-1")
	if err := st.InsertPlan(ctx, plan); err != nil {
		t.Fatalf("InsertPlan failed: %v", err)
	}

	got, err := st.GetPlanByWeekStart(ctx, schema.Millis(monday), "hh-1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != plan.ID {
		t.Fatalf("lookup by week start failed: %+v", got)
	}

	// Missing week returns nil without error.
	missing, err := st.GetPlanByWeekStart(ctx, schema.Millis(monday.AddDate(0, 0, 7)), "hh-1")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing week, got %+v", missing)
	}
}

func TestShoppingListReplaceAndUpdate(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	week := schema.Millis(schema.WeekStart(time.Now()))
	first := &schema.ShoppingList{
		WeekStartDate: week,
		Items: []schema.ShoppingListItem{
			{ID: "a", IngredientName: "Eggs", TotalQuantity: 5, Unit: "pcs", Category: "dairy"},
		},
	}
	if err := st.ReplaceShoppingList(ctx, first); err != nil {
		t.Fatalf("ReplaceShoppingList failed: %v", err)
	}

	// Regenerating replaces the previous list wholesale.
	second := &schema.ShoppingList{
		WeekStartDate: week,
		Items: []schema.ShoppingListItem{
			{ID: "b", IngredientName: "Flour", TotalQuantity: 500, Unit: "g", Category: "grains"},
		},
	}
	if err := st.ReplaceShoppingList(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetShoppingListByWeek(ctx, week)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != second.ID {
		t.Fatalf("expected regenerated list, got %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].IngredientName != "Flour" {
		t.Errorf("items = %+v, want only Flour", got.Items)
	}

	// In-place item mutation persists.
	got.Items[0].Purchased = true
	if err := st.UpdateShoppingListItems(ctx, got.ID, got.Items); err != nil {
		t.Fatal(err)
	}
	reread, _ := st.GetShoppingListByWeek(ctx, week)
	if !reread.Items[0].Purchased {
		t.Error("purchased flag did not persist")
	}
}

func TestProfileCache(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	p := &schema.UserProfile{UID: "u1", Email: "u1@example.com", DisplayName: "User One", CurrentHouseholdID: "u1"}
	if err := st.PutProfile(ctx, p); err != nil {
		t.Fatalf("PutProfile failed: %v", err)
	}

	p.CurrentHouseholdID = "hh-shared"
	if err := st.PutProfile(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.CurrentHouseholdID != "hh-shared" {
		t.Errorf("profile = %+v, want hh-shared", got)
	}

	missing, err := st.GetProfile(ctx, "nobody")
	if err != nil || missing != nil {
		t.Errorf("missing profile = %+v, %v; want nil, nil", missing, err)
	}
}

func TestStoreEvents(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	var events []Event
	cancel := st.Subscribe(func(ev Event) { events = append(events, ev) })

	m := testMeal("Evented", schema.MealTypeLunch)
	if err := st.InsertMeal(ctx, m); err != nil {
		t.Fatal(err)
	}
	if err := st.DeleteMeal(ctx, m.ID); err != nil {
		t.Fatal(err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Op != OpPut || events[0].Collection != CollectionMeals || events[0].ID != m.ID {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Op != OpDelete {
		t.Errorf("second event = %+v", events[1])
	}

	cancel()
	if err := st.InsertMeal(ctx, testMeal("After", schema.MealTypeLunch)); err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Error("subscription delivered events after cancel")
	}
}
