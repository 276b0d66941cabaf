package seed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mealog/mealog/internal/schema"
	"github.com/mealog/mealog/internal/store"
)

func TestLoad(t *testing.T) {
	meals, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(meals) == 0 {
		t.Fatal("starter catalog must not be empty")
	}
	types := make(map[schema.MealType]bool)
	for _, m := range meals {
		if err := m.Validate(); err != nil {
			t.Errorf("meal %q invalid: %v", m.Name, err)
		}
		types[m.MealType] = true
	}
	for _, mt := range []schema.MealType{schema.MealTypeBreakfast, schema.MealTypeLunch, schema.MealTypeDinner, schema.MealTypeSnack} {
		if !types[mt] {
			t.Errorf("starter catalog missing a %s meal", mt)
		}
	}
}

func TestApplyOnlyOnEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "mealog.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	inserted, err := Apply(ctx, st, nil)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if inserted == 0 {
		t.Fatal("expected starter meals inserted into empty database")
	}

	again, err := Apply(ctx, st, nil)
	if err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}
	if again != 0 {
		t.Errorf("Apply must be a no-op on a non-empty catalog, inserted %d", again)
	}
}
