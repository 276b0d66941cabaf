package schema

// Patch structs name exactly the fields an update is allowed to
// mutate. Nil pointer fields are left untouched; the store applies a
// patch as a single statement so a failed update never half-applies.

// MealPatch is a partial update to a catalog meal.
type MealPatch struct {
	Name        *string
	Description *string
	Image       *MediaRef
	Recipe      *MediaRef
	Ingredients *[]Ingredient
	Nutrition   *NutritionFacts
	MealType    *MealType
	Labels      *[]string
	Servings    *int
	TotalPrice  *float64
}

// IsZero reports whether the patch touches no fields.
func (p MealPatch) IsZero() bool {
	return p == MealPatch{}
}

// PlanPatch is a partial update to a weekly plan. Days replaces the
// whole day array, matching the plan's whole-record update model.
type PlanPatch struct {
	Days *[]DayPlan
}

// IsZero reports whether the patch touches no fields.
func (p PlanPatch) IsZero() bool {
	return p.Days == nil
}
