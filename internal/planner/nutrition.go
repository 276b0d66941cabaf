package planner

import (
	"context"
	"time"

	"github.com/mealog/mealog/internal/schema"
	"github.com/mealog/mealog/internal/store"
)

// NutritionSummary aggregates per-serving nutrition facts over a
// day or a week of scheduled meals.
type NutritionSummary struct {
	store *store.Store
}

// NewNutritionSummary creates a nutrition aggregator.
func NewNutritionSummary(st *store.Store) *NutritionSummary {
	return &NutritionSummary{store: st}
}

// WeekTotals sums nutrition facts across every scheduled meal in the
// week of t, one contribution per scheduling. Returns zero totals
// when the week has no plan.
func (n *NutritionSummary) WeekTotals(ctx context.Context, plan *schema.WeeklyPlan) (schema.NutritionFacts, error) {
	var total schema.NutritionFacts
	if plan == nil {
		return total, nil
	}
	for _, day := range plan.Days {
		facts, err := n.dayTotals(ctx, day)
		if err != nil {
			return schema.NutritionFacts{}, err
		}
		addFacts(&total, facts)
	}
	return total, nil
}

// DayTotals sums nutrition facts for one day of a plan. The day is
// matched by its local-midnight date; an unplanned day yields zero
// totals.
func (n *NutritionSummary) DayTotals(ctx context.Context, plan *schema.WeeklyPlan, day time.Time) (schema.NutritionFacts, error) {
	if plan == nil {
		return schema.NutritionFacts{}, nil
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	want := schema.Millis(midnight)
	for _, d := range plan.Days {
		if d.Date == want {
			return n.dayTotals(ctx, d)
		}
	}
	return schema.NutritionFacts{}, nil
}

func (n *NutritionSummary) dayTotals(ctx context.Context, day schema.DayPlan) (schema.NutritionFacts, error) {
	var total schema.NutritionFacts
	if len(day.Meals) == 0 {
		return total, nil
	}

	ids := make([]int64, len(day.Meals))
	for i, sm := range day.Meals {
		ids[i] = sm.MealID
	}
	meals, err := n.store.GetMeals(ctx, ids)
	if err != nil {
		return schema.NutritionFacts{}, err
	}
	for _, m := range meals {
		if m == nil {
			continue
		}
		addFacts(&total, m.Nutrition)
	}
	return total, nil
}

func addFacts(total *schema.NutritionFacts, facts schema.NutritionFacts) {
	total.Calories += facts.Calories
	total.Protein += facts.Protein
	total.Carbs += facts.Carbs
	total.Fat += facts.Fat
	for name, value := range facts.Micros {
		if total.Micros == nil {
			total.Micros = make(map[string]float64)
		}
		total.Micros[name] += value
	}
}
