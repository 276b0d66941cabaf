// Package planner implements the calendar-facing operations: weekly
// plan editing and the views derived from a week's meals (shopping
// list, nutrition totals). All operations write through the local
// store; sync picks the changes up from the dirty flags.
package planner

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mealog/mealog/internal/schema"
	"github.com/mealog/mealog/internal/store"
)

// HouseholdFunc reports the household id to stamp on newly created
// plans.
type HouseholdFunc func() string

// WeekPlanner edits weekly plans. Plans are created lazily: asking
// for a week that has no plan synthesizes an empty one.
type WeekPlanner struct {
	store     *store.Store
	household HouseholdFunc
	logger    *log.Logger
}

// NewWeekPlanner creates a planner. If logger is nil, a default
// logger writing to stderr is used.
func NewWeekPlanner(st *store.Store, household HouseholdFunc, logger *log.Logger) *WeekPlanner {
	if logger == nil {
		logger = log.New(os.Stderr, "[planner] ", log.LstdFlags)
	}
	return &WeekPlanner{store: st, household: household, logger: logger}
}

// PlanFor returns the plan covering the week of t, creating an empty
// seven-day plan if none exists yet.
func (w *WeekPlanner) PlanFor(ctx context.Context, t time.Time) (*schema.WeeklyPlan, error) {
	monday := schema.WeekStart(t)
	plan, err := w.store.GetPlanByWeekStart(ctx, schema.Millis(monday), w.household())
	if err != nil {
		return nil, err
	}
	if plan != nil {
		return plan, nil
	}

	plan = schema.NewWeeklyPlan(monday, w.household())
	if err := w.store.InsertPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to create plan for week %s: %w", monday.Format("2006-01-02"), err)
	}
	w.logger.Printf("Created plan for week of %s", monday.Format("2006-01-02"))
	return plan, nil
}

// AddMeal schedules a catalog meal on the given day. The meal must
// exist; the day's week plan is created if needed.
func (w *WeekPlanner) AddMeal(ctx context.Context, day time.Time, mealID int64) error {
	meal, err := w.store.GetMeal(ctx, mealID)
	if err != nil {
		return err
	}
	if meal == nil {
		return fmt.Errorf("meal %d not found", mealID)
	}

	plan, err := w.PlanFor(ctx, day)
	if err != nil {
		return err
	}
	i, err := dayIndex(plan, day)
	if err != nil {
		return err
	}

	plan.Days[i].Meals = append(plan.Days[i].Meals, schema.ScheduledMeal{MealID: mealID})
	return w.store.UpdatePlan(ctx, plan.ID, schema.PlanPatch{Days: &plan.Days})
}

// RemoveMeal unschedules the first occurrence of a meal on the given
// day. Removing a meal that is not scheduled is a no-op.
func (w *WeekPlanner) RemoveMeal(ctx context.Context, day time.Time, mealID int64) error {
	plan, err := w.PlanFor(ctx, day)
	if err != nil {
		return err
	}
	i, err := dayIndex(plan, day)
	if err != nil {
		return err
	}

	meals := plan.Days[i].Meals
	for j, sm := range meals {
		if sm.MealID == mealID {
			plan.Days[i].Meals = append(meals[:j], meals[j+1:]...)
			return w.store.UpdatePlan(ctx, plan.ID, schema.PlanPatch{Days: &plan.Days})
		}
	}
	return nil
}

// SetCompleted marks a scheduled meal as eaten or not.
func (w *WeekPlanner) SetCompleted(ctx context.Context, day time.Time, mealID int64, completed bool) error {
	plan, err := w.PlanFor(ctx, day)
	if err != nil {
		return err
	}
	i, err := dayIndex(plan, day)
	if err != nil {
		return err
	}

	for j, sm := range plan.Days[i].Meals {
		if sm.MealID == mealID {
			plan.Days[i].Meals[j].Completed = completed
			return w.store.UpdatePlan(ctx, plan.ID, schema.PlanPatch{Days: &plan.Days})
		}
	}
	return fmt.Errorf("meal %d is not scheduled on %s", mealID, day.Format("2006-01-02"))
}

// dayIndex locates the DayPlan whose date is day's local midnight.
func dayIndex(plan *schema.WeeklyPlan, day time.Time) (int, error) {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	want := schema.Millis(midnight)
	for i, d := range plan.Days {
		if d.Date == want {
			return i, nil
		}
	}
	return 0, fmt.Errorf("day %s is outside the plan's week", day.Format("2006-01-02"))
}
