package schema

import (
	"fmt"
	"time"
)

// DaysPerWeek is the fixed length of a weekly plan's day list.
const DaysPerWeek = 7

// ScheduledMeal references a catalog meal placed on a specific day.
type ScheduledMeal struct {
	MealID    int64 `json:"mealId" bson:"mealId"`
	Completed bool  `json:"completed" bson:"completed"`
}

// DayPlan is one day of a weekly plan. Date is epoch milliseconds of
// the day's local midnight.
type DayPlan struct {
	Date  int64           `json:"date" bson:"date"`
	Meals []ScheduledMeal `json:"meals" bson:"meals"`
}

// WeeklyPlan is one calendar week's schedule. WeekStart (epoch
// milliseconds of local Monday 00:00) is the natural lookup key; at
// most one plan exists per (household, week-start) pair.
type WeeklyPlan struct {
	ID int64 `json:"-" bson:"-"`

	WeekStart int64     `json:"weekStart" bson:"weekStart"`
	Days      []DayPlan `json:"days" bson:"days"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`

	HouseholdID string `json:"householdId" bson:"householdId"`
	Dirty       bool   `json:"dirty" bson:"dirty"`
	LastUpdated int64  `json:"lastUpdated" bson:"lastUpdated"`
}

// Validate checks that the plan has valid field values.
func (p *WeeklyPlan) Validate() error {
	if p.WeekStart == 0 {
		return fmt.Errorf("weekStart is required")
	}
	if len(p.Days) != DaysPerWeek {
		return fmt.Errorf("plan must have exactly %d days (got %d)", DaysPerWeek, len(p.Days))
	}
	return nil
}

// Touch stamps the plan as modified now and marks it for up-sync.
func (p *WeeklyPlan) Touch(now time.Time) {
	p.UpdatedAt = now
	p.LastUpdated = Millis(now)
	p.Dirty = true
}

// NewWeeklyPlan synthesizes an empty plan for the week beginning at
// monday: seven DayPlans dated Monday through Sunday, no meals.
func NewWeeklyPlan(monday time.Time, householdID string) *WeeklyPlan {
	days := make([]DayPlan, DaysPerWeek)
	for i, d := range WeekDays(monday) {
		days[i] = DayPlan{Date: Millis(d), Meals: []ScheduledMeal{}}
	}
	now := time.Now()
	return &WeeklyPlan{
		WeekStart:   Millis(monday),
		Days:        days,
		CreatedAt:   now,
		UpdatedAt:   now,
		HouseholdID: householdID,
		Dirty:       true,
		LastUpdated: Millis(now),
	}
}
