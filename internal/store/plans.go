package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mealog/mealog/internal/schema"
)

const planColumns = `id, week_start, days, created_at, updated_at,
	household_id, dirty, last_updated`

// InsertPlan adds a new weekly plan, assigning its local id and
// marking it dirty for up-sync.
func (s *Store) InsertPlan(ctx context.Context, p *schema.WeeklyPlan) error {
	if p.HouseholdID == "" {
		p.HouseholdID = schema.LocalHousehold
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	if p.LastUpdated == 0 {
		p.LastUpdated = schema.Millis(now)
	}
	p.Dirty = true

	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	days, err := json.Marshal(p.Days)
	if err != nil {
		return fmt.Errorf("failed to marshal days: %w", err)
	}

	res, err := s.conn.ExecContext(ctx, `
	INSERT INTO weekly_plans (
		week_start, days, created_at, updated_at,
		household_id, dirty, last_updated
	) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.WeekStart, string(days),
		p.CreatedAt.Format(timeLayout), p.UpdatedAt.Format(timeLayout),
		p.HouseholdID, boolToInt(p.Dirty), p.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted plan id: %w", err)
	}
	p.ID = id

	s.publish(Event{Collection: CollectionWeeklyPlans, Op: OpPut, ID: id})
	return nil
}

// PutPlan inserts or replaces a plan at an explicit id (down-sync
// apply path).
func (s *Store) PutPlan(ctx context.Context, p *schema.WeeklyPlan) error {
	if p.ID == 0 {
		return fmt.Errorf("cannot put plan without id")
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	days, err := json.Marshal(p.Days)
	if err != nil {
		return fmt.Errorf("failed to marshal days: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
	INSERT INTO weekly_plans (
		id, week_start, days, created_at, updated_at,
		household_id, dirty, last_updated
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		week_start = excluded.week_start,
		days = excluded.days,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		household_id = excluded.household_id,
		dirty = excluded.dirty,
		last_updated = excluded.last_updated`,
		p.ID, p.WeekStart, string(days),
		p.CreatedAt.Format(timeLayout), p.UpdatedAt.Format(timeLayout),
		p.HouseholdID, boolToInt(p.Dirty), p.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to put plan %d: %w", p.ID, err)
	}

	s.publish(Event{Collection: CollectionWeeklyPlans, Op: OpPut, ID: p.ID})
	return nil
}

// GetPlan retrieves a plan by id. A missing id returns (nil, nil).
func (s *Store) GetPlan(ctx context.Context, id int64) (*schema.WeeklyPlan, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+planColumns+" FROM weekly_plans WHERE id = ?", id)

	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan %d: %w", id, err)
	}
	return p, nil
}

// GetPlanByWeekStart finds the plan for a week-start key, preferring
// an exact household match over pre-login "local" records. A missing
// week returns (nil, nil).
func (s *Store) GetPlanByWeekStart(ctx context.Context, weekStart int64, householdID string) (*schema.WeeklyPlan, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT `+planColumns+` FROM weekly_plans
	WHERE week_start = ? AND (household_id = ? OR household_id = ?)
	ORDER BY CASE WHEN household_id = ? THEN 0 ELSE 1 END
	LIMIT 1`,
		weekStart, householdID, schema.LocalHousehold, householdID)

	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan for week %d: %w", weekStart, err)
	}
	return p, nil
}

// UpdatePlan applies a typed partial update, re-stamping the plan and
// marking it dirty.
func (s *Store) UpdatePlan(ctx context.Context, id int64, patch schema.PlanPatch) error {
	if patch.IsZero() {
		return nil
	}
	if len(*patch.Days) != schema.DaysPerWeek {
		return fmt.Errorf("plan must have exactly %d days (got %d)", schema.DaysPerWeek, len(*patch.Days))
	}

	days, err := json.Marshal(*patch.Days)
	if err != nil {
		return fmt.Errorf("failed to marshal days: %w", err)
	}

	now := time.Now()
	res, err := s.conn.ExecContext(ctx, `
	UPDATE weekly_plans
	SET days = ?, updated_at = ?, last_updated = ?, dirty = 1
	WHERE id = ?`,
		string(days), now.Format(timeLayout), schema.Millis(now), id)
	if err != nil {
		return fmt.Errorf("failed to update plan %d: %w", id, err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.publish(Event{Collection: CollectionWeeklyPlans, Op: OpPut, ID: id})
	}
	return nil
}

// MarkPlanSynced clears the dirty flag and records the household the
// plan was pushed under.
func (s *Store) MarkPlanSynced(ctx context.Context, id int64, householdID string) error {
	_, err := s.conn.ExecContext(ctx,
		"UPDATE weekly_plans SET dirty = 0, household_id = ? WHERE id = ?", householdID, id)
	if err != nil {
		return fmt.Errorf("failed to mark plan %d synced: %w", id, err)
	}
	return nil
}

// DeletePlan removes a plan. Deleting a missing id is a no-op.
func (s *Store) DeletePlan(ctx context.Context, id int64) error {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM weekly_plans WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete plan %d: %w", id, err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.publish(Event{Collection: CollectionWeeklyPlans, Op: OpDelete, ID: id})
	}
	return nil
}

// DirtyPlans returns all weekly plans pending up-sync.
func (s *Store) DirtyPlans(ctx context.Context) ([]*schema.WeeklyPlan, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT "+planColumns+" FROM weekly_plans WHERE dirty = 1 ORDER BY week_start ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query dirty plans: %w", err)
	}
	defer rows.Close()

	var plans []*schema.WeeklyPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}
	return plans, nil
}

// CountPlans returns total and dirty plan counts.
func (s *Store) CountPlans(ctx context.Context) (total, dirty int, err error) {
	err = s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(dirty), 0) FROM weekly_plans").Scan(&total, &dirty)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count plans: %w", err)
	}
	return total, dirty, nil
}

func scanPlan(row rowScanner) (*schema.WeeklyPlan, error) {
	var p schema.WeeklyPlan
	var days, createdAt, updatedAt string
	var dirty int

	err := row.Scan(
		&p.ID, &p.WeekStart, &days, &createdAt, &updatedAt,
		&p.HouseholdID, &dirty, &p.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(days), &p.Days); err != nil {
		return nil, fmt.Errorf("failed to unmarshal days: %w", err)
	}
	if t, err := time.Parse(timeLayout, createdAt); err == nil {
		p.CreatedAt = t
	}
	if t, err := time.Parse(timeLayout, updatedAt); err == nil {
		p.UpdatedAt = t
	}
	p.Dirty = dirty != 0

	return &p, nil
}
