package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	gosync "sync"

	"github.com/mealog/mealog/internal/remote"
	"github.com/mealog/mealog/internal/schema"
	"github.com/mealog/mealog/internal/store"
)

// Listener folds remote changes for the active household into the
// local database.
//
// Conflict policy is last-write-wins on the lastUpdated stamp: a
// remote document is applied only when the record is absent locally or
// the remote stamp is strictly newer. Ties keep the local record, so
// redelivered documents are no-ops. Applied records are written with
// the dirty flag cleared; remote removals delete locally without a
// stamp comparison.
type Listener struct {
	store  *store.Store
	remote remote.Store
	logger *log.Logger

	mu        gosync.Mutex
	subs      []remote.Subscription
	household string
}

// NewListener creates a down-sync listener. If logger is nil, a
// default logger writing to stderr is used.
func NewListener(st *store.Store, rs remote.Store, logger *log.Logger) *Listener {
	if logger == nil {
		logger = log.New(os.Stderr, "[downsync] ", log.LstdFlags)
	}
	return &Listener{store: st, remote: rs, logger: logger}
}

// Start subscribes to the meal and weekly plan collections for the
// given household. A running listener is stopped first, so Start
// doubles as a household switch.
func (l *Listener) Start(ctx context.Context, householdID string) error {
	l.Stop()

	l.mu.Lock()
	defer l.mu.Unlock()

	mealSub, err := l.remote.Subscribe(ctx, remote.CollectionMeals, householdID, l.handleMealChange)
	if err != nil {
		return fmt.Errorf("failed to subscribe to meals: %w", err)
	}
	planSub, err := l.remote.Subscribe(ctx, remote.CollectionWeeklyPlans, householdID, l.handlePlanChange)
	if err != nil {
		mealSub.Stop()
		return fmt.Errorf("failed to subscribe to weekly plans: %w", err)
	}

	l.subs = []remote.Subscription{mealSub, planSub}
	l.household = householdID
	l.logger.Printf("Listening for household %s", householdID)
	return nil
}

// Stop detaches all subscriptions. Safe to call repeatedly; once Stop
// returns, no further changes are applied.
func (l *Listener) Stop() {
	l.mu.Lock()
	subs := l.subs
	l.subs = nil
	l.household = ""
	l.mu.Unlock()

	for _, sub := range subs {
		sub.Stop()
	}
}

// Household reports the household currently listened to, or "" when
// stopped.
func (l *Listener) Household() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.household
}

func (l *Listener) handleMealChange(ch remote.Change) {
	if err := l.applyMealChange(context.Background(), ch); err != nil {
		l.logger.Printf("Warning: failed to apply meal change %s/%s: %v", ch.Type, ch.ID, err)
	}
}

func (l *Listener) handlePlanChange(ch remote.Change) {
	if err := l.applyPlanChange(context.Background(), ch); err != nil {
		l.logger.Printf("Warning: failed to apply plan change %s/%s: %v", ch.Type, ch.ID, err)
	}
}

func (l *Listener) applyMealChange(ctx context.Context, ch remote.Change) error {
	id, err := strconv.ParseInt(ch.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", ch.ID, err)
	}

	if ch.Type == remote.ChangeRemoved {
		return l.store.DeleteMeal(ctx, id)
	}

	var m schema.Meal
	if err := json.Unmarshal(ch.Doc, &m); err != nil {
		return fmt.Errorf("failed to decode meal document: %w", err)
	}
	m.ID = id

	local, err := l.store.GetMeal(ctx, id)
	if err != nil {
		return err
	}
	if local != nil && m.LastUpdated <= local.LastUpdated {
		return nil
	}

	m.Dirty = false
	return l.store.PutMeal(ctx, &m)
}

func (l *Listener) applyPlanChange(ctx context.Context, ch remote.Change) error {
	id, err := strconv.ParseInt(ch.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", ch.ID, err)
	}

	if ch.Type == remote.ChangeRemoved {
		return l.store.DeletePlan(ctx, id)
	}

	var p schema.WeeklyPlan
	if err := json.Unmarshal(ch.Doc, &p); err != nil {
		return fmt.Errorf("failed to decode weekly plan document: %w", err)
	}
	p.ID = id

	local, err := l.store.GetPlan(ctx, id)
	if err != nil {
		return err
	}
	if local != nil && p.LastUpdated <= local.LastUpdated {
		return nil
	}

	p.Dirty = false
	return l.store.PutPlan(ctx, &p)
}
