package sync

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	gosync "sync"
	"time"

	"github.com/mealog/mealog/internal/netstate"
	"github.com/mealog/mealog/internal/remote"
	"github.com/mealog/mealog/internal/store"
)

// ErrOffline indicates a push was requested while the device has no
// connectivity. Dirty records stay queued for the next attempt.
var ErrOffline = errors.New("sync: device is offline")

const defaultDebounce = 2 * time.Second

// PushStats summarizes one up-sync pass.
type PushStats struct {
	Pushed int
	Failed int
}

// HouseholdFunc reports the household id to stamp on outgoing
// records. It is consulted at push time so a household switch takes
// effect without restarting the pusher.
type HouseholdFunc func() string

// Pusher writes dirty local records to the remote store and clears
// their dirty flags. Failures are isolated per record.
type Pusher struct {
	store     *store.Store
	remote    remote.Store
	network   netstate.Network
	household HouseholdFunc
	logger    *log.Logger

	mu       gosync.Mutex
	debounce time.Duration
	onPush   func(PushStats)

	trigger chan struct{}
}

// NewPusher creates an up-sync pusher. If logger is nil, a default
// logger writing to stderr is used.
func NewPusher(st *store.Store, rs remote.Store, network netstate.Network, household HouseholdFunc, logger *log.Logger) *Pusher {
	if logger == nil {
		logger = log.New(os.Stderr, "[upsync] ", log.LstdFlags)
	}
	return &Pusher{
		store:     st,
		remote:    rs,
		network:   network,
		household: household,
		logger:    logger,
		debounce:  defaultDebounce,
		trigger:   make(chan struct{}, 1),
	}
}

// SetDebounce adjusts the quiet period between a trigger and the push
// it schedules.
func (p *Pusher) SetDebounce(d time.Duration) {
	if d <= 0 {
		d = defaultDebounce
	}
	p.mu.Lock()
	p.debounce = d
	p.mu.Unlock()
}

// SetOnPush registers a callback invoked after every push pass that
// moved or failed at least one record. Used by the dashboard.
func (p *Pusher) SetOnPush(fn func(PushStats)) {
	p.mu.Lock()
	p.onPush = fn
	p.mu.Unlock()
}

// Trigger schedules a push after the debounce period. Triggers
// arriving during the quiet period coalesce into one push.
func (p *Pusher) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Push writes every dirty meal and weekly plan to the remote store.
// Each record is stamped with the current household id and written
// with its dirty flag cleared; the local flag is cleared only after
// the remote write succeeds. A record that fails to push is counted
// and left dirty for the next pass.
func (p *Pusher) Push(ctx context.Context) (PushStats, error) {
	var stats PushStats

	if !p.network.Online() {
		return stats, ErrOffline
	}
	householdID := p.household()

	meals, err := p.store.DirtyMeals(ctx)
	if err != nil {
		return stats, err
	}
	for _, m := range meals {
		doc := *m
		doc.HouseholdID = householdID
		doc.Dirty = false

		id := strconv.FormatInt(m.ID, 10)
		if err := p.remote.PutDocument(ctx, remote.CollectionMeals, id, &doc); err != nil {
			p.logger.Printf("Warning: failed to push meal %d: %v", m.ID, err)
			stats.Failed++
			continue
		}
		if err := p.store.MarkMealSynced(ctx, m.ID, householdID); err != nil {
			p.logger.Printf("Warning: failed to mark meal %d synced: %v", m.ID, err)
			stats.Failed++
			continue
		}
		stats.Pushed++
	}

	plans, err := p.store.DirtyPlans(ctx)
	if err != nil {
		return stats, err
	}
	for _, pl := range plans {
		doc := *pl
		doc.HouseholdID = householdID
		doc.Dirty = false

		id := strconv.FormatInt(pl.ID, 10)
		if err := p.remote.PutDocument(ctx, remote.CollectionWeeklyPlans, id, &doc); err != nil {
			p.logger.Printf("Warning: failed to push weekly plan %d: %v", pl.ID, err)
			stats.Failed++
			continue
		}
		if err := p.store.MarkPlanSynced(ctx, pl.ID, householdID); err != nil {
			p.logger.Printf("Warning: failed to mark weekly plan %d synced: %v", pl.ID, err)
			stats.Failed++
			continue
		}
		stats.Pushed++
	}

	if stats.Pushed > 0 || stats.Failed > 0 {
		p.logger.Printf("Push complete: %d pushed, %d failed", stats.Pushed, stats.Failed)
		p.mu.Lock()
		fn := p.onPush
		p.mu.Unlock()
		if fn != nil {
			fn(stats)
		}
	}
	return stats, nil
}

// Run drives pushes until ctx is cancelled. Local write events and
// explicit Trigger calls schedule a debounced push; a network
// transition back online pushes immediately to drain the backlog.
func (p *Pusher) Run(ctx context.Context) {
	unsubscribe := p.store.Subscribe(func(store.Event) { p.Trigger() })
	defer unsubscribe()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case <-p.trigger:
			p.mu.Lock()
			d := p.debounce
			p.mu.Unlock()
			if timer == nil {
				timer = time.NewTimer(d)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(d)
			}
			fire = timer.C

		case online := <-p.network.Transitions():
			if !online {
				continue
			}
			p.push(ctx)

		case <-fire:
			fire = nil
			p.push(ctx)
		}
	}
}

func (p *Pusher) push(ctx context.Context) {
	if _, err := p.Push(ctx); err != nil && !errors.Is(err, ErrOffline) {
		p.logger.Printf("Warning: push failed: %v", err)
	}
}
