package store

import "sync"

// Collection names used in change events. They match the remote store
// collection names so sync components can route on them directly.
const (
	CollectionMeals         = "meals"
	CollectionWeeklyPlans   = "weeklyPlans"
	CollectionShoppingLists = "shoppingLists"
)

// Op is the kind of mutation an event describes.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Event describes one committed mutation to the local store. The UI
// and the dashboard subscribe to these instead of binding to store
// internals.
type Event struct {
	Collection string
	Op         Op
	ID         int64
}

type subscribers struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(Event)
}

// Subscribe registers fn to be called after every committed mutation.
// The returned cancel function removes the subscription; after it
// returns, fn is not called again.
func (s *Store) Subscribe(fn func(Event)) (cancel func()) {
	s.subs.mu.Lock()
	defer s.subs.mu.Unlock()

	if s.subs.fns == nil {
		s.subs.fns = make(map[int]func(Event))
	}
	id := s.subs.next
	s.subs.next++
	s.subs.fns[id] = fn

	return func() {
		s.subs.mu.Lock()
		defer s.subs.mu.Unlock()
		delete(s.subs.fns, id)
	}
}

// publish delivers ev to all subscribers. Delivery is synchronous:
// handlers should be fast and must not call back into the store with
// the same collection to avoid re-entrant loops.
func (s *Store) publish(ev Event) {
	s.subs.mu.RLock()
	defer s.subs.mu.RUnlock()

	for _, fn := range s.subs.fns {
		fn(ev)
	}
}
