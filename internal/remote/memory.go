package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process Store used by tests and offline demos.
//
// Documents are held as JSON. Change delivery is synchronous under
// the store lock, which gives Stop its required semantics for free:
// once a subscription is removed, no further handler calls can be in
// flight. Handlers must not call back into the Memory store.
type Memory struct {
	mu     sync.Mutex
	docs   map[string]map[string][]byte // collection -> id -> JSON
	subs   map[int]*memorySub
	nextID int

	// failPuts maps "collection/id" to an injected error, letting
	// tests exercise partial push failures.
	failPuts map[string]error
}

type memorySub struct {
	store      *Memory
	id         int
	collection string
	household  string
	handler    Handler
}

// NewMemory creates an empty in-memory document store.
func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string]map[string][]byte),
		subs:     make(map[int]*memorySub),
		failPuts: make(map[string]error),
	}
}

// FailPut injects an error for future writes to collection/id. A nil
// err clears the injection.
func (m *Memory) FailPut(collection, id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := collection + "/" + id
	if err == nil {
		delete(m.failPuts, key)
		return
	}
	m.failPuts[key] = err
}

// PutDocument implements Store.
func (m *Memory) PutDocument(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s/%s: %w", collection, id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failPuts[collection+"/"+id]; err != nil {
		return err
	}

	col := m.docs[collection]
	if col == nil {
		col = make(map[string][]byte)
		m.docs[collection] = col
	}
	_, existed := col[id]
	col[id] = data

	typ := ChangeAdded
	if existed {
		typ = ChangeModified
	}
	m.notifyLocked(Change{Type: typ, Collection: collection, ID: id, Doc: data})
	return nil
}

// GetDocument implements Store.
func (m *Memory) GetDocument(ctx context.Context, collection, id string, out any) error {
	m.mu.Lock()
	data, ok := m.docs[collection][id]
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal document %s/%s: %w", collection, id, err)
	}
	return nil
}

// DeleteDocument implements Store.
func (m *Memory) DeleteDocument(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.docs[collection][id]
	if !ok {
		return nil
	}
	delete(m.docs[collection], id)

	// Removal is routed to the subscriptions that saw the document.
	m.notifyForDocLocked(Change{Type: ChangeRemoved, Collection: collection, ID: id}, data)
	return nil
}

// AppendMember implements Store.
func (m *Memory) AppendMember(ctx context.Context, householdID, uid string) error {
	var h struct {
		Name    string   `json:"name"`
		Members []string `json:"members"`
	}
	if err := m.GetDocument(ctx, CollectionHouseholds, householdID, &h); err != nil {
		return err
	}
	for _, member := range h.Members {
		if member == uid {
			return nil
		}
	}
	h.Members = append(h.Members, uid)
	return m.PutDocument(ctx, CollectionHouseholds, householdID, h)
}

// RemoveMember implements Store.
func (m *Memory) RemoveMember(ctx context.Context, householdID, uid string) error {
	var h struct {
		Name    string   `json:"name"`
		Members []string `json:"members"`
	}
	err := m.GetDocument(ctx, CollectionHouseholds, householdID, &h)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	kept := h.Members[:0]
	for _, member := range h.Members {
		if member != uid {
			kept = append(kept, member)
		}
	}
	h.Members = kept
	return m.PutDocument(ctx, CollectionHouseholds, householdID, h)
}

// Subscribe implements Store. The current matching documents are
// replayed as ChangeAdded before Subscribe returns.
func (m *Memory) Subscribe(ctx context.Context, collection, householdID string, h Handler) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := &memorySub{
		store:      m,
		id:         m.nextID,
		collection: collection,
		household:  householdID,
		handler:    h,
	}
	m.nextID++
	m.subs[sub.id] = sub

	for id, data := range m.docs[collection] {
		if documentHousehold(data) == householdID {
			h(Change{Type: ChangeAdded, Collection: collection, ID: id, Doc: data})
		}
	}
	return sub, nil
}

// Stop implements Subscription.
func (s *memorySub) Stop() {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	delete(s.store.subs, s.id)
}

// DocumentCount reports how many documents a collection holds.
func (m *Memory) DocumentCount(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[collection])
}

func (m *Memory) notifyLocked(ch Change) {
	m.notifyForDocLocked(ch, ch.Doc)
}

func (m *Memory) notifyForDocLocked(ch Change, doc []byte) {
	household := documentHousehold(doc)
	for _, sub := range m.subs {
		if sub.collection == ch.Collection && sub.household == household {
			sub.handler(ch)
		}
	}
}

func documentHousehold(doc []byte) string {
	var probe struct {
		HouseholdID string `json:"householdId"`
	}
	_ = json.Unmarshal(doc, &probe)
	return probe.HouseholdID
}
