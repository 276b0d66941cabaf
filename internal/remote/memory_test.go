package remote

import (
	"context"
	"errors"
	"testing"
)

type testDoc struct {
	Name        string `json:"name"`
	HouseholdID string `json:"householdId"`
}

func TestMemoryPutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.PutDocument(ctx, CollectionMeals, "1", testDoc{Name: "Tacos", HouseholdID: "h1"}); err != nil {
		t.Fatalf("PutDocument failed: %v", err)
	}

	var got testDoc
	if err := m.GetDocument(ctx, CollectionMeals, "1", &got); err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.Name != "Tacos" {
		t.Errorf("expected Tacos, got %q", got.Name)
	}

	if err := m.DeleteDocument(ctx, CollectionMeals, "1"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if err := m.GetDocument(ctx, CollectionMeals, "1", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again is a no-op.
	if err := m.DeleteDocument(ctx, CollectionMeals, "1"); err != nil {
		t.Errorf("repeat delete should be a no-op, got %v", err)
	}
}

func TestMemorySubscribeReplaysAndStreams(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.PutDocument(ctx, CollectionMeals, "1", testDoc{Name: "Pasta", HouseholdID: "h1"}); err != nil {
		t.Fatalf("PutDocument failed: %v", err)
	}
	if err := m.PutDocument(ctx, CollectionMeals, "2", testDoc{Name: "Soup", HouseholdID: "other"}); err != nil {
		t.Fatalf("PutDocument failed: %v", err)
	}

	var changes []Change
	sub, err := m.Subscribe(ctx, CollectionMeals, "h1", func(ch Change) {
		changes = append(changes, ch)
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// Only the h1 document is replayed.
	if len(changes) != 1 || changes[0].Type != ChangeAdded || changes[0].ID != "1" {
		t.Fatalf("expected replay of document 1 as added, got %+v", changes)
	}

	if err := m.PutDocument(ctx, CollectionMeals, "1", testDoc{Name: "Pasta v2", HouseholdID: "h1"}); err != nil {
		t.Fatalf("PutDocument failed: %v", err)
	}
	if len(changes) != 2 || changes[1].Type != ChangeModified {
		t.Fatalf("expected modified change, got %+v", changes)
	}

	if err := m.DeleteDocument(ctx, CollectionMeals, "1"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if len(changes) != 3 || changes[2].Type != ChangeRemoved || changes[2].ID != "1" {
		t.Fatalf("expected removed change, got %+v", changes)
	}

	sub.Stop()
	if err := m.PutDocument(ctx, CollectionMeals, "3", testDoc{Name: "Stew", HouseholdID: "h1"}); err != nil {
		t.Fatalf("PutDocument failed: %v", err)
	}
	if len(changes) != 3 {
		t.Errorf("expected no delivery after Stop, got %d changes", len(changes))
	}
}

func TestMemorySubscribeFiltersByHousehold(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var changes []Change
	sub, err := m.Subscribe(ctx, CollectionMeals, "h1", func(ch Change) {
		changes = append(changes, ch)
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Stop()

	if err := m.PutDocument(ctx, CollectionMeals, "1", testDoc{Name: "Curry", HouseholdID: "h2"}); err != nil {
		t.Fatalf("PutDocument failed: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("expected no delivery for foreign household, got %+v", changes)
	}
}

func TestMemoryMembers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.AppendMember(ctx, "h1", "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing household, got %v", err)
	}

	doc := map[string]any{"name": "Smith Household", "members": []string{"alice"}}
	if err := m.PutDocument(ctx, CollectionHouseholds, "h1", doc); err != nil {
		t.Fatalf("PutDocument failed: %v", err)
	}

	if err := m.AppendMember(ctx, "h1", "bob"); err != nil {
		t.Fatalf("AppendMember failed: %v", err)
	}
	// Appending twice keeps set semantics.
	if err := m.AppendMember(ctx, "h1", "bob"); err != nil {
		t.Fatalf("repeat AppendMember failed: %v", err)
	}

	var h struct {
		Members []string `json:"members"`
	}
	if err := m.GetDocument(ctx, CollectionHouseholds, "h1", &h); err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if len(h.Members) != 2 || h.Members[0] != "alice" || h.Members[1] != "bob" {
		t.Errorf("expected members [alice bob], got %v", h.Members)
	}

	if err := m.RemoveMember(ctx, "h1", "alice"); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if err := m.GetDocument(ctx, CollectionHouseholds, "h1", &h); err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if len(h.Members) != 1 || h.Members[0] != "bob" {
		t.Errorf("expected members [bob], got %v", h.Members)
	}

	// Removing from a missing household is a no-op.
	if err := m.RemoveMember(ctx, "nope", "bob"); err != nil {
		t.Errorf("RemoveMember on missing household should be a no-op, got %v", err)
	}
}

func TestMemoryFailPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	injected := errors.New("write rejected")
	m.FailPut(CollectionMeals, "1", injected)

	err := m.PutDocument(ctx, CollectionMeals, "1", testDoc{Name: "Chili", HouseholdID: "h1"})
	if !errors.Is(err, injected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if m.DocumentCount(CollectionMeals) != 0 {
		t.Error("failed put should not store a document")
	}

	m.FailPut(CollectionMeals, "1", nil)
	if err := m.PutDocument(ctx, CollectionMeals, "1", testDoc{Name: "Chili", HouseholdID: "h1"}); err != nil {
		t.Fatalf("PutDocument after clearing injection failed: %v", err)
	}
}
