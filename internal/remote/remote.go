// Package remote abstracts the cloud document store used as the
// durability backstop and cross-device transport.
//
// The capability is deliberately small: point writes, point reads,
// point deletes, household membership updates, and live queries
// filtered by household id. The sync layer consumes this interface;
// production runs against MongoDB, tests against the in-memory
// implementation.
package remote

import "context"

// Collection names in the remote document store.
const (
	CollectionUsers       = "users"
	CollectionHouseholds  = "households"
	CollectionMeals       = "meals"
	CollectionWeeklyPlans = "weeklyPlans"
)

// ChangeType describes what happened to a document in a live query.
type ChangeType string

const (
	// ChangeAdded is emitted for documents present when a subscription
	// starts and for documents created afterwards.
	ChangeAdded ChangeType = "added"
	// ChangeModified is emitted when an existing document is rewritten.
	ChangeModified ChangeType = "modified"
	// ChangeRemoved is emitted when a document is deleted.
	ChangeRemoved ChangeType = "removed"
)

// Change is one live-query notification. Doc is the full document as
// JSON; it is empty for removals.
type Change struct {
	Type       ChangeType
	Collection string
	ID         string
	Doc        []byte
}

// Handler receives live-query changes. Handlers must tolerate
// redelivery of an already-applied document (subscriptions replay the
// current matching set on start).
type Handler func(Change)

// Subscription is a handle on a live query. Stop detaches it
// synchronously: once Stop returns, the handler is not called again.
type Subscription interface {
	Stop()
}

// Store is the remote document store capability.
//
// Calls may block indefinitely while the device is offline; callers
// are expected to consult the network capability before invoking
// them.
type Store interface {
	// PutDocument writes a full document at collection/id, creating or
	// replacing it.
	PutDocument(ctx context.Context, collection, id string, doc any) error

	// GetDocument reads the document at collection/id into out.
	// Returns ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, collection, id string, out any) error

	// DeleteDocument removes the document at collection/id. Deleting a
	// missing document is a no-op.
	DeleteDocument(ctx context.Context, collection, id string) error

	// AppendMember adds uid to a household's member list (set
	// semantics). Returns ErrNotFound if the household is missing.
	AppendMember(ctx context.Context, householdID, uid string) error

	// RemoveMember drops uid from a household's member list. Removing
	// from a missing household is a no-op.
	RemoveMember(ctx context.Context, householdID, uid string) error

	// Subscribe opens a live query over collection filtered by
	// household id. The current matching documents are delivered as
	// ChangeAdded, then changes stream until Stop is called.
	Subscribe(ctx context.Context, collection, householdID string, h Handler) (Subscription, error)
}
