// Package session manages the signed-in user and the household their
// device syncs against. It owns the lifecycle of the down-sync
// listener: sign-in starts it, household changes restart it, sign-out
// stops it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	gosync "sync"

	"github.com/mealog/mealog/internal/netstate"
	"github.com/mealog/mealog/internal/remote"
	"github.com/mealog/mealog/internal/schema"
	"github.com/mealog/mealog/internal/store"
	meallogsync "github.com/mealog/mealog/internal/sync"
)

var (
	// ErrNotSignedIn indicates an operation that requires a session.
	ErrNotSignedIn = errors.New("session: not signed in")
	// ErrOffline indicates a membership change was attempted without
	// connectivity. Household changes are remote-first and cannot be
	// queued.
	ErrOffline = errors.New("session: device is offline")
	// ErrAlreadyInHousehold indicates a join targeting the current
	// household, or a leave while already on the personal household.
	ErrAlreadyInHousehold = errors.New("session: already in that household")
	// ErrHouseholdNotFound indicates a join targeting a household id
	// that does not exist remotely.
	ErrHouseholdNotFound = errors.New("session: household not found")
)

// Identity is the externally-authenticated user handed to SignIn.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

// Controller coordinates profile state, household membership, and the
// sync components bound to the active household.
type Controller struct {
	store    *store.Store
	remote   remote.Store
	listener *meallogsync.Listener
	pusher   *meallogsync.Pusher
	network  netstate.Network
	logger   *log.Logger

	mu      gosync.Mutex
	profile *schema.UserProfile
}

// NewController wires a session controller. If logger is nil, a
// default logger writing to stderr is used.
func NewController(st *store.Store, rs remote.Store, listener *meallogsync.Listener, pusher *meallogsync.Pusher, network netstate.Network, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}
	return &Controller{
		store:    st,
		remote:   rs,
		listener: listener,
		pusher:   pusher,
		network:  network,
		logger:   logger,
	}
}

// SignIn establishes a session for an authenticated identity.
//
// The remote profile is fetched if it exists; a first-time user gets a
// personal household (id equal to their uid) and a fresh profile
// created remotely. The profile is cached locally, the listener starts
// on the profile's current household, and a push is scheduled to drain
// any offline backlog.
func (c *Controller) SignIn(ctx context.Context, id Identity) (*schema.UserProfile, error) {
	if id.UID == "" {
		return nil, fmt.Errorf("session: uid is required")
	}

	var profile schema.UserProfile
	err := c.remote.GetDocument(ctx, remote.CollectionUsers, id.UID, &profile)
	switch {
	case errors.Is(err, remote.ErrNotFound):
		p, err := c.provision(ctx, id)
		if err != nil {
			return nil, err
		}
		profile = *p
	case err != nil:
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	default:
		profile.UID = id.UID
		if profile.CurrentHouseholdID == "" {
			profile.CurrentHouseholdID = id.UID
		}
	}

	if err := c.store.PutProfile(ctx, &profile); err != nil {
		return nil, fmt.Errorf("failed to cache profile: %w", err)
	}

	if err := c.listener.Start(ctx, profile.CurrentHouseholdID); err != nil {
		return nil, fmt.Errorf("failed to start sync: %w", err)
	}

	c.mu.Lock()
	c.profile = &profile
	c.mu.Unlock()

	c.logger.Printf("Signed in as %s (household %s)", profile.UID, profile.CurrentHouseholdID)
	c.pusher.Trigger()
	return &profile, nil
}

// provision creates the personal household and profile for a
// first-time user.
func (c *Controller) provision(ctx context.Context, id Identity) (*schema.UserProfile, error) {
	name := id.DisplayName
	if name == "" {
		name = id.Email
	}
	household := schema.Household{
		Name:    fmt.Sprintf("%s Household", name),
		Members: []string{id.UID},
	}
	if err := c.remote.PutDocument(ctx, remote.CollectionHouseholds, id.UID, &household); err != nil {
		return nil, fmt.Errorf("failed to create personal household: %w", err)
	}

	profile := &schema.UserProfile{
		UID:                id.UID,
		Email:              id.Email,
		DisplayName:        id.DisplayName,
		CurrentHouseholdID: id.UID,
	}
	if err := c.remote.PutDocument(ctx, remote.CollectionUsers, id.UID, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	c.logger.Printf("Provisioned new user %s", id.UID)
	return profile, nil
}

// SignOut stops the listener and clears the in-memory session. Local
// data stays on disk.
func (c *Controller) SignOut() {
	c.listener.Stop()

	c.mu.Lock()
	signedIn := c.profile != nil
	c.profile = nil
	c.mu.Unlock()

	if signedIn {
		c.logger.Printf("Signed out")
	}
}

// JoinHousehold switches the session to an existing shared household.
// The household must exist remotely; the caller's uid is added to its
// member list, the profile is updated remotely and locally, and the
// listener restarts on the new household.
func (c *Controller) JoinHousehold(ctx context.Context, householdID string) error {
	if !c.network.Online() {
		return ErrOffline
	}

	c.mu.Lock()
	profile := c.profile
	c.mu.Unlock()
	if profile == nil {
		return ErrNotSignedIn
	}
	if profile.CurrentHouseholdID == householdID {
		return ErrAlreadyInHousehold
	}

	err := c.remote.AppendMember(ctx, householdID, profile.UID)
	if errors.Is(err, remote.ErrNotFound) {
		return ErrHouseholdNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to join household: %w", err)
	}

	return c.switchHousehold(ctx, profile, householdID)
}

// LeaveHousehold returns the session to the personal household. The
// caller's uid is removed from the shared household's member list.
func (c *Controller) LeaveHousehold(ctx context.Context) error {
	if !c.network.Online() {
		return ErrOffline
	}

	c.mu.Lock()
	profile := c.profile
	c.mu.Unlock()
	if profile == nil {
		return ErrNotSignedIn
	}
	if profile.CurrentHouseholdID == profile.UID {
		return ErrAlreadyInHousehold
	}

	if err := c.remote.RemoveMember(ctx, profile.CurrentHouseholdID, profile.UID); err != nil {
		return fmt.Errorf("failed to leave household: %w", err)
	}

	return c.switchHousehold(ctx, profile, profile.UID)
}

// switchHousehold persists the new household on the profile and
// rebinds the sync components to it.
func (c *Controller) switchHousehold(ctx context.Context, profile *schema.UserProfile, householdID string) error {
	updated := *profile
	updated.CurrentHouseholdID = householdID

	if err := c.remote.PutDocument(ctx, remote.CollectionUsers, updated.UID, &updated); err != nil {
		return fmt.Errorf("failed to update remote profile: %w", err)
	}
	if err := c.store.PutProfile(ctx, &updated); err != nil {
		return fmt.Errorf("failed to cache profile: %w", err)
	}

	if err := c.listener.Start(ctx, householdID); err != nil {
		return fmt.Errorf("failed to restart sync: %w", err)
	}

	c.mu.Lock()
	c.profile = &updated
	c.mu.Unlock()

	c.logger.Printf("Switched to household %s", householdID)
	c.pusher.Trigger()
	return nil
}

// Profile returns a copy of the signed-in profile, or nil when signed
// out.
func (c *Controller) Profile() *schema.UserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return nil
	}
	p := *c.profile
	return &p
}

// HouseholdID reports the active sync household. Signed out, records
// stay tagged with the local placeholder household.
func (c *Controller) HouseholdID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return schema.LocalHousehold
	}
	return c.profile.CurrentHouseholdID
}
