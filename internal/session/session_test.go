package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mealog/mealog/internal/netstate"
	"github.com/mealog/mealog/internal/remote"
	"github.com/mealog/mealog/internal/schema"
	"github.com/mealog/mealog/internal/store"
	meallogsync "github.com/mealog/mealog/internal/sync"
)

type fixture struct {
	store      *store.Store
	remote     *remote.Memory
	network    *netstate.Flag
	listener   *meallogsync.Listener
	controller *Controller
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "mealog.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	rs := remote.NewMemory()
	network := netstate.NewFlag(true)
	listener := meallogsync.NewListener(st, rs, nil)
	t.Cleanup(listener.Stop)

	var controller *Controller
	pusher := meallogsync.NewPusher(st, rs, network, func() string {
		return controller.HouseholdID()
	}, nil)
	controller = NewController(st, rs, listener, pusher, network, nil)

	return &fixture{
		store:      st,
		remote:     rs,
		network:    network,
		listener:   listener,
		controller: controller,
	}
}

var alice = Identity{UID: "alice", Email: "alice@example.com", DisplayName: "Alice"}

func TestSignInProvisionsFirstTimeUser(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	profile, err := f.controller.SignIn(ctx, alice)
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if profile.CurrentHouseholdID != "alice" {
		t.Errorf("personal household id = %q, want alice", profile.CurrentHouseholdID)
	}

	var household schema.Household
	if err := f.remote.GetDocument(ctx, remote.CollectionHouseholds, "alice", &household); err != nil {
		t.Fatalf("personal household missing: %v", err)
	}
	if household.Name != "Alice Household" {
		t.Errorf("household name = %q", household.Name)
	}
	if !household.HasMember("alice") {
		t.Error("owner must be a member of their personal household")
	}

	cached, err := f.store.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if cached == nil || cached.CurrentHouseholdID != "alice" {
		t.Errorf("cached profile = %+v", cached)
	}

	if f.listener.Household() != "alice" {
		t.Errorf("listener household = %q, want alice", f.listener.Household())
	}
}

func TestSignInExistingUserKeepsHousehold(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	existing := schema.UserProfile{
		UID:                "alice",
		Email:              "alice@example.com",
		DisplayName:        "Alice",
		CurrentHouseholdID: "shared",
	}
	if err := f.remote.PutDocument(ctx, remote.CollectionUsers, "alice", &existing); err != nil {
		t.Fatalf("PutDocument failed: %v", err)
	}

	profile, err := f.controller.SignIn(ctx, alice)
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if profile.CurrentHouseholdID != "shared" {
		t.Errorf("household = %q, want shared", profile.CurrentHouseholdID)
	}
	if f.listener.Household() != "shared" {
		t.Errorf("listener household = %q, want shared", f.listener.Household())
	}
}

func TestJoinHousehold(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	shared := schema.Household{Name: "Smith Household", Members: []string{"bob"}}
	if err := f.remote.PutDocument(ctx, remote.CollectionHouseholds, "smiths", &shared); err != nil {
		t.Fatalf("PutDocument failed: %v", err)
	}

	if _, err := f.controller.SignIn(ctx, alice); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := f.controller.JoinHousehold(ctx, "smiths"); err != nil {
		t.Fatalf("JoinHousehold failed: %v", err)
	}

	var got schema.Household
	if err := f.remote.GetDocument(ctx, remote.CollectionHouseholds, "smiths", &got); err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if !got.HasMember("alice") || !got.HasMember("bob") {
		t.Errorf("members = %v", got.Members)
	}

	if f.controller.HouseholdID() != "smiths" {
		t.Errorf("HouseholdID = %q, want smiths", f.controller.HouseholdID())
	}
	if f.listener.Household() != "smiths" {
		t.Errorf("listener household = %q, want smiths", f.listener.Household())
	}

	var remoteProfile schema.UserProfile
	if err := f.remote.GetDocument(ctx, remote.CollectionUsers, "alice", &remoteProfile); err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if remoteProfile.CurrentHouseholdID != "smiths" {
		t.Errorf("remote profile household = %q", remoteProfile.CurrentHouseholdID)
	}

	if err := f.controller.JoinHousehold(ctx, "smiths"); !errors.Is(err, ErrAlreadyInHousehold) {
		t.Errorf("repeat join: expected ErrAlreadyInHousehold, got %v", err)
	}
}

func TestJoinHouseholdMissing(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	if _, err := f.controller.SignIn(ctx, alice); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := f.controller.JoinHousehold(ctx, "nope"); !errors.Is(err, ErrHouseholdNotFound) {
		t.Fatalf("expected ErrHouseholdNotFound, got %v", err)
	}
	if f.controller.HouseholdID() != "alice" {
		t.Error("failed join must not change the active household")
	}
}

func TestJoinHouseholdOffline(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	if _, err := f.controller.SignIn(ctx, alice); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	f.network.Set(false)
	if err := f.controller.JoinHousehold(ctx, "smiths"); !errors.Is(err, ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}
}

func TestJoinHouseholdNotSignedIn(t *testing.T) {
	f := setup(t)
	if err := f.controller.JoinHousehold(context.Background(), "smiths"); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestLeaveHousehold(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	shared := schema.Household{Name: "Smith Household", Members: []string{"bob"}}
	if err := f.remote.PutDocument(ctx, remote.CollectionHouseholds, "smiths", &shared); err != nil {
		t.Fatalf("PutDocument failed: %v", err)
	}
	if _, err := f.controller.SignIn(ctx, alice); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := f.controller.JoinHousehold(ctx, "smiths"); err != nil {
		t.Fatalf("JoinHousehold failed: %v", err)
	}

	if err := f.controller.LeaveHousehold(ctx); err != nil {
		t.Fatalf("LeaveHousehold failed: %v", err)
	}
	if f.controller.HouseholdID() != "alice" {
		t.Errorf("HouseholdID = %q, want alice", f.controller.HouseholdID())
	}

	var got schema.Household
	if err := f.remote.GetDocument(ctx, remote.CollectionHouseholds, "smiths", &got); err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.HasMember("alice") {
		t.Error("alice should be removed from the shared household")
	}

	// Already on the personal household.
	if err := f.controller.LeaveHousehold(ctx); !errors.Is(err, ErrAlreadyInHousehold) {
		t.Errorf("expected ErrAlreadyInHousehold, got %v", err)
	}
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	if _, err := f.controller.SignIn(ctx, alice); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	f.controller.SignOut()

	if f.controller.Profile() != nil {
		t.Error("profile should be nil after sign-out")
	}
	if f.controller.HouseholdID() != schema.LocalHousehold {
		t.Errorf("HouseholdID = %q, want %q", f.controller.HouseholdID(), schema.LocalHousehold)
	}
	if f.listener.Household() != "" {
		t.Error("listener should be stopped after sign-out")
	}
}
