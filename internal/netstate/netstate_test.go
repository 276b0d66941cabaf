package netstate

import "testing"

func TestFlagTransitions(t *testing.T) {
	f := NewFlag(false)
	if f.Online() {
		t.Fatal("expected initial state offline")
	}

	f.Set(true)
	if !f.Online() {
		t.Fatal("expected online after Set(true)")
	}
	select {
	case state := <-f.Transitions():
		if !state {
			t.Errorf("expected transition to online, got %v", state)
		}
	default:
		t.Fatal("expected a transition to be published")
	}

	// Setting the same state again publishes nothing.
	f.Set(true)
	select {
	case state := <-f.Transitions():
		t.Fatalf("unexpected transition %v for no-op Set", state)
	default:
	}
}
