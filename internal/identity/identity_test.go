package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beaconhq/beacon/internal/event"
)

func newTestProvider(t *testing.T) (*FileProvider, *time.Time) {
	t.Helper()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	p := NewFileProvider(filepath.Join(t.TempDir(), "identity.json"))
	p.now = func() time.Time { return now }
	return p, &now
}

func TestIdentityGeneratesIDs(t *testing.T) {
	p, _ := newTestProvider(t)

	id, err := p.Identity(context.Background())
	if err != nil {
		t.Fatalf("Identity() error: %v", err)
	}
	if id.ClientID == "" || id.ClientID == event.PlaceholderID {
		t.Errorf("ClientID = %q, want a generated id", id.ClientID)
	}
	if id.SessionID == "" || id.SessionID == event.PlaceholderID {
		t.Errorf("SessionID = %q, want a generated id", id.SessionID)
	}
	if id.ClientID == id.SessionID {
		t.Error("client and session ids collide")
	}
}

func TestIdentityStableWithinSession(t *testing.T) {
	p, now := newTestProvider(t)
	ctx := context.Background()

	first, err := p.Identity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	*now = now.Add(5 * time.Minute)
	second, err := p.Identity(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if second.ClientID != first.ClientID {
		t.Errorf("ClientID changed within session: %q then %q", first.ClientID, second.ClientID)
	}
	if second.SessionID != first.SessionID {
		t.Errorf("SessionID changed within session: %q then %q", first.SessionID, second.SessionID)
	}
}

func TestSessionRotatesAfterInactivity(t *testing.T) {
	p, now := newTestProvider(t)
	ctx := context.Background()

	first, err := p.Identity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	*now = now.Add(DefaultSessionTTL + time.Minute)
	second, err := p.Identity(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if second.ClientID != first.ClientID {
		t.Errorf("ClientID rotated with the session: %q then %q", first.ClientID, second.ClientID)
	}
	if second.SessionID == first.SessionID {
		t.Error("SessionID did not rotate after the TTL")
	}
}

func TestActivityExtendsSession(t *testing.T) {
	p, now := newTestProvider(t)
	ctx := context.Background()

	first, err := p.Identity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// Repeated activity inside the TTL keeps the session alive past the
	// original deadline.
	for i := 0; i < 3; i++ {
		*now = now.Add(20 * time.Minute)
		id, err := p.Identity(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if id.SessionID != first.SessionID {
			t.Fatalf("SessionID rotated after %d active periods", i+1)
		}
	}
}

func TestClientIDSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	ctx := context.Background()

	p1 := NewFileProvider(path)
	first, err := p1.Identity(ctx)
	if err != nil {
		t.Fatal(err)
	}

	p2 := NewFileProvider(path)
	second, err := p2.Identity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.ClientID != first.ClientID {
		t.Errorf("ClientID changed across restart: %q then %q", first.ClientID, second.ClientID)
	}
}

func TestCorruptStateStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}

	id, err := NewFileProvider(path).Identity(context.Background())
	if err != nil {
		t.Fatalf("Identity() error with corrupt state: %v", err)
	}
	if id.ClientID == "" {
		t.Error("ClientID empty after corrupt state recovery")
	}
}

func TestStatic(t *testing.T) {
	want := event.Identity{ClientID: "c1", SessionID: "s1"}
	got, err := Static{ID: want}.Identity(context.Background())
	if err != nil {
		t.Fatalf("Identity() error: %v", err)
	}
	if got.ClientID != want.ClientID || got.SessionID != want.SessionID {
		t.Errorf("Identity() = %+v, want %+v", got, want)
	}
}
