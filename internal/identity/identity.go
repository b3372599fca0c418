package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beaconhq/beacon/internal/event"
)

// DefaultSessionTTL is how long a session id stays valid without activity.
const DefaultSessionTTL = 30 * time.Minute

// Provider yields the identity context for a send. Implementations keep the
// client id stable across restarts and the session id stable within a
// session.
type Provider interface {
	Identity(ctx context.Context) (event.Identity, error)
}

type state struct {
	ClientID     string    `json:"client_id"`
	SessionID    string    `json:"session_id"`
	LastActivity time.Time `json:"last_activity"`
}

// FileProvider persists identity state to a JSON file. The client id is
// generated once and kept forever; the session id rotates after SessionTTL
// of inactivity.
type FileProvider struct {
	mu         sync.Mutex
	path       string
	sessionTTL time.Duration
	now        func() time.Time
	loaded     bool
	st         state
}

// NewFileProvider returns a provider backed by the given state file.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{
		path:       path,
		sessionTTL: DefaultSessionTTL,
		now:        time.Now,
	}
}

// Identity returns the current identity, generating and persisting ids as
// needed. Each call refreshes session activity.
func (p *FileProvider) Identity(_ context.Context) (event.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		if err := p.load(); err != nil {
			return event.Identity{}, err
		}
		p.loaded = true
	}

	now := p.now()
	changed := false
	if p.st.ClientID == "" {
		p.st.ClientID = uuid.NewString()
		changed = true
	}
	if p.st.SessionID == "" || now.Sub(p.st.LastActivity) > p.sessionTTL {
		p.st.SessionID = uuid.NewString()
		changed = true
	}
	p.st.LastActivity = now

	// LastActivity alone changes every call; only id changes force a write
	// through the slow path immediately. Activity updates are persisted too,
	// but a lost one just rotates the session a little early.
	if err := p.save(); err != nil && changed {
		return event.Identity{}, err
	}

	return event.Identity{ClientID: p.st.ClientID, SessionID: p.st.SessionID}, nil
}

func (p *FileProvider) load() error {
	b, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read identity state: %w", err)
	}
	if err := json.Unmarshal(b, &p.st); err != nil {
		// A corrupt state file starts a fresh identity rather than wedging
		// the pipeline.
		p.st = state{}
	}
	return nil
}

func (p *FileProvider) save() error {
	b, err := json.Marshal(p.st)
	if err != nil {
		return fmt.Errorf("marshal identity state: %w", err)
	}
	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create identity dir: %w", err)
		}
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write identity state: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("replace identity state: %w", err)
	}
	return nil
}

// Static is a fixed identity, useful for tests and for callers that manage
// identity themselves.
type Static struct {
	ID event.Identity
}

func (s Static) Identity(_ context.Context) (event.Identity, error) {
	return s.ID, nil
}
