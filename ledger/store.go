package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/trustflow/types"
)

// Store persists sessions and decisions. Writes are versioned: saving an
// entity whose Version does not match the stored one fails with an
// INVALID_TRANSITION error so lost updates surface instead of silently
// overwriting. A successful save increments Version on the passed entity.
type Store interface {
	SaveSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)

	AppendDecision(ctx context.Context, d *Decision) error
	SaveDecision(ctx context.Context, d *Decision) error
	GetDecision(ctx context.Context, id string) (*Decision, error)
	ListDecisionsBySession(ctx context.Context, sessionID string) ([]*Decision, error)
	ListDecisionsByAgent(ctx context.Context, agentID string, since time.Time) ([]*Decision, error)
}

// MemoryStore is an in-memory Store for tests and single-process use.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	decisions map[string]*Decision
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]*Session),
		decisions: make(map[string]*Decision),
	}
}

func (s *MemoryStore) SaveSession(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.sessions[session.ID]; ok && stored.Version != session.Version {
		return types.NewErrorf(types.ErrInvalidTransition,
			"session %s version conflict: stored %d, got %d", session.ID, stored.Version, session.Version)
	}
	session.Version++
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound, "session %s not found", id)
	}
	return session.Clone(), nil
}

func (s *MemoryStore) AppendDecision(_ context.Context, d *Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.decisions[d.ID]; ok {
		return types.NewErrorf(types.ErrValidation, "decision %s already recorded", d.ID)
	}
	d.Version++
	s.decisions[d.ID] = d.Clone()
	return nil
}

func (s *MemoryStore) SaveDecision(_ context.Context, d *Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.decisions[d.ID]
	if !ok {
		return types.NewErrorf(types.ErrNotFound, "decision %s not found", d.ID)
	}
	if stored.Version != d.Version {
		return types.NewErrorf(types.ErrInvalidTransition,
			"decision %s version conflict: stored %d, got %d", d.ID, stored.Version, d.Version)
	}
	d.Version++
	s.decisions[d.ID] = d.Clone()
	return nil
}

func (s *MemoryStore) GetDecision(_ context.Context, id string) (*Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[id]
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound, "decision %s not found", id)
	}
	return d.Clone(), nil
}

func (s *MemoryStore) ListDecisionsBySession(_ context.Context, sessionID string) ([]*Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Decision
	for _, d := range s.decisions {
		if d.SessionID == sessionID {
			out = append(out, d.Clone())
		}
	}
	sortDecisions(out)
	return out, nil
}

func (s *MemoryStore) ListDecisionsByAgent(_ context.Context, agentID string, since time.Time) ([]*Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Decision
	for _, d := range s.decisions {
		if d.AgentID == agentID && !d.CreatedAt.Before(since) {
			out = append(out, d.Clone())
		}
	}
	sortDecisions(out)
	return out, nil
}

func sortDecisions(ds []*Decision) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].CreatedAt.Before(ds[j].CreatedAt) })
}

var _ Store = (*MemoryStore)(nil)
