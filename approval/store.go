package approval

import (
	"context"
	"sort"
	"sync"

	"github.com/BaSui01/trustflow/types"
)

// Store persists approval requests. The workflow writes through it on every
// state change; implementations must be safe for concurrent use.
type Store interface {
	// Save inserts or overwrites a request.
	Save(ctx context.Context, req *Request) error
	// Get returns the request or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*Request, error)
	// ListPending returns all requests still in PENDING state, oldest first.
	ListPending(ctx context.Context) ([]*Request, error)
	// ListBySubject returns requests for a subject, newest first, up to limit.
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]*Request, error)
	// Delete removes a request.
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory Store for tests and single-process deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*Request
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]*Request)}
}

func (s *MemoryStore) Save(_ context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound, "approval request %s not found", id)
	}
	return req.Clone(), nil
}

func (s *MemoryStore) ListPending(_ context.Context) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Request
	for _, req := range s.requests {
		if req.State == StatePending {
			out = append(out, req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListBySubject(_ context.Context, subjectID string, limit int) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Request
	for _, req := range s.requests {
		if req.SubjectID == subjectID {
			out = append(out, req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests, id)
	return nil
}
