package watch

import "context"

// SessionKey returns the storage key under which a content id's session
// record lives. The key shape is shared with the page-side storage.
func SessionKey(id ContentID) string {
	return "video_session_" + string(id)
}

// SessionStore is the persistence abstraction for content session records.
// Implementations can be in-memory (single process) or Redis-backed (shared
// across instances). The Guard uses SessionStore for all reads and writes and
// serializes access; implementations do not need their own locking for Guard
// correctness.
type SessionStore interface {
	Get(ctx context.Context, id ContentID) (*ContentSession, bool, error)
	Put(ctx context.Context, s *ContentSession) error
	Delete(ctx context.Context, id ContentID) error
	List(ctx context.Context) ([]*ContentSession, error)
}

// InMemorySessionStore is an in-memory implementation of SessionStore.
type InMemorySessionStore struct {
	sessions map[string]*ContentSession
}

// NewInMemorySessionStore returns a new empty in-memory store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]*ContentSession),
	}
}

// Get implements SessionStore.Get.
func (s *InMemorySessionStore) Get(_ context.Context, id ContentID) (*ContentSession, bool, error) {
	cs, ok := s.sessions[SessionKey(id)]
	return cs, ok, nil
}

// Put implements SessionStore.Put.
func (s *InMemorySessionStore) Put(_ context.Context, cs *ContentSession) error {
	s.sessions[SessionKey(cs.ContentID)] = cs
	return nil
}

// Delete implements SessionStore.Delete.
func (s *InMemorySessionStore) Delete(_ context.Context, id ContentID) error {
	delete(s.sessions, SessionKey(id))
	return nil
}

// List implements SessionStore.List.
func (s *InMemorySessionStore) List(_ context.Context) ([]*ContentSession, error) {
	out := make([]*ContentSession, 0, len(s.sessions))
	for _, cs := range s.sessions {
		out = append(out, cs)
	}
	return out, nil
}
