package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTolerance is the default freshness window for session records.
// A record younger than this blocks new sessions for the same content id;
// an older record is considered stale (e.g. left behind by a crash) and is
// overwritten.
const DefaultTolerance = 5 * time.Second

var (
	// ErrSessionCollision is returned when a fresh session already exists for
	// the content id; the caller must abort and redirect the viewer away.
	ErrSessionCollision = errors.New("content session already active")

	// ErrBadProvenance is returned when a session is requested without a
	// recognized provenance marker (direct navigation).
	ErrBadProvenance = errors.New("missing or unrecognized provenance marker")
)

// Guard enforces that at most one fresh viewing session exists per content id.
// It serializes all store access; the tolerance window, not locking across
// devices, is what bounds concurrent viewing (soft mutual exclusion).
type Guard struct {
	mu        sync.Mutex
	store     SessionStore
	tolerance time.Duration
	accepted  map[string]struct{}
	now       func() time.Time
}

// NewGuard constructs a Guard over the given store. If tolerance <= 0,
// DefaultTolerance is used. provenance lists the accepted provenance markers;
// an empty list accepts any non-empty marker.
func NewGuard(store SessionStore, tolerance time.Duration, provenance []string) *Guard {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	accepted := make(map[string]struct{}, len(provenance))
	for _, p := range provenance {
		accepted[p] = struct{}{}
	}
	return &Guard{
		store:     store,
		tolerance: tolerance,
		accepted:  accepted,
		now:       time.Now,
	}
}

// CheckProvenance validates the navigation marker accompanying a session
// request. This is a heuristic against direct URL access, not a security
// boundary.
func (g *Guard) CheckProvenance(marker string) error {
	if marker == "" {
		return ErrBadProvenance
	}
	if len(g.accepted) == 0 {
		return nil
	}
	if _, ok := g.accepted[marker]; !ok {
		return ErrBadProvenance
	}
	return nil
}

// Begin starts a viewing session for the content id. If a record younger than
// the tolerance window exists, ErrSessionCollision is returned; otherwise a
// new record with a fresh tab token is written and returned.
func (g *Guard) Begin(ctx context.Context, id ContentID) (*ContentSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok, err := g.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok && g.now().Sub(existing.StartedAt) < g.tolerance {
		return nil, ErrSessionCollision
	}

	cs := &ContentSession{
		ContentID: id,
		TabToken:  uuid.NewString(),
		StartedAt: g.now(),
	}
	if err := g.store.Put(ctx, cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// End deletes the session record for the content id. Only the owning tab
// token may delete; a record written by a different tab is left to age out.
// Ending a content id with no record is a no-op.
func (g *Guard) End(ctx context.Context, id ContentID, tabToken string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok, err := g.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if tabToken != "" && existing.TabToken != tabToken {
		return nil
	}
	return g.store.Delete(ctx, id)
}

// FreshSessionCount returns the number of records younger than the tolerance
// window. Used for metrics.
func (g *Guard) FreshSessionCount(ctx context.Context) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	all, err := g.store.List(ctx)
	if err != nil {
		return 0
	}
	n := 0
	cutoff := g.now().Add(-g.tolerance)
	for _, cs := range all {
		if cs.StartedAt.After(cutoff) {
			n++
		}
	}
	return n
}
