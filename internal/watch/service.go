package watch

import (
	"context"
	"log/slog"
	"sync"
)

// Service composes the session guard, locator resolver, fault classifier,
// and refresh pipeline into the controller the HTTP surface exposes. It also
// owns the presentation lockdown attached to each active session.
type Service struct {
	guard      *Guard
	classifier *Classifier
	resolver   *Resolver
	recoverer  *Recoverer
	log        *slog.Logger

	mu        sync.Mutex
	lockdowns map[ContentID]*Lockdown
}

// NewService wires the controller together.
func NewService(guard *Guard, classifier *Classifier, resolver *Resolver, recoverer *Recoverer, log *slog.Logger) *Service {
	return &Service{
		guard:      guard,
		classifier: classifier,
		resolver:   resolver,
		recoverer:  recoverer,
		log:        log,
		lockdowns:  make(map[ContentID]*Lockdown),
	}
}

// Begin validates provenance, starts a session for the content id, and
// acquires the presentation lockdown for it. Collision and provenance
// failures are fatal to this page load; the caller redirects away.
func (s *Service) Begin(ctx context.Context, id ContentID, provenance string) (*ContentSession, *Lockdown, error) {
	if err := s.guard.CheckProvenance(provenance); err != nil {
		return nil, nil, err
	}
	cs, err := s.guard.Begin(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	ld := AcquireLockdown()
	s.mu.Lock()
	if old, ok := s.lockdowns[id]; ok {
		old.Release()
	}
	s.lockdowns[id] = ld
	s.mu.Unlock()

	s.log.Info("session started",
		slog.String("content_id", string(id)),
		slog.String("tab_token", cs.TabToken),
	)
	return cs, ld, nil
}

// End tears the session down and releases its lockdown. Best-effort: a
// missing record or foreign tab token is not an error.
func (s *Service) End(ctx context.Context, id ContentID, tabToken string) error {
	if err := s.guard.End(ctx, id, tabToken); err != nil {
		return err
	}

	s.mu.Lock()
	if ld, ok := s.lockdowns[id]; ok {
		ld.Release()
		delete(s.lockdowns, id)
	}
	s.mu.Unlock()

	s.log.Info("session ended", slog.String("content_id", string(id)))
	return nil
}

// LockdownRules returns the active lockdown rule set for the content id.
func (s *Service) LockdownRules(id ContentID) ([]LockdownRule, bool) {
	s.mu.Lock()
	ld, ok := s.lockdowns[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return ld.Rules(), true
}

// Resolve obtains a fresh locator for params.
func (s *Service) Resolve(ctx context.Context, params ResolveParams) (*MediaLocator, error) {
	return s.resolver.Resolve(ctx, params)
}

// ReportFault classifies a player error and runs one recovery pass. On
// success the returned locator should replace the player's source; on error
// the caller surfaces the terminal panel.
func (s *Service) ReportFault(ctx context.Context, id ContentID, nativeCode int, current *MediaLocator, params ResolveParams) (*MediaLocator, RecoveryStep, PlaybackFault, error) {
	sourceURL := ""
	if current != nil {
		sourceURL = current.URL
	}
	fault := s.classifier.Classify(nativeCode, sourceURL)

	s.log.Info("playback fault reported",
		slog.String("content_id", string(id)),
		slog.Int("native_code", nativeCode),
		slog.String("fault", string(fault.Code)),
		slog.Bool("recoverable", fault.Recoverable),
	)

	loc, step, err := s.recoverer.AttemptRecovery(ctx, fault, id, current, params)
	if err != nil {
		return nil, "", fault, err
	}
	return loc, step, fault, nil
}

// FreshSessionCount reports the number of fresh sessions for metrics.
func (s *Service) FreshSessionCount(ctx context.Context) int {
	return s.guard.FreshSessionCount(ctx)
}
