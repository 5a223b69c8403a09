package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxRecoveryAttempts caps how many network-backed recovery passes a
// single content id gets before the viewer has to retry manually. A
// successful recovery resets the budget, so routine expiry refreshes are
// unaffected; only a tight fault loop is cut off.
const DefaultMaxRecoveryAttempts = 5

var (
	// ErrRecoveryExhausted is returned when every recovery strategy failed or
	// the fault is terminal. The caller surfaces the error panel with a
	// manual retry affordance.
	ErrRecoveryExhausted = errors.New("all recovery strategies exhausted")

	// ErrRetryBudgetExhausted is returned when repeated faults for the same
	// content id have used up the bounded retry budget or arrive before the
	// backoff interval has elapsed. No network calls are made.
	ErrRetryBudgetExhausted = errors.New("recovery retry budget exhausted")
)

// RecoveryStep names the strategy that produced a recovered locator.
type RecoveryStep string

const (
	StepBackupSwap   RecoveryStep = "backup_swap"
	StepFreshResolve RecoveryStep = "fresh_resolve"
	StepPathResign   RecoveryStep = "path_resign"
)

// retryBudget tracks the bounded backoff state for one content id.
type retryBudget struct {
	attempts  int
	notBefore time.Time
	bo        *backoff.ExponentialBackOff
}

// Recoverer runs the locator refresh pipeline on classified playback faults:
//
//  1. BackupSwap: switch to the known backup locator (no network call).
//  2. FreshResolve: re-derive coordinates and resolve a brand-new locator.
//  3. PathResign: extract the storage path from the failing URL and ask the
//     re-sign service for a fresh signature.
//
// Cheapest and most likely correct first. Network-backed passes are
// deduplicated per content id (concurrent faults share one in-flight
// recovery) and drawn from a bounded backoff budget.
type Recoverer struct {
	resolver    *Resolver
	signer      PathSigner
	backup      BackupRule
	maxAttempts int
	log         *slog.Logger
	now         func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	budgets map[ContentID]*retryBudget
}

// NewRecoverer constructs a Recoverer. signer may be nil to disable the
// path-resign fallback. If maxAttempts <= 0, DefaultMaxRecoveryAttempts is
// used.
func NewRecoverer(resolver *Resolver, signer PathSigner, backup BackupRule, maxAttempts int, log *slog.Logger) *Recoverer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRecoveryAttempts
	}
	return &Recoverer{
		resolver:    resolver,
		signer:      signer,
		backup:      backup,
		maxAttempts: maxAttempts,
		log:         log,
		now:         time.Now,
		budgets:     make(map[ContentID]*retryBudget),
	}
}

// recovered pairs a fresh locator with the step that produced it.
type recovered struct {
	locator *MediaLocator
	step    RecoveryStep
}

// AttemptRecovery runs one pass of the refresh pipeline for a fault on the
// given content. current is the locator that was playing when the fault
// fired; it may be nil. On success the returned locator supersedes current.
func (rc *Recoverer) AttemptRecovery(ctx context.Context, fault PlaybackFault, contentID ContentID, current *MediaLocator, params ResolveParams) (*MediaLocator, RecoveryStep, error) {
	// Swapping to a known backup costs nothing, so it is tried before the
	// recoverability gate.
	if current != nil && current.BackupURL != "" && current.BackupURL != current.URL {
		loc := &MediaLocator{
			URL:       current.BackupURL,
			Metadata:  current.Metadata,
			FetchedAt: rc.now(),
		}
		rc.log.Info("recovered via backup swap", slog.String("content_id", string(contentID)))
		return loc, StepBackupSwap, nil
	}

	if !fault.Recoverable {
		return nil, "", fmt.Errorf("%w: fault %s is terminal", ErrRecoveryExhausted, fault.Code)
	}

	v, err, _ := rc.group.Do(string(contentID), func() (interface{}, error) {
		return rc.recoverLocked(ctx, contentID, current, params)
	})
	if err != nil {
		return nil, "", err
	}
	rec := v.(recovered)
	return rec.locator, rec.step, nil
}

// recoverLocked performs the network-backed steps. At most one invocation per
// content id runs at a time; concurrent faults share its result.
func (rc *Recoverer) recoverLocked(ctx context.Context, contentID ContentID, current *MediaLocator, params ResolveParams) (interface{}, error) {
	if err := rc.consumeBudget(contentID); err != nil {
		return nil, err
	}

	loc, resolveErr := rc.resolver.Resolve(ctx, params)
	if resolveErr == nil {
		rc.resetBudget(contentID)
		rc.log.Info("recovered via fresh resolve", slog.String("content_id", string(contentID)))
		return recovered{locator: loc, step: StepFreshResolve}, nil
	}
	rc.log.Warn("fresh resolve failed, trying path re-sign",
		slog.String("content_id", string(contentID)),
		slog.String("error", resolveErr.Error()),
	)

	if rc.signer != nil && current != nil {
		if path := storagePathFromURL(current.URL); path != "" {
			signed, err := rc.signer.Sign(ctx, path)
			if err == nil && signed != "" {
				rc.resetBudget(contentID)
				rc.log.Info("recovered via path re-sign", slog.String("content_id", string(contentID)))
				return recovered{
					locator: &MediaLocator{
						URL:       signed,
						BackupURL: rc.backup.Derive(signed),
						FetchedAt: rc.now(),
					},
					step: StepPathResign,
				}, nil
			}
			if err != nil {
				rc.log.Warn("path re-sign failed",
					slog.String("content_id", string(contentID)),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrRecoveryExhausted, resolveErr)
}

// consumeBudget charges one network-backed pass against the content id's
// budget, enforcing the attempt cap and the backoff interval.
func (rc *Recoverer) consumeBudget(contentID ContentID) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	b, ok := rc.budgets[contentID]
	if !ok {
		b = &retryBudget{bo: backoff.NewExponentialBackOff()}
		rc.budgets[contentID] = b
	}
	if b.attempts >= rc.maxAttempts {
		return fmt.Errorf("%w: %d attempts", ErrRetryBudgetExhausted, b.attempts)
	}
	if now := rc.now(); now.Before(b.notBefore) {
		return fmt.Errorf("%w: next attempt allowed in %s", ErrRetryBudgetExhausted, b.notBefore.Sub(now))
	}
	b.attempts++
	b.notBefore = rc.now().Add(b.bo.NextBackOff())
	return nil
}

// resetBudget clears the budget after a successful recovery.
func (rc *Recoverer) resetBudget(contentID ContentID) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.budgets, contentID)
}

// storagePathFromURL extracts the object path of a locator URL for the
// re-sign fallback. Returns "" when no usable path exists.
func storagePathFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Path == "" || u.Path == "/" {
		return ""
	}
	return u.Path
}
