package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNoLocator is returned when the locate service answers without a
	// playable locator. Callers treat this as soft: an existing locator, if
	// any, stays in use until the next fault or manual retry.
	ErrNoLocator = errors.New("locate service returned no playable locator")

	// ErrNoCoordinates is returned when neither full coordinates nor a
	// resolvable session id were supplied.
	ErrNoCoordinates = errors.New("cannot derive locate coordinates")
)

// SessionLookup resolves a session id to locate coordinates and a display
// title for diagnostics.
type SessionLookup interface {
	Lookup(ctx context.Context, sessionID string) (Coordinates, string, error)
}

// MediaLocateService returns a signed URL and media metadata for coordinates.
type MediaLocateService interface {
	Locate(ctx context.Context, c Coordinates) (signedURL string, metadata map[string]string, err error)
}

// PathSigner re-signs a bare storage path. Last-resort fallback when no
// richer identifying context is available.
type PathSigner interface {
	Sign(ctx context.Context, path string) (signedURL string, err error)
}

// BackupRule derives an alternate CDN-style locator from a primary one.
// When the primary's host ends with one of the storage suffixes, the backup
// keeps the object path and query signature and substitutes only scheme+host.
type BackupRule struct {
	StorageHostSuffixes []string
	CDNAliasHost        string
}

// Derive returns the backup URL for primary, or "" when the rule does not
// apply (unknown host, unparsable URL, or no alias configured).
func (b BackupRule) Derive(primary string) string {
	if b.CDNAliasHost == "" {
		return ""
	}
	u, err := url.Parse(primary)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Hostname()
	matched := false
	for _, suffix := range b.StorageHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			matched = true
			break
		}
	}
	if !matched {
		return ""
	}
	alias := url.URL{
		Scheme:   "https",
		Host:     b.CDNAliasHost,
		Path:     u.Path,
		RawQuery: u.RawQuery,
	}
	return alias.String()
}

// Resolver obtains time-limited media locators: session id -> coordinates ->
// signed URL, plus the derived backup locator when the primary lives on a
// known storage host.
type Resolver struct {
	sessions SessionLookup
	locate   MediaLocateService
	backup   BackupRule
	log      *slog.Logger
	now      func() time.Time
}

// NewResolver constructs a Resolver. sessions may be nil when only
// coordinate-based resolution is needed.
func NewResolver(sessions SessionLookup, locate MediaLocateService, backup BackupRule, log *slog.Logger) *Resolver {
	return &Resolver{
		sessions: sessions,
		locate:   locate,
		backup:   backup,
		log:      log,
		now:      time.Now,
	}
}

// Coordinates derives the locate coordinates from params, consulting the
// session lookup service when only a session id is present. A lookup response
// without a sequence number falls back to "1".
func (r *Resolver) Coordinates(ctx context.Context, params ResolveParams) (Coordinates, string, error) {
	if params.Complete() {
		return params.Coordinates, "", nil
	}
	if params.SessionID == "" || r.sessions == nil {
		return Coordinates{}, "", ErrNoCoordinates
	}
	coords, title, err := r.sessions.Lookup(ctx, params.SessionID)
	if err != nil {
		return Coordinates{}, "", fmt.Errorf("session lookup %q: %w", params.SessionID, err)
	}
	if coords.SequenceNumber == "" {
		coords.SequenceNumber = "1"
	}
	if coords.BatchID == "" || coords.ParticipantID == "" {
		return Coordinates{}, "", fmt.Errorf("session lookup %q: %w", params.SessionID, ErrNoCoordinates)
	}
	return coords, title, nil
}

// Resolve obtains a fresh MediaLocator for params. Each call produces a new
// locator value; earlier locators are superseded, never mutated.
func (r *Resolver) Resolve(ctx context.Context, params ResolveParams) (*MediaLocator, error) {
	coords, _, err := r.Coordinates(ctx, params)
	if err != nil {
		return nil, err
	}

	signedURL, metadata, err := r.locate.Locate(ctx, coords)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoLocator, err)
	}
	if signedURL == "" {
		return nil, ErrNoLocator
	}

	loc := &MediaLocator{
		URL:       signedURL,
		BackupURL: r.backup.Derive(signedURL),
		Metadata:  metadata,
		FetchedAt: r.now(),
	}
	r.log.Debug("locator resolved",
		slog.String("batch_id", coords.BatchID),
		slog.String("sequence", coords.SequenceNumber),
		slog.Bool("has_backup", loc.BackupURL != ""),
	)
	return loc, nil
}
