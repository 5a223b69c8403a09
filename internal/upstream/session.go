// Package upstream holds the HTTP clients for the external collaborators of
// the watch controller: the session lookup service, the coordinate-based
// media locate service, and the path re-sign service.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/medhedtech/medh-web-sub027/internal/watch"
)

const defaultTimeout = 15 * time.Second

// ErrEmptyResponse is returned when an upstream answers 2xx with no usable
// payload.
var ErrEmptyResponse = errors.New("upstream returned an empty response")

// SessionClient resolves session ids against the session lookup service.
type SessionClient struct {
	base string
	http *http.Client
}

// NewSessionClient returns a client for the service at base.
func NewSessionClient(base string) *SessionClient {
	return &SessionClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
}

// Lookup implements watch.SessionLookup. A response without a sequence
// number but with a sessionLabel ending in digits yields those digits; the
// watch.Resolver applies the final "1" fallback.
func (c *SessionClient) Lookup(ctx context.Context, sessionID string) (watch.Coordinates, string, error) {
	u := c.base + "/sessions/" + url.PathEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return watch.Coordinates{}, "", err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return watch.Coordinates{}, "", fmt.Errorf("session lookup: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return watch.Coordinates{}, "", fmt.Errorf("session lookup: status %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return watch.Coordinates{}, "", fmt.Errorf("session lookup: %w", err)
	}
	payload, err := unwrapEnvelope(body)
	if err != nil {
		return watch.Coordinates{}, "", fmt.Errorf("session lookup: %w", err)
	}
	if len(payload) == 0 {
		return watch.Coordinates{}, "", fmt.Errorf("session lookup: %w", ErrEmptyResponse)
	}

	var p struct {
		BatchID        flexString  `json:"batchId"`
		ParticipantID  flexStrings `json:"participantId"`
		SequenceNumber flexString  `json:"sessionSequenceNumber"`
		SessionLabel   string      `json:"sessionLabel"`
		Title          string      `json:"title"`
	}
	if err := decodeJSON(payload, &p); err != nil {
		return watch.Coordinates{}, "", fmt.Errorf("session lookup: %w", err)
	}

	coords := watch.Coordinates{
		BatchID:        string(p.BatchID),
		SequenceNumber: string(p.SequenceNumber),
	}
	if len(p.ParticipantID) > 0 {
		coords.ParticipantID = p.ParticipantID[0]
	}
	if coords.SequenceNumber == "" {
		coords.SequenceNumber = trailingDigits(p.SessionLabel)
	}
	if coords.BatchID == "" || coords.ParticipantID == "" {
		return watch.Coordinates{}, "", fmt.Errorf("session lookup: response missing batch or participant")
	}
	return coords, p.Title, nil
}
