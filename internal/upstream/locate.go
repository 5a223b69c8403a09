package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/medhedtech/medh-web-sub027/internal/watch"
)

// LocateClient asks the coordinate-based media locate service for a signed
// URL.
type LocateClient struct {
	base string
	http *http.Client
}

// NewLocateClient returns a client for the service at base.
func NewLocateClient(base string) *LocateClient {
	return &LocateClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
}

// Locate implements watch.MediaLocateService. A response without a signedUrl
// is an error; the caller treats it as a soft resolution failure.
func (c *LocateClient) Locate(ctx context.Context, coords watch.Coordinates) (string, map[string]string, error) {
	q := url.Values{}
	q.Set("batch_id", coords.BatchID)
	q.Set("participant_id", coords.ParticipantID)
	q.Set("session_seq", coords.SequenceNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/locate?"+q.Encode(), nil)
	if err != nil {
		return "", nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("locate: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", nil, fmt.Errorf("locate: status %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", nil, fmt.Errorf("locate: %w", err)
	}
	payload, err := unwrapEnvelope(body)
	if err != nil {
		return "", nil, fmt.Errorf("locate: %w", err)
	}

	var p struct {
		SignedURL     string                     `json:"signedUrl"`
		VideoMetadata map[string]json.RawMessage `json:"videoMetadata"`
	}
	if err := decodeJSON(payload, &p); err != nil {
		return "", nil, fmt.Errorf("locate: %w", err)
	}
	if p.SignedURL == "" {
		return "", nil, fmt.Errorf("locate: response missing signedUrl")
	}

	// Metadata is opaque to the controller; flatten values to strings.
	var meta map[string]string
	if len(p.VideoMetadata) > 0 {
		meta = make(map[string]string, len(p.VideoMetadata))
		for k, raw := range p.VideoMetadata {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				meta[k] = s
			} else {
				meta[k] = strings.TrimSpace(string(raw))
			}
		}
	}
	return p.SignedURL, meta, nil
}

// decodeJSON unmarshals strictly enough to surface shape problems while
// tolerating unknown fields.
func decodeJSON(payload []byte, v interface{}) error {
	dec := json.NewDecoder(strings.NewReader(string(payload)))
	dec.UseNumber()
	return dec.Decode(v)
}
