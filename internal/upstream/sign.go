package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SignClient requests a fresh signed URL for an exact storage path. Used only
// as the last-resort recovery fallback.
type SignClient struct {
	base string
	http *http.Client
}

// NewSignClient returns a client for the service at base.
func NewSignClient(base string) *SignClient {
	return &SignClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
}

// Sign implements watch.PathSigner.
func (c *SignClient) Sign(ctx context.Context, path string) (string, error) {
	reqBody, err := json.Marshal(struct {
		Path string `json:"path"`
	}{Path: path})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/sign", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", fmt.Errorf("sign: status %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	payload, err := unwrapEnvelope(body)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	var p struct {
		SignedURL string `json:"signedUrl"`
	}
	if err := decodeJSON(payload, &p); err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	if p.SignedURL == "" {
		return "", fmt.Errorf("sign: response missing signedUrl")
	}
	return p.SignedURL, nil
}
