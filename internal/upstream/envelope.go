package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// unwrapEnvelope peels up to two levels of {"status": ..., "data": ...}
// wrapping off an upstream response body and returns the innermost payload.
// The services answer inconsistently: some wrap the payload once, some
// twice, some not at all. A body without an envelope is returned as-is.
// A status other than "success" is an error regardless of nesting level.
func unwrapEnvelope(body []byte) ([]byte, error) {
	current := body
	for i := 0; i < 2; i++ {
		var env struct {
			Status string          `json:"status"`
			Data   json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(current, &env); err != nil {
			// Not an object at this level (e.g. an array payload); done.
			return current, nil
		}
		if env.Status != "" && env.Status != "success" {
			return nil, fmt.Errorf("upstream status %q", env.Status)
		}
		if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
			return current, nil
		}
		current = env.Data
	}
	return current, nil
}
