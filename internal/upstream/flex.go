package upstream

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// flexString decodes a JSON string or number into a string. The session
// service emits sequence numbers and ids in both shapes.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	return fmt.Errorf("value %s is neither string nor number", b)
}

// flexStrings decodes a JSON string or array of strings into a slice.
// participantId arrives as either shape.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*f = flexStrings{one}
		return nil
	}
	var many []flexString
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("value %s is neither string nor string array", b)
	}
	out := make(flexStrings, 0, len(many))
	for _, v := range many {
		out = append(out, string(v))
	}
	*f = out
	return nil
}

// trailingDigits returns the digit suffix of s (e.g. "Session 3" -> "3"),
// or "" when s does not end in digits.
func trailingDigits(s string) string {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return ""
	}
	digits := s[i:]
	if _, err := strconv.Atoi(digits); err != nil {
		return ""
	}
	return digits
}
