package frontline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MergeAttributes fills customer_id and display_name into a participant
// attribute bag, only where absent. Existing values are never overwritten.
// changed reports whether the merged bag differs from the input, so callers
// can skip the redundant write.
func MergeAttributes(existing, customerID, displayName string) (merged string, changed bool, err error) {
	attrs := map[string]any{}
	trimmed := strings.TrimSpace(existing)
	if trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &attrs); err != nil {
			return "", false, fmt.Errorf("frontline: parse participant attributes: %w", err)
		}
	}
	if fillIfAbsent(attrs, "customer_id", customerID) {
		changed = true
	}
	if fillIfAbsent(attrs, "display_name", displayName) {
		changed = true
	}
	if !changed {
		return existing, false, nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return "", false, fmt.Errorf("frontline: marshal participant attributes: %w", err)
	}
	return string(data), true, nil
}

// fillIfAbsent sets key to value when the bag has no usable value for it.
// Empty strings and nulls count as absent.
func fillIfAbsent(attrs map[string]any, key, value string) bool {
	if value == "" {
		return false
	}
	if current, ok := attrs[key]; ok && current != nil {
		if s, isString := current.(string); !isString || s != "" {
			return false
		}
	}
	attrs[key] = value
	return true
}
