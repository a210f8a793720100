package storage

import (
	"encoding/json"
	"fmt"
)

// EncodeRoles serializes roles as a JSON array for TEXT/JSONB columns.
// A nil slice is stored as "[]".
func EncodeRoles(roles []string) (string, error) {
	if roles == nil {
		roles = []string{}
	}
	b, err := json.Marshal(roles)
	if err != nil {
		return "", fmt.Errorf("failed to encode roles: %w", err)
	}
	return string(b), nil
}

// DecodeRoles parses a stored JSON array. It never returns a nil slice on success.
func DecodeRoles(raw string) ([]string, error) {
	roles := []string{}
	if raw == "" {
		return roles, nil
	}
	if err := json.Unmarshal([]byte(raw), &roles); err != nil {
		return nil, fmt.Errorf("failed to decode roles: %w", err)
	}
	return roles, nil
}
