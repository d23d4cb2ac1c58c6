package repository

import (
	"errors"
	"strings"
)

// ErrNotFound is wrapped by all repositories when a row does not exist,
// so callers can map it to a 404 regardless of entity type.
var ErrNotFound = errors.New("not found")

// prefixColumns qualifies every column in a comma-separated list with a
// table alias, for joined queries.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, col := range parts {
		parts[i] = alias + strings.TrimSpace(col)
	}
	return strings.Join(parts, ", ")
}
