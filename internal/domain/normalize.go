package domain

import "strings"

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// It is used for user and driver name normalization.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeEmail trims surrounding whitespace. Comparison is case-insensitive; the stored
// value keeps the caller's casing.
func NormalizeEmail(s string) string {
	return strings.TrimSpace(s)
}
