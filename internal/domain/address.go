package domain

import "strings"

// NormalizeAddress builds the cache key for an address: trimmed, internal
// whitespace collapsed to single spaces, lowercased.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
