package constants

import "strings"

// PlaceholderVendors is the deny-list of vendor names that indicate the model
// returned a placeholder instead of reading the document.
var PlaceholderVendors = map[string]struct{}{
	"n/a":     {},
	"na":      {},
	"unknown": {},
	"none":    {},
	"vendor":  {},
	"-":       {},

	// common template artifacts
	"company name":      {},
	"your company name": {},
	"vendor name":       {},
	"supplier name":     {},
}

// IsPlaceholderVendor reports whether name is empty after trimming or matches
// the deny-list (case-insensitive).
func IsPlaceholderVendor(name string) bool {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return true
	}
	_, ok := PlaceholderVendors[s]
	return ok
}
