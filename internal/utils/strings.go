// Package utils holds small helpers shared by handlers, services and the CLI.
package utils

import "strings"

// ParseSymbols splits a comma-separated ticker list, trimming, upper-casing
// and dropping empties and repeats. Returns nil for blank input.
func ParseSymbols(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var result []string
	seen := make(map[string]struct{})
	for _, v := range strings.Split(s, ",") {
		sym := strings.ToUpper(strings.TrimSpace(v))
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		result = append(result, sym)
	}
	return result
}
