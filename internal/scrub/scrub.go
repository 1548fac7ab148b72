// Package scrub redacts known secret values from text before it crosses
// the trust boundary back toward the reasoning component.
//
// Matching is literal: a secret the upstream system re-encodes (base64,
// truncated, case-folded) will not be caught. That is an accepted gap of
// this design, not an oversight.
package scrub

import "strings"

// Marker replaces every occurrence of a secret value.
const Marker = "[REDACTED]"

// Scrub replaces every exact occurrence of each value in raw with the
// redaction marker. Empty values are skipped.
func Scrub(raw string, values []string) string {
	scrubbed := raw
	for _, v := range values {
		if v == "" {
			continue
		}
		scrubbed = strings.ReplaceAll(scrubbed, v, Marker)
	}
	return scrubbed
}
