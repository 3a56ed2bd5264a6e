package filter

import (
	"path"
	"strings"
	"time"
)

// splitList splits a comma- or semicolon-delimited allow-list, trimming
// whitespace and dropping empty entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// matchSubject applies the configured subject predicate: exact or substring,
// case-insensitive either way.
func matchSubject(subject, want string, exact bool) bool {
	if want == "" {
		return true
	}
	if exact {
		return strings.EqualFold(subject, want)
	}
	return strings.Contains(strings.ToLower(subject), strings.ToLower(want))
}

// extOf returns the lowercase file extension of name without the dot.
func extOf(name string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
}

// isRecentNew classifies an item as new rather than updated: created inside
// the recent window, or created and modified near-simultaneously. The
// provider reports "updated" for brand-new items often enough that the
// changeType alone cannot be trusted.
func isRecentNew(created, modified, now time.Time) bool {
	if created.IsZero() {
		return false
	}
	if now.Sub(created) <= recentWindow && now.Sub(created) >= -recentWindow {
		return true
	}
	if modified.IsZero() {
		return false
	}
	diff := modified.Sub(created)
	if diff < 0 {
		diff = -diff
	}
	return diff <= createdModifiedTolerance
}
