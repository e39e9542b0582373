package utils

import "strings"

// SplitList returns the trimmed, non-empty items of a comma-separated list,
// as used by CORS_ORIGINS and the ?types= stream filter. The result is nil
// when there are no items.
func SplitList(s string) []string {
	var items []string
	for _, item := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' }) {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
