package models

import "strings"

// NormalizeTags converts a free-text tag string into a normalized tag list:
// split on comma, whitespace and '#', trim, drop empties, prefix each tag
// with '#' if missing. "dog, cat #fun" -> ["#dog", "#cat", "#fun"].
func NormalizeTags(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '#'
	})
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "#") {
			p = "#" + p
		}
		tags = append(tags, p)
	}
	return tags
}
