package metadata

import "strings"

// NormalizeAuthor turns "Last, First" into "First Last". Every comma
// separated segment is reversed, so "Doe, Jane, III" becomes "III Jane Doe".
// Names without a comma are returned unchanged.
func NormalizeAuthor(name string) string {
	if !strings.Contains(name, ",") {
		return name
	}

	segments := strings.Split(name, ",")
	parts := make([]string, 0, len(segments))
	for i := len(segments) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(segments[i]); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// NormalizeAuthors applies NormalizeAuthor to each name and drops blanks
func NormalizeAuthors(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(NormalizeAuthor(n)); n != "" {
			out = append(out, n)
		}
	}
	return out
}
