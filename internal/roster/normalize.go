package roster

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName folds a name for search: lowercase, no diacritics,
// dashes and underscores as spaces, runs of whitespace collapsed.
func NormalizeName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// matchesQuery reports whether every word of query occurs in the student's
// normalised name or id.
func matchesQuery(studentID, name, query string) bool {
	q := NormalizeName(query)
	if q == "" {
		return true
	}
	haystack := NormalizeName(name) + " " + NormalizeName(studentID)
	for word := range strings.FieldsSeq(q) {
		if !strings.Contains(haystack, word) {
			return false
		}
	}
	return true
}
