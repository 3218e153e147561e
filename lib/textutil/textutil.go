package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// CollapseSpace trims s and replaces every run of whitespace with a single space.
func CollapseSpace(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// NormalizeName lowercases name and removes all whitespace.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// NormalizeLabel turns a stat row label such as "Shots on Target" into "shots_on_target".
func NormalizeLabel(label string) string {
	label = strings.ToLower(CollapseSpace(label))
	return strings.ReplaceAll(label, " ", "_")
}

// Similarity is the Jaro-Winkler similarity of two names after normalization, from 0 to 1.
func Similarity(a, b string) float64 {
	return matchr.JaroWinkler(NormalizeName(a), NormalizeName(b), false)
}
