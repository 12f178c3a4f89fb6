// Package consensus fuses independent LLM provider outputs into a single
// ranked, deduplicated recommendation list: name normalization, weighted
// scoring, and the cross-validation fan-out that feeds it.
package consensus

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lowercaser = cases.Lower(language.English)

// Normalize applies the pipeline's name-comparison rule: locale-aware
// lowercasing, apostrophe removal, hyphen-to-space, and trimming. Used to
// group recommendations from independent providers ("Joe's Diner" and
// "joes diner" normalize identically) and to match candidates against
// real-world places during enrichment.
func Normalize(name string) string {
	s := lowercaser.String(name)
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// WordOverlap returns the fraction of a's words that also appear in b,
// after normalization — intersection over |words(a)|, used by the
// enrichment matcher's substring/overlap fallback.
func WordOverlap(a, b string) float64 {
	aWords := strings.Fields(Normalize(a))
	if len(aWords) == 0 {
		return 0
	}
	bSet := make(map[string]struct{}, len(aWords))
	for _, w := range strings.Fields(Normalize(b)) {
		bSet[w] = struct{}{}
	}
	matched := 0
	for _, w := range aWords {
		if _, ok := bSet[w]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(aWords))
}
