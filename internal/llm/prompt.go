package llm

import (
	"fmt"
	"strings"

	"github.com/guberm/PlacesRecommendation/internal/model"
)

// BuildGeneratePrompt builds the stage-3 prompt requesting 12-15 candidate
// recommendations as a JSON-only response.
func BuildGeneratePrompt(location string, categories []model.Category, radiusMeters int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a knowledgeable local guide. Recommend real, specific places near %s", location)
	if len(categories) == 1 && categories[0] != model.CategoryAll {
		fmt.Fprintf(&b, " that fit the category %q", string(categories[0]))
	} else if len(categories) > 1 {
		names := make([]string, len(categories))
		for i, c := range categories {
			names[i] = string(c)
		}
		fmt.Fprintf(&b, " across these categories: %s", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, ", within roughly %d meters.\n\n", radiusMeters)
	b.WriteString("Respond with ONLY a JSON object, no prose before or after, in exactly this shape:\n")
	b.WriteString(`{"recommendations":[{"name":"...","description":"...","address":"...",` +
		`"latitude":0.0,"longitude":0.0,"confidenceScore":0.0,"highlights":["..."],"whyRecommended":"..."}]}`)
	b.WriteString("\n\nProvide 12 to 15 recommendations. confidenceScore must be between 0 and 1. ")
	b.WriteString("highlights must have at most 5 short strings. Only recommend places you believe genuinely exist.")
	return b.String()
}

// BuildValidatePrompt builds the stage-5 cross-validation prompt asking one
// provider to score another provider's candidate list.
func BuildValidatePrompt(location string, candidates []model.Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are fact-checking place recommendations near %s. ", location)
	b.WriteString("For each of the following candidates, judge whether it plausibly exists at the ")
	b.WriteString("given location and whether the description is accurate.\n\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. name=%q address=%q lat=%v lng=%v description=%q\n",
			i+1, c.Name, c.Address, latOrNil(c.Latitude), lngOrNil(c.Longitude), c.Description)
	}
	b.WriteString("\nRespond with ONLY a JSON object, no prose before or after, in exactly this shape:\n")
	b.WriteString(`{"validations":[{"name":"...","validationScore":0.0,"flaggedAsInaccurate":false,` +
		`"flaggedAsOutOfRange":false,"comment":"..."}]}`)
	b.WriteString("\n\nvalidationScore must be between 0 and 1. Include one entry per candidate, matching name exactly.")
	return b.String()
}

// BuildSynthesizePrompt builds the stage-7 polish prompt. The synthesizer
// must preserve order, count, and identity of the ranked list; it may only
// rewrite description/highlights/whyRecommended.
func BuildSynthesizePrompt(ranked []model.Recommendation) string {
	var b strings.Builder
	b.WriteString("Polish the following consensus place recommendations into clear, engaging copy. ")
	b.WriteString("Do not add, remove, or reorder entries; only rewrite description, highlights, and whyRecommended.\n\n")
	for i, c := range ranked {
		fmt.Fprintf(&b, "%d. name=%q description=%q highlights=%v whyRecommended=%q\n",
			i+1, c.Name, c.Description, c.Highlights, c.WhyRecommended)
	}
	b.WriteString("\nRespond with ONLY a JSON object, no prose before or after, in exactly this shape:\n")
	b.WriteString(`{"recommendations":[{"name":"...","description":"...","highlights":["..."],"whyRecommended":"..."}]}`)
	b.WriteString("\n\nInclude exactly one entry per input, in the same order, matching name exactly.")
	return b.String()
}

func latOrNil(v *float64) any {
	if v == nil {
		return "unknown"
	}
	return *v
}

func lngOrNil(v *float64) any {
	if v == nil {
		return "unknown"
	}
	return *v
}
