package llm

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls the most likely JSON object or array out of raw LLM
// output, which is free text that only claims to contain JSON. It tries,
// in order: the last fenced code block, a balanced span anchored at the
// nearest "{" before the last "recommendations"/"validations" key, and
// finally the first "{" or "[" in the document. The chosen span is then
// extracted with brace/bracket-depth and string-state tracking so trailing
// prose after the JSON does not break parsing, and sanitized against a
// couple of concrete LLM output quirks before being handed to the caller.
func ExtractJSON(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", eris.New("llm: empty response")
	}

	if candidate, ok := extractFromFence(raw); ok {
		if balanced, ok := extractBalanced(candidate, 0); ok {
			return sanitize(balanced), nil
		}
	}

	if start, ok := anchorBeforeKey(raw, "recommendations"); ok {
		if balanced, ok := extractBalanced(raw, start); ok {
			return sanitize(balanced), nil
		}
	}
	if start, ok := anchorBeforeKey(raw, "validations"); ok {
		if balanced, ok := extractBalanced(raw, start); ok {
			return sanitize(balanced), nil
		}
	}

	start := firstBraceOrBracket(raw)
	if start < 0 {
		return "", eris.New("llm: no JSON object or array found in response")
	}
	balanced, _ := extractBalanced(raw, start)
	if balanced == "" {
		return "", eris.New("llm: unterminated JSON in response")
	}
	return sanitize(balanced), nil
}

func extractFromFence(raw string) (string, bool) {
	matches := fenceRe.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return "", false
	}
	last := matches[len(matches)-1]
	body := strings.TrimSpace(last[1])
	if body == "" {
		return "", false
	}
	return body, true
}

// anchorBeforeKey finds the latest occurrence of a quoted key and walks
// back to the nearest "{" before it.
func anchorBeforeKey(raw, key string) (int, bool) {
	needle := `"` + key + `"`
	idx := strings.LastIndex(raw, needle)
	if idx < 0 {
		return 0, false
	}
	brace := strings.LastIndex(raw[:idx], "{")
	if brace < 0 {
		return 0, false
	}
	return brace, true
}

func firstBraceOrBracket(raw string) int {
	for i, r := range raw {
		if r == '{' || r == '[' {
			return i
		}
	}
	return -1
}

// extractBalanced scans raw starting at start and returns the substring up
// to (and including) the character that closes the opening brace/bracket,
// tracking string state and backslash escapes so braces inside string
// literals are ignored. If the input is unterminated, it returns the
// longest balanced prefix collected so far.
func extractBalanced(raw string, start int) (string, bool) {
	if start < 0 || start >= len(raw) {
		return "", false
	}

	open := raw[start]
	var close byte
	switch open {
	case '{':
		close = '}'
	case '[':
		close = ']'
	default:
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}

	// Unterminated: return whatever was collected, still useful to callers
	// willing to attempt a best-effort parse.
	return raw[start:], false
}

var (
	// Each pattern's first alternative matches a whole string literal, so
	// digits and commas inside strings are copied through unchanged.
	strayQuotedTokenAfterNumber = regexp.MustCompile(`("(?:[^"\\]|\\.)*")|(-?\d+(?:\.\d+)?)\s*"[^"]*"`)
	trailingCommaBeforeCloser   = regexp.MustCompile(`("(?:[^"\\]|\\.)*")|,\s*([}\]])`)
)

// sanitize repairs a couple of concrete, observed LLM JSON quirks: a stray
// quoted token immediately following a number (e.g. 1.0"High" -> 1.0), and
// trailing commas before a closing brace or bracket. On already-clean JSON
// this is the identity transform.
func sanitize(s string) string {
	s = strayQuotedTokenAfterNumber.ReplaceAllString(s, "${1}${2}")
	s = trailingCommaBeforeCloser.ReplaceAllString(s, "${1}${2}")
	return s
}

// GeneratedItem is one recommendation entry parsed from a generate response.
type GeneratedItem struct {
	Name             string
	Description      string
	Address          string
	Latitude         *float64
	Longitude        *float64
	ConfidenceScore  float64
	Highlights       []string
	WhyRecommended   string
}

type generateEnvelope struct {
	Recommendations []rawGeneratedItem `json:"recommendations"`
}

type rawGeneratedItem struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Address         string          `json:"address"`
	Latitude        json.RawMessage `json:"latitude"`
	Longitude       json.RawMessage `json:"longitude"`
	ConfidenceScore json.RawMessage `json:"confidenceScore"`
	Highlights      []string        `json:"highlights"`
	WhyRecommended  string          `json:"whyRecommended"`
}

// ParseGenerateResponse extracts and defensively parses a generate-stage
// response. Malformed individual entries are skipped rather than failing
// the whole response; a missing confidenceScore defaults to 0.7.
func ParseGenerateResponse(raw string) ([]GeneratedItem, error) {
	extracted, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var env generateEnvelope
	if err := json.Unmarshal([]byte(extracted), &env); err != nil {
		return nil, eris.Wrap(err, "llm: unmarshal generate response")
	}

	items := make([]GeneratedItem, 0, len(env.Recommendations))
	for _, r := range env.Recommendations {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		item := GeneratedItem{
			Name:            r.Name,
			Description:     r.Description,
			Address:         r.Address,
			WhyRecommended:  r.WhyRecommended,
			ConfidenceScore: clamp01(numberOrDefault(r.ConfidenceScore, 0.7)),
		}
		if lat, ok := numberPtr(r.Latitude); ok {
			item.Latitude = lat
		}
		if lng, ok := numberPtr(r.Longitude); ok {
			item.Longitude = lng
		}
		if len(r.Highlights) > 5 {
			item.Highlights = r.Highlights[:5]
		} else {
			item.Highlights = r.Highlights
		}
		items = append(items, item)
	}
	return items, nil
}

// ParsedValidation is one candidate's judgment from a validate-stage
// response, keyed by the recommendation name the validator was shown.
type ParsedValidation struct {
	Name                string
	ValidationScore     float64
	FlaggedAsInaccurate bool
	FlaggedAsOutOfRange bool
	Comment             string
}

type validateEnvelope struct {
	Validations []rawValidation `json:"validations"`
}

type rawValidation struct {
	Name                string          `json:"name"`
	ValidationScore     json.RawMessage `json:"validationScore"`
	FlaggedAsInaccurate bool            `json:"flaggedAsInaccurate"`
	FlaggedAsOutOfRange bool            `json:"flaggedAsOutOfRange"`
	Comment             string          `json:"comment"`
}

// ParseValidateResponse extracts and defensively parses a validate-stage
// response.
func ParseValidateResponse(raw string) ([]ParsedValidation, error) {
	extracted, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var env validateEnvelope
	if err := json.Unmarshal([]byte(extracted), &env); err != nil {
		return nil, eris.Wrap(err, "llm: unmarshal validate response")
	}

	out := make([]ParsedValidation, 0, len(env.Validations))
	for _, v := range env.Validations {
		if strings.TrimSpace(v.Name) == "" {
			continue
		}
		out = append(out, ParsedValidation{
			Name:                v.Name,
			ValidationScore:     clamp01(numberOrDefault(v.ValidationScore, 0.5)),
			FlaggedAsInaccurate: v.FlaggedAsInaccurate,
			FlaggedAsOutOfRange: v.FlaggedAsOutOfRange,
			Comment:             v.Comment,
		})
	}
	return out, nil
}

// ParsedSynthesis is one polished entry from a synthesize-stage response.
type ParsedSynthesis struct {
	Name           string
	Description    string
	Highlights     []string
	WhyRecommended string
}

type synthesizeEnvelope struct {
	Recommendations []rawSynthesis `json:"recommendations"`
}

type rawSynthesis struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Highlights     []string `json:"highlights"`
	WhyRecommended string   `json:"whyRecommended"`
}

// ParseSynthesizeResponse extracts and defensively parses a synthesize-stage
// response.
func ParseSynthesizeResponse(raw string) ([]ParsedSynthesis, error) {
	extracted, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var env synthesizeEnvelope
	if err := json.Unmarshal([]byte(extracted), &env); err != nil {
		return nil, eris.Wrap(err, "llm: unmarshal synthesize response")
	}

	out := make([]ParsedSynthesis, 0, len(env.Recommendations))
	for _, r := range env.Recommendations {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		out = append(out, ParsedSynthesis{
			Name:           r.Name,
			Description:    r.Description,
			Highlights:     r.Highlights,
			WhyRecommended: r.WhyRecommended,
		})
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// numberOrDefault coerces a raw JSON number-or-string field to float64,
// falling back to def when absent or unparseable.
func numberOrDefault(raw json.RawMessage, def float64) float64 {
	if len(raw) == 0 {
		return def
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return parsed
		}
	}
	return def
}

func numberPtr(raw json.RawMessage) (*float64, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &parsed, true
		}
	}
	return nil, false
}
