package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	numericLikeRe   = regexp.MustCompile(`^[\d.,]+$`)
)

// decodeLoose parses a model response that is supposed to be JSON but may
// be wrapped in markdown fences, carry trailing commas, be surrounded by
// prose, or quote its numbers in Spanish format. Repairs are applied in
// order of increasing aggressiveness; if nothing yields valid JSON the
// error is returned and the caller falls back.
func decodeLoose(raw string, out any) error {
	s := stripFences(strings.TrimSpace(raw))
	s = trailingCommaRe.ReplaceAllString(s, "$1")

	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		span, ok := jsonSpan(s)
		if !ok {
			return fmt.Errorf("no JSON object or array found in response")
		}
		if err := json.Unmarshal([]byte(span), &parsed); err != nil {
			return fmt.Errorf("parsing extracted JSON: %w", err)
		}
	}

	repaired, err := json.Marshal(coerceNumbers(parsed))
	if err != nil {
		return fmt.Errorf("reserializing repaired JSON: %w", err)
	}
	return json.Unmarshal(repaired, out)
}

func stripFences(s string) string {
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		return strings.TrimSpace(s)
	}
	if strings.HasPrefix(s, "`") {
		return strings.TrimSpace(strings.Trim(s, "`"))
	}
	return s
}

// jsonSpan cuts the outermost {...} or [...] span out of surrounding
// prose. When both exist the earlier-starting one wins.
func jsonSpan(s string) (string, bool) {
	start, end := -1, -1
	if fb, lb := strings.Index(s, "{"), strings.LastIndex(s, "}"); fb != -1 && lb > fb {
		start, end = fb, lb
	}
	if fk, lk := strings.Index(s, "["), strings.LastIndex(s, "]"); fk != -1 && lk > fk {
		if start == -1 || fk < start {
			start, end = fk, lk
		}
	}
	if start == -1 {
		return "", false
	}
	return s[start : end+1], true
}

// coerceNumbers walks the decoded value and converts number-like strings
// ("1.234,56", "45") to float64 using Spanish separators: "." thousands,
// "," decimal. Anything else passes through untouched.
func coerceNumbers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = coerceNumbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = coerceNumbers(item)
		}
		return val
	case string:
		if !numericLikeRe.MatchString(val) {
			return val
		}
		cleaned := strings.ReplaceAll(val, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return val
		}
		return f
	default:
		return val
	}
}
