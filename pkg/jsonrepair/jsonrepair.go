// Package jsonrepair extracts a JSON object from free-form model output.
//
// Model responses frequently wrap JSON in markdown fences, leave trailing
// commas behind, or forget to quote object keys. Decode applies a fixed
// sequence of textual repairs before parsing and falls back to a relaxed
// capture when the strict pass fails.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// previewLimit bounds the raw/cleaned text carried by DecodeError.
const previewLimit = 500

// ErrBoundariesNotFound is returned when no balanced {...} span exists.
var ErrBoundariesNotFound = errors.New("boundaries not found")

var (
	fenceRe         = regexp.MustCompile("(?i)`{3,}(?:json)?[ \t]*")
	trailingCommaRe = regexp.MustCompile(`,(\s*[\]}])`)
	repeatedCommaRe = regexp.MustCompile(`,(\s*,)+`)
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	greedyObjectRe  = regexp.MustCompile(`\{[\s\S]*\}`)
)

// DecodeError describes a failed decode. Raw and Cleaned hold at most
// 500 characters of the input before and after repair.
type DecodeError struct {
	Err     error
	Raw     string
	Cleaned string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode model JSON: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode returns the first JSON object found in text.
func Decode(text string) (map[string]any, error) {
	cleaned := StripFences(strings.TrimSpace(text))

	span, err := objectSpan(cleaned)
	if err != nil {
		return nil, &DecodeError{Err: err, Raw: preview(text), Cleaned: preview(cleaned)}
	}
	// Key quoting can corrupt string values that contain ", word:", so it
	// is only applied when the comma-repaired text does not already parse.
	repaired := repairCommas(span)
	var out map[string]any
	if err := json.Unmarshal([]byte(repaired), &out); err == nil {
		return out, nil
	}
	repaired = quoteKeys(repaired)
	out = nil
	strictErr := json.Unmarshal([]byte(repaired), &out)
	if strictErr == nil {
		return out, nil
	}

	if m := greedyObjectRe.FindString(text); m != "" {
		relaxed := trailingCommaRe.ReplaceAllString(m, "$1")
		var fallback map[string]any
		if err := json.Unmarshal([]byte(relaxed), &fallback); err == nil {
			return fallback, nil
		}
	}

	return nil, &DecodeError{Err: strictErr, Raw: preview(text), Cleaned: preview(repaired)}
}

// DecodeInto decodes text and re-marshals the result into v.
func DecodeInto(text string, v any) error {
	m, err := Decode(text)
	if err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("re-encode object: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &DecodeError{Err: err, Raw: preview(text), Cleaned: preview(string(data))}
	}
	return nil
}

// StripFences removes markdown code-fence markers of any length >= 3,
// with or without a json language tag in any casing.
func StripFences(text string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
}

// Repair applies the textual fixes in order: trailing commas, repeated
// commas, trailing commas exposed by the collapse, then bare keys.
func Repair(text string) string {
	return quoteKeys(repairCommas(text))
}

func repairCommas(text string) string {
	out := trailingCommaRe.ReplaceAllString(text, "$1")
	out = repeatedCommaRe.ReplaceAllString(out, ",")
	return trailingCommaRe.ReplaceAllString(out, "$1")
}

func quoteKeys(text string) string {
	return bareKeyRe.ReplaceAllString(text, `$1"$2":`)
}

// objectSpan returns the text between the first '{' and its matching '}'.
// Braces inside string literals are counted like any other brace.
func objectSpan(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrBoundariesNotFound
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", ErrBoundariesNotFound
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLimit {
		return s
	}
	return string(r[:previewLimit])
}
