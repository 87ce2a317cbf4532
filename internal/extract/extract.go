// Package extract pulls a single well-formed JSON value out of free-form
// generative-model text.
//
// The extractor strips markdown code fences, finds the first opening
// delimiter for the requested kind, and scans forward tracking nesting depth
// and string-literal state until the depth returns to zero. The verbatim span
// is then decoded. Malformed JSON is never repaired.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind selects the top-level JSON value to extract.
type Kind int

// Kind values.
const (
	KindObject Kind = iota
	KindArray
)

// PreviewLength is the number of characters kept for diagnostic previews.
const PreviewLength = 500

// Errors returned by the extractor.
var (
	ErrNoOpeningDelimiter = errors.New("no opening delimiter found")
	ErrUnbalanced         = errors.New("unbalanced nesting: no closing delimiter")
)

// fences are removed in order, so the language-tagged markers go first.
var fences = []string{"```json", "```JSON", "```"}

// ParseError reports a balanced span that failed to decode as JSON.
type ParseError struct {
	Span string
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("decode extracted json: %v (span: %s)", e.Err, Preview(e.Span))
}

// Unwrap returns the underlying decode error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// String returns the kind name.
func (k Kind) String() string {
	if k == KindArray {
		return "array"
	}
	return "object"
}

func (k Kind) delimiters() (byte, byte) {
	if k == KindArray {
		return '[', ']'
	}
	return '{', '}'
}

// Clean strips code fence markers and surrounding whitespace.
func Clean(text string) string {
	t := strings.TrimSpace(text)
	for _, fence := range fences {
		t = strings.ReplaceAll(t, fence, "")
	}
	return strings.TrimSpace(t)
}

// Span returns the verbatim substring holding the first top-level value of
// the given kind, delimiters included.
func Span(text string, kind Kind) (string, error) {
	cleaned := Clean(text)
	open, closing := kind.delimiters()

	start := strings.IndexByte(cleaned, open)
	if start == -1 {
		return "", fmt.Errorf("%w: expected %q for %s", ErrNoOpeningDelimiter, open, kind)
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(cleaned); i++ {
		c := cleaned[i]

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
		case closing:
			depth--
			if depth == 0 {
				return cleaned[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("%w: expected %q for %s", ErrUnbalanced, closing, kind)
}

// Into extracts the first value of the given kind and decodes it into T.
func Into[T any](text string, kind Kind) (T, error) {
	var out T
	span, err := Span(text, kind)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(span), &out); err != nil {
		return out, &ParseError{Span: span, Err: err}
	}
	return out, nil
}

// Value extracts the first value of the given kind as a generic JSON value.
func Value(text string, kind Kind) (any, error) {
	return Into[any](text, kind)
}

// Object extracts the first top-level JSON object.
func Object(text string) (map[string]any, error) {
	return Into[map[string]any](text, KindObject)
}

// Array extracts the first top-level JSON array.
func Array(text string) ([]any, error) {
	return Into[[]any](text, KindArray)
}

// Preview truncates text to PreviewLength characters for logging.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLength {
		return text
	}
	return string(runes[:PreviewLength])
}
