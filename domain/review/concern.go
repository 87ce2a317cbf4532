package review

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// DefaultConcerns is the built-in concern taxonomy offered to the classifier.
var DefaultConcerns = []string{
	"upgrade-safety",
	"maintainability",
	"ease-of-use",
	"performance-tradeoff",
	"correctness",
	"extensibility",
	"api-compatibility",
	"validation-strictness",
	"config-safety",
}

// NormalizeConcerns converts a stored concerns value into a list of labels.
// It accepts a list, JSON array text, or a single plain-text label.
func NormalizeConcerns(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return []string{}
	case []string:
		return copyStrings(v)
	case []any:
		out := make([]string, len(v))
		for i, x := range v {
			out[i] = fmt.Sprint(x)
		}
		return out
	case []byte:
		return normalizeConcernText(string(v))
	case string:
		return normalizeConcernText(v)
	}
	return []string{fmt.Sprint(raw)}
}

func normalizeConcernText(s string) []string {
	t := strings.TrimSpace(s)
	if t == "" {
		return []string{}
	}
	if strings.HasPrefix(t, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(t), &arr); err == nil {
			return NormalizeConcerns(arr)
		}
	}
	return []string{t}
}

var (
	fencedBlock = regexp.MustCompile("(?s)```.*?```")
	quotedLine  = regexp.MustCompile(`(?m)^>.*$`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// ReduceComment strips fenced code blocks and quoted lines from a review
// comment and collapses whitespace, keeping the natural-language signal.
func ReduceComment(comment string) string {
	c := fencedBlock.ReplaceAllString(comment, "")
	c = quotedLine.ReplaceAllString(c, "")
	c = whitespace.ReplaceAllString(c, " ")
	return strings.TrimSpace(c)
}
