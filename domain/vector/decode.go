// Package vector normalizes stored embedding values into canonical float
// vectors and reconciles dimensional drift across a loaded corpus.
package vector

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Representation classifies how a stored embedding value was encoded.
type Representation int

// Representation values. Every input maps to exactly one.
const (
	ReprAbsent Representation = iota
	ReprList
	ReprJSONText
	ReprDelimitedText
	ReprIterable
	ReprUnknown
)

// String returns the representation name.
func (r Representation) String() string {
	switch r {
	case ReprAbsent:
		return "absent"
	case ReprList:
		return "list"
	case ReprJSONText:
		return "json_text"
	case ReprDelimitedText:
		return "delimited_text"
	case ReprIterable:
		return "iterable"
	default:
		return "unknown"
	}
}

// Decoded is the outcome of decoding one stored embedding: either a canonical
// vector or an unparseable classification with a reason.
type Decoded struct {
	repr   Representation
	values []float64
	reason string
}

// Canonical returns a successful decode result.
func Canonical(repr Representation, values []float64) Decoded {
	return Decoded{repr: repr, values: values}
}

// Unparseable returns a failed decode result.
func Unparseable(repr Representation, reason string) Decoded {
	return Decoded{repr: repr, reason: reason}
}

// OK reports whether decoding produced a vector.
func (d Decoded) OK() bool { return d.reason == "" && d.values != nil }

// Values returns the canonical vector, or nil when unparseable.
func (d Decoded) Values() []float64 { return d.values }

// Representation returns the branch that handled the input.
func (d Decoded) Representation() Representation { return d.repr }

// Reason explains why the value was unparseable.
func (d Decoded) Reason() string { return d.reason }

// Dimension returns the vector length.
func (d Decoded) Dimension() int { return len(d.values) }

// Floats is implemented by vector column types that already hold floats.
type Floats interface {
	Floats() []float64
}

// Classify inspects a stored value and names the single branch that will
// decode it.
func Classify(v any) Representation {
	switch val := v.(type) {
	case nil:
		return ReprAbsent
	case []float64, []float32, []int, []int64, []any, [][]float64, [][]float32, Floats:
		return ReprList
	case string:
		return classifyText(val)
	case []byte:
		return classifyText(string(val))
	}

	kind := reflect.ValueOf(v).Kind()
	if kind == reflect.Slice || kind == reflect.Array {
		return ReprIterable
	}
	return ReprUnknown
}

func classifyText(s string) Representation {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]") {
		return ReprJSONText
	}
	return ReprDelimitedText
}

// Decode converts a stored embedding value of unknown representation into a
// flat float vector. It never panics or returns an error; failures are
// reported through Decoded.
func Decode(v any) Decoded {
	repr := Classify(v)

	var (
		values []float64
		err    error
	)
	switch repr {
	case ReprAbsent:
		return Unparseable(repr, "embedding is absent")
	case ReprList:
		values, err = decodeList(v)
	case ReprJSONText:
		values, err = decodeJSONText(text(v))
	case ReprDelimitedText:
		values, err = decodeDelimitedText(text(v))
	case ReprIterable:
		values, err = decodeIterable(reflect.ValueOf(v))
	default:
		return Unparseable(repr, fmt.Sprintf("unsupported embedding type %T", v))
	}

	if err != nil {
		return Unparseable(repr, err.Error())
	}
	if len(values) == 0 {
		return Unparseable(repr, "embedding is empty")
	}
	return Canonical(repr, values)
}

func text(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v.(string)
}

func decodeList(v any) ([]float64, error) {
	switch val := v.(type) {
	case []float64:
		out := make([]float64, len(val))
		copy(out, val)
		return out, nil
	case []float32:
		out := make([]float64, len(val))
		for i, f := range val {
			out[i] = float64(f)
		}
		return out, nil
	case []int:
		out := make([]float64, len(val))
		for i, n := range val {
			out[i] = float64(n)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(val))
		for i, n := range val {
			out[i] = float64(n)
		}
		return out, nil
	case [][]float64:
		return flattenFloat64(val), nil
	case [][]float32:
		var out []float64
		for _, sub := range val {
			for _, f := range sub {
				out = append(out, float64(f))
			}
		}
		return out, nil
	case Floats:
		return val.Floats(), nil
	case []any:
		return coerceElements(val)
	}
	return nil, fmt.Errorf("unsupported list type %T", v)
}

func decodeJSONText(s string) ([]float64, error) {
	var arr []any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &arr); err != nil {
		return nil, fmt.Errorf("decode json text: %w", err)
	}
	return coerceElements(arr)
}

func decodeDelimitedText(s string) ([]float64, error) {
	trimmed := strings.Trim(strings.TrimSpace(s), "[]{}()")
	var out []float64
	for i, tok := range strings.Split(trimmed, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("parse token %d: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func decodeIterable(rv reflect.Value) ([]float64, error) {
	elems := make([]any, rv.Len())
	for i := range elems {
		elems[i] = rv.Index(i).Interface()
	}
	return coerceElements(elems)
}

// coerceElements converts each element to a float. When the first element is
// itself a list, the input is flattened by exactly one level.
func coerceElements(elems []any) ([]float64, error) {
	if len(elems) > 0 && isList(elems[0]) {
		var out []float64
		for i, sub := range elems {
			inner, ok := asSlice(sub)
			if !ok {
				return nil, fmt.Errorf("element %d: mixed nesting", i)
			}
			for j, e := range inner {
				f, err := toFloat(e)
				if err != nil {
					return nil, fmt.Errorf("element %d.%d: %w", i, j, err)
				}
				out = append(out, f)
			}
		}
		return out, nil
	}

	out := make([]float64, len(elems))
	for i, e := range elems {
		f, err := toFloat(e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	kind := reflect.ValueOf(v).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}

func asSlice(v any) ([]any, bool) {
	if !isList(v) {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	return 0, fmt.Errorf("cannot coerce %T to float", v)
}

func flattenFloat64(in [][]float64) []float64 {
	var out []float64
	for _, sub := range in {
		out = append(out, sub...)
	}
	return out
}
