// Package guideline models distilled architectural guidelines and removes
// duplicates from an accumulated corpus.
package guideline

import (
	"encoding/json"
	"fmt"
)

// Guideline is one distilled rule. The JSON form is the corpus file format
// read by downstream review tooling.
type Guideline struct {
	Concern   string   `json:"concern"`
	Guideline string   `json:"guideline"`
	Rationale string   `json:"rationale"`
	Examples  Examples `json:"examples"`
	ClusterID string   `json:"cluster_id,omitempty"`
}

// Examples accepts either a single string or a list of strings when decoded
// and always encodes as a list.
type Examples []string

// UnmarshalJSON implements json.Unmarshaler.
func (e *Examples) UnmarshalJSON(data []byte) error {
	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		out := make(Examples, 0, len(list))
		for _, v := range list {
			if s, ok := v.(string); ok {
				out = append(out, s)
				continue
			}
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			out = append(out, string(b))
		}
		*e = out
		return nil
	}

	var single any
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("decode examples: %w", err)
	}
	switch v := single.(type) {
	case nil:
		*e = Examples{}
	case string:
		*e = Examples{v}
	default:
		*e = Examples{fmt.Sprint(v)}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (e Examples) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(e))
}

// FromValue converts a generic decoded JSON value into a Guideline. Values
// that are not objects are rejected.
func FromValue(v any) (Guideline, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Guideline{}, fmt.Errorf("guideline is %T, not an object", v)
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return Guideline{}, fmt.Errorf("re-encode guideline: %w", err)
	}
	var g Guideline
	if err := json.Unmarshal(b, &g); err != nil {
		return Guideline{}, fmt.Errorf("decode guideline: %w", err)
	}
	return g, nil
}

// Corpus reads and writes a flat collection of guidelines.
type Corpus interface {
	Read(path string) ([]Guideline, error)
	Write(path string, guidelines []Guideline) error
}
