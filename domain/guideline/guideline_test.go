package guideline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExamples_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Examples
	}{
		{"list", `["a", "b"]`, Examples{"a", "b"}},
		{"single", `"only one"`, Examples{"only one"}},
		{"null", `null`, Examples{}},
		{"mixed list", `["a", 2]`, Examples{"a", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Examples
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExamples_MarshalNil(t *testing.T) {
	b, err := json.Marshal(Guideline{Concern: "c", Guideline: "g", Rationale: "r"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"concern":"c","guideline":"g","rationale":"r","examples":[]}`, string(b))
}

func TestFromValue(t *testing.T) {
	g, err := FromValue(map[string]any{
		"concern":   "upgrade-safety",
		"guideline": "Gate new fields.",
		"rationale": "Old clients break.",
		"examples":  "PR 12",
	})
	require.NoError(t, err)
	assert.Equal(t, "upgrade-safety", g.Concern)
	assert.Equal(t, Examples{"PR 12"}, g.Examples)

	_, err = FromValue([]any{"x"})
	assert.Error(t, err)
}
