package enricher

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/helixml/archdistill/domain/review"
	"gopkg.in/yaml.v3"
)

// ErrEmptyTaxonomy indicates a concerns file that lists no concerns.
var ErrEmptyTaxonomy = errors.New("concern taxonomy is empty")

// taxonomyFile is the YAML layout of a concerns file:
//
//	concerns:
//	  - upgrade-safety
//	  - correctness
type taxonomyFile struct {
	Concerns []string `yaml:"concerns"`
}

// LoadTaxonomy reads the concern labels offered to the classifier. An empty
// path yields review.DefaultConcerns. The file may hold a top-level list or
// a mapping with a concerns key.
func LoadTaxonomy(path string) ([]string, error) {
	if path == "" {
		out := make([]string, len(review.DefaultConcerns))
		copy(out, review.DefaultConcerns)
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read concerns file: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse concerns file %s: %w", path, err)
	}

	if len(node.Content) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyTaxonomy)
	}

	var raw []string
	if node.Content[0].Kind == yaml.SequenceNode {
		if err := node.Content[0].Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode concerns list %s: %w", path, err)
		}
	} else {
		var f taxonomyFile
		if err := node.Decode(&f); err != nil {
			return nil, fmt.Errorf("decode concerns file %s: %w", path, err)
		}
		raw = f.Concerns
	}

	concerns := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		concerns = append(concerns, c)
	}
	if len(concerns) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyTaxonomy)
	}
	return concerns, nil
}
