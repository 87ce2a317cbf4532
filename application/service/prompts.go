package service

import (
	"encoding/json"
	"fmt"
)

const clusterPrompt = `You are a senior Kubernetes / OpenShift architect.

You are given a cluster of PR review comments that are semantically similar.
From these, derive *cluster-level* architectural guidelines.

Requirements:
- Focus ONLY on themes present in this cluster (do NOT invent unrelated topics).
- Merge duplicate ideas into a single guideline where possible.
- Be concrete and actionable (think of this as an internal architecture handbook).
- Emphasize upgrade-safety, maintainability, ease-of-use, performance tradeoffs,
  correctness, extensibility, and API/validation contracts as applicable.

Output format:
Return ONLY a JSON object with two fields. No markdown, no prose, no explanation.
{
  "cluster_name": "short-kebab-case-name describing the main theme (e.g., 'api-validation', 'cel-rules', 'upgrade-paths')",
  "guidelines": [
    {
      "concern": "short label for the primary concern",
      "guideline": "clear directive phrased as a rule",
      "rationale": "2-4 sentences explaining why this matters",
      "examples": ["concrete examples or patterns from the input situations"]
    }
  ]
}

Here is the input cluster data as JSON:

%s`

const chunkPrompt = `You are a senior cloud-native architect.

Using the following PR-derived architectural signals, generate ONLY a JSON array.
No markdown. No explanation. Only valid JSON.

Each element MUST be an object with fields:
  concern
  guideline
  rationale
  examples

HARD LENGTH LIMITS (do not exceed):
- guideline: max %d words
- rationale: max %d words
- examples: max %d words
If needed, shorten aggressively. Do NOT produce long paragraphs.
Output must always be a SMALL JSON array.

Input data:
%s`

// Word limits stated in the chunked prompt.
const (
	GuidelineWordLimit = 125
	RationaleWordLimit = 240
	ExamplesWordLimit  = 430
)

type clusterEntry struct {
	ID       int64    `json:"id"`
	Concerns []string `json:"concerns"`
	Summary  string   `json:"summary"`
	Evidence string   `json:"evidence"`
}

type chunkEntry struct {
	Concerns []string `json:"concerns"`
	Summary  string   `json:"summary"`
	Evidence string   `json:"evidence"`
}

func buildClusterPrompt(items []SynthesisItem) (string, error) {
	entries := make([]clusterEntry, len(items))
	for i, it := range items {
		entries[i] = clusterEntry{ID: it.ID, Concerns: nonNil(it.Concerns), Summary: it.Summary, Evidence: it.Evidence}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode cluster items: %w", err)
	}
	return fmt.Sprintf(clusterPrompt, data), nil
}

func buildChunkPrompt(items []SynthesisItem) (string, error) {
	entries := make([]chunkEntry, len(items))
	for i, it := range items {
		entries[i] = chunkEntry{Concerns: nonNil(it.Concerns), Summary: it.Summary, Evidence: it.Evidence}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode chunk items: %w", err)
	}
	return fmt.Sprintf(chunkPrompt, GuidelineWordLimit, RationaleWordLimit, ExamplesWordLimit, data), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
