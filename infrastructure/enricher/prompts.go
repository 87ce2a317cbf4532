package enricher

import (
	"encoding/json"
	"fmt"
	"strings"
)

const classifyPrompt = `
You are an experienced Kubernetes/OpenShift architect.

Given the following PR review comment, identify which architectural concerns apply.
Possible concerns (pick any that fit, or add your own if needed):

%s
Return ONLY a JSON array of strings, e.g.:

["correctness", "upgrade-safety"]

Comment:
%s
`

const summaryPrompt = `
You are an expert Kubernetes/OpenShift architectural reviewer.

Summarize the architectural significance of this PR review comment, focusing on:
- correctness
- upgrade-safety
- maintainability
- ease-of-use
- performance tradeoffs
- extensibility

Write 3-6 sentences, plain text, no bullet points, no JSON.

---
Diff context:
%s

---
Comment:
%s

---
Concerns (heuristic labels):
%s
`

func buildClassifyPrompt(concerns []string, comment string) string {
	var list strings.Builder
	for _, c := range concerns {
		list.WriteString("- ")
		list.WriteString(c)
		list.WriteString("\n")
	}
	return fmt.Sprintf(classifyPrompt, list.String(), comment)
}

func buildSummaryPrompt(diff, comment string, concerns []string) string {
	labels, err := json.Marshal(concerns)
	if err != nil || concerns == nil {
		labels = []byte("[]")
	}
	return fmt.Sprintf(summaryPrompt, diff, comment, labels)
}
