package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/archdistill/domain/guideline"
	"github.com/helixml/archdistill/infrastructure/corpus"
)

func writeCorpus(t *testing.T, gs []guideline.Guideline) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guidelines.json")
	require.NoError(t, corpus.Write(path, gs))
	return path
}

var duplicated = []guideline.Guideline{
	{Concern: "c", Guideline: "Always validate API fields", Rationale: "short"},
	{Concern: "c", Guideline: "always validate api fields", Rationale: "a much longer rationale"},
	{Concern: "c", Guideline: "Prefer defaulting in the API server", Rationale: "r"},
}

func TestDedup_Run(t *testing.T) {
	input := writeCorpus(t, duplicated)
	output := filepath.Join(filepath.Dir(input), "guidelines_deduped.json")
	svc := NewDedup(corpus.NewFile(), guideline.NewDeduplicator(), nil)

	report, err := svc.Run(input, output, false)
	require.NoError(t, err)

	assert.True(t, report.Written)
	assert.Equal(t, guideline.Stats{Original: 3, Removed: 1}, report.Stats)
	require.Len(t, report.Removals, 1)
	assert.Equal(t, 0, report.Removals[0].Index)
	assert.True(t, report.Removals[0].Exact)

	gs, err := corpus.Read(output)
	require.NoError(t, err)
	require.Len(t, gs, 2)
	assert.Equal(t, "a much longer rationale", gs[0].Rationale)
}

func TestDedup_Run_DryRunWritesNothing(t *testing.T) {
	input := writeCorpus(t, duplicated)
	before, err := os.ReadFile(input)
	require.NoError(t, err)
	output := filepath.Join(filepath.Dir(input), "guidelines_deduped.json")

	report, err := NewDedup(corpus.NewFile(), guideline.NewDeduplicator(), nil).Run(input, output, true)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.False(t, report.Written)
	assert.Equal(t, 1, report.Stats.Removed)
	assert.Len(t, report.Original, 3)
	assert.NoFileExists(t, output)

	after, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDedup_Run_NoDuplicates(t *testing.T) {
	input := writeCorpus(t, duplicated[2:])
	svc := NewDedup(corpus.NewFile(), guideline.NewDeduplicator(), nil)

	report, err := svc.Run(input, input, false)
	require.NoError(t, err)
	assert.False(t, report.Written)

	output := filepath.Join(filepath.Dir(input), "out.json")
	report, err = svc.Run(input, output, false)
	require.NoError(t, err)
	assert.True(t, report.Written)
	assert.FileExists(t, output)
}

func TestDedup_Run_MissingInput(t *testing.T) {
	svc := NewDedup(corpus.NewFile(), guideline.NewDeduplicator(), nil)

	_, err := svc.Run(filepath.Join(t.TempDir(), "missing.json"), "out.json", false)
	assert.ErrorIs(t, err, corpus.ErrNotFound)
}
