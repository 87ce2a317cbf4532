package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/archdistill/domain/cluster"
	"github.com/helixml/archdistill/domain/review"
	"github.com/helixml/archdistill/infrastructure/corpus"
	"github.com/helixml/archdistill/infrastructure/persistence"
	"github.com/helixml/archdistill/internal/database"
	"github.com/helixml/archdistill/internal/testdb"
)

type distillFixture struct {
	db     database.Database
	store  persistence.ItemStore
	output string

	mu      sync.Mutex
	prompts []string
	gen     *fakeGenerator
}

func newDistillFixture(t *testing.T) *distillFixture {
	t.Helper()
	db := testdb.New(t)
	f := &distillFixture{
		db:     db,
		store:  persistence.NewItemStore(db),
		output: filepath.Join(t.TempDir(), "guidelines_clustered.json"),
	}
	f.gen = &fakeGenerator{respond: func(p string) (string, error) {
		f.mu.Lock()
		f.prompts = append(f.prompts, p)
		f.mu.Unlock()
		if strings.Contains(p, "Return ONLY a JSON object") {
			id := firstID(p)
			return fmt.Sprintf(`{"cluster_name": "theme-%d", "guidelines": [{"concern": "c", "guideline": "g%d", "rationale": "r", "examples": []}]}`, id, id), nil
		}
		return `[{"concern": "c", "guideline": "chunk", "rationale": "r", "examples": "e"}]`, nil
	}}
	return f
}

func (f *distillFixture) insert(t *testing.T, embeddings ...[]float64) {
	t.Helper()
	items := make([]review.EnrichedItem, len(embeddings))
	for i, e := range embeddings {
		r := review.NewRawRecord("a/b", i, "x.go", fmt.Sprintf("c%d", i), "")
		items[i] = review.NewEnrichedItem(r, []string{"correctness"}, fmt.Sprintf("summary %d", i), "", e)
	}
	require.NoError(t, f.store.InsertAll(context.Background(), items))
}

func (f *distillFixture) service(opts ...DistillOption) *Distill {
	return NewDistill(f.store, NewSynthesizer(f.gen), corpus.NewFile(), opts...)
}

func TestDistill_Clustered(t *testing.T) {
	ctx := context.Background()
	f := newDistillFixture(t)
	f.insert(t,
		[]float64{0, 0, 0, 0}, []float64{0.1, 0, 0, 0},
		[]float64{10, 10, 0, 0}, []float64{10, 10.1, 0, 0},
		[]float64{0, 0, 20, 20}, []float64{0, 0, 20.1, 20},
		[]float64{1, 2, 3}, []float64{4, 5, 6},
		[]float64{7, 7, 7, 7},
	)
	require.NoError(t, f.db.Session(ctx).Exec(`UPDATE arch_items SET embedding = 'not,a,vector' WHERE id = 9`).Error)

	report, err := f.service(WithClusterOptions(cluster.WithSeed(7))).Clustered(ctx, f.output)
	require.NoError(t, err)

	assert.Equal(t, DistillStatusCompleted, report.Status)
	assert.Equal(t, 9, report.Loaded)
	assert.Equal(t, 1, report.Unparseable)
	assert.Equal(t, 4, report.Dimensions.Target())
	assert.Equal(t, 6, report.Dimensions.Kept())
	assert.Equal(t, 2, report.Dimensions.Skipped())
	assert.Equal(t, "3:2 4:6", report.Dimensions.HistogramString())
	assert.Equal(t, 3, report.Clusters)
	assert.Equal(t, 3, report.Batch.Succeeded)

	gs, err := corpus.Read(f.output)
	require.NoError(t, err)
	require.Len(t, gs, 3)
	for i, id := range []int{1, 3, 5} {
		assert.Equal(t, fmt.Sprintf("g%d", id), gs[i].Guideline)
		assert.Equal(t, fmt.Sprintf("theme-%d", id), gs[i].ClusterID)
	}
}

func TestDistill_Clustered_TruncatesLargeClusters(t *testing.T) {
	ctx := context.Background()
	f := newDistillFixture(t)
	var vecs [][]float64
	for i := range 12 {
		vecs = append(vecs, []float64{float64(i % 3 * 100), float64(i)})
	}
	f.insert(t, vecs...)

	_, err := f.service(WithMaxClusterItems(2)).Clustered(ctx, f.output)
	require.NoError(t, err)

	require.NotEmpty(t, f.prompts)
	for _, p := range f.prompts {
		assert.LessOrEqual(t, strings.Count(p, `"id": `), 2)
	}
}

func TestDistill_Clustered_ExhaustionStates(t *testing.T) {
	ctx := context.Background()

	t.Run("no embeddings", func(t *testing.T) {
		f := newDistillFixture(t)
		f.insert(t, nil, nil)

		report, err := f.service().Clustered(ctx, f.output)
		require.NoError(t, err)
		assert.Equal(t, DistillStatusNoEmbeddings, report.Status)
		assert.NoFileExists(t, f.output)
	})

	t.Run("no usable embeddings", func(t *testing.T) {
		f := newDistillFixture(t)
		f.insert(t, []float64{1, 2})
		require.NoError(t, f.db.Session(ctx).Exec(`UPDATE arch_items SET embedding = 'garbage'`).Error)

		report, err := f.service().Clustered(ctx, f.output)
		require.NoError(t, err)
		assert.Equal(t, DistillStatusNoUsableEmbeddings, report.Status)
		assert.Equal(t, 1, report.Unparseable)
	})

	t.Run("not enough data", func(t *testing.T) {
		f := newDistillFixture(t)
		f.insert(t, []float64{1, 2}, []float64{1, 2, 3})

		report, err := f.service().Clustered(ctx, f.output)
		require.NoError(t, err)
		assert.Equal(t, DistillStatusNotEnoughData, report.Status)
		assert.Zero(t, f.gen.calls.Load())
		assert.NoFileExists(t, f.output)
	})
}

func TestDistill_Chunked(t *testing.T) {
	ctx := context.Background()
	f := newDistillFixture(t)
	f.insert(t, nil, nil, nil, nil, nil, nil, nil)

	report, err := f.service().Chunked(ctx, f.output)
	require.NoError(t, err)

	assert.Equal(t, DistillStatusCompleted, report.Status)
	assert.Equal(t, 7, report.Loaded)
	assert.Equal(t, 2, report.Batch.Units)
	require.Len(t, f.prompts, 2)
	assert.Equal(t, 5, strings.Count(f.prompts[0], `"summary": `))
	assert.Equal(t, 2, strings.Count(f.prompts[1], `"summary": `))

	gs, err := corpus.Read(f.output)
	require.NoError(t, err)
	require.Len(t, gs, 2)
	assert.Empty(t, gs[0].ClusterID)
}

func TestDistill_Chunked_NoItems(t *testing.T) {
	f := newDistillFixture(t)

	report, err := f.service(WithChunkSize(3)).Chunked(context.Background(), f.output)
	require.NoError(t, err)
	assert.Equal(t, DistillStatusNoItems, report.Status)
	assert.NoFileExists(t, f.output)
}
