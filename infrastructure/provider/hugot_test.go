package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestHugotEmbedding_Embed(t *testing.T) {
	if !hasEmbeddedModel {
		t.Skip("skipping: requires -tags embed_model")
	}

	emb := NewHugotEmbedding(t.TempDir())
	defer func() {
		require.NoError(t, emb.Close())
	}()

	req := NewEmbeddingRequest([]string{"validate api fields before storing them", "keep defaults upgrade safe"})
	resp, err := emb.Embed(context.Background(), req)
	require.NoError(t, err)

	embeddings := resp.Embeddings()
	require.Len(t, embeddings, 2)
	for _, vec := range embeddings {
		require.Len(t, vec, LocalEmbeddingDimension)
	}
}

func TestHugotEmbedding_RejectsOversizedBatch(t *testing.T) {
	emb := NewHugotEmbedding(t.TempDir())

	texts := make([]string, emb.Capacity()+1)
	for i := range texts {
		texts[i] = "comment"
	}

	_, err := emb.Embed(context.Background(), NewEmbeddingRequest(texts))
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds capacity")
}

func TestHugotEmbedding_EmbedEmpty(t *testing.T) {
	modelDir := t.TempDir()
	emb := NewHugotEmbedding(modelDir)
	defer func() {
		require.NoError(t, emb.Close())
	}()

	req := NewEmbeddingRequest([]string{})
	resp, err := emb.Embed(context.Background(), req)
	require.NoError(t, err)

	embeddings := resp.Embeddings()
	require.Empty(t, embeddings)
}

func TestHugotEmbedding_Close(t *testing.T) {
	modelDir := t.TempDir()
	emb := NewHugotEmbedding(modelDir)

	require.NoError(t, emb.Close())

	require.NoError(t, emb.Close())
}

func TestExtractEmbeddedModel(t *testing.T) {
	fakeFS := fstest.MapFS{
		"models/all-mpnet-base-v2/tokenizer.json":  {Data: []byte(`{"test": true}`)},
		"models/all-mpnet-base-v2/config.json":     {Data: []byte(`{"hidden_size": 768}`)},
		"models/all-mpnet-base-v2/onnx/model.onnx": {Data: []byte("fake-onnx-data")},
	}

	targetDir := t.TempDir()
	modelPath, err := extractEmbeddedModel(fakeFS, targetDir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(targetDir, "all-mpnet-base-v2"), modelPath)

	// Verify files were extracted
	data, err := os.ReadFile(filepath.Join(modelPath, "tokenizer.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"test": true`)

	data, err = os.ReadFile(filepath.Join(modelPath, "onnx", "model.onnx"))
	require.NoError(t, err)
	require.Equal(t, "fake-onnx-data", string(data))

	// Second extraction should skip (files already present)
	modelPath2, err := extractEmbeddedModel(fakeFS, targetDir)
	require.NoError(t, err)
	require.Equal(t, modelPath, modelPath2)
}

func TestExtractEmbeddedModel_NoModelDir(t *testing.T) {
	emptyFS := fstest.MapFS{
		"models/.gitkeep": {Data: []byte("")},
	}

	targetDir := t.TempDir()
	_, err := extractEmbeddedModel(emptyFS, targetDir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no model directory found")
}

func TestHugotEmbedding_DiskModelPath(t *testing.T) {
	modelDir := t.TempDir()

	emb := NewHugotEmbedding(modelDir)
	_, err := emb.diskModelPath()
	require.Error(t, err)

	// Create a valid model subdirectory.
	subdir := filepath.Join(modelDir, "my-model")
	require.NoError(t, os.MkdirAll(subdir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(subdir, "tokenizer.json"), []byte(`{}`), 0o644))

	got, err := emb.diskModelPath()
	require.NoError(t, err)
	require.Equal(t, subdir, got)
}

func TestHugotEmbedding_AvailableWithDiskModel(t *testing.T) {
	modelDir := t.TempDir()
	emb := NewHugotEmbedding(modelDir)

	// Without embedded model and no disk model, should be unavailable.
	if !hasEmbeddedModel {
		require.False(t, emb.Available())
	}

	subdir := filepath.Join(modelDir, "all-mpnet-base-v2")
	require.NoError(t, os.MkdirAll(subdir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(subdir, "tokenizer.json"), []byte(`{}`), 0o644))

	require.True(t, emb.Available())
}

func TestHugotEmbedding_DiskModelPath_SkipsFiles(t *testing.T) {
	modelDir := t.TempDir()

	// A plain file (not a directory) should be skipped.
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "README.md"), []byte("readme"), 0o644))

	emb := NewHugotEmbedding(modelDir)
	_, err := emb.diskModelPath()
	require.Error(t, err)
}

func TestHugotEmbedding_DiskModelPath_SkipsDirWithoutTokenizer(t *testing.T) {
	modelDir := t.TempDir()

	// A directory without tokenizer.json should be skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(modelDir, "incomplete-model"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "incomplete-model", "config.json"), []byte(`{}`), 0o644))

	emb := NewHugotEmbedding(modelDir)
	_, err := emb.diskModelPath()
	require.Error(t, err)
}

func TestHugotEmbedding_CancelledContext(t *testing.T) {
	modelDir := t.TempDir()
	emb := NewHugotEmbedding(modelDir)
	defer func() {
		require.NoError(t, emb.Close())
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := NewEmbeddingRequest([]string{"hello"})
	_, err := emb.Embed(ctx, req)
	require.Error(t, err)
}
