package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestWriterIndexAndQueryRanksByTermFrequency(t *testing.T) {
	root := t.TempDir()
	indexDir := t.TempDir()

	writeTestFile(t, root, "fox.txt", "the quick brown fox jumps over the lazy dog")
	writeTestFile(t, root, "dog.txt", "dog dog dog")
	// A document without "dog" keeps df("dog") below N, so its idf is
	// positive; with every document containing it, idf would be ln(1) = 0.
	writeTestFile(t, root, "cat.txt", "a cat naps in the sun")

	w := NewWriter(Config{RootPath: root, IndexDir: indexDir, BatchSize: 100}, nil)
	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Indexed)
	assert.Equal(t, 1, summary.Segments)

	idx, err := OpenIndex(indexDir)
	require.NoError(t, err)
	defer idx.Close()

	results, err := idx.Query("dog", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// dog.txt has a higher term frequency for "dog" (3) than fox.txt (1),
	// so it must rank first.
	assert.Equal(t, filepath.Join(root, "dog.txt"), results[0].Path)
	assert.Equal(t, filepath.Join(root, "fox.txt"), results[1].Path)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestWriterBatchesIntoSegments(t *testing.T) {
	root := t.TempDir()
	indexDir := t.TempDir()

	for i := 0; i < 250; i++ {
		writeTestFile(t, root, fmt.Sprintf("doc%03d.txt", i), "shared term common across every document")
	}

	w := NewWriter(Config{RootPath: root, IndexDir: indexDir, BatchSize: 100}, nil)
	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250, summary.Indexed)
	assert.Equal(t, 3, summary.Segments)

	entries, err := os.ReadDir(indexDir)
	require.NoError(t, err)
	segCount := 0
	for _, e := range entries {
		if e.IsDir() {
			segCount++
		}
	}
	assert.Equal(t, 3, segCount)

	idx, err := OpenIndex(indexDir)
	require.NoError(t, err)
	defer idx.Close()

	results, err := idx.Query("shared", 250)
	require.NoError(t, err)
	require.Len(t, results, 250)
	// Every document shares the same score, so ties break by ascending DocId;
	// DocIds follow sink arrival order, so the order is not checked here.
	for i := 1; i < len(results); i++ {
		assert.Equal(t, results[0].Score, results[i].Score)
	}
}

func TestWriterIncrementalReindexSkipsUnchanged(t *testing.T) {
	root := t.TempDir()
	indexDir := t.TempDir()

	writeTestFile(t, root, "a.txt", "alpha")
	writeTestFile(t, root, "b.txt", "bravo")

	w := NewWriter(Config{RootPath: root, IndexDir: indexDir, BatchSize: 100}, nil)
	first, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Indexed)
	assert.Equal(t, 0, first.Skipped)

	writeTestFile(t, root, "c.txt", "charlie")

	second, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Indexed)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 1, second.Segments)

	ds, err := LoadDocumentStore(filepath.Join(indexDir, "docstore.bin"))
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
}

func TestWriterToleratesExtractionFailure(t *testing.T) {
	root := t.TempDir()
	indexDir := t.TempDir()

	writeTestFile(t, root, "good.txt", "readable content here")
	// A .pdf extension with no valid PDF structure: the best-effort PDF
	// extractor finds no content stream and yields no terms, but never
	// errors -- the file still becomes searchable-but-empty rather than
	// aborting the run.
	writeTestFile(t, root, "broken.pdf", "not actually a pdf file")

	w := NewWriter(Config{RootPath: root, IndexDir: indexDir, BatchSize: 100}, nil)
	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Indexed)
	assert.Equal(t, 0, summary.Failed)

	idx, err := OpenIndex(indexDir)
	require.NoError(t, err)
	defer idx.Close()

	results, err := idx.Query("readable", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, filepath.Join(root, "good.txt"), results[0].Path)
}

func TestQueryStopWordOnlyReturnsEmpty(t *testing.T) {
	root := t.TempDir()
	indexDir := t.TempDir()
	writeTestFile(t, root, "a.txt", "the quick brown fox")

	w := NewWriter(Config{RootPath: root, IndexDir: indexDir, BatchSize: 100}, nil)
	_, err := w.Run(context.Background())
	require.NoError(t, err)

	idx, err := OpenIndex(indexDir)
	require.NoError(t, err)
	defer idx.Close()

	results, err := idx.Query("the a an", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryAgainstEmptyIndexDirectory(t *testing.T) {
	indexDir := filepath.Join(t.TempDir(), "empty")

	idx, err := OpenIndex(indexDir)
	require.NoError(t, err)
	defer idx.Close()

	results, err := idx.Query("anything", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestWriterCancellationDropsPartialSegment(t *testing.T) {
	root := t.TempDir()
	indexDir := t.TempDir()
	writeTestFile(t, root, "a.txt", "alpha")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWriter(Config{RootPath: root, IndexDir: indexDir, BatchSize: 100}, nil)
	_, err := w.Run(ctx)
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(indexDir, "docstore.bin"))
	assert.True(t, os.IsNotExist(statErr), "docstore must not be persisted on a cancelled run")
}
