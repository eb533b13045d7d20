package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kansindexer/ftsearch/internal/engine"
)

func buildTestIndex(t *testing.T) *engine.Index {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	indexDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "fox.txt"), []byte("the quick brown fox"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dog.txt"), []byte("the lazy dog"), 0o644))

	w := engine.NewWriter(engine.Config{RootPath: root, IndexDir: indexDir, BatchSize: 100}, nil)
	_, err := w.Run(context.Background())
	require.NoError(t, err)

	idx, err := engine.OpenIndex(indexDir)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestServeIndexPage(t *testing.T) {
	idx := buildTestIndex(t)
	srv := New(idx, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ftsearch")
}

func TestQueryReturnsRankedPaths(t *testing.T) {
	idx := buildTestIndex(t)
	srv := New(idx, nil)

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader("fox"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fox.txt")
}

func TestQueryWithScores(t *testing.T) {
	idx := buildTestIndex(t)
	srv := New(idx, nil)

	req := httptest.NewRequest(http.MethodPost, "/query?scores=1", strings.NewReader("dog"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Regexp(t, `dog\.txt\t[0-9.]+`, rec.Body.String())
}

func TestQueryRejectsGet(t *testing.T) {
	idx := buildTestIndex(t)
	srv := New(idx, nil)

	req := httptest.NewRequest(http.MethodGet, "/query", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestQueryRejectsInvalidUTF8(t *testing.T) {
	idx := buildTestIndex(t)
	srv := New(idx, nil)

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader("\xff\xfe"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
