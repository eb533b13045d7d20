package engine

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingLogFileRotatesAndCompresses(t *testing.T) {
	dir := t.TempDir()

	w, err := NewRotatingLogFile(dir, "app.log", 16)
	require.NoError(t, err)

	_, err = w.Write([]byte("short line\n"))
	require.NoError(t, err)
	// Pushes cumulative bytes past the 16-byte threshold, triggering a
	// rotation on this call.
	_, err = w.Write([]byte("another line that is long enough\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var gzName string
	var plainExists bool
	for _, e := range entries {
		switch {
		case e.Name() == "app.log":
			plainExists = true
		case filepath.Ext(e.Name()) == ".gz":
			gzName = e.Name()
		}
	}
	assert.True(t, plainExists, "a fresh app.log must exist after rotation")
	require.NotEmpty(t, gzName, "a rotated, compressed generation must exist")

	gz, err := os.Open(filepath.Join(dir, gzName))
	require.NoError(t, err)
	defer gz.Close()

	zr, err := pgzip.NewReader(gz)
	require.NoError(t, err)
	defer zr.Close()

	content, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(content, []byte("short line")))
}
