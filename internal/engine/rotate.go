package engine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/pgzip"
)

// defaultMaxLogBytes is the size threshold at which a rotating log file is
// gzip-compressed and a fresh one opened.
const defaultMaxLogBytes = 8 << 20 // 8 MiB

// rotatingFile is an io.WriteCloser that rolls dir/name over to
// dir/name.<n>.gz once it passes maxBytes, compressing a completed log file
// with pgzip rather than leaving large files uncompressed on disk. Unlike the core index's
// postings.bin/term.dict/docstore.bin, which must stay fixed-width binary
// per the on-disk layout, logs are free-form text and safe to gzip.
type rotatingFile struct {
	mu         sync.Mutex
	dir        string
	name       string
	maxBytes   int64
	file       *os.File
	written    int64
	generation int
}

// NewRotatingLogFile opens (or creates) dir/name for appending, gzip-
// compressing it to dir/name.<generation>.gz and starting a fresh file
// once a write brings it to maxBytes or more (0 selects defaultMaxLogBytes).
func NewRotatingLogFile(dir, name string, maxBytes int64) (io.WriteCloser, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxLogBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}

	r := &rotatingFile{dir: dir, name: name, maxBytes: maxBytes}
	if err := r.openCurrent(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rotatingFile) openCurrent() error {
	path := filepath.Join(r.dir, r.name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file %s: %w", path, err)
	}
	r.file = f
	r.written = info.Size()
	return nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.file.Write(p)
	r.written += int64(n)
	if err != nil {
		return n, err
	}

	if r.written >= r.maxBytes {
		if rerr := r.rotate(); rerr != nil {
			return n, rerr
		}
	}
	return n, nil
}

func (r *rotatingFile) rotate() error {
	path := filepath.Join(r.dir, r.name)

	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close log file %s: %w", path, err)
	}

	r.generation++
	gzPath := fmt.Sprintf("%s.%d.gz", path, r.generation)
	if err := gzipFile(path, gzPath); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove rotated log file %s: %w", path, err)
	}

	return r.openCurrent()
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s for compression: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	// pgzip parallelizes the compression across blocks, which is worth it
	// here since rotation runs on completed multi-megabyte log files.
	zw, err := pgzip.NewWriterLevel(out, pgzip.BestSpeed)
	if err != nil {
		out.Close()
		return fmt.Errorf("create gzip writer for %s: %w", dst, err)
	}

	bw := bufio.NewWriter(zw)
	if _, err := io.Copy(bw, in); err != nil {
		zw.Close()
		out.Close()
		return fmt.Errorf("compress %s: %w", src, err)
	}
	if err := bw.Flush(); err != nil {
		zw.Close()
		out.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("close gzip writer for %s: %w", dst, err)
	}
	return out.Close()
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
