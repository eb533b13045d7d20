package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gedex/inflector"
)

// atomicCounter is a tiny goroutine-safe counter; the walk goroutine is
// the only writer, and the caller reads it only after walkWG.Wait().
type atomicCounter struct{ n int64 }

func (c *atomicCounter) add(delta int64) { atomic.AddInt64(&c.n, delta) }
func (c *atomicCounter) value() int      { return int(atomic.LoadInt64(&c.n)) }

// Summary reports what one index run did, for the CLI to print and for
// tests to assert skip-determinism against.
type Summary struct {
	Walked   int // files handed to the workers: past the extension/hidden/skip-path filters and not skipped as unchanged
	Skipped  int // unchanged files left alone by the skip check
	Failed   int // files whose extraction or tokenization failed
	Indexed  int // files newly (re-)written into a segment
	Segments int // on-disk segments created by this run
}

// String renders a human run summary, pluralizing counts via
// github.com/gedex/inflector.
func (s Summary) String() string {
	return fmt.Sprintf("%s indexed, %s skipped, %s failed, %s created",
		countNoun(s.Indexed, "document"),
		countNoun(s.Skipped, "file"),
		countNoun(s.Failed, "file"),
		countNoun(s.Segments, "segment"))
}

func countNoun(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %s", n, inflector.Pluralize(noun))
}

// fileJob is one walk-accepted file awaiting extraction.
type fileJob struct {
	path    string
	size    int64
	modTime time.Time
}

// fileResult is one worker's finished extraction, ready for the sink.
type fileResult struct {
	path    string
	size    int64
	modTime time.Time
	length  uint32
	tf      map[string]uint32
	failErr error
}

// Writer orchestrates parallel extraction/tokenization feeding a single
// serialized sink: workers never touch the DocumentStore or segments
// directly.
type Writer struct {
	cfg Config
	log LogSink
}

// NewWriter builds a Writer over cfg, defaulting unset fields.
func NewWriter(cfg Config, log LogSink) *Writer {
	return &Writer{cfg: cfg.WithDefaults(), log: ensureLogger(log)}
}

// Run walks cfg.RootPath, indexes changed files into cfg.IndexDir, and
// persists the DocumentStore. Cancelling ctx stops the walk and drains
// in-flight work without flushing the open in-memory segment or
// persisting the DocumentStore; segments this run already flushed before
// the cancellation stay on disk.
func (w *Writer) Run(ctx context.Context) (Summary, error) {
	if err := os.MkdirAll(w.cfg.IndexDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create index dir %s: %w", w.cfg.IndexDir, err)
	}

	lock, err := AcquireIndexLock(w.cfg.IndexDir)
	if err != nil {
		return Summary{}, err
	}
	defer lock.Release()

	docStorePath := filepath.Join(w.cfg.IndexDir, "docstore.bin")
	ds, err := LoadDocumentStore(docStorePath)
	if err != nil {
		return Summary{}, err
	}

	nextSegment, err := nextSegmentNumber(w.cfg.IndexDir)
	if err != nil {
		return Summary{}, err
	}

	workers := workerCount(w.cfg.WorkerCount)
	depth := queueDepth(workers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan fileJob, depth)
	results := make(chan fileResult, depth)

	var walkErr error
	var skipped atomicCounter
	var walkWG sync.WaitGroup
	walkWG.Add(1)
	go func() {
		defer walkWG.Done()
		defer close(jobs)
		walkErr = w.walk(ctx, ds, jobs, &skipped)
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < workers; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			w.extractWorker(ctx, jobs, results)
		}()
	}

	go func() {
		workerWG.Wait()
		close(results)
	}()

	summary, sinkErr := w.sink(ctx, ds, results, nextSegment)
	if sinkErr != nil {
		// Nobody drains results any more: stop the walk and the workers so
		// they do not block on full channels.
		cancel()
	}

	walkWG.Wait()
	summary.Skipped = skipped.value()

	if sinkErr != nil {
		return summary, sinkErr
	}
	if walkErr != nil {
		return summary, walkErr
	}

	if ctx.Err() != nil {
		w.log.Warnf("index run cancelled: %v (open segment dropped, docstore not persisted)", ctx.Err())
		return summary, ctx.Err()
	}

	if err := ds.Persist(docStorePath); err != nil {
		return summary, fmt.Errorf("persist docstore: %w", err)
	}

	w.log.Infof("%s", summary.String())
	return summary, nil
}

// walk feeds accepted files to jobs, applying the hidden/skip-path/
// extension filters and the (size, mtime) skip check before a file ever
// reaches a worker.
func (w *Writer) walk(ctx context.Context, ds *DocumentStore, jobs chan<- fileJob, skipped *atomicCounter) error {
	root, err := filepath.Abs(w.cfg.RootPath)
	if err != nil {
		return fmt.Errorf("resolve root path %s: %w", w.cfg.RootPath, err)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := d.Name()
		if d.IsDir() {
			if name != "." && strings.HasPrefix(name, ".") && !w.cfg.IncludeHidden {
				return filepath.SkipDir
			}
			if containsSkipElement(path, w.cfg.SkipPaths) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") && !w.cfg.IncludeHidden {
			return nil
		}
		if containsSkipElement(path, w.cfg.SkipPaths) {
			return nil
		}
		if _, ok := ExtractorFor(filepath.Ext(name)); !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			w.log.Warnf("stat %s: %v", path, err)
			return nil
		}

		if ds.ShouldSkip(path, info.Size(), info.ModTime()) {
			skipped.add(1)
			return nil
		}

		select {
		case jobs <- fileJob{path: path, size: info.Size(), modTime: info.ModTime()}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

func containsSkipElement(path string, skip []string) bool {
	if len(skip) == 0 {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		for _, s := range skip {
			if part == s {
				return true
			}
		}
	}
	return false
}

// extractWorker is one CPU-bound pool member: extract, tokenize, build a
// term-frequency map, hand the result to the sink. It never touches the
// DocumentStore or any segment.
func (w *Writer) extractWorker(ctx context.Context, jobs <-chan fileJob, results chan<- fileResult) {
	for job := range jobs {
		if ctx.Err() != nil {
			return
		}

		res := fileResult{path: job.path, size: job.size, modTime: job.modTime}

		text, err := w.extract(job.path)
		if err != nil {
			res.failErr = err
		} else {
			terms := Tokenize(text)
			tf := make(map[string]uint32, len(terms))
			for _, t := range terms {
				tf[t]++
			}
			res.tf = tf
			res.length = uint32(len(terms))
		}

		select {
		case results <- res:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Writer) extract(path string) (string, error) {
	ext, ok := ExtractorFor(filepath.Ext(path))
	if !ok {
		return "", fmt.Errorf("no extractor registered for %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return ext(f)
}

// sink is the single serialized owner of the DocumentStore and the open
// in-memory segment. It consumes results in arrival order -- DocId
// assignment order therefore follows sink arrival, not walk order.
func (w *Writer) sink(ctx context.Context, ds *DocumentStore, results <-chan fileResult, nextSegment int) (Summary, error) {
	var summary Summary
	open := newMemSegment(w.cfg.BatchSize)

	flushOpen := func() error {
		if open.isEmpty() {
			return nil
		}
		dir := segmentDir(w.cfg.IndexDir, nextSegment)
		if err := writeSegment(dir, open); err != nil {
			return fmt.Errorf("flush segment %d: %w", nextSegment, err)
		}
		nextSegment++
		summary.Segments++
		open = newMemSegment(w.cfg.BatchSize)
		return nil
	}

	for res := range results {
		summary.Walked++

		if res.failErr != nil {
			summary.Failed++
			w.log.Warnf("skipping %s: %v", res.path, res.failErr)
			continue
		}

		id := ds.Intern(res.path)
		ds.UpdateMetadata(id, res.size, res.modTime, res.length)

		if err := open.addDocument(id, res.tf); err != nil {
			summary.Failed++
			w.log.Warnf("skipping %s: %v", res.path, err)
			continue
		}
		summary.Indexed++

		if open.isFull() {
			if err := flushOpen(); err != nil {
				return summary, err
			}
		}
	}

	// A cancelled run must not flush the still-open segment: it may hold
	// a partial, non-representative batch that a future run should
	// re-derive from scratch rather than have persisted half-formed.
	if ctx.Err() == nil {
		if err := flushOpen(); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

func segmentDir(indexDir string, n int) string {
	return filepath.Join(indexDir, segmentDirPrefix+strconv.Itoa(n))
}

func nextSegmentNumber(indexDir string) (int, error) {
	entries, err := os.ReadDir(indexDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read index dir %s: %w", indexDir, err)
	}

	n := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), segmentDirPrefix) {
			continue
		}
		if k, err := strconv.Atoi(strings.TrimPrefix(e.Name(), segmentDirPrefix)); err == nil && k+1 > n {
			n = k + 1
		}
	}
	return n, nil
}
