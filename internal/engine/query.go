package engine

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Result is one ranked hit: a resolved document path and its accumulated
// TF-IDF score.
type Result struct {
	Path  string
	Score float64
}

// Index is an opened, read-only view of an index directory: the
// DocumentStore plus every on-disk segment, in segment-number order.
// Segment term dictionaries are immutable once loaded, so one Index can
// safely serve many concurrent Query calls.
type Index struct {
	dir      string
	ds       *DocumentStore
	segments []*diskSegment
}

// OpenIndex loads the DocumentStore and every segment_* directory under
// dir. A missing or empty index directory is not an error -- it opens to
// an index with zero documents, and every query against it returns an
// empty result set.
func OpenIndex(dir string) (*Index, error) {
	ds, err := LoadDocumentStore(filepath.Join(dir, "docstore.bin"))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read index dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), segmentDirPrefix) {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return segmentOrdinal(names[i]) < segmentOrdinal(names[j])
	})

	segments := make([]*diskSegment, 0, len(names))
	for _, name := range names {
		seg, err := openSegment(filepath.Join(dir, name))
		if err != nil {
			for _, s := range segments {
				s.close()
			}
			return nil, err
		}
		segments = append(segments, seg)
	}

	return &Index{dir: dir, ds: ds, segments: segments}, nil
}

func segmentOrdinal(dirName string) int {
	var n int
	fmt.Sscanf(strings.TrimPrefix(dirName, segmentDirPrefix), "%d", &n)
	return n
}

// Close releases every open segment's postings file handle.
func (ix *Index) Close() error {
	var firstErr error
	for _, s := range ix.segments {
		if err := s.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DocumentCount is N in the TF-IDF formula: the DocumentStore's size,
// independent of segmentation, so IDF stays stable as the index grows.
func (ix *Index) DocumentCount() int {
	return ix.ds.Len()
}

// Query tokenizes text with the same tokenizer used at index time, scores
// every document containing a query term by summed tf*idf across all
// segments, and returns the top k by descending score (ties broken by
// ascending DocId, for a deterministic order when scores are equal).
func (ix *Index) Query(text string, k int) ([]Result, error) {
	terms := Tokenize(text)
	if len(terms) == 0 {
		return nil, nil
	}

	n := ix.ds.Len()
	if n == 0 {
		return nil, nil
	}

	scores := make(map[DocId]float64)
	dfCache := make(map[string]int, len(terms))

	for _, term := range terms {
		df, cached := dfCache[term]
		if !cached {
			for _, seg := range ix.segments {
				df += int(seg.docFrequency(term))
			}
			dfCache[term] = df
		}
		if df == 0 {
			continue
		}

		idf := math.Log(float64(n) / float64(df))
		if idf < 0 {
			// Reachable when df exceeds N: a changed file re-indexed under
			// its existing DocId has postings in more than one segment, and
			// each segment's df counts it; segments can also hold DocIds a
			// DocumentStore left unpersisted by a cancelled run does not
			// count. Clamped uniformly rather than letting a term subtract
			// from a document's score.
			idf = 0
		}

		for _, seg := range ix.segments {
			postings, err := seg.lookup(term)
			if err != nil {
				return nil, err
			}
			for _, p := range postings {
				scores[p.Doc] += float64(p.TF) * idf
			}
		}
	}

	if len(scores) == 0 {
		return nil, nil
	}

	ranked := make([]DocId, 0, len(scores))
	for id := range scores {
		ranked = append(ranked, id)
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i]], scores[ranked[j]]
		if si != sj {
			return si > sj
		}
		return ranked[i] < ranked[j]
	})

	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}

	results := make([]Result, 0, len(ranked))
	for _, id := range ranked {
		rec, ok := ix.ds.Get(id)
		if !ok {
			continue
		}
		results = append(results, Result{Path: rec.Path, Score: scores[id]})
	}
	return results, nil
}
