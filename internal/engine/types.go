// Package engine implements the segmented inverted index, the incremental
// indexing pipeline, and TF-IDF query scoring described for ftsearch.
package engine

import "time"

// DocId stably identifies one document path within a single index.
// Assignment is monotonically increasing and never reused or renumbered.
type DocId = uint32

// Posting pairs a document with the number of times a term occurs in it.
type Posting struct {
	Doc DocId
	TF  uint32
}

// DocumentRecord is the DocumentStore's per-document metadata.
type DocumentRecord struct {
	Path    string
	Size    int64
	ModTime time.Time
	Length  uint32 // sum of term frequencies observed at index time
}

// segmentDirPrefix names on-disk segment directories: "segment_<k>".
const segmentDirPrefix = "segment_"

// defaultBatchSize is the number of documents held per in-memory segment
// before it is flushed to disk.
const defaultBatchSize = 100
