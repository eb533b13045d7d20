package engine

import "fmt"

// memSegment accumulates postings for a bounded batch of documents before
// flush. It has a single owner (the writer's sink goroutine) and is not
// safe for concurrent use.
type memSegment struct {
	capacity int
	docs     map[DocId]bool
	postings map[string]map[DocId]uint32 // term -> DocId -> term frequency
}

func newMemSegment(capacity int) *memSegment {
	if capacity < 1 {
		capacity = defaultBatchSize
	}
	return &memSegment{
		capacity: capacity,
		docs:     make(map[DocId]bool),
		postings: make(map[string]map[DocId]uint32),
	}
}

// addDocument merges one document's term-frequency map into the segment.
// It rejects a DocId already present: the caller (the sink) is responsible
// for never delivering the same DocId twice to one in-memory segment.
func (m *memSegment) addDocument(id DocId, tf map[string]uint32) error {
	if m.docs[id] {
		return fmt.Errorf("engine: DocId %d already present in open segment", id)
	}
	m.docs[id] = true

	for term, freq := range tf {
		bucket, ok := m.postings[term]
		if !ok {
			bucket = make(map[DocId]uint32)
			m.postings[term] = bucket
		}
		bucket[id] += freq
	}
	return nil
}

func (m *memSegment) isFull() bool {
	return len(m.docs) >= m.capacity
}

func (m *memSegment) isEmpty() bool {
	return len(m.docs) == 0
}

func (m *memSegment) size() int {
	return len(m.docs)
}
