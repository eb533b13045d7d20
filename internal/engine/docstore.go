package engine

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// docStoreMagic and docStoreVersion tag the on-disk docstore.bin header so
// an older, incompatible layout is refused rather than misread.
const (
	docStoreMagic   uint32 = 0x53434f44 // "DOCS"
	docStoreVersion uint32 = 1
)

// DocumentStore maps document paths to stable DocIds and holds per-document
// metadata. It is the single source of truth for "have we seen this file
// before, and has it changed".
type DocumentStore struct {
	mu      sync.RWMutex
	byPath  map[string]DocId
	records []DocumentRecord // indexed by DocId
}

// NewDocumentStore returns an empty store, as created on first index.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{byPath: make(map[string]DocId)}
}

// Intern returns the DocId for path, assigning the next integer if path has
// never been seen. Idempotent: calling twice with the same path returns the
// same DocId both times.
func (ds *DocumentStore) Intern(path string) DocId {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if id, ok := ds.byPath[path]; ok {
		return id
	}

	id := DocId(len(ds.records))
	ds.byPath[path] = id
	ds.records = append(ds.records, DocumentRecord{Path: path})
	return id
}

// Get returns the record for id.
func (ds *DocumentStore) Get(id DocId) (DocumentRecord, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	if int(id) >= len(ds.records) {
		return DocumentRecord{}, false
	}
	return ds.records[id], true
}

// UpdateMetadata records a document's observed size, modification time, and
// token length after (re-)indexing.
func (ds *DocumentStore) UpdateMetadata(id DocId, size int64, mtime time.Time, length uint32) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if int(id) >= len(ds.records) {
		return
	}
	rec := &ds.records[id]
	rec.Size = size
	rec.ModTime = mtime
	rec.Length = length
}

// ShouldSkip reports whether path is already interned with the same
// (size, mtime) observed now -- the incremental skip check.
func (ds *DocumentStore) ShouldSkip(path string, size int64, mtime time.Time) bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	id, ok := ds.byPath[path]
	if !ok {
		return false
	}
	rec := ds.records[id]
	return rec.Size == size && rec.ModTime.Equal(mtime)
}

// Len returns the number of distinct interned paths, i.e. N in the TF-IDF
// formula.
func (ds *DocumentStore) Len() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return len(ds.records)
}

// Persist writes the store to path, building the full byte image in a
// temporary sibling file and renaming it into place so a crash mid-write
// never corrupts a previously good docstore.bin.
func (ds *DocumentStore) Persist(path string) (err error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".docstore-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp docstore: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)

	if err = binary.Write(w, binary.LittleEndian, docStoreMagic); err != nil {
		tmp.Close()
		return err
	}
	if err = binary.Write(w, binary.LittleEndian, docStoreVersion); err != nil {
		tmp.Close()
		return err
	}
	if err = binary.Write(w, binary.LittleEndian, uint32(len(ds.records))); err != nil {
		tmp.Close()
		return err
	}

	for _, rec := range ds.records {
		pathBytes := []byte(rec.Path)
		if err = binary.Write(w, binary.LittleEndian, uint32(len(pathBytes))); err != nil {
			tmp.Close()
			return err
		}
		if _, err = w.Write(pathBytes); err != nil {
			tmp.Close()
			return err
		}
		if err = binary.Write(w, binary.LittleEndian, rec.Size); err != nil {
			tmp.Close()
			return err
		}
		if err = binary.Write(w, binary.LittleEndian, rec.ModTime.UnixNano()); err != nil {
			tmp.Close()
			return err
		}
		if err = binary.Write(w, binary.LittleEndian, rec.Length); err != nil {
			tmp.Close()
			return err
		}
	}

	if err = w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush docstore: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync docstore: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close docstore: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename docstore: %w", err)
	}
	return nil
}

// LoadDocumentStore reads a docstore.bin previously written by Persist. A
// missing file is treated as an empty, freshly created store so that the
// first index run over an empty directory needs no special case.
func LoadDocumentStore(path string) (*DocumentStore, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return NewDocumentStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open docstore %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var magic, version, count uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("read docstore header %s: %w", path, err)
	}
	if magic != docStoreMagic {
		return nil, fmt.Errorf("docstore %s: not a docstore file (bad magic)", path)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read docstore version %s: %w", path, err)
	}
	if version != docStoreVersion {
		return nil, fmt.Errorf("docstore %s: unsupported version %d (expected %d)", path, version, docStoreVersion)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read docstore count %s: %w", path, err)
	}

	ds := &DocumentStore{
		byPath:  make(map[string]DocId, count),
		records: make([]DocumentRecord, 0, count),
	}

	for i := uint32(0); i < count; i++ {
		var pathLen uint32
		if err := binary.Read(r, binary.LittleEndian, &pathLen); err != nil {
			return nil, fmt.Errorf("read docstore entry %d in %s: %w", i, path, err)
		}
		pathBytes := make([]byte, pathLen)
		if _, err := io.ReadFull(r, pathBytes); err != nil {
			return nil, fmt.Errorf("read docstore path %d in %s: %w", i, path, err)
		}

		var size int64
		var modNano int64
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("read docstore size %d in %s: %w", i, path, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &modNano); err != nil {
			return nil, fmt.Errorf("read docstore mtime %d in %s: %w", i, path, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, fmt.Errorf("read docstore length %d in %s: %w", i, path, err)
		}

		rec := DocumentRecord{
			Path:    string(pathBytes),
			Size:    size,
			ModTime: time.Unix(0, modNano).UTC(),
			Length:  length,
		}
		ds.byPath[rec.Path] = DocId(i)
		ds.records = append(ds.records, rec)
	}

	return ds, nil
}
