package engine

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// On-disk segment file layout. term.dict is loaded fully into memory when a
// segment is opened; postings.bin is read on demand, one term's postings
// list per lookup, keeping a resident term dictionary/offset index separate
// from a postings file read by seek+read.
const (
	termDictMagic   uint32 = 0x43494454 // "TDIC"
	termDictVersion uint32 = 1

	postingsMagic   uint32 = 0x42545350 // "PSTB"
	postingsVersion uint32 = 1

	termDictFileName = "term.dict"
	postingsFileName = "postings.bin"
)

type termDictEntry struct {
	docFreq uint32
	offset  int64 // byte offset into postings.bin, at the posting-count prefix
	length  int64 // byte length of that term's length-prefixed block
}

// writeSegment serializes a full in-memory segment to dir/term.dict and
// dir/postings.bin. It builds both files in a temporary sibling directory,
// fsyncs them, then renames the directory into place -- so a crash never
// leaves a half-written segment visible under its final name.
func writeSegment(dir string, m *memSegment) (err error) {
	parent := filepath.Dir(dir)
	base := filepath.Base(dir)

	tmpDir, err := os.MkdirTemp(parent, "."+base+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp segment dir: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(tmpDir)
		}
	}()

	terms := make([]string, 0, len(m.postings))
	for term := range m.postings {
		terms = append(terms, term)
	}
	// Sorting gives byte-identical output for the same input regardless of
	// the map iteration order used to build it, since the on-disk dictionary
	// must not depend on write-time ordering -- sorting is the simplest way
	// to make the write side deterministic too.
	sort.Strings(terms)

	postingsPath := filepath.Join(tmpDir, postingsFileName)
	pf, err := os.Create(postingsPath)
	if err != nil {
		return fmt.Errorf("create postings file: %w", err)
	}
	pw := bufio.NewWriter(pf)

	if err = binary.Write(pw, binary.LittleEndian, postingsMagic); err != nil {
		pf.Close()
		return err
	}
	if err = binary.Write(pw, binary.LittleEndian, postingsVersion); err != nil {
		pf.Close()
		return err
	}

	offset := int64(8) // past the magic+version header

	entries := make(map[string]termDictEntry, len(terms))

	for _, term := range terms {
		byDoc := m.postings[term]

		docIDs := make([]DocId, 0, len(byDoc))
		for id := range byDoc {
			docIDs = append(docIDs, id)
		}
		sort.Slice(docIDs, func(i, j int) bool { return docIDs[i] < docIDs[j] })

		blockStart := offset

		if err = binary.Write(pw, binary.LittleEndian, uint32(len(docIDs))); err != nil {
			pf.Close()
			return err
		}
		offset += 4

		for _, id := range docIDs {
			if err = binary.Write(pw, binary.LittleEndian, id); err != nil {
				pf.Close()
				return err
			}
			if err = binary.Write(pw, binary.LittleEndian, byDoc[id]); err != nil {
				pf.Close()
				return err
			}
			offset += 8
		}

		entries[term] = termDictEntry{
			docFreq: uint32(len(docIDs)),
			offset:  blockStart,
			length:  offset - blockStart,
		}
	}

	if err = pw.Flush(); err != nil {
		pf.Close()
		return fmt.Errorf("flush postings file: %w", err)
	}
	if err = pf.Sync(); err != nil {
		pf.Close()
		return fmt.Errorf("fsync postings file: %w", err)
	}
	if err = pf.Close(); err != nil {
		return fmt.Errorf("close postings file: %w", err)
	}

	dictPath := filepath.Join(tmpDir, termDictFileName)
	df, err := os.Create(dictPath)
	if err != nil {
		return fmt.Errorf("create term dict: %w", err)
	}
	dw := bufio.NewWriter(df)

	if err = binary.Write(dw, binary.LittleEndian, termDictMagic); err != nil {
		df.Close()
		return err
	}
	if err = binary.Write(dw, binary.LittleEndian, termDictVersion); err != nil {
		df.Close()
		return err
	}
	if err = binary.Write(dw, binary.LittleEndian, uint32(len(terms))); err != nil {
		df.Close()
		return err
	}

	for _, term := range terms {
		e := entries[term]
		termBytes := []byte(term)
		if err = binary.Write(dw, binary.LittleEndian, uint32(len(termBytes))); err != nil {
			df.Close()
			return err
		}
		if _, err = dw.Write(termBytes); err != nil {
			df.Close()
			return err
		}
		if err = binary.Write(dw, binary.LittleEndian, e.docFreq); err != nil {
			df.Close()
			return err
		}
		if err = binary.Write(dw, binary.LittleEndian, e.offset); err != nil {
			df.Close()
			return err
		}
		if err = binary.Write(dw, binary.LittleEndian, e.length); err != nil {
			df.Close()
			return err
		}
	}

	if err = dw.Flush(); err != nil {
		df.Close()
		return fmt.Errorf("flush term dict: %w", err)
	}
	if err = df.Sync(); err != nil {
		df.Close()
		return fmt.Errorf("fsync term dict: %w", err)
	}
	if err = df.Close(); err != nil {
		return fmt.Errorf("close term dict: %w", err)
	}

	if err = os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear stale segment dir: %w", err)
	}
	if err = os.Rename(tmpDir, dir); err != nil {
		return fmt.Errorf("rename segment dir: %w", err)
	}
	return nil
}

// diskSegment is an opened, immutable on-disk segment. Its term dictionary
// is resident; postings are read on demand with ReadAt, which -- unlike
// Read/Seek -- has no shared cursor, so one *os.File safely serves many
// concurrent query goroutines without each needing its own handle.
type diskSegment struct {
	dir      string
	terms    map[string]termDictEntry
	postings *os.File
}

func openSegment(dir string) (*diskSegment, error) {
	dictPath := filepath.Join(dir, termDictFileName)
	df, err := os.Open(dictPath)
	if err != nil {
		return nil, fmt.Errorf("open term dict %s: %w", dictPath, err)
	}
	defer df.Close()

	dr := bufio.NewReader(df)

	var magic, version, count uint32
	if err := binary.Read(dr, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("read term dict header %s: %w", dictPath, err)
	}
	if magic != termDictMagic {
		return nil, fmt.Errorf("term dict %s: bad magic", dictPath)
	}
	if err := binary.Read(dr, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read term dict version %s: %w", dictPath, err)
	}
	if version != termDictVersion {
		return nil, fmt.Errorf("term dict %s: unsupported version %d (expected %d)", dictPath, version, termDictVersion)
	}
	if err := binary.Read(dr, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read term dict count %s: %w", dictPath, err)
	}

	terms := make(map[string]termDictEntry, count)
	for i := uint32(0); i < count; i++ {
		var termLen uint32
		if err := binary.Read(dr, binary.LittleEndian, &termLen); err != nil {
			return nil, fmt.Errorf("read term dict entry %d in %s: %w", i, dictPath, err)
		}
		termBytes := make([]byte, termLen)
		if _, err := io.ReadFull(dr, termBytes); err != nil {
			return nil, fmt.Errorf("read term %d in %s: %w", i, dictPath, err)
		}
		var e termDictEntry
		if err := binary.Read(dr, binary.LittleEndian, &e.docFreq); err != nil {
			return nil, fmt.Errorf("read doc freq %d in %s: %w", i, dictPath, err)
		}
		if err := binary.Read(dr, binary.LittleEndian, &e.offset); err != nil {
			return nil, fmt.Errorf("read offset %d in %s: %w", i, dictPath, err)
		}
		if err := binary.Read(dr, binary.LittleEndian, &e.length); err != nil {
			return nil, fmt.Errorf("read length %d in %s: %w", i, dictPath, err)
		}
		terms[string(termBytes)] = e
	}

	postingsPath := filepath.Join(dir, postingsFileName)
	pf, err := os.Open(postingsPath)
	if err != nil {
		return nil, fmt.Errorf("open postings file %s: %w", postingsPath, err)
	}

	header := make([]byte, 8)
	if _, err := pf.ReadAt(header, 0); err != nil {
		pf.Close()
		return nil, fmt.Errorf("read postings header %s: %w", postingsPath, err)
	}
	if binary.LittleEndian.Uint32(header[0:4]) != postingsMagic {
		pf.Close()
		return nil, fmt.Errorf("postings file %s: bad magic", postingsPath)
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != postingsVersion {
		pf.Close()
		return nil, fmt.Errorf("postings file %s: unsupported version %d (expected %d)", postingsPath, v, postingsVersion)
	}

	return &diskSegment{dir: dir, terms: terms, postings: pf}, nil
}

// docFrequency returns the segment-local document frequency for term, or 0
// if the segment has no postings for it.
func (s *diskSegment) docFrequency(term string) uint32 {
	return s.terms[term].docFreq
}

// lookup reads and decodes term's postings list, already sorted ascending
// by DocId with no duplicates by construction at write time.
func (s *diskSegment) lookup(term string) ([]Posting, error) {
	e, ok := s.terms[term]
	if !ok {
		return nil, nil
	}

	buf := make([]byte, e.length)
	if _, err := s.postings.ReadAt(buf, e.offset); err != nil {
		return nil, fmt.Errorf("read postings for %q in %s: %w", term, s.dir, err)
	}

	count := binary.LittleEndian.Uint32(buf[0:4])
	postings := make([]Posting, 0, count)
	pos := 4
	for i := uint32(0); i < count; i++ {
		id := binary.LittleEndian.Uint32(buf[pos : pos+4])
		tf := binary.LittleEndian.Uint32(buf[pos+4 : pos+8])
		postings = append(postings, Posting{Doc: id, TF: tf})
		pos += 8
	}
	return postings, nil
}

func (s *diskSegment) close() error {
	return s.postings.Close()
}
