package sessionlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Gurpartap/pi-readcache/internal/metadata"
	"github.com/google/uuid"
)

// recordType discriminates JSONL lines, mirroring the host's own
// header/event/footer record tagging convention.
type recordType string

const (
	recordHeader recordType = "session"
	recordEntry  recordType = "entry"
)

type fileRecord struct {
	Type recordType `json:"_type"`
	// Header fields.
	SessionID string `json:"sessionId,omitempty"`
	// Entry fields: embedded verbatim.
	Entry
}

// FileManager is a Manager backed by an append-only JSONL file, one
// record per line: a single header record followed by entry records.
// Grounded on bitop-dev-agent's session.go (parent_id-linked entries,
// append-only writer) and on internal/session/session.go's JSONL
// header/event/footer record-typing convention.
type FileManager struct {
	*MemoryManager
	path string
	f    *os.File
	w    *bufio.Writer
}

// Create starts a brand-new session file under dir.
func Create(dir string) (*FileManager, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	mm := NewMemoryManager()
	path := filepath.Join(dir, mm.sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}
	fm := &FileManager{MemoryManager: mm, path: path, f: f, w: bufio.NewWriter(f)}
	if err := fm.writeRecord(fileRecord{Type: recordHeader, SessionID: mm.sessionID}); err != nil {
		f.Close()
		return nil, err
	}
	return fm, nil
}

// Load reopens a session file for append, replaying its entries into
// an in-memory MemoryManager first.
func Load(path string) (*FileManager, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0o600)
	if err != nil {
		return nil, err
	}
	mm := NewMemoryManager()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec fileRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue // fail-open: skip malformed lines
		}
		switch rec.Type {
		case recordHeader:
			mm.sessionID = rec.SessionID
		case recordEntry:
			e := rec.Entry
			mm.byID[e.ID] = e
			mm.order = append(mm.order, e.ID)
			mm.leafID = e.ID
		}
	}
	f.Close()
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	wf, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	return &FileManager{MemoryManager: mm, path: path, f: wf, w: bufio.NewWriter(wf)}, nil
}

func (fm *FileManager) writeRecord(rec fileRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := fm.w.Write(b); err != nil {
		return err
	}
	if err := fm.w.WriteByte('\n'); err != nil {
		return err
	}
	return fm.w.Flush()
}

func (fm *FileManager) appendAndPersist(e Entry) (Entry, error) {
	e.ID = uuid.NewString()[:8]
	e.ParentID = fm.leafID
	fm.byID[e.ID] = e
	fm.order = append(fm.order, e.ID)
	fm.leafID = e.ID
	if err := fm.writeRecord(fileRecord{Type: recordEntry, Entry: e}); err != nil {
		return Entry{}, fmt.Errorf("sessionlog: write entry: %w", err)
	}
	return e, nil
}

func (fm *FileManager) AppendReadResultPersisted(rm *metadata.ReadMeta) (Entry, error) {
	return fm.appendAndPersist(Entry{Kind: KindReadResult, ReadMeta: rm})
}

func (fm *FileManager) AppendInvalidationPersisted(inv *metadata.Invalidation) (Entry, error) {
	return fm.appendAndPersist(Entry{Kind: KindInvalidation, Invalidation: inv})
}

func (fm *FileManager) AppendCompactionPersisted(firstKeptEntryID string) (Entry, error) {
	return fm.appendAndPersist(Entry{Kind: KindCompaction, CompactionID: uuid.NewString()[:8], FirstKeptEntryID: firstKeptEntryID})
}

// Close flushes and closes the underlying file.
func (fm *FileManager) Close() error {
	fm.w.Flush()
	return fm.f.Close()
}

// Path returns the on-disk file path for this session.
func (fm *FileManager) Path() string { return fm.path }
