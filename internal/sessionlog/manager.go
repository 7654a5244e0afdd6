package sessionlog

import (
	"fmt"
	"time"

	"github.com/Gurpartap/pi-readcache/internal/metadata"
	"github.com/google/uuid"
)

// Manager is the session-manager facade the replay engine depends on
// (spec.md §9): no concrete dependency on how the host stores data.
type Manager interface {
	SessionID() string
	LeafID() string
	// BranchEntries returns the ordered root-to-leaf sequence of
	// entries for the active branch.
	BranchEntries() []Entry
	// Entries returns every entry the manager knows about, in no
	// particular cross-branch order; used for inspection and tests.
	Entries() []Entry
	Entry(id string) (Entry, bool)
}

// MemoryManager is an in-process Manager backed by a map of entries by
// ID plus an insertion-order slice, sufficient for tests and for
// driving the CLI without a real host.
type MemoryManager struct {
	sessionID string
	leafID    string
	byID      map[string]Entry
	order     []string // insertion order, for Entries()
}

// NewMemoryManager creates a fresh session with no entries.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		sessionID: newID(),
		byID:      make(map[string]Entry),
	}
}

func newID() string {
	return uuid.NewString()[:8]
}

func (m *MemoryManager) SessionID() string { return m.sessionID }
func (m *MemoryManager) LeafID() string    { return m.leafID }

func (m *MemoryManager) Entry(id string) (Entry, bool) {
	e, ok := m.byID[id]
	return e, ok
}

func (m *MemoryManager) Entries() []Entry {
	out := make([]Entry, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out
}

// BranchEntries walks ParentID links from the leaf back to the root
// and returns them in root-to-leaf order.
func (m *MemoryManager) BranchEntries() []Entry {
	return branchPath(m.byID, m.leafID)
}

func branchPath(byID map[string]Entry, leafID string) []Entry {
	var reversed []Entry
	id := leafID
	for id != "" {
		e, ok := byID[id]
		if !ok {
			break
		}
		reversed = append(reversed, e)
		id = e.ParentID
	}
	out := make([]Entry, len(reversed))
	for i, e := range reversed {
		out[len(reversed)-1-i] = e
	}
	return out
}

// append adds an entry as the new leaf, parented to the current leaf.
func (m *MemoryManager) append(e Entry) Entry {
	e.ID = newID()
	e.ParentID = m.leafID
	m.byID[e.ID] = e
	m.order = append(m.order, e.ID)
	m.leafID = e.ID
	return e
}

// AppendReadResult appends a read-result entry and returns it.
func (m *MemoryManager) AppendReadResult(rm *metadata.ReadMeta) Entry {
	return m.append(Entry{Kind: KindReadResult, ReadMeta: rm})
}

// AppendInvalidation appends an invalidation entry and returns it.
func (m *MemoryManager) AppendInvalidation(inv *metadata.Invalidation) Entry {
	return m.append(Entry{Kind: KindInvalidation, Invalidation: inv})
}

// AppendCompaction appends a compaction marker entry.
func (m *MemoryManager) AppendCompaction(firstKeptEntryID string) Entry {
	return m.append(Entry{Kind: KindCompaction, CompactionID: newID(), FirstKeptEntryID: firstKeptEntryID})
}

// Fork creates a new, independent leaf chain branching off id: the
// new leaf's ParentID is id, and a branch marker entry records the
// fork for forensic purposes. The manager's active leaf moves to the
// new branch. Mirrors other_examples' bitop-dev-agent Fork, simplified
// to operate in a single manager's entry space instead of spawning a
// new session file.
func (m *MemoryManager) Fork(id, summary string) (Entry, error) {
	if _, ok := m.byID[id]; !ok {
		return Entry{}, fmt.Errorf("sessionlog: fork point %q not found", id)
	}
	m.leafID = id
	e := m.append(Entry{Kind: KindBranch, BranchParentID: id, BranchSummary: summary})
	return e, nil
}

// SwitchLeaf moves the active leaf pointer to id without appending
// anything (navigating to an existing branch tip).
func (m *MemoryManager) SwitchLeaf(id string) error {
	if _, ok := m.byID[id]; !ok {
		return fmt.Errorf("sessionlog: leaf %q not found", id)
	}
	m.leafID = id
	return nil
}

// Now returns the current time in Unix milliseconds, as Invalidation
// timestamps carry it; a var so tests can override it. Neither
// MemoryManager nor FileManager calls it: callers build the
// Invalidation, timestamp included, before appending it.
var Now = func() int64 { return time.Now().UnixMilli() }
