// Package replay reconstructs per-scope trust for a session's active
// branch: it walks the root-to-leaf entry path starting strictly after
// the latest compaction entry (the compaction barrier), applies the
// trust.transitions table entry by entry, and produces a KnowledgeMap.
// It owns the monotonic replay sequence counter, the memoized
// per-(sessionId, leafId, boundary) cache, and the per-leaf overlay —
// the runtime-state pieces that DO have state and DO need locking,
// unlike the pure internal/trust package it drives.
package replay

import (
	"fmt"

	"github.com/Gurpartap/pi-readcache/internal/sessionlog"
)

// boundary locates the replay start index on entries: strictly after
// the latest compaction entry, or 0 if there is none. Per spec.md
// §4.3, FirstKeptEntryID is deliberately never consulted here — the
// barrier is strict regardless of what a compaction entry claims was
// "kept".
func boundary(entries []sessionlog.Entry) (start int, key string) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == sessionlog.KindCompaction {
			return i + 1, fmt.Sprintf("compaction:%s", entries[i].CompactionID)
		}
	}
	return 0, "root"
}

// WindowStart exposes the replay window's start index: the index
// strictly after the latest compaction entry, or 0 if there is none.
// Callers that only need to report on the active window (e.g. a
// status summary) use this instead of replaying trust themselves.
func WindowStart(entries []sessionlog.Entry) int {
	start, _ := boundary(entries)
	return start
}
