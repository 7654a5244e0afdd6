// Package sessionlog is the reference host adapter: a branching,
// compactable session entry stream good enough to drive the read-cache
// core standalone, and to exercise the CLI and test suite. It is not
// itself part of the core's correctness contract (spec.md §1 delegates
// "how the host stores its session" entirely to the host) — see
// DESIGN.md for why this exists and what it's grounded on.
package sessionlog

import "github.com/Gurpartap/pi-readcache/internal/metadata"

// Kind tags the heterogeneous entry shapes the replay engine cares
// about (spec.md §9's "tagged variant" pattern). Entries of a kind the
// core doesn't recognize keep their raw Kind string when decoded and,
// like KindOther, are skipped during replay.
type Kind string

const (
	KindReadResult   Kind = "read_result"
	KindInvalidation Kind = "invalidation"
	KindCompaction   Kind = "compaction"
	KindBranch       Kind = "branch"
	KindOther        Kind = "other"
)

// Entry is one node in the session's entry stream. ParentID chains
// entries into a tree; the active branch path is the chain from the
// session root to the active leaf.
type Entry struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId,omitempty"`
	Kind     Kind   `json:"kind"`

	ReadMeta     *metadata.ReadMeta     `json:"readMeta,omitempty"`
	Invalidation *metadata.Invalidation `json:"invalidation,omitempty"`

	// CompactionID identifies a compaction entry; FirstKeptEntryID is
	// carried for completeness but MUST be ignored by trust replay
	// (spec.md §4.3: the compaction barrier is strict).
	CompactionID     string `json:"compactionId,omitempty"`
	FirstKeptEntryID string `json:"firstKeptEntryId,omitempty"`

	// BranchParentID/BranchSummary are set on the first entry of a
	// forked session, linking it back to the entry it branched from.
	BranchParentID string `json:"branchParentId,omitempty"`
	BranchSummary  string `json:"branchSummary,omitempty"`
}
