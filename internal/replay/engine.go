package replay

import (
	"context"
	"sync"

	"github.com/Gurpartap/pi-readcache/internal/metadata"
	"github.com/Gurpartap/pi-readcache/internal/sessionlog"
	"github.com/Gurpartap/pi-readcache/internal/telemetry"
	"github.com/Gurpartap/pi-readcache/internal/trust"
)

// TransitionRecord is one step of a forensic replay trace: which entry
// was visited, what it did (or why it was ignored). Populated only
// when a caller asks for a trace; it never affects replay's actual
// trust outcome.
type TransitionRecord struct {
	Index    int
	EntryID  string
	Kind     sessionlog.Kind
	Mode     metadata.Mode
	PathKey  string
	ScopeKey string
	Applied  bool
	Reason   string // why it was/wasn't applied
}

type cacheKey struct {
	sessionID string
	leafID    string
	boundary  string
}

type leafKey struct {
	sessionID string
	leafID    string
}

// Engine owns the runtime-state the replay/overlay model requires:
// the memoized replay cache and the per-(sessionId, leafId) overlay.
// Locking is sharded per leafKey rather than global, so unrelated
// sessions never contend (spec.md §5 explicitly permits either choice;
// this implementation shards).
type Engine struct {
	shards sync.Map // leafKey -> *shard
}

type shard struct {
	mu      sync.Mutex
	cached  map[string]*trust.KnowledgeMap // boundary -> knowledge map
	overlay *trust.KnowledgeMap
	nextSeq uint64
}

// New returns an empty Engine.
func New() *Engine {
	return &Engine{}
}

func (e *Engine) shardFor(sessionID, leafID string) *shard {
	k := leafKey{sessionID, leafID}
	v, _ := e.shards.LoadOrStore(k, &shard{
		cached:  make(map[string]*trust.KnowledgeMap),
		overlay: trust.NewKnowledgeMap(),
		nextSeq: trust.OverlaySeqBase,
	})
	return v.(*shard)
}

// Knowledge replays entries (the active branch path for leafID) under
// the compaction barrier, merges the (sessionId, leafId) overlay on
// top, and returns a clone safe for the caller to read or discard.
// trace, if non-nil, is appended with one TransitionRecord per visited
// post-boundary entry.
func (e *Engine) Knowledge(sessionID, leafID string, entries []sessionlog.Entry, trace *[]TransitionRecord) *trust.KnowledgeMap {
	start, boundaryKey := boundary(entries)

	sh := e.shardFor(sessionID, leafID)
	sh.mu.Lock()
	var base *trust.KnowledgeMap
	if trace == nil {
		if cached, ok := sh.cached[boundaryKey]; ok {
			base = cached.Clone()
		}
	}
	if base == nil {
		base = replayFrom(entries, start, trace)
		if trace == nil {
			sh.cached[boundaryKey] = base.Clone()
		}
	}
	merged := trust.Merge(base, sh.overlay)
	sh.mu.Unlock()

	return merged
}

// replayFrom applies the transition table to entries[start:], starting
// the replay sequence counter at 1.
func replayFrom(entries []sessionlog.Entry, start int, trace *[]TransitionRecord) *trust.KnowledgeMap {
	k := trust.NewKnowledgeMap()
	var seq uint64
	for i := start; i < len(entries); i++ {
		entry := entries[i]
		switch entry.Kind {
		case sessionlog.KindReadResult:
			if entry.ReadMeta == nil || !metadata.ValidateReadMeta(entry.ReadMeta) {
				recordTrace(trace, i, entry, "", "", false, "invalid ReadMeta")
				continue
			}
			before, hadBefore := k.Get(entry.ReadMeta.PathKey, entry.ReadMeta.ScopeKey)
			seq++
			trust.ApplyReadMeta(k, *entry.ReadMeta, seq)
			after, hasAfter := k.Get(entry.ReadMeta.PathKey, entry.ReadMeta.ScopeKey)
			applied := hasAfter && (!hadBefore || before != after)
			reason := "guard satisfied"
			if !applied {
				reason = "guard failed"
			}
			recordTrace(trace, i, entry, entry.ReadMeta.Mode, entry.ReadMeta.ScopeKey, applied, reason)

		case sessionlog.KindInvalidation:
			if entry.Invalidation == nil || !metadata.ValidateInvalidation(entry.Invalidation) {
				recordTrace(trace, i, entry, "", "", false, "invalid Invalidation")
				continue
			}
			trust.ApplyInvalidation(k, *entry.Invalidation)
			recordTrace(trace, i, entry, "", entry.Invalidation.ScopeKey, true, "invalidated")

		default:
			recordTrace(trace, i, entry, "", "", false, "not a trust-bearing entry kind")
		}
	}
	return k
}

func recordTrace(trace *[]TransitionRecord, idx int, e sessionlog.Entry, mode metadata.Mode, scope string, applied bool, reason string) {
	if trace == nil {
		return
	}
	pathKey := ""
	if e.ReadMeta != nil {
		pathKey = e.ReadMeta.PathKey
	} else if e.Invalidation != nil {
		pathKey = e.Invalidation.PathKey
	}
	*trace = append(*trace, TransitionRecord{
		Index: idx, EntryID: e.ID, Kind: e.Kind, Mode: mode,
		PathKey: pathKey, ScopeKey: scope, Applied: applied, Reason: reason,
	})
}

// OverlayUpdate records (pathKey, scopeKey, hash) in the overlay for
// (sessionId, leafId), using the next sequence value from the reserved
// high-valued band so it always out-ranks replay-derived trust.
func (e *Engine) OverlayUpdate(sessionID, leafID, pathKey, scopeKey, hash string) {
	sh := e.shardFor(sessionID, leafID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.nextSeq++
	sh.overlay.SetForOverlay(pathKey, scopeKey, trust.ScopeTrust{Hash: hash, Seq: sh.nextSeq})
}

// KnowledgeTraced is Knowledge wrapped in an OTel span, for callers
// that want replay's cost visible in a trace (the core replay/trust
// machinery itself takes no context and has no suspension points;
// this wrapper is purely an observability seam around it).
func (e *Engine) KnowledgeTraced(ctx context.Context, sessionID, leafID string, entries []sessionlog.Entry, trace *[]TransitionRecord) *trust.KnowledgeMap {
	_, span := telemetry.StartReplaySpan(ctx, sessionID, leafID)
	km := e.Knowledge(sessionID, leafID, entries, trace)
	telemetry.EndReplaySpan(span, len(entries), nil)
	return km
}

// Clear discards the memoized replay cache and overlay for
// (sessionId, leafId). Wired to the host's lifecycle hooks
// (session_compact, session_tree, session_fork, session_switch,
// session_shutdown): they never mutate canonical session-history state,
// only this runtime-state cache.
func (e *Engine) Clear(sessionID, leafID string) {
	e.shards.Delete(leafKey{sessionID, leafID})
}

// ClearSession discards every leaf's runtime state for a session, for
// session_shutdown where the leaf set isn't known up front.
func (e *Engine) ClearSession(sessionID string) {
	e.shards.Range(func(k, _ any) bool {
		if lk := k.(leafKey); lk.sessionID == sessionID {
			e.shards.Delete(lk)
		}
		return true
	})
}
