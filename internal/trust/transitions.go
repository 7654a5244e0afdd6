package trust

import "github.com/Gurpartap/pi-readcache/internal/metadata"

// ApplyReadMeta applies one ReadMeta transition to k at the given
// sequence number, per the §4.3 transition table. Anchor modes (full,
// baseline_fallback) bootstrap trust unconditionally; derived modes
// (unchanged, diff, unchanged_range) only advance trust when their
// guard against existing trust is satisfied. Any other mode, or a
// guard that fails, leaves k unchanged.
func ApplyReadMeta(k *KnowledgeMap, m metadata.ReadMeta, seq uint64) {
	isRange, _, _, ok := metadata.ParseScope(m.ScopeKey)
	if !ok {
		return
	}

	switch m.Mode {
	case metadata.ModeFull, metadata.ModeBaselineFallback:
		k.set(m.PathKey, m.ScopeKey, ScopeTrust{Hash: m.ServedHash, Seq: seq})
		if isRange {
			// A fresh anchor for this exact range lifts any earlier
			// range-invalidation block (§4.3 base-candidate note).
			k.unblockRange(m.PathKey, m.ScopeKey)
		}

	case metadata.ModeUnchanged:
		if isRange {
			return // unchanged is full-scope only per the transition table
		}
		tFull, hasFull := k.Get(m.PathKey, metadata.FullScope)
		if m.BaseHash == "" || !hasFull || tFull.Hash != m.BaseHash || m.ServedHash != m.BaseHash {
			return
		}
		k.set(m.PathKey, metadata.FullScope, ScopeTrust{Hash: m.ServedHash, Seq: seq})

	case metadata.ModeDiff:
		if isRange {
			return // diff is full-scope only per the transition table
		}
		tFull, hasFull := k.Get(m.PathKey, metadata.FullScope)
		if m.BaseHash == "" || !hasFull || tFull.Hash != m.BaseHash {
			return
		}
		k.set(m.PathKey, metadata.FullScope, ScopeTrust{Hash: m.ServedHash, Seq: seq})

	case metadata.ModeUnchangedRange:
		if !isRange {
			return
		}
		if m.BaseHash == "" {
			return
		}
		tScope, hasScope := k.Get(m.PathKey, m.ScopeKey)
		tFull, hasFull := k.Get(m.PathKey, metadata.FullScope)
		guard := (hasScope && tScope.Hash == m.BaseHash) || (hasFull && tFull.Hash == m.BaseHash)
		if !guard {
			return
		}
		k.set(m.PathKey, m.ScopeKey, ScopeTrust{Hash: m.ServedHash, Seq: seq})

	default:
		// Unrecognized mode: ignore.
	}
}

// ApplyInvalidation applies an explicit Invalidation to k, per §4.3.
// A full-scope invalidation clears the full slot and every range slot
// for the path; a range invalidation clears only that range slot and
// marks it blocked (see SelectBaseCandidate) until a fresh, exact-range
// anchor lands.
func ApplyInvalidation(k *KnowledgeMap, inv metadata.Invalidation) {
	isRange, _, _, ok := metadata.ParseScope(inv.ScopeKey)
	if !ok {
		return
	}
	if !isRange {
		k.deletePath(inv.PathKey)
		return
	}
	k.deleteScope(inv.PathKey, inv.ScopeKey)
	k.blockRange(inv.PathKey, inv.ScopeKey)
}

// Candidate is a base-hash candidate selected for a decision, together
// with the scope it came from (full or the exact requested range).
type Candidate struct {
	ScopeTrust
	FromFull bool
}

// SelectBaseCandidate implements §4.3's base-candidate-selection
// algorithm for a requested scope R (isRangeRequest, requestScope).
func SelectBaseCandidate(k *KnowledgeMap, pathKey, requestScope string, isRangeRequest bool) (Candidate, bool) {
	if !isRangeRequest {
		t, ok := k.Get(pathKey, metadata.FullScope)
		if !ok {
			return Candidate{}, false
		}
		return Candidate{ScopeTrust: t, FromFull: true}, true
	}

	if k.isRangeBlocked(pathKey, requestScope) {
		// A range invalidation for this exact range is in effect and no
		// fresh range-scope anchor has re-established it yet: neither
		// the stale exact-range trust nor a full-scope anchor may serve
		// as a candidate for R, so a post-invalidation full-scope anchor
		// cannot silently re-enable range trust.
		return Candidate{}, false
	}

	cExact, hasExact := k.Get(pathKey, requestScope)
	cFull, hasFull := k.Get(pathKey, metadata.FullScope)

	switch {
	case !hasExact && !hasFull:
		return Candidate{}, false
	case hasExact && !hasFull:
		return Candidate{ScopeTrust: cExact, FromFull: false}, true
	case !hasExact && hasFull:
		return Candidate{ScopeTrust: cFull, FromFull: true}, true
	default:
		if cExact.Seq >= cFull.Seq {
			return Candidate{ScopeTrust: cExact, FromFull: false}, true
		}
		return Candidate{ScopeTrust: cFull, FromFull: true}, true
	}
}
