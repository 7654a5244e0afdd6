package metadata

// ValidateReadMeta checks every invariant spec.md §4.2 requires of a
// ReadMeta record. Fail-open: callers that get false should treat the
// record as absent, never propagate an error.
func ValidateReadMeta(m *ReadMeta) bool {
	if m == nil || m.V != 1 {
		return false
	}
	if m.PathKey == "" {
		return false
	}
	if _, _, _, ok := ParseScope(m.ScopeKey); !ok {
		return false
	}
	if m.ServedHash == "" {
		return false
	}
	if !m.Mode.valid() {
		return false
	}
	if m.Mode.requiresBaseHash() {
		if m.BaseHash == "" {
			return false
		}
	}
	if m.TotalLines <= 0 || m.RangeStart <= 0 || m.RangeEnd <= 0 {
		return false
	}
	if m.RangeEnd < m.RangeStart {
		return false
	}
	if m.Bytes < 0 {
		return false
	}
	return true
}

// ValidateInvalidation checks the invariants of an Invalidation record.
func ValidateInvalidation(inv *Invalidation) bool {
	if inv == nil || inv.V != 1 {
		return false
	}
	if inv.Kind != InvalidationKind {
		return false
	}
	if inv.PathKey == "" {
		return false
	}
	if _, _, _, ok := ParseScope(inv.ScopeKey); !ok {
		return false
	}
	return true
}

// BuildReadMeta constructs a ReadMeta, returning ok=false if the
// resulting record would fail ValidateReadMeta (the caller passed
// inconsistent arguments).
func BuildReadMeta(pathKey, scopeKey, servedHash, baseHash string, mode Mode, totalLines, rangeStart, rangeEnd, bytes int) (ReadMeta, bool) {
	m := ReadMeta{
		V:          1,
		PathKey:    pathKey,
		ScopeKey:   scopeKey,
		ServedHash: servedHash,
		BaseHash:   baseHash,
		Mode:       mode,
		TotalLines: totalLines,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		Bytes:      bytes,
	}
	if !ValidateReadMeta(&m) {
		return ReadMeta{}, false
	}
	return m, true
}

// BuildInvalidation constructs an Invalidation record.
func BuildInvalidation(pathKey, scopeKey string, atUnixMilli int64) (Invalidation, bool) {
	inv := Invalidation{
		V:        1,
		Kind:     InvalidationKind,
		PathKey:  pathKey,
		ScopeKey: scopeKey,
		At:       atUnixMilli,
	}
	if !ValidateInvalidation(&inv) {
		return Invalidation{}, false
	}
	return inv, true
}

// ExtractReadMeta decodes a raw untyped record (as read out of a
// session entry's details area) into a ReadMeta, returning ok=false on
// any shape mismatch or validation failure. No error is ever returned:
// this layer is fail-open per spec.
func ExtractReadMeta(raw map[string]any) (ReadMeta, bool) {
	m := ReadMeta{}
	v, ok := asInt(raw["v"])
	if !ok {
		return ReadMeta{}, false
	}
	m.V = v
	m.PathKey, _ = raw["pathKey"].(string)
	m.ScopeKey, _ = raw["scopeKey"].(string)
	m.ServedHash, _ = raw["servedHash"].(string)
	m.BaseHash, _ = raw["baseHash"].(string)
	modeStr, _ := raw["mode"].(string)
	m.Mode = Mode(modeStr)
	if n, ok := asInt(raw["totalLines"]); ok {
		m.TotalLines = n
	}
	if n, ok := asInt(raw["rangeStart"]); ok {
		m.RangeStart = n
	}
	if n, ok := asInt(raw["rangeEnd"]); ok {
		m.RangeEnd = n
	}
	if n, ok := asInt(raw["bytes"]); ok {
		m.Bytes = n
	}
	if !ValidateReadMeta(&m) {
		return ReadMeta{}, false
	}
	return m, true
}

// ExtractInvalidation decodes a raw untyped record into an
// Invalidation, fail-open like ExtractReadMeta.
func ExtractInvalidation(raw map[string]any) (Invalidation, bool) {
	inv := Invalidation{}
	v, ok := asInt(raw["v"])
	if !ok {
		return Invalidation{}, false
	}
	inv.V = v
	inv.Kind, _ = raw["kind"].(string)
	inv.PathKey, _ = raw["pathKey"].(string)
	inv.ScopeKey, _ = raw["scopeKey"].(string)
	if n, ok := asInt(raw["at"]); ok {
		inv.At = int64(n)
	}
	if !ValidateInvalidation(&inv) {
		return Invalidation{}, false
	}
	return inv, true
}

// asInt accepts the numeric shapes that come out of encoding/json
// (float64) as well as plain ints, since raw records may originate
// either from a freshly decoded JSON blob or from in-process structs.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
