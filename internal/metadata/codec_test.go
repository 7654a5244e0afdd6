package metadata

import "testing"

func TestScopeKey_CanonicalizesFullRange(t *testing.T) {
	if got := ScopeKey(1, 10, 10); got != FullScope {
		t.Errorf("expected full, got %s", got)
	}
	if got := ScopeKey(2, 10, 10); got != "r:2:10" {
		t.Errorf("expected r:2:10, got %s", got)
	}
}

func TestParseScope(t *testing.T) {
	if isRange, _, _, ok := ParseScope(FullScope); !ok || isRange {
		t.Fatalf("full scope should parse as non-range")
	}
	isRange, s, e, ok := ParseScope("r:5:9")
	if !ok || !isRange || s != 5 || e != 9 {
		t.Fatalf("unexpected parse: %v %v %v %v", isRange, s, e, ok)
	}
	if _, _, _, ok := ParseScope("r:9:5"); ok {
		t.Errorf("end < start should not parse")
	}
	if _, _, _, ok := ParseScope("bogus"); ok {
		t.Errorf("garbage scope should not parse")
	}
}

func TestBuildReadMeta_RejectsInconsistentBaseHash(t *testing.T) {
	if _, ok := BuildReadMeta("a.txt", FullScope, "h1", "", ModeUnchanged, 3, 1, 3, 12); ok {
		t.Errorf("unchanged without baseHash must be rejected")
	}
	if _, ok := BuildReadMeta("a.txt", FullScope, "h1", "", ModeFull, 3, 1, 3, 12); !ok {
		t.Errorf("full mode without baseHash should be valid")
	}
}

func TestExtractReadMeta_FailsOpenOnMalformed(t *testing.T) {
	raw := map[string]any{"v": float64(1), "pathKey": "a.txt"}
	if _, ok := ExtractReadMeta(raw); ok {
		t.Errorf("incomplete record must fail open, not validate")
	}
}

func TestExtractReadMeta_RoundTrip(t *testing.T) {
	raw := map[string]any{
		"v": float64(1), "pathKey": "a.txt", "scopeKey": "full",
		"servedHash": "abc", "mode": "full",
		"totalLines": float64(3), "rangeStart": float64(1), "rangeEnd": float64(3),
		"bytes": float64(10),
	}
	m, ok := ExtractReadMeta(raw)
	if !ok {
		t.Fatalf("expected valid record")
	}
	if m.Mode != ModeFull || m.TotalLines != 3 {
		t.Errorf("unexpected decode: %+v", m)
	}
}

func TestBuildInvalidation(t *testing.T) {
	if _, ok := BuildInvalidation("a.txt", FullScope, 100); !ok {
		t.Fatalf("expected valid invalidation")
	}
	if _, ok := BuildInvalidation("", FullScope, 100); ok {
		t.Errorf("empty pathKey must be rejected")
	}
}
