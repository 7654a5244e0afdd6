package decision

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gurpartap/pi-readcache/internal/metadata"
	"github.com/Gurpartap/pi-readcache/internal/objectstore"
	"github.com/Gurpartap/pi-readcache/internal/replay"
	"github.com/Gurpartap/pi-readcache/internal/sessionlog"
)

// removeObject deletes a stored blob directly from disk, bypassing the
// store's own API, to simulate accidental loss of a base object.
func removeObject(t *testing.T, store *objectstore.Store, hash string) {
	t.Helper()
	path := filepath.Join(store.Dir, "objects", "sha256-"+hash+".txt")
	if err := os.Remove(path); err != nil {
		t.Fatalf("removeObject: %v", err)
	}
}

// The tests in this file exercise the seven seed scenarios named in
// spec.md: one read-decide sequence each, asserting the exact mode and
// marker text spec.md specifies.

func appendRead(t *testing.T, mgr *sessionlog.MemoryManager, host *HostContext, res Result) {
	t.Helper()
	if res.Meta != nil {
		mgr.AppendReadResult(res.Meta)
		host.LeafID = mgr.LeafID()
	}
}

func numberedLines(n int, format func(i int) string) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		b.WriteString(format(i))
		b.WriteString("\n")
	}
	return b.String()
}

// S1 — Unchanged full.
func TestScenario_S1_UnchangedFull(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha\nbeta\ngamma\n")
	engine, _ := newTestEngine(t)
	mgr := sessionlog.NewMemoryManager()
	host := newHost(dir, mgr)

	res1, err := engine.Decide(context.Background(), Request{Path: "a.txt"}, host)
	if err != nil {
		t.Fatalf("first Decide: %v", err)
	}
	if res1.Meta.Mode != metadata.ModeFull {
		t.Fatalf("got mode %v, want full", res1.Meta.Mode)
	}
	if res1.Text != "alpha\nbeta\ngamma" {
		t.Fatalf("got text %q, want full file content", res1.Text)
	}
	appendRead(t, mgr, host, res1)

	res2, err := engine.Decide(context.Background(), Request{Path: "a.txt"}, host)
	if err != nil {
		t.Fatalf("second Decide: %v", err)
	}
	if res2.Meta.Mode != metadata.ModeUnchanged {
		t.Fatalf("got mode %v, want unchanged", res2.Meta.Mode)
	}
	if res2.Text != "[readcache: unchanged, 3 lines]" {
		t.Fatalf("got text %q, want the unchanged marker", res2.Text)
	}
}

// S2 — Diff emission.
func TestScenario_S2_DiffEmission(t *testing.T) {
	dir := t.TempDir()
	original := numberedLines(300, func(i int) string { return "line " + itoa(i) + " :: original text payload" })
	path := writeFile(t, dir, "b.txt", original)
	engine, _ := newTestEngine(t)
	mgr := sessionlog.NewMemoryManager()
	host := newHost(dir, mgr)

	res1, err := engine.Decide(context.Background(), Request{Path: "b.txt"}, host)
	if err != nil {
		t.Fatalf("first Decide: %v", err)
	}
	if res1.Meta.Mode != metadata.ModeFull {
		t.Fatalf("got mode %v, want full", res1.Meta.Mode)
	}
	appendRead(t, mgr, host, res1)

	lines := strings.Split(strings.TrimSuffix(original, "\n"), "\n")
	lines[199] = "line 200 :: changed text payload"
	modified := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(modified), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	res2, err := engine.Decide(context.Background(), Request{Path: "b.txt"}, host)
	if err != nil {
		t.Fatalf("second Decide: %v", err)
	}
	if res2.Meta.Mode != metadata.ModeDiff {
		t.Fatalf("got mode %v, want diff", res2.Meta.Mode)
	}
	if !strings.HasPrefix(res2.Text, "[readcache: 1 lines changed of 300]") {
		t.Fatalf("got text %q, want it to start with the diff marker", res2.Text)
	}
	if !strings.Contains(res2.Text, "-line 200 :: original text payload") {
		t.Fatalf("diff missing removed line: %q", res2.Text)
	}
	if !strings.Contains(res2.Text, "+line 200 :: changed text payload") {
		t.Fatalf("diff missing added line: %q", res2.Text)
	}
}

// S3 — Range outside-edit.
func TestScenario_S3_RangeOutsideEdit(t *testing.T) {
	dir := t.TempDir()
	original := numberedLines(400, func(i int) string { return "line " + itoa(i) })
	path := writeFile(t, dir, "c.txt", original)
	engine, _ := newTestEngine(t)
	mgr := sessionlog.NewMemoryManager()
	host := newHost(dir, mgr)

	anchor, err := engine.Decide(context.Background(), Request{Path: "c.txt"}, host)
	if err != nil {
		t.Fatalf("anchor Decide: %v", err)
	}
	appendRead(t, mgr, host, anchor)

	off, lim := 160, 90 // lines 160-249
	res1, err := engine.Decide(context.Background(), Request{Path: "c.txt", Offset: &off, Limit: &lim}, host)
	if err != nil {
		t.Fatalf("range Decide: %v", err)
	}
	if res1.Meta.Mode != metadata.ModeUnchangedRange {
		t.Fatalf("got mode %v, want unchanged_range", res1.Meta.Mode)
	}
	appendRead(t, mgr, host, res1)

	lines := strings.Split(strings.TrimSuffix(original, "\n"), "\n")
	lines[299] = "line 300 updated"
	modified := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(modified), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	res2, err := engine.Decide(context.Background(), Request{Path: "c.txt", Offset: &off, Limit: &lim}, host)
	if err != nil {
		t.Fatalf("second range Decide: %v", err)
	}
	if res2.Meta.Mode != metadata.ModeUnchangedRange {
		t.Fatalf("got mode %v, want unchanged_range", res2.Meta.Mode)
	}
	if !strings.Contains(res2.Text, "changes exist outside this range") {
		t.Fatalf("got text %q, want the outside-range marker", res2.Text)
	}
	appendRead(t, mgr, host, res2)

	off2, lim2 := 100, 250 // lines 100-349
	res3, err := engine.Decide(context.Background(), Request{Path: "c.txt", Offset: &off2, Limit: &lim2}, host)
	if err != nil {
		t.Fatalf("wider range Decide: %v", err)
	}
	if res3.Meta.Mode != metadata.ModeBaselineFallback {
		t.Fatalf("got mode %v, want baseline_fallback", res3.Meta.Mode)
	}
	if !strings.Contains(res3.Text, "line 300 updated") {
		t.Fatalf("got text %q, want it to contain the updated line", res3.Text)
	}
}

// S4 — Range shift.
func TestScenario_S4_RangeShift(t *testing.T) {
	dir := t.TempDir()
	original := numberedLines(200, func(i int) string { return "line " + itoa(i) })
	path := writeFile(t, dir, "d.txt", original)
	engine, _ := newTestEngine(t)
	mgr := sessionlog.NewMemoryManager()
	host := newHost(dir, mgr)

	anchor, err := engine.Decide(context.Background(), Request{Path: "d.txt"}, host)
	if err != nil {
		t.Fatalf("anchor Decide: %v", err)
	}
	appendRead(t, mgr, host, anchor)

	modified := "inserted header line\n" + original
	if err := os.WriteFile(path, []byte(modified), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	off, lim := 100, 21 // lines 100-120 of the post-edit file
	res, err := engine.Decide(context.Background(), Request{Path: "d.txt", Offset: &off, Limit: &lim}, host)
	if err != nil {
		t.Fatalf("range Decide: %v", err)
	}
	if res.Meta.Mode != metadata.ModeBaselineFallback {
		t.Fatalf("got mode %v, want baseline_fallback", res.Meta.Mode)
	}
	if !strings.Contains(res.Text, "line 99") {
		t.Fatalf("got text %q, want it to contain the shifted line 99", res.Text)
	}
}

// S5 — Strict compaction barrier.
func TestScenario_S5_StrictCompactionBarrier(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "e.txt", "one\ntwo\nthree\n")
	engine, _ := newTestEngine(t)
	mgr := sessionlog.NewMemoryManager()
	host := newHost(dir, mgr)

	res1, err := engine.Decide(context.Background(), Request{Path: "e.txt"}, host)
	if err != nil {
		t.Fatalf("first Decide: %v", err)
	}
	if res1.Meta.Mode != metadata.ModeFull {
		t.Fatalf("got mode %v, want full", res1.Meta.Mode)
	}
	appendRead(t, mgr, host, res1)

	res2, err := engine.Decide(context.Background(), Request{Path: "e.txt"}, host)
	if err != nil {
		t.Fatalf("second Decide: %v", err)
	}
	if res2.Meta.Mode != metadata.ModeUnchanged {
		t.Fatalf("got mode %v, want unchanged", res2.Meta.Mode)
	}
	appendRead(t, mgr, host, res2)

	mgr.AppendCompaction("ignored")
	host.LeafID = mgr.LeafID()

	res3, err := engine.Decide(context.Background(), Request{Path: "e.txt"}, host)
	if err != nil {
		t.Fatalf("post-compaction Decide: %v", err)
	}
	if res3.Meta.Mode != metadata.ModeFull && res3.Meta.Mode != metadata.ModeBaselineFallback {
		t.Fatalf("got mode %v, want full or baseline_fallback, never unchanged", res3.Meta.Mode)
	}
}

// S6 — Refresh durability.
func TestScenario_S6_RefreshDurability(t *testing.T) {
	dir := t.TempDir()
	sessionDir := t.TempDir()
	writeFile(t, dir, "f.txt", "one\ntwo\n")
	engine, _ := newTestEngine(t)

	fm, err := sessionlog.Create(sessionDir)
	if err != nil {
		t.Fatalf("sessionlog.Create: %v", err)
	}
	host := newHost(dir, fm)

	res1, err := engine.Decide(context.Background(), Request{Path: "f.txt"}, host)
	if err != nil {
		t.Fatalf("first Decide: %v", err)
	}
	if res1.Meta.Mode != metadata.ModeFull {
		t.Fatalf("got mode %v, want full", res1.Meta.Mode)
	}
	if _, err := fm.AppendReadResultPersisted(res1.Meta); err != nil {
		t.Fatalf("AppendReadResultPersisted: %v", err)
	}
	host.LeafID = fm.LeafID()

	res2, err := engine.Decide(context.Background(), Request{Path: "f.txt"}, host)
	if err != nil {
		t.Fatalf("second Decide: %v", err)
	}
	if res2.Meta.Mode != metadata.ModeUnchanged {
		t.Fatalf("got mode %v, want unchanged", res2.Meta.Mode)
	}
	if _, err := fm.AppendReadResultPersisted(res2.Meta); err != nil {
		t.Fatalf("AppendReadResultPersisted: %v", err)
	}
	host.LeafID = fm.LeafID()

	inv, ok := metadata.BuildInvalidation(res2.Meta.PathKey, metadata.FullScope, 1)
	if !ok {
		t.Fatalf("BuildInvalidation failed")
	}
	if _, err := fm.AppendInvalidationPersisted(&inv); err != nil {
		t.Fatalf("AppendInvalidationPersisted: %v", err)
	}
	host.LeafID = fm.LeafID()

	res3, err := engine.Decide(context.Background(), Request{Path: "f.txt"}, host)
	if err != nil {
		t.Fatalf("post-refresh Decide: %v", err)
	}
	if res3.Meta.Mode != metadata.ModeFull {
		t.Fatalf("got mode %v, want full after refresh", res3.Meta.Mode)
	}
	// res3 is not appended: the persisted branch ends at the
	// invalidation, so the resumed session replays it as the last word.
	sessionPath := fm.Path()
	if err := fm.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := sessionlog.Load(sessionPath)
	if err != nil {
		t.Fatalf("sessionlog.Load: %v", err)
	}
	defer reopened.Close()
	host2 := newHost(dir, reopened)
	engine2 := New(objectstore.New(engine.Store.Dir), replay.New())

	res4, err := engine2.Decide(context.Background(), Request{Path: "f.txt"}, host2)
	if err != nil {
		t.Fatalf("resumed Decide: %v", err)
	}
	if res4.Meta.Mode != metadata.ModeFull {
		t.Fatalf("got mode %v, want full on the resumed session (the invalidation replayed)", res4.Meta.Mode)
	}
	if _, err := reopened.AppendReadResultPersisted(res4.Meta); err != nil {
		t.Fatalf("AppendReadResultPersisted: %v", err)
	}
	host2.LeafID = reopened.LeafID()

	res5, err := engine2.Decide(context.Background(), Request{Path: "f.txt"}, host2)
	if err != nil {
		t.Fatalf("final Decide: %v", err)
	}
	if res5.Meta.Mode != metadata.ModeUnchanged {
		t.Fatalf("got mode %v, want unchanged", res5.Meta.Mode)
	}
}

// S7 — Missing base object.
func TestScenario_S7_MissingBaseObject(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "g.txt", "one\ntwo\n")
	engine, store := newTestEngine(t)
	mgr := sessionlog.NewMemoryManager()
	host := newHost(dir, mgr)

	res1, err := engine.Decide(context.Background(), Request{Path: "g.txt"}, host)
	if err != nil {
		t.Fatalf("first Decide: %v", err)
	}
	if res1.Meta.Mode != metadata.ModeFull {
		t.Fatalf("got mode %v, want full", res1.Meta.Mode)
	}
	appendRead(t, mgr, host, res1)

	// Simulate accidental loss of the stored blob (not a GC sweep).
	removeObject(t, store, res1.Meta.ServedHash)

	if err := os.WriteFile(path, []byte("one\ntwo\nTHREE\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	res2, err := engine.Decide(context.Background(), Request{Path: "g.txt"}, host)
	if err != nil {
		t.Fatalf("second Decide: %v", err)
	}
	if res2.Meta.Mode != metadata.ModeBaselineFallback {
		t.Fatalf("got mode %v, want baseline_fallback", res2.Meta.Mode)
	}
	if !strings.Contains(res2.Text, "THREE") {
		t.Fatalf("got text %q, want it to contain the mutated content", res2.Text)
	}
}
