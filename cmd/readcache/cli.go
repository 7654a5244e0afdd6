package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Gurpartap/pi-readcache/internal/config"
	"github.com/Gurpartap/pi-readcache/internal/decision"
	"github.com/Gurpartap/pi-readcache/internal/metadata"
	"github.com/Gurpartap/pi-readcache/internal/objectstore"
	"github.com/Gurpartap/pi-readcache/internal/rclog"
	"github.com/Gurpartap/pi-readcache/internal/replay"
	"github.com/Gurpartap/pi-readcache/internal/sessionlog"
	"github.com/Gurpartap/pi-readcache/internal/statusui"
	"github.com/Gurpartap/pi-readcache/internal/watch"
	"github.com/alecthomas/kong"
)

// CLI is the top-level kong command tree: a struct of subcommands,
// each with its own flags and a Run method.
type CLI struct {
	ConfigPath string `name:"config" help:"Path to readcache.toml" type:"path"`
	LogLevel   string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log level."`
	LogFile    string `name:"log-file" help:"Also write logs to this file."`

	Status  StatusCmd  `cmd:"" help:"Show object store and session summary."`
	Refresh RefreshCmd `cmd:"" help:"Record an invalidation for a path (or a line range of it) in a session."`
	GC      GCCmd      `cmd:"" help:"Prune object store entries older than the retention window."`
	Replay  ReplayCmd  `cmd:"" help:"Replay a session file and print the trust-transition trace."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

func kongVars() kong.Vars {
	return kong.Vars{"version": version}
}

// loadConfig resolves the active Config: explicit --config path wins,
// otherwise readcache.toml in cwd, otherwise built-in defaults.
func (c *CLI) loadConfig() (*config.Config, error) {
	if c.ConfigPath != "" {
		return config.LoadFile(c.ConfigPath)
	}
	return config.LoadDefault()
}

// StatusCmd reports object-store size and, optionally, a live-refreshing
// dashboard (--watch) showing tracked paths and their current mode.
type StatusCmd struct {
	SessionDir string        `name:"session-dir" help:"Directory holding session JSONL files." default:".pi/readcache/sessions"`
	Watch      bool          `help:"Launch the interactive live dashboard instead of printing once."`
	Interval   time.Duration `help:"Dashboard refresh interval." default:"2s"`
	Format     string        `enum:"text,yaml" default:"text" help:"Output format for the one-shot summary."`
}

func (s *StatusCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	repoRoot, err := os.Getwd()
	if err != nil {
		return err
	}
	storeDir := cfg.ResolveStorePath(repoRoot)
	store := objectstore.New(storeDir)

	render := func() (statusui.Snapshot, error) {
		return snapshot(store, s.SessionDir)
	}

	if s.Watch {
		return statusui.Run(filepath.Join(storeDir, "objects"), s.Interval, render)
	}

	snap, err := render()
	if err != nil {
		return err
	}
	return printSnapshot(snap, s.Format)
}

// bytesPerTokenEstimate is the rough chars-per-token heuristic used
// across the pack's own token-accounting code for estimating cost
// without a real tokenizer on hand.
const bytesPerTokenEstimate = 4

func snapshot(store *objectstore.Store, sessionDir string) (statusui.Snapshot, error) {
	st := store.Stats()
	snap := statusui.Snapshot{ObjectCount: st.Objects, ObjectBytes: st.Bytes, ModeCounts: map[string]int{}}

	entries, err := os.ReadDir(sessionDir)
	if err != nil {
		// No sessions recorded yet is not an error; every other
		// traversal failure is reported fail-open as an empty listing.
		return snap, nil
	}

	scopes := map[string]struct{}{}
	var lines []string
	var bytesSaved int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		snap.Sessions++
		fm, err := sessionlog.Load(filepath.Join(sessionDir, e.Name()))
		if err != nil {
			continue
		}
		defer fm.Close()

		branch := fm.BranchEntries()
		window := branch[replay.WindowStart(branch):]
		snap.WindowEntries += len(window)

		for _, entry := range window {
			if entry.Kind != sessionlog.KindReadResult || entry.ReadMeta == nil {
				continue
			}
			meta := entry.ReadMeta
			scopes[meta.PathKey+"\x00"+meta.ScopeKey] = struct{}{}
			snap.ModeCounts[string(meta.Mode)]++
			bytesSaved += estimatedBytesSaved(meta)
			lines = append(lines, fmt.Sprintf("%s %s %s", meta.PathKey, meta.Mode, meta.ScopeKey))
		}
	}
	sort.Strings(lines)
	snap.Lines = lines
	snap.TrackedScopes = len(scopes)
	snap.TokensSaved = bytesSaved / bytesPerTokenEstimate
	return snap, nil
}

// estimatedBytesSaved estimates how many bytes of full-file content a
// read result avoided re-serving, based solely on the fields a
// ReadMeta persists. full and baseline_fallback always re-serve the
// entire selection, so they save nothing.
func estimatedBytesSaved(meta *metadata.ReadMeta) int64 {
	switch meta.Mode {
	case metadata.ModeUnchanged:
		return int64(meta.Bytes)
	case metadata.ModeUnchangedRange:
		if meta.TotalLines <= 0 {
			return 0
		}
		rangeLines := meta.RangeEnd - meta.RangeStart + 1
		return int64(meta.Bytes) * int64(rangeLines) / int64(meta.TotalLines)
	case metadata.ModeDiff:
		// A unified diff's exact size isn't persisted; crediting half
		// the file's bytes as saved is a conservative stand-in for
		// "smaller than the full file," which diffIsUseful guarantees.
		return int64(meta.Bytes) / 2
	default:
		return 0
	}
}

func printSnapshot(snap statusui.Snapshot, format string) error {
	if format == "yaml" {
		b, err := yaml.Marshal(snap)
		if err != nil {
			return err
		}
		fmt.Print(string(b))
		return nil
	}
	fmt.Printf("objects: %d (%d bytes)\nsessions: %d\n", snap.ObjectCount, snap.ObjectBytes, snap.Sessions)
	fmt.Printf("tracked scopes: %d\nreplay-window entries: %d\ntokens saved (est.): %d\n",
		snap.TrackedScopes, snap.WindowEntries, snap.TokensSaved)
	if len(snap.ModeCounts) > 0 {
		fmt.Println("modes:")
		for _, mode := range []string{"full", "unchanged", "unchanged_range", "diff", "baseline_fallback"} {
			if n, ok := snap.ModeCounts[mode]; ok {
				fmt.Printf("  %s: %d\n", mode, n)
			}
		}
	}
	for _, line := range snap.Lines {
		fmt.Println("  " + line)
	}
	return nil
}

// RefreshCmd is the `readcache-refresh <path> [start-end]` slash
// command: it records an Invalidation against the given session for
// path, full-scope by default or range-scope when a trailing n or
// n-m range is given, without waiting for the next read to notice.
// With --follow it instead hands path to a watch.Watcher and blocks,
// recording a fresh full-scope invalidation the moment it changes,
// until interrupted.
type RefreshCmd struct {
	Session  string        `arg:"" help:"Path to the session JSONL file to update."`
	Path     string        `arg:"" help:"File path to re-check."`
	Range    string        `arg:"" help:"Optional line range to invalidate: n or n-m." optional:""`
	Follow   bool          `help:"Keep running, invalidating on every subsequent change."`
	Debounce time.Duration `help:"Debounce window when --follow is set." default:"250ms"`
}

func (r *RefreshCmd) Run(cli *CLI) error {
	fm, err := sessionlog.Load(r.Session)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	defer fm.Close()

	if r.Follow {
		return r.follow(fm)
	}

	abs, err := filepath.Abs(r.Path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", r.Path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	scopeKey := metadata.FullScope
	if r.Range != "" {
		start, end, err := decision.ParseRangeSuffix(r.Range)
		if err != nil {
			return fmt.Errorf("parse range %q: %w", r.Range, err)
		}
		scopeKey = metadata.RangeScope(start, end)
	}

	inv, ok := metadata.BuildInvalidation(abs, scopeKey, time.Now().UnixMilli())
	if !ok {
		return fmt.Errorf("built an invalid invalidation record for %s %s", abs, scopeKey)
	}
	if _, err := fm.AppendInvalidationPersisted(&inv); err != nil {
		return fmt.Errorf("record invalidation for %s: %w", abs, err)
	}
	fmt.Printf("invalidated %s %s\n", abs, scopeKey)
	return nil
}

func (r *RefreshCmd) follow(fm *sessionlog.FileManager) error {
	w, err := watch.New(fm, r.Debounce)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Track(r.Path); err != nil {
		return fmt.Errorf("watch %s: %w", r.Path, err)
	}
	fmt.Printf("watching %s\n", r.Path)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go w.Run()
	<-sig
	fmt.Println("stopping")
	return nil
}

// GCCmd sweeps the object store, deleting objects older than the
// configured (or overridden) retention window.
type GCCmd struct {
	MaxAge time.Duration `help:"Override the configured retention window."`
}

func (g *GCCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	repoRoot, err := os.Getwd()
	if err != nil {
		return err
	}
	store := objectstore.New(cfg.ResolveStorePath(repoRoot))

	maxAge := g.MaxAge
	if maxAge <= 0 {
		maxAge = time.Duration(cfg.Store.RetentionDays) * 24 * time.Hour
		if maxAge <= 0 {
			maxAge = objectstore.DefaultRetention
		}
	}

	result := store.PruneOlderThan(maxAge, time.Now())
	fmt.Printf("scanned %d objects, deleted %d\n", result.Scanned, result.Deleted)
	return nil
}

// ReplayCmd loads a session file and prints the trust-transition trace
// the replay engine produces when walking it.
type ReplayCmd struct {
	Session string `arg:"" help:"Path to the session JSONL file to replay."`
}

func (r *ReplayCmd) Run(cli *CLI) error {
	fm, err := sessionlog.Load(r.Session)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	defer fm.Close()

	entries := fm.BranchEntries()
	var trace []replay.TransitionRecord
	eng := replay.New()
	eng.Knowledge(fm.SessionID(), fm.LeafID(), entries, &trace)

	fmt.Println(replay.Dump(fm.SessionID(), fm.LeafID(), entries, trace))
	return nil
}

// VersionCmd prints build-time version information.
type VersionCmd struct{}

func (v *VersionCmd) Run(cli *CLI) error {
	fmt.Printf("readcache version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	rclog.Info("version command invoked", "version", version)
	return nil
}
