// Package decision implements the read-cache's decision engine: the
// read-tool override that normalizes a request, consults replayed
// trust, and chooses among {full, unchanged, unchanged_range, diff,
// baseline_fallback}. On any uncertainty it degrades to baseline
// content — the engine never surfaces an error for anything but a
// malformed explicit range, an out-of-bounds offset, a failed baseline
// read, a missing host context, or cancellation.
package decision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/Gurpartap/pi-readcache/internal/metadata"
	"github.com/Gurpartap/pi-readcache/internal/objectstore"
	"github.com/Gurpartap/pi-readcache/internal/rclog"
	"github.com/Gurpartap/pi-readcache/internal/replay"
	"github.com/Gurpartap/pi-readcache/internal/sessionlog"
	"github.com/Gurpartap/pi-readcache/internal/telemetry"
	"github.com/Gurpartap/pi-readcache/internal/trust"
)

// Request is the raw input to Decide, mirroring the `read` tool's
// parameters (spec.md §6).
type Request struct {
	Path   string
	Offset *int
	Limit  *int
	Bypass bool
}

// HostContext supplies the per-call collaborators the core has no
// business constructing itself: the working directory used to resolve
// relative paths, and the active session's manager and leaf.
type HostContext struct {
	Cwd       string
	SessionID string
	LeafID    string
	Session   sessionlog.Manager
}

// Result is what Decide returns: content plus, for non-bypassed,
// non-sensitive reads, the metadata record that would be persisted.
type Result struct {
	Text  string
	Image bool
	Meta  *metadata.ReadMeta
}

// Engine wires together the object store and the replay engine to
// implement the full §4.4 algorithm.
type Engine struct {
	Store    *objectstore.Store
	Replay   *replay.Engine
	Baseline Baseline

	// ExtraSensitivePatterns extends the built-in sensitive-path bypass
	// list, normally populated from config.SensitiveConfig.ExtraPatterns.
	ExtraSensitivePatterns []string
}

// New constructs an Engine with a DefaultBaseline.
func New(store *objectstore.Store, replayEngine *replay.Engine) *Engine {
	return &Engine{Store: store, Replay: replayEngine, Baseline: DefaultBaseline{}}
}

var rangeSuffixPattern = regexp.MustCompile(`^(\d+)(?:-(\d+))?$`)

// Decide runs the full decision algorithm for one read request.
func (e *Engine) Decide(ctx context.Context, req Request, host *HostContext) (Result, error) {
	ctx, span := telemetry.StartDecisionSpan(ctx, req.Path, req.Bypass)
	res, err := e.decide(ctx, req, host)
	mode := ""
	if res.Meta != nil {
		mode = string(res.Meta.Mode)
	}
	telemetry.EndDecisionSpan(span, mode, err)
	return res, err
}

func (e *Engine) decide(ctx context.Context, req Request, host *HostContext) (Result, error) {
	if host == nil || host.Session == nil {
		return Result{}, ErrContext
	}

	// Step 1: parse range shorthand.
	resolvedPath, offset, limit, err := parseRangeShorthand(host.Cwd, req.Path, req.Offset, req.Limit)
	if err != nil {
		return Result{}, err
	}

	// Step 2: delegate to baseline.
	baseline, err := e.Baseline.Read(ctx, resolvedPath, offset, limit)
	if err != nil {
		// A baseline read failure leaves no content to serve; surface
		// whatever the baseline could say.
		return Result{}, err
	}
	if baseline.IsImage {
		return Result{Text: baseline.Text, Image: true}, nil
	}

	// Step 3: sensitive-path bypass.
	if isSensitivePath(resolvedPath, e.ExtraSensitivePatterns) {
		return Result{Text: baseline.Text}, nil
	}

	if err := checkCancel(ctx); err != nil {
		return Result{}, err
	}

	// Step 4: load current content for hashing.
	raw, err := os.ReadFile(resolvedPath)
	if err != nil || !utf8Valid(raw) {
		rclog.WithPath(resolvedPath).Debug("falling back to baseline", "reason", "unreadable or non-utf8 content")
		return Result{Text: baseline.Text}, nil
	}
	currentText := string(raw)

	// Step 5: normalize range.
	lines := splitLines(currentText)
	totalLines := len(lines)
	start := 1
	if offset != nil {
		start = *offset
	}
	end := totalLines
	if limit != nil {
		end = start + *limit - 1
	}
	if end > totalLines {
		end = totalLines
	}
	if start > totalLines {
		return Result{}, errValidation(fmt.Sprintf("offset %d beyond end of file (%d lines)", start, totalLines))
	}
	scopeKey := metadata.ScopeKey(start, end, totalLines)
	isRangeRequest := scopeKey != metadata.FullScope

	currentHash := objectstore.Hash(raw)
	pathKey := resolvedPath

	persistAndOverlay := func(mode metadata.Mode, baseHash string) *metadata.ReadMeta {
		e.persist(currentHash, currentText)
		e.Replay.OverlayUpdate(host.SessionID, host.LeafID, pathKey, scopeKey, currentHash)
		m, ok := metadata.BuildReadMeta(pathKey, scopeKey, currentHash, baseHash, mode, totalLines, start, end, len(raw))
		if !ok {
			return nil
		}
		return &m
	}

	// Step 6: bypass branch.
	if req.Bypass {
		meta := persistAndOverlay(metadata.ModeFull, "")
		return Result{Text: baseline.Text, Meta: meta}, nil
	}

	// Step 7: consult trust.
	entries := host.Session.BranchEntries()
	km := e.Replay.KnowledgeTraced(ctx, host.SessionID, host.LeafID, entries, nil)
	candidate, hasCandidate := trust.SelectBaseCandidate(km, pathKey, scopeKey, isRangeRequest)

	// Step 8: no candidate.
	if !hasCandidate {
		meta := persistAndOverlay(metadata.ModeFull, "")
		return Result{Text: baseline.Text, Meta: meta}, nil
	}

	baseHash := candidate.Hash

	// Step 9: hash match.
	if baseHash == currentHash {
		if isRangeRequest {
			text := fmt.Sprintf("[readcache: unchanged in lines %d-%d of %d]", start, end, totalLines)
			meta := persistAndOverlay(metadata.ModeUnchangedRange, baseHash)
			return Result{Text: text, Meta: meta}, nil
		}
		text := fmt.Sprintf("[readcache: unchanged, %d lines]", totalLines)
		meta := persistAndOverlay(metadata.ModeUnchanged, baseHash)
		return Result{Text: text, Meta: meta}, nil
	}

	if err := checkCancel(ctx); err != nil {
		return Result{}, err
	}

	// Step 10: load base blob.
	baseText, found := e.Store.Load(baseHash)
	if !found {
		rclog.WithPath(pathKey).Warn("trusted base blob missing from object store", "hash", baseHash)
		meta := persistAndOverlay(metadata.ModeBaselineFallback, "")
		return Result{Text: baseline.Text, Meta: meta}, nil
	}

	if isRangeRequest {
		// Step 11: range scope, hash differs.
		baseLines := splitLines(baseText)
		if rangeSliceEqual(baseLines, lines, start, end) {
			text := fmt.Sprintf("[readcache: unchanged in lines %d-%d; changes exist outside this range]", start, end)
			meta := persistAndOverlay(metadata.ModeUnchangedRange, baseHash)
			return Result{Text: text, Meta: meta}, nil
		}
		meta := persistAndOverlay(metadata.ModeBaselineFallback, "")
		return Result{Text: baseline.Text, Meta: meta}, nil
	}

	// Step 12: full scope, hash differs — diff pipeline.
	if err := checkCancel(ctx); err != nil {
		return Result{}, err
	}
	d, gated := computeUnifiedDiff(pathKey, baseText, currentText)
	if !gated {
		meta := persistAndOverlay(metadata.ModeBaselineFallback, "")
		return Result{Text: baseline.Text, Meta: meta}, nil
	}
	if !diffIsUseful(d, len(raw), totalLines) {
		meta := persistAndOverlay(metadata.ModeBaselineFallback, "")
		return Result{Text: baseline.Text, Meta: meta}, nil
	}
	if limiter, ok := e.Baseline.(sizeLimitedBaseline); ok {
		if max := limiter.MaxTextBytes(); max > 0 && len(d.Text) > max {
			meta := persistAndOverlay(metadata.ModeBaselineFallback, "")
			return Result{Text: baseline.Text, Meta: meta}, nil
		}
	}

	if err := checkCancel(ctx); err != nil {
		return Result{}, err
	}
	text := formatDiffMarker(d.ChangedLines, totalLines, d.Text)
	meta := persistAndOverlay(metadata.ModeDiff, baseHash)
	return Result{Text: text, Meta: meta}, nil
}

func (e *Engine) persist(hash, text string) {
	// Object-store failures are fail-open per spec.md §7: they never
	// prevent the decision from completing.
	_, _ = e.Store.PutIfAbsent(hash, text)
}

func rangeSliceEqual(a, b []string, start, end int) bool {
	if start < 1 || end > len(a) || end > len(b) || start > end {
		return false
	}
	sliceA := a[start-1 : end]
	sliceB := b[start-1 : end]
	if len(sliceA) != len(sliceB) {
		return false
	}
	for i := range sliceA {
		if sliceA[i] != sliceB[i] {
			return false
		}
	}
	return true
}

func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ErrAborted
	default:
		return nil
	}
}

func utf8Valid(b []byte) bool {
	return strings.ToValidUTF8(string(b), "�") == string(b)
}

// parseRangeShorthand implements §4.4 step 1.
func parseRangeShorthand(cwd, rawPath string, offset, limit *int) (resolvedPath string, outOffset, outLimit *int, err error) {
	resolvedPath = resolvePath(cwd, rawPath)

	if offset != nil || limit != nil {
		return resolvedPath, offset, limit, nil
	}
	if fileExists(resolvedPath) {
		return resolvedPath, nil, nil, nil
	}

	idx := strings.LastIndex(rawPath, ":")
	if idx < 0 {
		return resolvedPath, nil, nil, nil
	}
	prefix, suffix := rawPath[:idx], rawPath[idx+1:]
	prefixResolved := resolvePath(cwd, prefix)
	if !fileExists(prefixResolved) {
		return resolvedPath, nil, nil, nil
	}

	start, end, err := ParseRangeSuffix(suffix)
	if err != nil {
		return "", nil, nil, err
	}
	o, l := start, end-start+1
	return prefixResolved, &o, &l, nil
}

// ParseRangeSuffix parses the §4.4 step-1 range grammar a trailing `:n`
// or `:n-m` suffix carries: a bare line number (meaning a one-line
// range) or an inclusive n-m range with m >= n, both positive. Used for
// the `read` path's colon-suffix shorthand and for the `readcache
// refresh` CLI's `[start-end]` argument alike.
func ParseRangeSuffix(suffix string) (start, end int, err error) {
	m := rangeSuffixPattern.FindStringSubmatch(suffix)
	if m == nil {
		return 0, 0, errValidation(fmt.Sprintf("malformed range %q", suffix))
	}
	n, _ := strconv.Atoi(m[1])
	if n < 1 {
		return 0, 0, errValidation(fmt.Sprintf("range start %d is not positive", n))
	}
	if m[2] == "" {
		return n, n, nil
	}
	e, _ := strconv.Atoi(m[2])
	if e < n {
		return 0, 0, errValidation(fmt.Sprintf("range end %d before start %d", e, n))
	}
	return n, e, nil
}

func resolvePath(cwd, path string) string {
	if filepath.IsAbs(path) {
		if resolved, err := filepath.EvalSymlinks(path); err == nil {
			return resolved
		}
		return path
	}
	joined := filepath.Join(cwd, path)
	if resolved, err := filepath.EvalSymlinks(joined); err == nil {
		return resolved
	}
	return joined
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
