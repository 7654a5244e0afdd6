package decision

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	// MaxDiffBytes gates the §4.4 step-12 diff pipeline: above this
	// size (for either side), the engine falls back to baseline rather
	// than computing a diff.
	MaxDiffBytes = 2 * 1024 * 1024
	// MaxDiffLines is the companion line-count gate.
	MaxDiffLines = 12_000
)

// diffResult carries the unified diff text plus the counters the
// usefulness gate needs. It is only meaningful when computeUnifiedDiff
// returns ok=true.
type diffResult struct {
	Text         string
	ChangedLines int
}

// computeUnifiedDiff builds a unified diff between base and current,
// gated by size and line-count limits, and reports whether it has any
// hunks at all. path is used for the a/ b/ headers.
func computeUnifiedDiff(path, base, current string) (diffResult, bool) {
	if len(base) > MaxDiffBytes || len(current) > MaxDiffBytes {
		return diffResult{}, false
	}
	baseLines := splitLines(base)
	currentLines := splitLines(current)
	if len(baseLines) > MaxDiffLines || len(currentLines) > MaxDiffLines {
		return diffResult{}, false
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(base),
		B:        difflib.SplitLines(current),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil || text == "" {
		return diffResult{}, false
	}

	changed := countChangedLines(baseLines, currentLines)
	return diffResult{Text: text, ChangedLines: changed}, true
}

// countChangedLines counts the number of source lines touched by a
// replace/insert/delete opcode between base and current, the way a
// line-oriented changed-line count reads (a one-line edit is 1 changed
// line, not one removal plus one addition).
func countChangedLines(base, current []string) int {
	matcher := difflib.NewMatcher(base, current)
	n := 0
	for _, op := range matcher.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		span := op.I2 - op.I1
		if j := op.J2 - op.J1; j > span {
			span = j
		}
		n += span
	}
	return n
}

// diffIsUseful implements the §4.4 step-12 usefulness gate: the diff's
// byte size must be smaller than the current file's, and its changed
// line count must not exceed the requested selection's total line
// count.
func diffIsUseful(d diffResult, currentBytes, selectionTotalLines int) bool {
	if len(d.Text) >= currentBytes {
		return false
	}
	if d.ChangedLines > selectionTotalLines {
		return false
	}
	return true
}

// formatDiffMarker renders the literal §6 diff-prefix marker followed
// by the unified diff body.
func formatDiffMarker(changedLines, totalLines int, diffText string) string {
	return fmt.Sprintf("[readcache: %d lines changed of %d]\n%s", changedLines, totalLines, diffText)
}
