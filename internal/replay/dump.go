package replay

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Gurpartap/pi-readcache/internal/metadata"
	"github.com/Gurpartap/pi-readcache/internal/sessionlog"
)

// Dump renders a TransitionRecord trace as a colorized, human-readable
// report, one line per post-boundary entry.
func Dump(sessionID, leafID string, entries []sessionlog.Entry, trace []TransitionRecord) string {
	var b strings.Builder
	boundaryIdx, boundaryKey := boundary(entries)
	fmt.Fprintln(&b, titleStyle.Render(fmt.Sprintf("replay trace — session %s leaf %s", sessionID, leafID)))
	fmt.Fprintln(&b, labelStyle.Render(fmt.Sprintf("boundary: %s (entry index %d)", boundaryKey, boundaryIdx)))
	fmt.Fprintln(&b, divider)

	for _, t := range trace {
		render := styleFor(t)
		line := fmt.Sprintf("%s %-8s %-9s %-20s %s",
			seqStyle.Render(fmt.Sprintf("#%d", t.Index)),
			string(t.Kind), string(t.Mode), t.ScopeKey, t.Reason)
		fmt.Fprintln(&b, render(line))
	}
	if len(trace) == 0 {
		fmt.Fprintln(&b, dimStyle.Render("(no entries on or after the compaction barrier)"))
	}
	return b.String()
}

func styleFor(t TransitionRecord) func(string) string {
	wrap := func(s lipgloss.Style) func(string) string {
		return func(text string) string { return s.Render(text) }
	}
	switch {
	case t.Kind == sessionlog.KindInvalidation:
		return wrap(invalidationStyle)
	case !t.Applied:
		if t.Mode == metadata.ModeUnchanged || t.Mode == metadata.ModeUnchangedRange || t.Mode == metadata.ModeDiff {
			return wrap(derivedFailStyle)
		}
		return wrap(dimStyle)
	case t.Mode == metadata.ModeFull || t.Mode == metadata.ModeBaselineFallback:
		return wrap(anchorStyle)
	default:
		return wrap(derivedOKStyle)
	}
}
