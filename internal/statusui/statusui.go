// Package statusui implements the interactive `readcache status --watch`
// dashboard: a bubbletea viewport that re-renders on a tick or on an
// fsnotify event from the object store directory, styled with
// lipgloss and wrapped with reflow. A small live-refreshing summary
// view rather than a full-text pager with search.
package statusui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/wordwrap"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	liveStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

// Snapshot is the data one refresh renders. Callers supply a Render
// function that produces a fresh Snapshot on demand; statusui owns
// only the terminal presentation.
type Snapshot struct {
	ObjectCount   int
	ObjectBytes   int64
	Sessions      int
	TrackedScopes int            // distinct (pathKey, scopeKey) pairs seen across the replay window
	WindowEntries int            // entries across all sessions past the strict compaction barrier
	ModeCounts    map[string]int // per-mode tally over replayed ReadMetas in the window
	TokensSaved   int64          // estimated tokens avoided by not re-serving full content
	Lines         []string       // one line per read result in the window: "<pathKey> <mode> <scopeKey>"
}

// RenderFunc produces the latest Snapshot.
type RenderFunc func() (Snapshot, error)

type fileChangedMsg struct{}
type tickMsg time.Time

type model struct {
	viewport viewport.Model
	render   RenderFunc
	watcher  *fsnotify.Watcher
	ready    bool
	snap     Snapshot
	err      error
	interval time.Duration
}

// Run starts the dashboard, watching storeDir for changes and
// refreshing at least every interval regardless.
func Run(storeDir string, interval time.Duration, render RenderFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("statusui: create watcher: %w", err)
	}
	if err := watcher.Add(storeDir); err != nil {
		watcher.Close()
		return fmt.Errorf("statusui: watch %q: %w", storeDir, err)
	}
	defer watcher.Close()

	snap, err := render()
	if err != nil {
		return err
	}

	m := &model{render: render, watcher: watcher, snap: snap, interval: interval}
	prog := tea.NewProgram(m, tea.WithAltScreen())
	_, err = prog.Run()
	return err
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.watchStore(), m.tick())
}

func (m *model) watchStore() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-m.watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) != 0 {
					time.Sleep(100 * time.Millisecond)
					return fileChangedMsg{}
				}
			case _, ok := <-m.watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

func (m *model) tick() tea.Cmd {
	interval := m.interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) refresh() {
	snap, err := m.render()
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.snap = snap
	if m.ready {
		m.viewport.SetContent(m.body())
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case fileChangedMsg:
		m.refresh()
		return m, m.watchStore()
	case tickMsg:
		m.refresh()
		return m, m.tick()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		}
	case tea.WindowSizeMsg:
		headerHeight, footerHeight := 1, 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.viewport.SetContent(m.body())
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) body() string {
	if m.err != nil {
		return wordwrap.String("error refreshing status: "+m.err.Error(), max(m.viewport.Width, 20))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "objects: %d (%d bytes)   sessions tracked: %d\n",
		m.snap.ObjectCount, m.snap.ObjectBytes, m.snap.Sessions)
	fmt.Fprintf(&b, "tracked scopes: %d   replay-window entries: %d   tokens saved (est.): %d\n",
		m.snap.TrackedScopes, m.snap.WindowEntries, m.snap.TokensSaved)
	if len(m.snap.ModeCounts) > 0 {
		b.WriteString("modes: " + formatModeCounts(m.snap.ModeCounts) + "\n")
	}
	b.WriteString("\n")
	for _, line := range m.snap.Lines {
		b.WriteString(wordwrap.String(line, max(m.viewport.Width, 20)))
		b.WriteString("\n")
	}
	return b.String()
}

// formatModeCounts renders a mode histogram as "mode=count" pairs in a
// stable order, so the dashboard doesn't flicker between refreshes.
func formatModeCounts(counts map[string]int) string {
	order := []string{"full", "unchanged", "unchanged_range", "diff", "baseline_fallback"}
	parts := make([]string, 0, len(order))
	for _, mode := range order {
		if n, ok := counts[mode]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", mode, n))
		}
	}
	return strings.Join(parts, " ")
}

func (m *model) View() string {
	if !m.ready {
		return "\n  loading…"
	}
	header := titleStyle.Render("readcache status")
	rule := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(header)))
	top := lipgloss.JoinHorizontal(lipgloss.Center, header, infoStyle.Render(rule))
	footer := infoStyle.Render(" q: quit │ g/G: top/bottom ") + "  " + liveStyle.Render("● LIVE")
	return top + "\n" + m.viewport.View() + "\n" + footer
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
