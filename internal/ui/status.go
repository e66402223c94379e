// Package ui implements the splitdeck status dashboard: a read-only
// bubbletea view over the persisted workspace and the session history
// database. It reads state directly from disk and never talks to a running
// server.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"github.com/splitdeck/splitdeck/internal/config"
	"github.com/splitdeck/splitdeck/internal/history"
	"github.com/splitdeck/splitdeck/internal/layout"
)

// sessionListLimit bounds how many history entries the dashboard loads.
const sessionListLimit = 200

// StatusData is everything the dashboard renders, loaded once at startup.
type StatusData struct {
	Profile   string
	Snapshot  layout.Snapshot
	Sessions  []*history.Entry
	LoadedAt  time.Time
	HistoryOK bool
}

// LoadStatusData reads the persisted workspace and history for a profile.
// A missing workspace file or history database is an empty dashboard, not an
// error; only unreadable state fails.
func LoadStatusData(profile string) (*StatusData, error) {
	profile = config.EffectiveProfile(profile)
	profileDir, err := config.ProfileDir(profile)
	if err != nil {
		return nil, err
	}

	storage, err := layout.NewStorage(profileDir)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	snap, err := storage.Load()
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	// Restoring through a store prunes invalid trees the same way the
	// server does, so both views agree on what the workspace contains.
	store := layout.NewStore()
	store.Restore(snap)

	data := &StatusData{
		Profile:  profile,
		Snapshot: store.Snapshot(),
		LoadedAt: time.Now(),
	}

	hist, err := history.Open(history.DefaultPath(profileDir))
	if err == nil {
		defer hist.Close()
		if entries, listErr := hist.List("", sessionListLimit); listErr == nil {
			data.Sessions = entries
			data.HistoryOK = true
		}
	}
	return data, nil
}

// sessionPlacement says where a history session currently sits in the
// workspace, derived from the hello partition.
type sessionPlacement int

const (
	placementNone sessionPlacement = iota
	placementBackground
	placementVisible
	placementActive
)

// sessionRow is one renderable line of the session list.
type sessionRow struct {
	entry     *history.Entry
	placement sessionPlacement
}

// tabRow is one renderable line of the tab list.
type tabRow struct {
	title     string
	panes     int
	resumable int
	active    bool
}

// Model is the status dashboard.
type Model struct {
	data  *StatusData
	theme Theme

	tabs    []tabRow
	rows    []sessionRow
	visible []int // indices into rows after filtering

	cursor    int
	filter    textinput.Model
	filtering bool

	width  int
	height int

	now func() time.Time
}

// NewModel builds the dashboard over loaded data.
func NewModel(data *StatusData, theme Theme) *Model {
	ti := textinput.New()
	ti.Placeholder = "filter sessions"
	ti.CharLimit = 64
	ti.Width = 32

	m := &Model{
		data:   data,
		theme:  theme,
		filter: ti,
		now:    time.Now,
	}
	m.buildRows()
	m.applyFilter()
	return m
}

// Run loads the profile's state and runs the dashboard until quit.
func Run(profile string) error {
	data, err := LoadStatusData(profile)
	if err != nil {
		return err
	}
	m := NewModel(data, DetectTheme())
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// buildRows derives the tab summary and the session list from the snapshot.
func (m *Model) buildRows() {
	snap := m.data.Snapshot
	hello := layout.SessionsForHello(snap)

	placements := make(map[string]sessionPlacement)
	for _, id := range hello.Background {
		placements[id] = placementBackground
	}
	for _, id := range hello.Visible {
		placements[id] = placementVisible
	}
	if hello.Active != "" {
		placements[hello.Active] = placementActive
	}

	m.tabs = m.tabs[:0]
	for _, tab := range snap.Tabs {
		row := tabRow{title: tab.Title, active: tab.ID == snap.ActiveTab}
		if tab.Root != nil {
			row.panes = len(layout.CollectPaneIDs(tab.Root))
			row.resumable = len(layout.CollectSessionIDs(tab.Root))
		}
		m.tabs = append(m.tabs, row)
	}

	m.rows = m.rows[:0]
	for _, entry := range m.data.Sessions {
		m.rows = append(m.rows, sessionRow{
			entry:     entry,
			placement: placements[entry.SessionID],
		})
	}
}

// applyFilter rebuilds the visible list from the filter text. An empty
// filter shows everything in stored order; otherwise sessions are ranked by
// fuzzy match over "provider title".
func (m *Model) applyFilter() {
	query := strings.TrimSpace(m.filter.Value())
	if query == "" {
		m.visible = m.visible[:0]
		for i := range m.rows {
			m.visible = append(m.visible, i)
		}
	} else {
		haystack := make([]string, len(m.rows))
		for i, row := range m.rows {
			haystack[i] = row.entry.Provider + " " + row.entry.Title
		}
		matches := fuzzy.Find(query, haystack)
		m.visible = m.visible[:0]
		for _, match := range matches {
			m.visible = append(m.visible, match.Index)
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			return m.handleFilterKey(msg)
		}
		return m.handleListKey(msg)
	}
	return m, nil
}

func (m *Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}

	case "g", "home":
		m.cursor = 0

	case "G", "end":
		if len(m.visible) > 0 {
			m.cursor = len(m.visible) - 1
		}

	case "/":
		m.filtering = true
		m.filter.Focus()
		return m, textinput.Blink
	}
	return m, nil
}

func (m *Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filtering = false
		m.filter.SetValue("")
		m.filter.Blur()
		m.applyFilter()
		return m, nil

	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil

	case "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *Model) View() string {
	var b strings.Builder
	width := m.width
	if width <= 0 {
		width = 80
	}

	resumable := 0
	for _, row := range m.rows {
		if row.placement != placementNone {
			resumable++
		}
	}
	b.WriteString(m.theme.Title.Render("splitdeck status"))
	b.WriteString(m.theme.Dim.Render(fmt.Sprintf("  profile %s · %d tabs · %d sessions (%d attached) · loaded %s",
		m.data.Profile, len(m.tabs), len(m.rows), resumable, m.data.LoadedAt.Format("15:04:05"))))
	b.WriteString("\n\n")

	b.WriteString(m.theme.Header.Render("TABS"))
	b.WriteString("\n")
	if len(m.tabs) == 0 {
		b.WriteString(m.theme.Dim.Render("  no tabs in workspace"))
		b.WriteString("\n")
	}
	for _, tab := range m.tabs {
		marker := "  "
		if tab.active {
			marker = m.theme.Active.Render("▸ ")
		}
		title := tab.title
		if title == "" {
			title = "(untitled)"
		}
		detail := "(empty)"
		if tab.panes > 0 {
			detail = fmt.Sprintf("%d pane%s", tab.panes, plural(tab.panes))
			if tab.resumable > 0 {
				detail += fmt.Sprintf(" · %d resumable", tab.resumable)
			}
		}
		line := fmt.Sprintf("%s%s  %s", marker, runewidth.FillRight(runewidth.Truncate(title, 24, "…"), 24), m.theme.Dim.Render(detail))
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.theme.Header.Render("SESSIONS"))
	if m.filtering || m.filter.Value() != "" {
		b.WriteString("  ")
		b.WriteString(m.filter.View())
	}
	b.WriteString("\n")

	if !m.data.HistoryOK {
		b.WriteString(m.theme.Dim.Render("  no session history recorded"))
		b.WriteString("\n")
	} else if len(m.visible) == 0 {
		b.WriteString(m.theme.Dim.Render("  nothing matches"))
		b.WriteString("\n")
	}

	maxRows := m.sessionViewportRows()
	start, end := scrollWindow(m.cursor, len(m.visible), maxRows)
	for i := start; i < end; i++ {
		row := m.rows[m.visible[i]]
		b.WriteString(m.renderSessionRow(row, i == m.cursor, width))
		b.WriteString("\n")
	}
	if end < len(m.visible) {
		b.WriteString(m.theme.Dim.Render(fmt.Sprintf("  … %d more", len(m.visible)-end)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.theme.Dim.Render("  q quit · / filter · ↑↓ move"))
	b.WriteString("\n")
	return b.String()
}

// sessionViewportRows is how many session lines fit under the fixed chrome.
func (m *Model) sessionViewportRows() int {
	if m.height <= 0 {
		return 20
	}
	// title + blank + TABS header + tabs + blank + SESSIONS header +
	// overflow line + blank + footer
	chrome := 8 + len(m.tabs)
	rows := m.height - chrome
	if rows < 3 {
		rows = 3
	}
	return rows
}

// scrollWindow computes the [start, end) slice of items that keeps the
// cursor visible inside a viewport of max rows.
func scrollWindow(cursor, total, max int) (int, int) {
	if total <= max {
		return 0, total
	}
	start := 0
	end := max
	if cursor >= end {
		end = cursor + 1
		start = end - max
	}
	return start, end
}

func (m *Model) renderSessionRow(row sessionRow, selected bool, width int) string {
	e := row.entry

	var marker string
	switch row.placement {
	case placementActive:
		marker = m.theme.Active.Render("●")
	case placementVisible:
		marker = m.theme.Accent.Render("◐")
	case placementBackground:
		marker = m.theme.Dim.Render("○")
	default:
		marker = " "
	}

	titleWidth := width - 40
	if titleWidth < 16 {
		titleWidth = 16
	}
	title := e.Title
	if title == "" {
		title = e.SessionID
	}
	line := fmt.Sprintf("%s %s %s %s %s",
		marker,
		runewidth.FillRight(e.Provider, 8),
		runewidth.FillRight(runewidth.Truncate(title, titleWidth, "…"), titleWidth),
		runewidth.FillLeft(relativeTime(m.now(), e.LastActive), 12),
		runewidth.FillLeft(formatTokens(e.TotalTokens()), 10))

	if selected {
		return m.theme.Selected.Render("→" + line)
	}
	return " " + line
}

// relativeTime renders how long ago t was, coarsely.
func relativeTime(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// formatTokens renders a token count compactly ("980", "12.3k", "1.2M").
func formatTokens(n int) string {
	switch {
	case n <= 0:
		return "-"
	case n < 1000:
		return fmt.Sprintf("%d tok", n)
	case n < 1000000:
		return fmt.Sprintf("%.1fk tok", float64(n)/1000)
	default:
		return fmt.Sprintf("%.1fM tok", float64(n)/1000000)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
