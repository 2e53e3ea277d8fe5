// Package tui provides a Bubble Tea TUI for viewing captured sensor tables.
package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/ppglog/internal/capture"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	columnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178")).
			Bold(true)

	traceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabRows
	tabTrace
	tabCount
)

var tabNames = [tabCount]string{"Summary", "Rows", "Trace"}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	table     *capture.Table
	filename  string
	stats     []ColumnStats
	activeTab tabID
	traceCol  int // index into stats of the column drawn on the Trace tab
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
}

// New creates a new TUI model for the given table and source filename.
func New(t *capture.Table, filename string) Model {
	m := Model{
		table:    t,
		filename: filepath.Base(filename),
		stats:    Stats(t),
	}
	m.traceCol = defaultTraceColumn(m.stats)
	return m
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "c":
			if m.activeTab == tabTrace && len(m.stats) > 0 {
				m.traceCol = nextNumericColumn(m.stats, m.traceCol)
				m.viewports[tabTrace].SetContent(m.renderTab(tabTrace))
				return m, nil
			}
		case "g":
			m.viewports[m.activeTab].GotoTop()
			return m, nil
		case "G":
			m.viewports[m.activeTab].GotoBottom()
			return m, nil
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  ppglog  " + m.filename)

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  g/G top/bottom  1-3 jump  q quit"
	if m.activeTab == tabTrace {
		hint += "  c next column"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(
		hint + strings.Repeat(" ", pad) + pct,
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabRows:
		return m.renderRows()
	case tabTrace:
		return m.renderTrace()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func (m *Model) renderSummary() string {
	var sb strings.Builder
	sb.WriteString(heading("Capture Summary"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-10s", label)) + "  " + value + "\n")
	}
	row("File:", m.filename)
	if m.table.HasHeader() {
		row("Header:", strings.Join(m.table.Header, ", "))
	} else {
		row("Header:", dimStyle.Render("(none captured)"))
	}
	row("Rows:", fmt.Sprintf("%d", len(m.table.Rows)))

	sb.WriteString(heading("Columns"))
	if len(m.stats) == 0 {
		sb.WriteString(dimStyle.Render("  (no data rows)") + "\n")
		return sb.String()
	}
	for _, s := range m.stats {
		if s.Numeric == 0 {
			sb.WriteString(fmt.Sprintf("  %s  %s\n", columnStyle.Render(fmt.Sprintf("%-10s", s.Name)),
				dimStyle.Render("non-numeric")))
			continue
		}
		sb.WriteString(fmt.Sprintf("  %s  n=%-6d min=%-10g max=%-10g mean=%.2f\n",
			columnStyle.Render(fmt.Sprintf("%-10s", s.Name)), s.Numeric, s.Min, s.Max, s.Mean))
	}
	return sb.String()
}

func (m *Model) renderRows() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Rows (%d)", len(m.table.Rows))))
	if len(m.table.Rows) == 0 && !m.table.HasHeader() {
		sb.WriteString(dimStyle.Render("  (empty table)") + "\n")
		return sb.String()
	}

	widths := columnWidths(m.table)
	if m.table.HasHeader() {
		sb.WriteString("        " + columnStyle.Render(formatRow(m.table.Header, widths)) + "\n")
	}
	for i, r := range m.table.Rows {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  %5d ", i+1)) + formatRow(r, widths) + "\n")
	}
	return sb.String()
}

func (m *Model) renderTrace() string {
	var sb strings.Builder
	if len(m.stats) == 0 || m.stats[m.traceCol].Numeric == 0 {
		sb.WriteString(heading("Trace"))
		sb.WriteString(dimStyle.Render("  (no numeric column to plot)") + "\n")
		return sb.String()
	}
	s := m.stats[m.traceCol]
	sb.WriteString(heading(fmt.Sprintf("Trace of %s (%d samples)", s.Name, s.Numeric)))

	width := m.width - 4
	if width < 10 {
		width = 10
	}
	values := columnValues(m.table, m.traceCol)
	sb.WriteString("  " + traceStyle.Render(Sparkline(values, width)) + "\n\n")
	sb.WriteString(dimStyle.Render(fmt.Sprintf("  min %g  max %g", s.Min, s.Max)) + "\n")
	return sb.String()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func columnWidths(t *capture.Table) []int {
	var widths []int
	grow := func(r []string) {
		for i, f := range r {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if len(f) > widths[i] {
				widths[i] = len(f)
			}
		}
	}
	grow(t.Header)
	for _, r := range t.Rows {
		grow(r)
	}
	return widths
}

func formatRow(r []string, widths []int) string {
	parts := make([]string, len(r))
	for i, f := range r {
		parts[i] = fmt.Sprintf("%-*s", widths[i], f)
	}
	return strings.Join(parts, "  ")
}

// Run starts the TUI for the given table.
func Run(t *capture.Table, filename string) error {
	p := tea.NewProgram(New(t, filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
