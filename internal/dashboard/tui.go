package dashboard

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/alekspetrov/shipbot/internal/banner"
	"github.com/alekspetrov/shipbot/internal/history"
)

// Panel width (all panels same width)
const (
	panelTotalWidth = 69 // Total visual width including borders
	panelInnerWidth = 65 // panelTotalWidth - 4 (2 borders + 2 padding spaces)
)

// triggerRows caps how many journal records the triggers panel shows.
const triggerRows = 12

// refreshInterval is how often the dashboard re-reads the journal.
const refreshInterval = 2 * time.Second

// Styles (muted terminal aesthetic)
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7eb8da")) // steel blue

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3d4450")) // slate

	statusTriggeredStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#7ec699")) // sage green

	statusPendingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#6e7681"))

	statusFailedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#d48a8a")) // dusty rose

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8b949e"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8b949e"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c9d1d9"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4a054")) // amber
)

// Journal is the read side of the trigger journal the dashboard renders.
// *history.Store satisfies it.
type Journal interface {
	Recent(limit int) ([]*history.Record, error)
	CountByStatus() (map[string]int, error)
}

// Model is the dashboard TUI model. It polls the journal on a tick and
// renders recent triggers plus per-status totals.
type Model struct {
	journal Journal
	version string

	records []*history.Record
	counts  map[string]int
	loadErr error

	width    int
	height   int
	selected int
	quitting bool
}

// tickMsg is sent periodically to refresh the display
type tickMsg time.Time

// journalMsg carries a journal snapshot back into the update loop.
type journalMsg struct {
	records []*history.Record
	counts  map[string]int
	err     error
}

// NewModel creates a dashboard model reading from the given journal.
func NewModel(journal Journal, version string) Model {
	return Model{
		journal: journal,
		version: version,
		counts:  map[string]int{},
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadCmd(),
		tickCmd(),
		tea.EnterAltScreen,
	)
}

// tickCmd creates a tick command
func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// loadCmd reads the journal off the update loop.
func (m Model) loadCmd() tea.Cmd {
	journal := m.journal
	return func() tea.Msg {
		if journal == nil {
			return journalMsg{counts: map[string]int{}}
		}
		records, err := journal.Recent(triggerRows)
		if err != nil {
			return journalMsg{err: err}
		}
		counts, err := journal.CountByStatus()
		if err != nil {
			return journalMsg{err: err}
		}
		return journalMsg{records: records, counts: counts}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.loadCmd()
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.records)-1 {
				m.selected++
			}
		case "enter":
			if m.selected >= 0 && m.selected < len(m.records) {
				rec := m.records[m.selected]
				if rec.BuildURL != "" {
					_ = openBrowser(rec.BuildURL)
				}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(m.loadCmd(), tickCmd())

	case journalMsg:
		m.loadErr = msg.err
		if msg.err != nil {
			// Keep the last good snapshot on screen
			return m, nil
		}
		m.records = msg.records
		m.counts = msg.counts
		if m.selected >= len(m.records) {
			m.selected = len(m.records) - 1
		}
		if m.selected < 0 {
			m.selected = 0
		}
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shipbot stopped.\n"
	}

	var b strings.Builder

	// Header with ASCII logo
	b.WriteString("\n")                           // Top padding to match bottom spacing
	logo := strings.TrimPrefix(banner.Logo, "\n") // Remove leading newline
	b.WriteString(titleStyle.Render(logo))
	b.WriteString(titleStyle.Render(fmt.Sprintf("   Shipbot %s", m.version)))
	b.WriteString("\n\n")

	// Totals
	b.WriteString(m.renderTotals())
	b.WriteString("\n")

	// Recent triggers
	b.WriteString(m.renderTriggers())
	b.WriteString("\n")

	if m.loadErr != nil {
		b.WriteString(warningStyle.Render(fmt.Sprintf("  journal: %v", m.loadErr)))
		b.WriteString("\n")
	}

	// Help
	b.WriteString(helpStyle.Render("q: quit  r: refresh  j/k: select  enter: open build"))

	return b.String()
}

// renderTotals renders per-status trigger counts.
func (m Model) renderTotals() string {
	var content strings.Builder
	w := panelInnerWidth

	total := 0
	for _, n := range m.counts {
		total += n
	}

	content.WriteString(dotLeaderStyled("Triggered", formatCompact(m.counts[history.StatusTriggered]), statusTriggeredStyle, w))
	content.WriteString("\n")
	content.WriteString(dotLeaderStyled("Failed", formatCompact(m.counts[history.StatusFailed]), statusFailedStyle, w))
	content.WriteString("\n")
	content.WriteString(dotLeaderStyled("Pending", formatCompact(m.counts[history.StatusPending]), statusPendingStyle, w))
	content.WriteString("\n")
	content.WriteString(dotLeader("Total", formatCompact(total), w))

	return renderPanel("TOTALS", content.String())
}

// renderTriggers renders the recent journal records, newest first.
func (m Model) renderTriggers() string {
	var content strings.Builder

	if len(m.records) == 0 {
		content.WriteString("  No triggers yet")
		return renderPanel("RECENT TRIGGERS", content.String())
	}

	for i, rec := range m.records {
		if i > 0 {
			content.WriteString("\n")
		}
		content.WriteString(renderTriggerLine(rec, i == m.selected))
	}

	return renderPanel("RECENT TRIGGERS", content.String())
}

// renderTriggerLine renders one journal record.
// Layout: "> + build_ios       release/babylon/3.13.0259   slack     2m ago"
// cursor(1) + sp(1) + icon(1) + sp(1) + command(15) + sp(2) + branch(26) + sp(2) + source(8) + timeAgo(8) = 65
func renderTriggerLine(rec *history.Record, selected bool) string {
	const commandWidth = 15
	const branchWidth = 26

	icon, style := statusIconStyle(rec.Status)
	cursor := " "
	if selected {
		cursor = ">"
	}

	command := padOrTruncate(rec.Command, commandWidth)
	branch := padOrTruncate(rec.Branch, branchWidth)
	source := dimStyle.Render(padOrTruncate(rec.Source, 8))
	timeAgoStr := formatTimeAgo(rec.CreatedAt)

	return fmt.Sprintf("%s %s %s  %s  %s%8s",
		cursor,
		style.Render(icon),
		command,
		branch,
		source,
		dimStyle.Render(timeAgoStr),
	)
}

// statusIconStyle returns the icon and style for a journal record status.
func statusIconStyle(status string) (string, lipgloss.Style) {
	switch status {
	case history.StatusTriggered:
		return "+", statusTriggeredStyle
	case history.StatusFailed:
		return "x", statusFailedStyle
	case history.StatusPending:
		return "~", statusPendingStyle
	default:
		return ".", statusPendingStyle
	}
}

// formatTimeAgo formats a time as relative duration
func formatTimeAgo(t time.Time) string {
	duration := time.Since(t)
	if duration < time.Minute {
		return "just now"
	} else if duration < time.Hour {
		mins := int(duration.Minutes())
		return fmt.Sprintf("%dm ago", mins)
	} else if duration < 24*time.Hour {
		hours := int(duration.Hours())
		return fmt.Sprintf("%dh ago", hours)
	}
	return t.Format("Jan 2")
}

// renderPanel builds a panel manually with guaranteed width
// Total width: panelTotalWidth (69 chars)
// Structure: ╭─ TITLE ─...─╮ / │ (space) content (space) │ / ╰─...─╯
func renderPanel(title string, content string) string {
	var lines []string

	// Top border: ╭─ TITLE ─────────────────────────────────────────────────────╮
	lines = append(lines, buildTopBorder(title))

	// Empty line padding
	lines = append(lines, buildEmptyLine())

	// Content lines
	for _, line := range strings.Split(content, "\n") {
		lines = append(lines, buildContentLine(line))
	}

	// Empty line padding
	lines = append(lines, buildEmptyLine())

	// Bottom border
	lines = append(lines, buildBottomBorder())

	return strings.Join(lines, "\n")
}

// buildTopBorder creates: ╭─ TITLE ─────...─────╮ with exact panelTotalWidth
func buildTopBorder(title string) string {
	titleUpper := strings.ToUpper(title)
	prefix := "╭─ "
	prefixWidth := lipgloss.Width(prefix + titleUpper + " ")

	// Calculate dashes needed (each ─ is 1 visual char)
	dashCount := panelTotalWidth - prefixWidth - 1 // -1 for ╮
	if dashCount < 0 {
		dashCount = 0
	}

	// Style border chars dim, title bright
	return borderStyle.Render(prefix) + labelStyle.Render(titleUpper) + borderStyle.Render(" "+strings.Repeat("─", dashCount)+"╮")
}

// buildBottomBorder creates: ╰─────────────────────────────────────────────────╯
func buildBottomBorder() string {
	dashCount := panelTotalWidth - 2
	line := "╰" + strings.Repeat("─", dashCount) + "╯"
	return borderStyle.Render(line)
}

// buildEmptyLine creates: │                                                                 │
func buildEmptyLine() string {
	spaceCount := panelTotalWidth - 2
	border := borderStyle.Render("│")
	return border + strings.Repeat(" ", spaceCount) + border
}

// buildContentLine creates: │ (space) content padded/truncated (space) │
func buildContentLine(content string) string {
	// Available width for content = panelTotalWidth - 4 (│ + space + space + │)
	contentWidth := panelTotalWidth - 4

	// Pad or truncate content to exact width
	adjusted := padOrTruncate(content, contentWidth)

	// Only style borders, not content
	border := borderStyle.Render("│")
	return border + " " + adjusted + " " + border
}

// padOrTruncate ensures content is exactly targetWidth visual chars
func padOrTruncate(s string, targetWidth int) string {
	visualWidth := lipgloss.Width(s)

	if visualWidth == targetWidth {
		return s
	}

	if visualWidth > targetWidth {
		return truncateVisual(s, targetWidth)
	}

	// Pad with spaces
	return s + strings.Repeat(" ", targetWidth-visualWidth)
}

// truncateVisual truncates string to targetWidth visual chars, adding "..." only if needed
func truncateVisual(s string, targetWidth int) string {
	visualWidth := lipgloss.Width(s)

	// If string already fits, return as-is (no truncation needed)
	if visualWidth <= targetWidth {
		return s
	}

	if targetWidth <= 3 {
		return strings.Repeat(".", targetWidth)
	}

	// We need to truncate to targetWidth-3 and add "..."
	result := ""
	width := 0
	for _, r := range s {
		runeWidth := lipgloss.Width(string(r))
		if width+runeWidth > targetWidth-3 {
			break
		}
		result += string(r)
		width += runeWidth
	}

	// Pad to exactly targetWidth-3 if needed (in case of wide chars)
	for width < targetWidth-3 {
		result += " "
		width++
	}

	return result + "..."
}

// dotLeader creates a dot-leader line: "  Label .............. Value"
// Uses lipgloss.Width() for accurate visual width calculation
func dotLeader(label string, value string, totalWidth int) string {
	prefix := "  " + label + " "
	suffix := " " + value
	prefixWidth := lipgloss.Width(prefix)
	suffixWidth := lipgloss.Width(suffix)
	dotsNeeded := totalWidth - prefixWidth - suffixWidth
	if dotsNeeded < 3 {
		dotsNeeded = 3
	}
	return prefix + strings.Repeat(".", dotsNeeded) + suffix
}

// dotLeaderStyled creates a dot-leader with styled value
// Calculates width using raw value, then applies style
func dotLeaderStyled(label string, value string, style lipgloss.Style, totalWidth int) string {
	prefix := "  " + label + " "
	suffix := " " + value
	prefixWidth := lipgloss.Width(prefix)
	suffixWidth := lipgloss.Width(suffix)
	dotsNeeded := totalWidth - prefixWidth - suffixWidth
	if dotsNeeded < 3 {
		dotsNeeded = 3
	}
	// Apply style to value only (dots and spaces remain unstyled)
	return prefix + strings.Repeat(".", dotsNeeded) + " " + style.Render(value)
}

// formatCompact formats a number in compact form: 0, 999, 1.0K, 57.3K, 1.2M.
func formatCompact(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1_000_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
}

// openBrowser opens a URL in the default browser.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}
