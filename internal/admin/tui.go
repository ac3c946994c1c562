package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xiy/rmm-mcp/internal/store"
	"github.com/xiy/rmm-mcp/pkg/types"
)

type tickMsg time.Time

type dashboardMsg struct {
	stats    store.Stats
	cycles   []types.CycleReport
	memories []types.Memory
	err      error
	duration time.Duration
}

type passMsg struct {
	reports []types.CycleReport
	err     error
}

// Collection exposes the live memory set and a full reprocessing pass.
type Collection interface {
	List() []types.Memory
	RunAll(ctx context.Context) ([]types.CycleReport, error)
}

// History reads journal counters and recent cycle reports.
type History interface {
	Stats(ctx context.Context) (store.Stats, error)
	RecentCycles(ctx context.Context, limit int) ([]types.CycleReport, error)
}

type model struct {
	ctx         context.Context
	coll        Collection
	hist        History
	stats       store.Stats
	cycles      []types.CycleReport
	memories    []types.Memory
	lastErr     error
	lastTick    time.Time
	logLines    []string
	maxLogs     int
	cyclesLimit int
	width       int
	height      int
}

// Run starts a lightweight local dashboard over the reprocessing service.
func Run(ctx context.Context, coll Collection, hist History) error {
	m := model{
		ctx:         ctx,
		coll:        coll,
		hist:        hist,
		maxLogs:     10,
		cyclesLimit: 8,
	}
	m = m.appendLog("admin UI started")
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchDashboardCmd(m.ctx, m.coll, m.hist, m.cyclesLimit), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m = m.appendLog("received quit signal")
			return m, tea.Quit
		case "c":
			m = m.appendLog("reprocessing pass requested")
			return m, runPassCmd(m.ctx, m.coll)
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.lastTick = time.Time(msg)
		return m, tea.Batch(fetchDashboardCmd(m.ctx, m.coll, m.hist, m.cyclesLimit), tickCmd())
	case passMsg:
		if msg.err != nil {
			m = m.appendLog(fmt.Sprintf("pass error: %v", msg.err))
		} else {
			corrected := 0
			for _, rep := range msg.reports {
				if rep.Outcome == types.OutcomeCorrected {
					corrected++
				}
			}
			m = m.appendLog(fmt.Sprintf("pass ok cycles=%d corrected=%d", len(msg.reports), corrected))
		}
	case dashboardMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			m.stats = msg.stats
			m.cycles = msg.cycles
			m.memories = msg.memories
			m = m.appendLog(fmt.Sprintf(
				"refresh ok mem=%d cycles=%d corrected=%d (%s)",
				msg.stats.Memories,
				msg.stats.Cycles,
				msg.stats.Corrected,
				formatDuration(msg.duration),
			))
		} else {
			m = m.appendLog(fmt.Sprintf("refresh error: %v", msg.err))
		}
	}
	return m, nil
}

func (m model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Render("rmm-mcp admin")
	meta := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("q to quit • c to run a reprocessing pass • refresh every 2s")

	logBody := "(no log events yet)"
	if len(m.logLines) > 0 {
		logBody = strings.Join(m.logLines, "\n")
	}

	paneWidth := 54
	if m.width > 0 {
		paneWidth = max(38, (m.width-3)/2)
	}
	paneHeight := 9
	if m.height > 0 {
		paneHeight = max(8, (m.height-8)/2)
	}

	topRow := joinColumns(
		renderPane("Stats", m.renderStats(), paneWidth, paneHeight),
		renderPane("Event Log", logBody, paneWidth, paneHeight),
	)
	bottomRow := joinColumns(
		renderPane("Recent Cycles", formatCyclesPane(m.cycles), paneWidth, paneHeight),
		renderPane("Memories", formatMemoriesPane(m.memories), paneWidth, paneHeight),
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		meta,
		"",
		topRow,
		bottomRow,
	)
}

func (m model) renderStats() string {
	body := fmt.Sprintf(
		"Memories:        %d\nAdaptive:        %d\nCycles run:      %d\nCorrected:       %d\nDissonant:       %d\nLast refresh:    %s",
		m.stats.Memories,
		m.stats.Adaptive,
		m.stats.Cycles,
		m.stats.Corrected,
		m.stats.Dissonant,
		formatTime(m.lastTick),
	)
	if m.lastErr != nil {
		body += "\n\nLast error: " + truncateText(compactWhitespace(m.lastErr.Error()), 120)
	}
	return body
}

func fetchDashboardCmd(ctx context.Context, coll Collection, hist History, cyclesLimit int) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		s, err := hist.Stats(ctx)
		if err != nil {
			return dashboardMsg{err: err, duration: time.Since(start)}
		}

		cycles, err := hist.RecentCycles(ctx, cyclesLimit)
		if err != nil {
			return dashboardMsg{stats: s, err: err, duration: time.Since(start)}
		}

		return dashboardMsg{
			stats:    s,
			cycles:   cycles,
			memories: coll.List(),
			duration: time.Since(start),
		}
	}
}

func runPassCmd(ctx context.Context, coll Collection) tea.Cmd {
	return func() tea.Msg {
		reports, err := coll.RunAll(ctx)
		return passMsg{reports: reports, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) appendLog(line string) model {
	if strings.TrimSpace(line) == "" {
		return m
	}
	entry := fmt.Sprintf("[%s] %s", time.Now().UTC().Format("15:04:05"), line)
	m.logLines = append(m.logLines, entry)
	if m.maxLogs <= 0 {
		m.maxLogs = 10
	}
	if len(m.logLines) > m.maxLogs {
		m.logLines = m.logLines[len(m.logLines)-m.maxLogs:]
	}
	return m
}

func formatCyclesPane(rows []types.CycleReport) string {
	if len(rows) == 0 {
		return "(no cycles yet)"
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		line := fmt.Sprintf(
			"[%s] %-18s %-19s s=%.2f v=%+.2f",
			formatClock(row.CreatedAt),
			truncateText(row.MemoryID, 18),
			string(row.Outcome),
			row.Strength,
			row.Valence,
		)
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatMemoriesPane(rows []types.Memory) string {
	if len(rows) == 0 {
		return "(no memories yet)"
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		adaptive := " "
		if row.IsAdaptive {
			adaptive = "A"
		}
		line := fmt.Sprintf(
			"%s %-18s n=%-3d v=%+.2f :: %s",
			adaptive,
			truncateText(row.Identifier, 18),
			row.ReprocessingCount,
			row.CurrentValence,
			truncateText(compactWhitespace(row.CurrentInference), 44),
		)
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderPane(title, body string, width, height int) string {
	style := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
	if width > 0 {
		style = style.Width(width)
	}
	if height > 0 {
		style = style.Height(height)
	}
	return style.Render(title + "\n\n" + body)
}

func joinColumns(left, right string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.UTC().Format("15:04:05")
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.String()
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}

func truncateText(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}

func compactWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
