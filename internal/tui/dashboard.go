package tui

import (
	"fmt"
	"time"

	"cardiokinetic/internal/analysis"
	"cardiokinetic/internal/service"
	"cardiokinetic/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

const loadHistoryDays = 14

// DashboardModel is the dashboard screen model
type DashboardModel struct {
	engine  *service.Engine
	data    *dashboardData
	loading bool
	err     error
}

type dashboardData struct {
	snapshot    *service.Snapshot
	recent      []store.Session
	loadHistory []float64
}

// NewDashboardModel creates a new dashboard model
func NewDashboardModel(engine *service.Engine) DashboardModel {
	return DashboardModel{
		engine:  engine,
		loading: true,
	}
}

// Init initializes the dashboard
func (m DashboardModel) Init() tea.Cmd {
	return m.loadData
}

func (m DashboardModel) loadData() tea.Msg {
	snap, err := m.engine.AdvanceTo(time.Now())
	if err != nil {
		return dashboardDataMsg{err: err}
	}

	recent, err := m.engine.RecentSessions(5)
	if err != nil {
		return dashboardDataMsg{err: err}
	}

	history, err := m.engine.DailyLoadHistory(time.Now(), loadHistoryDays)
	if err != nil {
		return dashboardDataMsg{err: err}
	}

	return dashboardDataMsg{data: &dashboardData{
		snapshot:    snap,
		recent:      recent,
		loadHistory: history,
	}}
}

type dashboardDataMsg struct {
	data *dashboardData
	err  error
}

// Update handles messages
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		m.loading = false
		m.err = msg.err
		m.data = msg.data
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			m.loading = true
			return m, m.loadData
		}
	}
	return m, nil
}

// View renders the dashboard
func (m DashboardModel) View() string {
	if m.loading {
		return "\n  Updating model..."
	}

	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err))
	}

	if m.data == nil {
		return "\n  No data available. Press 's' to sync or '2' to check in."
	}

	var sections []string

	// Top row: today's state and the power model side by side
	stateCard := m.renderStateCard()
	powerCard := m.renderPowerCard()
	topRow := lipgloss.JoinHorizontal(lipgloss.Top, stateCard, "  ", powerCard)
	sections = append(sections, topRow)

	// Load chart
	if anyPositive(m.data.loadHistory) {
		sections = append(sections, m.renderLoadChart())
	}

	// Recent sessions
	sections = append(sections, m.renderRecentSessions())

	help := statusStyle.Render("Press 'r' to refresh, '2' to check in, '3' for projection")
	sections = append(sections, help)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m DashboardModel) renderStateCard() string {
	title := cardTitleStyle.Render("Today")
	snap := m.data.snapshot

	checkin := "not yet today"
	if snap.HasCheckin {
		checkin = "done"
	}

	lines := []string{
		RenderMetric("Fatigue", fmt.Sprintf("%d / 100", snap.Fatigue), ""),
		RenderMetric("Readiness", fmt.Sprintf("%d / 100", snap.Readiness), ""),
		RenderMetric("Recovery rate", fmt.Sprintf("%.2fx", snap.RecoveryEfficiency), ""),
		RenderMetric("Check-in", checkin, ""),
		"",
		statusStyle.MarginTop(0).Render(describeReadiness(snap.Readiness)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(42).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m DashboardModel) renderPowerCard() string {
	title := cardTitleStyle.Render("Power Model")
	snap := m.data.snapshot

	lines := []string{
		RenderMetric("Critical power", fmt.Sprintf("%.0f W", snap.CP), ""),
		RenderMetric("W'", fmt.Sprintf("%.1f kJ", snap.WPrime/1000), ""),
		RenderMetric("Confidence", fmt.Sprintf("%.0f%%", snap.Confidence*100), ""),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(36).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m DashboardModel) renderLoadChart() string {
	title := cardTitleStyle.Render(fmt.Sprintf("Daily Load - Last %d Days", loadHistoryDays))

	graph := asciigraph.Plot(m.data.loadHistory,
		asciigraph.Height(8),
		asciigraph.Width(60),
		asciigraph.Precision(0),
	)

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, graph))
}

func (m DashboardModel) renderRecentSessions() string {
	title := cardTitleStyle.Render("Recent Sessions")

	if len(m.data.recent) == 0 {
		return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, "No sessions yet"))
	}

	header := tableHeaderStyle.Render(fmt.Sprintf("%-10s  %8s  %7s  %5s  %-8s  %6s",
		"Date", "Duration", "Power", "RPE", "Style", "Load"))

	rows := []string{header}
	for _, sess := range m.data.recent {
		load := analysis.SessionLoad(sess, m.data.snapshot.CP)
		row := tableRowStyle.Render(fmt.Sprintf("%-10s  %7.0fm  %5.0f W  %5.1f  %-8s  %6.0f",
			sess.Date.Format("Jan 02"),
			sess.DurationMinutes,
			sess.AveragePower,
			sess.RPE,
			sess.Style,
			load,
		))
		rows = append(rows, row)
	}

	table := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, table))
}

func describeReadiness(readiness int) string {
	switch {
	case readiness >= 75:
		return "Fresh. A hard session would land well."
	case readiness >= 50:
		return "Normal training state."
	case readiness >= 30:
		return "Carrying fatigue. Favor easy work."
	default:
		return "Deeply fatigued. Rest or very light work."
	}
}

func anyPositive(vs []float64) bool {
	for _, v := range vs {
		if v > 0 {
			return true
		}
	}
	return false
}
