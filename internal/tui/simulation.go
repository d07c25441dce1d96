package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cardiokinetic/internal/analysis"
	"cardiokinetic/internal/config"
	"cardiokinetic/internal/plan"
	"cardiokinetic/internal/service"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

// SimulationModel is the plan projection screen model
type SimulationModel struct {
	simService *service.SimulationService
	engine     *service.Engine

	tpl        *plan.Template
	projection *service.Projection
	advice     *analysis.Adjustment

	viewport viewport.Model
	loading  bool
	err      error
	width    int
	height   int
	ready    bool
}

// NewSimulationModel creates a new simulation model
func NewSimulationModel(ss *service.SimulationService, engine *service.Engine, width, height int) SimulationModel {
	m := SimulationModel{
		simService: ss,
		engine:     engine,
		loading:    true,
		width:      width,
		height:     height,
	}

	if width > 0 && height > 0 {
		m.viewport = viewport.New(width, height-6)
		m.ready = true
	}

	return m
}

// Init initializes the simulation screen
func (m SimulationModel) Init() tea.Cmd {
	return m.loadCached
}

type simulationLoadedMsg struct {
	tpl        *plan.Template
	projection *service.Projection
	advice     *analysis.Adjustment
	err        error
}

func (m SimulationModel) loadCached() tea.Msg {
	return m.runProjection(false)
}

func (m SimulationModel) rerun() tea.Msg {
	return m.runProjection(true)
}

func (m SimulationModel) runProjection(force bool) tea.Msg {
	tpl, err := loadTemplate()
	if err != nil {
		return simulationLoadedMsg{err: err}
	}

	ctx := context.Background()
	weekCount := tpl.WeekCount(0)

	var proj *service.Projection
	if force {
		proj, err = m.simService.Resimulate(ctx, tpl, weekCount, nil)
	} else {
		proj, err = m.simService.Project(ctx, tpl, weekCount, nil)
	}
	if err != nil {
		return simulationLoadedMsg{err: err}
	}

	// Advise on week 1 against today's state. The advisory is informational
	// here; the CLI simulate command can target any week.
	snap, err := m.engine.AdvanceTo(time.Now())
	if err != nil {
		return simulationLoadedMsg{err: err}
	}
	advice, err := m.simService.Recommend(ctx, tpl, weekCount, 1, snap)
	if err != nil {
		return simulationLoadedMsg{err: err}
	}

	return simulationLoadedMsg{tpl: tpl, projection: proj, advice: advice}
}

func loadTemplate() (*plan.Template, error) {
	dir, err := config.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return plan.Load(filepath.Join(dir, "template.yaml"))
}

// Update handles messages
func (m SimulationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case simulationLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.tpl = msg.tpl
		m.projection = msg.projection
		m.advice = msg.advice
		if m.ready && m.err == nil {
			m.viewport.SetContent(m.renderContent())
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-6)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 6
		}
		if m.projection != nil {
			m.viewport.SetContent(m.renderContent())
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			m.loading = true
			return m, m.rerun
		}
	}

	// Handle viewport scrolling
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the simulation screen
func (m SimulationModel) View() string {
	if m.loading {
		return "\n  Running projection..."
	}

	if m.err != nil {
		if errors.Is(m.err, plan.ErrNoTemplate) {
			dir, _ := config.GetConfigDir()
			return lipgloss.JoinVertical(lipgloss.Left,
				warningStyle.Render("\n  No plan template found."),
				statusStyle.Render(fmt.Sprintf("  Create %s to project a training plan.", filepath.Join(dir, "template.yaml"))),
			)
		}
		return errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err))
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	footer := statusStyle.Render("  ↑/↓ scroll, 'r' to re-run the simulation")
	return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), footer)
}

func (m SimulationModel) renderContent() string {
	var sections []string

	run := m.projection.Run
	title := cardTitleStyle.Render(fmt.Sprintf("%s - %d Week Projection", m.tpl.Name, run.WeekCount))
	sections = append(sections, title)

	info := fmt.Sprintf("  %d iterations (%d valid), run %s",
		run.Iterations, run.ValidIterations, run.CreatedAt.Format("Jan 02 15:04"))
	sections = append(sections, statusStyle.MarginTop(0).Render(info))

	if run.Degraded {
		sections = append(sections, warningStyle.Render("  Degraded: over half the iterations were discarded. Check the template for extreme loads."))
	}

	sections = append(sections, m.renderBandChart())
	sections = append(sections, m.renderBandTable())
	sections = append(sections, m.renderAdvice())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderBandChart plots the readiness spread: pessimistic (P15), median,
// and optimistic (P85) trajectories on one chart.
func (m SimulationModel) renderBandChart() string {
	weeks := m.projection.Weeks

	p15 := make([]float64, len(weeks))
	median := make([]float64, len(weeks))
	p85 := make([]float64, len(weeks))
	for i, w := range weeks {
		p15[i] = w.Readiness.P15
		median[i] = w.Readiness.Median
		p85[i] = w.Readiness.P85
	}

	graph := asciigraph.PlotMany([][]float64{p15, median, p85},
		asciigraph.Height(8),
		asciigraph.Width(60),
		asciigraph.Precision(0),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Default, asciigraph.Green),
		asciigraph.SeriesLegends("P15", "median", "P85"),
	)

	title := cardTitleStyle.Render("Projected Readiness by Week")
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, graph))
}

func (m SimulationModel) renderBandTable() string {
	title := cardTitleStyle.Render("Weekly Percentile Bands")

	header := tableHeaderStyle.Render(fmt.Sprintf("%-4s  %-9s  %5s %5s %5s %5s %5s",
		"Week", "Metric", "P15", "P35", "P50", "P65", "P85"))

	rows := []string{header}
	for _, w := range m.projection.Weeks {
		rows = append(rows, tableRowStyle.Render(fmt.Sprintf("%-4d  %-9s  %5.0f %5.0f %5.0f %5.0f %5.0f",
			w.Week, "readiness",
			w.Readiness.P15, w.Readiness.P35, w.Readiness.Median, w.Readiness.P65, w.Readiness.P85)))
		rows = append(rows, tableRowStyle.Render(fmt.Sprintf("%-4s  %-9s  %5.0f %5.0f %5.0f %5.0f %5.0f",
			"", "fatigue",
			w.Fatigue.P15, w.Fatigue.P35, w.Fatigue.Median, w.Fatigue.P65, w.Fatigue.P85)))
	}

	table := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, table))
}

func (m SimulationModel) renderAdvice() string {
	title := cardTitleStyle.Render("This Week's Adjustment")
	a := m.advice

	var lines []string
	lines = append(lines, fmt.Sprintf("State: %s (%s deviation)", a.State, a.Tier))
	lines = append(lines, a.Advisory)

	if !a.Unchanged() {
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("Power  x%.2f   Volume x%.2f   RPE %+.1f",
			a.PowerMultiplier, a.VolumeMultiplier, a.RPEDelta))
		if a.AddRestDay {
			lines = append(lines, warningStyle.Render("Insert an extra rest day this week."))
		}
	}

	content := strings.Join(lines, "\n")
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}
