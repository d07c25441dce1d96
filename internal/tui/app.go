package tui

import (
	"cardiokinetic/internal/config"
	"cardiokinetic/internal/service"
	"cardiokinetic/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Screen identifiers
type Screen int

const (
	ScreenDashboard Screen = iota
	ScreenCheckin
	ScreenSimulation
	ScreenSync
	ScreenHelp
)

// App is the root Bubble Tea model
type App struct {
	screen     Screen
	prevScreen Screen

	// Screen models
	dashboard  DashboardModel
	checkin    CheckinModel
	simulation SimulationModel
	syncScreen SyncModel
	help       HelpModel

	// Services
	db          *store.Store
	cfg         *config.Config
	engine      *service.Engine
	simService  *service.SimulationService
	syncService *service.SyncService

	// Window dimensions
	width  int
	height int

	// Status message
	status string
}

// NewApp creates a new App with all dependencies. syncService may be nil
// when no Strava account is connected.
func NewApp(db *store.Store, cfg *config.Config, engine *service.Engine, simService *service.SimulationService, syncService *service.SyncService) *App {
	return &App{
		screen:      ScreenDashboard,
		db:          db,
		cfg:         cfg,
		engine:      engine,
		simService:  simService,
		syncService: syncService,
		dashboard:   NewDashboardModel(engine),
		checkin:     NewCheckinModel(db, engine),
		simulation:  NewSimulationModel(simService, engine, 0, 0),
		syncScreen:  NewSyncModel(syncService),
		help:        NewHelpModel(),
	}
}

// Init initializes the app
func (a *App) Init() tea.Cmd {
	return a.dashboard.Init()
}

// Update handles messages
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Global keybindings (unless mid sync or mid check-in entry)
		if (a.screen != ScreenSync || !a.syncScreen.syncing) && (a.screen != ScreenCheckin || !a.checkin.active) {
			switch msg.String() {
			case "q", "ctrl+c":
				return a, tea.Quit
			case "1":
				a.screen = ScreenDashboard
				a.dashboard = NewDashboardModel(a.engine)
				return a, a.dashboard.Init()
			case "2":
				a.screen = ScreenCheckin
				a.checkin = NewCheckinModel(a.db, a.engine)
				return a, a.checkin.Init()
			case "3":
				a.screen = ScreenSimulation
				a.simulation = NewSimulationModel(a.simService, a.engine, a.width, a.height)
				return a, a.simulation.Init()
			case "4", "s":
				if a.screen != ScreenSync {
					a.screen = ScreenSync
					return a, a.syncScreen.Init()
				}
				// Let 's' fall through to sync screen when already there
			case "?":
				a.prevScreen = a.screen
				a.screen = ScreenHelp
				return a, nil
			case "esc":
				if a.screen == ScreenHelp {
					a.screen = a.prevScreen
					return a, nil
				}
			}
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case SyncCompleteMsg:
		// Refresh dashboard after sync
		a.screen = ScreenDashboard
		a.dashboard = NewDashboardModel(a.engine)
		return a, a.dashboard.Init()

	case CheckinSavedMsg:
		// Re-run the model with the new check-in, then show the result
		a.screen = ScreenDashboard
		a.dashboard = NewDashboardModel(a.engine)
		return a, a.dashboard.Init()
	}

	// Delegate to current screen
	var cmd tea.Cmd
	switch a.screen {
	case ScreenDashboard:
		var m tea.Model
		m, cmd = a.dashboard.Update(msg)
		a.dashboard = m.(DashboardModel)
	case ScreenCheckin:
		var m tea.Model
		m, cmd = a.checkin.Update(msg)
		a.checkin = m.(CheckinModel)
	case ScreenSimulation:
		var m tea.Model
		m, cmd = a.simulation.Update(msg)
		a.simulation = m.(SimulationModel)
	case ScreenSync:
		var m tea.Model
		m, cmd = a.syncScreen.Update(msg)
		a.syncScreen = m.(SyncModel)
	case ScreenHelp:
		var m tea.Model
		m, cmd = a.help.Update(msg)
		a.help = m.(HelpModel)
	}

	return a, cmd
}

// View renders the app
func (a *App) View() string {
	header := a.renderHeader()
	nav := a.renderNav()

	var content string
	switch a.screen {
	case ScreenDashboard:
		content = a.dashboard.View()
	case ScreenCheckin:
		content = a.checkin.View()
	case ScreenSimulation:
		content = a.simulation.View()
	case ScreenSync:
		content = a.syncScreen.View()
	case ScreenHelp:
		content = a.help.View()
	}

	footer := a.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, nav, content, footer)
}

func (a *App) renderHeader() string {
	return headerStyle.Render("Cardiokinetic Training Engine")
}

func (a *App) renderNav() string {
	items := []struct {
		key    string
		label  string
		screen Screen
	}{
		{"1", "Dashboard", ScreenDashboard},
		{"2", "Check-in", ScreenCheckin},
		{"3", "Projection", ScreenSimulation},
		{"4", "Sync", ScreenSync},
		{"?", "Help", ScreenHelp},
	}

	var nav string
	for i, item := range items {
		if i > 0 {
			nav += "  "
		}

		label := "[" + item.key + "] " + item.label
		if a.screen == item.screen {
			nav += navActiveStyle.Render(label)
		} else {
			nav += navInactiveStyle.Render(label)
		}
	}

	nav += "  " + navInactiveStyle.Render("[q] Quit")

	return navStyle.Render(nav)
}

func (a *App) renderFooter() string {
	if a.status != "" {
		return statusStyle.Render(a.status)
	}
	return ""
}

// SyncCompleteMsg is sent when sync finishes
type SyncCompleteMsg struct{}

// CheckinSavedMsg is sent after a check-in is saved and the model re-advanced
type CheckinSavedMsg struct{}
