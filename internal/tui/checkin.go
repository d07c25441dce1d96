package tui

import (
	"fmt"
	"strings"
	"time"

	"cardiokinetic/internal/analysis"
	"cardiokinetic/internal/service"
	"cardiokinetic/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// questionPrompts maps question ids to what the athlete is asked.
var questionPrompts = map[string]string{
	analysis.QuestionSleep:      "How well did you sleep?",
	analysis.QuestionEnergy:     "How is your energy today?",
	analysis.QuestionSoreness:   "How sore are your muscles?",
	analysis.QuestionStress:     "How stressed do you feel?",
	analysis.QuestionMotivation: "How motivated are you to train?",
}

// questionScales describes what 1 and 5 mean for each question.
var questionScales = map[string]string{
	analysis.QuestionSleep:      "1 = terrible, 5 = great",
	analysis.QuestionEnergy:     "1 = drained, 5 = full",
	analysis.QuestionSoreness:   "1 = none, 5 = very sore",
	analysis.QuestionStress:     "1 = relaxed, 5 = very stressed",
	analysis.QuestionMotivation: "1 = none, 5 = eager",
}

// CheckinModel is the daily wellness check-in screen model
type CheckinModel struct {
	db     *store.Store
	engine *service.Engine

	active   bool // mid-questionnaire, digits captured
	current  int
	scores   map[string]int
	existing *store.QuestionnaireResponse

	saving  bool
	loading bool
	err     error
}

// NewCheckinModel creates a new check-in model
func NewCheckinModel(db *store.Store, engine *service.Engine) CheckinModel {
	return CheckinModel{
		db:      db,
		engine:  engine,
		loading: true,
		scores:  make(map[string]int),
	}
}

// Init initializes the check-in screen
func (m CheckinModel) Init() tea.Cmd {
	return m.loadExisting
}

type checkinLoadedMsg struct {
	existing *store.QuestionnaireResponse
	err      error
}

type checkinSaveResultMsg struct {
	err error
}

func (m CheckinModel) loadExisting() tea.Msg {
	resp, err := m.db.GetQuestionnaire(time.Now())
	return checkinLoadedMsg{existing: resp, err: err}
}

func (m CheckinModel) save() tea.Cmd {
	scores := m.scores
	return func() tea.Msg {
		resp := &store.QuestionnaireResponse{
			Date:   time.Now(),
			Scores: scores,
		}
		if err := m.db.SaveQuestionnaire(resp); err != nil {
			return checkinSaveResultMsg{err: err}
		}
		// Today may already be processed, so replay with the new evidence.
		if _, err := m.engine.Rebuild(time.Now()); err != nil {
			return checkinSaveResultMsg{err: err}
		}
		return checkinSaveResultMsg{}
	}
}

// Update handles messages
func (m CheckinModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case checkinLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.existing = msg.existing

	case checkinSaveResultMsg:
		m.saving = false
		m.err = msg.err
		if msg.err == nil {
			return m, func() tea.Msg { return CheckinSavedMsg{} }
		}

	case tea.KeyMsg:
		if m.loading || m.saving {
			return m, nil
		}
		if !m.active {
			switch msg.String() {
			case "enter", "c":
				m.active = true
				m.current = 0
				m.scores = make(map[string]int)
			}
			return m, nil
		}

		switch msg.String() {
		case "1", "2", "3", "4", "5":
			score := int(msg.String()[0] - '0')
			m.scores[analysis.Questions[m.current]] = score
			m.current++
			if m.current >= len(analysis.Questions) {
				m.active = false
				m.saving = true
				return m, m.save()
			}
		case "backspace":
			if m.current > 0 {
				m.current--
				delete(m.scores, analysis.Questions[m.current])
			}
		case "esc":
			m.active = false
		}
	}
	return m, nil
}

// View renders the check-in screen
func (m CheckinModel) View() string {
	title := cardTitleStyle.Render("Daily Check-in")

	if m.loading {
		return "\n  Loading..."
	}

	if m.saving {
		return lipgloss.JoinVertical(lipgloss.Left, title, "\n  Saving and updating model...")
	}

	if m.err != nil {
		return lipgloss.JoinVertical(lipgloss.Left, title,
			errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err)),
			"\n"+statusStyle.Render("  Press Enter to try again"))
	}

	if m.active {
		return lipgloss.JoinVertical(lipgloss.Left, title, m.renderQuestions())
	}

	var lines []string
	lines = append(lines, "")
	if m.existing != nil {
		lines = append(lines, successStyle.Render("  Checked in today."))
		lines = append(lines, "")
		for _, id := range analysis.Questions {
			if score, ok := m.existing.Scores[id]; ok {
				lines = append(lines, fmt.Sprintf("  %-12s %d/5", id, score))
			}
		}
		lines = append(lines, "")
		lines = append(lines, statusStyle.Render("  Press Enter to redo today's check-in"))
	} else {
		lines = append(lines, "  Five quick questions, scored 1-5.")
		lines = append(lines, "  Your answers tune today's recovery rate and readiness.")
		lines = append(lines, "")
		lines = append(lines, statusStyle.Render("  Press Enter to start"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"))
}

func (m CheckinModel) renderQuestions() string {
	var lines []string
	lines = append(lines, "")

	for i, id := range analysis.Questions {
		prompt := questionPrompts[id]
		switch {
		case i < m.current:
			lines = append(lines, questionDoneStyle.Render(fmt.Sprintf("  ✓ %s  %d/5", prompt, m.scores[id])))
		case i == m.current:
			lines = append(lines, questionActiveStyle.Render(fmt.Sprintf("  > %s", prompt)))
			lines = append(lines, statusStyle.MarginTop(0).Render(fmt.Sprintf("      %s", questionScales[id])))
		default:
			lines = append(lines, navInactiveStyle.Render(fmt.Sprintf("    %s", prompt)))
		}
	}

	lines = append(lines, "")
	lines = append(lines, statusStyle.Render("  Press 1-5 to answer, backspace to go back, esc to cancel"))

	return strings.Join(lines, "\n")
}
