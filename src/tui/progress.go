package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rapport-agent/src/pipeline"
)

// Logo lines for the loading screen
var rapportLogo = []string{
	" ____      _    ____  ____   ___  ____ _____ ",
	"|  _ \\    / \\  |  _ \\|  _ \\ / _ \\|  _ \\_   _|",
	"| |_) |  / _ \\ | |_) | |_) | | | | |_) || |  ",
	"|  _ <  / ___ \\|  __/|  __/| |_| |  _ < | |  ",
	"|_| \\_\\/_/   \\_\\_|   |_|    \\___/|_| \\_\\|_|  ",
}

// Gradient colors from light (top) to dark (bottom)
var logoGradientColors = []string{
	"#5DADE2",
	"#3498DB",
	"#2E86C1",
	"#2874A6",
	"#21618C",
}

// Spinner frames for the loading animation
var spinnerFrames = []string{"\u280b", "\u2819", "\u2839", "\u2838", "\u283c", "\u2834", "\u2826", "\u2827", "\u2807", "\u280f"}

const barWidth = 30

// ProgressMsg carries one orchestrator progress snapshot.
type ProgressMsg pipeline.Progress

// SpinnerTickMsg triggers spinner animation frame advance
type SpinnerTickMsg time.Time

type ProgressModel struct {
	progress     pipeline.Progress
	spinnerFrame int
}

func NewProgressModel() ProgressModel {
	return ProgressModel{progress: pipeline.Progress{State: pipeline.StateIdle}}
}

// SpinnerTick returns a command that sends SpinnerTickMsg after a delay
func SpinnerTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return SpinnerTickMsg(t)
	})
}

// Done reports whether the run reached a final state.
func (m ProgressModel) Done() bool {
	return m.progress.State == pipeline.StateCompleted || m.progress.State == pipeline.StateFailed
}

func (m ProgressModel) Update(msg tea.Msg) (ProgressModel, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		m.progress = pipeline.Progress(msg)
	case SpinnerTickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		if !m.Done() {
			return m, SpinnerTick()
		}
	}
	return m, nil
}

// bar renders a fixed-width percentage bar.
func bar(percent int) string {
	percent = max(0, min(100, percent))
	filled := barWidth * percent / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "]"
}

func (m ProgressModel) View() string {
	var logoLines []string
	for i, line := range rapportLogo {
		color := logoGradientColors[i%len(logoGradientColors)]
		style := lipgloss.NewStyle().
			Foreground(lipgloss.Color(color)).
			Bold(true)
		logoLines = append(logoLines, style.Render(line))
	}
	logo := strings.Join(logoLines, "\n")

	p := m.progress
	if m.Done() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
		if p.State == pipeline.StateFailed {
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
		}
		return lipgloss.JoinVertical(lipgloss.Center, logo, "", style.Render(p.Message))
	}

	spinner := spinnerFrames[m.spinnerFrame]
	spinnerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))

	message := p.Message
	if message == "" {
		message = "Loading"
	}
	statusLine := fmt.Sprintf("%s %s", spinnerStyle.Render(spinner), message)
	barLine := fmt.Sprintf("%s %3d%%", bar(p.Percent), p.Percent)

	return lipgloss.JoinVertical(lipgloss.Center, logo, "", statusLine, barLine)
}
