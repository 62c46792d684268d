// Package tui provides the terminal UI: live analysis progress followed by an
// interactive report with a metric list and a detail panel.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"rapport-agent/src/contracts"
	"rapport-agent/src/extract"
	"rapport-agent/src/pipeline"
)

// Status is the phase the UI is in.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusFailed
)

// ResultMsg delivers the outcome of the analysis run.
type ResultMsg struct {
	Report *contracts.Report
	Err    error
}

// MainModel is the Bubble Tea model for the report UI.
type MainModel struct {
	styles         *StyleConfig
	header         Header
	listView       View
	detailViewport viewport.Model
	progress       ProgressModel

	items   []Item
	report  *contracts.Report
	failure extract.UserError
	status  Status

	width         int
	height        int
	ready         bool
	detailFocused bool
	searchMode    bool
	searchQuery   string

	// cancel stops the analysis when the user quits early.
	cancel context.CancelFunc
}

// NewMainModel creates a model that waits for progress and a ResultMsg.
func NewMainModel(cancel context.CancelFunc) MainModel {
	styles := DefaultStyles()
	if cancel == nil {
		cancel = func() {}
	}
	return MainModel{
		styles:         styles,
		header:         NewHeaderWithStyles(styles),
		listView:       NewView(styles),
		detailViewport: viewport.New(0, 0),
		progress:       NewProgressModel(),
		status:         StatusLoading,
		cancel:         cancel,
	}
}

// NewReportModel creates a model showing a finished report.
func NewReportModel(r *contracts.Report) MainModel {
	m := NewMainModel(nil)
	m.setReport(r)
	return m
}

// Init starts the spinner while loading.
func (m MainModel) Init() tea.Cmd {
	if m.status == StatusLoading {
		return SpinnerTick()
	}
	return nil
}

func (m *MainModel) setReport(r *contracts.Report) {
	m.report = r
	m.status = StatusReady
	m.header.SetReport(r)
	m.items = itemsFor(r)
	m.applyFilter()
}

// failureFor converts an analysis error into what the user sees.
func failureFor(err error) extract.UserError {
	var userErr *extract.UserError
	if errors.As(extract.WrapError(err), &userErr) {
		return extract.UserError{Message: userErr.Message, Hint: userErr.Hint}
	}
	if errors.Is(err, context.Canceled) {
		return extract.UserError{Message: "Analysis cancelled"}
	}
	return extract.UserError{Message: fmt.Sprintf("Analysis failed: %v", err)}
}

// Update handles messages and updates the model state.
func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeComponents()
		return m, nil

	case ProgressMsg, SpinnerTickMsg:
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd

	case ResultMsg:
		if msg.Err != nil {
			m.status = StatusFailed
			m.failure = failureFor(msg.Err)
			return m, nil
		}
		m.setReport(msg.Report)
		if m.ready {
			m.resizeComponents()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.detailFocused {
		m.detailViewport, cmd = m.detailViewport.Update(msg)
	}
	return m, cmd
}

func (m MainModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.cancel()
		return m, tea.Quit
	}

	if m.searchMode {
		switch msg.Type {
		case tea.KeyEsc:
			m.searchQuery = ""
			m.searchMode = false
		case tea.KeyEnter:
			m.searchMode = false
		case tea.KeyBackspace:
			if r := []rune(m.searchQuery); len(r) > 0 {
				m.searchQuery = string(r[:len(r)-1])
			}
		case tea.KeyRunes, tea.KeySpace:
			m.searchQuery += string(msg.Runes)
		}
		m.header.SetSearch(m.searchQuery, m.searchMode)
		m.applyFilter()
		return m, nil
	}

	if msg.String() == "q" {
		m.cancel()
		return m, tea.Quit
	}
	if m.status != StatusReady {
		return m, nil
	}

	var cmd tea.Cmd
	if m.detailFocused {
		switch msg.String() {
		case "esc", "h", "left":
			m.detailFocused = false
		default:
			m.detailViewport, cmd = m.detailViewport.Update(msg)
		}
		return m, cmd
	}

	switch msg.String() {
	case "enter", "l", "right":
		m.detailFocused = true
	case "tab":
		m.header.CycleFilter()
		m.applyFilter()
	case "/":
		m.searchMode = true
		m.header.SetSearch(m.searchQuery, true)
	default:
		before, _ := m.listView.GetSelectedItem()
		m.listView, cmd = m.listView.Update(msg)
		if after, ok := m.listView.GetSelectedItem(); ok && after.Entry.ID != before.Entry.ID {
			m.updateDetailContent()
		}
	}
	return m, cmd
}

// RunFunc runs one analysis, reporting progress as it goes.
type RunFunc func(ctx context.Context, onProgress pipeline.ProgressFunc) (*contracts.Report, error)

// Start runs the analysis behind a live progress screen, then shows the
// report until the user quits. Quitting early cancels the analysis.
func Start(ctx context.Context, run RunFunc) (*contracts.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewMainModel(cancel), tea.WithAltScreen())

	type outcome struct {
		report *contracts.Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := run(ctx, func(pr pipeline.Progress) {
			p.Send(ProgressMsg(pr))
		})
		p.Send(ResultMsg{Report: report, Err: err})
		done <- outcome{report: report, err: err}
	}()

	_, err := p.Run()
	cancel()
	res := <-done
	if err != nil {
		return nil, fmt.Errorf("failed to run TUI: %w", err)
	}
	return res.report, res.err
}

// Show displays a finished report.
func Show(r *contracts.Report) error {
	if _, err := tea.NewProgram(NewReportModel(r), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}
