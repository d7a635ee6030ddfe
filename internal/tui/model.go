// Package tui renders a live deliberation in the terminal. It is a thin
// shell over the view reducer: every incoming event folds into a Snapshot
// and View draws whatever the snapshot says, so the terminal view and any
// other client of the event stream can never disagree.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/synod-dev/synod/internal/council"
	"github.com/synod-dev/synod/internal/view"
)

// EventMsg delivers one deliberation event to the program.
type EventMsg struct {
	Event council.Event
}

// DoneMsg signals that the deliberation goroutine has finished.
type DoneMsg struct {
	Session *council.Session
	Err     error
}

// Model is the bubbletea model for one deliberation.
type Model struct {
	question string
	snapshot view.Snapshot
	spinner  spinner.Model
	width    int
	err      error
	finished bool
}

// New creates a model for the given question.
func New(question string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle
	return Model{question: question, spinner: sp, width: 80}
}

// Err returns the terminal error, if the deliberation failed outright.
func (m Model) Err() error { return m.err }

// Snapshot exposes the final state for post-run printing.
func (m Model) Snapshot() view.Snapshot { return m.snapshot }

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
		return m, nil

	case EventMsg:
		m.snapshot = view.Reduce(m.snapshot, msg.Event)
		return m, nil

	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("synod"))
	b.WriteString("  ")
	b.WriteString(questionStyle.Render(truncate(m.question, m.width-10)))
	b.WriteString("\n\n")

	for _, round := range m.snapshot.Rounds {
		b.WriteString(m.renderRound(round))
	}

	if m.snapshot.Stage == council.StageSynthesis && m.snapshot.Synthesis == nil {
		b.WriteString(stageHeaderStyle.Render(fmt.Sprintf("%s synthesis", m.spinner.View())))
		b.WriteString("\n")
		if m.snapshot.SynthesisStream != "" {
			b.WriteString(streamStyle.Render(tail(m.snapshot.SynthesisStream, 6, m.width)))
			b.WriteString("\n")
		}
	}

	if m.snapshot.Synthesis != nil {
		b.WriteString(stageHeaderStyle.Render("answer"))
		b.WriteString("\n")
		style := synthesisStyle
		if m.snapshot.Synthesis.Failed() {
			style = errorStyle
		}
		b.WriteString(style.Width(min(m.width-2, 100)).Render(m.snapshot.Synthesis.Content))
		b.WriteString("\n")
	}

	if len(m.snapshot.Errors) > 0 {
		b.WriteString("\n")
		for _, pe := range m.snapshot.Errors {
			b.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s (%s, %s)", pe.Model, pe.Stage, pe.Category)))
			b.WriteString("\n")
		}
	}

	if m.snapshot.Metrics != nil {
		mt := m.snapshot.Metrics
		b.WriteString("\n")
		b.WriteString(metricsStyle.Render(fmt.Sprintf(
			"%d tokens · $%.4f · %s", mt.TotalTokens, mt.CostUSD, mt.Latency.Round(timeRound),
		)))
		b.WriteString("\n")
	}

	if m.snapshot.FatalError != "" {
		b.WriteString(errorStyle.Render("error: " + m.snapshot.FatalError))
		b.WriteString("\n")
	}
	if m.snapshot.Interrupted {
		b.WriteString(errorStyle.Render("interrupted — resume with: synod ask --resume"))
		b.WriteString("\n")
	}
	if !m.finished {
		b.WriteString(helpStyle.Render("q to quit"))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderRound(round view.RoundView) string {
	var b strings.Builder

	header := string(round.Kind)
	if round.Loading {
		header = fmt.Sprintf("%s %s (%d/%d)", m.spinner.View(), header, round.Completed, round.Total)
	}
	b.WriteString(stageHeaderStyle.Render(header))
	b.WriteString("\n")

	for _, resp := range round.Responses {
		name := resp.Model
		if resp.Label != "" {
			name = fmt.Sprintf("%s (%s)", resp.Label, resp.Model)
		}
		b.WriteString(doneStyle.Render("✓ " + name))
		b.WriteString("\n")
	}

	if round.Loading && len(m.snapshot.Streams) > 0 {
		models := make([]string, 0, len(m.snapshot.Streams))
		for model := range m.snapshot.Streams {
			models = append(models, model)
		}
		sort.Strings(models)
		for _, model := range models {
			b.WriteString(pendingStyle.Render("… " + model))
			b.WriteString(" ")
			b.WriteString(streamStyle.Render(truncate(lastLine(m.snapshot.Streams[model]), m.width-len(model)-8)))
			b.WriteString("\n")
		}
	}

	if len(round.Standings) > 0 {
		b.WriteString(renderStandings(round.Standings))
	}

	b.WriteString("\n")
	return b.String()
}

func truncate(s string, max int) string {
	if max < 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(strings.TrimRight(s, "\n"), '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// tail returns the last n lines, each clipped to the width.
func tail(s string, n, width int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i := range lines {
		lines[i] = truncate(lines[i], width-2)
	}
	return strings.Join(lines, "\n")
}
