package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/synod-dev/synod/internal/ranking"
)

const timeRound = 100 * time.Millisecond

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	questionStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("252"))
	stageHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	doneStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	streamStyle      = lipgloss.NewStyle().Faint(true)
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	synthesisStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).PaddingLeft(2)
	metricsStyle     = lipgloss.NewStyle().Faint(true)
	helpStyle        = lipgloss.NewStyle().Faint(true)
	spinnerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	standingRankStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	standingModelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	standingMetaStyle  = lipgloss.NewStyle().Faint(true)
)

// renderStandings draws the aggregate peer ranking as an ordered list.
func renderStandings(standings []ranking.Standing) string {
	var b strings.Builder
	for i, s := range standings {
		b.WriteString("  ")
		b.WriteString(standingRankStyle.Render(fmt.Sprintf("#%d", i+1)))
		b.WriteString(" ")
		name := s.Label
		if s.Model != "" {
			name = fmt.Sprintf("%s — %s", s.Label, s.Model)
		}
		b.WriteString(standingModelStyle.Render(name))
		b.WriteString(" ")
		if s.Reviews > 0 {
			b.WriteString(standingMetaStyle.Render(fmt.Sprintf("(mean %.2f over %d reviews)", s.MeanRank, s.Reviews)))
		} else {
			b.WriteString(standingMetaStyle.Render("(unranked)"))
		}
		b.WriteString("\n")
	}
	return b.String()
}
