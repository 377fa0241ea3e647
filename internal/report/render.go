package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/talgya/househunt/internal/engine"
)

var (
	titleStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("13")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)
	homeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	barStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	bestStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	destroyedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Strikethrough(true)
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// QuorumBars renders one line per site with a bar proportional to the
// colony's share of ants there.
func QuorumBars(sites []engine.SiteResult, colonySize, width int, home, best string) string {
	nameWidth := 0
	for _, s := range sites {
		nameWidth = max(nameWidth, len(s.Name))
	}
	var b strings.Builder
	for _, s := range sites {
		n := 0
		if colonySize > 0 {
			n = s.Quorum * width / colonySize
		}
		name := fmt.Sprintf("%-*s", nameWidth, s.Name)
		switch {
		case !s.Habitable:
			name = destroyedStyle.Render(name)
		case s.Name == best:
			name = bestStyle.Render(name)
		case s.Name == home:
			name = homeStyle.Render(name)
		}
		fmt.Fprintf(&b, "%s q=%-3d %s%s %s\n", name, s.Quality,
			barStyle.Render(strings.Repeat("█", n)), strings.Repeat("·", width-n),
			humanize.Comma(int64(s.Quorum)))
	}
	return b.String()
}

// Progress renders the live view of a running simulation.
func Progress(sim *engine.Simulation, width int) string {
	sum := sim.Summary()
	header := fmt.Sprintf("tick %s/%s  threshold %d  recruitment acts %s",
		humanize.Comma(int64(sim.Tick())), humanize.Comma(int64(sim.MaxTicks())),
		sim.Colony.QuorumThreshold(), humanize.Comma(int64(sim.Colony.NumRecruitmentActs())))
	return header + "\n" + QuorumBars(sum.Sites, sim.Colony.Size(), width, sum.Home, sum.Best)
}

// Summary renders a finished run.
func Summary(sum engine.Summary, colonySize int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("seed %d: %s after %s ticks", sum.Seed, sum.Halt, humanize.Comma(int64(sum.Ticks)))))
	b.WriteString("\n")
	b.WriteString(QuorumBars(sum.Sites, colonySize, 40, sum.Home, sum.Best))
	fmt.Fprintf(&b, "split: %t  optimal: %t  vacated at: %s  completed at: %s  recruitment acts: %s\n",
		sum.ColonySplit, sum.FinalDecisionOptimal,
		humanize.Comma(int64(sum.TimeToVacate)), humanize.Comma(int64(sum.TimeToCompletion)),
		humanize.Comma(int64(sum.RecruitmentActs)))
	return b.String()
}
