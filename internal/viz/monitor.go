package viz

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/dynfit/internal/fitter"
)

const historyCapacity = 600

// ProgressMsg carries one iteration's progress into the program.
type ProgressMsg fitter.Progress

// DoneMsg ends the monitor once the fit returns.
type DoneMsg struct {
	Status fitter.Status
	Err    error
}

// Monitor is the live fit view.
type Monitor struct {
	progress fitter.Progress
	history  []float64
	started  bool
	done     *DoneMsg
	stop     func()
	width    int
	bar      progress.Model
}

// NewMonitor builds a monitor; stop is called when the user quits.
func NewMonitor(stop func()) Monitor {
	return Monitor{
		stop:    stop,
		width:   60,
		history: make([]float64, 0, historyCapacity),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
	}
}

func (m Monitor) Init() tea.Cmd { return nil }

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.stop != nil {
				m.stop()
			}
		}
	case tea.WindowSizeMsg:
		m.width = max(msg.Width-30, 20)
	case ProgressMsg:
		m.progress = fitter.Progress(msg)
		m.started = true
		if len(msg.Scores) > 0 {
			if len(m.history) == historyCapacity {
				m.history = append(m.history[:0], m.history[1:]...)
			}
			m.history = append(m.history, msg.Scores[0].Max)
		}
	case DoneMsg:
		m.done = &msg
		return m, tea.Quit
	}
	return m, nil
}

func (m Monitor) View() string {
	if !m.started {
		return headerStyle.Render("drawing initial walkers...") + "\n"
	}
	p := m.progress

	var b strings.Builder
	phase, ok := phaseStyles[string(p.Phase)]
	if !ok {
		phase = valueStyle
	}
	b.WriteString(headerStyle.Render("dynfit") + " " + phase.Render(string(p.Phase)) + "\n")

	frac := 0.0
	if p.Total > 0 {
		frac = float64(p.Iteration+1) / float64(p.Total)
	}
	fmt.Fprintf(&b, "%s %d/%d\n", m.bar.ViewAs(min(frac, 1)), p.Iteration+1, p.Total)

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("elapsed", p.Elapsed.Round(time.Second).String())
	if p.Remaining != nil {
		row("remaining", p.Remaining.Round(time.Second).String())
	}
	for t, s := range p.Scores {
		row(fmt.Sprintf("β=%.3g", s.Beta), fmt.Sprintf("max %.3f  mean %.3f", s.Max, s.Mean))
		if t >= 3 {
			row("", fmt.Sprintf("+%d hotter rungs", len(p.Scores)-t-1))
			break
		}
	}
	if len(p.Acceptance) > 0 {
		row("acceptance", Sparkline(p.Acceptance)+fmt.Sprintf(" %.2f", p.Acceptance[0]))
	}
	if p.Autocorr.Defined() {
		conf := "low"
		if p.Autocorr.HighConfidence {
			conf = "high"
		}
		row("tau", fmt.Sprintf("%.1f (window %d, %s)", *p.Autocorr.Tau, p.Autocorr.Window, conf))
	}
	if p.PSRF != nil {
		row("psrf", fmt.Sprintf("%.3f", *p.PSRF))
	}
	if p.Frack.Rounds > 0 {
		row("frack", fmt.Sprintf("%d rounds, %d improved", p.Frack.Rounds, p.Frack.Improved))
	}
	for _, msg := range p.Messages {
		b.WriteString(noteStyle.Render(msg) + "\n")
	}

	if chart := Trace(m.history, "best cold-rung score", m.width, 6); chart != "" {
		b.WriteString(graphStyle.Render(chart) + "\n")
	}

	if m.done != nil {
		b.WriteString(headerStyle.Render("finished: "+m.done.Status.String()) + "\n")
	} else {
		b.WriteString(helpStyle.Render("q: stop") + "\n")
	}
	return panelStyle.Render(b.String())
}

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(tea.Msg)
}

// ProgramReporter forwards progress to a running program. Slices are copied
// because the fitter reuses them after Report returns.
func ProgramReporter(s Sender) fitter.Reporter {
	return fitter.ReporterFunc(func(p fitter.Progress) {
		p.Scores = append([]fitter.RungSummary(nil), p.Scores...)
		p.Acceptance = append([]float64(nil), p.Acceptance...)
		p.Messages = append([]string(nil), p.Messages...)
		s.Send(ProgressMsg(p))
	})
}
