// Package monitorui renders a live terminal dashboard over a running
// machine.System: bus traffic, cache hit rates per level, and TLB hit rate.
// It does not show PLIC or CLINT state.
package monitorui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/smoynes/memsim/internal/machine"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// tickMsg drives periodic refresh of the dashboard.
type tickMsg time.Time

// Model is a bubbletea model that polls a System's statistics on a fixed
// interval and renders them.
type Model struct {
	sys      *machine.System
	interval time.Duration
	ticks    uint64
	advance  uint64
	quitting bool
}

// New creates a Model polling sys every interval, advancing the system
// clock by advance ticks on each poll.
func New(sys *machine.System, interval time.Duration, advance uint64) Model {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	return Model{sys: sys, interval: interval, advance: advance}
}

func (m Model) Init() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		if m.advance > 0 {
			m.sys.Advance(m.advance)
		}

		m.ticks++

		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("memsim monitor") + "\n\n")

	bus := m.sys.Bus.Stats()
	b.WriteString(boxStyle.Render(fmt.Sprintf(
		"%s\n%s %s  %s %s  %s %s",
		labelStyle.Render("bus"),
		labelStyle.Render("reads"), valueStyle.Render(fmt.Sprint(bus.Reads)),
		labelStyle.Render("writes"), valueStyle.Render(fmt.Sprint(bus.Writes)),
		labelStyle.Render("faults"), valueStyle.Render(fmt.Sprint(bus.Faults)),
	)) + "\n")

	for _, lvl := range []machine.Level{machine.L1D, machine.L1I, machine.L2, machine.L3} {
		st := m.sys.Cache.Stats(lvl)
		b.WriteString(boxStyle.Render(fmt.Sprintf(
			"%s\n%s %s  %s %s  %s %.1f%%",
			labelStyle.Render(lvl.String()),
			labelStyle.Render("hits"), valueStyle.Render(fmt.Sprint(st.Hits)),
			labelStyle.Render("misses"), valueStyle.Render(fmt.Sprint(st.Misses)),
			labelStyle.Render("hit-rate"), st.HitRate()*100,
		)) + "\n")
	}

	tlb := m.sys.MMU.TLBStats()
	b.WriteString(boxStyle.Render(fmt.Sprintf(
		"%s\n%s %s  %s %s",
		labelStyle.Render("tlb"),
		labelStyle.Render("hits"), valueStyle.Render(fmt.Sprint(tlb.Hits)),
		labelStyle.Render("misses"), valueStyle.Render(fmt.Sprint(tlb.Misses)),
	)) + "\n")

	b.WriteString("\n" + labelStyle.Render("press q to quit") + "\n")

	return b.String()
}

// Run starts the dashboard program and blocks until the user quits.
func Run(sys *machine.System, interval time.Duration, advance uint64) error {
	p := tea.NewProgram(New(sys, interval, advance))
	_, err := p.Run()

	return err
}
