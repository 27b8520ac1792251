// Package ui renders build progress in the terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"elang/internal/buildpipeline"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	noteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

type progressModel struct {
	title   string
	events  <-chan buildpipeline.Event
	spinner spinner.Model
	prog    progress.Model
	items   []moduleItem
	index   map[string]int
	phase   string // стадия без файла: run, emit
	width   int
	done    bool
}

// moduleItem is one file of the build; module is known once decoded.
type moduleItem struct {
	path    string
	module  string
	stage   buildpipeline.Stage
	status  buildpipeline.Status
	elapsed time.Duration
	err     string
}

type eventMsg buildpipeline.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders one line per
// module file until events is closed.
func NewProgressModel(title string, files []string, events <-chan buildpipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	m := &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		index:   make(map[string]int, len(files)),
		width:   80,
	}
	for _, file := range files {
		m.item(file)
	}
	return m
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.applyEvent(buildpipeline.Event(msg)), m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		next, cmd := m.prog.Update(msg)
		m.prog = next.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	header := m.title
	if m.phase != "" {
		header = fmt.Sprintf("%s (%s)", header, m.phase)
	}
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := max(m.width-16, 20)
	for _, item := range m.items {
		label := item.path
		if item.module != "" {
			label = fmt.Sprintf("%s (%s)", item.module, item.path)
		}
		status := item.label()
		fmt.Fprintf(&b, "  %s %s", styleStatus(status).Render(fmt.Sprintf("%12s", status)), truncate(label, nameWidth))
		if item.status == buildpipeline.StatusDone && item.elapsed > 0 {
			b.WriteString(noteStyle.Render(fmt.Sprintf(" %.1fms", float64(item.elapsed.Microseconds())/1000)))
		}
		b.WriteString("\n")
		if item.err != "" {
			b.WriteString(errStyle.Render("               " + truncate(item.err, nameWidth)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	b.WriteString(noteStyle.Render(m.summary()))
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

// item returns the entry for file, adding it when the file was not known
// up front.
func (m *progressModel) item(file string) *moduleItem {
	idx, ok := m.index[file]
	if !ok {
		idx = len(m.items)
		m.items = append(m.items, moduleItem{path: file, status: buildpipeline.StatusQueued})
		m.index[file] = idx
	}
	return &m.items[idx]
}

func (m *progressModel) applyEvent(ev buildpipeline.Event) tea.Cmd {
	if ev.File == "" {
		if ev.Status == buildpipeline.StatusWorking {
			m.phase = stageLabel(ev.Stage)
		}
		return nil
	}
	it := m.item(ev.File)
	if ev.Module != "" {
		it.module = ev.Module
	}
	if ev.Status == "" {
		return nil
	}
	it.stage, it.status = ev.Stage, ev.Status
	it.elapsed = ev.Elapsed
	if ev.Err != nil {
		it.err = ev.Err.Error()
	}
	return m.prog.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	if len(m.items) == 0 {
		return 0
	}
	total := 0.0
	for _, item := range m.items {
		total += item.progress()
	}
	return total / float64(len(m.items))
}

func (m *progressModel) summary() string {
	var built, failed, skipped int
	for _, item := range m.items {
		switch {
		case item.status == buildpipeline.StatusError:
			failed++
		case item.status == buildpipeline.StatusSkipped:
			skipped++
		case item.status == buildpipeline.StatusDone && item.stage != buildpipeline.StageDecode:
			built++
		}
	}
	return fmt.Sprintf("%d built, %d failed, %d skipped of %d", built, failed, skipped, len(m.items))
}

func (it *moduleItem) label() string {
	if it.status == buildpipeline.StatusWorking {
		return stageLabel(it.stage)
	}
	return string(it.status)
}

// progress is the share of the item's work that is behind it.
func (it *moduleItem) progress() float64 {
	switch it.status {
	case buildpipeline.StatusDone, buildpipeline.StatusError, buildpipeline.StatusSkipped:
		return 1
	}
	switch it.stage {
	case buildpipeline.StageDecode:
		return 0.1
	case buildpipeline.StageBuild:
		if it.status == buildpipeline.StatusQueued {
			return 0.3
		}
		return 0.5
	case buildpipeline.StageVerify:
		return 0.8
	case buildpipeline.StageEmit, buildpipeline.StageRun:
		return 0.9
	}
	return 0
}

func stageLabel(stage buildpipeline.Stage) string {
	switch stage {
	case buildpipeline.StageDecode:
		return "decoding"
	case buildpipeline.StageBuild:
		return "building"
	case buildpipeline.StageVerify:
		return "verifying"
	case buildpipeline.StageEmit:
		return "emitting"
	case buildpipeline.StageRun:
		return "running"
	}
	return string(stage)
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "error":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "skipped":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	case "queued":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
