package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/janstenpickle/docker-api/stream"
	"github.com/janstenpickle/docker-api/types"
)

// tailLines is how many recent output lines the progress view keeps.
const tailLines = 8

// EventMsg delivers one status event to BuildModel.
type EventMsg struct {
	Event *types.StatusEvent
}

// DoneMsg ends the build view.
type DoneMsg struct {
	ImageID string
	Err     error
}

// BuildModel is a Bubble Tea model showing a running build.
type BuildModel struct {
	title   string
	spinner spinner.Model

	step   string
	tail   []string
	layers map[string]string
	order  []string
	events int

	done     bool
	imageID  string
	err      error
	quitting bool
}

// NewBuildModel creates a progress view titled title.
func NewBuildModel(title string) BuildModel {
	return BuildModel{
		title:   title,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(StepStyle)),
		layers:  map[string]string{},
	}
}

// Init implements tea.Model.
func (m BuildModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m BuildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		m.apply(msg.Event)
		return m, nil

	case DoneMsg:
		m.done = true
		m.imageID = msg.ImageID
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// Quitting reports whether the user closed the view before the build ended.
func (m BuildModel) Quitting() bool { return m.quitting && !m.done }

func (m *BuildModel) apply(ev *types.StatusEvent) {
	if ev == nil {
		return
	}
	m.events++
	switch ev.Kind() {
	case types.EventKindStream:
		for line := range strings.SplitSeq(ev.Stream, "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			if strings.HasPrefix(line, "Step ") {
				m.step = line
			}
			m.push(line)
		}
	case types.EventKindStatus:
		if ev.ID == "" {
			m.push(ev.Status)
			return
		}
		if _, ok := m.layers[ev.ID]; !ok {
			m.order = append(m.order, ev.ID)
		}
		m.layers[ev.ID] = strings.TrimSpace(ev.Status + " " + ev.Progress)
	case types.EventKindError:
		m.push(ev.ErrorMessage())
	}
}

func (m *BuildModel) push(line string) {
	m.tail = append(m.tail, line)
	if n := len(m.tail) - tailLines; n > 0 {
		m.tail = m.tail[n:]
	}
}

// View implements tea.Model.
func (m BuildModel) View() string {
	var b strings.Builder

	switch {
	case m.done && m.err == nil:
		b.WriteString(SuccessStyle.Render("✓ built " + m.imageID))
	case m.done:
		b.WriteString(ErrorStyle.Render("✗ " + m.err.Error()))
	default:
		fmt.Fprintf(&b, "%s %s", m.spinner.View(), TitleStyle.Render(m.title))
		if m.step != "" {
			b.WriteString("  ")
			b.WriteString(StepStyle.Render(m.step))
		}
	}
	b.WriteString("\n")

	for _, id := range m.order {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(id), ValueStyle.Render(m.layers[id]))
	}
	for _, line := range m.tail {
		b.WriteString(LogStyle.Render("  " + line))
		b.WriteString("\n")
	}
	if !m.done {
		b.WriteString(HelpStyle.Render(fmt.Sprintf("%d events · q to cancel", m.events)))
		b.WriteString("\n")
	}
	return b.String()
}

// RunBuild shows build progress while build runs. build receives a sink
// feeding the view. Closing the view cancels the context passed to build,
// and RunBuild always waits for build to return.
func RunBuild(ctx context.Context, title string, build func(ctx context.Context, sink stream.Sink) (string, error), opts ...tea.ProgramOption) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewBuildModel(title), opts...)

	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := build(ctx, stream.SinkFunc(func(ev *types.StatusEvent) {
			p.Send(EventMsg{Event: ev})
		}))
		done <- result{id, err}
		p.Send(DoneMsg{ImageID: id, Err: err})
	}()

	final, runErr := p.Run()
	if m, ok := final.(BuildModel); runErr != nil || (ok && m.Quitting()) {
		cancel()
	}
	r := <-done
	if r.err == nil && runErr != nil {
		return r.id, fmt.Errorf("progress view: %w", runErr)
	}
	return r.id, r.err
}
