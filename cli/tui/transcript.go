package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/docker/go-units"

	"github.com/janstenpickle/docker-api/lode"
)

// TranscriptModel is a scrollable view of a stored build transcript.
type TranscriptModel struct {
	transcript *lode.BuildTranscript
	viewport   viewport.Model
	ready      bool
	quitting   bool
}

// NewTranscriptModel creates a transcript view.
func NewTranscriptModel(t *lode.BuildTranscript) TranscriptModel {
	return TranscriptModel{transcript: t}
}

// Init implements tea.Model.
func (m TranscriptModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m TranscriptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		header := lipgloss.Height(RenderSummary(m.transcript))
		height := max(msg.Height-header-1, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.SetContent(RenderEvents(m.transcript))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m TranscriptModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return RenderTranscript(m.transcript)
	}
	help := HelpStyle.Render(fmt.Sprintf("%3.f%% · ↑/↓ scroll · q quit", m.viewport.ScrollPercent()*100))
	return RenderSummary(m.transcript) + "\n" + m.viewport.View() + "\n" + help
}

// RenderSummary renders the result header of a transcript.
func RenderSummary(t *lode.BuildTranscript) string {
	r := t.Result
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Build " + r.BuildID))
	b.WriteString("\n")

	rows := [][2]string{
		{"Tag", r.Tag},
		{"Outcome", r.Outcome},
		{"Image", r.ImageID},
		{"Started", r.StartedAt},
		{"Duration", fmt.Sprintf("%dms", r.DurationMs)},
		{"Events", fmt.Sprintf("%d", r.EventCount)},
		{"Uploaded", fmt.Sprintf("%s in %d blocks", units.BytesSize(float64(r.BytesUploaded)), r.BlocksUploaded)},
	}
	if r.DroppedEvents > 0 {
		rows = append(rows, [2]string{"Dropped", fmt.Sprintf("%d oldest events", r.DroppedEvents)})
	}
	if r.Error != "" {
		rows = append(rows, [2]string{"Error", r.Error})
	}

	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		value := ValueStyle.Render(row[1])
		switch row[0] {
		case "Outcome":
			value = OutcomeStyle(r.Outcome).Render(row[1])
		case "Error":
			value = ErrorStyle.Render(row[1])
		}
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(row[0]+":"), value)
	}
	return BoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderEvents renders the stored events as the engine printed them.
func RenderEvents(t *lode.BuildTranscript) string {
	var b strings.Builder
	for _, rec := range t.Events {
		ev := rec.Event()
		text := strings.TrimRight(ev.Text(), "\n")
		if text == "" {
			continue
		}
		if ev.IsError() {
			text = ErrorStyle.Render(text)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTranscript renders a transcript without a running program.
func RenderTranscript(t *lode.BuildTranscript) string {
	return RenderSummary(t) + "\n" + RenderEvents(t)
}

// RunTranscript shows t in a full-screen scrollable view.
func RunTranscript(t *lode.BuildTranscript, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(NewTranscriptModel(t), opts...).Run()
	return err
}
