package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/halfmoth/stickersync/cli/reader"
)

// StatusModel is a Bubble Tea model for the library status view.
type StatusModel struct {
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatusModel creates a new status model.
func NewStatusModel(data any) StatusModel {
	return StatusModel{data: data}
}

// Init implements tea.Model.
func (m StatusModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatusModel) View() string {
	if m.quitting {
		return ""
	}

	content := m.renderStatus()
	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatusModel) renderStatus() string {
	data, ok := m.data.(*reader.LibraryStatus)
	if !ok {
		return "Invalid data type for status"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Library Status"))
	b.WriteString("\n\n")

	// Create stat boxes
	boxes := []string{
		renderStatBox("Packs", fmt.Sprintf("%d", data.Packs), highlightColor),
		renderStatBox("Disabled", fmt.Sprintf("%d", data.Disabled), warningColor),
		renderStatBox("Files", fmt.Sprintf("%d", data.Files), successColor),
		renderStatBox("Size", formatBytes(data.Bytes), primaryColor),
	}

	// Join boxes horizontally
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Data Dir:"),
		ValueStyle.Render(data.DataDir)))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Source:"),
		ValueStyle.Render(data.Source)))

	if data.LastRun != nil {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Last Sync"))
		b.WriteString("\n")
		b.WriteString(renderRunLines(data.LastRun))
	}

	return b.String()
}

// renderRunLines renders one history row as labeled lines.
func renderRunLines(run *reader.HistoryRow) string {
	result := "failed"
	if run.Success {
		result = "success"
	}
	trigger := run.Trigger
	if run.Forced {
		trigger += " (forced)"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Run ID:"),
		ValueStyle.Render(run.RunID)))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Result:"),
		StateStyle(result).Render(result)))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Trigger:"),
		ValueStyle.Render(trigger)))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Started:"),
		ValueStyle.Render(run.StartedAt.Format("2006-01-02 15:04:05"))))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Duration:"),
		ValueStyle.Render((time.Duration(run.DurationMs) * time.Millisecond).String())))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Changes:"),
		ValueStyle.Render(fmt.Sprintf("%d installed, %d updated, %d removed, %d unchanged, %d failed",
			run.Installed, run.Updated, run.Removed, run.Unchanged, run.Failed))))
	return b.String()
}

func renderStatBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// formatBytes renders a byte count in a compact binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// RunStatusTUI runs the status TUI.
func RunStatusTUI(data any) error {
	model := NewStatusModel(data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatusStatic renders status data without full TUI (for fallback).
func RenderStatusStatic(data any) string {
	model := NewStatusModel(data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
