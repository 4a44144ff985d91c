package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/halfmoth/stickersync/cli/reader"
)

// maxFileRows caps the file listing in the pack view; the rest is
// summarized so huge packs stay on one screen.
const maxFileRows = 20

// PackModel is a Bubble Tea model for the pack detail view.
type PackModel struct {
	data     any
	width    int
	height   int
	quitting bool
}

// NewPackModel creates a new pack model.
func NewPackModel(data any) PackModel {
	return PackModel{data: data}
}

// Init implements tea.Model.
func (m PackModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m PackModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
func (m PackModel) View() string {
	if m.quitting {
		return ""
	}

	content := m.renderPack()
	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m PackModel) renderPack() string {
	data, ok := m.data.(*reader.PackDetail)
	if !ok {
		return "Invalid data type for pack"
	}

	state := "enabled"
	if data.Disabled {
		state = "disabled"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Pack Details"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Slug", data.Slug},
		{"Name", data.Name},
		{"Version", data.Version},
		{"State", state},
		{"Installed At", data.InstalledAt.Format("2006-01-02 15:04:05")},
		{"Updated At", data.UpdatedAt.Format("2006-01-02 15:04:05")},
		{"Files", fmt.Sprintf("%d", len(data.Files))},
		{"Size", formatBytes(data.TotalBytes)},
		{"Directory", data.Dir},
	}

	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := row[1]
		if row[0] == "State" {
			value = StateStyle(state).Render(value)
		} else {
			value = ValueStyle.Render(value)
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}

	if len(data.Files) > 0 {
		b.WriteString("\n")
		b.WriteString(LabelStyle.Render("Files:\n"))
		for i, f := range data.Files {
			if i == maxFileRows {
				b.WriteString(fmt.Sprintf("  … and %d more\n", len(data.Files)-maxFileRows))
				break
			}
			b.WriteString(fmt.Sprintf("  • %s %s\n",
				ValueStyle.Render(f.Path),
				StatLabelStyle.Render(formatBytes(f.Size))))
		}
	}

	return BoxStyle.Render(b.String())
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunPackTUI runs the pack detail TUI.
func RunPackTUI(data any) error {
	model := NewPackModel(data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderPackStatic renders pack data without full TUI (for fallback).
func RenderPackStatic(data any) string {
	model := NewPackModel(data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
