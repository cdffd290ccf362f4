package notice

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// model is a full-screen message that stays up until the operator dismisses it.
type model struct {
	title     string
	body      string
	width     int
	height    int
	dismissed bool
}

func newModel(title, body string) model {
	return model{
		title:  title,
		body:   body,
		width:  80, //nolint:mnd // default terminal size
		height: 24, //nolint:mnd // default terminal size
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "esc", "ctrl+c":
			m.dismissed = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

// View implements tea.Model.
func (m model) View() string {
	if m.dismissed {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(bodyStyle.Render(m.body))
	b.WriteString("\n\n")
	b.WriteString(hintStyle.Render("Press enter to exit"))

	box := boxStyle.Width(max(m.width-4, 20)).Render(b.String()) //nolint:mnd // border and padding
	return box
}
