package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/campus-news/internal/news"
)

type composeField int

const (
	fieldTitle composeField = iota
	fieldBody
	fieldAuthor
	fieldCount
)

// composeForm is the add-post modal: title, body and author, all required.
type composeForm struct {
	title  textinput.Model
	body   textarea.Model
	author textinput.Model
	focus  composeField
	err    string
	busy   bool
}

func newComposeForm() composeForm {
	title := textinput.New()
	title.Placeholder = "Headline"
	title.CharLimit = 200
	title.Width = 50

	body := textarea.New()
	body.Placeholder = "What's happening on campus?"
	body.CharLimit = 5000
	body.SetWidth(54)
	body.SetHeight(6)
	body.ShowLineNumbers = false

	author := textinput.New()
	author.Placeholder = "Your name"
	author.CharLimit = 100
	author.Width = 50

	return composeForm{title: title, body: body, author: author}
}

// open focuses the first field and clears any previous error. Typed values
// are kept so a cancelled or failed submission can be resumed.
func (f *composeForm) open() tea.Cmd {
	f.err = ""
	f.busy = false
	return f.setFocus(fieldTitle)
}

func (f *composeForm) setFocus(field composeField) tea.Cmd {
	f.focus = (field + fieldCount) % fieldCount
	f.title.Blur()
	f.body.Blur()
	f.author.Blur()
	switch f.focus {
	case fieldBody:
		return f.body.Focus()
	case fieldAuthor:
		return f.author.Focus()
	default:
		return f.title.Focus()
	}
}

func (f *composeForm) next() tea.Cmd { return f.setFocus(f.focus + 1) }
func (f *composeForm) prev() tea.Cmd { return f.setFocus(f.focus - 1) }

func (f *composeForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.focus {
	case fieldBody:
		f.body, cmd = f.body.Update(msg)
	case fieldAuthor:
		f.author, cmd = f.author.Update(msg)
	default:
		f.title, cmd = f.title.Update(msg)
	}
	return cmd
}

func (f *composeForm) draft() news.Draft {
	return news.Draft{
		Title:      f.title.Value(),
		Body:       f.body.Value(),
		AuthorName: f.author.Value(),
	}
}

func (f *composeForm) reset() {
	f.title.Reset()
	f.body.Reset()
	f.author.Reset()
	f.err = ""
	f.busy = false
	f.focus = fieldTitle
}

func (f *composeForm) view(width int) string {
	label := lipgloss.NewStyle().Bold(true).Width(8).Align(lipgloss.Right)
	row := func(name string, field string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, label.Render(name), " ", field)
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("Add New Post")
	lines := []string{
		head,
		row("Title", f.title.View()),
		"",
		row("Body", f.body.View()),
		"",
		row("Author", f.author.View()),
		"",
	}
	switch {
	case f.busy:
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Render("Saving post..."))
	case f.err != "":
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render(f.err))
	}
	lines = append(lines, lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render("tab next field · ctrl+s save post · esc cancel"))
	return lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(1, 2).
		Width(max(40, min(width, 72))).
		Render(strings.Join(lines, "\n"))
}
