package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/campus-news/internal/news"
	"github.com/kingrea/campus-news/internal/tracker"
)

const (
	bodyPreview  = 2
	detailWidth  = 80
	logTailLines = 8

	// chromeHeight counts the rows around the main area: header, tagline
	// with its margin, status and hints.
	chromeHeight = 5
)

// layout is the split of the window between the main area and the log panel.
// A zero body means the window height is unknown and nothing is clipped.
type layout struct {
	width int
	left  int
	right int
	body  int
}

func (a *App) layout() layout {
	width := a.width
	if width <= 0 {
		width = 100
	}
	l := layout{width: width, right: max(32, width/3)}
	l.left = width - l.right - 4
	if l.left < 40 || a.logbook == nil {
		l.left = width - 4
		l.right = 0
	}
	if a.height > 0 {
		l.body = max(3, a.height-chromeHeight)
	}
	return l
}

// View renders the current state.
func (a *App) View() string {
	l := a.layout()
	var content string
	switch a.state {
	case stateLoading:
		content = lipgloss.NewStyle().
			Padding(2, 4).
			Render(fmt.Sprintf("%s Loading news...", a.spinner.View()))
	case stateCompose:
		content = a.compose.view(l.left)
	default:
		if a.showDetail {
			content = a.detail.View()
		} else {
			content = a.renderFeed(l.left, l.body)
		}
	}
	return a.renderBoard(content, l)
}

func (a *App) renderBoard(mainContent string, l layout) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		Render("⬡ CAMPUS NEWS")
	tagline := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		MarginBottom(1).
		Render("Stay up to date with the latest news from campus")

	left := lipgloss.NewStyle().Width(max(20, l.left)).Render(mainContent)
	body := left
	if l.right > 0 {
		if panel := a.renderLogPanel(l.right, l.body); panel != "" {
			body = lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", panel)
		}
	}
	if l.body > 0 {
		body = lipgloss.NewStyle().MaxHeight(l.body).Render(body)
	}

	color := lipgloss.Color("#5B8DEF")
	if a.statusErr {
		color = lipgloss.Color("#FF6B6B")
	}
	status := lipgloss.NewStyle().Foreground(color).MaxWidth(l.width).Render(a.statusMsg)
	hints := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MaxWidth(l.width).
		Render(a.hints())
	return lipgloss.JoinVertical(lipgloss.Left, header, tagline, body, status, hints)
}

func (a *App) hints() string {
	switch a.state {
	case stateLoading:
		return "q quit"
	case stateCompose:
		return ""
	}
	if a.showDetail {
		return "j/k scroll · pgup/pgdn page · enter/esc back · l like · d dislike · q quit"
	}
	return "j/k move · l like · d dislike · x delete own · a add post · enter read · r refresh · q quit"
}

func (a *App) renderFeed(width, height int) string {
	posts := a.tracker.Posts()
	if len(posts) == 0 {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(1, 0).
			Render("No posts yet. Press a to add the first one.")
	}
	cards := make([]string, len(posts))
	heights := make([]int, len(posts))
	for i, post := range posts {
		cards[i] = a.renderCard(post, i == a.selection, width)
		heights[i] = lipgloss.Height(cards[i])
	}
	// One row stays free for the overflow line.
	start, end := feedWindow(heights, a.selection, height-1)
	shown := append([]string{}, cards[start:end]...)
	if hidden := len(posts) - (end - start); hidden > 0 {
		shown = append(shown, lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Render(fmt.Sprintf("… %d more (%d above, %d below)", hidden, start, len(posts)-end)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, shown...)
}

// feedWindow returns the [start, end) run of cards around selected whose
// heights fit in budget, growing below and above in turn. The selected card
// is always included. A budget <= 0 shows everything.
func feedWindow(heights []int, selected, budget int) (int, int) {
	n := len(heights)
	if n == 0 {
		return 0, 0
	}
	if budget <= 0 {
		return 0, n
	}
	selected = min(max(selected, 0), n-1)
	start, end := selected, selected+1
	used := heights[selected]
	for {
		grew := false
		if end < n && used+heights[end] <= budget {
			used += heights[end]
			end++
			grew = true
		}
		if start > 0 && used+heights[start-1] <= budget {
			start--
			used += heights[start]
			grew = true
		}
		if !grew {
			return start, end
		}
	}
}

func (a *App) renderCard(post news.Post, selected bool, width int) string {
	st := a.tracker.State(post.ID)
	title := lipgloss.NewStyle().Bold(true).Render(post.Title)
	body := lipgloss.NewStyle().Render(previewLines(post.Body, bodyPreview))
	byline := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(fmt.Sprintf("By %s • %s", post.AuthorName, formatDate(post)))
	content := lipgloss.JoinVertical(lipgloss.Left, title, body, byline, a.renderActions(post, st))

	style := lipgloss.NewStyle().
		Width(max(20, width-4)).
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1)
	if selected {
		style = style.Border(lipgloss.ThickBorder()).BorderForeground(lipgloss.Color("#5B8DEF"))
	}
	return style.Render(content)
}

func (a *App) renderActions(post news.Post, st tracker.PostState) string {
	like := lipgloss.NewStyle().Padding(0, 1)
	dislike := lipgloss.NewStyle().Padding(0, 1)
	switch st.Reaction {
	case tracker.Liked:
		like = like.Background(lipgloss.Color("#86EFAC")).Foreground(lipgloss.Color("#000000"))
	case tracker.Disliked:
		dislike = dislike.Background(lipgloss.Color("#FCA5A5")).Foreground(lipgloss.Color("#000000"))
	}
	parts := []string{
		like.Render(fmt.Sprintf("▲ %d", post.Likes)),
		dislike.Render("▼"),
	}
	if st.Owned {
		parts = append(parts, lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("#FACC15")).
			Render("✕ delete"))
	}
	if op, ok := a.pending[post.ID]; ok {
		parts = append(parts, lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Render(op+"…"))
	}
	return strings.Join(parts, " ")
}

// detailContent is the full, unclipped detail page for post. The viewport
// windows it.
func (a *App) detailContent(post news.Post, width int) string {
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(post.Title)
	byline := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(fmt.Sprintf("By %s • %s", post.AuthorName, formatDate(post)))
	return lipgloss.JoinVertical(lipgloss.Left,
		head,
		byline,
		a.renderMarkdown(post, min(width, detailWidth)),
		a.renderActions(post, a.tracker.State(post.ID)),
	)
}

// renderMarkdown renders a post body once per width and caches the result.
func (a *App) renderMarkdown(post news.Post, width int) string {
	if out, ok := a.rendered[post.ID]; ok {
		return out
	}
	if a.renderer == nil {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(max(20, width-4)),
		)
		if err != nil {
			return post.Body
		}
		a.renderer = renderer
	}
	out, err := a.renderer.Render(post.Body)
	if err != nil {
		return post.Body
	}
	out = strings.TrimRight(out, "\n")
	a.rendered[post.ID] = out
	return out
}

func (a *App) renderLogPanel(width, height int) string {
	if a.logbook == nil {
		return ""
	}
	n := logTailLines
	if height > 0 {
		// border and title take three rows
		n = min(n, height-3)
	}
	lines, _ := a.logbook.Tail(n)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s", fileName))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Width(max(10, width-4)).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

func previewLines(body string, n int) string {
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:n], "\n") + " …"
}

func formatDate(post news.Post) string {
	if post.PostDate.IsZero() {
		return "date unknown"
	}
	return post.PostDate.Local().Format("Jan 2, 2006 3:04 PM")
}
