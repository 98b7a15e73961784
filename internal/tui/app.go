// internal/tui/app.go
//
// This is the terminal news feed. It uses bubbletea, which follows The Elm
// Architecture:
//
// 1. Model: the App below (feed selection, modal form, status line)
// 2. Update: turns key presses and finished requests into new state
// 3. View: renders the feed, the add-post modal and the log panel
//
// Every remote call runs inside a tea.Cmd so the UI loop never blocks; the
// tracker applies the result and the App only re-reads it.

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/campus-news/internal/logbook"
	"github.com/kingrea/campus-news/internal/news"
	"github.com/kingrea/campus-news/internal/tracker"
)

// appState represents which "screen" we're on
type appState int

const (
	stateLoading appState = iota // Initial fetch in flight
	stateFeed                    // Browsing posts
	stateCompose                 // Add-post modal open
)

type feedLoadedMsg struct{ err error }

type refreshDoneMsg struct{ err error }

type reactionDoneMsg struct {
	id      int64
	event   tracker.Event
	changed bool
	err     error
}

type deleteDoneMsg struct {
	id  int64
	err error
}

type submitDoneMsg struct {
	post news.Post
	err  error
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLogbook shows the tail of lb in a side panel.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// WithContext sets the context passed to every tracker call.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// App is the main application model.
type App struct {
	state   appState
	ctx     context.Context
	tracker *tracker.Tracker
	logbook *logbook.Logbook

	spinner  spinner.Model
	compose  composeForm
	renderer *glamour.TermRenderer
	rendered map[int64]string

	selection  int
	showDetail bool
	detailID   int64
	detail     viewport.Model
	pending    map[int64]string
	statusMsg  string
	statusErr  bool

	width  int
	height int
}

// NewApp builds the feed model around an uninitialized tracker.
func NewApp(tr *tracker.Tracker, opts ...AppOption) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	app := &App{
		state:    stateLoading,
		ctx:      context.Background(),
		tracker:  tr,
		spinner:  sp,
		detail:   viewport.New(0, 0),
		compose:  newComposeForm(),
		rendered: map[int64]string{},
		pending:  map[int64]string{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	return app
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.initializeCmd())
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.renderer = nil
		a.rendered = map[int64]string{}
		a.syncDetail()
		return a, nil

	case spinner.TickMsg:
		if a.state != stateLoading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case feedLoadedMsg:
		a.state = stateFeed
		a.clampSelection()
		if msg.err != nil {
			a.setError("Feed loaded with errors: %v", msg.err)
		} else {
			a.setStatus("Loaded %d posts", len(a.tracker.Posts()))
		}
		return a, nil

	case refreshDoneMsg:
		a.clampSelection()
		a.rendered = map[int64]string{}
		if msg.err != nil {
			a.setError("Refresh failed: %v", msg.err)
		} else {
			a.setStatus("Feed refreshed")
		}
		a.syncDetail()
		return a, nil

	case reactionDoneMsg:
		delete(a.pending, msg.id)
		a.handleReactionDone(msg)
		a.syncDetail()
		return a, nil

	case deleteDoneMsg:
		delete(a.pending, msg.id)
		a.clampSelection()
		a.syncDetail()
		switch {
		case msg.err == nil:
			a.setStatus("Post #%d deleted", msg.id)
		case errors.Is(msg.err, tracker.ErrPersist):
			a.setError("Post #%d deleted, but saving local state failed: %v", msg.id, msg.err)
		default:
			a.setError("Delete failed: %v", msg.err)
		}
		return a, nil

	case submitDoneMsg:
		return a.handleSubmitDone(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.state {
		case stateLoading:
			if msg.String() == "q" {
				return a, tea.Quit
			}
			return a, nil
		case stateCompose:
			return a.updateCompose(msg)
		default:
			return a.updateFeed(msg)
		}
	}

	if a.state == stateCompose {
		return a, a.compose.update(msg)
	}
	return a, nil
}

func (a *App) updateFeed(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.showDetail && a.scrollDetail(msg.String()) {
		return a, nil
	}
	posts := a.tracker.Posts()
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "up", "k":
		if a.selection > 0 {
			a.selection--
		}
	case "down", "j":
		if a.selection < len(posts)-1 {
			a.selection++
		}
	case "enter":
		if a.showDetail {
			a.showDetail = false
		} else {
			a.openDetail(posts)
		}
	case "esc":
		a.showDetail = false
	case "r":
		a.setStatus("Refreshing feed...")
		return a, a.refreshCmd()
	case "a":
		a.state = stateCompose
		return a, a.compose.open()
	case "l":
		if post, ok := a.targetPost(posts); ok {
			return a, a.reactCmd(post.ID, tracker.EventLike)
		}
	case "d":
		if post, ok := a.targetPost(posts); ok {
			return a, a.reactCmd(post.ID, tracker.EventDislike)
		}
	case "x":
		post, ok := a.targetPost(posts)
		if !ok {
			return a, nil
		}
		if !a.tracker.State(post.ID).Owned {
			a.setError("You can only delete posts you created")
			return a, nil
		}
		return a, a.deleteCmd(post.ID)
	}
	return a, nil
}

// scrollDetail moves the detail viewport and reports whether key was a
// scroll key.
func (a *App) scrollDetail(key string) bool {
	switch key {
	case "down", "j":
		a.detail.ScrollDown(1)
	case "up", "k":
		a.detail.ScrollUp(1)
	case "pgdown", " ", "f":
		a.detail.PageDown()
	case "pgup", "b":
		a.detail.PageUp()
	case "home", "g":
		a.detail.GotoTop()
	case "end", "G":
		a.detail.GotoBottom()
	default:
		return false
	}
	return true
}

func (a *App) openDetail(posts []news.Post) {
	post, ok := a.selectedPost(posts)
	if !ok {
		return
	}
	a.showDetail = true
	a.detailID = post.ID
	a.syncDetail()
	a.detail.GotoTop()
}

// syncDetail re-renders the open detail pane after a resize or a feed
// change, closing it when its post is gone.
func (a *App) syncDetail() {
	if !a.showDetail {
		return
	}
	post, ok := a.tracker.Post(a.detailID)
	if !ok {
		a.showDetail = false
		return
	}
	l := a.layout()
	content := a.detailContent(post, l.left)
	a.detail.Width = max(20, l.left)
	a.detail.Height = l.body
	if l.body <= 0 {
		a.detail.Height = lipgloss.Height(content)
	}
	a.detail.SetContent(content)
	a.detail.SetYOffset(a.detail.YOffset)
}

// targetPost is the post an action key applies to: the open detail post, or
// the selected card.
func (a *App) targetPost(posts []news.Post) (news.Post, bool) {
	if a.showDetail {
		return a.tracker.Post(a.detailID)
	}
	return a.selectedPost(posts)
}

func (a *App) updateCompose(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.compose.busy {
		return a, nil
	}
	switch msg.String() {
	case "esc":
		a.state = stateFeed
		return a, nil
	case "tab":
		return a, a.compose.next()
	case "shift+tab":
		return a, a.compose.prev()
	case "ctrl+s":
		draft := a.compose.draft()
		if err := draft.Validate(); err != nil {
			a.compose.err = strings.TrimPrefix(err.Error(), "news: ")
			return a, nil
		}
		a.compose.err = ""
		a.compose.busy = true
		return a, a.submitCmd(draft)
	}
	return a, a.compose.update(msg)
}

func (a *App) handleReactionDone(msg reactionDoneMsg) {
	verb := "Liked"
	if msg.event == tracker.EventDislike {
		verb = "Disliked"
	}
	switch {
	case msg.err == nil && !msg.changed:
		a.setStatus("Already %s post #%d", strings.ToLower(verb), msg.id)
	case msg.err == nil:
		a.setStatus("%s post #%d", verb, msg.id)
	case errors.Is(msg.err, tracker.ErrPersist):
		a.setError("%s post #%d, but saving local state failed: %v", verb, msg.id, msg.err)
	default:
		a.setError("Could not %s post #%d: %v", msg.event, msg.id, msg.err)
	}
}

func (a *App) handleSubmitDone(msg submitDoneMsg) (tea.Model, tea.Cmd) {
	a.compose.busy = false
	if msg.err != nil && !errors.Is(msg.err, tracker.ErrPersist) {
		a.compose.err = fmt.Sprintf("Could not save post: %v", msg.err)
		return a, nil
	}
	a.compose.reset()
	a.state = stateFeed
	a.selection = 0
	a.showDetail = false
	if msg.err != nil {
		a.setError("Post #%d published, but saving local state failed: %v", msg.post.ID, msg.err)
	} else {
		a.setStatus("Post #%d published", msg.post.ID)
	}
	return a, nil
}

func (a *App) initializeCmd() tea.Cmd {
	tr := a.tracker
	ctx := a.ctx
	return func() tea.Msg {
		return feedLoadedMsg{err: tr.Initialize(ctx)}
	}
}

func (a *App) refreshCmd() tea.Cmd {
	tr := a.tracker
	ctx := a.ctx
	return func() tea.Msg {
		return refreshDoneMsg{err: tr.Refresh(ctx)}
	}
}

func (a *App) reactCmd(id int64, event tracker.Event) tea.Cmd {
	a.pending[id] = event.String()
	a.syncDetail()
	tr := a.tracker
	ctx := a.ctx
	return func() tea.Msg {
		changed, err := tr.React(ctx, id, event)
		return reactionDoneMsg{id: id, event: event, changed: changed, err: err}
	}
}

func (a *App) deleteCmd(id int64) tea.Cmd {
	a.pending[id] = "delete"
	a.syncDetail()
	tr := a.tracker
	ctx := a.ctx
	return func() tea.Msg {
		return deleteDoneMsg{id: id, err: tr.Delete(ctx, id)}
	}
}

func (a *App) submitCmd(draft news.Draft) tea.Cmd {
	tr := a.tracker
	ctx := a.ctx
	return func() tea.Msg {
		post, err := tr.Submit(ctx, draft)
		return submitDoneMsg{post: post, err: err}
	}
}

func (a *App) selectedPost(posts []news.Post) (news.Post, bool) {
	if a.selection < 0 || a.selection >= len(posts) {
		return news.Post{}, false
	}
	return posts[a.selection], true
}

func (a *App) clampSelection() {
	n := len(a.tracker.Posts())
	if a.selection >= n {
		a.selection = n - 1
	}
	if a.selection < 0 {
		a.selection = 0
	}
}

func (a *App) setStatus(format string, args ...any) {
	a.statusMsg = oneLine(fmt.Sprintf(format, args...))
	a.statusErr = false
}

func (a *App) setError(format string, args ...any) {
	a.statusMsg = oneLine(fmt.Sprintf(format, args...))
	a.statusErr = true
}

// oneLine folds joined errors onto the single status row.
func oneLine(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "; ")
}
