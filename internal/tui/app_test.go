package tui

import (
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/campus-news/internal/devserver"
	"github.com/kingrea/campus-news/internal/logbook"
	"github.com/kingrea/campus-news/internal/news"
	"github.com/kingrea/campus-news/internal/state"
	"github.com/kingrea/campus-news/internal/tracker"
)

func TestInitialLoadShowsFeed(t *testing.T) {
	app, _ := newTestApp(t, state.NewRecord())
	if app.state != stateLoading {
		t.Fatalf("expected loading state before init")
	}
	if !strings.Contains(app.View(), "Loading news") {
		t.Fatalf("loading view missing spinner text")
	}
	app = runCommands(t, app, app.initializeCmd())
	if app.state != stateFeed {
		t.Fatalf("expected feed state, got %d", app.state)
	}
	view := app.View()
	for _, want := range []string{"Exam schedule", "By Registrar", "▲ 3"} {
		if !strings.Contains(view, want) {
			t.Fatalf("feed view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "✕ delete") {
		t.Fatalf("delete must not be offered for posts this client did not create")
	}
}

func TestLikeKeyUpdatesCount(t *testing.T) {
	app, _ := loadedApp(t, state.NewRecord())
	app = press(t, app, "l")
	if got := app.tracker.State(2).Reaction; got != tracker.Liked {
		t.Fatalf("reaction = %s, want liked", got)
	}
	if !strings.Contains(app.View(), "▲ 4") {
		t.Fatalf("expected updated like count in view")
	}
	if !strings.Contains(app.statusMsg, "Liked post #2") {
		t.Fatalf("unexpected status %q", app.statusMsg)
	}
	app = press(t, app, "l")
	if !strings.Contains(app.statusMsg, "Already liked") {
		t.Fatalf("second like should be reported as a no-op, got %q", app.statusMsg)
	}
}

func TestDislikeAfterLikeSwapsReaction(t *testing.T) {
	app, _ := loadedApp(t, state.NewRecord())
	app = press(t, app, "j")
	app = press(t, app, "l")
	app = press(t, app, "d")
	st := app.tracker.State(1)
	if st.Reaction != tracker.Disliked {
		t.Fatalf("reaction = %s, want disliked", st.Reaction)
	}
	rec := app.tracker.Record()
	if rec.Liked.Has(1) {
		t.Fatalf("post 1 must leave the liked set")
	}
}

func TestDeleteRequiresOwnership(t *testing.T) {
	app, srv := loadedApp(t, state.NewRecord())
	model, cmd := app.Update(keyMsg("x"))
	app = model.(*App)
	if cmd != nil {
		t.Fatalf("delete of a foreign post must not issue a request")
	}
	if !app.statusErr || !strings.Contains(app.statusMsg, "only delete posts you created") {
		t.Fatalf("unexpected status %q", app.statusMsg)
	}
	if len(srv.Posts()) != 2 {
		t.Fatalf("server posts changed")
	}
}

func TestComposeSubmitAndDelete(t *testing.T) {
	app, srv := loadedApp(t, state.NewRecord())
	app = press(t, app, "a")
	if app.state != stateCompose {
		t.Fatalf("expected compose state")
	}
	app = typeText(t, app, "T")
	app = press(t, app, "tab")
	app = typeText(t, app, "B")
	app = press(t, app, "tab")
	app = typeText(t, app, "A")
	app = press(t, app, "ctrl+s")

	if app.state != stateFeed {
		t.Fatalf("expected return to feed after submit, compose err %q", app.compose.err)
	}
	posts := app.tracker.Posts()
	if posts[0].Title != "T" || posts[0].Body != "B" || posts[0].AuthorName != "A" {
		t.Fatalf("new post not first: %+v", posts[0])
	}
	if !app.tracker.State(posts[0].ID).Owned {
		t.Fatalf("new post should be owned")
	}
	if app.compose.draft() != (news.Draft{}) {
		t.Fatalf("form should be cleared after a successful submit")
	}
	if !strings.Contains(app.View(), "✕ delete") {
		t.Fatalf("delete affordance missing for owned post")
	}

	app = press(t, app, "x")
	if len(app.tracker.Posts()) != 2 || len(srv.Posts()) != 2 {
		t.Fatalf("owned post should be removed locally and remotely")
	}
	if app.tracker.State(posts[0].ID).Owned {
		t.Fatalf("deleted post must leave the created set")
	}
}

func TestComposeRequiresAllFields(t *testing.T) {
	app, _ := loadedApp(t, state.NewRecord())
	app = press(t, app, "a")
	app = typeText(t, app, "Only a title")
	model, cmd := app.Update(keyMsg("ctrl+s"))
	app = model.(*App)
	if cmd != nil {
		t.Fatalf("incomplete draft must not be submitted")
	}
	if !strings.Contains(app.compose.err, "body, authorName required") {
		t.Fatalf("unexpected compose error %q", app.compose.err)
	}
	app = press(t, app, "esc")
	if app.state != stateFeed {
		t.Fatalf("esc should close the modal")
	}
	app = press(t, app, "a")
	if app.compose.draft().Title != "Only a title" {
		t.Fatalf("cancelled draft should be kept")
	}
}

func TestSubmitFailureKeepsForm(t *testing.T) {
	ts := httptest.NewServer(devserver.NewServer(devserver.Settings{}).Handler())
	base := ts.URL
	ts.Close()
	tr := tracker.New(news.NewClient(base), state.NewMemoryStore(state.NewRecord()))
	app := NewApp(tr)
	app = runCommands(t, app, app.initializeCmd())
	if !app.statusErr {
		t.Fatalf("expected a non-fatal load error in the status line")
	}
	app = press(t, app, "a")
	app = typeText(t, app, "T")
	app = press(t, app, "tab")
	app = typeText(t, app, "B")
	app = press(t, app, "tab")
	app = typeText(t, app, "A")
	app = press(t, app, "ctrl+s")
	if app.state != stateCompose {
		t.Fatalf("failed submit should keep the modal open")
	}
	if app.compose.err == "" {
		t.Fatalf("expected an error in the modal")
	}
	if got := app.compose.draft(); got != (news.Draft{Title: "T", Body: "B", AuthorName: "A"}) {
		t.Fatalf("typed values lost: %+v", got)
	}
}

func TestLogPanelShowsTail(t *testing.T) {
	lb, err := logbook.New(filepath.Join(t.TempDir(), "newsfeed.log"))
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	lb.Info("feed opened")
	app, _ := newTestApp(t, state.NewRecord(), WithLogbook(lb))
	app.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	if !strings.Contains(app.View(), "LOG · newsfeed.log") {
		t.Fatalf("log panel missing")
	}
}

func TestFeedWindow(t *testing.T) {
	sevens := []int{7, 7, 7, 7, 7, 7, 7, 7, 7, 7}
	cases := []struct {
		name       string
		heights    []int
		sel        int
		budget     int
		start, end int
	}{
		{"all fit", []int{3, 3, 3}, 0, 20, 0, 3},
		{"unknown height", sevens, 4, 0, 0, 10},
		{"top", sevens, 0, 28, 0, 4},
		{"middle", sevens, 5, 28, 4, 8},
		{"bottom", sevens, 9, 28, 6, 10},
		{"tall neighbour", []int{4, 12, 4, 4}, 2, 10, 2, 4},
		{"selected taller than budget", []int{20, 3}, 0, 5, 0, 1},
	}
	for _, tc := range cases {
		start, end := feedWindow(tc.heights, tc.sel, tc.budget)
		if start != tc.start || end != tc.end {
			t.Fatalf("%s: feedWindow = %d,%d want %d,%d", tc.name, start, end, tc.start, tc.end)
		}
	}
}

func TestLongPostScrollsInsideWindow(t *testing.T) {
	body := strings.Repeat("The registrar has posted the updated exam timetable.\n\n", 200) + "Final paragraph."
	app, _ := newTestAppWithPosts(t, state.NewRecord(), []news.Post{
		{ID: 1, Title: "Long read", Body: body, AuthorName: "Registrar", Likes: 1},
	})
	app = runCommands(t, app, app.initializeCmd())
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	app = press(t, app, "enter")
	if !app.showDetail {
		t.Fatalf("enter should open the detail pane")
	}
	if h := lipgloss.Height(app.View()); h > 30 {
		t.Fatalf("detail view is %d rows, window is 30", h)
	}
	if strings.Contains(app.View(), "Final paragraph") {
		t.Fatalf("end of a long body should start out of view")
	}

	app = press(t, app, "j")
	if app.detail.YOffset != 1 {
		t.Fatalf("j should scroll the detail pane, offset %d", app.detail.YOffset)
	}
	app = press(t, app, "pgdown")
	if app.detail.YOffset <= 1 {
		t.Fatalf("pgdown should page the detail pane, offset %d", app.detail.YOffset)
	}
	app = press(t, app, "end")
	if !app.detail.AtBottom() || !strings.Contains(app.View(), "Final paragraph") {
		t.Fatalf("end should reveal the last paragraph")
	}
	if h := lipgloss.Height(app.View()); h > 30 {
		t.Fatalf("scrolled view is %d rows, window is 30", h)
	}
	if app.selection != 0 {
		t.Fatalf("scrolling must not move the feed selection")
	}

	app = press(t, app, "l")
	if app.tracker.State(1).Reaction != tracker.Liked {
		t.Fatalf("l in the detail pane should like the open post")
	}
	app = press(t, app, "esc")
	if app.showDetail {
		t.Fatalf("esc should close the detail pane")
	}
}

func TestFeedFitsWindow(t *testing.T) {
	posts := make([]news.Post, 0, 12)
	for i := 12; i >= 1; i-- {
		posts = append(posts, news.Post{
			ID:         int64(i),
			Title:      fmt.Sprintf("Notice %d %s", i, strings.Repeat("about campus life ", i%4*6)),
			Body:       strings.Repeat("Details follow.\n", i%3+1),
			AuthorName: "Office",
		})
	}
	app, _ := newTestAppWithPosts(t, state.NewRecord(), posts)
	app = runCommands(t, app, app.initializeCmd())
	app.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	for i := 0; i < 11; i++ {
		if h := lipgloss.Height(app.View()); h > 30 {
			t.Fatalf("feed view is %d rows at selection %d, window is 30", h, app.selection)
		}
		app = press(t, app, "j")
	}
	view := app.View()
	if lipgloss.Height(view) > 30 {
		t.Fatalf("feed view overflows at the last post")
	}
	if !strings.Contains(view, "Notice 1 ") {
		t.Fatalf("selected last post should be visible:\n%s", view)
	}
}

func TestDetailClosesWhenPostDeleted(t *testing.T) {
	rec := state.NewRecord()
	rec.Created.Add(2)
	app, _ := newTestApp(t, rec)
	app = runCommands(t, app, app.initializeCmd())
	app = press(t, app, "enter")
	if !app.showDetail {
		t.Fatalf("expected detail pane")
	}
	app = press(t, app, "x")
	if app.showDetail {
		t.Fatalf("detail pane should close once its post is gone")
	}
	if len(app.tracker.Posts()) != 1 {
		t.Fatalf("owned post should be deleted")
	}
}

func newTestApp(t *testing.T, rec state.Record, opts ...AppOption) (*App, *devserver.Server) {
	t.Helper()
	return newTestAppWithPosts(t, rec, []news.Post{
		{ID: 2, Title: "Exam schedule", Body: "Finals start **Monday**.", AuthorName: "Registrar", Likes: 3},
		{ID: 1, Title: "Library hours", Body: "Open late all week.", AuthorName: "Library", Likes: 0},
	}, opts...)
}

func newTestAppWithPosts(t *testing.T, rec state.Record, posts []news.Post, opts ...AppOption) (*App, *devserver.Server) {
	t.Helper()
	srv := devserver.NewServer(devserver.Settings{}, devserver.WithSeed(posts))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	tr := tracker.New(news.NewClient(ts.URL), state.NewMemoryStore(rec))
	return NewApp(tr, opts...), srv
}

func loadedApp(t *testing.T, rec state.Record) (*App, *devserver.Server) {
	t.Helper()
	app, srv := newTestApp(t, rec)
	return runCommands(t, app, app.initializeCmd()), srv
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "pgdown":
		return tea.KeyMsg{Type: tea.KeyPgDown}
	case "pgup":
		return tea.KeyMsg{Type: tea.KeyPgUp}
	case "end":
		return tea.KeyMsg{Type: tea.KeyEnd}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}

// press sends key and settles any request it starts. Focus changes return
// cursor blink commands, which are dropped.
func press(t *testing.T, app *App, key string) *App {
	t.Helper()
	model, cmd := app.Update(keyMsg(key))
	switch key {
	case "a", "tab", "shift+tab":
		return model.(*App)
	}
	return runCommands(t, model, cmd)
}

func typeText(t *testing.T, app *App, text string) *App {
	t.Helper()
	for _, r := range text {
		model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		app = model.(*App)
	}
	return app
}

// runCommands executes cmd and feeds its message back into the model until
// it stops producing feed messages.
func runCommands(t *testing.T, model tea.Model, cmd tea.Cmd) *App {
	t.Helper()
	app, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	for cmd != nil {
		msg := cmd()
		if !isFeedMsg(msg) {
			break
		}
		nextModel, nextCmd := app.Update(msg)
		app, ok = nextModel.(*App)
		if !ok {
			t.Fatalf("unexpected model type: %T", nextModel)
		}
		cmd = nextCmd
	}
	return app
}

func isFeedMsg(msg tea.Msg) bool {
	switch msg.(type) {
	case feedLoadedMsg, refreshDoneMsg, reactionDoneMsg, deleteDoneMsg, submitDoneMsg:
		return true
	default:
		return false
	}
}
