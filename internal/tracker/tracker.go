package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kingrea/campus-news/internal/logbook"
	"github.com/kingrea/campus-news/internal/news"
	"github.com/kingrea/campus-news/internal/state"
)

var (
	// ErrNotOwned is returned when deleting a post this client did not create.
	ErrNotOwned = errors.New("tracker: post was not created by this client")
	// ErrPersist wraps failures to write the record after a mutation. The
	// in-memory state has already been updated when it is returned.
	ErrPersist = errors.New("tracker: persist state")
)

// PostState is the per-post view of the client's reaction and ownership.
type PostState struct {
	Reaction Reaction
	Owned    bool
}

// Tracker mediates every state change triggered by the user or the API.
type Tracker struct {
	api    news.API
	store  state.Store
	logger logbook.Logger

	mu     sync.RWMutex
	posts  []news.Post
	rec    state.Record
	loaded bool

	inflight singleflight.Group
}

// Option customizes tracker construction.
type Option func(*Tracker)

// WithLogger routes diagnostics to l.
func WithLogger(l logbook.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// New builds a tracker over api and store. Call Initialize before use.
func New(api news.API, store state.Store, opts ...Option) *Tracker {
	t := &Tracker{
		api:    api,
		store:  store,
		logger: logbook.Nop{},
		posts:  []news.Post{},
		rec:    state.NewRecord(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Initialize loads the post collection and the persisted record
// concurrently. Neither failure is fatal: a failed listing leaves the
// collection empty and a failed load starts from an empty record. The group
// has no shared context, so one failure never cancels the other; the
// returned error joins both for reporting.
func (t *Tracker) Initialize(ctx context.Context) error {
	var (
		posts   []news.Post
		rec     state.Record
		listErr error
		loadErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		posts, listErr = t.api.List(ctx)
		return listErr
	})
	g.Go(func() error {
		rec, loadErr = t.store.Load()
		return loadErr
	})
	_ = g.Wait()

	if listErr != nil {
		t.logger.Error("fetch posts: %v", listErr)
		posts = []news.Post{}
		listErr = fmt.Errorf("tracker: fetch posts: %w", listErr)
	}
	if loadErr != nil {
		t.logger.Error("load reactions: %v", loadErr)
		rec = state.NewRecord()
		loadErr = fmt.Errorf("tracker: load state: %w", loadErr)
	}

	t.mu.Lock()
	t.posts = posts
	t.rec = rec.WithDefaults()
	t.loaded = true
	t.mu.Unlock()

	t.logger.Info("feed initialized: %d posts, %d liked, %d disliked, %d created",
		len(posts), len(rec.Liked), len(rec.Disliked), len(rec.Created))
	return errors.Join(listErr, loadErr)
}

// Refresh re-fetches the post collection, keeping the current one on failure.
func (t *Tracker) Refresh(ctx context.Context) error {
	posts, err := t.api.List(ctx)
	if err != nil {
		t.logger.Error("refresh posts: %v", err)
		return fmt.Errorf("tracker: refresh: %w", err)
	}
	t.mu.Lock()
	t.posts = posts
	t.mu.Unlock()
	return nil
}

// Like applies a like to id. See React.
func (t *Tracker) Like(ctx context.Context, id int64) (bool, error) {
	return t.React(ctx, id, EventLike)
}

// Dislike applies a dislike to id. See React.
func (t *Tracker) Dislike(ctx context.Context, id int64) (bool, error) {
	return t.React(ctx, id, EventDislike)
}

// React moves id through the transition table. It reports false without
// contacting the API when the post already carries the target reaction. On
// success the server's post replaces the local one and id moves into the
// target set (and out of the opposite one). On failure nothing changes.
//
// Concurrent calls for the same event and id share one request. The shared
// request is detached from each caller's cancellation and applies its own
// result, so a caller that gives up early neither aborts it nor loses the
// server's answer.
func (t *Tracker) React(ctx context.Context, id int64, event Event) (bool, error) {
	t.mu.RLock()
	from := t.reactionLocked(id)
	t.mu.RUnlock()

	tr, err := next(from, event)
	if err != nil {
		return false, err
	}
	if !tr.call {
		return false, nil
	}

	key := fmt.Sprintf("%s:%d", event, id)
	shared := context.WithoutCancel(ctx)
	ch := t.inflight.DoChan(key, func() (any, error) {
		return nil, t.applyReaction(shared, id, event, tr.to)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return errors.Is(res.Err, ErrPersist), res.Err
		}
		return true, nil
	case <-ctx.Done():
		return false, fmt.Errorf("tracker: %s %d: %w", event, id, ctx.Err())
	}
}

func (t *Tracker) applyReaction(ctx context.Context, id int64, event Event, to Reaction) error {
	var (
		updated news.Post
		err     error
	)
	if event == EventLike {
		updated, err = t.api.Like(ctx, id)
	} else {
		updated, err = t.api.Dislike(ctx, id)
	}
	if err != nil {
		t.logger.Error("%s post %d: %v", event, id, err)
		return fmt.Errorf("tracker: %s %d: %w", event, id, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.replaceLocked(id, updated)
	t.setReactionLocked(id, to)
	return t.persistLocked()
}

// Delete removes a post this client created. A transport failure leaves
// local state untouched. Any settled response, including an error status,
// removes the post locally.
func (t *Tracker) Delete(ctx context.Context, id int64) error {
	t.mu.RLock()
	owned := t.rec.Created.Has(id)
	t.mu.RUnlock()
	if !owned {
		return fmt.Errorf("%w: %d", ErrNotOwned, id)
	}

	if err := t.api.Delete(ctx, id); err != nil {
		var statusErr *news.StatusError
		if !errors.As(err, &statusErr) && !errors.Is(err, news.ErrDecode) {
			t.logger.Error("delete post %d: %v", id, err)
			return fmt.Errorf("tracker: delete %d: %w", id, err)
		}
		t.logger.Warn("delete post %d settled with %v; removing locally", id, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(id)
	t.rec.Created.Remove(id)
	return t.persistLocked()
}

// Submit sends a new post. On success it is prepended to the collection and
// recorded as created by this client.
func (t *Tracker) Submit(ctx context.Context, draft news.Draft) (news.Post, error) {
	if err := draft.Validate(); err != nil {
		return news.Post{}, err
	}
	post, err := t.api.Add(ctx, draft.Normalize())
	if err != nil {
		t.logger.Error("add post: %v", err)
		return news.Post{}, fmt.Errorf("tracker: add: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.posts = append([]news.Post{post}, t.posts...)
	t.rec.Created.Add(post.ID)
	t.logger.Info("post %d created by %s", post.ID, post.AuthorName)
	return post, t.persistLocked()
}

// Loaded reports whether Initialize has completed.
func (t *Tracker) Loaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loaded
}

// Posts returns a copy of the collection in display order.
func (t *Tracker) Posts() []news.Post {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]news.Post, len(t.posts))
	copy(out, t.posts)
	return out
}

// Post looks up a single post by id.
func (t *Tracker) Post(id int64) (news.Post, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, p := range t.posts {
		if p.ID == id {
			return p, true
		}
	}
	return news.Post{}, false
}

// State returns the reaction and ownership of id.
func (t *Tracker) State(id int64) PostState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return PostState{
		Reaction: t.reactionLocked(id),
		Owned:    t.rec.Created.Has(id),
	}
}

// Record returns a copy of the current reaction/ownership record.
func (t *Tracker) Record() state.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rec.Clone()
}

func (t *Tracker) reactionLocked(id int64) Reaction {
	switch {
	case t.rec.Liked.Has(id):
		return Liked
	case t.rec.Disliked.Has(id):
		return Disliked
	default:
		return Neutral
	}
}

func (t *Tracker) setReactionLocked(id int64, r Reaction) {
	switch r {
	case Liked:
		t.rec.Disliked.Remove(id)
		t.rec.Liked.Add(id)
	case Disliked:
		t.rec.Liked.Remove(id)
		t.rec.Disliked.Add(id)
	default:
		t.rec.Liked.Remove(id)
		t.rec.Disliked.Remove(id)
	}
}

// replaceLocked swaps in the server's copy of a post. A post removed while
// the request was in flight stays removed.
func (t *Tracker) replaceLocked(id int64, updated news.Post) {
	for i := range t.posts {
		if t.posts[i].ID == id {
			t.posts[i] = updated
			return
		}
	}
}

func (t *Tracker) removeLocked(id int64) {
	kept := t.posts[:0]
	for _, p := range t.posts {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	t.posts = kept
}

func (t *Tracker) persistLocked() error {
	if err := t.store.Save(t.rec.Clone()); err != nil {
		t.logger.Error("persist reactions: %v", err)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}
