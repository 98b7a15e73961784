package devserver

import (
	"sync"
	"time"

	"github.com/kingrea/campus-news/internal/news"
)

// board is the in-memory post list served by the development server.
// Newest posts come first.
type board struct {
	mu     sync.Mutex
	posts  []news.Post
	nextID int64
}

func newBoard(seed []news.Post) *board {
	b := &board{nextID: 1}
	for _, p := range seed {
		if p.ID >= b.nextID {
			b.nextID = p.ID + 1
		}
	}
	b.posts = append(b.posts, seed...)
	return b
}

func (b *board) all() []news.Post {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]news.Post, len(b.posts))
	copy(out, b.posts)
	return out
}

func (b *board) add(d news.Draft, now time.Time) news.Post {
	b.mu.Lock()
	defer b.mu.Unlock()
	post := news.Post{
		ID:         b.nextID,
		AuthorName: d.AuthorName,
		Title:      d.Title,
		Body:       d.Body,
		PostDate:   news.Timestamp{Time: now},
	}
	b.nextID++
	b.posts = append([]news.Post{post}, b.posts...)
	return post
}

// adjust changes a post's like count, never below zero.
func (b *board) adjust(id int64, delta int) (news.Post, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.posts {
		if b.posts[i].ID != id {
			continue
		}
		b.posts[i].Likes += delta
		if b.posts[i].Likes < 0 {
			b.posts[i].Likes = 0
		}
		return b.posts[i], true
	}
	return news.Post{}, false
}

func (b *board) remove(id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.posts {
		if b.posts[i].ID == id {
			b.posts = append(b.posts[:i], b.posts[i+1:]...)
			return true
		}
	}
	return false
}
