package devserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kingrea/campus-news/internal/config"
	"github.com/kingrea/campus-news/internal/news"
)

func TestSettingsFromConfig(t *testing.T) {
	cfg := &config.Config{Project: config.ProjectConfig{DevServer: config.DevServerConfig{Host: "0.0.0.0", Port: 9001}}}
	settings := SettingsFromConfig(cfg)
	if settings.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", settings.Port)
	}
	if settings.Host != "0.0.0.0" {
		t.Fatalf("expected host override, got %s", settings.Host)
	}
	if settings.MaxBodyBytes != DefaultMaxBodyBytes {
		t.Fatalf("expected default body limit")
	}
	if got := SettingsFromConfig(nil).Address(); got != "127.0.0.1:8080" {
		t.Fatalf("unexpected default address %s", got)
	}
}

func TestServerServesNewsAPI(t *testing.T) {
	fixed := time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)
	srv := NewServer(Settings{Host: "127.0.0.1", Port: 0},
		WithClock(func() time.Time { return fixed }),
		WithSeed([]news.Post{{ID: 1, Title: "Welcome", Body: "Hello", AuthorName: "Dean", Likes: 1}}))
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	if srv.Status() != StatusReady {
		t.Fatalf("expected ready status, got %s", srv.Status())
	}
	client := news.NewClient(srv.BaseURL())
	ctx := context.Background()

	created, err := client.Add(ctx, news.Draft{Title: "T", Body: "B", AuthorName: "A"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if created.ID != 2 || !created.PostDate.Time.Equal(fixed) {
		t.Fatalf("unexpected created post %+v", created)
	}
	posts, err := client.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != 2 {
		t.Fatalf("expected new post first, got %+v", posts)
	}
	liked, err := client.Like(ctx, 1)
	if err != nil || liked.Likes != 2 {
		t.Fatalf("like: %+v %v", liked, err)
	}
	for i := 0; i < 3; i++ {
		if _, err := client.Dislike(ctx, 2); err != nil {
			t.Fatalf("dislike: %v", err)
		}
	}
	if p := srv.Posts()[0]; p.Likes != 0 {
		t.Fatalf("likes must not go negative, got %d", p.Likes)
	}
	if err := client.Delete(ctx, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var statusErr *news.StatusError
	if err := client.Delete(ctx, 2); !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %v", err)
	}
}

func TestServerRejectsBadRequests(t *testing.T) {
	srv := NewServer(Settings{MaxBodyBytes: 32})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	client := news.NewClient(ts.URL)
	ctx := context.Background()

	var statusErr *news.StatusError
	if _, err := client.Add(ctx, news.Draft{Title: "x"}); !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete draft, got %v", err)
	}
	long := news.Draft{Title: "t", Body: string(make([]byte, 256)), AuthorName: "a"}
	if _, err := client.Add(ctx, long); !errors.As(err, &statusErr) || statusErr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized body, got %v", err)
	}
	resp, err := http.Get(ts.URL + "/news/like/abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", resp.StatusCode)
	}
}
