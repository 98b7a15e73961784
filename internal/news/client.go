package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/campus-news/internal/logbook"
)

const (
	// DefaultTimeout bounds a single API request.
	DefaultTimeout = 10 * time.Second

	maxResponseBytes int64 = 4 << 20
)

var (
	// ErrTransport marks requests that could not be issued or did not settle.
	ErrTransport = errors.New("news: transport failure")
	// ErrDecode marks responses whose body was absent or malformed.
	ErrDecode = errors.New("news: malformed response")
)

// StatusError reports a settled response with a non-2xx status code.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("news: %s: unexpected status %d %s", e.Op, e.Code, http.StatusText(e.Code))
}

// API is the set of remote operations the feed depends on.
type API interface {
	List(ctx context.Context) ([]Post, error)
	Add(ctx context.Context, draft Draft) (Post, error)
	Like(ctx context.Context, id int64) (Post, error)
	Dislike(ctx context.Context, id int64) (Post, error)
	Delete(ctx context.Context, id int64) error
}

// Client talks to the remote news API over HTTP.
type Client struct {
	baseURL  string
	http     *http.Client
	clientID string
	logger   logbook.Logger
	newID    func() string
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithClientID tags every request with the persisted client identity.
func WithClientID(id string) Option {
	return func(c *Client) {
		c.clientID = strings.TrimSpace(id)
	}
}

// WithLogger routes request diagnostics to l.
func WithLogger(l logbook.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient prepares a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logbook.Nop{},
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// List fetches every post in server order.
func (c *Client) List(ctx context.Context) ([]Post, error) {
	var posts []Post
	if err := c.do(ctx, "list", http.MethodGet, "/news/all", nil, &posts); err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []Post{}
	}
	return posts, nil
}

// Add submits a new post and returns it with its server-assigned id.
func (c *Client) Add(ctx context.Context, draft Draft) (Post, error) {
	form := url.Values{}
	form.Set("title", draft.Title)
	form.Set("body", draft.Body)
	form.Set("authorName", draft.AuthorName)
	var post Post
	if err := c.do(ctx, "add", http.MethodPost, "/news/add", form, &post); err != nil {
		return Post{}, err
	}
	return post, nil
}

// Like records a like and returns the updated post.
func (c *Client) Like(ctx context.Context, id int64) (Post, error) {
	var post Post
	if err := c.do(ctx, "like", http.MethodGet, "/news/like/"+strconv.FormatInt(id, 10), nil, &post); err != nil {
		return Post{}, err
	}
	return post, nil
}

// Dislike records a dislike and returns the updated post.
func (c *Client) Dislike(ctx context.Context, id int64) (Post, error) {
	var post Post
	if err := c.do(ctx, "dislike", http.MethodGet, "/news/dislike/"+strconv.FormatInt(id, 10), nil, &post); err != nil {
		return Post{}, err
	}
	return post, nil
}

// Delete asks the server to remove a post. The response body is ignored.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, "delete", http.MethodGet, "/news/delete/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %s: build request: %v", ErrTransport, op, err)
	}
	requestID := c.newID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.clientID != "" {
		req.Header.Set("X-Client-ID", c.clientID)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("news %s %s [%s]: %v", method, path, requestID, err)
		return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		c.logger.Warn("news %s %s [%s]: status %d", method, path, requestID, resp.StatusCode)
		return &StatusError{Op: op, Code: resp.StatusCode}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %v", ErrTransport, op, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return fmt.Errorf("%w: %s: empty body", ErrDecode, op)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, op, err)
	}
	return nil
}
