package news

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Post is a single news item as returned by the API.
type Post struct {
	ID         int64     `json:"id"`
	AuthorName string    `json:"authorName"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Likes      int       `json:"likes"`
	PostDate   Timestamp `json:"postDate"`
}

// Draft carries the fields of the add-post form.
type Draft struct {
	Title      string
	Body       string
	AuthorName string
}

// ErrInvalidDraft is returned when a required draft field is empty.
var ErrInvalidDraft = errors.New("news: invalid draft")

// Normalize trims surrounding whitespace from every field.
func (d Draft) Normalize() Draft {
	return Draft{
		Title:      strings.TrimSpace(d.Title),
		Body:       strings.TrimSpace(d.Body),
		AuthorName: strings.TrimSpace(d.AuthorName),
	}
}

// Validate reports which required fields are missing.
func (d Draft) Validate() error {
	d = d.Normalize()
	var missing []string
	if d.Title == "" {
		missing = append(missing, "title")
	}
	if d.Body == "" {
		missing = append(missing, "body")
	}
	if d.AuthorName == "" {
		missing = append(missing, "authorName")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalidDraft, strings.Join(missing, ", "))
	}
	return nil
}

// Timestamp decodes the post date formats the API is known to emit: RFC 3339
// with or without a zone, a bare date, or epoch milliseconds.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		ts.Time = time.Time{}
		return nil
	}
	if !strings.HasPrefix(raw, `"`) {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("news: postDate %s: %w", raw, err)
		}
		ts.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	value, err := strconv.Unquote(raw)
	if err != nil {
		return fmt.Errorf("news: postDate %s: %w", raw, err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			ts.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("news: postDate %q: unrecognized format", value)
}

// Equal reports whether both timestamps denote the same instant.
func (ts Timestamp) Equal(other Timestamp) bool {
	return ts.Time.Equal(other.Time)
}

// MarshalJSON implements json.Marshaler.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(ts.Time.Format(time.RFC3339Nano))), nil
}
