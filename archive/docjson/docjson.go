// Package docjson holds the JSON document handling shared by the archive backends
// that store records as JSON text: encoding, equality filters and an in-memory
// cursor.
package docjson

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/google/uuid"
	"github.com/newthinker/lasr-archive/archive"
)

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// Encode marshals a record to JSON.
func Encode(record any) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, archive.WrapError(archive.ErrEncodeFailed, err)
	}
	return data, nil
}

// Matcher tests encoded documents against a filter.
type Matcher struct {
	want map[string]any
}

// NewMatcher prepares f for matching. Filter values go through a JSON round trip so
// they compare equal to decoded document fields (numbers become float64 and so on).
func NewMatcher(f archive.Filter) (*Matcher, error) {
	if f.Empty() {
		return &Matcher{}, nil
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, archive.Errorf(archive.ErrQueryFailed, "encoding filter: %w", err)
	}
	var want map[string]any
	if err := json.Unmarshal(raw, &want); err != nil {
		return nil, archive.Errorf(archive.ErrQueryFailed, "encoding filter: %w", err)
	}
	return &Matcher{want: want}, nil
}

// Match reports whether the document satisfies the filter. Documents that are not
// JSON objects only match the empty filter.
func (m *Matcher) Match(doc []byte) bool {
	if len(m.want) == 0 {
		return true
	}
	var got map[string]any
	if err := json.Unmarshal(doc, &got); err != nil {
		return false
	}
	for k, v := range m.want {
		gv, ok := got[k]
		if !ok || !reflect.DeepEqual(gv, v) {
			return false
		}
	}
	return true
}

// Cursor iterates over already-fetched JSON documents.
type Cursor struct {
	docs [][]byte
	pos  int
	cur  []byte
	err  error
}

// NewCursor creates a cursor over docs.
func NewCursor(docs [][]byte) *Cursor {
	return &Cursor{docs: docs}
}

func (c *Cursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = archive.WrapError(archive.ErrQueryFailed, err)
		return false
	}
	if c.pos >= len(c.docs) {
		return false
	}
	c.cur = c.docs[c.pos]
	c.pos++
	return true
}

func (c *Cursor) Decode(v any) error {
	return json.Unmarshal(c.cur, v)
}

func (c *Cursor) Err() error { return c.err }

func (c *Cursor) Close(ctx context.Context) error {
	c.docs = nil
	c.cur = nil
	return nil
}

var _ archive.Cursor = (*Cursor)(nil)
