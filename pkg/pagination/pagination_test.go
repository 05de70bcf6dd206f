package pagination

import (
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 10, 19, 12, 30, 0, 123, time.UTC), ID: uuid.New()}
	encoded := EncodeCursor(in)

	out, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Fatalf("cursor mismatch: %+v vs %+v", out, in)
	}
	if url.QueryEscape(encoded) != encoded {
		t.Fatalf("cursor should be URL safe: %s", encoded)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if c, err := ParseCursor(""); c != nil || err != nil {
		t.Fatalf("empty cursor should be nil, got %v %v", c, err)
	}
	if _, err := ParseCursor("!!!"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestFromQuery(t *testing.T) {
	p := FromQuery(url.Values{"limit": {"500"}, "cursor": {" abc "}})
	if p.Limit != MaxLimit || p.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", p)
	}
	p = FromQuery(url.Values{"limit": {"x"}})
	if p.Limit != DefaultLimit {
		t.Fatalf("expected default limit, got %d", p.Limit)
	}
}
