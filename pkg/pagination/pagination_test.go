package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	t.Parallel()

	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit + 1: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	t.Parallel()

	c := Cursor{CreatedAt: time.Date(2026, 9, 1, 12, 0, 0, 1234, time.UTC), ID: uuid.New()}
	parsed, err := ParseCursor(EncodeCursor(c))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.CreatedAt.Equal(c.CreatedAt) || parsed.ID != c.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, c)
	}

	if got, err := ParseCursor("  "); err != nil || got != nil {
		t.Fatalf("empty cursor should be nil, got %v %v", got, err)
	}
	if _, err := ParseCursor("not-base64!!"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTrim(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	rows := make([]Cursor, 4)
	for i := range rows {
		rows[i] = Cursor{CreatedAt: now.Add(-time.Duration(i) * time.Minute), ID: uuid.New()}
	}
	ident := func(c Cursor) Cursor { return c }

	page, next := Trim(rows, 3, ident)
	if len(page) != 3 || next == "" {
		t.Fatalf("expected 3 rows and a cursor, got %d %q", len(page), next)
	}
	parsed, _ := ParseCursor(next)
	if parsed.ID != rows[2].ID {
		t.Fatalf("cursor should point at last returned row")
	}

	page, next = Trim(rows[:2], 3, ident)
	if len(page) != 2 || next != "" {
		t.Fatalf("expected final page, got %d %q", len(page), next)
	}
}
