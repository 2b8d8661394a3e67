package store

import (
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC)
	key := FeedQueryKey("u1")

	token := EncodeCursor(key, at, "up42")
	gotAt, gotID, ok := DecodeCursor(token, key)
	if !ok {
		t.Fatal("decode refused its own token")
	}
	if !gotAt.Equal(at) || gotID != "up42" {
		t.Fatalf("round trip: %v %q", gotAt, gotID)
	}
}

func TestCursorNormalizesToUTC(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	local := time.Date(2025, 6, 1, 14, 0, 0, 0, berlin)

	token := EncodeCursor(FeedQueryKey("u1"), local, "up1")
	gotAt, _, ok := DecodeCursor(token, FeedQueryKey("u1"))
	if !ok {
		t.Fatal("decode failed")
	}
	if !gotAt.Equal(local) {
		t.Fatalf("instant drifted: %v vs %v", gotAt, local)
	}
}

func TestCursorFailsClosed(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := EncodeCursor(FeedQueryKey("u1"), at, "up1")

	cases := []struct {
		name  string
		token string
		key   string
	}{
		{"garbage", "%%%not-base64%%%", FeedQueryKey("u1")},
		{"truncated", token[:4], FeedQueryKey("u1")},
		{"wrong owner", token, FeedQueryKey("u2")},
		{"wrong query kind", token, UpdatesQueryKey("u1")},
		{"empty", "", FeedQueryKey("u1")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, ok := DecodeCursor(tc.token, tc.key); ok {
				t.Fatal("decode accepted a foreign token")
			}
		})
	}
}

func TestPageClamp(t *testing.T) {
	if got := (Page{}).Clamp(); got != DefaultPageLimit {
		t.Fatalf("zero limit: %d", got)
	}
	if got := (Page{Limit: -3}).Clamp(); got != DefaultPageLimit {
		t.Fatalf("negative limit: %d", got)
	}
	if got := (Page{Limit: 7}).Clamp(); got != 7 {
		t.Fatalf("in-range limit: %d", got)
	}
	if got := (Page{Limit: 10_000}).Clamp(); got != MaxPageLimit {
		t.Fatalf("excessive limit: %d", got)
	}
}
