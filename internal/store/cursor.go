package store

import (
	"encoding/base64"
	"strings"
	"time"
)

// Page bounds one streaming list call. A list fetches one extra probe row
// beyond the limit to decide whether more remain; the returned cursor is
// the identity of the last item actually handed back, never the probe.
type Page struct {
	Limit  int
	Cursor string
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Clamp returns the effective page limit.
func (p Page) Clamp() int {
	switch {
	case p.Limit <= 0:
		return DefaultPageLimit
	case p.Limit > MaxPageLimit:
		return MaxPageLimit
	default:
		return p.Limit
	}
}

// Query keys bind cursors to the filter definition that produced them.
// Every adapter uses these so a token minted by one list call fails closed
// against any other.
func FeedQueryKey(ownerID string) string      { return "feed/" + ownerID }
func UpdatesQueryKey(creatorID string) string { return "updates/" + creatorID }
func FriendsQueryKey(ownerID string) string   { return "friends/" + ownerID }
func CommentsQueryKey(updateID string) string { return "comments/" + updateID }

// EncodeCursor packs the resume position after (createdAt, id) for the
// query identified by queryKey into an opaque token.
func EncodeCursor(queryKey string, createdAt time.Time, id string) string {
	raw := queryKey + "|" + createdAt.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor unpacks a token minted for queryKey. ok is false for a
// malformed token or one minted for a different query; callers then return
// an empty page rather than reinterpret position.
func DecodeCursor(token, queryKey string) (createdAt time.Time, id string, ok bool) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", false
	}
	parts := strings.SplitN(string(raw), "|", 3)
	if len(parts) != 3 || parts[0] != queryKey {
		return time.Time{}, "", false
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return time.Time{}, "", false
	}
	return ts, parts[2], true
}
