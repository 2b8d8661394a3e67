// Package visibility computes the opaque identifier set that encodes who
// may read an update. Identifiers come in two disjoint kinds, friend:{userId}
// and group:{groupId}; an update's visible_to set always mirrors its explicit
// recipient lists plus the creator's own friend identifier.
package visibility

const (
	friendPrefix = "friend:"
	groupPrefix  = "group:"
)

// Friend returns the identifier granting one user direct visibility.
func Friend(userID string) string { return friendPrefix + userID }

// Group returns the identifier granting a group's members visibility.
func Group(groupID string) string { return groupPrefix + groupID }

// Friends maps user ids to friend identifiers, preserving order.
func Friends(userIDs []string) []string {
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		out = append(out, Friend(id))
	}
	return out
}

// Groups maps group ids to group identifiers, preserving order.
func Groups(groupIDs []string) []string {
	out := make([]string, 0, len(groupIDs))
	for _, id := range groupIDs {
		out = append(out, Group(id))
	}
	return out
}

// Compute returns the visible_to set for a new update: the creator's own
// friend identifier first, then one identifier per explicit recipient,
// deduplicated in input order.
func Compute(creatorID string, friendIDs, groupIDs []string) []string {
	out := make([]string, 0, 1+len(friendIDs)+len(groupIDs))
	seen := make(map[string]struct{}, 1+len(friendIDs)+len(groupIDs))
	add := func(id string) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	add(Friend(creatorID))
	for _, id := range friendIDs {
		add(Friend(id))
	}
	for _, id := range groupIDs {
		add(Group(id))
	}
	return out
}

// Contains reports whether id is a member of visibleTo.
func Contains(visibleTo []string, id string) bool {
	for _, v := range visibleTo {
		if v == id {
			return true
		}
	}
	return false
}

// CanView reports whether requester may read an update with the given
// creator and visible_to set. The creator always may.
func CanView(requesterID, creatorID string, visibleTo []string) bool {
	if requesterID == creatorID {
		return true
	}
	return Contains(visibleTo, Friend(requesterID))
}
