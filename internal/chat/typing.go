package chat

import "github.com/samber/lo"

// TypingTracker is the set of usernames currently flagged as typing. Members
// keep the order in which they started typing. Like Registry it relies on the
// Engine mutex.
type TypingTracker struct {
	order   []string
	members map[string]struct{}
}

// NewTypingTracker returns an empty tracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{members: make(map[string]struct{})}
}

// MarkTyping adds username to the set. Repeated calls are no-ops.
func (t *TypingTracker) MarkTyping(username string) {
	if _, ok := t.members[username]; ok {
		return
	}
	t.members[username] = struct{}{}
	t.order = append(t.order, username)
}

// ClearTyping removes username from the set, if present.
func (t *TypingTracker) ClearTyping(username string) {
	if _, ok := t.members[username]; !ok {
		return
	}
	delete(t.members, username)
	t.order = lo.Without(t.order, username)
}

// IsTyping reports whether username is in the set.
func (t *TypingTracker) IsTyping(username string) bool {
	_, ok := t.members[username]
	return ok
}

// Snapshot returns a copy of the current members. It is never nil so that it
// encodes as a JSON array.
func (t *TypingTracker) Snapshot() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
