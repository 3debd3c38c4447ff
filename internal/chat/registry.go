package chat

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
)

// Participant is a joined user bound to one live connection. ConnID is the
// registry key; the same Username may appear under several connections.
type Participant struct {
	ConnID   string `json:"connectionId"`
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

// Registry maps live connection ids to the participant announced on them.
// It is not safe for concurrent use; the Engine guards it with its mutex.
type Registry struct {
	entries map[string]Participant
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Participant)}
}

// Register inserts or replaces the participant for connID.
func (r *Registry) Register(connID string, p Participant) {
	p.ConnID = connID
	r.entries[connID] = p
}

// Unregister removes and returns the participant for connID, if any.
func (r *Registry) Unregister(connID string) (Participant, bool) {
	p, ok := r.entries[connID]
	if ok {
		delete(r.entries, connID)
	}
	return p, ok
}

// Lookup returns the participant registered on connID.
func (r *Registry) Lookup(connID string) (Participant, bool) {
	p, ok := r.entries[connID]
	return p, ok
}

// All returns a snapshot of every participant ordered by username, then
// connection id.
func (r *Registry) All() []Participant {
	all := lo.Values(r.entries)
	slices.SortFunc(all, func(a, b Participant) int {
		if c := cmp.Compare(a.Username, b.Username); c != 0 {
			return c
		}
		return cmp.Compare(a.ConnID, b.ConnID)
	})
	return all
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	return len(r.entries)
}
