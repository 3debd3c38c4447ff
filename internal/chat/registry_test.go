package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry()

	r.Register("c1", Participant{Username: "alice", UserID: "1"})
	r.Register("c1", Participant{Username: "alice2", UserID: "1"})

	require.Equal(t, 1, r.Len())
	p, ok := r.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, Participant{ConnID: "c1", Username: "alice2", UserID: "1"}, p)
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", Participant{Username: "alice"})

	p, ok := r.Unregister("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", p.Username)

	_, ok = r.Unregister("c1")
	assert.False(t, ok)
	_, ok = r.Lookup("c1")
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestRegistryAllIsSortedSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register("c3", Participant{Username: "bob"})
	r.Register("c2", Participant{Username: "alice"})
	r.Register("c1", Participant{Username: "alice"})

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c1", "c2", "c3"}, []string{all[0].ConnID, all[1].ConnID, all[2].ConnID})

	all[0].Username = "mutated"
	p, _ := r.Lookup("c1")
	assert.Equal(t, "alice", p.Username)
}

func TestTypingTracker(t *testing.T) {
	tr := NewTypingTracker()
	assert.NotNil(t, tr.Snapshot())
	assert.Empty(t, tr.Snapshot())

	tr.MarkTyping("bob")
	tr.MarkTyping("alice")
	tr.MarkTyping("bob")
	assert.Equal(t, []string{"bob", "alice"}, tr.Snapshot())
	assert.True(t, tr.IsTyping("alice"))

	tr.ClearTyping("bob")
	tr.ClearTyping("nobody")
	assert.Equal(t, []string{"alice"}, tr.Snapshot())
	assert.False(t, tr.IsTyping("bob"))

	snap := tr.Snapshot()
	snap[0] = "mutated"
	assert.Equal(t, []string{"alice"}, tr.Snapshot())
}
