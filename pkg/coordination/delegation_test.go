package coordination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelegateAndRevoke(t *testing.T) {
	proto := NewDelegationProtocol()

	id := proto.Delegate("agent-1", "agent-2", []string{"tasks.review", "tasks.translate"})
	require.NotEmpty(t, id)

	del, ok := proto.Get(id)
	require.True(t, ok)
	assert.Equal(t, "agent-1", del.DelegatorID)
	assert.Equal(t, "agent-2", del.DelegateeID)
	assert.Equal(t, []string{"tasks.review", "tasks.translate"}, del.Scope)
	assert.True(t, del.Active)

	assert.True(t, proto.Revoke(id))
	del, _ = proto.Get(id)
	assert.False(t, del.Active)

	// Unknown IDs cannot be revoked.
	assert.False(t, proto.Revoke("ghost"))
}

func TestActiveFor(t *testing.T) {
	proto := NewDelegationProtocol()

	first := proto.Delegate("agent-1", "agent-2", []string{"a"})
	proto.Delegate("agent-3", "agent-2", []string{"b"})
	proto.Delegate("agent-1", "agent-4", []string{"c"})

	active := proto.ActiveFor("agent-2")
	assert.Len(t, active, 2)

	proto.Revoke(first)
	active = proto.ActiveFor("agent-2")
	require.Len(t, active, 1)
	assert.Equal(t, []string{"b"}, active[0].Scope)
}
