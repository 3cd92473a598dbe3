package coordination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMajority(t *testing.T) {
	assert.Nil(t, Majority(nil))
	assert.Nil(t, Majority([]any{}))

	assert.Equal(t, "a", Majority([]any{"a", "a", "b"}))
	assert.Equal(t, "a", Majority([]any{"a"}))

	// Half is not a majority.
	assert.Nil(t, Majority([]any{"a", "a", "b", "b"}))
	assert.Nil(t, Majority([]any{"a", "b", "c"}))
}

func TestPlurality(t *testing.T) {
	assert.Nil(t, Plurality(nil))

	assert.Equal(t, "b", Plurality([]any{"a", "b", "b", "c"}))
	assert.Equal(t, "a", Plurality([]any{"a"}))

	// A tie at the top yields no winner.
	assert.Nil(t, Plurality([]any{"a", "a", "b", "b", "c"}))
}

func TestVoteLedger(t *testing.T) {
	ledger := NewVoteLedger()

	ledger.Cast("ballot-1", "agent-1", "approve")
	ledger.Cast("ballot-1", "agent-2", "approve")
	ledger.Cast("ballot-1", "agent-3", "reject")
	ledger.Cast("ballot-2", "agent-1", "blue")

	entries := ledger.Entries("ballot-1")
	assert.Len(t, entries, 3)
	assert.Equal(t, VoteEntry{AgentID: "agent-1", Option: "approve"}, entries[0])

	assert.Equal(t, "approve", ledger.ResolveMajority("ballot-1"))
	assert.Equal(t, "blue", ledger.ResolvePlurality("ballot-2"))

	assert.Nil(t, ledger.ResolveMajority("unknown"))
	assert.Empty(t, ledger.Entries("unknown"))
}
