package coordination

import (
	"sync"
)

// Majority returns the option holding a strict majority (> half) of the
// votes, or nil when no option does. Votes must be comparable values.
func Majority(votes []any) any {
	if len(votes) == 0 {
		return nil
	}
	counts := make(map[any]int, len(votes))
	for _, v := range votes {
		counts[v]++
	}
	for option, count := range counts {
		if count*2 > len(votes) {
			return option
		}
	}
	return nil
}

// Plurality returns the option with the most votes, or nil when the top two
// options tie.
func Plurality(votes []any) any {
	if len(votes) == 0 {
		return nil
	}
	counts := make(map[any]int, len(votes))
	for _, v := range votes {
		counts[v]++
	}

	var best any
	bestCount := 0
	tied := false
	for option, count := range counts {
		switch {
		case count > bestCount:
			best = option
			bestCount = count
			tied = false
		case count == bestCount:
			tied = true
		}
	}
	if tied {
		return nil
	}
	return best
}

// VoteEntry is one agent's vote in a ballot.
type VoteEntry struct {
	AgentID string
	Option  any
}

// VoteLedger collects votes keyed by ballot ID. The executor appends here
// when dispatching Vote decisions; anyone may tally.
type VoteLedger struct {
	mu    sync.Mutex
	votes map[string][]VoteEntry
}

// NewVoteLedger creates an empty ledger.
func NewVoteLedger() *VoteLedger {
	return &VoteLedger{votes: map[string][]VoteEntry{}}
}

// Cast records a vote. An agent voting twice in the same ballot casts two
// entries; deduplication is the caller's policy.
func (l *VoteLedger) Cast(voteID, agentID string, option any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.votes[voteID] = append(l.votes[voteID], VoteEntry{AgentID: agentID, Option: option})
}

// Entries returns the recorded votes for a ballot in cast order.
func (l *VoteLedger) Entries(voteID string) []VoteEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]VoteEntry(nil), l.votes[voteID]...)
}

// Options returns just the options cast in a ballot, in cast order.
func (l *VoteLedger) Options(voteID string) []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.votes[voteID]
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = e.Option
	}
	return out
}

// ResolveMajority tallies a ballot by strict majority.
func (l *VoteLedger) ResolveMajority(voteID string) any {
	return Majority(l.Options(voteID))
}

// ResolvePlurality tallies a ballot by plurality.
func (l *VoteLedger) ResolvePlurality(voteID string) any {
	return Plurality(l.Options(voteID))
}
