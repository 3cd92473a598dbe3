package policy

import (
	"fmt"
)

// Dispute captures a disagreement put to a governance model. Votes holds the
// options cast by participating agents.
type Dispute struct {
	Subject string
	Votes   []string
}

// GovernanceModel resolves disputes inside a pool.
type GovernanceModel interface {
	ResolveDispute(d Dispute) any
}

// DictatorialGovernance defers every dispute to a fixed leader.
type DictatorialGovernance struct {
	LeaderID string
}

func (g DictatorialGovernance) ResolveDispute(Dispute) any {
	return fmt.Sprintf("Decided by %s", g.LeaderID)
}

// DemocraticGovernance resolves disputes by strict majority vote. It returns
// nil when no option clears half the votes.
type DemocraticGovernance struct{}

func (DemocraticGovernance) ResolveDispute(d Dispute) any {
	if len(d.Votes) == 0 {
		return nil
	}
	counts := make(map[string]int, len(d.Votes))
	for _, vote := range d.Votes {
		counts[vote]++
	}
	for option, count := range counts {
		if count*2 > len(d.Votes) {
			return option
		}
	}
	return nil
}
