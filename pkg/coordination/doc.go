/*
Package coordination implements the shared coordination primitives of
Converge: the task state machine, pool membership, and the agreement
protocols agents use to divide work.

# Architecture

	                ┌──────────────┐
	  Executor ───▶ │ TaskManager  │──┐
	                └──────────────┘  │     ┌───────────┐
	                ┌──────────────┐  ├───▶ │   Store   │
	  Executor ───▶ │ PoolManager  │──┘     │ task:<id> │
	                └──────────────┘        │ pool:<id> │
	                ┌──────────────┐        └───────────┘
	  Executor ───▶ │  Protocols   │  (in-memory only)
	                │ bid/vote/    │
	                │ negotiate/   │
	                │ delegate     │
	                └──────────────┘

# TaskManager

Tasks move through PENDING → ASSIGNED → COMPLETED/FAILED, with CANCELLED
reachable from any non-terminal state. Claims are exclusive: all transitions
run under one mutex, so concurrent claimants cannot both observe PENDING.
Claims may carry a lease ("claim_ttl_sec" constraint); ReleaseExpiredClaims
returns lapsed claims to PENDING so another agent can pick the task up.
Every transition is mirrored to the store, and managers lazily materialize
store-resident tasks, which is how a restarted process resumes work.

# PoolManager

Pools gate membership through an admission policy, then a trust threshold.
Join returns false (not an error) on rejection or unknown pools; leave is
idempotent. Mutations mirror to the store; persisted pools carry structural
state only, so policies must be re-attached after a restart.

# Protocols

BiddingProtocol (sealed-bid auctions), VoteLedger with Majority and
Plurality tallies, NegotiationProtocol (propose, counter, accept, reject),
and DelegationProtocol (scoped grants with revocation) are in-memory helpers
the executor drives from the corresponding Decision variants.
*/
package coordination
