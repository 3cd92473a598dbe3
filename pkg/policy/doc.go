/*
Package policy defines the pluggable rules that govern agent behavior in
Converge: who may join a pool, how much agents trust each other, which
decisions an executor may run, and how disputes are settled.

# Core Components

  - AdmissionPolicy: pool membership gate (OpenAdmission, WhitelistAdmission,
    TokenAdmission)
  - TrustModel: per-agent trust scores clamped to [0, 1] with a neutral 0.5
    default for unknown agents
  - ActionPolicy: allowlist over decision kinds; nil means permissive
  - ResourceLimits: CPU, memory, and network bounds checked via ValidateSafety
  - GovernanceModel: dispute resolution (DictatorialGovernance,
    DemocraticGovernance)

# Usage

	pool := types.NewPool(types.PoolSpec{
		ID:        "workers",
		Admission: policy.NewWhitelistAdmission([]string{"agent-1"}),
	})

	trust := policy.NewTrustModel()
	trust.UpdateTrust("agent-1", 0.2)

All types are safe for concurrent use where they carry mutable state; the
stateless policies are plain values.
*/
package policy
