/*
Package reconciler sweeps expired task claims back to the pending state.

Claims are leases: a task constrained with "claim_ttl_sec" stays assigned
only while its claimant keeps working. When an agent claims a task and then
stops without reporting, the reconciler notices the lapsed lease on its next
cycle and returns the task to PENDING, where any other eligible agent can
claim it.

The loop is level-triggered and stateless. Each cycle reads current task
state through the TaskManager and releases whatever has expired, so the
system converges even when cycles are missed.

	rec := reconciler.NewReconciler(tasks, 0)
	rec.Start()
	defer rec.Stop()
*/
package reconciler
