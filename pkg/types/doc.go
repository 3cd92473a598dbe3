/*
Package types defines the shared data structures of Converge: tasks, pools,
capabilities, agent descriptors, and the closed set of decisions agents
return from their decide step.

# Core Types

  - Task: a unit of work with a persistent state machine (pending, assigned,
    running, completed, failed, cancelled) managed by the coordination
    package
  - Pool: a scoped sub-network of agents with admission, governance, and
    trust policies attached
  - Capability: a declared agent ability used for task visibility filtering
    and discovery queries
  - AgentDescriptor: the record an agent publishes to the DiscoveryService
  - Decision: the tagged union dispatched by the runtime executor

Decision variants are plain structs implementing Kind(); the executor
switches on the concrete type and uses Kind() only for policy checks and
logging. User-defined decisions implement the same interface and are routed
to registered custom handlers.

Types here carry no serialization tags. Components that persist them define
their own versioned record forms, which keeps storage schemas independent of
in-memory shape.
*/
package types
