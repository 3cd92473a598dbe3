/*
Package log provides structured logging for Converge using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level for production debugging.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all Converge packages
  - Thread-safe concurrent writes

Configuration:
  - Level: debug, info, warn, error (default info)
  - JSONOutput: machine-readable JSON or human console format
  - Output: stdout by default, any io.Writer accepted

Component Loggers:
  - WithComponent("transport") tags every event with component=transport
  - WithAgentID / WithTaskID / WithPoolID attach correlation fields
  - Child loggers inherit the global level and output

# Usage

Initialize once at startup:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

Create a component logger and log structured events:

	logger := log.WithComponent("runtime")
	logger.Info().Str("agent_id", id).Msg("runtime started")

Console format (default) renders:

	2025-08-25T10:30:00Z INF runtime started component=runtime agent_id=1f3a...

JSON format renders one object per line, suitable for log shippers:

	{"level":"info","component":"runtime","agent_id":"1f3a...","time":"...","message":"runtime started"}

# Conventions

Severity usage across the codebase:
  - Debug: dropped unverified messages, per-decision dispatch, frame traces
  - Info: lifecycle transitions (start, stop, register, join)
  - Warn: recoverable contract failures (claim rejected, policy denial)
  - Error: I/O failures, listener faults, tool failures

Correlation fields: agent_id for the owning runtime, task_id on task
lifecycle events, pool_id on membership events.
*/
package log
