/*
Package store provides the key-value persistence layer behind tasks, pools,
discovery records, and runtime checkpoints.

# Architecture

	┌─────────────────────────────────────────────────┐
	│                  Store interface                │
	│  Put / Get / Delete / List / PutIfAbsent / Close│
	└───────┬──────────┬───────────┬─────────────┬────┘
	        │          │           │             │
	   MemoryStore  FileStore  BoltStore    RedisStore
	   (map+mutex)  (one file  (single      (SETNX,
	                 per key,   bucket,      SCAN)
	                 O_EXCL)    one tx)

Values are opaque bytes; callers own serialization. Missing keys read as
(nil, nil), never as errors. Keys are flat strings namespaced by convention:
"task:<id>", "pool:<id>", "discovery:agent:<id>", "checkpoint:<agent>".

# Atomicity

PutIfAbsent is the primitive exclusive task claims build on, so every
backend makes it atomic: the memory store under its mutex, the file store
via exclusive file creation, BoltDB inside a single update transaction, and
Redis with SETNX.
*/
package store
