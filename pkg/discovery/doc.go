/*
Package discovery lets agents find each other by topic and capability.

Runtimes register an AgentDescriptor on start and unregister on stop. Peers
query with a topic filter (matched on non-empty intersection of canonical
topic strings) and a capability filter (the query's names must all appear in
the candidate's capabilities).

With a store attached, descriptors persist under "discovery:agent:<id>" and
are loaded eagerly on construction; malformed records are skipped so one bad
entry cannot take the service down. Descriptors may carry a public key, which
callers feed into an identity.Registry to enable verified receive for
discovered peers.
*/
package discovery
