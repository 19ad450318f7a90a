/*
Package session serializes itinerary runs per session and records their results.

A Manager allows at most one in-flight run per session ID. The guard is a local
map, optionally backed by a ports.DistributedLocker so that replicas sharing a
Redis instance agree on it. A second run on a busy session fails immediately
with domain.ErrRunInFlight instead of queuing.

Documents from successful runs are appended to a ports.HistoryStore, where
they can be listed or fetched by index.
*/
package session
