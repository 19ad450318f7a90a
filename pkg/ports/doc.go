/*
Package ports defines the driven ports (interfaces) of the Tripwise engine.

These interfaces decouple the workflow core from the model backend, the
external data tools, artifact persistence and cross-replica coordination.

# Key Interfaces

  - Model: a language model that answers a conversation, optionally requesting tools.
  - Tool: a capability a model may invoke mid-reasoning. Tools never fault.
  - HistoryStore: keeps the ordered documents produced for each session.
  - DistributedLocker: coordinates single-in-flight runs across replicas.
*/
package ports
