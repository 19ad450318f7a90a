/*
Package domain contains the core types of the Tripwise workflow engine.

It defines the keyed run context that stages read from and write to, the
conversation types exchanged with a language model, tool call results,
flight records returned by the travel provider, and the lifecycle hooks
that observers attach to. The package performs no I/O.

# Key Entities

  - Context: the append-only key/value store shared by the stages of one run.
  - Snapshot: a read-only view of a Context taken before a stage runs.
  - Message and ContentBlock: the provider-neutral conversation model.
  - ToolSpec and ToolResult: tool metadata and the result/error sum returned by tools.
  - FlightOffer and IATACode: normalized flight search output.
  - Artifact: a finished itinerary document stored in session history.
*/
package domain
