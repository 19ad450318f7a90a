/*
Package workflow runs model-backed stages over a shared keyed context.

A Pipeline is an ordered list of elements. Each element is either a single
StageSpec or a ParallelGroup of stages that run concurrently against the same
snapshot. Every stage renders its instruction from earlier outputs, asks the
model for an answer (letting it call tools a bounded number of times) and
writes exactly one output key.

Pipelines are validated when they are built:

  - every {key} an instruction references is produced by a strictly earlier element or is a seed key;
  - output keys are unique across the pipeline and disjoint inside each parallel group;
  - every tool a stage names is registered.

A built Pipeline is immutable and may drive any number of concurrent runs.
Each run owns its own domain.Context. The first stage failure aborts the run.
*/
package workflow
