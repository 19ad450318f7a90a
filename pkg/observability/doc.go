/*
Package observability turns workflow lifecycle events into logs and metrics.

Both Metrics.Hooks and LogHooks return domain.LifecycleHooks; combine them with
domain.MergeHooks and pass the result to the workflow.Invoker (stage and tool
events) and the tripwise.Planner (run events).
*/
package observability
