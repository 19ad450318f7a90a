/*
Package tripwise turns a free-text travel request into a finished,
self-contained HTML itinerary.

A Planner drives a workflow.Pipeline of model-backed stages. The default
pipeline, built by package itinerary, extracts trip details from the query,
researches flights and activities in parallel, merges them into a plan,
renders the plan as a web page, enhances it and finally cleans it into a
document that is checked before it is returned.

# Architecture

  - pkg/workflow: sequential and parallel stage composition with construction-time validation and bounded tool loops.
  - pkg/adapters/amadeus: token exchange, IATA resolution and flight offer search.
  - pkg/adapters/claude: the model backend.
  - pkg/session: per-session single-in-flight runs and artifact history.
  - pkg/adapters/http, pkg/adapters/mcp: surfaces that trigger runs.

# Usage

	model, _ := claude.New(claude.Config{APIKey: key})
	invoker := workflow.NewInvoker(model, workflow.WithToolResolver(registry))
	pipeline, err := itinerary.NewPipeline(invoker, nil)
	if err != nil {
		log.Fatal(err)
	}

	planner, err := tripwise.New(pipeline)
	if err != nil {
		log.Fatal(err)
	}
	res, err := planner.Plan(ctx, "5 days in Rome from Paris, leaving 2025-12-01")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Document)
*/
package tripwise
