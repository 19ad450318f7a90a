package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/tripwise/internal/presentation/graph"
	"github.com/aretw0/tripwise/pkg/workflow"
	"github.com/stretchr/testify/assert"
)

func sampleDescription() workflow.Description {
	return workflow.Description{
		Kind:    workflow.KindPipeline,
		Name:    "itinerary",
		Inputs:  []string{"query"},
		Outputs: []string{"trip_details", "flights", "activities", "final_ui"},
		Children: []workflow.Description{
			{Kind: workflow.KindStage, Name: "coordinator", Outputs: []string{"trip_details"}, Format: "json"},
			{Kind: workflow.KindParallel, Name: "research", Children: []workflow.Description{
				{Kind: workflow.KindStage, Name: "flights", Inputs: []string{"trip_details"}, Outputs: []string{"flights"}, Tools: []string{"search_flights"}, Format: "text"},
				{Kind: workflow.KindStage, Name: "activities", Inputs: []string{"trip_details"}, Outputs: []string{"activities"}, Format: "text"},
			}},
			{Kind: workflow.KindStage, Name: "final-page", Inputs: []string{"flights", "activities", "query"}, Outputs: []string{"final_ui"}, Format: "document"},
		},
	}
}

func TestGenerateMermaid(t *testing.T) {
	out := graph.GenerateMermaid(sampleDescription(), nil)

	for _, want := range []string{
		"graph TD\n",
		`seed_query(("query"))`,
		`coordinator["coordinator"]`,
		`subgraph group_research["research (parallel)"]`,
		`flights[["flights <br/> 🔧 search_flights"]]`,
		`activities["activities"]`,
		`final_page[/"final-page"/]`,
		`coordinator -- "trip_details" --> flights`,
		`coordinator -- "trip_details" --> activities`,
		`flights -- "flights" --> final_page`,
		`seed_query -- "query" --> final_page`,
	} {
		assert.Contains(t, out, want)
	}
	// The coordinator reads no template key, so it is ordered after the seed only implicitly.
	assert.NotContains(t, out, "-.-> coordinator")
	assert.NotContains(t, out, "classDef")
}

func TestGenerateMermaid_OrderingEdge(t *testing.T) {
	d := workflow.Description{Children: []workflow.Description{
		{Kind: workflow.KindStage, Name: "a", Outputs: []string{"x"}},
		{Kind: workflow.KindStage, Name: "b", Outputs: []string{"y"}},
	}}
	assert.Contains(t, graph.GenerateMermaid(d, nil), "a -.-> b")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	out := graph.GenerateMermaid(sampleDescription(), &graph.GraphOverlay{
		CompletedStages: []string{"coordinator", "flights", "flights"},
		FailedStage:     "activities",
	})

	assert.Contains(t, out, "classDef done")
	assert.Equal(t, 1, strings.Count(out, "class flights done;"))
	assert.Contains(t, out, "class coordinator done;")
	assert.Contains(t, out, "class activities failed;")
}
