package itinerary

import (
	"fmt"
	"strings"

	"github.com/aretw0/tripwise/pkg/tools"
	"github.com/aretw0/tripwise/pkg/workflow"
)

// Name is the pipeline name.
const Name = "itinerary"

// Stages returns the pipeline elements, with the instruction of any stage
// named in overrides replaced.
// Override keys that name no stage are an error.
func Stages(overrides map[string]string) ([]workflow.Element, error) {
	instr := DefaultInstructions()
	for name, text := range overrides {
		if _, ok := instr[name]; !ok {
			return nil, fmt.Errorf("prompt override for unknown stage %q (known: %s)", name, strings.Join(StageNames(), ", "))
		}
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("prompt override for stage %q is empty", name)
		}
		instr[name] = text
	}

	research, err := workflow.NewParallel("research",
		workflow.StageSpec{
			Name:        StageFlights,
			Instruction: instr[StageFlights],
			OutputKey:   KeyFlights,
			Tools:       []string{tools.SearchFlightsName},
		},
		workflow.StageSpec{
			Name:        StageActivities,
			Instruction: instr[StageActivities],
			OutputKey:   KeyActivities,
		},
	)
	if err != nil {
		return nil, err
	}

	return []workflow.Element{
		workflow.StageSpec{Name: StageCoordinator, Instruction: instr[StageCoordinator], OutputKey: KeyTripDetails, Format: workflow.FormatJSON},
		research,
		workflow.StageSpec{Name: StageCollaborate, Instruction: instr[StageCollaborate], OutputKey: KeyTripPlan},
		workflow.StageSpec{Name: StageWebview, Instruction: instr[StageWebview], OutputKey: KeyWebview},
		workflow.StageSpec{Name: StageEnhance, Instruction: instr[StageEnhance], OutputKey: KeyUIView},
		workflow.StageSpec{Name: StageOptimize, Instruction: instr[StageOptimize], OutputKey: KeyFinalUI, Format: workflow.FormatDocument},
	}, nil
}

// NewPipeline builds the itinerary pipeline. The invoker must resolve the
// search_flights tool.
func NewPipeline(invoker *workflow.Invoker, overrides map[string]string) (*workflow.Pipeline, error) {
	elements, err := Stages(overrides)
	if err != nil {
		return nil, err
	}
	return workflow.NewPipeline(Name, invoker, elements, workflow.WithSeedKeys(KeyQuery))
}

// StageNames lists the stages in execution order.
func StageNames() []string {
	return []string{StageCoordinator, StageFlights, StageActivities, StageCollaborate, StageWebview, StageEnhance, StageOptimize}
}
