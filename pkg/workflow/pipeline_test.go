package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/aretw0/tripwise/pkg/tools"
	"github.com/aretw0/tripwise/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageSpec(name, instruction, key string) workflow.StageSpec {
	return workflow.StageSpec{Name: name, Instruction: instruction, OutputKey: key}
}

func TestNewParallel_RejectsOverlappingKeys(t *testing.T) {
	_, err := workflow.NewParallel("research",
		stageSpec("flights", "f", "data"),
		stageSpec("activities", "a", "data"),
	)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "research", ve.Element)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	_, err = workflow.NewParallel("empty")
	assert.Error(t, err)
}

func TestParallel_MergesRegardlessOfCompletionOrder(t *testing.T) {
	model := newScriptedModel().
		on("slow", func(domain.ModelRequest) (*domain.ModelResponse, error) {
			time.Sleep(30 * time.Millisecond)
			return textResponse("slow result"), nil
		}).
		answer("fast", "fast result")
	iv := workflow.NewInvoker(model)

	p, err := workflow.NewPipeline("p", iv, []workflow.Element{
		workflow.MustParallel("both", stageSpec("a", "slow {query}", "a"), stageSpec("b", "fast {query}", "b")),
	}, workflow.WithSeedKeys("query"))
	require.NoError(t, err)

	out, err := p.Run(context.Background(), map[string]any{"query": "q"})
	require.NoError(t, err)

	a, _ := out.Get("a")
	b, _ := out.Get("b")
	assert.Equal(t, "slow result", a)
	assert.Equal(t, "fast result", b)
}

func TestParallel_MembersShareTheEntrySnapshot(t *testing.T) {
	iv := workflow.NewInvoker(newScriptedModel())

	_, err := workflow.NewPipeline("p", iv, []workflow.Element{
		workflow.MustParallel("g", stageSpec("a", "a", "a"), stageSpec("b", "b needs {a}", "b")),
	})

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "b", ve.Element)
}

func TestParallel_FailFast(t *testing.T) {
	model := newScriptedModel().
		on("fails", func(domain.ModelRequest) (*domain.ModelResponse, error) {
			return nil, errors.New("provider down")
		}).
		answer("after", "never")
	blocking := &ctxModel{inner: model, marker: "waits"}
	iv := workflow.NewInvoker(blocking)

	p, err := workflow.NewPipeline("p", iv, []workflow.Element{
		workflow.MustParallel("g", stageSpec("bad", "fails now", "x"), stageSpec("slow", "waits forever", "y")),
		stageSpec("next", "after {x} {y}", "z"),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := p.Run(ctx, nil)

	assert.Nil(t, out)
	stage, ok := workflow.IsStageError(err)
	require.True(t, ok)
	assert.Equal(t, "bad", stage)
	assert.ErrorContains(t, err, "provider down")
	assert.Empty(t, model.calls("after"), "pipeline aborts after a failing group")
	assert.NoError(t, ctx.Err(), "sibling was cancelled instead of running to the deadline")
}

// ctxModel blocks requests for marker until the context is cancelled.
type ctxModel struct {
	inner  *scriptedModel
	marker string
}

func (m *ctxModel) Generate(ctx context.Context, req domain.ModelRequest) (*domain.ModelResponse, error) {
	if strings.HasPrefix(req.Messages[0].Content[0].Text, m.marker) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.inner.Generate(ctx, req)
}

func TestPipeline_ContextHoldsExactlyTheDeclaredKeys(t *testing.T) {
	model := newScriptedModel().
		answer("one", "1").
		answer("two", "2").
		answer("three", "3").
		answer("four", "4")
	p, err := workflow.NewPipeline("p", workflow.NewInvoker(model), []workflow.Element{
		stageSpec("s1", "one {query}", "k1"),
		workflow.MustParallel("g", stageSpec("s2", "two {k1}", "k2"), stageSpec("s3", "three {k1}", "k3")),
		stageSpec("s4", "four {k2} {k3} {query}", "k4"),
	}, workflow.WithSeedKeys("query"))
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2", "k3", "k4"}, p.OutputKeys())
	assert.Equal(t, "k4", p.FinalKey())

	out, err := p.Run(context.Background(), map[string]any{"query": "q"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"query", "k1", "k2", "k3", "k4"}, out.Keys())
	assert.Equal(t, 5, out.Len())
	assert.Equal(t, map[string]any{"query": "q", "k1": "1", "k2": "2", "k3": "3", "k4": "4"}, out.Values())

	// The last stage saw every earlier output.
	last := model.calls("four")[0]
	assert.Equal(t, "four 2 3 q", last.System)
}

func TestPipeline_ConcurrentRunsAreIsolated(t *testing.T) {
	model := newScriptedModel().on("echo", func(req domain.ModelRequest) (*domain.ModelResponse, error) {
		return textResponse("seen " + req.Messages[0].Content[0].Text), nil
	})
	p, err := workflow.NewPipeline("p", workflow.NewInvoker(model), []workflow.Element{
		stageSpec("s", "echo", "out"),
	}, workflow.WithSeedKeys("query"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := fmt.Sprintf("q%d", i)
			out, err := p.Run(context.Background(), map[string]any{"query": q})
			if assert.NoError(t, err) {
				v, _ := out.Get("out")
				assert.Equal(t, "seen "+q, v)
			}
		}()
	}
	wg.Wait()
}

func TestPipeline_AbortsOnFirstFailure(t *testing.T) {
	model := newScriptedModel().
		answer("ok", "fine").
		answer("bad", "not a document").
		answer("later", "never")
	p, err := workflow.NewPipeline("p", workflow.NewInvoker(model), []workflow.Element{
		stageSpec("first", "ok", "a"),
		workflow.StageSpec{Name: "render", Instruction: "bad {a}", OutputKey: "b", Format: workflow.FormatDocument},
		stageSpec("third", "later {b}", "c"),
	})
	require.NoError(t, err)

	out, err := p.Run(context.Background(), nil)

	assert.Nil(t, out)
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
	stage, _ := workflow.IsStageError(err)
	assert.Equal(t, "render", stage)
	assert.Empty(t, model.calls("later"))
}

func TestNewPipeline_Validation(t *testing.T) {
	iv := workflow.NewInvoker(newScriptedModel(), workflow.WithToolResolver(tools.NewRegistry(&countingTool{name: "search"})))
	noTools := workflow.NewInvoker(newScriptedModel())

	tests := []struct {
		name     string
		invoker  *workflow.Invoker
		elements []workflow.Element
		opts     []workflow.PipelineOption
		element  string
		is       error
	}{
		{
			name:     "reference to later output",
			invoker:  iv,
			elements: []workflow.Element{stageSpec("a", "uses {b}", "a"), stageSpec("b", "b", "b")},
			element:  "a",
		},
		{
			name:     "self reference",
			invoker:  iv,
			elements: []workflow.Element{stageSpec("a", "uses {a}", "a")},
			element:  "a",
		},
		{
			name:     "duplicate output key",
			invoker:  iv,
			elements: []workflow.Element{stageSpec("a", "a", "k"), stageSpec("b", "b", "k")},
			element:  "b",
		},
		{
			name:     "output shadows a seed",
			invoker:  iv,
			elements: []workflow.Element{stageSpec("a", "a", "query")},
			opts:     []workflow.PipelineOption{workflow.WithSeedKeys("query")},
			element:  "a",
		},
		{
			name:     "duplicate stage name",
			invoker:  iv,
			elements: []workflow.Element{stageSpec("a", "a", "k1"), stageSpec("a", "b", "k2")},
			element:  "a",
		},
		{
			name:     "unknown tool",
			invoker:  iv,
			elements: []workflow.Element{workflow.StageSpec{Name: "a", Instruction: "a", OutputKey: "k", Tools: []string{"nope"}}},
			element:  "a",
			is:       domain.ErrUnknownTool,
		},
		{
			name:     "tools without registry",
			invoker:  noTools,
			elements: []workflow.Element{workflow.StageSpec{Name: "a", Instruction: "a", OutputKey: "k", Tools: []string{"search"}}},
			element:  "a",
		},
		{
			name:     "unknown format",
			invoker:  iv,
			elements: []workflow.Element{workflow.StageSpec{Name: "a", Instruction: "a", OutputKey: "k", Format: "pdf"}},
			element:  "a",
		},
		{
			name:     "missing output key",
			invoker:  iv,
			elements: []workflow.Element{stageSpec("a", "a", "")},
			element:  "a",
		},
		{
			name:    "empty pipeline",
			invoker: iv,
			element: "p",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := workflow.NewPipeline("p", tt.invoker, tt.elements, tt.opts...)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.element, ve.Element)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestPipeline_RunChecksSeeds(t *testing.T) {
	p, err := workflow.NewPipeline("p", workflow.NewInvoker(newScriptedModel().answer("s", "v")), []workflow.Element{
		stageSpec("s", "s {query}", "out"),
	}, workflow.WithSeedKeys("query"))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, domain.ErrMissingKey)

	_, err = p.Run(context.Background(), map[string]any{"query": "q", "out": "preset"})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func TestPipeline_Describe(t *testing.T) {
	iv := workflow.NewInvoker(newScriptedModel(), workflow.WithToolResolver(tools.NewRegistry(&countingTool{name: "search"})))
	p, err := workflow.NewPipeline("trip", iv, []workflow.Element{
		stageSpec("coordinator", "c", "details"),
		workflow.MustParallel("research",
			workflow.StageSpec{Name: "flights", Instruction: "f {details}", OutputKey: "flights", Tools: []string{"search"}},
			stageSpec("activities", "a {details}", "activities"),
		),
		workflow.StageSpec{Name: "render", Instruction: "r {flights} {activities}", OutputKey: "page", Format: workflow.FormatDocument},
	})
	require.NoError(t, err)

	d := p.Describe()
	assert.Equal(t, workflow.KindPipeline, d.Kind)
	assert.Equal(t, []string{"details", "flights", "activities", "page"}, d.Outputs)
	require.Len(t, d.Children, 3)

	group := d.Children[1]
	assert.Equal(t, workflow.KindParallel, group.Kind)
	assert.Equal(t, []string{"details"}, group.Inputs)
	assert.Equal(t, []string{"flights", "activities"}, group.Outputs)
	assert.Equal(t, []string{"search"}, group.Children[0].Tools)

	render := d.Children[2]
	assert.Equal(t, []string{"flights", "activities"}, render.Inputs)
	assert.Equal(t, "document", render.Format)
}
