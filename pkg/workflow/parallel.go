package workflow

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/tripwise/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// ParallelGroup is a set of stages that run concurrently.
// Members see the same snapshot, so none can read another member's output.
type ParallelGroup struct {
	name   string
	stages []StageSpec
}

// NewParallel builds a group. Member output keys must be pairwise disjoint.
func NewParallel(name string, stages ...StageSpec) (*ParallelGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Reason: "parallel group without a name"}
	}
	if len(stages) == 0 {
		return nil, &domain.ValidationError{Element: name, Reason: "parallel group has no stages"}
	}
	owner := make(map[string]string, len(stages))
	for _, s := range stages {
		if prev, dup := owner[s.OutputKey]; dup {
			return nil, &domain.ValidationError{
				Element: name,
				Reason:  fmt.Sprintf("stages %q and %q both write %q", prev, s.Name, s.OutputKey),
				Err:     domain.ErrDuplicateKey,
			}
		}
		owner[s.OutputKey] = s.Name
	}
	return &ParallelGroup{name: name, stages: append([]StageSpec(nil), stages...)}, nil
}

// MustParallel is like NewParallel but panics on an invalid group.
func MustParallel(name string, stages ...StageSpec) *ParallelGroup {
	g, err := NewParallel(name, stages...)
	if err != nil {
		panic(err)
	}
	return g
}

// Name returns the group name.
func (g *ParallelGroup) Name() string { return g.name }

// Describe implements Element.
func (g *ParallelGroup) Describe() Description {
	d := Description{Kind: KindParallel, Name: g.name}
	for _, s := range g.stages {
		child := s.Describe()
		d.Inputs = appendUnique(d.Inputs, child.Inputs...)
		d.Outputs = append(d.Outputs, child.Outputs...)
		d.Children = append(d.Children, child)
	}
	return d
}

func (g *ParallelGroup) compile(b *builder) (step, error) {
	if b.names[g.name] {
		return nil, &domain.ValidationError{Element: g.name, Reason: "duplicate element name"}
	}
	// Members are checked against the keys available at group entry.
	entry := b.snapshotAvailable()
	compiled := make([]*stage, 0, len(g.stages))
	for _, s := range g.stages {
		st, err := b.compileStage(s, entry)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, st)
	}
	for _, st := range compiled {
		b.produce(st.spec.OutputKey)
	}
	b.names[g.name] = true
	return &group{name: g.name, stages: compiled}, nil
}

type group struct {
	name   string
	stages []*stage
}

// run executes every member and merges their outputs.
// The first member failure cancels the others and becomes the group's error.
func (g *group) run(ctx context.Context, snap domain.Snapshot) (map[string]any, error) {
	eg, gctx := errgroup.WithContext(ctx)
	results := make([]any, len(g.stages))
	for i, st := range g.stages {
		eg.Go(func() error {
			v, err := st.invoker.invoke(gctx, st, snap)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(g.stages))
	for i, st := range g.stages {
		out[st.spec.OutputKey] = results[i]
	}
	return out, nil
}

func appendUnique(dst []string, keys ...string) []string {
	for _, k := range keys {
		if !slices.Contains(dst, k) {
			dst = append(dst, k)
		}
	}
	return dst
}
