package workflow

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/aretw0/tripwise/pkg/ports"
)

// OutputFormat controls how a stage's final answer is turned into its output value.
type OutputFormat string

const (
	// FormatText stores the answer text as is.
	FormatText OutputFormat = "text"
	// FormatJSON parses the answer as JSON, keeping the text if it does not parse.
	FormatJSON OutputFormat = "json"
	// FormatDocument requires an HTML document, stripping enclosing code fences.
	FormatDocument OutputFormat = "document"
)

// ModelSettings overrides the invoker's model defaults for one stage.
type ModelSettings struct {
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	MaxTokens int64  `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// StageSpec declares one model-backed stage.
type StageSpec struct {
	Name        string
	Instruction string
	OutputKey   string
	Tools       []string
	Model       ModelSettings
	Format      OutputFormat
}

// Describe implements Element.
func (s StageSpec) Describe() Description {
	tmpl := ParseTemplate(s.Instruction)
	format := s.Format
	if format == "" {
		format = FormatText
	}
	return Description{
		Kind:    KindStage,
		Name:    s.Name,
		Inputs:  tmpl.Keys(),
		Outputs: []string{s.OutputKey},
		Tools:   slices.Clone(s.Tools),
		Format:  string(format),
	}
}

func (s StageSpec) compile(b *builder) (step, error) {
	st, err := b.compileStage(s, b.available)
	if err != nil {
		return nil, err
	}
	b.produce(st.spec.OutputKey)
	return st, nil
}

// stage is a validated StageSpec ready to run.
type stage struct {
	spec    StageSpec
	tmpl    *Template
	tools   []ports.Tool
	invoker *Invoker
}

func (s *stage) run(ctx context.Context, snap domain.Snapshot) (map[string]any, error) {
	v, err := s.invoker.invoke(ctx, s, snap)
	if err != nil {
		return nil, err
	}
	return map[string]any{s.spec.OutputKey: v}, nil
}

// compileStage validates spec against the keys available to it.
func (b *builder) compileStage(spec StageSpec, available map[string]bool) (*stage, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return nil, &domain.ValidationError{Reason: "stage without a name"}
	}
	if b.names[spec.Name] {
		return nil, &domain.ValidationError{Element: spec.Name, Reason: "duplicate stage name"}
	}
	if strings.TrimSpace(spec.OutputKey) == "" {
		return nil, &domain.ValidationError{Element: spec.Name, Reason: "missing output key"}
	}
	if b.available[spec.OutputKey] {
		return nil, &domain.ValidationError{Element: spec.Name, Reason: fmt.Sprintf("output key %q is already produced earlier", spec.OutputKey)}
	}
	switch spec.Format {
	case "":
		spec.Format = FormatText
	case FormatText, FormatJSON, FormatDocument:
	default:
		return nil, &domain.ValidationError{Element: spec.Name, Reason: fmt.Sprintf("unknown output format %q", spec.Format)}
	}

	tmpl := ParseTemplate(spec.Instruction)
	for _, key := range tmpl.Keys() {
		if !available[key] {
			return nil, &domain.ValidationError{Element: spec.Name, Reason: fmt.Sprintf("instruction references {%s}, which no earlier element produces", key)}
		}
	}

	var tools []ports.Tool
	if len(spec.Tools) > 0 {
		if b.invoker.tools == nil {
			return nil, &domain.ValidationError{Element: spec.Name, Reason: "stage declares tools but the invoker has no tool registry"}
		}
		resolved, err := b.invoker.tools.Resolve(spec.Tools...)
		if err != nil {
			return nil, &domain.ValidationError{Element: spec.Name, Err: err}
		}
		tools = resolved
	}

	spec.Tools = slices.Clone(spec.Tools)
	b.names[spec.Name] = true
	return &stage{spec: spec, tmpl: tmpl, tools: tools, invoker: b.invoker}, nil
}
