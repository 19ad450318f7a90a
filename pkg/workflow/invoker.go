package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/tripwise/internal/logging"
	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/aretw0/tripwise/pkg/ports"
)

// DefaultMaxToolTurns bounds how many times a model may request tools within one stage.
const DefaultMaxToolTurns = 5

// DefaultMaxTokens is used when neither the invoker nor the stage sets a limit.
const DefaultMaxTokens int64 = 4096

// DefaultQueryKey is the context key whose value is sent as the user message.
const DefaultQueryKey = "query"

// ToolResolver looks tools up by name.
type ToolResolver interface {
	Resolve(names ...string) ([]ports.Tool, error)
}

// Invoker runs single stages against a model.
type Invoker struct {
	model     ports.Model
	tools     ToolResolver
	maxTurns  int
	modelName string
	maxTokens int64
	queryKey  string
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithToolResolver sets where stage tool names are resolved.
func WithToolResolver(r ToolResolver) InvokerOption {
	return func(iv *Invoker) {
		iv.tools = r
	}
}

// WithMaxToolTurns overrides DefaultMaxToolTurns.
func WithMaxToolTurns(n int) InvokerOption {
	return func(iv *Invoker) {
		if n > 0 {
			iv.maxTurns = n
		}
	}
}

// WithModelName sets the model used by stages that do not name one.
func WithModelName(name string) InvokerOption {
	return func(iv *Invoker) {
		iv.modelName = name
	}
}

// WithMaxTokens sets the response token limit for stages that do not set one.
func WithMaxTokens(n int64) InvokerOption {
	return func(iv *Invoker) {
		if n > 0 {
			iv.maxTokens = n
		}
	}
}

// WithQueryKey overrides DefaultQueryKey.
func WithQueryKey(key string) InvokerOption {
	return func(iv *Invoker) {
		iv.queryKey = key
	}
}

// WithHooks registers lifecycle callbacks for stages and tools.
func WithHooks(hooks domain.LifecycleHooks) InvokerOption {
	return func(iv *Invoker) {
		iv.hooks = hooks
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) InvokerOption {
	return func(iv *Invoker) {
		iv.logger = logger
	}
}

// NewInvoker creates an Invoker backed by model.
func NewInvoker(model ports.Model, opts ...InvokerOption) *Invoker {
	iv := &Invoker{
		model:     model,
		maxTurns:  DefaultMaxToolTurns,
		maxTokens: DefaultMaxTokens,
		queryKey:  DefaultQueryKey,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(iv)
	}
	return iv
}

// MaxToolTurns returns the tool turn bound.
func (iv *Invoker) MaxToolTurns() int { return iv.maxTurns }

// Invoke runs one stage outside a pipeline and returns its output value.
// Every reference in the instruction must be present in snap.
func (iv *Invoker) Invoke(ctx context.Context, spec StageSpec, snap domain.Snapshot) (any, error) {
	available := make(map[string]bool)
	for _, k := range snap.Keys() {
		available[k] = true
	}
	b := &builder{invoker: iv, available: map[string]bool{}, names: map[string]bool{}}
	st, err := b.compileStage(spec, available)
	if err != nil {
		return nil, &domain.StageError{Stage: spec.Name, Err: err}
	}
	return iv.invoke(ctx, st, snap)
}

func (iv *Invoker) invoke(ctx context.Context, st *stage, snap domain.Snapshot) (value any, err error) {
	name := st.spec.Name
	runID := domain.RunIDFrom(ctx)
	logger := iv.logger.With("stage", name)
	if runID != "" {
		logger = logger.With("run_id", runID)
	}

	start := time.Now()
	if iv.hooks.OnStageStart != nil {
		iv.hooks.OnStageStart(ctx, &domain.StageEvent{
			EventBase: domain.EventBase{Timestamp: start, Type: domain.EventStageStart, RunID: runID},
			Stage:     name,
			OutputKey: st.spec.OutputKey,
		})
	}
	logger.Debug("stage started")

	defer func() {
		if err != nil {
			err = &domain.StageError{Stage: name, Err: err}
		}
		elapsed := time.Since(start)
		if iv.hooks.OnStageEnd != nil {
			iv.hooks.OnStageEnd(ctx, &domain.StageEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStageEnd, RunID: runID},
				Stage:     name,
				OutputKey: st.spec.OutputKey,
				Duration:  elapsed,
				Err:       err,
			})
		}
		if err != nil {
			logger.Error("stage failed", "duration", elapsed, "err", err)
			return
		}
		logger.Info("stage completed", "duration", elapsed)
	}()

	instruction, err := st.tmpl.Render(snap)
	if err != nil {
		return nil, err
	}
	text, err := iv.converse(ctx, st, iv.request(st, snap, instruction), logger)
	if err != nil {
		return nil, err
	}
	return iv.finalize(st, text, logger)
}

func (iv *Invoker) request(st *stage, snap domain.Snapshot, instruction string) domain.ModelRequest {
	req := domain.ModelRequest{
		Model:     iv.modelName,
		MaxTokens: iv.maxTokens,
		System:    instruction,
	}
	if st.spec.Model.Name != "" {
		req.Model = st.spec.Model.Name
	}
	if st.spec.Model.MaxTokens > 0 {
		req.MaxTokens = st.spec.Model.MaxTokens
	}
	for _, t := range st.tools {
		req.Tools = append(req.Tools, t.Spec())
	}

	// Without a query the instruction itself becomes the user turn.
	user := instruction
	if q, ok := snap.String(iv.queryKey); ok && strings.TrimSpace(q) != "" {
		user = q
	} else {
		req.System = ""
	}
	req.Messages = []domain.Message{{Role: domain.RoleUser, Content: []domain.ContentBlock{domain.TextBlock(user)}}}
	return req
}

// converse drives the model until it answers without requesting tools.
func (iv *Invoker) converse(ctx context.Context, st *stage, req domain.ModelRequest, logger *slog.Logger) (string, error) {
	byName := make(map[string]ports.Tool, len(st.tools))
	for _, t := range st.tools {
		byName[t.Spec().Name] = t
	}

	for turn := 0; ; turn++ {
		resp, err := iv.model.Generate(ctx, req)
		if err != nil {
			return "", fmt.Errorf("model call: %w", err)
		}
		uses := resp.ToolUses()
		if len(uses) == 0 {
			if resp.StopReason == domain.StopMaxTokens {
				return "", fmt.Errorf("%w (max_tokens %d)", domain.ErrTruncatedResponse, req.MaxTokens)
			}
			return resp.Text(), nil
		}
		if turn >= iv.maxTurns {
			return "", fmt.Errorf("%w: model still requesting tools after %d turns", domain.ErrToolLoopExceeded, iv.maxTurns)
		}

		results := make([]domain.ContentBlock, 0, len(uses))
		for _, use := range uses {
			results = append(results, iv.callTool(ctx, st.spec.Name, byName, use, logger))
		}
		req.Messages = append(req.Messages,
			domain.Message{Role: domain.RoleAssistant, Content: resp.Content},
			domain.Message{Role: domain.RoleUser, Content: results},
		)
	}
}

func (iv *Invoker) callTool(ctx context.Context, stageName string, byName map[string]ports.Tool, use domain.ContentBlock, logger *slog.Logger) domain.ContentBlock {
	runID := domain.RunIDFrom(ctx)
	start := time.Now()
	if iv.hooks.OnToolCall != nil {
		iv.hooks.OnToolCall(ctx, &domain.ToolEvent{
			EventBase: domain.EventBase{Timestamp: start, Type: domain.EventToolCall, RunID: runID},
			Stage:     stageName,
			ToolName:  use.ToolName,
			Input:     use.Input,
		})
	}

	var res domain.ToolResult
	if tool, ok := byName[use.ToolName]; ok {
		res = safeInvoke(ctx, tool, use.Input)
	} else {
		res = domain.ToolFailure(fmt.Sprintf("%v: %s", domain.ErrUnknownTool, use.ToolName))
	}

	content := encodeToolResult(res)
	elapsed := time.Since(start)
	logger.Debug("tool returned", "tool", use.ToolName, "is_error", res.IsError, "duration", elapsed)
	if iv.hooks.OnToolReturn != nil {
		iv.hooks.OnToolReturn(ctx, &domain.ToolEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventToolReturn, RunID: runID},
			Stage:     stageName,
			ToolName:  use.ToolName,
			Input:     use.Input,
			Output:    res.Result,
			IsError:   res.IsError,
			Duration:  elapsed,
		})
	}
	return domain.ToolResultBlock(use.ToolUseID, content, res.IsError)
}

// safeInvoke converts a panicking tool into an error result.
func safeInvoke(ctx context.Context, tool ports.Tool, input json.RawMessage) (res domain.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.ToolFailure(fmt.Sprint(r))
		}
	}()
	return tool.Invoke(ctx, input)
}

func encodeToolResult(res domain.ToolResult) string {
	payload := res.Result
	if payload == nil && res.Error != "" {
		payload = map[string]string{"error": res.Error}
	}
	if s, ok := payload.(string); ok {
		return s
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(b)
}

func (iv *Invoker) finalize(st *stage, text string, logger *slog.Logger) (any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyResponse
	}
	switch st.spec.Format {
	case FormatDocument:
		return CleanDocument(text)
	case FormatJSON:
		var v any
		if err := json.Unmarshal([]byte(stripFences(text)), &v); err != nil {
			logger.Warn("stage answer is not JSON, keeping text", "err", err)
			return strings.TrimSpace(text), nil
		}
		return v, nil
	}
	return strings.TrimSpace(text), nil
}

// stripFences unwraps a fenced answer, dropping anything after the last
// closing fence line.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return ""
	}
	lines := strings.Split(s[nl+1:], "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			lines = lines[:i]
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// IsStageError reports whether err came from a failed stage and returns its name.
func IsStageError(err error) (string, bool) {
	var se *domain.StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
