// Package claude implements ports.Model on the Anthropic Messages API.
package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aretw0/tripwise/internal/logging"
	"github.com/aretw0/tripwise/pkg/domain"
)

// DefaultModel is used when neither the config nor the request names a model.
const DefaultModel = anthropic.ModelClaudeSonnet4_5_20250929

// DefaultMaxTokens is used when the request sets no limit.
const DefaultMaxTokens int64 = 4096

// Config holds the connection settings.
type Config struct {
	APIKey     string
	Model      string
	MaxTokens  int64
	BaseURL    string
	Timeout    time.Duration
	// MaxRetries overrides the SDK retry count when positive.
	MaxRetries int
}

// Model calls the Messages API.
type Model struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    *slog.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// New creates a Model. It does not contact the API.
func New(cfg Config, opts ...Option) (*Model, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("claude: api key is required")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.MaxRetries > 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.MaxRetries))
	}

	m := &Model{
		client:    anthropic.NewClient(reqOpts...),
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
		logger:    logging.NewNop(),
	}
	if cfg.Model != "" {
		m.model = anthropic.Model(cfg.Model)
	}
	if cfg.MaxTokens > 0 {
		m.maxTokens = cfg.MaxTokens
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Generate implements ports.Model.
func (m *Model) Generate(ctx context.Context, req domain.ModelRequest) (*domain.ModelResponse, error) {
	params, err := m.params(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}
	resp := fromMessage(msg)
	m.logger.Debug("model responded",
		"model", params.Model,
		"stop_reason", resp.StopReason,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"duration", time.Since(start),
	)
	return resp, nil
}

func (m *Model) params(req domain.ModelRequest) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: m.maxTokens,
	}
	if req.Model != "" {
		params.Model = anthropic.Model(req.Model)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = req.MaxTokens
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	msgs, err := toMessages(req.Messages)
	if err != nil {
		return params, err
	}
	params.Messages = msgs
	if len(req.Tools) > 0 {
		params.Tools = toTools(req.Tools)
	}
	return params, nil
}

func toMessages(in []domain.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(in))
	for i, msg := range in {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for _, b := range msg.Content {
			switch b.Type {
			case domain.BlockText:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case domain.BlockToolUse:
				var input any = json.RawMessage(`{}`)
				if len(b.Input) > 0 {
					input = b.Input
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(b.ToolUseID, input, b.ToolName))
			case domain.BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
			default:
				return nil, fmt.Errorf("message %d: unsupported block type %q", i, b.Type)
			}
		}
		switch msg.Role {
		case domain.RoleUser:
			out = append(out, anthropic.NewUserMessage(blocks...))
		case domain.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("message %d: unsupported role %q", i, msg.Role)
		}
	}
	return out, nil
}

func toTools(specs []domain.ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		props := s.Parameters
		if props == nil {
			props = map[string]any{}
		}
		tool := anthropic.ToolParam{
			Name:        s.Name,
			Description: anthropic.String(s.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: props,
				Required:   s.Required,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out
}

func fromMessage(msg *anthropic.Message) *domain.ModelResponse {
	resp := &domain.ModelResponse{
		StopReason:   string(msg.StopReason),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}
	for _, blk := range msg.Content {
		switch blk.Type {
		case "text":
			resp.Content = append(resp.Content, domain.TextBlock(blk.AsText().Text))
		case "tool_use":
			tu := blk.AsToolUse()
			resp.Content = append(resp.Content, domain.ContentBlock{
				Type:      domain.BlockToolUse,
				ToolUseID: tu.ID,
				ToolName:  tu.Name,
				Input:     tu.Input,
			})
		}
	}
	return resp
}
