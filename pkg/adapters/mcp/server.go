package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tripwise"
	"github.com/aretw0/tripwise/internal/logging"
	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/aretw0/tripwise/pkg/tools"
	"github.com/aretw0/tripwise/pkg/workflow"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const pipelineURI = "tripwise://pipeline"

// PlanTripResponse is the structured result of plan_trip.
type PlanTripResponse struct {
	RunID    string `json:"run_id" jsonschema_description:"Identifier of the run"`
	Index    int    `json:"index,omitempty" jsonschema_description:"Position in the session history, when a session was given"`
	Document string `json:"document" jsonschema_description:"The finished HTML itinerary"`
}

// Planner runs a single query.
type Planner interface {
	Plan(ctx context.Context, query string) (*tripwise.Result, error)
}

// Sessions runs a query within a session. session.Manager implements it.
type Sessions interface {
	Run(ctx context.Context, sessionID, query string) (domain.Artifact, error)
}

// Server exposes planning and flight search as MCP tools.
type Server struct {
	planner   Planner
	sessions  Sessions
	registry  *tools.Registry
	pipeline  *workflow.Pipeline
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithSessions routes plan_trip calls that carry a session_id through sessions.
func WithSessions(sessions Sessions) Option {
	return func(s *Server) {
		s.sessions = sessions
	}
}

// WithPipeline publishes the pipeline structure as a resource.
func WithPipeline(p *workflow.Pipeline) Option {
	return func(s *Server) {
		s.pipeline = p
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance. Every tool in registry is
// exposed next to plan_trip.
func NewServer(planner Planner, registry *tools.Registry, opts ...Option) *Server {
	s := &Server{
		planner:   planner,
		registry:  registry,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("tripwise-mcp", strings.TrimSpace(tripwise.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx ends.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	planTool := mcp.NewTool("plan_trip",
		mcp.WithDescription("Plan a trip from a free-text request and return a self-contained HTML itinerary."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The travel request, e.g. '4 days in Lisbon from Madrid on 2025-12-01, budget 800 EUR'")),
		mcp.WithString("session_id", mcp.Description("Record the itinerary in this session's history (optional)")),
		mcp.WithOutputSchema[PlanTripResponse](),
	)
	s.mcpServer.AddTool(planTool, mcp.NewStructuredToolHandler(s.handlePlanTrip))

	if s.registry == nil {
		return
	}
	for _, name := range s.registry.Names() {
		t, _ := s.registry.Lookup(name)
		s.mcpServer.AddTool(toolDefinition(t.Spec()), s.toolHandler(name))
	}
}

// toolDefinition converts a tool spec into an MCP tool with a raw JSON schema.
func toolDefinition(spec domain.ToolSpec) mcp.Tool {
	schema := map[string]any{
		"type":       "object",
		"properties": spec.Parameters,
	}
	if len(spec.Required) > 0 {
		schema["required"] = spec.Required
	}
	raw, _ := json.Marshal(schema)
	return mcp.NewToolWithRawSchema(spec.Name, spec.Description, raw)
}

func (s *Server) toolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.callTool(ctx, name, request.GetArguments()), nil
	}
}

// callTool runs a registry tool. Tool failures are tool results, never protocol errors.
func (s *Server) callTool(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult {
	raw, err := json.Marshal(args)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err))
	}
	res := s.registry.Execute(ctx, name, raw)
	payload, err := json.Marshal(res.Result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err))
	}
	if res.IsError {
		s.logger.Warn("MCP tool returned an error", "tool", name, "err", res.Error)
		return mcp.NewToolResultError(string(payload))
	}
	return mcp.NewToolResultText(string(payload))
}

func (s *Server) handlePlanTrip(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (PlanTripResponse, error) {
	query, _ := args["query"].(string)
	sessionID, _ := args["session_id"].(string)

	if sessionID != "" {
		if s.sessions == nil {
			return PlanTripResponse{}, errors.New("sessions are not enabled on this server")
		}
		art, err := s.sessions.Run(ctx, sessionID, query)
		if err != nil {
			s.logger.Error("MCP plan_trip failed", "session_id", sessionID, "err", err)
			return PlanTripResponse{}, fmt.Errorf("plan failed: %w", err)
		}
		return PlanTripResponse{RunID: art.RunID, Index: art.Index, Document: art.Document}, nil
	}

	res, err := s.planner.Plan(ctx, query)
	if err != nil {
		s.logger.Error("MCP plan_trip failed", "err", err)
		return PlanTripResponse{}, fmt.Errorf("plan failed: %w", err)
	}
	return PlanTripResponse{RunID: res.RunID, Document: res.Document}, nil
}

func (s *Server) registerResources() {
	if s.pipeline == nil {
		return
	}
	s.mcpServer.AddResource(mcp.NewResource(pipelineURI, "Itinerary pipeline structure",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.pipeline.Describe())
		if err != nil {
			return nil, fmt.Errorf("failed to describe pipeline: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      pipelineURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
