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

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
	"github.com/aretw0/stepwise/pkg/runner"
)

// ChainsURI is the resource listing known chains.
const ChainsURI = "stepwise://chains"

// ReasonArgs are the arguments of the reason tool.
type ReasonArgs struct {
	Query string `json:"query"`
}

// ChainArgs identify a chain.
type ChainArgs struct {
	ChainID string `json:"chain_id"`
}

// EntryResponse is one transcript entry.
type EntryResponse struct {
	Title          string  `json:"title" jsonschema_description:"Entry title, e.g. 'Step 1: ...' or 'Final Answer'"`
	Content        string  `json:"content" jsonschema_description:"Entry body (markdown)"`
	ElapsedSeconds float64 `json:"elapsed_seconds" jsonschema_description:"Thinking time of the request that produced the entry"`
}

// ChainResponse aligns with the HTTP snapshot schema and provides a unified structure across adapters.
type ChainResponse struct {
	ChainID      string          `json:"chain_id" jsonschema_description:"Chain identifier"`
	Status       string          `json:"status" jsonschema_description:"Chain status"`
	Transcript   []EntryResponse `json:"transcript" jsonschema_description:"Entries produced so far"`
	TotalSeconds *float64        `json:"total_seconds,omitempty" jsonschema_description:"Total thinking time, set once the final answer exists"`
}

// Server wraps a ChainService and exposes it as an MCP Server.
type Server struct {
	chains    ports.ChainService
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(chains ports.ChainService, opts ...Option) *Server {
	s := &Server{
		chains:    chains,
		mcpServer: server.NewMCPServer("stepwise-mcp", strings.TrimSpace(stepwise.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
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
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: reason
	reasonTool := mcp.NewTool("reason",
		mcp.WithDescription("Answer a question by reasoning step by step. Blocks until the final answer is available and returns the whole transcript."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question to reason about")),
		mcp.WithOutputSchema[ChainResponse](),
	)
	s.mcpServer.AddTool(reasonTool, mcp.NewStructuredToolHandler(s.handleReason))

	// TOOL: get_chain
	getTool := mcp.NewTool("get_chain",
		mcp.WithDescription("Get the latest transcript of a chain started earlier."),
		mcp.WithString("chain_id", mcp.Required(), mcp.Description("Chain identifier")),
		mcp.WithOutputSchema[ChainResponse](),
	)
	s.mcpServer.AddTool(getTool, mcp.NewStructuredToolHandler(s.handleGetChain))
}

func (s *Server) handleReason(ctx context.Context, request mcp.CallToolRequest, args ReasonArgs) (ChainResponse, error) {
	query, err := runner.SanitizeInput(args.Query)
	if err != nil {
		s.logger.Warn("MCP reason: input rejected", "error", err, "size", len(args.Query))
		return ChainResponse{}, fmt.Errorf("input rejected: %w", err)
	}

	id, err := s.chains.Start(ctx, query)
	if err != nil {
		return ChainResponse{}, err
	}

	snapshot, err := s.chains.Wait(ctx, id)
	if err != nil {
		// The caller went away; nobody is left to read the answer.
		_ = s.chains.Cancel(context.WithoutCancel(ctx), id)
		return ChainResponse{}, fmt.Errorf("reason failed: %w", err)
	}
	return toResponse(snapshot), nil
}

func (s *Server) handleGetChain(ctx context.Context, request mcp.CallToolRequest, args ChainArgs) (ChainResponse, error) {
	snapshot, err := s.chains.Snapshot(ctx, args.ChainID)
	if err != nil {
		return ChainResponse{}, err
	}
	return toResponse(snapshot), nil
}

func (s *Server) registerResources() {
	// EXPOSE: stepwise://chains
	s.mcpServer.AddResource(mcp.NewResource(ChainsURI, "Known reasoning chains",
		mcp.WithMIMEType("application/json"),
	), s.readChains)
}

func (s *Server) readChains(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	snapshots, err := s.chains.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}

	out := make([]ChainResponse, len(snapshots))
	for i, snap := range snapshots {
		out[i] = toResponse(snap)
	}
	jsonBytes, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ChainsURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

func toResponse(snap *domain.ChainSnapshot) ChainResponse {
	resp := ChainResponse{
		ChainID:    snap.ID,
		Status:     string(snap.Status),
		Transcript: make([]EntryResponse, len(snap.Emission.Transcript)),
	}
	for i, e := range snap.Emission.Transcript {
		resp.Transcript[i] = EntryResponse{Title: e.Title, Content: e.Content, ElapsedSeconds: e.Elapsed.Seconds()}
	}
	if snap.Emission.Total != nil {
		total := snap.Emission.Total.Seconds()
		resp.TotalSeconds = &total
	}
	return resp
}
