// Package mcp exposes a Workspace to agents through the Model Context Protocol.
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

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MutationResponse is the structured result of every editing tool.
type MutationResponse struct {
	Document   string `json:"document" jsonschema_description:"The document id"`
	Version    uint64 `json:"version" jsonschema_description:"The document version after the call"`
	InstanceID string `json:"instance_id,omitempty" jsonschema_description:"The instance created or affected"`
	Selected   string `json:"selected,omitempty" jsonschema_description:"The selected instance, if any"`
}

// Server wraps a Workspace and exposes it as an MCP Server.
type Server struct {
	ws        *arbor.Workspace
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(ws *arbor.Workspace, opts ...Option) *Server {
	s := &Server{
		ws:        ws,
		mcpServer: server.NewMCPServer("arbor-mcp", strings.TrimSpace(arbor.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
		logger:    logging.NewNop(),
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

// ServeSSE serves MCP over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux}

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
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	doc := mcp.WithString("document", mcp.Required(), mcp.Description("Document id; created empty if missing"))

	s.mcpServer.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List stored document ids."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.ws.Documents(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		data, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(data)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Get a document's instance tree as nested JSON."),
		doc,
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d, err := s.open(ctx, request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		data, _ := json.Marshal(d.Store().Snapshot())
		return mcp.NewToolResultText(string(data)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("insert_instance",
		mcp.WithDescription("Create an instance of a component and insert it. Without parent_id it goes next to the selection."),
		doc,
		mcp.WithString("component", mcp.Required(), mcp.Description("Component type, e.g. Box or Heading")),
		mcp.WithString("parent_id", mcp.Description("Parent instance id")),
		mcp.WithNumber("index", mcp.Description("Position among the parent's children; appended when omitted")),
		mcp.WithString("props", mcp.Description("JSON object of props")),
		mcp.WithString("text", mcp.Description("Text content to place inside the new instance")),
		mcp.WithOutputSchema[MutationResponse](),
	), mcp.NewStructuredToolHandler(s.handleInsert))

	s.mcpServer.AddTool(mcp.NewTool("delete_instance",
		mcp.WithDescription("Delete an instance and its subtree."),
		doc,
		mcp.WithString("id", mcp.Required(), mcp.Description("Instance id")),
		mcp.WithOutputSchema[MutationResponse](),
	), mcp.NewStructuredToolHandler(s.handleDelete))

	s.mcpServer.AddTool(mcp.NewTool("reparent_instance",
		mcp.WithDescription("Move an instance under a new parent at a position."),
		doc,
		mcp.WithString("id", mcp.Required(), mcp.Description("Instance id")),
		mcp.WithString("parent_id", mcp.Required(), mcp.Description("New parent id")),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Position, counted with the instance removed")),
		mcp.WithOutputSchema[MutationResponse](),
	), mcp.NewStructuredToolHandler(s.handleReparent))

	s.mcpServer.AddTool(mcp.NewTool("clone_instance",
		mcp.WithDescription("Duplicate an instance right after itself."),
		doc,
		mcp.WithString("id", mcp.Required(), mcp.Description("Instance id")),
		mcp.WithOutputSchema[MutationResponse](),
	), mcp.NewStructuredToolHandler(s.handleClone))

	s.mcpServer.AddTool(mcp.NewTool("set_props",
		mcp.WithDescription("Merge props into an instance. null values remove keys."),
		doc,
		mcp.WithString("id", mcp.Required(), mcp.Description("Instance id")),
		mcp.WithString("props", mcp.Required(), mcp.Description("JSON object of props")),
		mcp.WithOutputSchema[MutationResponse](),
	), mcp.NewStructuredToolHandler(s.handleSetProps))

	s.mcpServer.AddTool(mcp.NewTool("select_instance",
		mcp.WithDescription("Select an instance, or clear the selection when id is empty."),
		doc,
		mcp.WithString("id", mcp.Description("Instance id")),
		mcp.WithOutputSchema[MutationResponse](),
	), mcp.NewStructuredToolHandler(s.handleSelect))
}

func (s *Server) open(ctx context.Context, args map[string]any) (*arbor.Designer, error) {
	id, _ := args["document"].(string)
	if id == "" {
		return nil, errors.New("document is required")
	}
	return s.ws.Open(ctx, id)
}

func response(d *arbor.Designer, instanceID string) MutationResponse {
	return MutationResponse{
		Document:   d.ID(),
		Version:    d.Version(),
		InstanceID: instanceID,
		Selected:   d.Selected(),
	}
}

func parseProps(args map[string]any) (map[string]any, error) {
	raw, _ := args["props"].(string)
	if raw == "" {
		return nil, nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("props must be a JSON object: %w", err)
	}
	return props, nil
}

func parseIndex(args map[string]any) (int, bool) {
	switch v := args["index"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func (s *Server) handleInsert(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (MutationResponse, error) {
	d, err := s.open(ctx, args)
	if err != nil {
		return MutationResponse{}, err
	}
	component, _ := args["component"].(string)
	inst, err := d.Create(component)
	if err != nil {
		return MutationResponse{}, fmt.Errorf("create failed: %w", err)
	}
	props, err := parseProps(args)
	if err != nil {
		return MutationResponse{}, err
	}
	for k, v := range props {
		if inst.Props == nil {
			inst.Props = make(map[string]any)
		}
		inst.Props[k] = v
	}
	if text, _ := args["text"].(string); text != "" {
		clean, err := runner.SanitizeInput(text)
		if err != nil {
			s.logger.Warn("MCP insert: text rejected", "err", err, "size", len(text))
			return MutationResponse{}, fmt.Errorf("text rejected: %w", err)
		}
		inst.Children = append(inst.Children, domain.TextChild(clean))
	}

	var target *domain.Target
	if parentID, _ := args["parent_id"].(string); parentID != "" {
		index, ok := parseIndex(args)
		if !ok {
			parent, err := d.Store().FindInstance(parentID)
			if err != nil {
				return MutationResponse{}, err
			}
			index = len(parent.Children)
		}
		target = &domain.Target{ParentID: parentID, Index: index}
	}
	if err := d.Insert(inst, target); err != nil {
		return MutationResponse{}, fmt.Errorf("insert failed: %w", err)
	}
	return response(d, inst.ID), nil
}

func (s *Server) handleDelete(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (MutationResponse, error) {
	d, err := s.open(ctx, args)
	if err != nil {
		return MutationResponse{}, err
	}
	id, _ := args["id"].(string)
	if err := d.Delete(id); err != nil {
		return MutationResponse{}, fmt.Errorf("delete failed: %w", err)
	}
	return response(d, id), nil
}

func (s *Server) handleReparent(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (MutationResponse, error) {
	d, err := s.open(ctx, args)
	if err != nil {
		return MutationResponse{}, err
	}
	id, _ := args["id"].(string)
	parentID, _ := args["parent_id"].(string)
	index, _ := parseIndex(args)
	if err := d.Reparent(id, domain.Target{ParentID: parentID, Index: index}); err != nil {
		return MutationResponse{}, fmt.Errorf("reparent failed: %w", err)
	}
	return response(d, id), nil
}

func (s *Server) handleClone(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (MutationResponse, error) {
	d, err := s.open(ctx, args)
	if err != nil {
		return MutationResponse{}, err
	}
	id, _ := args["id"].(string)
	clone, err := d.Clone(id)
	if err != nil {
		return MutationResponse{}, fmt.Errorf("clone failed: %w", err)
	}
	return response(d, clone.ID), nil
}

func (s *Server) handleSetProps(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (MutationResponse, error) {
	d, err := s.open(ctx, args)
	if err != nil {
		return MutationResponse{}, err
	}
	id, _ := args["id"].(string)
	props, err := parseProps(args)
	if err != nil {
		return MutationResponse{}, err
	}
	if err := d.SetProps(id, props); err != nil {
		return MutationResponse{}, fmt.Errorf("set_props failed: %w", err)
	}
	return response(d, id), nil
}

func (s *Server) handleSelect(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (MutationResponse, error) {
	d, err := s.open(ctx, args)
	if err != nil {
		return MutationResponse{}, err
	}
	id, _ := args["id"].(string)
	if id == "" {
		d.Unselect()
		return response(d, ""), nil
	}
	if err := d.Select(id); err != nil {
		return MutationResponse{}, err
	}
	return response(d, id), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("arbor://components", "Component palette",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.ws.Registry().Listed())
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: "arbor://components", MIMEType: "application/json", Text: string(data)},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource("arbor://documents", "Stored documents",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.ws.Documents(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		data, _ := json.Marshal(ids)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: "arbor://documents", MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
