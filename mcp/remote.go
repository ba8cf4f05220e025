package mcp

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// ErrUnknownTool is returned by [Remote.Call] for tools the server does not list.
var ErrUnknownTool = errors.New("unknown tool")

// Remote is a connection to an MCP server, such as one created with
// [NewServer] and served over stdio by another process.
//
// Remote is safe for concurrent use. The tool list is cached locally and
// can be refreshed with [Remote.Refresh].
type Remote struct {
	client *client.Client
	mu     sync.RWMutex
	tools  map[string]mcp.Tool
}

// NewRemote starts command as an MCP server and connects to it over stdio.
//
// Example:
//
//	r, err := mcp.NewRemote(ctx, "adkchat", nil, "mcp")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	reply, err := r.Call(ctx, "send_message", map[string]any{"text": "Is hot water a cure?"})
func NewRemote(ctx context.Context, command string, env []string, args ...string) (*Remote, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	return NewRemoteFromClient(ctx, c)
}

// NewRemoteFromClient creates a Remote from an existing MCP client.
// The client is started, initialized and asked for its tools.
func NewRemoteFromClient(ctx context.Context, c *client.Client) (*Remote, error) {
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	_, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "adkchat-mcp-client",
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	r := &Remote{
		client: c,
		tools:  make(map[string]mcp.Tool),
	}
	if err := r.Refresh(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return r, nil
}

// Close closes the connection to the MCP server.
func (r *Remote) Close() error {
	return r.client.Close()
}

// Refresh fetches the current list of tools from the MCP server.
func (r *Remote) Refresh(ctx context.Context) error {
	result, err := r.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]mcp.Tool, len(result.Tools))
	for _, t := range result.Tools {
		r.tools[t.Name] = t
	}
	return nil
}

// Names returns the sorted names of the available tools.
func (r *Remote) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Has reports whether the server lists a tool named name.
func (r *Remote) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Call invokes tool name and returns its text content. A result flagged as
// an error is returned as an error carrying that text.
func (r *Remote) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	if !r.Has(name) {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	result, err := r.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to call %s: %w", name, err)
	}

	text := resultText(result)
	if result.IsError {
		return "", fmt.Errorf("%s: %s", name, text)
	}
	return text, nil
}

func resultText(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
