package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/spetersoncode/adkchat"
	"github.com/spetersoncode/adkchat/cache"
	"github.com/spetersoncode/adkchat/internal/logx"
	"github.com/spetersoncode/adkchat/stream"
)

// DefaultWaitTimeout bounds how long send_message waits for a reply.
const DefaultWaitTimeout = 5 * time.Minute

// Conversations is the conversation store the tools operate on.
// *cache.Cache satisfies it.
type Conversations interface {
	Get(id string) adkchat.State
	Load(ctx context.Context, id string) (adkchat.State, error)
	SendMessage(ctx context.Context, id, text string) (*stream.Run, error)
	StartConversation(ctx context.Context, text string) (string, *stream.Run, error)
	Resume(ctx context.Context, id, invocationID string) (*stream.Run, error)
	Stop(id string) bool
	Sessions(ctx context.Context) ([]cache.Summary, error)
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	name        string
	version     string
	waitTimeout time.Duration
	logger      zerolog.Logger
}

// WithName sets the server name reported to MCP clients.
func WithName(name string) ServerOption {
	return func(c *serverConfig) {
		c.name = name
	}
}

// WithVersion sets the server version reported to MCP clients.
func WithVersion(version string) ServerOption {
	return func(c *serverConfig) {
		c.version = version
	}
}

// WithWaitTimeout bounds how long send_message waits for a reply.
func WithWaitTimeout(d time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.waitTimeout = d
	}
}

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l zerolog.Logger) ServerOption {
	return func(c *serverConfig) {
		c.logger = l
	}
}

// NewServer creates an MCP server whose tools operate on conv.
//
// Example:
//
//	c := cache.New(client.New(client.Config{}))
//	s := mcp.NewServer(c, mcp.WithName("cofacts"))
//	server.ServeStdio(s)
func NewServer(conv Conversations, opts ...ServerOption) *server.MCPServer {
	cfg := &serverConfig{
		name:        "adkchat",
		version:     "1.0.0",
		waitTimeout: DefaultWaitTimeout,
		logger:      logx.Component("mcp"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := server.NewMCPServer(
		cfg.name,
		cfg.version,
		server.WithToolCapabilities(true),
	)

	t := &tools{conv: conv, waitTimeout: cfg.waitTimeout, logger: cfg.logger}
	s.AddTool(listSessionsTool, t.listSessions)
	s.AddTool(getTranscriptTool, t.getTranscript)
	s.AddTool(sendMessageTool, t.sendMessage)
	s.AddTool(resumeTurnTool, t.resumeTurn)
	s.AddTool(stopGenerationTool, t.stopGeneration)
	return s
}

// ServeStdio starts an MCP server that communicates over stdin/stdout.
// This is the standard transport for MCP servers invoked as subprocesses.
func ServeStdio(conv Conversations, opts ...ServerOption) error {
	return server.ServeStdio(NewServer(conv, opts...))
}
