package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/spetersoncode/adkchat"
)

var (
	listSessionsTool = mcp.NewTool("list_sessions",
		mcp.WithDescription("List fact-checking sessions, most recently updated first"),
	)

	getTranscriptTool = mcp.NewTool("get_transcript",
		mcp.WithDescription("Get the transcript of a session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to read")),
		mcp.WithString("format", mcp.Description("Output format: text (default) or json"), mcp.Enum("text", "json")),
	)

	sendMessageTool = mcp.NewTool("send_message",
		mcp.WithDescription("Send a message to the fact-checking agent and return its reply"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
		mcp.WithString("session_id", mcp.Description("Session to continue. A new session is started when omitted")),
		mcp.WithBoolean("wait", mcp.Description("Wait for the reply (default true)")),
		mcp.WithNumber("timeout_seconds", mcp.Description("How long to wait for the reply")),
	)

	resumeTurnTool = mcp.NewTool("resume_turn",
		mcp.WithDescription("Resume an interrupted turn of a session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to resume")),
		mcp.WithString("invocation_id", mcp.Required(), mcp.Description("Invocation to resume")),
	)

	stopGenerationTool = mcp.NewTool("stop_generation",
		mcp.WithDescription("Stop the live turn of a session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to stop")),
	)
)

type transcriptArgs struct {
	SessionID string `json:"session_id"`
	Format    string `json:"format"`
}

type sendArgs struct {
	SessionID      string  `json:"session_id"`
	Text           string  `json:"text"`
	Wait           *bool   `json:"wait"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

type resumeArgs struct {
	SessionID    string `json:"session_id"`
	InvocationID string `json:"invocation_id"`
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

// sendResult is the structured reply of send_message when it does not wait.
type sendResult struct {
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id"`
}

type tools struct {
	conv        Conversations
	waitTimeout time.Duration
	logger      zerolog.Logger
}

// bindArgs decodes the tool call arguments into T.
func bindArgs[T any](req mcp.CallToolRequest) (T, error) {
	var args T
	data, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return args, fmt.Errorf("failed to marshal arguments: %w", err)
	}
	if err := json.Unmarshal(data, &args); err != nil {
		return args, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (t *tools) listSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := t.conv.Sessions(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(sessions)
}

func (t *tools) getTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := bindArgs[transcriptArgs](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if args.SessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	s, err := t.conv.Load(ctx, args.SessionID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	switch args.Format {
	case "", "text":
		return mcp.NewToolResultText(Transcript(s)), nil
	case "json":
		return jsonResult(s)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q", args.Format)), nil
	}
}

func (t *tools) sendMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := bindArgs[sendArgs](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(args.Text) == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	// The turn belongs to the conversation, not to this tool call.
	runCtx := context.WithoutCancel(ctx)

	id := args.SessionID
	from := 0
	var runID string
	var done <-chan struct{}
	if id == "" {
		newID, run, err := t.conv.StartConversation(runCtx, args.Text)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		id, runID, done = newID, run.ID(), run.Done()
	} else {
		s, err := t.conv.Load(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		from = len(s.Messages)
		run, err := t.conv.SendMessage(runCtx, id, args.Text)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		runID, done = run.ID(), run.Done()
	}
	t.logger.Debug().Str("conversation_id", id).Str("run_id", runID).Msg("message sent")

	if args.Wait != nil && !*args.Wait {
		return jsonResult(sendResult{SessionID: id, RunID: runID})
	}

	timeout := t.waitTimeout
	if args.TimeoutSeconds > 0 {
		timeout = time.Duration(args.TimeoutSeconds * float64(time.Second))
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
	case <-waitCtx.Done():
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return mcp.NewToolResultError(fmt.Sprintf("no reply within %s; session %s is still streaming", timeout, id)), nil
		}
		return nil, waitCtx.Err()
	}

	s := t.conv.Get(id)
	if s.Error != "" {
		return mcp.NewToolResultError(s.Error), nil
	}
	reply := Reply(s.Messages, from)
	if reply == "" {
		reply = "(no reply)"
	}
	return mcp.NewToolResultText(fmt.Sprintf("session_id: %s\n\n%s", id, reply)), nil
}

func (t *tools) resumeTurn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := bindArgs[resumeArgs](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if args.SessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	run, err := t.conv.Resume(context.WithoutCancel(ctx), args.SessionID, args.InvocationID)
	if err != nil {
		if adkchat.IsUserInput(err) {
			return mcp.NewToolResultError("invocation_id is required"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(sendResult{SessionID: args.SessionID, RunID: run.ID()})
}

func (t *tools) stopGeneration(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := bindArgs[sessionArgs](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if args.SessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	if !t.conv.Stop(args.SessionID) {
		return mcp.NewToolResultText("nothing to stop"), nil
	}
	return mcp.NewToolResultText("stopped"), nil
}
