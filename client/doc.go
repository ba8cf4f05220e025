// Package client talks to an ADK backend over HTTP.
//
// The Client covers the four backend operations a chat front end needs:
//
//   - CreateSession: register a session id (an existing id is not an error)
//   - ListSessions: every session of the configured app and user
//   - GetSession: one session with its full event history
//   - Run: start a turn on /run_sse and return the event stream body
//
// # Basic Usage
//
//	c := client.New(client.Config{
//	    BaseURL: "http://localhost:8000",
//	    AppName: "cofacts-ai",
//	    UserID:  "anonymous",
//	})
//
//	if err := c.CreateSession(ctx, id); err != nil {
//	    return err
//	}
//	body, err := c.Run(ctx, client.RunRequest{
//	    SessionID:  id,
//	    Streaming:  true,
//	    NewMessage: genai.NewContentFromText("Is this claim true?", genai.RoleUser),
//	})
//
// # Retries
//
// Session requests are idempotent and are retried on transient failures
// (429, 5xx, connection resets) with exponential backoff. Run is never
// retried: a failed turn is reported to the caller, who may resume it.
//
// # Events
//
// Set Config.Events to observe requests. Events are sent without blocking
// and dropped when the channel is full.
package client
