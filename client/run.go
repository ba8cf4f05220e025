package client

import (
	"context"
	"io"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// RunRequest is the body of POST /run_sse.
// Exactly one of NewMessage and InvocationID is normally set: a new user
// turn, or the resumption of an interrupted one.
type RunRequest struct {
	AppName      string         `json:"app_name"`
	UserID       string         `json:"user_id"`
	SessionID    string         `json:"session_id"`
	Streaming    bool           `json:"streaming"`
	NewMessage   *genai.Content `json:"new_message,omitempty"`
	InvocationID string         `json:"invocation_id,omitempty"`
}

// Run starts a turn and returns the event stream body, which the caller
// must close. Canceling ctx aborts the stream. Empty AppName and UserID are
// filled from the client configuration. A non-success status is returned as
// an *adkchat.Error and the body is closed.
func (c *Client) Run(ctx context.Context, req RunRequest) (io.ReadCloser, error) {
	if req.AppName == "" {
		req.AppName = c.appName
	}
	if req.UserID == "" {
		req.UserID = c.userID
	}

	start := time.Now()
	emit(c.events, Event{Type: EventRequestStart, Operation: "run", SessionID: req.SessionID})

	resp, err := c.send(ctx, http.MethodPost, "/run_sse", req, "text/event-stream")
	if err == nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		err = httpError(resp)
		resp.Body.Close()
	}
	if err != nil {
		emit(c.events, Event{Type: EventRequestError, Operation: "run", SessionID: req.SessionID, Duration: time.Since(start), Error: err})
		return nil, err
	}

	emit(c.events, Event{Type: EventRequestComplete, Operation: "run", SessionID: req.SessionID, Duration: time.Since(start)})
	return resp.Body, nil
}
