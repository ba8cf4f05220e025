package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spetersoncode/adkchat"
	"github.com/spetersoncode/adkchat/internal/retry"
)

// Defaults matching a local `adk web` / `adk api_server` deployment.
const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultAppName = "cofacts-ai"
	DefaultUserID  = "anonymous"
)

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the ADK server root. Defaults to DefaultBaseURL.
	BaseURL string

	// AppName and UserID scope every session request.
	AppName string
	UserID  string

	// HTTPClient is used for all requests. It must not set a Timeout,
	// which would cut off long event streams. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Timeout bounds each non-streaming request. Zero means no bound.
	Timeout time.Duration

	// RetryConfig configures retries of session requests.
	// If nil, DefaultRetryConfig is used.
	RetryConfig *RetryConfig

	// Events is an optional channel for receiving client operation events.
	// Events are sent non-blocking; if the channel is full, events are dropped.
	Events chan<- Event
}

// Client is an HTTP client for one ADK app and user.
type Client struct {
	baseURL     string
	appName     string
	userID      string
	httpClient  *http.Client
	timeout     time.Duration
	retryConfig retry.Config
	events      chan<- Event
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryConfig overrides the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(c *Client) {
		c.retryConfig = cfg
	}
}

// New creates a client with the given configuration.
func New(cfg Config, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(orDefault(cfg.BaseURL, DefaultBaseURL), "/"),
		appName:     orDefault(cfg.AppName, DefaultAppName),
		userID:      orDefault(cfg.UserID, DefaultUserID),
		httpClient:  cfg.HTTPClient,
		timeout:     cfg.Timeout,
		retryConfig: retry.DefaultConfig(),
		events:      cfg.Events,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if cfg.RetryConfig != nil {
		c.retryConfig = *cfg.RetryConfig
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AppName returns the app every request is scoped to.
func (c *Client) AppName() string { return c.appName }

// UserID returns the user every request is scoped to.
func (c *Client) UserID() string { return c.userID }

// BaseURL returns the ADK server root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) sessionsPath() string {
	return fmt.Sprintf("/apps/%s/users/%s/sessions", url.PathEscape(c.appName), url.PathEscape(c.userID))
}

func (c *Client) sessionPath(id string) string {
	return c.sessionsPath() + "/" + url.PathEscape(id)
}

// call performs one idempotent JSON request with retries and events.
// check, when set, may claim a response before the status is inspected:
// it returns handled=true and the result to report for it.
func (c *Client) call(ctx context.Context, op, sessionID, method, path string, body, out any, check statusCheck) error {
	start := time.Now()
	emit(c.events, Event{Type: EventRequestStart, Operation: op, SessionID: sessionID})

	var retryEvents chan retry.Event
	if c.events != nil {
		retryEvents = make(chan retry.Event, 10)
		go c.forwardRetryEvents(retryEvents, op, sessionID)
	}

	_, err := retry.DoWithEvents(ctx, c.retryConfig, op, retryEvents, func() (struct{}, error) {
		return struct{}{}, c.once(ctx, method, path, body, out, check)
	})

	if retryEvents != nil {
		close(retryEvents)
	}

	if err != nil {
		emit(c.events, Event{Type: EventRequestError, Operation: op, SessionID: sessionID, Duration: time.Since(start), Error: err})
		return err
	}
	emit(c.events, Event{Type: EventRequestComplete, Operation: op, SessionID: sessionID, Duration: time.Since(start)})
	return nil
}

type statusCheck func(resp *http.Response) (handled bool, err error)

func (c *Client) once(ctx context.Context, method, path string, body, out any, check statusCheck) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.send(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if check != nil {
		if handled, err := check(resp); handled {
			_, _ = io.Copy(io.Discard, resp.Body)
			return err
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any, accept string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// httpError builds the categorized error for a non-success response,
// honoring Retry-After on 429 and 503.
func httpError(resp *http.Response) *adkchat.Error {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	e := adkchat.HTTPError(resp.StatusCode, resp.Status)
	if ra := resp.Header.Get("Retry-After"); ra != "" && e.Cat == adkchat.ErrorTransient {
		if secs, err := time.ParseDuration(ra + "s"); err == nil {
			return adkchat.NewTransientErrorWithRetry(e.Msg, e.Code, secs, nil)
		}
	}
	return e
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
