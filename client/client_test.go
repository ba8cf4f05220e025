package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/spetersoncode/adkchat"
)

func fastRetry() *RetryConfig {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	return &cfg
}

func newTestClient(t *testing.T, h http.HandlerFunc, events chan<- Event) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:     srv.URL + "/",
		AppName:     "cofacts-ai",
		UserID:      "anonymous",
		RetryConfig: fastRetry(),
		Events:      events,
	})
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := New(Config{})
		assert.Equal(t, DefaultBaseURL, c.BaseURL())
		assert.Equal(t, DefaultAppName, c.AppName())
		assert.Equal(t, DefaultUserID, c.UserID())
		assert.Same(t, http.DefaultClient, c.httpClient)
		assert.Equal(t, DefaultRetryConfig(), c.retryConfig)
	})

	t.Run("options override config", func(t *testing.T) {
		hc := &http.Client{}
		c := New(Config{BaseURL: "http://adk:8000/"}, WithHTTPClient(hc), WithRetryConfig(DisabledRetryConfig()))
		assert.Equal(t, "http://adk:8000", c.BaseURL())
		assert.Same(t, hc, c.httpClient)
		assert.Equal(t, 1, c.retryConfig.MaxAttempts)
	})
}

func TestCreateSession(t *testing.T) {
	t.Run("posts an empty object", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/apps/cofacts-ai/users/anonymous/sessions/s-1", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{}`, string(body))
			w.Write([]byte(`{"id":"s-1"}`))
		}, nil)

		require.NoError(t, c.CreateSession(context.Background(), "s-1"))
	})

	t.Run("conflict means it already exists", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "exists", http.StatusConflict)
		}, nil)

		require.NoError(t, c.CreateSession(context.Background(), "s-1"))
	})

	t.Run("other failures are reported", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}, nil)

		err := c.CreateSession(context.Background(), "s-1")
		require.Error(t, err)
		assert.Equal(t, "Endpoint returned 422: Unprocessable Entity", err.Error())
		assert.True(t, adkchat.IsPermanent(err))
	})

	t.Run("empty id", func(t *testing.T) {
		err := New(Config{}).CreateSession(context.Background(), "")
		assert.True(t, adkchat.IsUserInput(err))
		assert.ErrorIs(t, err, adkchat.ErrEmptyInput)
	})
}

func TestListSessions(t *testing.T) {
	t.Run("decodes sessions and titles", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/apps/cofacts-ai/users/anonymous/sessions", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[
				{"id": "s-1", "appName": "cofacts-ai", "userId": "anonymous", "lastUpdateTime": 1718000000.25,
				 "events": [{"author": "user", "content": {"role": "user", "parts": [{"text": "Is drinking hot water a cure for COVID-19?"}]}}]},
				{"id": "s-2", "app_name": "cofacts-ai", "user_id": "anonymous", "events": []}
			]`))
		}, nil)

		sessions, err := c.ListSessions(context.Background())
		require.NoError(t, err)
		require.Len(t, sessions, 2)

		assert.Equal(t, "Is drinking hot water a cure for COVID-1", sessions[0].Title())
		assert.Equal(t, int64(1718000000250), sessions[0].LastUpdateTime.UnixMilli())
		assert.Equal(t, "s-2", sessions[1].Title())
		assert.Equal(t, "cofacts-ai", sessions[1].AppName)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls atomic.Int32
		events := make(chan Event, 50)
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`[]`))
		}, events)

		sessions, err := c.ListSessions(context.Background())
		require.NoError(t, err)
		assert.Empty(t, sessions)
		assert.Equal(t, int32(2), calls.Load())

		var sawComplete bool
		for len(events) > 0 {
			e := <-events
			assert.Equal(t, "list_sessions", e.Operation)
			if e.Type == EventRequestComplete {
				sawComplete = true
			}
		}
		assert.True(t, sawComplete)
	})
}

func TestGetSession(t *testing.T) {
	t.Run("returns history", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/apps/cofacts-ai/users/anonymous/sessions/s%201", r.URL.EscapedPath())
			w.Write([]byte(`{"id": "s 1", "events": [
				{"author": "writer", "content": {"role": "model", "parts": [{"text": "Hi"}]}}
			]}`))
		}, nil)

		s, err := c.GetSession(context.Background(), "s 1")
		require.NoError(t, err)
		require.Len(t, s.Events, 1)
		assert.Equal(t, "Hi", s.Events[0].Text())
	})

	t.Run("not found", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, `{"detail":"Session not found"}`, http.StatusNotFound)
		}, nil)

		_, err := c.GetSession(context.Background(), "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, adkchat.ErrSessionNotFound)
		assert.Equal(t, 404, adkchat.StatusCodeOf(err))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("malformed body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":`))
		}, nil)

		_, err := c.GetSession(context.Background(), "s-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse response")
	})
}

func TestRun(t *testing.T) {
	t.Run("streams the body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/run_sse", r.URL.Path)
			assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "cofacts-ai", req["app_name"])
			assert.Equal(t, "anonymous", req["user_id"])
			assert.Equal(t, "s-1", req["session_id"])
			assert.Equal(t, true, req["streaming"])
			assert.NotContains(t, req, "invocation_id")
			msg := req["new_message"].(map[string]any)
			assert.Equal(t, "user", msg["role"])

			w.Header().Set("Content-Type", "text/event-stream")
			w.Write([]byte("data: {\"author\":\"writer\"}\n\n"))
		}, nil)

		body, err := c.Run(context.Background(), RunRequest{
			SessionID:  "s-1",
			Streaming:  true,
			NewMessage: genai.NewContentFromText("hello", genai.RoleUser),
		})
		require.NoError(t, err)
		defer body.Close()

		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "data: {\"author\":\"writer\"}\n\n", string(data))
	})

	t.Run("resume sends the invocation id", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "e-42", req["invocation_id"])
			assert.NotContains(t, req, "new_message")
		}, nil)

		body, err := c.Run(context.Background(), RunRequest{SessionID: "s-1", Streaming: true, InvocationID: "e-42"})
		require.NoError(t, err)
		body.Close()
	})

	t.Run("failure status is not retried", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}, nil)

		_, err := c.Run(context.Background(), RunRequest{SessionID: "s-1"})
		require.Error(t, err)
		assert.Equal(t, "Endpoint returned 502: Bad Gateway", err.Error())
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("canceled context", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.Run(ctx, RunRequest{SessionID: "s-1"})
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestHTTPErrorRetryAfter(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Status:     "429 Too Many Requests",
		Header:     http.Header{"Retry-After": []string{"3"}},
		Body:       http.NoBody,
	}

	err := httpError(resp)
	assert.Equal(t, 3*time.Second, err.RetryAfter())
	assert.True(t, err.Retryable())
	assert.Equal(t, http.StatusTooManyRequests, err.Code)

	resp.StatusCode, resp.Status = http.StatusBadRequest, "400 Bad Request"
	err = httpError(resp)
	assert.Zero(t, err.RetryAfter())
	assert.False(t, err.Retryable())
}
