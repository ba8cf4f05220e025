package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spetersoncode/adkchat/cache"
	"github.com/spetersoncode/adkchat/client"
)

// fakeADK serves the subset of the ADK API the commands use.
func fakeADK() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /list-apps", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["cofacts-ai"]`))
	})
	mux.HandleFunc("POST /apps/{app}/users/{user}/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"` + r.PathValue("id") + `"}`))
	})
	mux.HandleFunc("GET /apps/{app}/users/{user}/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"c1","lastUpdateTime":1718000000,"events":[{"author":"user","content":{"role":"user","parts":[{"text":"Is hot water a cure?"}]}}]}]`))
	})
	mux.HandleFunc("GET /apps/{app}/users/{user}/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"` + r.PathValue("id") + `","events":[{"author":"user","content":{"role":"user","parts":[{"text":"earlier question"}]}}]}`))
	})
	mux.HandleFunc("POST /run_sse", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"author\":\"investigator\",\"content\":{\"role\":\"model\",\"parts\":[{\"functionCall\":{\"name\":\"search\",\"args\":{\"q\":\"hot water\"}}}]}}\n\n"))
		w.Write([]byte("data: {\"author\":\"writer\",\"partial\":false,\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"It is not.\"}]}}\n\n"))
	})
	return mux
}

func newTestCache(t *testing.T, backendURL string) *cache.Cache {
	t.Helper()
	disabled := client.DisabledRetryConfig()
	c := cache.New(client.New(client.Config{BaseURL: backendURL, RetryConfig: &disabled}), cache.WithLogger(zerolog.Nop()))
	t.Cleanup(c.Close)
	return c
}

func TestChat(t *testing.T) {
	backend := httptest.NewServer(fakeADK())
	defer backend.Close()

	t.Run("new session", func(t *testing.T) {
		c := newTestCache(t, backend.URL)
		var out bytes.Buffer

		err := chat(context.Background(), c, "", strings.NewReader("Is hot water a cure?\n/quit\n"), &out)
		require.NoError(t, err)

		got := out.String()
		assert.Contains(t, got, "session ")
		assert.Contains(t, got, "investigator\n-> search {\"q\":\"hot water\"}")
		assert.Contains(t, got, "writer\nIt is not.")
		assert.NotContains(t, got, "Is hot water a cure?")
	})

	t.Run("existing session shows history", func(t *testing.T) {
		c := newTestCache(t, backend.URL)
		var out bytes.Buffer

		err := chat(context.Background(), c, "c1", strings.NewReader("\nfollow up\n"), &out)
		require.NoError(t, err)

		got := out.String()
		assert.Contains(t, got, "you\nearlier question")
		assert.NotContains(t, got, "follow up")
		assert.Contains(t, got, "It is not.")
		assert.Len(t, c.Get("c1").Messages, 4)
	})
}

func TestServeHandler(t *testing.T) {
	backend := httptest.NewServer(fakeADK())
	defer backend.Close()

	handler, err := newServeHandler(backend.URL, newTestCache(t, backend.URL))
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	status, body := get("/health")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	status, body = get("/list-apps")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `["cofacts-ai"]`, body)

	status, body = get("/api/conversations")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"title":"Is hot water a cure?"`)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/conversations", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, "127.0.0.1:0", http.NotFoundHandler())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
