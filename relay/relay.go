package relay

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/spetersoncode/adkchat/internal/logx"
)

// Relay is an http.Handler proxying to one ADK server.
type Relay struct {
	target  *url.URL
	proxy   *httputil.ReverseProxy
	handler http.Handler
	logger  zerolog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Relay) {
		r.logger = l
	}
}

// New creates a relay to the server at target.
func New(target string, opts ...Option) (*Relay, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("failed to parse relay target: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("relay target %q must be an absolute URL", target)
	}

	r := &Relay{
		target: u,
		logger: logx.Component("relay"),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.SetXForwarded()
		},
		FlushInterval: -1,
		ErrorHandler:  r.proxyError,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health)
	mux.Handle("/", r.proxy)
	r.handler = r.logRequests(cors(mux))
	return r, nil
}

// Target returns the backend URL.
func (r *Relay) Target() string { return r.target.String() }

// ServeHTTP implements http.Handler.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Relay) proxyError(w http.ResponseWriter, req *http.Request, err error) {
	if req.Context().Err() != nil {
		return
	}
	r.logger.Error().
		Err(err).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Msg("backend unreachable")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	w.Write([]byte(`{"error":"backend unreachable"}`))
}

// Middleware wraps every handler the relay serves. It is exported so the
// AG-UI bridge can share the relay's CORS and logging.
func (r *Relay) Middleware(next http.Handler) http.Handler {
	return r.logRequests(cors(next))
}

func (r *Relay) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		ev := r.logger.Info()
		if rec.status >= http.StatusInternalServerError {
			ev = r.logger.Warn()
		}
		ev.Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", rec.status).
			Int64("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// cors adds permissive CORS headers for browser frontends.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, Last-Event-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// health returns a simple health check response.
func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	n, err := s.ResponseWriter.Write(p)
	s.bytes += int64(n)
	return n, err
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
