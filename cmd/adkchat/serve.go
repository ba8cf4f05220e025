package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spetersoncode/adkchat/agui"
	"github.com/spetersoncode/adkchat/cache"
	"github.com/spetersoncode/adkchat/internal/logx"
	"github.com/spetersoncode/adkchat/relay"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the streaming relay and the AG-UI bridge",
	Long: `Serve proxies every request to the ADK server without buffering event
streams, and serves the conversation API under /api:

  GET  /health
  GET  /api/conversations
  POST /api/conversations
  GET  /api/conversations/{id}
  GET  /api/conversations/{id}/events
  POST /api/conversations/{id}/messages
  POST /api/conversations/{id}/resume
  POST /api/conversations/{id}/stop
  POST /api/agent`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.RelayAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		c := newCache()
		defer c.Close()

		handler, err := newServeHandler(cfg.ADK.URL, c)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, addr, handler)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: RELAY_ADDR)")
}

// newServeHandler routes /api to the AG-UI bridge and everything else to
// the relay. Both share the relay's CORS and request logging.
func newServeHandler(target string, c *cache.Cache) (http.Handler, error) {
	r, err := relay.New(target)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", r.Middleware(agui.NewHandler(c)))
	mux.Handle("/", r)
	return mux, nil
}

func serve(ctx context.Context, addr string, handler http.Handler) error {
	logger := logx.Component("serve")

	server := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
		// Event streams need no write timeout.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Str("backend", cfg.ADK.URL).Msg("server starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
