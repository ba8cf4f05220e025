// Command adkchat talks to a Cofacts ADK fact-checking agent.
//
// It chats from the terminal, inspects stored sessions, serves a streaming
// relay with an AG-UI bridge for browser frontends, and exposes the
// conversations to MCP clients over stdio.
//
// Configuration is read from the environment and an optional .env file:
//
//	ADK_URL                  - ADK server root (default: http://localhost:8000)
//	ADK_APP_NAME             - App every session belongs to (default: cofacts-ai)
//	ADK_USER_ID              - User every session belongs to (default: anonymous)
//	RELAY_ADDR               - Listen address of serve (default: :3000)
//	ADKCHAT_ENV              - development, testing or production
//	ADKCHAT_LOG_LEVEL        - zerolog level name (default: info)
//	ADKCHAT_REQUEST_TIMEOUT  - Bound on non-streaming requests (default: 30s)
//	ADKCHAT_RETRY_ATTEMPTS   - Attempts per session request (default: 3)
//
// Usage:
//
//	adkchat chat
//	adkchat sessions
//	adkchat show <session-id> --format yaml
//	adkchat serve
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/spetersoncode/adkchat/cache"
	"github.com/spetersoncode/adkchat/client"
	"github.com/spetersoncode/adkchat/internal/config"
	"github.com/spetersoncode/adkchat/internal/logx"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	envFile  string
	logLevel string
	cfg      config.Config
)

var rootCmd = &cobra.Command{
	Use:   "adkchat",
	Short: "Chat with a Cofacts ADK fact-checking agent",
	Long: `adkchat streams fact-checking conversations from an ADK agent server.
It renders the investigation live in the terminal, lists and shows stored
sessions, and serves the conversations to browser and MCP clients.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		logx.Init(logx.Options{Environment: cfg.Environment(), Level: level})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file to load")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newClient creates a backend client from the loaded configuration.
func newClient() *client.Client {
	retry := client.DefaultRetryConfig().WithAttempts(cfg.RetryAttempts)
	return client.New(client.Config{
		BaseURL:     cfg.ADK.URL,
		AppName:     cfg.ADK.AppName,
		UserID:      cfg.ADK.UserID,
		Timeout:     cfg.RequestTimeout,
		RetryConfig: &retry,
	})
}

// newCache creates a conversation cache over a fresh backend client.
func newCache() *cache.Cache {
	return cache.New(newClient())
}
