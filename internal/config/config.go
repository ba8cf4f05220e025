// Package config loads adkchat settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Environment represents the deployment environment of the process.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// IsProduction reports whether the environment corresponds to production.
func (e Environment) IsProduction() bool {
	return e == Production
}

// ParseEnvironment normalises v into one of the known environments.
// Unknown values fall back to Development.
func ParseEnvironment(v string) Environment {
	switch Environment(v) {
	case Production:
		return Production
	case Testing:
		return Testing
	default:
		return Development
	}
}

// ADK locates the agent backend and the app and user every session is scoped to.
type ADK struct {
	URL     string `envconfig:"ADK_URL" default:"http://localhost:8000"`
	AppName string `envconfig:"ADK_APP_NAME" default:"cofacts-ai"`
	UserID  string `envconfig:"ADK_USER_ID" default:"anonymous"`
}

// Config is the complete process configuration.
type Config struct {
	ADK ADK

	Env      string `envconfig:"ADKCHAT_ENV" default:"development"`
	LogLevel string `envconfig:"ADKCHAT_LOG_LEVEL" default:"info"`

	// RelayAddr is the listen address of `adkchat serve`.
	RelayAddr string `envconfig:"RELAY_ADDR" default:":3000"`

	// RequestTimeout bounds non-streaming backend requests.
	RequestTimeout time.Duration `envconfig:"ADKCHAT_REQUEST_TIMEOUT" default:"30s"`
	RetryAttempts  int           `envconfig:"ADKCHAT_RETRY_ATTEMPTS" default:"3"`
}

// Environment returns the parsed deployment environment.
func (c Config) Environment() Environment {
	return ParseEnvironment(c.Env)
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process environment config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the backend URL is absolute and names are set.
func (c Config) Validate() error {
	u, err := url.Parse(c.ADK.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid ADK_URL %q: must be an absolute http(s) URL", c.ADK.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid ADK_URL %q: unsupported scheme %q", c.ADK.URL, u.Scheme)
	}
	if c.ADK.AppName == "" {
		return fmt.Errorf("ADK_APP_NAME must not be empty")
	}
	if c.ADK.UserID == "" {
		return fmt.Errorf("ADK_USER_ID must not be empty")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("ADKCHAT_RETRY_ATTEMPTS must be at least 1, got %d", c.RetryAttempts)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("ADKCHAT_REQUEST_TIMEOUT must not be negative")
	}
	return nil
}
