package src

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"ordering_assistant/pkg"
	"ordering_assistant/src/model"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LogConfig          model.LogConfig          `envconfig:""`
	NLUConfig          model.NLUConfig          `envconfig:""`
	ConversationConfig model.ConversationConfig `envconfig:""`
	RemoteConfig       model.RemoteConfig       `envconfig:""`
	TurnLogConfig      model.TurnLogConfig      `envconfig:""`
	ServerConfig       model.ServerConfig       `envconfig:""`
}

func LoadConfig() (*Config, error) {
	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

var (
	providers       = []string{"http", "openai", "ollama", "deepseek", "ark", "none"}
	turnLogBackends = []string{"none", "memory", "redis", "sqlite", "file"}
)

// Validate checks option ranges once at startup
func (c *Config) Validate() error {
	conv := c.ConversationConfig
	if conv.MaxContextTurns < 2 {
		return pkg.NewConfigError("MAX_CONTEXT_TURNS", "must be at least 2 to hold one turn pair")
	}
	if conv.SessionIdleTimeoutMinutes <= 0 {
		return pkg.NewConfigError("SESSION_IDLE_TIMEOUT_MINUTES", "must be positive")
	}
	if conv.SweepIntervalSeconds <= 0 {
		return pkg.NewConfigError("SWEEP_INTERVAL_SECONDS", "must be positive")
	}

	remote := &c.RemoteConfig
	remote.Provider = strings.ToLower(strings.TrimSpace(remote.Provider))
	if !slices.Contains(providers, remote.Provider) {
		return pkg.NewConfigError("REMOTE_PROVIDER", "unsupported provider "+remote.Provider)
	}
	if remote.TimeoutMs <= 0 {
		return pkg.NewConfigError("REMOTE_TIMEOUT_MS", "must be positive")
	}
	if remote.Provider == "http" {
		u, err := url.Parse(remote.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &pkg.ConfigurationError{Field: "REMOTE_ENDPOINT", Reason: "must be an absolute URL", Err: err}
		}
	}

	log := &c.TurnLogConfig
	log.Backend = strings.ToLower(strings.TrimSpace(log.Backend))
	if !slices.Contains(turnLogBackends, log.Backend) {
		return pkg.NewConfigError("TURN_LOG_BACKEND", "unsupported backend "+log.Backend)
	}
	if log.Backend == "redis" && log.RedisURL == "" {
		return pkg.NewConfigError("REDIS_URL", "required when TURN_LOG_BACKEND=redis")
	}

	return nil
}
