package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
// They match the thresholds the monitor shipped with originally.
const (
	DefaultBuildPollInterval = 5 * time.Second
	DefaultJobPollInterval   = 90 * time.Minute

	DefaultMaxFailedAttempts = 3
	DefaultMaxExecutedBuilds = 6
	DefaultMaxAbortedBuilds  = 4
	DefaultMaxFailedBuilds   = 3
	DefaultMaxRunningBuilds  = 8

	DefaultMaxRunningBuildDuration = 3 * time.Hour
	DefaultMaxAbortedBuildDuration = 4 * time.Hour

	DefaultHTTPPort          = 8080
	DefaultBroadcastInterval = 5 * time.Second
)

// Config is the top-level configuration for jobwatch.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Jenkins JenkinsConfig `yaml:"jenkins"`
	Poll    PollConfig    `yaml:"poll"`
	Limits  Limits        `yaml:"limits"`
	Notify  NotifyConfig  `yaml:"notify"`
	Status  StatusConfig  `yaml:"status"`
}

// JenkinsConfig identifies the monitored job and how to authenticate to the
// Jenkins server.
type JenkinsConfig struct {
	// Domain is the Jenkins host, without scheme (e.g. "ci.example.com").
	// All requests go over HTTPS.
	Domain string `yaml:"domain"`

	// Job is the name of the Jenkins job whose build history is polled.
	Job string `yaml:"job"`

	// Username is the Jenkins account used for basic auth (safe to store
	// in config).
	Username string `yaml:"username"`

	// TokenEnv is the name of the environment variable that holds the
	// Jenkins API token.
	TokenEnv string `yaml:"token_env"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// Token returns the Jenkins API token resolved from the environment.
// Returns empty string if TokenEnv is unset or the variable is not found.
func (j JenkinsConfig) Token() string {
	if j.TokenEnv == "" {
		return ""
	}
	return os.Getenv(j.TokenEnv)
}

// JobURL returns the base URL of the monitored job's Jenkins page.
func (j JenkinsConfig) JobURL() string {
	return "https://" + j.Domain + "/job/" + j.Job
}

// TLSConfig holds TLS dial options for the Jenkins connection.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// PollConfig holds the two independent poll loop intervals.
type PollConfig struct {
	// BuildInterval controls how often the build-level checks run
	// (streak, duration, concurrent-running rules).
	BuildInterval time.Duration `yaml:"build_interval"`

	// JobInterval controls how often the job-level window checks run
	// (executed/aborted/failed counts). Zero disables the job-level loop.
	JobInterval time.Duration `yaml:"job_interval"`
}

// Limits is the flat set of alert thresholds. All are required to be
// positive; the process refuses to start with an ambiguous threshold.
type Limits struct {
	// MaxFailedAttempts is the consecutive-failure streak that triggers a
	// CONSECUTIVE_FAILURES alert.
	MaxFailedAttempts int `yaml:"max_failed_attempts"`

	// MaxExecutedBuilds is the number of builds started within the window
	// that triggers a MULTIPLE_BUILDS_EXECUTED alert.
	MaxExecutedBuilds int `yaml:"max_executed_builds"`

	// MaxAbortedBuilds is the number of aborted builds within the window
	// that triggers a MULTIPLE_ABORTED_BUILDS alert.
	MaxAbortedBuilds int `yaml:"max_aborted_builds"`

	// MaxFailedBuilds is the number of failed builds within the window
	// that triggers a MULTIPLE_BUILD_FAILURES alert.
	MaxFailedBuilds int `yaml:"max_failed_builds"`

	// MaxRunningBuilds is the number of concurrently in-progress builds
	// that triggers a MULTIPLE_BUILDS_RUNNING alert.
	MaxRunningBuilds int `yaml:"max_running_builds"`

	// MaxRunningBuildDuration is how long a build may stay in progress
	// before a BUILD_EXECUTION_TIME_EXCEEDED alert fires.
	MaxRunningBuildDuration time.Duration `yaml:"max_running_build_duration"`

	// MaxAbortedBuildDuration is the elapsed duration at abort time beyond
	// which a BUILD_TIMED_OUT alert fires.
	MaxAbortedBuildDuration time.Duration `yaml:"max_aborted_build_duration"`

	// Window is the trailing interval over which the count rules are
	// evaluated. Defaults to Poll.JobInterval when unset.
	Window time.Duration `yaml:"window"`
}

// NotifyConfig holds the webhook delivery targets.
type NotifyConfig struct {
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// StatusConfig holds the local status server settings.
type StatusConfig struct {
	// HTTPPort is the port the status API and WebSocket stream listen on.
	// Zero disables the status server.
	HTTPPort int `yaml:"http_port"`

	// BroadcastInterval controls how often the WebSocket hub pushes the
	// current status snapshot to connected clients.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.Limits.Window <= 0 {
		cfg.Limits.Window = cfg.Poll.JobInterval
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Poll: PollConfig{
			BuildInterval: DefaultBuildPollInterval,
			JobInterval:   DefaultJobPollInterval,
		},
		Limits: Limits{
			MaxFailedAttempts:       DefaultMaxFailedAttempts,
			MaxExecutedBuilds:       DefaultMaxExecutedBuilds,
			MaxAbortedBuilds:        DefaultMaxAbortedBuilds,
			MaxFailedBuilds:         DefaultMaxFailedBuilds,
			MaxRunningBuilds:        DefaultMaxRunningBuilds,
			MaxRunningBuildDuration: DefaultMaxRunningBuildDuration,
			MaxAbortedBuildDuration: DefaultMaxAbortedBuildDuration,
		},
		Status: StatusConfig{
			HTTPPort:          DefaultHTTPPort,
			BroadcastInterval: DefaultBroadcastInterval,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Jenkins.Domain == "" {
		return fmt.Errorf("jenkins.domain is required")
	}
	if cfg.Jenkins.Job == "" {
		return fmt.Errorf("jenkins.job is required")
	}
	if cfg.Poll.BuildInterval <= 0 {
		return fmt.Errorf("poll.build_interval must be positive")
	}
	if cfg.Poll.JobInterval < 0 {
		return fmt.Errorf("poll.job_interval must be zero (disabled) or positive")
	}
	if cfg.Poll.JobInterval == 0 && cfg.Limits.Window <= 0 {
		return fmt.Errorf("limits.window is required when poll.job_interval is disabled")
	}

	lim := cfg.Limits
	for _, c := range []struct {
		name string
		v    int
	}{
		{"limits.max_failed_attempts", lim.MaxFailedAttempts},
		{"limits.max_executed_builds", lim.MaxExecutedBuilds},
		{"limits.max_aborted_builds", lim.MaxAbortedBuilds},
		{"limits.max_failed_builds", lim.MaxFailedBuilds},
		{"limits.max_running_builds", lim.MaxRunningBuilds},
	} {
		if c.v <= 0 {
			return fmt.Errorf("%s must be positive", c.name)
		}
	}
	if lim.MaxRunningBuildDuration <= 0 {
		return fmt.Errorf("limits.max_running_build_duration must be positive")
	}
	if lim.MaxAbortedBuildDuration <= 0 {
		return fmt.Errorf("limits.max_aborted_build_duration must be positive")
	}

	for i, wh := range cfg.Notify.Webhooks {
		switch wh.Type {
		case "teams", "slack", "http":
		default:
			return fmt.Errorf("notify.webhooks[%d]: unknown type %q", i, wh.Type)
		}
		if wh.URLEnv == "" {
			return fmt.Errorf("notify.webhooks[%d]: url_env is required", i)
		}
	}

	if cfg.Status.HTTPPort < 0 || cfg.Status.HTTPPort > 65535 {
		return fmt.Errorf("status.http_port out of range")
	}
	if cfg.Status.HTTPPort != 0 && cfg.Status.BroadcastInterval <= 0 {
		return fmt.Errorf("status.broadcast_interval must be positive")
	}

	return nil
}
