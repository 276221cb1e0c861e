package config

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/thomas-vilte/backlog-responder/internal/errors"
)

type (
	// Config is the process-wide, read-only configuration. It is loaded once
	// at startup and never mutated afterwards.
	Config struct {
		GCP     GCPConfig
		Prompt  PromptConfig
		Backlog BacklogConfig
		Auth    AuthConfig
		Server  ServerConfig
		Log     LogConfig
	}

	GCPConfig struct {
		ProjectID    string `env:"GCP_PROJECT_ID,required,notEmpty"`
		GeminiRegion string `env:"GEMINI_REGION,required,notEmpty"`
		GeminiModel  string `env:"GEMINI_MODEL_NAME,required,notEmpty"`
	}

	PromptConfig struct {
		BucketName string        `env:"PROMPT_GCS_BUCKET_NAME,required,notEmpty"`
		FilePath   string        `env:"SYSTEM_PROMPT_GCS_FILE_PATH,required,notEmpty"`
		Language   string        `env:"PROMPT_LANGUAGE" envDefault:"ja"`
		CacheTTL   time.Duration `env:"PROMPT_CACHE_TTL" envDefault:"0s"`
		LocalesDir string        `env:"PROMPT_LOCALES_DIR"`
	}

	BacklogConfig struct {
		SpaceURL string `env:"BACKLOG_SPACE_URL,required,notEmpty"`
		APIKey   string `env:"BACKLOG_API_KEY,required,notEmpty"`
	}

	AuthConfig struct {
		Username string `env:"BASIC_AUTH_USERNAME,required,notEmpty"`
		Password string `env:"BASIC_AUTH_PASSWORD,required,notEmpty"`
	}

	ServerConfig struct {
		Port string `env:"PORT" envDefault:"8080"`
	}

	LogConfig struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
	}
)

// RequiredVars lists the environment variables without a default.
var RequiredVars = []string{
	"GCP_PROJECT_ID",
	"GEMINI_REGION",
	"GEMINI_MODEL_NAME",
	"PROMPT_GCS_BUCKET_NAME",
	"SYSTEM_PROMPT_GCS_FILE_PATH",
	"BACKLOG_SPACE_URL",
	"BACKLOG_API_KEY",
	"BASIC_AUTH_USERNAME",
	"BASIC_AUTH_PASSWORD",
}

var supportedLanguages = map[string]bool{"ja": true, "en": true, "es": true}

// LoadConfig reads configuration from the process environment. When envFile
// is non-empty its variables are applied first; variables already present in
// the environment take precedence.
func LoadConfig(envFile string) (*Config, error) {
	if err := LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	return Parse(env.Options{})
}

// LoadEnvFile applies envFile to the process environment without
// overriding variables that are already set. An empty name is a no-op.
func LoadEnvFile(envFile string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return errors.ErrConfigInvalid.
			WithError(fmt.Errorf("error loading env file %s: %w", envFile, err)).
			WithContext("env_file", envFile)
	}
	return nil
}

// Parse builds a Config with the given env options. Tests pass
// Options.Environment to avoid touching the process environment.
func Parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, wrapParseError(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FromMap parses configuration from an explicit variable map instead of the
// process environment.
func FromMap(vars map[string]string) (*Config, error) {
	return Parse(env.Options{Environment: vars})
}

func wrapParseError(err error) error {
	var missing []string
	var aggErr env.AggregateError
	if stderrors.As(err, &aggErr) {
		for _, e := range aggErr.Errors {
			var notSet env.VarIsNotSetError
			var empty env.EmptyVarError
			switch {
			case stderrors.As(e, &notSet):
				missing = append(missing, notSet.Key)
			case stderrors.As(e, &empty):
				missing = append(missing, empty.Key)
			}
		}
	}

	if len(missing) > 0 {
		return errors.ErrConfigMissing.
			WithError(fmt.Errorf("missing: %s", strings.Join(missing, ", "))).
			WithContext("missing", missing)
	}
	return errors.ErrConfigInvalid.WithError(err)
}

// Validate checks values that the env tags cannot express.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backlog.SpaceURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return errors.ErrConfigInvalid.
			WithError(fmt.Errorf("BACKLOG_SPACE_URL must be an absolute http(s) URL, got %q", c.Backlog.SpaceURL))
	}

	if !supportedLanguages[c.Prompt.Language] {
		return errors.ErrConfigInvalid.
			WithError(fmt.Errorf("PROMPT_LANGUAGE %q is not supported", c.Prompt.Language)).
			WithSuggestion("Use one of: ja, en, es")
	}

	if c.Prompt.CacheTTL < 0 {
		return errors.ErrConfigInvalid.
			WithError(fmt.Errorf("PROMPT_CACHE_TTL must not be negative, got %s", c.Prompt.CacheTTL))
	}

	return nil
}

// BacklogBaseURL returns the space URL without a trailing slash.
func (c *Config) BacklogBaseURL() string {
	return strings.TrimRight(c.Backlog.SpaceURL, "/")
}

// Addr is the listen address for serve mode.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

// MissingVars reports which required variables are unset or blank in the
// process environment.
func MissingVars() []string {
	var missing []string
	for _, name := range RequiredVars {
		if strings.TrimSpace(os.Getenv(name)) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
