// Package config resolves the effective settings from ~/.gh-commit-ai.yml,
// GH_COMMIT_AI_* environment variables and command line flags.
package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nathanaelphilip/gh-commit-ai/internal/diff"
	"github.com/nathanaelphilip/gh-commit-ai/internal/provider"
)

const (
	// FileName is the per-user config file in the home directory.
	FileName = ".gh-commit-ai.yml"
	// EnvPrefix prefixes every environment override, e.g. GH_COMMIT_AI_PROVIDER.
	EnvPrefix = "GH_COMMIT_AI"
	// EnvConfig points at an alternative config file.
	EnvConfig = EnvPrefix + "_CONFIG"

	defaultMaxBytes      = 32000
	defaultTimeout       = 40 * time.Second
	defaultMaxRetries    = 2
	defaultRecentCommits = 5
	defaultLanguage      = "english"
)

// ProviderConfig holds per-provider overrides.
type ProviderConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty" validate:"omitempty,url"`
	Model    string `mapstructure:"model" yaml:"model,omitempty"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key,omitempty"`
}

// Config captures all user facing configuration.
type Config struct {
	Provider          string                    `mapstructure:"provider" yaml:"provider" validate:"required,provider"`
	Model             string                    `mapstructure:"model" yaml:"model,omitempty"`
	ReviewModel       string                    `mapstructure:"review_model" yaml:"review_model,omitempty"`
	Fallback          []string                  `mapstructure:"fallback" yaml:"fallback,omitempty" validate:"dive,provider"`
	MaxDiffBytes      int                       `mapstructure:"max_diff_bytes" yaml:"max_diff_bytes" validate:"gte=0"`
	Timeout           time.Duration             `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	MaxRetries        int                       `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0,lte=10"`
	RequestsPerMinute int                       `mapstructure:"requests_per_minute" yaml:"requests_per_minute" validate:"gte=0"`
	Conventional      bool                      `mapstructure:"conventional" yaml:"conventional"`
	Scope             string                    `mapstructure:"scope" yaml:"scope,omitempty"`
	Language          string                    `mapstructure:"language" yaml:"language"`
	IncludeTicket     bool                      `mapstructure:"include_ticket" yaml:"include_ticket"`
	Review            bool                      `mapstructure:"review" yaml:"review"`
	RecentCommits     int                       `mapstructure:"recent_commits" yaml:"recent_commits" validate:"gte=0,lte=50"`
	Exclude           []string                  `mapstructure:"exclude" yaml:"exclude,omitempty"`
	EnvFile           string                    `mapstructure:"env_file" yaml:"env_file,omitempty"`
	Providers         map[string]ProviderConfig `mapstructure:"providers" yaml:"providers,omitempty" validate:"dive,keys,provider,endkeys"`

	// Path is the file the config was read from; empty when none existed.
	Path string `mapstructure:"-" yaml:"-"`
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// Path is an explicit config file; a missing explicit file is an error.
	Path string
	// Flags are bound on top of file and environment values when set.
	Flags *pflag.FlagSet
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"provider":     "provider",
	"model":        "model",
	"review-model": "review_model",
	"fallback":     "fallback",
	"max-bytes":    "max_diff_bytes",
	"timeout":      "timeout",
	"retries":      "max_retries",
	"review":       "review",
	"scope":        "scope",
	"language":     "language",
}

// DefaultPath returns ~/.gh-commit-ai.yml, or GH_COMMIT_AI_CONFIG when set.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(home, FileName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", string(provider.Ollama))
	v.SetDefault("model", "")
	v.SetDefault("review_model", "")
	v.SetDefault("fallback", []string{})
	v.SetDefault("max_diff_bytes", defaultMaxBytes)
	v.SetDefault("timeout", defaultTimeout)
	v.SetDefault("max_retries", defaultMaxRetries)
	v.SetDefault("requests_per_minute", 0)
	v.SetDefault("conventional", true)
	v.SetDefault("scope", "")
	v.SetDefault("language", defaultLanguage)
	v.SetDefault("include_ticket", true)
	v.SetDefault("review", false)
	v.SetDefault("recent_commits", defaultRecentCommits)
	v.SetDefault("exclude", diff.DefaultExclude)
	v.SetDefault("env_file", "")
}

// Load resolves the configuration: flags > environment > file > defaults.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindProviderEnv(v)

	path := opts.Path
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	loadedFrom := path
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.WithHint(errors.Wrapf(err, "read config %s", path),
				"run `gh-commit-ai config init` to create a starter config")
		}
		loadedFrom = ""
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "bind flag --%s", name)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.Path = loadedFrom

	if opts.Flags != nil {
		if f := opts.Flags.Lookup("no-ticket"); f != nil && f.Changed {
			cfg.IncludeTicket = f.Value.String() != "true"
		}
		if f := opts.Flags.Lookup("no-conventional"); f != nil && f.Changed {
			cfg.Conventional = f.Value.String() != "true"
		}
	}

	cfg.normalise()
	if err := cfg.loadEnvFile(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// providerFields are the per-provider keys, as they appear in the file.
var providerFields = []string{"endpoint", "model", "api_key"}

// bindProviderEnv registers GH_COMMIT_AI_PROVIDERS_<NAME>_<FIELD> for every
// provider. AutomaticEnv only resolves keys viper already knows, so nested
// keys missing from the file would otherwise be ignored.
func bindProviderEnv(v *viper.Viper) {
	for _, name := range provider.Names() {
		for _, field := range providerFields {
			key := "providers." + string(name) + "." + field
			env := EnvPrefix + "_PROVIDERS_" + strings.ToUpper(string(name)+"_"+field)
			if name == provider.Ollama && field == "endpoint" {
				// honour the variable Ollama itself uses
				_ = v.BindEnv(key, env, "OLLAMA_HOST")
				continue
			}
			_ = v.BindEnv(key, env)
		}
	}
}

func (c *Config) normalise() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	for i, f := range c.Fallback {
		c.Fallback[i] = strings.ToLower(strings.TrimSpace(f))
	}
	c.Model = strings.TrimSpace(c.Model)
	c.ReviewModel = strings.TrimSpace(c.ReviewModel)
	c.Language = strings.TrimSpace(c.Language)
	if c.Language == "" {
		c.Language = defaultLanguage
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	normalised := make(map[string]ProviderConfig, len(c.Providers))
	for name, pc := range c.Providers {
		pc.Endpoint = normaliseEndpoint(pc.Endpoint)
		normalised[strings.ToLower(name)] = pc
	}
	c.Providers = normalised
}

func (c *Config) loadEnvFile() error {
	if c.EnvFile == "" {
		return nil
	}
	path := expandHome(c.EnvFile)
	// existing environment variables win over the file
	if err := godotenv.Load(path); err != nil {
		return errors.WithHint(errors.Wrapf(err, "load env_file %s", path),
			"remove env_file from the config or point it at an existing dotenv file")
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("provider", func(fl validator.FieldLevel) bool {
		return provider.Name(strings.ToLower(fl.Field().String())).Valid()
	})
	return v
}

// Validate checks ranges and provider names.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate config")
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "provider" {
			msgs = append(msgs, fmt.Sprintf("%s: unknown provider %q", fe.Namespace(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.WithHintf(errors.Newf("invalid config: %s", strings.Join(msgs, "; ")),
		"recognised providers: ollama, groq, anthropic, openai")
}

// APIKey returns the credential for name: environment first, then the config file.
func (c *Config) APIKey(name provider.Name) string {
	key, _ := c.lookupKey(name)
	return key
}

// KeySource names where APIKey found the credential for name: the provider's
// own environment variable, "config" (file or GH_COMMIT_AI_PROVIDERS_*), or ""
// when there is none.
func (c *Config) KeySource(name provider.Name) string {
	_, source := c.lookupKey(name)
	return source
}

func (c *Config) lookupKey(name provider.Name) (key, source string) {
	if env := provider.Defaults[name].KeyEnv; env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v, env
		}
	}
	if v := strings.TrimSpace(c.Providers[string(name)].APIKey); v != "" {
		return v, "config"
	}
	return "", ""
}

// ProviderSettings resolves endpoint, model, key and timeout for name. The
// top-level model only applies to the primary provider.
func (c *Config) ProviderSettings(name provider.Name) provider.Settings {
	pc := c.Providers[string(name)]
	s := provider.Settings{
		Endpoint: pc.Endpoint,
		Model:    strings.TrimSpace(pc.Model),
		APIKey:   c.APIKey(name),
		Timeout:  c.Timeout,
	}
	if string(name) == c.Provider && c.Model != "" {
		s.Model = c.Model
	}
	return s
}

// Chain lists the primary provider followed by the distinct fallbacks.
func (c *Config) Chain() []provider.Name {
	seen := map[string]bool{c.Provider: true}
	chain := []provider.Name{provider.Name(c.Provider)}
	for _, f := range c.Fallback {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		chain = append(chain, provider.Name(f))
	}
	return chain
}

// Redacted returns a copy with API keys masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	out.Providers = make(map[string]ProviderConfig, len(c.Providers))
	for name, pc := range c.Providers {
		if pc.APIKey != "" {
			pc.APIKey = mask(pc.APIKey)
		}
		out.Providers[name] = pc
	}
	return out
}

func mask(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "…" + key[len(key)-4:]
}

func normaliseEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "http://" + endpoint
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
