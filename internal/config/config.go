// Package config handles configuration loading and management for qualgate.
// It supports XDG config paths, project-level overrides, .env files and
// QUALGATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ProjectConfigName is the project-level config file searched upward from
// the working directory.
const ProjectConfigName = ".qualgate.yaml"

// Config holds all configuration for qualgate.
type Config struct {
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Directory   DirectoryConfig   `mapstructure:"directory"`
	Execution   ExecutionConfig   `mapstructure:"execution"`
	State       StateConfig       `mapstructure:"state"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Recommender RecommenderConfig `mapstructure:"recommender"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`

	// Root is the project root: the directory holding the project config
	// file, or the directory the search started from.
	Root string `mapstructure:"-"`
}

// CatalogConfig selects the checklist catalog. An empty path uses the
// built-in catalog.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// DirectoryConfig points at the people directory used to pick owners.
type DirectoryConfig struct {
	Path string `mapstructure:"path"`
}

// ExecutionConfig holds checklist execution settings.
type ExecutionConfig struct {
	// CriterionTimeout bounds one automated criterion.
	CriterionTimeout time.Duration `mapstructure:"criterion_timeout"`
	// ManualTimeout is how long a review ticket stays open. Zero keeps
	// tickets open until answered.
	ManualTimeout time.Duration `mapstructure:"manual_timeout"`
	// PassThreshold is the overall score a run needs to pass.
	PassThreshold float64 `mapstructure:"pass_threshold"`
}

// StateConfig locates the state database. An empty path uses
// .qualgate/state.db under the project root.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// NotifyConfig holds escalation notification settings.
type NotifyConfig struct {
	// Dir receives one JSON file per escalation. Empty disables file drops.
	Dir string `mapstructure:"dir"`
}

// RecommenderConfig holds settings for model-backed recommendations on
// semi-automated criteria.
type RecommenderConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	APIKey     string `mapstructure:"api_key"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds debug log settings. An empty path writes to
// .qualgate/logs/debug.log under the project root.
type LoggingConfig struct {
	Path string `mapstructure:"path"`
}

// Load loads configuration starting the project config search from the
// working directory.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom loads configuration from XDG paths, project overrides, .env
// files and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (QUALGATE_*, ANTHROPIC_API_KEY)
// 2. .env in the project root
// 3. Project config (.qualgate.yaml in dir or a parent)
// 4. User config (~/.config/qualgate/config.yaml)
// 5. Built-in defaults
func LoadFrom(dir string) (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	root := dir
	if projectConfig := findProjectConfig(dir); projectConfig != "" {
		root = filepath.Dir(projectConfig)
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	// Existing environment variables win over .env entries.
	_ = godotenv.Load(filepath.Join(root, ".env"))

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	cfg.Root = root
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file. Environment
// overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	cfg.Root = filepath.Dir(path)
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("QUALGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("recommender.api_key", "QUALGATE_RECOMMENDER_API_KEY", "ANTHROPIC_API_KEY")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Recommender.APIKey = expandEnv(cfg.Recommender.APIKey)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Execution.PassThreshold < 0 || c.Execution.PassThreshold > 100 {
		errs = append(errs, fmt.Errorf("execution.pass_threshold must be within 0-100, got %v", c.Execution.PassThreshold))
	}
	if c.Execution.CriterionTimeout < 0 {
		errs = append(errs, fmt.Errorf("execution.criterion_timeout must not be negative"))
	}
	if c.Execution.ManualTimeout < 0 {
		errs = append(errs, fmt.Errorf("execution.manual_timeout must not be negative"))
	}
	if c.Recommender.UseBedrock && c.Recommender.AWSRegion == "" {
		errs = append(errs, fmt.Errorf("recommender.aws_region is required with use_bedrock"))
	}
	return errors.Join(errs...)
}

// Resolve makes a configured path absolute against the project root.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}

// StatePath returns the state database location.
func (c *Config) StatePath() string {
	if c.State.Path == "" {
		return filepath.Join(c.Root, ".qualgate", "state.db")
	}
	return c.Resolve(c.State.Path)
}

// LogPath returns the debug log location.
func (c *Config) LogPath() string {
	if c.Logging.Path == "" {
		return filepath.Join(c.Root, ".qualgate", "logs", "debug.log")
	}
	return c.Resolve(c.Logging.Path)
}

// Settings flattens the configuration into dotted keys for display. The
// API key is masked.
func (c *Config) Settings() [][2]string {
	m := map[string]string{
		"catalog.path":                c.Catalog.Path,
		"directory.path":              c.Directory.Path,
		"execution.criterion_timeout": c.Execution.CriterionTimeout.String(),
		"execution.manual_timeout":    c.Execution.ManualTimeout.String(),
		"execution.pass_threshold":    fmt.Sprintf("%g", c.Execution.PassThreshold),
		"state.path":                  c.StatePath(),
		"notify.dir":                  c.Notify.Dir,
		"recommender.enabled":         fmt.Sprintf("%t", c.Recommender.Enabled),
		"recommender.model":           c.Recommender.Model,
		"recommender.use_bedrock":     fmt.Sprintf("%t", c.Recommender.UseBedrock),
		"recommender.aws_region":      c.Recommender.AWSRegion,
		"recommender.aws_profile":     c.Recommender.AWSProfile,
		"recommender.api_key":         MaskAPIKey(c.Recommender.APIKey),
		"server.addr":                 c.Server.Addr,
		"logging.path":                c.LogPath(),
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2]string{k, m[k]})
	}
	return out
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values. Every key needs one so that
// environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.path", "")
	v.SetDefault("directory.path", "")

	v.SetDefault("execution.criterion_timeout", "5m")
	v.SetDefault("execution.manual_timeout", "0s")
	v.SetDefault("execution.pass_threshold", 80.0)

	v.SetDefault("state.path", "")
	v.SetDefault("notify.dir", filepath.Join(".qualgate", "notifications"))

	v.SetDefault("recommender.enabled", false)
	v.SetDefault("recommender.model", "")
	v.SetDefault("recommender.use_bedrock", false)
	v.SetDefault("recommender.aws_region", "")
	v.SetDefault("recommender.aws_profile", "")
	v.SetDefault("recommender.api_key", "")

	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("logging.path", "")
}

// getUserConfigDir returns the XDG config directory for qualgate.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "qualgate")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "qualgate")
	}
	return filepath.Join(home, ".config", "qualgate")
}

// findProjectConfig searches for .qualgate.yaml in dir and its parents.
func findProjectConfig(dir string) string {
	for {
		configPath := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values rooted at root.
func Default(root string) *Config {
	return &Config{
		Execution: ExecutionConfig{
			CriterionTimeout: 5 * time.Minute,
			PassThreshold:    80,
		},
		Notify: NotifyConfig{Dir: filepath.Join(".qualgate", "notifications")},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
		Root:   root,
	}
}
