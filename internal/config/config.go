package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigRelPath = ".testgen/config.yaml"
	defaultDBRelPath     = ".testgen/testgen.db"
)

type LLMConfig struct {
	Provider            string  `yaml:"provider"`
	APIKey              string  `yaml:"api_key"`
	BaseURL             string  `yaml:"base_url"`
	Model               string  `yaml:"model"`
	MaxTokens           int     `yaml:"max_tokens"`
	ScenarioTemperature float64 `yaml:"scenario_temperature"`
	TestTemperature     float64 `yaml:"test_temperature"`
}

type PathsConfig struct {
	APIsDir  string `yaml:"apis_dir"`
	TestsDir string `yaml:"tests_dir"`
	Include  string `yaml:"include"`
	DB       string `yaml:"db"`
}

type PipelineConfig struct {
	Fixture        string `yaml:"fixture"`
	BaseConstant   string `yaml:"base_constant"`
	Resolver       string `yaml:"resolver"`
	DefaultBaseURL string `yaml:"default_base_url"`
	CommentMarker  string `yaml:"comment_marker"`
	Policy         string `yaml:"policy"`
}

type SanitizeConfig struct {
	Fields      []string `yaml:"fields"`
	Replacement string   `yaml:"replacement"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Paths    PathsConfig    `yaml:"paths"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Sanitize SanitizeConfig `yaml:"sanitize"`
	Server   ServerConfig   `yaml:"server"`
	Watch    WatchConfig    `yaml:"watch"`
	Log      LogConfig      `yaml:"log"`
}

// DefaultPath returns ~/.testgen/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, defaultConfigRelPath), nil
}

// Load loads YAML config, then applies env overrides.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.SetDefaults()
	return cfg, nil
}

func (c *Config) SetDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 500
	}
	if c.LLM.ScenarioTemperature == 0 {
		c.LLM.ScenarioTemperature = 0.3
	}
	if c.LLM.TestTemperature == 0 {
		c.LLM.TestTemperature = 0.2
	}
	if c.Paths.APIsDir == "" {
		c.Paths.APIsDir = "apis"
	}
	if c.Paths.TestsDir == "" {
		c.Paths.TestsDir = "tests"
	}
	if c.Paths.Include == "" {
		c.Paths.Include = "*"
	}
	if c.Paths.DB == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Paths.DB = filepath.Join(home, defaultDBRelPath)
		} else {
			c.Paths.DB = "testgen.db"
		}
	}
	if c.Pipeline.Fixture == "" {
		c.Pipeline.Fixture = "access_token"
	}
	if c.Pipeline.BaseConstant == "" {
		c.Pipeline.BaseConstant = "BASE_URL"
	}
	if c.Pipeline.Resolver == "" {
		c.Pipeline.Resolver = "get_endpoint_url"
	}
	if c.Pipeline.DefaultBaseURL == "" {
		c.Pipeline.DefaultBaseURL = "http://localhost:8000"
	}
	if c.Pipeline.CommentMarker == "" {
		c.Pipeline.CommentMarker = "#"
	}
	if c.Pipeline.Policy == "" {
		c.Pipeline.Policy = "scoped"
	}
	if len(c.Sanitize.Fields) == 0 {
		c.Sanitize.Fields = []string{"password", "secret", "client_secret", "token", "access_token", "refresh_token", "api_key", "apikey", "authorization", "credential"}
	}
	if c.Sanitize.Replacement == "" {
		c.Sanitize.Replacement = "***REDACTED***"
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = "500ms"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.APIsDir) == "" {
		return errors.New("paths.apis_dir cannot be empty")
	}
	if strings.TrimSpace(c.Paths.TestsDir) == "" {
		return errors.New("paths.tests_dir cannot be empty")
	}
	switch c.Pipeline.Policy {
	case "scoped", "strict":
	default:
		return fmt.Errorf("pipeline.policy must be scoped or strict, got %q", c.Pipeline.Policy)
	}
	if !identifierOK(c.Pipeline.Fixture) {
		return fmt.Errorf("pipeline.fixture %q is not a valid identifier", c.Pipeline.Fixture)
	}
	if !identifierOK(c.Pipeline.Resolver) {
		return fmt.Errorf("pipeline.resolver %q is not a valid identifier", c.Pipeline.Resolver)
	}
	if !identifierOK(c.Pipeline.BaseConstant) {
		return fmt.Errorf("pipeline.base_constant %q is not a valid identifier", c.Pipeline.BaseConstant)
	}
	if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		return fmt.Errorf("watch.debounce: %w", err)
	}
	if err := ensureWritableDir(c.Paths.TestsDir); err != nil {
		return fmt.Errorf("paths.tests_dir not writable: %w", err)
	}
	return nil
}

// ValidateGenerate enforces generate-specific requirements.
func (c *Config) ValidateGenerate() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.New("llm.api_key cannot be empty")
	}
	return nil
}

// DebounceDelay returns watch.debounce, or 500ms when it does not parse.
func (c *Config) DebounceDelay() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

func identifierOK(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func applyEnvOverrides(c *Config) {
	setString(&c.LLM.Provider, "TESTGEN_LLM_PROVIDER")
	setString(&c.LLM.APIKey, "TESTGEN_LLM_API_KEY")
	if c.LLM.APIKey == "" {
		setString(&c.LLM.APIKey, "OPENAI_API_KEY")
	}
	setString(&c.LLM.BaseURL, "TESTGEN_LLM_BASE_URL")
	setString(&c.LLM.Model, "TESTGEN_LLM_MODEL")
	setInt(&c.LLM.MaxTokens, "TESTGEN_LLM_MAX_TOKENS")
	setFloat(&c.LLM.ScenarioTemperature, "TESTGEN_LLM_SCENARIO_TEMPERATURE")
	setFloat(&c.LLM.TestTemperature, "TESTGEN_LLM_TEST_TEMPERATURE")
	setString(&c.Paths.APIsDir, "TESTGEN_APIS_DIR")
	setString(&c.Paths.TestsDir, "TESTGEN_TESTS_DIR")
	setString(&c.Paths.Include, "TESTGEN_INCLUDE")
	setString(&c.Paths.DB, "TESTGEN_DB")
	setString(&c.Pipeline.Fixture, "TESTGEN_FIXTURE")
	setString(&c.Pipeline.DefaultBaseURL, "TESTGEN_DEFAULT_BASE_URL")
	setString(&c.Pipeline.Policy, "TESTGEN_POLICY")
	setString(&c.Server.Host, "TESTGEN_SERVER_HOST")
	setInt(&c.Server.Port, "TESTGEN_SERVER_PORT")
	setString(&c.Log.Level, "TESTGEN_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = n
		}
	}
}
