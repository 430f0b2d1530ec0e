package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oarkflow/bcl"
	"github.com/oarkflow/convert"
	"github.com/oarkflow/errors"
	"github.com/oarkflow/json"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/calc"
)

// Config is the runtime configuration shared by the CLI, the REPL and the
// evaluation server.
type Config struct {
	Prompt      string         `json:"prompt" yaml:"prompt"`
	HistoryFile string         `json:"history_file" yaml:"history_file"`
	LogLevel    string         `json:"log_level" yaml:"log_level"`
	Transcript  string         `json:"transcript" yaml:"transcript"`
	Constants   map[string]any `json:"constants" yaml:"constants"`
	Storage     StorageConfig  `json:"storage" yaml:"storage"`
	Server      ServerConfig   `json:"server" yaml:"server"`
}

type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

type ServerConfig struct {
	Address        string `json:"address" yaml:"address"`
	CacheSize      int    `json:"cache_size" yaml:"cache_size"`
	SessionTTLSecs int    `json:"session_ttl_secs" yaml:"session_ttl_secs"`
}

func (s ServerConfig) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLSecs) * time.Second
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Prompt:      ">>> ",
		HistoryFile: ".calc_history",
		LogLevel:    "info",
		Constants:   map[string]any{},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "data/calc.db",
		},
		Server: ServerConfig{
			Address:        ":8080",
			CacheSize:      1024,
			SessionTTLSecs: 1800,
		},
	}
}

// Load reads a config file based on its extension. Missing fields keep
// their defaults.
func Load(path string) (*Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return load(path, yaml.Unmarshal)
	case ".json":
		return load(path, func(data []byte, v any) error {
			return json.Unmarshal(data, v)
		})
	case ".bcl":
		return load(path, func(data []byte, v any) error {
			_, err := bcl.Unmarshal(data, v)
			return err
		})
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
}

// LoadFromString decodes raw config text, useful for tests.
func LoadFromString(content, format string) (*Config, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return decode([]byte(content), yaml.Unmarshal)
	case "json":
		return decode([]byte(content), func(data []byte, v any) error {
			return json.Unmarshal(data, v)
		})
	case "bcl":
		return decode([]byte(content), func(data []byte, v any) error {
			_, err := bcl.Unmarshal(data, v)
			return err
		})
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func load(path string, fn func([]byte, any) error) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decode(raw, fn)
}

func decode(data []byte, fn func([]byte, any) error) (*Config, error) {
	cfg := Default()
	if err := fn(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Constants == nil {
		cfg.Constants = map[string]any{}
	}
	return cfg, cfg.Validate()
}

// Validate checks the invariants the rest of the program relies on.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	switch cfg.Storage.Driver {
	case "", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
	if cfg.Storage.Driver != "" && cfg.Storage.DSN == "" {
		return fmt.Errorf("storage driver %s requires a dsn", cfg.Storage.Driver)
	}
	if cfg.Server.CacheSize < 0 {
		return errors.New("server cache_size must not be negative")
	}
	if cfg.Server.SessionTTLSecs < 0 {
		return errors.New("server session_ttl_secs must not be negative")
	}
	for name, raw := range cfg.Constants {
		if !isIdentifier(name) {
			return fmt.Errorf("constant %q is not a valid identifier", name)
		}
		if _, err := constantValue(raw); err != nil {
			return fmt.Errorf("constant %s: %w", name, err)
		}
	}
	return nil
}

// NewEnvironment returns a global environment seeded with the configured
// constants.
func (cfg *Config) NewEnvironment() *calc.Environment {
	env := calc.NewGlobalEnvironment()
	for name, raw := range cfg.Constants {
		if val, err := constantValue(raw); err == nil {
			env.Set(name, val)
		}
	}
	return env
}

func constantValue(raw any) (calc.Value, error) {
	switch v := raw.(type) {
	case string:
		return &calc.String{Value: v}, nil
	case bool, nil:
		return nil, fmt.Errorf("unsupported constant type %T", raw)
	}
	if n, ok := convert.ToFloat64(raw); ok {
		return &calc.Number{Value: n}, nil
	}
	return nil, fmt.Errorf("unsupported constant type %T", raw)
}

func isIdentifier(name string) bool {
	if name == "" || name == "let" || name == "fun" {
		return false
	}
	tokens, err := calc.Tokenize(name)
	return err == nil && len(tokens) == 2 && tokens[0].Kind == calc.IDENT && tokens[0].Literal == name
}
