// Package config loads and validates the biji-mcp configuration file.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/localrivet/configurator"

	"github.com/localrivet/bijimcp/internal/errortypes"
)

// ErrFirstRun signals that no config file existed and a template was written.
// The user has to fill in real credentials before any search can proceed.
var ErrFirstRun = errors.New("first-run setup required")

// KnowledgeBase describes one configured Get笔记 knowledge base.
type KnowledgeBase struct {
	// Token is the API token used to authenticate against the remote service.
	Token string `json:"token"`

	// TopicID identifies the knowledge base on the remote service.
	TopicID string `json:"topic_id"`

	// Description is an optional human-readable description.
	Description string `json:"description,omitempty"`
}

// Settings contains global tuning knobs shared by all knowledge bases.
type Settings struct {
	// DefaultTopK is the number of fragments biji_recall returns when the
	// caller does not specify top_k.
	DefaultTopK int `json:"default_top_k" env:"DEFAULT_TOP_K" validate:"min:1"`

	// Timeout is the remote call deadline in seconds.
	Timeout int `json:"timeout" env:"TIMEOUT" validate:"min:1"`
}

// Config represents the biji-mcp configuration
type Config struct {
	// KnowledgeBases maps a user-chosen name to its knowledge base config.
	KnowledgeBases map[string]KnowledgeBase `json:"knowledge_bases"`

	// Default is the knowledge base used when a tool call omits "kb".
	Default string `json:"default" env:"DEFAULT" validate:"required"`

	// Settings contains global settings.
	Settings Settings `json:"settings"`

	// Internal state (not saved to config file)
	configPath string `json:"-"`
}

// Default configuration values
const (
	DefaultConfigDirname  = ".biji-mcp"
	DefaultConfigFilename = "config.json"
	DefaultTopK           = 10
	DefaultTimeoutSeconds = 30

	// TemplateKBName is the placeholder knowledge base written on first run.
	TemplateKBName = "工作"
)

// NewConfig creates a new Config instance with default values
func NewConfig() *Config {
	config := &Config{}
	config.KnowledgeBases = make(map[string]KnowledgeBase)
	config.Settings.DefaultTopK = DefaultTopK
	config.Settings.Timeout = DefaultTimeoutSeconds
	return config
}

// newTemplateConfig builds the config written to disk on first run. Token and
// topic id are left empty for the user to fill in.
func newTemplateConfig() *Config {
	cfg := NewConfig()
	cfg.KnowledgeBases[TemplateKBName] = KnowledgeBase{
		Token:       "",
		TopicID:     "",
		Description: "工作相关笔记",
	}
	cfg.Default = TemplateKBName
	return cfg
}

// DefaultConfigPath returns the user-scoped config file location,
// ~/.biji-mcp/config.json.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errortypes.ConfigError(err, "failed to determine home directory")
	}
	return filepath.Join(home, DefaultConfigDirname, DefaultConfigFilename), nil
}

// LoadConfig loads the configuration from the default path
func LoadConfig() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigWithPath(path)
}

// LoadConfigWithPath loads the configuration from a specific path.
//
// When no file exists at the path, a template config is written there and an
// error wrapping ErrFirstRun is returned: the caller must tell the user to
// edit the template and re-run.
func LoadConfigWithPath(configPath string) (*Config, error) {
	stdLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg := NewConfig()

	// Check if the file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := writeTemplate(configPath); err != nil {
			return nil, err
		}
		stdLogger.Info("Config file not found, template created", "path", configPath)
		return nil, errortypes.ConfigError(ErrFirstRun,
			fmt.Sprintf("config template created at %s; edit it to add your API token and topic id, then restart", configPath))
	}

	stdLogger.Debug("Loading configuration", "path", configPath)

	// Create configurator instance
	config := configurator.New(stdLogger).
		WithProvider(configurator.NewDefaultProvider()).
		WithProvider(configurator.NewFileProvider(configPath)).
		WithProvider(configurator.NewEnvProvider("BIJIMCP")).
		WithValidator(configurator.NewDefaultValidator())

	// Load configuration
	ctx := context.Background()
	if err := config.Load(ctx, cfg); err != nil {
		return nil, errortypes.ConfigError(err, "failed to load configuration").
			WithField("path", configPath)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.configPath = configPath
	return cfg, nil
}

// writeTemplate writes the first-run template config, creating the parent
// directory when needed.
func writeTemplate(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errortypes.ConfigError(err, "failed to create config directory").
			WithField("path", dir)
	}

	if err := configurator.SaveToFile(newTemplateConfig(), path, configurator.FormatJSON); err != nil {
		return errortypes.ConfigError(err, "failed to write config template").
			WithField("path", path)
	}
	return nil
}

// validate checks the structural invariants the rest of the service relies on.
func (c *Config) validate() error {
	if len(c.KnowledgeBases) == 0 {
		return errortypes.ConfigError(errors.New("knowledge_bases is empty"),
			"no knowledge bases configured")
	}
	if c.Default == "" {
		return errortypes.ConfigError(errors.New("default is unset"),
			"no default knowledge base configured")
	}
	if _, ok := c.KnowledgeBases[c.Default]; !ok {
		return errortypes.ConfigError(
			fmt.Errorf("default %q is not a configured knowledge base", c.Default),
			"invalid default knowledge base").
			WithField("available", strings.Join(c.Names(), ", "))
	}
	return nil
}

// Names returns the configured knowledge base names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.KnowledgeBases))
	for name := range c.KnowledgeBases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up a knowledge base by name. An empty name resolves to the
// configured default. A name that matches no key exactly is matched as a
// substring of the configured names; a unique match wins, an ambiguous one
// is rejected.
func (c *Config) Resolve(name string) (string, KnowledgeBase, error) {
	if name == "" {
		if c.Default == "" {
			return "", KnowledgeBase{}, errortypes.ConfigError(
				errors.New("default is unset"),
				"no knowledge base given and no default configured")
		}
		name = c.Default
	}

	// Exact match
	if kb, ok := c.KnowledgeBases[name]; ok {
		return name, kb, nil
	}

	// Substring match against configured names
	var matches []string
	for kbName := range c.KnowledgeBases {
		if strings.Contains(kbName, name) {
			matches = append(matches, kbName)
		}
	}
	sort.Strings(matches)

	if len(matches) == 1 {
		return matches[0], c.KnowledgeBases[matches[0]], nil
	}
	if len(matches) > 1 {
		return "", KnowledgeBase{}, errortypes.ConfigError(
			fmt.Errorf("name %q matches multiple knowledge bases: %s", name, strings.Join(matches, ", ")),
			"ambiguous knowledge base name")
	}

	return "", KnowledgeBase{}, errortypes.UnknownKBError(
		fmt.Errorf("knowledge base %q is not configured, available: %s", name, strings.Join(c.Names(), ", ")),
		"unknown knowledge base")
}

// GetConfigPath returns the path of the currently loaded configuration file
func (c *Config) GetConfigPath() string {
	return c.configPath
}
