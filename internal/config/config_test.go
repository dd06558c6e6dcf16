package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/localrivet/bijimcp/internal/errortypes"
)

// writeConfigFile writes raw config JSON under a temp dir and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

const validConfigJSON = `{
  "knowledge_bases": {
    "工作": {
      "token": "token-a",
      "topic_id": "topic-a",
      "description": "工作相关笔记"
    },
    "读书笔记": {
      "token": "token-b",
      "topic_id": "topic-b"
    }
  },
  "default": "工作",
  "settings": {
    "default_top_k": 5,
    "timeout": 15
  }
}`

func TestLoadConfigWithPathFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".biji-mcp", "config.json")

	_, err := LoadConfigWithPath(path)
	if err == nil {
		t.Fatal("Expected a first-run error when no config file exists")
	}
	if !errors.Is(err, ErrFirstRun) {
		t.Errorf("Expected error to wrap ErrFirstRun, got: %v", err)
	}
	if !errortypes.IsConfigError(err) {
		t.Errorf("Expected a config error, got: %v", err)
	}

	// The template must exist and be valid JSON with the documented defaults.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Template was not written: %v", err)
	}

	var template struct {
		KnowledgeBases map[string]KnowledgeBase `json:"knowledge_bases"`
		Default        string                   `json:"default"`
		Settings       Settings                 `json:"settings"`
	}
	if err := json.Unmarshal(data, &template); err != nil {
		t.Fatalf("Template is not valid JSON: %v", err)
	}

	if len(template.KnowledgeBases) != 1 {
		t.Errorf("Expected one placeholder knowledge base, got %d", len(template.KnowledgeBases))
	}
	kb, ok := template.KnowledgeBases[TemplateKBName]
	if !ok {
		t.Fatalf("Expected placeholder knowledge base %q, got %v", TemplateKBName, template.KnowledgeBases)
	}
	if kb.Token != "" || kb.TopicID != "" {
		t.Errorf("Expected empty token and topic_id in template, got token=%q topic_id=%q", kb.Token, kb.TopicID)
	}
	if template.Default != TemplateKBName {
		t.Errorf("Expected default=%q, got %q", TemplateKBName, template.Default)
	}
	if template.Settings.DefaultTopK != DefaultTopK {
		t.Errorf("Expected default_top_k=%d, got %d", DefaultTopK, template.Settings.DefaultTopK)
	}
	if template.Settings.Timeout != DefaultTimeoutSeconds {
		t.Errorf("Expected timeout=%d, got %d", DefaultTimeoutSeconds, template.Settings.Timeout)
	}
}

func TestLoadConfigWithPathValid(t *testing.T) {
	path := writeConfigFile(t, validConfigJSON)

	cfg, err := LoadConfigWithPath(path)
	if err != nil {
		t.Fatalf("Failed to load valid config: %v", err)
	}

	if len(cfg.KnowledgeBases) != 2 {
		t.Errorf("Expected 2 knowledge bases, got %d", len(cfg.KnowledgeBases))
	}
	if cfg.Default != "工作" {
		t.Errorf("Expected default=工作, got %q", cfg.Default)
	}
	if cfg.Settings.DefaultTopK != 5 {
		t.Errorf("Expected default_top_k=5, got %d", cfg.Settings.DefaultTopK)
	}
	if cfg.Settings.Timeout != 15 {
		t.Errorf("Expected timeout=15, got %d", cfg.Settings.Timeout)
	}
	if cfg.GetConfigPath() != path {
		t.Errorf("Expected config path %q, got %q", path, cfg.GetConfigPath())
	}

	kb := cfg.KnowledgeBases["工作"]
	if kb.Token != "token-a" || kb.TopicID != "topic-a" {
		t.Errorf("Unexpected knowledge base contents: %+v", kb)
	}
}

func TestLoadConfigWithPathInvalidJSON(t *testing.T) {
	path := writeConfigFile(t, "{not json")

	_, err := LoadConfigWithPath(path)
	if err == nil {
		t.Fatal("Expected an error for invalid JSON")
	}
	if !errortypes.IsConfigError(err) {
		t.Errorf("Expected a config error, got: %v", err)
	}
}

func TestLoadConfigWithPathBadDefault(t *testing.T) {
	path := writeConfigFile(t, `{
  "knowledge_bases": {
    "工作": {"token": "t", "topic_id": "id"}
  },
  "default": "missing",
  "settings": {"default_top_k": 10, "timeout": 30}
}`)

	_, err := LoadConfigWithPath(path)
	if err == nil {
		t.Fatal("Expected an error when default references a missing knowledge base")
	}
	if !errortypes.IsConfigError(err) {
		t.Errorf("Expected a config error, got: %v", err)
	}
}

func newTestConfig() *Config {
	cfg := NewConfig()
	cfg.KnowledgeBases["工作"] = KnowledgeBase{Token: "token-a", TopicID: "topic-a"}
	cfg.KnowledgeBases["读书笔记"] = KnowledgeBase{Token: "token-b", TopicID: "topic-b"}
	cfg.Default = "工作"
	return cfg
}

func TestResolveDefault(t *testing.T) {
	cfg := newTestConfig()

	name, kb, err := cfg.Resolve("")
	if err != nil {
		t.Fatalf("Failed to resolve default: %v", err)
	}
	if name != "工作" {
		t.Errorf("Expected default name 工作, got %q", name)
	}
	if kb.Token != "token-a" {
		t.Errorf("Expected token-a, got %q", kb.Token)
	}
}

func TestResolveExact(t *testing.T) {
	cfg := newTestConfig()

	name, kb, err := cfg.Resolve("读书笔记")
	if err != nil {
		t.Fatalf("Failed to resolve exact name: %v", err)
	}
	if name != "读书笔记" || kb.Token != "token-b" {
		t.Errorf("Unexpected resolution: name=%q token=%q", name, kb.Token)
	}
}

func TestResolveSubstring(t *testing.T) {
	cfg := newTestConfig()

	name, _, err := cfg.Resolve("读书")
	if err != nil {
		t.Fatalf("Failed to resolve by substring: %v", err)
	}
	if name != "读书笔记" {
		t.Errorf("Expected 读书笔记, got %q", name)
	}
}

func TestResolveAmbiguous(t *testing.T) {
	cfg := newTestConfig()
	cfg.KnowledgeBases["工作日志"] = KnowledgeBase{Token: "token-c", TopicID: "topic-c"}

	_, _, err := cfg.Resolve("工")
	if err == nil {
		t.Fatal("Expected an error for an ambiguous name")
	}
	if !errortypes.IsConfigError(err) {
		t.Errorf("Expected a config error for ambiguity, got: %v", err)
	}
}

func TestResolveUnknown(t *testing.T) {
	cfg := newTestConfig()

	_, _, err := cfg.Resolve("unknown")
	if err == nil {
		t.Fatal("Expected an error for an unknown name")
	}
	if !errortypes.IsUnknownKBError(err) {
		t.Errorf("Expected an unknown knowledge base error, got: %v", err)
	}
}

func TestResolveNoDefault(t *testing.T) {
	cfg := NewConfig()
	cfg.KnowledgeBases["工作"] = KnowledgeBase{Token: "t", TopicID: "id"}

	_, _, err := cfg.Resolve("")
	if err == nil {
		t.Fatal("Expected an error when no default is configured")
	}
	if !errortypes.IsConfigError(err) {
		t.Errorf("Expected a config error, got: %v", err)
	}
}

func TestNames(t *testing.T) {
	cfg := newTestConfig()

	got := cfg.Names()
	want := []string{"工作", "读书笔记"}
	// Sorted by byte order of the UTF-8 encoded names.
	if len(got) != len(want) {
		t.Fatalf("Expected %d names, got %d", len(want), len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Errorf("Names not sorted: %v", got)
		}
	}
	gotSet := map[string]bool{}
	for _, n := range got {
		gotSet[n] = true
	}
	for _, n := range want {
		if !gotSet[n] {
			t.Errorf("Missing name %q in %v", n, got)
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty kbs", func(c *Config) { c.KnowledgeBases = map[string]KnowledgeBase{} }, true},
		{"unset default", func(c *Config) { c.Default = "" }, true},
		{"dangling default", func(c *Config) { c.Default = "missing" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newTestConfig()
			tc.mutate(cfg)

			err := cfg.validate()
			if tc.wantErr && err == nil {
				t.Error("Expected a validation failure, got none")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if !reflect.DeepEqual(cfg.Settings, Settings{DefaultTopK: DefaultTopK, Timeout: DefaultTimeoutSeconds}) {
		t.Errorf("Unexpected default settings: %+v", cfg.Settings)
	}
	if cfg.KnowledgeBases == nil {
		t.Error("Expected an initialized knowledge base map")
	}
}
