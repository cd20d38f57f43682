package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "opsconsole.yml"

// Config models opsconsole.yml.
type Config struct {
	Limits    Limits    `yaml:"limits" json:"limits"`
	Notes     Notes     `yaml:"notes" json:"notes"`
	Decisions Decisions `yaml:"decisions" json:"decisions"`
	Store     Store     `yaml:"store" json:"store"`
	Telemetry Telemetry `yaml:"telemetry" json:"telemetry"`
}

type Limits struct {
	Title           int `yaml:"title" json:"title"`
	Description     int `yaml:"description" json:"description"`
	ResolutionNote  int `yaml:"resolution_note" json:"resolution_note"`
	DecisionOptions int `yaml:"decision_options" json:"decision_options"`
	Tags            int `yaml:"tags" json:"tags"`
	BoardColumns    int `yaml:"board_columns" json:"board_columns"`
	ColumnName      int `yaml:"column_name" json:"column_name"`
}

type Notes struct {
	BlockedLabel  string `yaml:"blocked_label" json:"blocked_label"`
	RejectedLabel string `yaml:"rejected_label" json:"rejected_label"`
}

type Decisions struct {
	AutoTitlePrefix string `yaml:"auto_title_prefix" json:"auto_title_prefix"`
}

type Store struct {
	BusyTimeoutMS       int      `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
	BusyRetryMaxElapsed Duration `yaml:"busy_retry_max_elapsed" json:"busy_retry_max_elapsed"`
}

type Telemetry struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	Stdout       bool   `yaml:"stdout" json:"stdout"`
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint,omitempty"`
	ServiceName  string `yaml:"service_name" json:"service_name"`
}

// Duration is a time.Duration that reads and writes as "5s" in YAML.
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with oc config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns Default() if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	positive := map[string]int{
		"limits.title":            c.Limits.Title,
		"limits.description":      c.Limits.Description,
		"limits.resolution_note":  c.Limits.ResolutionNote,
		"limits.decision_options": c.Limits.DecisionOptions,
		"limits.tags":             c.Limits.Tags,
		"limits.board_columns":    c.Limits.BoardColumns,
		"limits.column_name":      c.Limits.ColumnName,
	}
	for _, key := range []string{"limits.title", "limits.description", "limits.resolution_note", "limits.decision_options", "limits.tags", "limits.board_columns", "limits.column_name"} {
		if positive[key] <= 0 {
			return fmt.Errorf("config.%s must be positive", key)
		}
	}
	if strings.TrimSpace(c.Notes.BlockedLabel) == "" {
		return fmt.Errorf("config.notes.blocked_label is required")
	}
	if strings.TrimSpace(c.Notes.RejectedLabel) == "" {
		return fmt.Errorf("config.notes.rejected_label is required")
	}
	for _, label := range []string{c.Notes.BlockedLabel, c.Notes.RejectedLabel} {
		if strings.ContainsAny(label, "[]\n") {
			return fmt.Errorf("note label %q must not contain brackets or newlines", label)
		}
	}
	if c.Store.BusyTimeoutMS < 0 {
		return fmt.Errorf("config.store.busy_timeout_ms must not be negative")
	}
	if c.Store.BusyRetryMaxElapsed < 0 {
		return fmt.Errorf("config.store.busy_retry_max_elapsed must not be negative")
	}
	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return fmt.Errorf("config.telemetry.service_name is required when telemetry is enabled")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing from
// data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// WriteDefault creates opsconsole.yml in workspace unless it already exists.
func WriteDefault(workspace string, force bool) (string, error) {
	path := Path(workspace)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("config %s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return path, err
	}
	return path, os.WriteFile(path, []byte(defaultTemplate), 0o644)
}

const defaultTemplate = `limits:
  title: 200
  description: 2000
  resolution_note: 1000
  decision_options: 10
  tags: 20
  board_columns: 20
  column_name: 50

notes:
  blocked_label: BLOCKED
  rejected_label: REJECTED

decisions:
  auto_title_prefix: "Decision needed: "

store:
  busy_timeout_ms: 5000
  busy_retry_max_elapsed: 5s

telemetry:
  enabled: false
  stdout: false
  otlp_endpoint: ""
  service_name: opsconsole
`
