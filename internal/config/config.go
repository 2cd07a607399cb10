package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"plenum/internal/domain"
)

// Config models plenum.yml.
type Config struct {
	Meeting struct {
		ID       string `yaml:"id"`
		Moderate string `yaml:"moderate"`
	} `yaml:"meeting"`
	Types    map[string]TypeConfig `yaml:"types"`
	Roles    map[string]RoleConfig `yaml:"roles"`
	Webhooks []WebhookConfig       `yaml:"webhooks,omitempty"`
}

// TypeConfig is the administrative switch for one motion type.
type TypeConfig struct {
	Enabled       bool `yaml:"enabled"`
	RequireSecond bool `yaml:"requiresecond"`
}

// RoleConfig maps a meeting role to the capabilities it grants.
type RoleConfig struct {
	Description  string   `yaml:"description,omitempty"`
	Capabilities []string `yaml:"capabilities"`
}

// WebhookConfig describes an outbound event delivery target.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
}

var knownTypes = map[string]bool{
	domain.TypeOpen:    true,
	domain.TypeResolve: true,
	domain.TypeAmend:   true,
	domain.TypeCall:    true,
	domain.TypeDivide:  true,
	domain.TypeSecond:  true,
	domain.TypeSpeak:   true,
	domain.TypeAdjourn: true,
	domain.TypeNay:     true,
	domain.TypeYea:     true,
	domain.TypeOrder:   true,
}

// TypeEnabled reports whether offering the named motion type is allowed.
func (c *Config) TypeEnabled(name string) bool {
	tc, ok := c.Types[name]
	return ok && tc.Enabled
}

// RequireSecond reports whether the named motion type must be seconded
// before it can proceed.
func (c *Config) RequireSecond(name string) bool {
	tc, ok := c.Types[name]
	if !ok {
		return false
	}
	return tc.Enabled && tc.RequireSecond && c.TypeEnabled(domain.TypeSecond)
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with pl config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Meeting.Moderate {
	case "", domain.ModerateAutomatic, domain.ModerateManual:
	default:
		return fmt.Errorf("config.meeting.moderate must be %q or %q", domain.ModerateAutomatic, domain.ModerateManual)
	}
	if len(c.Types) == 0 {
		return fmt.Errorf("config.types is required")
	}
	for name := range c.Types {
		if !knownTypes[name] {
			return fmt.Errorf("config.types contains unknown motion type %s", name)
		}
	}
	if len(c.Roles) > 0 {
		if _, ok := c.Roles["chair"]; !ok {
			return fmt.Errorf("config.roles must include chair")
		}
		for roleID, role := range c.Roles {
			if roleID == "" {
				return fmt.Errorf("config.roles contains empty role id")
			}
			for _, cap := range role.Capabilities {
				if cap == "" {
					return fmt.Errorf("role %s has empty capability", roleID)
				}
			}
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "plenum.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(meetingID string) string {
	return fmt.Sprintf(defaultTemplate, meetingID)
}

// Default returns the default Config struct for a meeting.
func Default(meetingID string) *Config {
	var cfg Config
	cfg.Meeting.ID = meetingID
	cfg.Meeting.Moderate = domain.ModerateAutomatic
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, meetingID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `meeting:
  id: %s
  moderate: automatic

types:
  open:
    enabled: true
  resolve:
    enabled: true
    requiresecond: true
  amend:
    enabled: true
    requiresecond: true
  call:
    enabled: true
  divide:
    enabled: true
  second:
    enabled: true
  speak:
    enabled: true
  adjourn:
    enabled: true
  nay:
    enabled: true
  yea:
    enabled: true
  order:
    enabled: true

roles:
  chair:
    description: "Presiding officer"
    capabilities: [preside, meet, grade]
  member:
    description: "Meeting participant"
    capabilities: [meet]
`
