package config

import (
	"os"
	"path/filepath"
	"testing"

	"plenum/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("m-1")
	if cfg.Meeting.ID != "m-1" {
		t.Fatalf("meeting id: %q", cfg.Meeting.ID)
	}
	if cfg.Meeting.Moderate != domain.ModerateAutomatic {
		t.Fatalf("moderate: %q", cfg.Meeting.Moderate)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	for _, typ := range []string{domain.TypeOpen, domain.TypeResolve, domain.TypeSecond, domain.TypeOrder} {
		if !cfg.TypeEnabled(typ) {
			t.Fatalf("%s should be enabled by default", typ)
		}
	}
	if !cfg.RequireSecond(domain.TypeResolve) {
		t.Fatalf("resolve requires a second by default")
	}
	if cfg.RequireSecond(domain.TypeCall) {
		t.Fatalf("call needs no second")
	}
}

func TestRequireSecondNeedsSecondEnabled(t *testing.T) {
	cfg := Default("m-1")
	cfg.Types[domain.TypeSecond] = TypeConfig{Enabled: false}
	if cfg.RequireSecond(domain.TypeResolve) {
		t.Fatalf("disabling the second type lifts the requirement")
	}
}

func TestValidateRejectsUnknownType(t *testing.T) {
	cfg := Default("m-1")
	cfg.Types["filibuster"] = TypeConfig{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown type error")
	}
}

func TestValidateRejectsBadModerate(t *testing.T) {
	cfg := Default("m-1")
	cfg.Meeting.Moderate = "sometimes"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected moderate error")
	}
}

func TestValidateRequiresChairRole(t *testing.T) {
	cfg := Default("m-1")
	delete(cfg.Roles, "chair")
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected chair role error")
	}
}

func TestFromYAMLRoundTrip(t *testing.T) {
	data := []byte(`meeting:
  id: m-2
  moderate: manual
types:
  resolve:
    enabled: true
    requiresecond: true
  second:
    enabled: true
roles:
  chair:
    capabilities: [preside, meet, grade]
`)
	cfg, err := FromYAML(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Meeting.Moderate != domain.ModerateManual {
		t.Fatalf("moderate: %q", cfg.Meeting.Moderate)
	}
	if cfg.TypeEnabled(domain.TypeSpeak) {
		t.Fatalf("unlisted types are disabled")
	}
	if !cfg.RequireSecond(domain.TypeResolve) {
		t.Fatalf("requiresecond lost in parse")
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg != nil {
		t.Fatalf("missing file should be (nil, nil): %v %+v", err, cfg)
	}

	path := filepath.Join(dir, "plenum.yml")
	if err := os.WriteFile(path, []byte(GenerateDefault("m-3")), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Meeting.ID != "m-3" {
		t.Fatalf("meeting id: %q", cfg.Meeting.ID)
	}
}
