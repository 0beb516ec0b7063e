package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	InventorySize int    `yaml:"inventory_size"`
	HandEnabled   bool   `yaml:"hand_enabled"`
	LootSeed      uint64 `yaml:"loot_seed"`

	Session Session `yaml:"session"`
	Journal Journal `yaml:"journal"`
	Index   Index   `yaml:"index"`
}

type Session struct {
	InboxSize     int `yaml:"inbox_size"`
	IdleTimeoutMs int `yaml:"idle_timeout_ms"`
}

type Journal struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type Index struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		InventorySize:   27,
		HandEnabled:     true,
		Session: Session{
			InboxSize:     256,
			IdleTimeoutMs: 300_000,
		},
		Journal: Journal{Enabled: true, Dir: "data/journal"},
		Index:   Index{Enabled: true, Path: "data/index/changes.sqlite"},
	}
}

// Load reads path over Defaults. Fields absent from the file keep their
// default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.InventorySize <= 0 {
		return fmt.Errorf("inventory_size must be positive, got %d", t.InventorySize)
	}
	if t.Session.InboxSize <= 0 {
		return fmt.Errorf("session.inbox_size must be positive, got %d", t.Session.InboxSize)
	}
	if t.Session.IdleTimeoutMs < 0 {
		return fmt.Errorf("session.idle_timeout_ms must not be negative")
	}
	return nil
}
