package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_OverridesDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("inventory_size: 9\nloot_seed: 42\njournal:\n  enabled: false\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.InventorySize != 9 || tu.LootSeed != 42 || tu.Journal.Enabled {
		t.Fatalf("overrides not applied: %+v", tu)
	}
	if tu.Session.InboxSize != Defaults().Session.InboxSize {
		t.Fatalf("missing fields should keep defaults: %+v", tu.Session)
	}
}

func TestLoad_Rejects(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"bad_yaml.yaml": "inventory_size: [",
		"zero.yaml":     "inventory_size: 0\n",
		"inbox.yaml":    "session:\n  inbox_size: -1\n",
	} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(p); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("missing file: expected error")
	}
}

func TestLoad_RepoConfig(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := tu.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
