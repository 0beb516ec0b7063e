package catalogs

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

type Catalogs struct {
	Items   ItemCatalog
	Recipes RecipeCatalog
	Loot    LootCatalog
}

type ItemCatalog struct {
	Palette []string
	Defs    map[string]ItemDef
	Digest  string
}

type ItemDef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	StackSize   int    `json:"stack_size,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Use         string `json:"use,omitempty"` // "consume","none","fail"
}

type RecipeCatalog struct {
	Order  []string
	ByID   map[string]RecipeDef
	Digest string
}

type RecipeDef struct {
	RecipeID string      `json:"recipe_id"`
	Inputs   []ItemCount `json:"inputs"`
	Output   *ItemCount  `json:"output,omitempty"`
}

type ItemCount struct {
	Item  string `json:"item" yaml:"item"`
	Count int    `json:"count" yaml:"count"`
}

type LootCatalog struct {
	ByName map[string]LootTableDef
	Digest string
}

type LootTableDef struct {
	Name string    `yaml:"name"`
	Root *LootNode `yaml:"root"`
}

// LootNode is one authored loot entry. Exactly one of Constant, Randomize
// and Weighted is set.
type LootNode struct {
	Weight    *int           `yaml:"weight,omitempty"`
	Constant  *ItemCount     `yaml:"constant,omitempty"`
	Randomize *RandomizeNode `yaml:"randomize,omitempty"`
	Weighted  []*LootNode    `yaml:"weighted,omitempty"`
}

type RandomizeNode struct {
	Min   int       `yaml:"min"`
	Max   int       `yaml:"max"`
	Entry *LootNode `yaml:"entry"`
}

func (n *LootNode) kinds() int {
	k := 0
	if n.Constant != nil {
		k++
	}
	if n.Randomize != nil {
		k++
	}
	if n.Weighted != nil {
		k++
	}
	return k
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadRecipes(filepath.Join(configDir, "recipes.json"), &c.Recipes); err != nil {
		return nil, err
	}
	if err := loadLoot(filepath.Join(configDir, "loot"), &c.Loot); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return c.Compile(name)
}

// validate checks raw against the named embedded schema.
func validate(file, schema string, raw []byte) error {
	s, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("%s: schema: %w", file, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	return nil
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	if err := validate("items.json", "items.schema.json", raw); err != nil {
		return err
	}

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("items.json: duplicate id %q", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	return nil
}

func loadRecipes(path string, out *RecipeCatalog) error {
	out.ByID = map[string]RecipeDef{}
	raw, err := os.ReadFile(path)
	if err != nil {
		// A catalog without recipes is allowed.
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	out.Digest = sha256Hex(raw)
	if err := validate("recipes.json", "recipes.schema.json", raw); err != nil {
		return err
	}

	var defs []RecipeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("recipes.json: %w", err)
	}
	for _, r := range defs {
		if r.RecipeID == "" {
			return fmt.Errorf("recipes.json: empty recipe_id")
		}
		if _, dup := out.ByID[r.RecipeID]; !dup {
			out.Order = append(out.Order, r.RecipeID)
		}
		out.ByID[r.RecipeID] = r
	}
	return nil
}

func loadLoot(dir string, out *LootCatalog) error {
	out.ByName = map[string]LootTableDef{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	var concat bytes.Buffer
	for _, p := range files {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		concat.Write(b)
		concat.WriteByte('\n')

		var def LootTableDef
		if err := yaml.Unmarshal(b, &def); err != nil {
			return fmt.Errorf("loot %s: %w", filepath.Base(p), err)
		}
		if def.Name == "" {
			def.Name = strings.TrimSuffix(strings.TrimSuffix(filepath.Base(p), ".yaml"), ".yml")
		}
		if def.Root == nil {
			return fmt.Errorf("loot %s: missing root", filepath.Base(p))
		}
		if err := checkNode(def.Root); err != nil {
			return fmt.Errorf("loot %s: %w", filepath.Base(p), err)
		}
		if _, dup := out.ByName[def.Name]; dup {
			return fmt.Errorf("loot %s: duplicate table %q", filepath.Base(p), def.Name)
		}
		out.ByName[def.Name] = def
	}
	out.Digest = sha256Hex(concat.Bytes())
	return nil
}

func checkNode(n *LootNode) error {
	if n == nil {
		return fmt.Errorf("empty node")
	}
	if n.kinds() != 1 {
		return fmt.Errorf("node must set exactly one of constant, randomize, weighted")
	}
	if n.Weight != nil && *n.Weight < 0 {
		return fmt.Errorf("negative weight %d", *n.Weight)
	}
	switch {
	case n.Constant != nil:
		if n.Constant.Item == "" {
			return fmt.Errorf("constant: empty item")
		}
	case n.Randomize != nil:
		return checkNode(n.Randomize.Entry)
	default:
		for _, c := range n.Weighted {
			if err := checkNode(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Names lists the loot tables in sorted order.
func (l LootCatalog) Names() []string {
	names := make([]string, 0, len(l.ByName))
	for n := range l.ByName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
