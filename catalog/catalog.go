// Package catalog holds furniture prototypes as plain data. The world package
// clones instances from these definitions; behaviour ids are resolved there.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

//go:embed schema.json
var schemaJSON string

// ErrDuplicate is returned when two definitions share a type name.
var ErrDuplicate = errors.New("catalog: duplicate furniture type")

// Requirement is one material line of a build recipe.
type Requirement struct {
	Type   string `yaml:"type" json:"type"`
	Amount int    `yaml:"amount" json:"amount"`
}

// BuildDef is the job prototype used when the furniture is built by a character.
type BuildDef struct {
	WorkTime float64       `yaml:"work_time" json:"work_time"`
	Requires []Requirement `yaml:"requires" json:"requires,omitempty"`
}

// FurnitureDef describes one furniture prototype.
type FurnitureDef struct {
	Type             string             `yaml:"type" json:"type"`
	MovementCost     float64            `yaml:"movement_cost" json:"movement_cost"`
	Width            int                `yaml:"width" json:"width"`
	Height           int                `yaml:"height" json:"height"`
	LinksToNeighbour bool               `yaml:"links_to_neighbour" json:"links_to_neighbour"`
	Behavior         string             `yaml:"behavior" json:"behavior,omitempty"`
	Params           map[string]float64 `yaml:"params" json:"params,omitempty"`
	Build            *BuildDef          `yaml:"build" json:"build,omitempty"`
}

// clone returns a copy that shares no maps or slices with d.
func (d FurnitureDef) clone() FurnitureDef {
	out := d
	if d.Params != nil {
		out.Params = make(map[string]float64, len(d.Params))
		for k, v := range d.Params {
			out.Params[k] = v
		}
	}
	if d.Build != nil {
		b := *d.Build
		b.Requires = append([]Requirement(nil), d.Build.Requires...)
		out.Build = &b
	}
	return out
}

type document struct {
	Furniture []FurnitureDef `yaml:"furniture"`
}

// Catalog is an immutable set of furniture prototypes.
type Catalog struct {
	defs  map[string]FurnitureDef
	names []string
}

var compiledSchema = jsonschema.MustCompileString("catalog.schema.json", schemaJSON)

// New builds a catalog from definitions. Width and height default to 1.
func New(defs ...FurnitureDef) (*Catalog, error) {
	c := &Catalog{defs: make(map[string]FurnitureDef, len(defs))}
	for _, d := range defs {
		if d.Type == "" {
			return nil, errors.New("catalog: furniture type is empty")
		}
		if _, ok := c.defs[d.Type]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, d.Type)
		}
		if d.Width == 0 {
			d.Width = 1
		}
		if d.Height == 0 {
			d.Height = 1
		}
		c.defs[d.Type] = d.clone()
		c.names = append(c.names, d.Type)
	}
	sort.Strings(c.names)
	return c, nil
}

// Parse validates raw YAML against the catalog schema and decodes it.
func Parse(raw []byte) (*Catalog, error) {
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	// The validator expects JSON-shaped values.
	js, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	var doc any
	if err := json.Unmarshal(js, &doc); err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}

	var d document
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	return New(d.Furniture...)
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Default returns the built-in catalog (Wall, Door, Stockpile).
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns a copy of the named prototype.
func (c *Catalog) Lookup(name string) (FurnitureDef, bool) {
	d, ok := c.defs[name]
	if !ok {
		return FurnitureDef{}, false
	}
	return d.clone(), true
}

// Has reports whether name is a known prototype.
func (c *Catalog) Has(name string) bool {
	_, ok := c.defs[name]
	return ok
}

// Names returns the prototype names in sorted order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Len returns the number of prototypes.
func (c *Catalog) Len() int { return len(c.names) }

// Suggest returns the closest known name to an unknown one, or "" if nothing
// is close enough.
func (c *Catalog) Suggest(name string) string {
	in := strings.ToLower(strings.TrimSpace(name))
	if in == "" {
		return ""
	}
	best, bestDist := "", -1
	for _, n := range c.names {
		dist := levenshtein.ComputeDistance(in, strings.ToLower(n))
		if dist > suggestLimit(len(n)) {
			continue
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = n, dist
		}
	}
	return best
}

func suggestLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
