// Package catalog loads the immutable set of opening variations.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/repertoire/internal/model"
)

//go:embed openings.yaml
var defaultCatalog []byte

// ErrEmptyCategory is returned when a category has no variations to show.
var ErrEmptyCategory = errors.New("no variations in category")

var validate = validator.New()

type record struct {
	ID          string   `yaml:"id" validate:"required"`
	Name        string   `yaml:"name" validate:"required"`
	ECO         string   `yaml:"eco" validate:"omitempty,len=3"`
	Parent      string   `yaml:"parent"`
	Side        string   `yaml:"side" validate:"omitempty,oneof=white black w b"`
	Category    string   `yaml:"category" validate:"omitempty,oneof=book trap"`
	Moves       []string `yaml:"moves" validate:"required,min=1,dive,required"`
	FEN         string   `yaml:"fen_10_ply"`
	Themes      []string `yaml:"themes"`
	Profile     *profile `yaml:"profile"`
	Description string   `yaml:"description"`
	Followup    string   `yaml:"followup"`
}

type profile struct {
	White float64 `yaml:"white" validate:"gte=0,lte=100"`
	Black float64 `yaml:"black" validate:"gte=0,lte=100"`
	Draw  float64 `yaml:"draw" validate:"gte=0,lte=100"`
}

// Catalog is a read-only set of variations indexed by ID.
type Catalog struct {
	all  []model.OpeningVariation
	byID map[string]int
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes and validates YAML catalog data.
func Parse(data []byte) (*Catalog, error) {
	var records []record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	variations := make([]model.OpeningVariation, 0, len(records))
	for i, rec := range records {
		if err := validate.Struct(rec); err != nil {
			return nil, fmt.Errorf("invalid catalog entry %d (%s): %w", i, rec.ID, err)
		}
		variations = append(variations, rec.variation())
	}
	return New(variations)
}

func (r record) variation() model.OpeningVariation {
	side, _ := model.ParseSide(r.Side)
	category := model.CategoryBook
	if r.Category != "" {
		category = model.Category(r.Category)
	}
	v := model.OpeningVariation{
		ID:             r.ID,
		Name:           r.Name,
		ECOCode:        strings.ToUpper(r.ECO),
		ParentOpening:  r.Parent,
		Moves:          append([]string(nil), r.Moves...),
		PlayerSide:     side,
		Category:       category,
		Themes:         append([]string(nil), r.Themes...),
		Description:    strings.TrimSpace(r.Description),
		FollowupAdvice: strings.TrimSpace(r.Followup),
		ReferenceFEN:   r.FEN,
	}
	if v.ParentOpening == "" {
		v.ParentOpening = v.Name
	}
	if r.Profile != nil {
		v.Profile = &model.OutcomeProfile{
			WhiteWinPct: r.Profile.White,
			BlackWinPct: r.Profile.Black,
			DrawPct:     r.Profile.Draw,
		}
	}
	return v
}

// New builds a catalog from already-decoded variations.
func New(variations []model.OpeningVariation) (*Catalog, error) {
	c := &Catalog{
		all:  make([]model.OpeningVariation, 0, len(variations)),
		byID: make(map[string]int, len(variations)),
	}
	for _, v := range variations {
		if v.ID == "" {
			return nil, fmt.Errorf("catalog entry %q has no id", v.Name)
		}
		if _, dup := c.byID[v.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog id %q", v.ID)
		}
		if v.Category == "" {
			v.Category = model.CategoryBook
		}
		if v.PlayerSide == "" {
			v.PlayerSide = model.SideWhite
		}
		c.byID[v.ID] = len(c.all)
		c.all = append(c.all, v)
	}
	return c, nil
}

// All returns every variation in catalog order.
func (c *Catalog) All() []model.OpeningVariation {
	return append([]model.OpeningVariation(nil), c.all...)
}

// ByCategory returns the variations of a category sorted by name.
func (c *Catalog) ByCategory(category model.Category) ([]model.OpeningVariation, error) {
	var out []model.OpeningVariation
	for _, v := range c.all {
		if v.Category == category {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w %q", ErrEmptyCategory, category)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Count returns the number of variations in a category.
func (c *Catalog) Count(category model.Category) int {
	n := 0
	for _, v := range c.all {
		if v.Category == category {
			n++
		}
	}
	return n
}

// Get looks up a variation by ID.
func (c *Catalog) Get(id string) (model.OpeningVariation, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return model.OpeningVariation{}, false
	}
	return c.all[idx], true
}
