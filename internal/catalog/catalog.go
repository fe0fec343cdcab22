// Package catalog holds the category prototypes used for semantic
// classification, one ordered list per transaction polarity.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/family-budget/internal/model"
)

// Catch-all entries every catalog must contain.
const (
	IncomeCatchAll  = "Other Income"
	ExpenseCatchAll = "General"
)

//go:embed default.yaml
var defaultDocument []byte

// ErrInvalidCatalog is wrapped by every validation failure.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Candidate is one category prototype. Prompt is embedded; Name is shown to the user.
type Candidate struct {
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt"`
}

// Catalog is a versioned pair of candidate lists.
type Catalog struct {
	Version string      `yaml:"version"`
	Income  []Candidate `yaml:"income"`
	Expense []Candidate `yaml:"expense"`
}

// Default returns the compiled-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// LoadFile reads and validates a catalog document from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) normalize() {
	for _, list := range [][]Candidate{c.Income, c.Expense} {
		for i := range list {
			list[i].Name = strings.TrimSpace(list[i].Name)
			list[i].Prompt = strings.Join(strings.Fields(list[i].Prompt), " ")
		}
	}
}

// Validate checks that every prompt is non-empty, names are unique within a
// polarity and both catch-all entries exist.
func (c *Catalog) Validate() error {
	if err := validateList("income", c.Income, IncomeCatchAll); err != nil {
		return err
	}
	return validateList("expense", c.Expense, ExpenseCatchAll)
}

func validateList(label string, list []Candidate, catchAll string) error {
	if len(list) == 0 {
		return fmt.Errorf("%w: %s list is empty", ErrInvalidCatalog, label)
	}

	names := make(map[string]bool, len(list))
	for i, cand := range list {
		if cand.Name == "" {
			return fmt.Errorf("%w: %s entry %d has no name", ErrInvalidCatalog, label, i)
		}
		if cand.Name == model.Uncategorized {
			return fmt.Errorf("%w: %s entry %d uses the reserved name %q", ErrInvalidCatalog, label, i, model.Uncategorized)
		}
		if cand.Prompt == "" {
			return fmt.Errorf("%w: %s category %q has an empty prompt", ErrInvalidCatalog, label, cand.Name)
		}
		if names[cand.Name] {
			return fmt.Errorf("%w: %s category %q is listed twice", ErrInvalidCatalog, label, cand.Name)
		}
		names[cand.Name] = true
	}

	if !names[catchAll] {
		return fmt.Errorf("%w: %s list is missing the catch-all %q", ErrInvalidCatalog, label, catchAll)
	}
	return nil
}

// For returns the candidates applicable to a transaction polarity.
func (c *Catalog) For(p model.Polarity) []Candidate {
	if p == model.PolarityExpense {
		return c.Expense
	}
	return c.Income
}

// Names returns every category name for a polarity, in catalog order.
func (c *Catalog) Names(p model.Polarity) []string {
	list := c.For(p)
	names := make([]string, len(list))
	for i, cand := range list {
		names[i] = cand.Name
	}
	return names
}

// Lookup finds a candidate by name, searching both polarities.
func (c *Catalog) Lookup(name string) (Candidate, bool) {
	for _, list := range [][]Candidate{c.Expense, c.Income} {
		for _, cand := range list {
			if strings.EqualFold(cand.Name, name) {
				return cand, true
			}
		}
	}
	return Candidate{}, false
}
