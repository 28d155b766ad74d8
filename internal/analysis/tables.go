package analysis

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultTablesYAML []byte

// Strength describes what a high-ranking category says about a person.
type Strength struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon" yaml:"icon"`
}

// CategoryTable is the static data kept for one category.
type CategoryTable struct {
	Strength        *Strength `yaml:"strength"`
	Keywords        []string  `yaml:"keywords"`
	Recommendations []string  `yaml:"recommendations"`
}

// Tables maps category names to their descriptors.
type Tables struct {
	Categories map[string]CategoryTable `yaml:"categories"`
}

// DefaultTables returns the tables compiled into the binary.
func DefaultTables() (*Tables, error) {
	return ParseTables(defaultTablesYAML)
}

// LoadTables reads tables from path, or returns the defaults when path is empty.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category tables %s: %w", path, err)
	}
	return ParseTables(data)
}

// ParseTables decodes the YAML table format.
func ParseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse category tables: %w", err)
	}
	if t.Categories == nil {
		t.Categories = make(map[string]CategoryTable)
	}
	return &t, nil
}

// StrengthFor returns the category's strength, or a generic one built from
// the category name.
func (t *Tables) StrengthFor(category string) Strength {
	if c, ok := t.Categories[category]; ok && c.Strength != nil {
		return *c.Strength
	}
	return Strength{
		Title:       category + " Expert",
		Description: "Shows strong interest and talent in " + category + ".",
		Icon:        "⭐",
	}
}

func (t *Tables) KeywordsFor(category string) []string {
	return t.Categories[category].Keywords
}

func (t *Tables) RecommendationsFor(category string) []string {
	return t.Categories[category].Recommendations
}
