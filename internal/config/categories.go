package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/clipforge/pipeline/internal/domain"
)

// CategoryMeta is the human-facing description of one of the eight
// closed-set categories: the set spec §4.9 says has "human-readable
// names, descriptions, icons, and colors."
type CategoryMeta struct {
	ID          domain.Category `yaml:"id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Icon        string          `yaml:"icon"`
	Color       string          `yaml:"color"`
}

type categoriesFile struct {
	Categories []CategoryMeta `yaml:"categories"`
}

// LoadCategories reads data/categories.yaml and validates that it
// describes exactly the closed eight-category set domain.AllCategories
// names, in any order, with no duplicates and no unknown entries.
func LoadCategories(dataDir string) ([]CategoryMeta, error) {
	path := filepath.Join(dataDir, "categories.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	var f categoriesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse categories.yaml: %w", err)
	}

	seen := make(map[domain.Category]bool, len(f.Categories))
	for _, c := range f.Categories {
		if !c.ID.Valid() {
			return nil, fmt.Errorf("categories.yaml: unknown category id %q", c.ID)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("categories.yaml: duplicate category id %q", c.ID)
		}
		seen[c.ID] = true
	}
	if len(seen) != len(domain.AllCategories) {
		return nil, fmt.Errorf("categories.yaml: expected %d categories, found %d", len(domain.AllCategories), len(seen))
	}
	return f.Categories, nil
}
