package models

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// IngredientGroup lists the items a recipe needs from one category.
type IngredientGroup struct {
	Category Category `json:"category"`
	Items    []string `json:"items"`
}

// Ingredients keeps recipe requirements in the order they were written.
type Ingredients []IngredientGroup

// UnmarshalYAML reads a "category: [items]" mapping without losing order.
func (in *Ingredients) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("models: line %d: ingredients must be a mapping", value.Line)
	}
	groups := make(Ingredients, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var items []string
		if err := value.Content[i+1].Decode(&items); err != nil {
			return fmt.Errorf("models: ingredients for %q: %w", value.Content[i].Value, err)
		}
		groups = append(groups, IngredientGroup{Category: Category(value.Content[i].Value), Items: items})
	}
	*in = groups
	return nil
}

// MarshalYAML writes the groups back as an ordered mapping.
func (in Ingredients) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, g := range in {
		items := &yaml.Node{}
		if err := items.Encode(g.Items); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: string(g.Category)},
			items,
		)
	}
	return node, nil
}

// Recipe is an externally defined dish. Requirements are boolean: a recipe
// names ingredients but never how much of each it needs.
type Recipe struct {
	Name         string      `yaml:"-" json:"name"`
	Ingredients  Ingredients `yaml:"ingredients" json:"ingredients"`
	Instructions string      `yaml:"instructions,omitempty" json:"instructions,omitempty"`
}

// Requirement is one (category, item) pair named by a recipe.
type Requirement struct {
	Category Category
	Item     string
}

// Requirements flattens the ingredient groups in order.
func (r Recipe) Requirements() []Requirement {
	var out []Requirement
	for _, g := range r.Ingredients {
		for _, item := range g.Items {
			out = append(out, Requirement{Category: g.Category, Item: item})
		}
	}
	return out
}
