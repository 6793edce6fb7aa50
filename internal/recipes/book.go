package recipes

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mise/internal/models"
)

//go:embed default_recipes.yaml
var defaultRecipes []byte

// Book is an ordered, read-only set of recipes.
type Book struct {
	recipes []models.Recipe
	index   map[string]int
}

type bookFile struct {
	Recipes yaml.Node `yaml:"recipes"`
}

// DefaultBook returns the built-in stir-fry recipes.
func DefaultBook() *Book {
	book, err := ParseBook(defaultRecipes)
	if err != nil {
		panic(fmt.Sprintf("recipes: built-in book: %v", err))
	}
	return book
}

// LoadBook reads a recipe book from a YAML file.
func LoadBook(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recipes: read %s: %w", path, err)
	}
	book, err := ParseBook(data)
	if err != nil {
		return nil, fmt.Errorf("recipes: %s: %w", path, err)
	}
	return book, nil
}

// ParseBook decodes "recipes: {name: {ingredients: ..., instructions: ...}}",
// keeping recipes in file order.
func ParseBook(data []byte) (*Book, error) {
	var file bookFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse recipe book: %w", err)
	}
	node := file.Recipes
	if node.Kind == 0 {
		return NewBook(), nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: recipes must be a mapping", node.Line)
	}

	var recipes []models.Recipe
	for i := 0; i+1 < len(node.Content); i += 2 {
		var r models.Recipe
		if err := node.Content[i+1].Decode(&r); err != nil {
			return nil, fmt.Errorf("recipe %q: %w", node.Content[i].Value, err)
		}
		r.Name = node.Content[i].Value
		recipes = append(recipes, r)
	}
	return NewBook(recipes...), nil
}

// NewBook builds a book. A later recipe replaces an earlier one of the same name.
func NewBook(recipes ...models.Recipe) *Book {
	b := &Book{index: make(map[string]int)}
	for _, r := range recipes {
		if i, ok := b.index[r.Name]; ok {
			b.recipes[i] = r
			continue
		}
		b.index[r.Name] = len(b.recipes)
		b.recipes = append(b.recipes, r)
	}
	return b
}

// Names lists recipe names in book order.
func (b *Book) Names() []string {
	names := make([]string, len(b.recipes))
	for i, r := range b.recipes {
		names[i] = r.Name
	}
	return names
}

// Recipes returns every recipe in book order.
func (b *Book) Recipes() []models.Recipe {
	return append([]models.Recipe(nil), b.recipes...)
}

// Get looks up a recipe by name.
func (b *Book) Get(name string) (models.Recipe, bool) {
	i, ok := b.index[name]
	if !ok {
		return models.Recipe{}, false
	}
	return b.recipes[i], true
}

// Len reports the number of recipes.
func (b *Book) Len() int {
	return len(b.recipes)
}
