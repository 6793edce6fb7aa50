package advisor

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	cookingMethods = []string{"Roasted", "Grilled", "Fresh", "Steamed"}
	dishTypes      = []string{"Bowl", "Salad", "Plate", "Wrap"}
)

// Fallback builds simple suggestions locally. It never fails on a request
// that names at least one ingredient.
type Fallback struct {
	mu    sync.Mutex
	rng   *rand.Rand
	title cases.Caser
}

// NewFallback returns a generator seeded with seed. A zero seed uses the clock.
func NewFallback(seed int64) *Fallback {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Fallback{
		rng:   rand.New(rand.NewSource(seed)),
		title: cases.Title(language.English),
	}
}

// Name returns the backend name
func (f *Fallback) Name() string {
	return SourceFallback
}

// Suggest picks up to three ingredients, one as the main, and names the dish
// after a random cooking method and dish type.
func (f *Fallback) Suggest(_ context.Context, req Request) (*Suggestion, error) {
	ingredients := nonEmpty(req.Ingredients)
	if len(ingredients) == 0 {
		return nil, ErrNoIngredients
	}

	f.mu.Lock()
	selected := ingredients
	if len(ingredients) > 2 {
		selected = make([]string, 0, 3)
		for _, i := range f.rng.Perm(len(ingredients))[:3] {
			selected = append(selected, ingredients[i])
		}
	}
	method := cookingMethods[f.rng.Intn(len(cookingMethods))]
	dish := dishTypes[f.rng.Intn(len(dishTypes))]
	mainIdx := f.rng.Intn(len(selected))
	minutes := 15 + f.rng.Intn(16)
	f.mu.Unlock()

	mainIngredient := selected[mainIdx]
	var others []string
	for i, s := range selected {
		if i != mainIdx {
			others = append(others, s)
		}
	}

	name := fmt.Sprintf("%s %s %s", method, f.title.String(mainIngredient), dish)
	if len(others) > 0 {
		titled := make([]string, len(others))
		for i, o := range others {
			titled[i] = f.title.String(o)
		}
		name += " with " + strings.Join(titled, ", ")
	}

	addition := "seasonings"
	if len(others) > 0 {
		addition = strings.Join(others, ", ")
	}
	description := fmt.Sprintf("A simple dish featuring %s", mainIngredient)
	if req.Kind == KindLeftovers {
		description = fmt.Sprintf("A simple way to use up leftover %s", mainIngredient)
	}

	return &Suggestion{
		Name:        name,
		Description: description,
		Ingredients: append([]string(nil), selected...),
		Instructions: []string{
			fmt.Sprintf("Prepare the %s.", mainIngredient),
			fmt.Sprintf("Add the %s.", addition),
			"Cook for 5-7 minutes until done.",
			"Serve and enjoy!",
		},
		PreparationTime: fmt.Sprintf("%d minutes", minutes),
		Source:          SourceFallback,
	}, nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
