package advisor

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = "You are a practical kitchen assistant. Reply with a single JSON object and nothing else."

const responseFormat = `{
  "name": "Recipe Name",
  "description": "Brief description",
  "ingredients": ["ingredient1", "ingredient2"],
  "instructions": ["step1", "step2"],
  "preparation_time": "XX minutes"
}`

// buildPrompt renders the user prompt for req.
func buildPrompt(req Request) string {
	var b strings.Builder
	switch req.Kind {
	case KindLeftovers:
		fmt.Fprintf(&b, "Suggest one creative way to use up these leftover ingredients before they go to waste: %s.\n",
			strings.Join(req.Ingredients, ", "))
		b.WriteString("Explain how the leftovers are worked into the dish.\n")
	default:
		fmt.Fprintf(&b, "Create a recipe using some or all of these ingredients: %s.\n",
			strings.Join(req.Ingredients, ", "))
	}

	if req.Inventory != nil && req.Inventory.Len() > 0 {
		b.WriteString("Other ingredients currently in stock:\n")
		for _, c := range req.Inventory.Categories() {
			items := req.Inventory.Items(c)
			if len(items) == 0 {
				continue
			}
			names := make([]string, len(items))
			for i, it := range items {
				names[i] = fmt.Sprintf("%s (%s)", it.Name, it.Quantity)
			}
			fmt.Fprintf(&b, "- %s: %s\n", c, strings.Join(names, ", "))
		}
	}
	if req.Notes != "" {
		fmt.Fprintf(&b, "Notes from the cook: %s\n", req.Notes)
	}

	b.WriteString("Format your response as a JSON object with this structure:\n")
	b.WriteString(responseFormat)
	return b.String()
}

// parseSuggestion pulls the first JSON object out of a model reply. Models
// often wrap JSON in code fences or add a sentence around it.
func parseSuggestion(text string) (*Suggestion, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrInvalidResponse)
	}

	var s Suggestion
	if err := json.Unmarshal([]byte(text[start:end+1]), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidResponse)
	}
	if len(s.Instructions) == 0 {
		return nil, fmt.Errorf("%w: missing instructions", ErrInvalidResponse)
	}
	return &s, nil
}
