package recipeai

import (
	"fmt"
	"strings"
)

// RecipeCount is the number of recipes requested per suggestion.
const RecipeCount = 3

const recipeFormat = `For each recipe, provide:
1. Recipe name
2. Ingredients list with quantities
3. Step-by-step cooking instructions (5-8 numbered steps)
4. Total cooking time
5. Difficulty level (Easy, Medium, or Hard)

Format each recipe clearly with headers.`

// BuildPrompt builds the suggestion prompt for the given ingredients. Blank
// names are ignored; the preference clause is omitted when preferences is
// blank.
func BuildPrompt(ingredients []string, preferences string) (string, error) {
	names := CleanNames(ingredients)
	if len(names) == 0 {
		return "", invalidInput("at least one ingredient is required")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I have these ingredients that are expiring soon: %s.\n\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "Please suggest %d creative and practical recipes that use these ingredients.", RecipeCount)
	if p := strings.TrimSpace(preferences); p != "" {
		fmt.Fprintf(&b, "\nUser preferences: %s", p)
	}
	b.WriteString("\n\n")
	b.WriteString(recipeFormat)
	return b.String(), nil
}

// BuildRefinePrompt builds a prompt asking the service to modify
// currentRecipe according to preferences, keeping the recipe format.
func BuildRefinePrompt(currentRecipe, preferences string) (string, error) {
	if strings.TrimSpace(currentRecipe) == "" {
		return "", invalidInput("a recipe to refine is required")
	}
	p := strings.TrimSpace(preferences)
	if p == "" {
		return "", invalidInput("refinement instructions are required")
	}

	var b strings.Builder
	b.WriteString("Here is a recipe:\n\n")
	b.WriteString(currentRecipe)
	b.WriteString("\n\nPlease modify this recipe according to these preferences: ")
	b.WriteString(p)
	b.WriteString("\n\nKeep the same format: ")
	b.WriteString(recipeFormat)
	return b.String(), nil
}

// CleanNames trims each ingredient name and drops the blank ones.
func CleanNames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
