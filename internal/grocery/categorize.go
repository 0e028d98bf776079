// Package grocery guesses which seeded category a grocery belongs to from its
// name, so items can be logged without picking a category by hand.
package grocery

import "strings"

// Fallback is the category used when nothing matches.
const Fallback = "Other"

type rule struct {
	category string
	exact    []string
	contains []string
}

// rules are checked in order for substring matches, so categories whose
// keywords overlap others (frozen peas, ice cream, peanut butter) come first.
var rules = []rule{
	{
		category: "Frozen",
		exact:    []string{"ice cream", "popsicles", "sorbet", "gelato", "ice"},
		contains: []string{"frozen", "ice cream", "popsicle", "fish sticks", "tater tot"},
	},
	{
		category: "Pantry",
		exact: []string{
			"rice", "pasta", "flour", "sugar", "salt", "honey", "oats",
			"lentils", "quinoa", "cereal", "vinegar", "ketchup", "mustard",
			"mayonnaise", "jam", "baking soda", "baking powder", "yeast",
		},
		contains: []string{
			"peanut butter", "olive oil", "coconut milk", "maple syrup",
			"soy sauce", "hot sauce", "tomato paste", "tomato sauce", "canned",
			"noodle", "spaghetti", "macaroni", "broth", "stock", "bouillon",
			"spice", "seasoning", "sauce", "beans", "chickpea", "oil", "flour",
			"sugar", "rice", "pasta", "oatmeal", "granola",
		},
	},
	{
		category: "Meat & Seafood",
		exact: []string{
			"chicken", "beef", "pork", "turkey", "lamb", "bacon", "ham",
			"sausage", "salmon", "tuna", "shrimp", "cod", "tilapia", "steak",
			"mince", "prawns", "crab",
		},
		contains: []string{
			"chicken", "ground beef", "ground turkey", "pork chop", "deli meat",
			"hot dog", "salami", "pepperoni", "chorizo", "fillet", "salmon",
			"shrimp", "steak", "bacon", "sausage", "meatball",
		},
	},
	{
		category: "Dairy",
		exact: []string{
			"milk", "butter", "cheese", "yogurt", "yoghurt", "cream", "eggs",
			"egg", "kefir", "ghee",
		},
		contains: []string{
			"cream cheese", "sour cream", "cottage cheese", "half and half",
			"oat milk", "almond milk", "soy milk", "cheddar", "mozzarella",
			"parmesan", "feta", "brie", "ricotta", "yogurt", "yoghurt",
			"cheese", "milk", "butter", "cream", "egg",
		},
	},
	{
		category: "Bakery",
		exact:    []string{"bread", "bagels", "baguette", "tortillas", "croissants", "pita", "naan"},
		contains: []string{
			"sourdough", "bread", "bagel", "baguette", "tortilla", "bun",
			"roll", "muffin", "croissant", "brioche", "pastry", "cake", "pie crust",
		},
	},
	{
		category: "Beverages",
		exact:    []string{"coffee", "tea", "juice", "soda", "water", "beer", "wine", "kombucha"},
		contains: []string{
			"orange juice", "apple juice", "sparkling water", "cold brew",
			"lemonade", "smoothie", "juice", "soda", "coffee", "tea", "beer",
			"wine", "drink",
		},
	},
	{
		category: "Snacks",
		exact:    []string{"chips", "crackers", "cookies", "popcorn", "pretzels", "nuts", "chocolate", "candy"},
		contains: []string{
			"granola bar", "trail mix", "chip", "cracker", "cookie", "popcorn",
			"pretzel", "candy", "chocolate", "snack", "almonds", "cashews",
		},
	},
	{
		category: "Produce",
		exact: []string{
			"apple", "apples", "banana", "bananas", "orange", "oranges",
			"lemon", "lemons", "lime", "limes", "avocado", "avocados",
			"tomato", "tomatoes", "potato", "potatoes", "onion", "onions",
			"garlic", "lettuce", "spinach", "kale", "broccoli", "carrot",
			"carrots", "celery", "cucumber", "zucchini", "mushrooms", "corn",
			"grapes", "strawberries", "blueberries", "raspberries", "mango",
			"pear", "pears", "peach", "peaches", "cilantro", "basil",
			"parsley", "ginger", "asparagus", "cauliflower", "cabbage",
		},
		contains: []string{
			"salad", "spinach", "lettuce", "romaine", "arugula", "kale",
			"sweet potato", "bell pepper", "green onion", "scallion",
			"cherry tomato", "tomato", "potato", "onion", "pepper", "carrot",
			"berry", "berries", "apple", "banana", "melon", "squash", "herb",
			"mushroom", "fruit",
		},
	},
}

var exactIndex = func() map[string]string {
	m := make(map[string]string)
	for _, r := range rules {
		for _, name := range r.exact {
			m[name] = r.category
		}
	}
	return m
}()

// Categorize returns the category for name. Exact names win over substring
// matches; matching is case-insensitive and ignores surrounding whitespace.
func Categorize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return Fallback
	}
	if cat, ok := exactIndex[n]; ok {
		return cat
	}
	for _, r := range rules {
		for _, kw := range r.contains {
			if strings.Contains(n, kw) {
				return r.category
			}
		}
	}
	return Fallback
}

// Categories lists every category Categorize can return, Fallback last.
func Categories() []string {
	out := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.category)
	}
	return append(out, Fallback)
}
