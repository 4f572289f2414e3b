// planning.go - Calorie split across meals and macro balance checks

package nutrition

import "math"

// Meal keys used by diet plans, in serving order.
const (
	Breakfast      = "breakfast"
	MorningSnack   = "morning_snack"
	Lunch          = "lunch"
	AfternoonSnack = "afternoon_snack"
	Dinner         = "dinner"
	Supper         = "supper"
)

// MealOrder lists every meal key in serving order.
var MealOrder = []string{Breakfast, MorningSnack, Lunch, AfternoonSnack, Dinner, Supper}

// Share of daily calories per meal, keyed by how many meals are active.
var distributions = map[int]map[string]float64{
	3: {Breakfast: 0.30, Lunch: 0.40, Dinner: 0.30},
	4: {Breakfast: 0.25, Lunch: 0.35, AfternoonSnack: 0.15, Dinner: 0.25},
	5: {Breakfast: 0.25, MorningSnack: 0.10, Lunch: 0.35, AfternoonSnack: 0.10, Dinner: 0.20},
	6: {Breakfast: 0.20, MorningSnack: 0.10, Lunch: 0.30, AfternoonSnack: 0.10, Dinner: 0.20, Supper: 0.10},
}

// MealCalorieDistribution splits total calories across meals. With a nil
// active map the five-meal plan is used. Active meals missing from the
// chosen distribution get an equal share; inactive meals get zero.
func MealCalorieDistribution(total float64, active map[string]bool) map[string]int {
	out := map[string]int{}
	if active == nil {
		for meal, share := range distributions[5] {
			out[meal] = int(math.Round(total * share))
		}
		return out
	}

	var keys []string
	for meal, on := range active {
		if on {
			keys = append(keys, meal)
		} else {
			out[meal] = 0
		}
	}

	dist, ok := distributions[len(keys)]
	if !ok {
		dist = distributions[5]
	}
	for _, meal := range keys {
		share, ok := dist[meal]
		if !ok {
			share = 1 / float64(len(keys))
		}
		out[meal] = int(math.Round(total * share))
	}
	return out
}

// Balance is the outcome of CheckBalance.
type Balance struct {
	Balanced    bool     `json:"balanced"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// Energy per gram of macronutrient.
const (
	kcalPerGramCarb    = 4
	kcalPerGramProtein = 4
	kcalPerGramFat     = 9
)

// CheckBalance flags macro distributions outside the usual ranges and low
// fiber. Portions without energy skip the macro checks.
func CheckBalance(portions []Portion) Balance {
	n := Sum(portions)
	b := Balance{Issues: []string{}, Suggestions: []string{}}
	flag := func(issue, suggestion string) {
		b.Issues = append(b.Issues, issue)
		b.Suggestions = append(b.Suggestions, suggestion)
	}

	if n.Calories > 0 {
		protein := n.Protein * kcalPerGramProtein / n.Calories * 100
		carbs := n.Carbs * kcalPerGramCarb / n.Calories * 100
		fat := n.Fat * kcalPerGramFat / n.Calories * 100

		if protein < 10 {
			flag("Low protein", "Add a protein source (meat, egg, legumes)")
		}
		switch {
		case carbs < 45:
			flag("Low carbohydrate", "Include grains, fruit or tubers")
		case carbs > 65:
			flag("High carbohydrate", "Cut simple carbohydrates and add protein")
		}
		switch {
		case fat > 35:
			flag("High fat", "Cut fried and fatty foods")
		case fat < 20:
			flag("Low fat", "Add healthy fats (olive oil, nuts, avocado)")
		}
	}
	if n.Fiber < 5 {
		flag("Low fiber", "Add fruit, vegetables or whole grains")
	}

	b.Balanced = len(b.Issues) == 0
	return b
}

// MacroGrams converts a calorie target and percentage split into grams.
func MacroGrams(calories, carbPct, proteinPct, fatPct float64) Macros {
	return Macros{
		Carbs:   math.Round(calories * carbPct / 100 / kcalPerGramCarb),
		Protein: math.Round(calories * proteinPct / 100 / kcalPerGramProtein),
		Fat:     math.Round(calories * fatPct / 100 / kcalPerGramFat),
	}
}

// Macros in grams.
type Macros struct {
	Carbs   float64 `json:"carbs_g"`
	Protein float64 `json:"protein_g"`
	Fat     float64 `json:"fat_g"`
}
