// meal.go - Whole-meal analysis: glycemic load, protein quality, diversity

package nutrition

import (
	"math"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// defaultGlycemicIndex applies to categories missing from the table.
const defaultGlycemicIndex = 50

// Approximate glycemic index per food category. TACO and IBGE/POF group
// names are both listed since the catalog mixes the two sources.
var glycemicIndex = map[string]float64{
	// TACO
	"Cereais e derivados":                   70,
	"Verduras, hortaliças e derivados":      15,
	"Frutas e derivados":                    35,
	"Gorduras e óleos":                      0,
	"Pescados e frutos do mar":              0,
	"Carnes e derivados":                    0,
	"Leite e derivados":                     30,
	"Bebidas (alcoólicas e não alcoólicas)": 25,
	"Ovos e derivados":                      0,
	"Produtos açucarados":                   85,
	"Miscelâneas":                           40,
	"Leguminosas e derivados":               30,
	"Nozes e sementes":                      15,
	// IBGE/POF
	"Cereais e Produtos de Cereais":      70,
	"Hortaliças":                         15,
	"Frutas e Produtos de Frutas":        35,
	"Óleos e Gorduras":                   0,
	"Peixes e Frutos do Mar":             0,
	"Carnes e Produtos Cárneos":          0,
	"Leite e Produtos Lácteos":           30,
	"Bebidas":                            25,
	"Ovos e Derivados":                   0,
	"Açúcares e Produtos de Confeitaria": 85,
	"Leguminosas":                        30,
	"Oleaginosas":                        15,
}

// GlycemicIndex returns the category's index, or the default for unknown
// categories. A listed index of zero is kept: fats, meats, fish and eggs
// carry no carbohydrate load and must not be scored as a medium-GI food.
func GlycemicIndex(category string) float64 {
	if gi, ok := glycemicIndex[category]; ok {
		return gi
	}
	return defaultGlycemicIndex
}

// GlycemicLoad sums GI x available carbohydrate / 100 over the portions.
func GlycemicLoad(portions []Portion) float64 {
	var total float64
	for _, p := range portions {
		carbs := p.Food.Carbs * p.Grams / 100
		total += GlycemicIndex(p.Food.Category) * carbs / 100
	}
	return total
}

// Only sources above this many grams of protein count toward quality.
const significantProtein = 5

// ProteinQuality scores 0-100 from how many categories supply protein (up to
// three) and the total grams from those sources (up to 50 g).
func ProteinQuality(portions []Portion) float64 {
	sources := mapset.NewThreadUnsafeSet[string]()
	var total float64
	for _, p := range portions {
		grams := p.Food.Protein * p.Grams / 100
		if grams > significantProtein {
			sources.Add(p.Food.Category)
			total += grams
		}
	}
	diversity := math.Min(float64(sources.Cardinality())/3, 1)
	quantity := math.Min(total/50, 1)
	return (diversity*0.6 + quantity*0.4) * 100
}

// DiversityScore scores 0-100 from distinct categories (up to six) and
// distinct foods (up to ten).
func DiversityScore(portions []Portion) float64 {
	categories := mapset.NewThreadUnsafeSet[string]()
	foods := mapset.NewThreadUnsafeSet[uint]()
	for _, p := range portions {
		categories.Add(p.Food.Category)
		foods.Add(p.Food.ID)
	}
	c := math.Min(float64(categories.Cardinality())/6, 1)
	f := math.Min(float64(foods.Cardinality())/10, 1)
	return (c*0.7 + f*0.3) * 100
}

// MealAnalysis bundles every indicator for a set of portions.
type MealAnalysis struct {
	Total           Summary    `json:"total"`
	Adequacy        []Adequacy `json:"adequacy"`
	GlycemicLoad    float64    `json:"glycemic_load"`
	ProteinQuality  float64    `json:"protein_quality"`
	DiversityScore  float64    `json:"diversity_score"`
	Recommendations []string   `json:"recommendations"`
}

// Recommendations derives advice from an analysis.
func Recommendations(a MealAnalysis) []string {
	out := []string{}
	for _, ad := range a.Adequacy {
		if ad.Status == Deficient && ad.Recommendation != "" {
			out = append(out, ad.Recommendation)
		}
	}

	switch {
	case a.GlycemicLoad > 20:
		out = append(out, "Consider fewer high glycemic index foods")
	case a.GlycemicLoad < 5:
		out = append(out, "Consider adding a slow-digesting carbohydrate source")
	}
	if a.ProteinQuality < 60 {
		out = append(out, "Vary protein sources (animal and plant)")
	}
	if a.DiversityScore < 50 {
		out = append(out, "Increase the variety of foods and food groups")
	}
	return out
}

// AnalyzeMeal runs the full analysis of a meal or a day of meals.
func AnalyzeMeal(portions []Portion, g Gender) MealAnalysis {
	total := Sum(portions)
	a := MealAnalysis{
		Total:          total,
		Adequacy:       AnalyzeAdequacy(total, g),
		GlycemicLoad:   GlycemicLoad(portions),
		ProteinQuality: ProteinQuality(portions),
		DiversityScore: DiversityScore(portions),
	}
	a.Recommendations = Recommendations(a)
	return a
}

// maxSubstitutions caps SuggestSubstitutions results.
const maxSubstitutions = 5

// SuggestSubstitutions returns up to five foods of the same category that
// carry strictly more of nutrient than current, best first.
func SuggestSubstitutions(current Food, nutrient string, catalog []Food) []Food {
	base, ok := current.Nutrient(nutrient)
	if !ok {
		return nil
	}

	type candidate struct {
		food Food
		gain float64
	}
	var cands []candidate
	for _, f := range catalog {
		if f.Category != current.Category || f.ID == current.ID {
			continue
		}
		v, _ := f.Nutrient(nutrient)
		if gain := v - base; gain > 0 {
			cands = append(cands, candidate{f, gain})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].gain > cands[j].gain })

	if len(cands) > maxSubstitutions {
		cands = cands[:maxSubstitutions]
	}
	out := make([]Food, len(cands))
	for i, c := range cands {
		out[i] = c.food
	}
	return out
}
