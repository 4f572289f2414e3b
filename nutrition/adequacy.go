// adequacy.go - Intake compared against Recommended Daily Allowances

package nutrition

import (
	"math"
	"sort"
)

// Gender selects the RDA column.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

// ParseGender maps free text to a Gender, defaulting to Female.
func ParseGender(s string) Gender {
	switch s {
	case "male", "MALE", "M", "m":
		return Male
	}
	return Female
}

// Status of a nutrient against its RDA.
type Status string

const (
	Deficient Status = "deficient"
	Adequate  Status = "adequate"
	Excessive Status = "excessive"
)

// Adequacy is the verdict for one nutrient.
type Adequacy struct {
	Nutrient       string  `json:"nutrient"`
	Label          string  `json:"label"`
	Value          float64 `json:"value"`
	RDA            float64 `json:"rda"`
	Percentage     float64 `json:"percentage"`
	Status         Status  `json:"status"`
	Recommendation string  `json:"recommendation,omitempty"`
}

type rda struct {
	key, label   string
	male, female float64
	ceiling      bool // the value is an upper limit, not a target
	advice       string
}

// Adult RDAs. Order is the tie-break order of AnalyzeAdequacy.
var rdaTable = []rda{
	{"protein", "Protein", 56, 46, false, "Add lean meat, eggs, legumes or dairy"},
	{"fiber", "Fiber", 38, 25, false, "Add fruit, vegetables, legumes and whole grains"},
	{"calcium", "Calcium", 1000, 1000, false, "Eat more dairy, dark leafy greens or sardines"},
	{"iron", "Iron", 8, 18, false, "Include red meat, beans or spinach, paired with vitamin C"},
	{"magnesium", "Magnesium", 400, 310, false, "Add nuts, seeds, green vegetables or whole grains"},
	{"phosphorus", "Phosphorus", 700, 700, false, ""},
	{"potassium", "Potassium", 3500, 2600, false, "Eat more fruit (banana, orange) and vegetables"},
	{"zinc", "Zinc", 11, 8, false, "Include meat, nuts, seeds or legumes"},
	{"sodium", "Sodium", 2300, 2300, true, ""},
	{"vitamin_c", "Vitamin C", 90, 75, false, "Add citrus, strawberries, kiwi or bell pepper"},
	{"vitamin_a", "Vitamin A", 900, 700, false, "Eat carrots, sweet potato, spinach or liver"},
	{"vitamin_e", "Vitamin E", 15, 15, false, ""},
	{"vitamin_b12", "Vitamin B12", 2.4, 2.4, false, ""},
	{"folate", "Folate", 400, 400, false, "Include dark leafy greens, legumes or liver"},
}

// Thresholds in percent of RDA.
const (
	deficientBelow   = 70
	excessiveAbove   = 300
	sodiumWatchAbove = 75
)

// RDA returns the allowance for a nutrient key and gender.
func RDA(key string, g Gender) (float64, bool) {
	for _, r := range rdaTable {
		if r.key == key {
			if g == Male {
				return r.male, true
			}
			return r.female, true
		}
	}
	return 0, false
}

// AnalyzeAdequacy rates every nutrient of the RDA table. Deficiencies come
// first, then excesses, then adequate nutrients.
func AnalyzeAdequacy(s Summary, g Gender) []Adequacy {
	out := make([]Adequacy, 0, len(rdaTable))
	for _, r := range rdaTable {
		allowance := r.female
		if g == Male {
			allowance = r.male
		}
		value := s.value(r.key)

		var pct float64
		if allowance > 0 {
			pct = value / allowance * 100
		}

		a := Adequacy{
			Nutrient:   r.key,
			Label:      r.label,
			Value:      round(value, 2),
			RDA:        allowance,
			Percentage: round(pct, 1),
			Status:     Adequate,
		}

		if r.ceiling {
			switch {
			case pct > 100:
				a.Status = Excessive
				a.Recommendation = "Cut back on processed foods and added salt"
			case pct > sodiumWatchAbove:
				a.Recommendation = "Keep an eye on sodium intake"
			}
		} else {
			switch {
			case pct < deficientBelow:
				a.Status = Deficient
				a.Recommendation = r.advice
				if a.Recommendation == "" {
					a.Recommendation = "Consider foods rich in " + r.label
				}
			case pct > excessiveAbove:
				a.Status = Excessive
				a.Recommendation = "Consider reducing supplements or fortified foods"
			}
		}
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return statusRank(out[i].Status) < statusRank(out[j].Status)
	})
	return out
}

func statusRank(s Status) int {
	switch s {
	case Deficient:
		return 0
	case Excessive:
		return 1
	}
	return 2
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
